// Package linne implements the LINNE lossless audio codec: a 30-byte
// fixed-field stream header followed by a sequence of framed blocks (see
// package block), each independently RAW, SILENT or COMPRESSED via a
// layered-LPC cascade (see packages lpc, predict, preemphasis, network,
// coder, preset). Grounded on spec.md's Header module and, for the overall
// "small fixed header struct with its own byte-exact Marshal/Unmarshal"
// shape, the teacher's (since-deleted) meta.StreamInfo.
package linne

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the fixed, wire-exact size of a stream header in bytes.
const HeaderSize = 30

var signature = [4]byte{'I', 'B', 'R', 'A'}

// ChannelProcessMethod selects whether a stereo stream is stored as raw
// per-channel samples or mid/side-decorrelated.
type ChannelProcessMethod uint8

const (
	ChannelProcessPassthrough ChannelProcessMethod = 0
	ChannelProcessMidSide     ChannelProcessMethod = 1
)

// Header is LINNE's 30-byte, big-endian stream header.
type Header struct {
	FormatVersion        uint32
	CodecVersion         uint32
	ChannelCount         uint16
	TotalSamplesPerChan  uint32
	SamplingRate         uint32
	BitsPerSample        uint16
	SamplesPerBlock      uint32
	PresetIndex          uint8
	ChannelProcessMethod ChannelProcessMethod
}

// Validate checks Header's fields against spec.md's header invariants,
// independent of any preset table lookup (which the caller performs
// separately via package preset, since ByIndex needs no Header).
func (h *Header) Validate() error {
	if h.ChannelCount < 1 || h.ChannelCount > 8 {
		return newError(ErrInvalidFormat, "channel_count %d out of range [1,8]", h.ChannelCount)
	}
	if h.TotalSamplesPerChan == 0 {
		return newError(ErrInvalidFormat, "total_samples_per_channel must be non-zero")
	}
	if h.SamplingRate == 0 {
		return newError(ErrInvalidFormat, "sampling_rate must be non-zero")
	}
	switch h.BitsPerSample {
	case 8, 16, 24:
	default:
		return newError(ErrInvalidFormat, "bits_per_sample %d must be 8, 16 or 24", h.BitsPerSample)
	}
	if h.SamplesPerBlock == 0 {
		return newError(ErrInvalidFormat, "samples_per_block must be non-zero")
	}
	if h.ChannelProcessMethod == ChannelProcessMidSide && h.ChannelCount < 2 {
		return newError(ErrInvalidFormat, "mid/side processing requires channel_count >= 2")
	}
	if h.ChannelProcessMethod != ChannelProcessPassthrough && h.ChannelProcessMethod != ChannelProcessMidSide {
		return newError(ErrInvalidFormat, "channel_process_method %d is not 0 or 1", h.ChannelProcessMethod)
	}
	return nil
}

// Marshal encodes h as its 30-byte wire representation.
func (h *Header) Marshal() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], signature[:])
	binary.BigEndian.PutUint32(buf[4:8], h.FormatVersion)
	binary.BigEndian.PutUint32(buf[8:12], h.CodecVersion)
	binary.BigEndian.PutUint16(buf[12:14], h.ChannelCount)
	binary.BigEndian.PutUint32(buf[14:18], h.TotalSamplesPerChan)
	binary.BigEndian.PutUint32(buf[18:22], h.SamplingRate)
	binary.BigEndian.PutUint16(buf[22:24], h.BitsPerSample)
	binary.BigEndian.PutUint32(buf[24:28], h.SamplesPerBlock)
	buf[28] = h.PresetIndex
	buf[29] = byte(h.ChannelProcessMethod)
	return buf
}

// UnmarshalHeader decodes a 30-byte wire representation into a Header,
// checking the signature and running Validate before returning.
func UnmarshalHeader(buf []byte) (*Header, error) {
	if len(buf) < HeaderSize {
		return nil, newError(ErrInsufficientData, "header needs %d bytes, got %d", HeaderSize, len(buf))
	}
	if [4]byte(buf[0:4]) != signature {
		return nil, newError(ErrInvalidFormat, "bad signature %q, want %q", buf[0:4], signature[:])
	}
	h := &Header{
		FormatVersion:        binary.BigEndian.Uint32(buf[4:8]),
		CodecVersion:         binary.BigEndian.Uint32(buf[8:12]),
		ChannelCount:         binary.BigEndian.Uint16(buf[12:14]),
		TotalSamplesPerChan:  binary.BigEndian.Uint32(buf[14:18]),
		SamplingRate:         binary.BigEndian.Uint32(buf[18:22]),
		BitsPerSample:        binary.BigEndian.Uint16(buf[22:24]),
		SamplesPerBlock:      binary.BigEndian.Uint32(buf[24:28]),
		PresetIndex:          buf[28],
		ChannelProcessMethod: ChannelProcessMethod(buf[29]),
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return h, nil
}

func init() {
	// Guard against HeaderSize ever drifting from the field layout above.
	if want := 4 + 4 + 4 + 2 + 4 + 4 + 2 + 4 + 1 + 1; want != HeaderSize {
		panic(fmt.Sprintf("linne: HeaderSize %d does not match field layout %d", HeaderSize, want))
	}
}
