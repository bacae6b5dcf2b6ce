// Package block implements LINNE's per-block bitstream framing: the
// sync/size/crc/type/sample-count block header, the block-type decision
// between raw, silent and compressed payloads, mid/side channel
// decorrelation, and the compressed payload's channel layout (preemphasis
// state, per-layer coefficients, and the partitioned-Rice residual
// stream). Grounded on spec.md's Block Codec module description (§4.7) and
// the teacher's `frame` package for the overall shape of "read a
// fixed-size header, dispatch on a type byte, CRC-validate the payload" —
// though the concrete header layout, CRC polynomial and block-type set are
// LINNE's own, not FLAC's.
package block

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/linne-codec/linne/internal/bitstream"
	"github.com/linne-codec/linne/internal/crc16"
	"github.com/linne-codec/linne/internal/zigzag"
	"github.com/linne-codec/linne/coder"
	"github.com/linne-codec/linne/lpc"
	"github.com/linne-codec/linne/network"
	"github.com/linne-codec/linne/predict"
	"github.com/linne-codec/linne/preemphasis"
	"github.com/linne-codec/linne/preset"
)

// Type is a block's payload kind.
type Type uint8

const (
	TypeCompressed Type = 0
	TypeSilent     Type = 1
	TypeRaw        Type = 2
)

const syncWord = 0xFFFF

// headerSize is the fixed-size portion of a block preceding the payload:
// sync(2) + block_size(4) + crc16(2) + block_type(1) + samples_in_block(2).
const headerSize = 11

// rawCompressedRatioThreshold is the estimated-bits/bits_per_sample ratio
// at or above which a block is transmitted raw instead of compressed
// (spec.md §4.7's block-type decision).
const rawCompressedRatioThreshold = 0.95

// ErrCorruption is returned by Decode when CRC validation is enabled and
// the computed CRC-16 doesn't match the block's stored value.
var ErrCorruption = fmt.Errorf("block: crc16 mismatch, data corruption detected")

// ErrRshiftOverflow is returned by Encode when a layer's quantized
// right-shift can't be represented in the wire format's rshift field
// (zigzag(coef_bits - rshift) in preset.RshiftBits bits). Encoding fails
// rather than silently truncating the field.
var ErrRshiftOverflow = fmt.Errorf("block: quantized coefficient right-shift is not representable in rshift_bits")

// Params describes the stream-wide configuration every block within a
// LINNE stream shares, resolved from the stream header.
type Params struct {
	BitsPerSample   uint
	ChannelCount    uint32
	Preset          *preset.Preset
	NumAFIterations int
	// EnableLearning runs an extra momentum-SGD fine-tuning pass
	// (network.Trainer) over each layer's auxiliary-function-fit
	// coefficients before quantization. Off by default since the
	// auxiliary-function fit alone already converges close to optimal;
	// this is the CLI's --enable-learning option (spec.md §6).
	EnableLearning bool
}

const (
	learningMaxIterations = 20
	learningRate          = 1e-4
	learningLossEpsilon   = 1e-9
)

// ChannelState is the persistent per-channel encode/decode state carried
// across blocks within a stream: the preemphasis cascade (whose Prev
// naturally threads sample history from one block into the next) and a
// network shaped by the stream's preset (whose coefficients and unit
// counts are retrained fresh every block and so carry no state of their
// own across blocks).
type ChannelState struct {
	Preemph preemphasis.Cascade
	Net     *network.Network
}

// NewChannelStates allocates one ChannelState per channel, each with a
// freshly constructed, all-zero network shaped by p.Preset.
func NewChannelStates(p *Params) []*ChannelState {
	states := make([]*ChannelState, p.ChannelCount)
	for i := range states {
		states[i] = &ChannelState{Net: network.New(p.Preset.LayerParamCounts)}
	}
	return states
}

// MSEncode converts a stereo (L, R) sample pair to (M, S) using an
// arithmetic right shift that floors toward negative infinity, per
// spec.md §4.7.
func MSEncode(l, r int32) (m, s int32) {
	return (l + r) >> 1, l - r
}

// MSDecode is the exact inverse of MSEncode.
func MSDecode(m, s int32) (l, r int32) {
	l = m + ((s + (s & 1)) >> 1)
	r = l - s
	return l, r
}

// encodeRshift maps a layer's quantized right-shift onto the wire's
// rshift_bits field: zigzag(coef_bits - rshift), matching the original's
// `uval = LINNE_LPC_COEFFICIENT_BITWIDTH - rshift` (linne_encoder.c:726-728)
// rather than transmitting rshift directly. Fails instead of truncating if
// the result doesn't fit in preset.RshiftBits bits.
func encodeRshift(rshift uint) (uint32, error) {
	x := int64(preset.CoefBits) - int64(rshift)
	code := zigzag.Encode64(x)
	if code > uint64(preset.MaxRshift) {
		return 0, ErrRshiftOverflow
	}
	return uint32(code), nil
}

// decodeRshift is the exact inverse of encodeRshift.
func decodeRshift(code uint32) uint {
	x := zigzag.Decode64(uint64(code))
	return uint(int64(preset.CoefBits) - x)
}

// allZero reports whether every channel's sample buffer is all-zero.
func allZero(channels [][]int32) bool {
	for _, ch := range channels {
		for _, v := range ch {
			if v != 0 {
				return false
			}
		}
	}
	return true
}

// DecideType implements spec.md §4.7's block-type decision: estimate
// per-sample bits via Levinson-Durbin on each channel, averaged; RAW if the
// ratio to bitsPerSample is >= 0.95, else SILENT if every sample of every
// channel is zero, else COMPRESSED.
func DecideType(channels [][]int32, order int, bitsPerSample uint) Type {
	scale := math.Pow(2, -(float64(bitsPerSample) - 1))
	var totalBits float64
	for _, ch := range channels {
		data := make([]float64, len(ch))
		for i, v := range ch {
			data[i] = float64(v) * scale
		}
		totalBits += lpc.EstimateCodeLength(data, bitsPerSample, order)
	}
	avgBits := totalBits / float64(len(channels))
	if avgBits/float64(bitsPerSample) >= rawCompressedRatioThreshold {
		return TypeRaw
	}
	if allZero(channels) {
		return TypeSilent
	}
	return TypeCompressed
}

// Encode writes one block of channels (each len(channels[i]) ==
// samplesInBlock) to w, choosing RAW/SILENT/COMPRESSED per DecideType and
// updating states in place for COMPRESSED blocks.
func Encode(w io.Writer, p *Params, states []*ChannelState, channels [][]int32) error {
	samplesInBlock := uint16(len(channels[0]))
	typ := DecideType(channels, int(p.Preset.LayerParamCounts[0]), p.BitsPerSample)

	var payload bytes.Buffer
	switch typ {
	case TypeRaw:
		if err := writeRawPayload(&payload, channels, p.BitsPerSample); err != nil {
			return err
		}
	case TypeSilent:
		// empty payload; decoder zero-fills.
	case TypeCompressed:
		if err := writeCompressedPayload(&payload, p, states, channels); err != nil {
			return err
		}
	}

	return writeFramed(w, typ, samplesInBlock, payload.Bytes())
}

func writeFramed(w io.Writer, typ Type, samplesInBlock uint16, payload []byte) error {
	var body bytes.Buffer
	body.WriteByte(byte(typ))
	binary.Write(&body, binary.BigEndian, samplesInBlock)
	body.Write(payload)

	blockSize := uint32(2 + body.Len()) // crc16(2) + body, per spec.md's block_size scope

	var out bytes.Buffer
	binary.Write(&out, binary.BigEndian, uint16(syncWord))
	binary.Write(&out, binary.BigEndian, blockSize)
	binary.Write(&out, binary.BigEndian, crc16.Checksum(body.Bytes()))
	out.Write(body.Bytes())

	_, err := w.Write(out.Bytes())
	return err
}

func writeRawPayload(buf *bytes.Buffer, channels [][]int32, bitsPerSample uint) error {
	for _, ch := range channels {
		for _, v := range ch {
			switch bitsPerSample {
			case 8:
				buf.WriteByte(byte(v))
			case 16:
				binary.Write(buf, binary.BigEndian, int16(v))
			case 24:
				buf.WriteByte(byte(v >> 16))
				buf.WriteByte(byte(v >> 8))
				buf.WriteByte(byte(v))
			default:
				return fmt.Errorf("block: unsupported bits_per_sample %d", bitsPerSample)
			}
		}
	}
	return nil
}

// writeCompressedPayload follows the three-phase grouping
// spec.md's ABNF lays out for COMPRESSED: every channel's preemphasis
// state first, then every channel's per-layer headers/coefficients, then
// every channel's residual stream, then byte-padding (via Flush).
func writeCompressedPayload(buf *bytes.Buffer, p *Params, states []*ChannelState, channels [][]int32) error {
	bw := bitstream.NewWriter(buf)
	preemphData := make([][]int32, len(channels))

	for ci, ch := range channels {
		st := states[ci]
		data := append([]int32(nil), ch...)
		st.Preemph.Preemphasize(data)
		preemphData[ci] = data
		for _, stage := range st.Preemph {
			if err := bw.PutBits(uint32(stage.Coef), preemphasis.Shift); err != nil {
				return err
			}
		}
	}

	residuals := make([][]int32, len(channels))
	for ci := range channels {
		st := states[ci]

		scale := math.Pow(2, -(float64(p.BitsPerSample) - 1))
		floatData := make([]float64, len(preemphData[ci]))
		for i, v := range preemphData[ci] {
			floatData[i] = float64(v) * scale
		}
		st.Net.SetUnitsAndParameters(floatData, p.NumAFIterations, p.Preset.RegularizationCandidates)
		if p.EnableLearning {
			network.NewTrainer(st.Net).Train(st.Net, floatData, learningMaxIterations, learningRate, learningLossEpsilon)
		}

		residual := append([]int32(nil), preemphData[ci]...)
		for _, layer := range st.Net.Layers {
			intCoef, rshift := lpc.QuantizeCoefficients(layer.Params, preset.CoefBits)

			log2Units := uint32(0)
			for u := layer.NumUnits; u > 1; u >>= 1 {
				log2Units++
			}
			if err := bw.PutBits(log2Units, preset.NumUnitsBits); err != nil {
				return err
			}
			rshiftCode, err := encodeRshift(rshift)
			if err != nil {
				return err
			}
			if err := bw.PutBits(rshiftCode, preset.RshiftBits); err != nil {
				return err
			}
			for i, c := range intCoef {
				sym := preset.SignMagnitude(c)
				if err := p.Preset.CoefficientCode.Put(bw, sym); err != nil {
					return err
				}
				// Predict with the value the decoder reads back: the
				// sign-magnitude symbol cannot carry -2^(CoefBits-1).
				intCoef[i] = preset.Value(sym)
			}

			residual = predict.Predict(residual, intCoef, layer.NumUnits, uint32(rshift))
		}
		residuals[ci] = residual
	}

	for _, residual := range residuals {
		if err := coder.Encode(bw, residual); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// Decode reads one block from r, validating the CRC-16 unless
// skipCRCCheck is set, and returns its reconstructed per-channel samples.
func Decode(r io.Reader, p *Params, states []*ChannelState, skipCRCCheck bool) ([][]int32, error) {
	var syncBuf [2]byte
	if _, err := io.ReadFull(r, syncBuf[:]); err != nil {
		return nil, err
	}
	sync := binary.BigEndian.Uint16(syncBuf[:])
	if sync != syncWord {
		return nil, fmt.Errorf("block: bad sync word %#04x", sync)
	}

	var sizeBuf [4]byte
	if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
		return nil, err
	}
	blockSize := binary.BigEndian.Uint32(sizeBuf[:])

	var crcBuf [2]byte
	if _, err := io.ReadFull(r, crcBuf[:]); err != nil {
		return nil, err
	}
	storedCRC := binary.BigEndian.Uint16(crcBuf[:])

	body := make([]byte, blockSize-2)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}

	if !skipCRCCheck {
		if got := crc16.Checksum(body); got != storedCRC {
			return nil, ErrCorruption
		}
	}

	typ := Type(body[0])
	samplesInBlock := binary.BigEndian.Uint16(body[1:3])
	payload := body[3:]

	switch typ {
	case TypeRaw:
		return readRawPayload(payload, p.ChannelCount, samplesInBlock, p.BitsPerSample)
	case TypeSilent:
		channels := make([][]int32, p.ChannelCount)
		for i := range channels {
			channels[i] = make([]int32, samplesInBlock)
		}
		return channels, nil
	case TypeCompressed:
		return readCompressedPayload(payload, p, states, samplesInBlock)
	default:
		return nil, fmt.Errorf("block: unknown block type %d", typ)
	}
}

func readRawPayload(payload []byte, channelCount uint32, samplesInBlock uint16, bitsPerSample uint) ([][]int32, error) {
	bytesPerSample := int(bitsPerSample) / 8
	channels := make([][]int32, channelCount)
	off := 0
	for ci := range channels {
		ch := make([]int32, samplesInBlock)
		for i := range ch {
			if off+bytesPerSample > len(payload) {
				return nil, io.ErrUnexpectedEOF
			}
			switch bitsPerSample {
			case 8:
				ch[i] = int32(int8(payload[off]))
			case 16:
				ch[i] = int32(int16(binary.BigEndian.Uint16(payload[off:])))
			case 24:
				v := uint32(payload[off])<<16 | uint32(payload[off+1])<<8 | uint32(payload[off+2])
				if v&0x800000 != 0 {
					v |= 0xFF000000
				}
				ch[i] = int32(v)
			default:
				return nil, fmt.Errorf("block: unsupported bits_per_sample %d", bitsPerSample)
			}
			off += bytesPerSample
		}
		channels[ci] = ch
	}
	return channels, nil
}

type layerHeader struct {
	coef   []int32
	units  uint32
	rshift uint32
}

// readCompressedPayload mirrors writeCompressedPayload's three-phase
// grouping: all channels' preemphasis state, then all channels' per-layer
// headers, then all channels' residual streams.
func readCompressedPayload(payload []byte, p *Params, states []*ChannelState, samplesInBlock uint16) ([][]int32, error) {
	br := bitstream.NewReader(bytes.NewReader(payload))
	channels := make([][]int32, p.ChannelCount)

	for ci := range channels {
		st := states[ci]
		for i := range st.Preemph {
			coef, err := br.GetBits(preemphasis.Shift)
			if err != nil {
				return nil, err
			}
			st.Preemph[i].Coef = int32(coef)
		}
	}

	allLayers := make([][]layerHeader, p.ChannelCount)
	for ci := range channels {
		layers := make([]layerHeader, len(p.Preset.LayerParamCounts))
		for li, numParams := range p.Preset.LayerParamCounts {
			log2Units, err := br.GetBits(preset.NumUnitsBits)
			if err != nil {
				return nil, err
			}
			rshiftCode, err := br.GetBits(preset.RshiftBits)
			if err != nil {
				return nil, err
			}
			rshift := decodeRshift(rshiftCode)
			coef := make([]int32, numParams)
			for i := range coef {
				sym, err := p.Preset.CoefficientCode.Get(br)
				if err != nil {
					return nil, err
				}
				coef[i] = preset.Value(sym)
			}
			layers[li] = layerHeader{coef: coef, units: 1 << log2Units, rshift: uint32(rshift)}
		}
		allLayers[ci] = layers
	}

	for ci := range channels {
		st := states[ci]
		residual, err := coder.Decode(br, uint32(samplesInBlock))
		if err != nil {
			return nil, err
		}

		layers := allLayers[ci]
		for li := len(layers) - 1; li >= 0; li-- {
			l := layers[li]
			predict.Synthesize(residual, l.coef, l.units, l.rshift)
		}

		st.Preemph.Deemphasize(residual)
		channels[ci] = residual
	}

	return channels, nil
}
