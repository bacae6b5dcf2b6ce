package linne

import (
	"io"

	"github.com/linne-codec/linne/block"
	"github.com/linne-codec/linne/preset"
)

// encoderState and decoderState implement spec.md §4.8's handle state
// machines: an Encoder moves Created -> ParametersSet before any block may
// be encoded; a Decoder moves Created -> HeaderSet before any block may be
// decoded.
type encoderState int

const (
	encoderCreated encoderState = iota
	encoderParametersSet
)

type decoderState int

const (
	decoderCreated decoderState = iota
	decoderHeaderSet
)

// Encoder is a stateful LINNE stream encoder: construct with NewEncoder,
// then either call EncodeWhole for a complete PCM buffer (it sets the
// parameters itself), or call SetParameters and then EncodeBlock
// repeatedly for streaming use.
type Encoder struct {
	state           encoderState
	header          *Header
	preset          *preset.Preset
	channels        []*block.ChannelState
	enableLearning  bool
	numAFIterations int
}

// NewEncoder returns a freshly-constructed, unconfigured Encoder.
func NewEncoder() *Encoder {
	return &Encoder{state: encoderCreated, numAFIterations: defaultNumAFIterations}
}

// SetEnableLearning toggles the momentum-SGD fine-tuning pass
// (network.Trainer) applied to each block's layer coefficients after the
// auxiliary-function fit. This is the CLI's --enable-learning option
// (spec.md §6); it may be called before or after SetParameters.
func (e *Encoder) SetEnableLearning(enable bool) {
	e.enableLearning = enable
}

// SetNumAFIterations overrides the auxiliary-function solver's iteration
// budget (the CLI's --auxiliary-function-iteration option). May be called
// before or after SetParameters.
func (e *Encoder) SetNumAFIterations(n int) {
	e.numAFIterations = n
}

// SetParameters validates h, resolves its preset, and moves the encoder
// into the ParametersSet state. EncodeBlock fails with ErrParameterNotSet
// until it has been called; EncodeWhole calls it itself with its header.
func (e *Encoder) SetParameters(h *Header) error {
	if h == nil {
		return newError(ErrInvalidArgument, "header is nil")
	}
	if err := h.Validate(); err != nil {
		return err
	}
	p, ok := preset.ByIndex(uint32(h.PresetIndex))
	if !ok {
		return newError(ErrInvalidFormat, "unknown preset_index %d", h.PresetIndex)
	}

	e.header = h
	e.preset = p
	params := &block.Params{
		BitsPerSample:   uint(h.BitsPerSample),
		ChannelCount:    uint32(h.ChannelCount),
		Preset:          p,
		NumAFIterations: e.numAFIterations,
		EnableLearning:  e.enableLearning,
	}
	e.channels = block.NewChannelStates(params)
	e.state = encoderParametersSet
	return nil
}

// defaultNumAFIterations is the auxiliary-function solver iteration budget
// EncodeWhole/EncodeBlock use unless overridden via SetNumAFIterations;
// spec.md's CLI exposes this as --auxiliary-function-iteration.
const defaultNumAFIterations = 4

// EncodeBlock encodes one block of per-channel samples (channels[i] has
// len == samplesInBlock <= header.SamplesPerBlock), applying mid/side
// decorrelation first if the header requests it.
func (e *Encoder) EncodeBlock(w io.Writer, channels [][]int32) error {
	if e.state != encoderParametersSet {
		return newError(ErrParameterNotSet, "SetParameters must be called before EncodeBlock")
	}
	encChannels := applyMidSideEncode(channels, e.header.ChannelProcessMethod)
	params := &block.Params{
		BitsPerSample:   uint(e.header.BitsPerSample),
		ChannelCount:    uint32(e.header.ChannelCount),
		Preset:          e.preset,
		NumAFIterations: e.numAFIterations,
		EnableLearning:  e.enableLearning,
	}
	return block.Encode(w, params, e.channels, encChannels)
}

// EncodeWhole writes h's 30-byte header followed by every block of pcm
// (pcm[c] holds channel c's entire sample sequence, each of equal length
// h.TotalSamplesPerChan), chunked into h.SamplesPerBlock-sized blocks (the
// final block may be shorter).
func (e *Encoder) EncodeWhole(w io.Writer, h *Header, pcm [][]int32) error {
	if err := e.SetParameters(h); err != nil {
		return err
	}
	if uint16(len(pcm)) != h.ChannelCount {
		return newError(ErrInvalidArgument, "pcm has %d channels, header says %d", len(pcm), h.ChannelCount)
	}
	for _, ch := range pcm {
		if uint32(len(ch)) != h.TotalSamplesPerChan {
			return newError(ErrInvalidArgument, "channel length %d != total_samples_per_channel %d", len(ch), h.TotalSamplesPerChan)
		}
	}

	if _, err := w.Write(h.Marshal()); err != nil {
		return err
	}

	total := h.TotalSamplesPerChan
	blockSize := h.SamplesPerBlock
	for start := uint32(0); start < total; start += blockSize {
		end := start + blockSize
		if end > total {
			end = total
		}
		chunk := make([][]int32, len(pcm))
		for c, ch := range pcm {
			chunk[c] = ch[start:end]
		}
		if err := e.EncodeBlock(w, chunk); err != nil {
			return err
		}
	}
	return nil
}

// Decoder is a stateful LINNE stream decoder: construct with NewDecoder,
// call SetHeader (directly, or implicitly via DecodeWhole) before any
// DecodeBlock call.
type Decoder struct {
	state        decoderState
	header       *Header
	preset       *preset.Preset
	channels     []*block.ChannelState
	skipCRCCheck bool
}

// NewDecoder returns a freshly-constructed, unconfigured Decoder.
// skipCRCCheck disables per-block CRC-16 validation (the CLI's
// --no-crc-check option).
func NewDecoder(skipCRCCheck bool) *Decoder {
	return &Decoder{state: decoderCreated, skipCRCCheck: skipCRCCheck}
}

// SetHeader reads and validates a 30-byte header from r and moves the
// decoder into the HeaderSet state.
func (d *Decoder) SetHeader(r io.Reader) (*Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return nil, newError(ErrInsufficientData, "truncated header")
		}
		return nil, err
	}
	h, err := UnmarshalHeader(buf)
	if err != nil {
		return nil, err
	}
	p, ok := preset.ByIndex(uint32(h.PresetIndex))
	if !ok {
		return nil, newError(ErrInvalidFormat, "unknown preset_index %d", h.PresetIndex)
	}

	d.header = h
	d.preset = p
	params := &block.Params{
		BitsPerSample: uint(h.BitsPerSample),
		ChannelCount:  uint32(h.ChannelCount),
		Preset:        p,
	}
	d.channels = block.NewChannelStates(params)
	d.state = decoderHeaderSet
	return h, nil
}

// DecodeBlock decodes one block from r and reverses mid/side
// decorrelation if the header requested it.
func (d *Decoder) DecodeBlock(r io.Reader) ([][]int32, error) {
	if d.state != decoderHeaderSet {
		return nil, newError(ErrParameterNotSet, "SetHeader must be called before DecodeBlock")
	}
	params := &block.Params{
		BitsPerSample: uint(d.header.BitsPerSample),
		ChannelCount:  uint32(d.header.ChannelCount),
		Preset:        d.preset,
	}
	decoded, err := block.Decode(r, params, d.channels, d.skipCRCCheck)
	if err != nil {
		if err == block.ErrCorruption {
			return nil, newError(ErrDetectDataCorruption, "%v", err)
		}
		return nil, err
	}
	return applyMidSideDecode(decoded, d.header.ChannelProcessMethod), nil
}

// DecodeWhole reads a full stream from r: the header, then every block
// until TotalSamplesPerChan samples per channel have been decoded.
// Returns the header and the concatenated per-channel PCM.
func (d *Decoder) DecodeWhole(r io.Reader) (*Header, [][]int32, error) {
	h, err := d.SetHeader(r)
	if err != nil {
		return nil, nil, err
	}

	pcm := make([][]int32, h.ChannelCount)
	for i := range pcm {
		pcm[i] = make([]int32, 0, h.TotalSamplesPerChan)
	}

	var decoded uint32
	for decoded < h.TotalSamplesPerChan {
		blk, err := d.DecodeBlock(r)
		if err != nil {
			return nil, nil, err
		}
		for c := range pcm {
			pcm[c] = append(pcm[c], blk[c]...)
		}
		decoded += uint32(len(blk[0]))
	}
	return h, pcm, nil
}

// applyMidSideEncode converts a stereo channel pair to (M, S) in channels
// 0 and 1 when method requests it; for passthrough, or any channel count
// the format doesn't mid/side-encode, channels pass through unchanged.
func applyMidSideEncode(channels [][]int32, method ChannelProcessMethod) [][]int32 {
	if method != ChannelProcessMidSide {
		return channels
	}
	out := make([][]int32, len(channels))
	copy(out, channels)
	l, r := channels[0], channels[1]
	m := make([]int32, len(l))
	s := make([]int32, len(l))
	for i := range l {
		m[i], s[i] = block.MSEncode(l[i], r[i])
	}
	out[0], out[1] = m, s
	return out
}

// applyMidSideDecode is the exact inverse of applyMidSideEncode.
func applyMidSideDecode(channels [][]int32, method ChannelProcessMethod) [][]int32 {
	if method != ChannelProcessMidSide {
		return channels
	}
	out := make([][]int32, len(channels))
	copy(out, channels)
	m, s := channels[0], channels[1]
	l := make([]int32, len(m))
	r := make([]int32, len(m))
	for i := range m {
		l[i], r[i] = block.MSDecode(m[i], s[i])
	}
	out[0], out[1] = l, r
	return out
}
