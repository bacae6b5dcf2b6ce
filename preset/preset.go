// Package preset holds the immutable, compile-time parameter tables a LINNE
// stream's header selects by index: how many layers the network cascades,
// how many LPC coefficients each layer carries, which ridge-regularization
// candidates the trainer searches over, and the canonical Huffman code used
// to entropy-code quantized coefficients. None of this is per-stream state;
// every encoder and decoder built against the same preset index agree on it
// without exchanging a single byte, the same way the teacher's stream
// package treats STREAMINFO's fixed block-size table as implicit shared
// knowledge rather than wire data.
//
// Grounded on spec.md's Parameter Presets module and the bit-width
// constants it names (coef_bits, num_units_bits, rshift_bits); no
// original_source file survives the original_source/ filter for the preset
// table's actual numeric contents (linne_config.c was not among the files
// kept, per original_source/_INDEX.md), so the frequency table below is an
// illustrative Laplacian-shaped approximation rather than a corpus-trained
// one. See DESIGN.md for the accompanying Open Question resolution.
package preset

import "errors"

var errDecodeNoMatch = errors.New("preset: no huffman code matched input bits")

// Bit widths the wire format fixes regardless of preset (spec.md §3/§5).
const (
	CoefBits     = 8
	NumUnitsBits = 3
	RshiftBits   = 4
	// MaxRshift is the largest value the rshift_bits field can carry. The
	// field doesn't hold rshift directly — it holds
	// zigzag(CoefBits - rshift) (see block.encodeRshift) — so this bounds
	// that zigzag code, not rshift itself.
	MaxRshift = 1<<RshiftBits - 1
)

// MaxUnitsLog2 is the largest log2(units) a NumUnitsBits-wide field can
// carry (the field transmits log2(U), not U itself): 2^NumUnitsBits - 1.
// MaxUnits is therefore 2^MaxUnitsLog2, not the naive
// 2^(NumUnitsBits-1)-1 a literal reading of the layer-unit-count prose
// suggests; see DESIGN.md's U_max resolution.
const (
	MaxUnitsLog2 = 1<<NumUnitsBits - 1
	MaxUnits     = 1 << MaxUnitsLog2
)

// CoefMagnitudeBits is the magnitude width of a sign-magnitude coded
// coefficient: one bit of CoefBits is the sign, so the representable
// magnitude range is [0, 2^(CoefBits-1)-1].
const CoefMagnitudeBits = CoefBits - 1
const CoefMaxMagnitude = 1<<CoefMagnitudeBits - 1

// SignMagnitude maps a quantized coefficient (as produced by
// lpc.QuantizeCoefficients, which can yield -2^(CoefBits-1)) onto the non-negative
// symbol space the Huffman code is built over: bit CoefBits-1 is the sign,
// the low bits are the magnitude. Magnitude is clamped to CoefMaxMagnitude
// so the mapping is total even if a caller passes an out-of-range value.
func SignMagnitude(v int32) uint32 {
	mag := v
	var sign uint32
	if mag < 0 {
		sign = 1
		mag = -mag
	}
	if mag > CoefMaxMagnitude {
		mag = CoefMaxMagnitude
	}
	return sign<<CoefMagnitudeBits | uint32(mag)
}

// Value is the inverse of SignMagnitude for magnitudes up to
// CoefMaxMagnitude; an input clamped by SignMagnitude comes back clamped.
func Value(symbol uint32) int32 {
	mag := int32(symbol & CoefMaxMagnitude)
	if symbol&(1<<CoefMagnitudeBits) != 0 {
		return -mag
	}
	return mag
}

// Preset bundles the per-index constants a header's preset_index selects.
type Preset struct {
	// LayerParamCounts gives, for each cascade layer in order, the number
	// of LPC coefficients that layer's units collectively carry.
	LayerParamCounts []uint32
	// RegularizationCandidates are the ridge terms
	// network.SetUnitsAndParameters sweeps while training, one whole-cascade
	// trial per term; 0 is always included so an unregularized fit stays a
	// candidate.
	RegularizationCandidates []float64
	// CoefficientCode is the canonical Huffman code coefficients are
	// entropy-coded with, shared by every layer and channel.
	CoefficientCode *HuffmanCode
}

// coefficientFrequencyTable returns a Laplacian-shaped relative-frequency
// table over the sign-magnitude symbol alphabet: mass concentrated near
// zero and falling off geometrically with magnitude, matching the way
// quantized LPC coefficients actually distribute (largest-magnitude taps
// are the low-order ones, and those still cluster near zero after
// quantization). Built once at init time; never mutated afterward.
func coefficientFrequencyTable() map[uint32]uint64 {
	const decayPerMille = 850 // each +1 magnitude multiplies weight by 0.85
	freq := make(map[uint32]uint64, 2*CoefMaxMagnitude+1)

	weight := uint64(1_000_000)
	freq[SignMagnitude(0)] = weight
	for mag := int32(1); mag <= CoefMaxMagnitude; mag++ {
		weight = weight * decayPerMille / 1000
		if weight == 0 {
			weight = 1
		}
		freq[SignMagnitude(mag)] = weight
		freq[SignMagnitude(-mag)] = weight
	}
	return freq
}

// Default is the single preset index 0 currently defines: a 3-layer
// cascade (32, 8, 2 coefficients per layer, coarsest-to-finest, mirroring
// linne_network.c's default configuration), a five-point regularization
// sweep, and the package's canonical coefficient Huffman code.
var Default = &Preset{
	LayerParamCounts:         []uint32{32, 8, 2},
	RegularizationCandidates: []float64{0, 1e-5, 1e-4, 1e-3, 1e-2},
	CoefficientCode:          BuildHuffmanCode(coefficientFrequencyTable()),
}

// ByIndex resolves a stream header's preset_index to a Preset. Only index
// 0 is defined; callers must treat any other value as
// ERR_INVALID_FORMAT/DETECT_DATA_CORRUPTION per spec.md §7.
func ByIndex(index uint32) (*Preset, bool) {
	if index == 0 {
		return Default, true
	}
	return nil, false
}
