// Package predict implements LINNE's integer, in-place LPC prediction and
// synthesis: the fixed-point FIR filter that turns a block of PCM (or the
// residual of a previous network layer) into the residual of the next
// layer, and its exact inverse. Every operation runs in pure integer
// arithmetic with an explicit arithmetic right shift, so encode and decode
// reconstruct bit-identically. Grounded on
// original_source/libs/lpc/src/lpc.c's LPC_Predict/LPC_Synthesize,
// generalized to the unit-partitioned form
// original_source/libs/linne_network/src/linne_network.c's layer forward
// pass requires (each layer splits into U independent units, each with its
// own coefficient vector over its own contiguous sample range).
package predict

import "github.com/linne-codec/linne/internal/fixed"

// Predict runs the encoder-side filter: dest is initialized to a copy of
// src, then for each of the U units (samples_in_block/U samples each,
// coefficients len(coef)/U each) the prediction for coefficients.len()
// samples ahead is subtracted in by addition of the negated-coefficient
// convention (coef is expected pre-negated, as LPC.CalculateCoefficientsAF
// already negates its solution). Unit 0 additionally predicts its warm-up
// region (samples 1..P-1) against the growing prefix; every other unit's
// first P samples pass through unpredicted, matching the source's
// boundary handling. Every later sample of a unit, up to its last, is
// predicted. When len(src) is not a multiple of units, the samples after
// the last whole unit are left as a passthrough copy of src.
func Predict(src []int32, coef []int32, units uint32, rshift uint32) []int32 {
	dest := make([]int32, len(src))
	copy(dest, src)

	numSamples := uint32(len(src))
	p := uint32(len(coef)) / units
	s := numSamples / units

	for unit := uint32(0); unit < units; unit++ {
		unitCoef := coef[unit*p : (unit+1)*p]
		data := src[unit*s : (unit+1)*s]
		residual := dest[unit*s : (unit+1)*s]

		start := p
		if unit == 0 {
			start = 1
		}
		for t := start; t < p && t < s; t++ {
			predict := int32(1) << (rshift - 1)
			for k := uint32(0); k < t; k++ {
				predict += unitCoef[p-t+k] * data[k]
			}
			residual[t] += fixed.ShiftRightArithmetic(predict, uint(rshift))
		}
		for t := p; t < s; t++ {
			predict := int32(1) << (rshift - 1)
			for k := uint32(0); k < p; k++ {
				predict += unitCoef[k] * data[t-p+k]
			}
			residual[t] += fixed.ShiftRightArithmetic(predict, uint(rshift))
		}
	}
	return dest
}

// Synthesize reverses Predict in place: data holds residuals on entry and
// reconstructed samples on return.
func Synthesize(data []int32, coef []int32, units uint32, rshift uint32) {
	numSamples := uint32(len(data))
	p := uint32(len(coef)) / units
	s := numSamples / units

	for unit := uint32(0); unit < units; unit++ {
		unitCoef := coef[unit*p : (unit+1)*p]
		unitData := data[unit*s : (unit+1)*s]

		start := p
		if unit == 0 {
			start = 1
		}
		for t := start; t < p && t < s; t++ {
			predict := int32(1) << (rshift - 1)
			for k := uint32(0); k < t; k++ {
				predict += unitCoef[p-t+k] * unitData[k]
			}
			unitData[t] -= fixed.ShiftRightArithmetic(predict, uint(rshift))
		}
		for t := p; t < s; t++ {
			predict := int32(1) << (rshift - 1)
			for k := uint32(0); k < p; k++ {
				predict += unitCoef[k] * unitData[t-p+k]
			}
			unitData[t] -= fixed.ShiftRightArithmetic(predict, uint(rshift))
		}
	}
}
