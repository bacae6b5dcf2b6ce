// Package preemphasis implements LINNE's cascaded adaptive first-order
// preemphasis/deemphasis filters, applied to each channel before the LPC
// network and reversed after it. Grounded on the
// LINNEPreemphasisFilter_* family declared in
// original_source/libs/linne_internal/include/linne_utility.h (two
// persistent per-channel filter stages, an adaptive coefficient
// recomputed once per block from the current buffer, and a carried-over
// previous-sample seed).
package preemphasis

import "github.com/linne-codec/linne/internal/fixed"

// Shift is the fixed-point shift both the coefficient and the filter's
// predict-and-subtract step use; the coefficient is always in [0, 2^Shift).
const Shift = 5

// Stages is the number of cascaded filter stages LINNE applies per
// channel (LINNE_NUM_PREEMPHASIS_FILTERS in the source).
const Stages = 2

// Filter is one adaptive first-order preemphasis/deemphasis stage. Its
// zero value is a valid, silent-start filter.
type Filter struct {
	Prev int32
	Coef int32
}

// CalculateCoefficient re-estimates Coef from buffer via a closed-form
// normalized-cross-correlation estimator: the coefficient that best
// predicts buffer[i] from buffer[i-1] (using f.Prev to seed buffer[-1]),
// clamped to the non-negative range the format transmits.
func (f *Filter) CalculateCoefficient(buffer []int32) {
	var num, den float64
	prev := float64(f.Prev)
	for _, x := range buffer {
		cur := float64(x)
		num += cur * prev
		den += prev * prev
		prev = cur
	}

	max := int32(1)<<Shift - 1
	if den == 0 {
		f.Coef = 0
		return
	}
	coef := int32(fixed.RoundNearest(num / den * float64(int32(1)<<Shift)))
	f.Coef = fixed.ClampInt32(coef, 0, max)
}

// Preemphasis applies the filter to buffer in place (encoder direction):
// buffer[i] -= (Coef * prev) >> Shift, where prev is the original
// (pre-filter) sample preceding buffer[i].
func (f *Filter) Preemphasis(buffer []int32) {
	prev := f.Prev
	for i, x := range buffer {
		predict := fixed.ShiftRightArithmetic(f.Coef*prev, Shift)
		prev = x
		buffer[i] = x - predict
	}
	f.Prev = prev
}

// Deemphasis reverses Preemphasis in place (decoder direction): buffer[i]
// += (Coef * prev) >> Shift, where prev is the just-reconstructed sample
// preceding buffer[i].
func (f *Filter) Deemphasis(buffer []int32) {
	prev := f.Prev
	for i, y := range buffer {
		predict := fixed.ShiftRightArithmetic(f.Coef*prev, Shift)
		x := y + predict
		buffer[i] = x
		prev = x
	}
	f.Prev = prev
}

// Cascade is the two-stage filter chain LINNE runs per channel.
type Cascade [Stages]Filter

// Preemphasize recomputes each stage's coefficient from its current input
// and applies it, stage 0 first, feeding stage 0's output into stage 1.
func (c *Cascade) Preemphasize(buffer []int32) {
	for i := range c {
		c[i].CalculateCoefficient(buffer)
		c[i].Preemphasis(buffer)
	}
}

// Deemphasize reverses Preemphasize in place: stage 1 is undone first,
// then stage 0, using each stage's already-known coefficient.
func (c *Cascade) Deemphasize(buffer []int32) {
	for i := len(c) - 1; i >= 0; i-- {
		c[i].Deemphasis(buffer)
	}
}
