// Package network implements the LINNE layered-LPC cascade: a sequence of
// unit-partitioned linear-prediction layers, each turning its input into a
// residual that feeds the next layer, with a per-layer, power-of-two unit
// count and ridge-regularization term chosen by search rather than fixed in
// advance. Grounded throughout on
// original_source/libs/linne_network/src/linne_network.c
// (LINNENetworkLayer_Forward/Backward, LINNENetworkLayer_SearchOptimalNumUnits,
// LINNENetwork_SetUnitsAndParameters, LINNENetworkTrainer_Train), which has
// no FLAC analogue in the teacher — FLAC fits one fixed-order LPC subframe
// per channel per frame, not a cascade of power-of-two-unit layers searched
// per block.
package network

import (
	"math"

	"github.com/linne-codec/linne/lpc"
	"github.com/linne-codec/linne/preset"
)

// numAFIterationsDetermineUnit is the fixed, cheap iteration count used
// while searching for a layer's best unit count or regularization term;
// the caller's requested num_af_iterations is only spent on the final,
// already-chosen configuration (LINNE_NUM_AF_METHOD_ITERATION_DETERMINEUNIT
// in the source).
const numAFIterationsDetermineUnit = 1

// Layer is one stage of the cascade: num_units independent, equally-sized
// convolutional units sharing a layer-wide coefficient count.
type Layer struct {
	NumParams uint32
	NumUnits  uint32
	Params    []float64 // len == NumParams, shared across all units as nparams/units-sized groups

	din, dout []float64 // forward input / backprop output, retained between Forward and Backward
}

// NewLayer allocates a zero-initialized layer with num_units fixed at 1;
// SearchOptimalNumUnits or a direct assignment updates NumUnits before
// Forward/Backward are meaningful.
func NewLayer(numParams uint32) *Layer {
	return &Layer{
		NumParams: numParams,
		NumUnits:  1,
		Params:    make([]float64, numParams),
	}
}

// Forward computes each unit's residual in place over data (len ==
// num_samples, a multiple of NumUnits), retaining a copy of the input for
// use by a following Backward call. Matches LINNENetworkLayer_Forward:
// coefficient index 0 is the oldest tap, growing toward the most recent
// sample — the reverse of a conventional FIR ordering — and the first
// nparams_per_unit-1 samples of unit 0 predict against a zero-padded
// (implicit) history rather than being skipped.
func (l *Layer) Forward(data []float64) {
	numSamples := uint32(len(data))
	l.din = append(l.din[:0], data...)

	nsmplsPerUnit := numSamples / l.NumUnits
	nparamsPerUnit := l.NumParams / l.NumUnits

	for unit := uint32(0); unit < l.NumUnits; unit++ {
		pparams := l.Params[unit*nparamsPerUnit : (unit+1)*nparamsPerUnit]
		pdin := l.din[unit*nsmplsPerUnit : (unit+1)*nsmplsPerUnit]
		presidual := data[unit*nsmplsPerUnit : (unit+1)*nsmplsPerUnit]

		if unit == 0 {
			for i := uint32(1); i < nparamsPerUnit; i++ {
				var predict float64
				for j := uint32(0); j < i; j++ {
					predict += pparams[nparamsPerUnit-i+j] * pdin[j]
				}
				presidual[i] += predict
			}
		}
		for i := nparamsPerUnit; i < nsmplsPerUnit; i++ {
			var predict float64
			for j := uint32(0); j < nparamsPerUnit; j++ {
				predict += pparams[j] * pdin[i-nparamsPerUnit+j]
			}
			presidual[i] += predict
		}
	}
}

// Backward back-propagates data (the gradient flowing in from the next
// layer, or from the loss on the last layer) through this layer, writing
// the parameter gradient into dparams and data's own updated gradient in
// place. Must follow a Forward call on the same din. Matches
// LINNENetworkLayer_Backward.
func (l *Layer) Backward(data []float64, dparams []float64) {
	numSamples := uint32(len(data))
	l.dout = append(l.dout[:0], data...)

	nsmplsPerUnit := numSamples / l.NumUnits
	nparamsPerUnit := l.NumParams / l.NumUnits

	for unit := uint32(0); unit < l.NumUnits; unit++ {
		pin := l.din[unit*nsmplsPerUnit : (unit+1)*nsmplsPerUnit]
		pout := l.dout[unit*nsmplsPerUnit : (unit+1)*nsmplsPerUnit]
		pparams := l.Params[unit*nparamsPerUnit : (unit+1)*nparamsPerUnit]
		pback := data[unit*nsmplsPerUnit : (unit+1)*nsmplsPerUnit]
		pdparams := dparams[unit*nparamsPerUnit : (unit+1)*nparamsPerUnit]

		for i := uint32(0); i < nparamsPerUnit; i++ {
			var g float64
			for j := uint32(0); j < nsmplsPerUnit-nparamsPerUnit+i; j++ {
				g += pin[j] * pout[nparamsPerUnit-i+j]
			}
			pdparams[i] = g
		}

		var i uint32
		for i = 0; i < nsmplsPerUnit-nparamsPerUnit; i++ {
			var back float64
			for j := uint32(0); j < nparamsPerUnit; j++ {
				back += pparams[j] * pout[nparamsPerUnit+i-j]
			}
			pback[i] += back / float64(nparamsPerUnit)
		}
		for ; i < nsmplsPerUnit; i++ {
			var back float64
			for j := uint32(0); j < nparamsPerUnit; j++ {
				if nparamsPerUnit+i-j < nsmplsPerUnit {
					back += pparams[j] * pout[nparamsPerUnit+i-j]
				}
			}
			pback[i] += back / float64(nparamsPerUnit)
		}
	}
}

// l1NormLoss is the cascade's training loss: mean absolute residual.
func l1NormLoss(data []float64) float64 {
	var norm float64
	for _, v := range data {
		norm += math.Abs(v)
	}
	return norm / float64(len(data))
}

func l1NormBackward(data []float64) {
	n := float64(len(data))
	for i, v := range data {
		var sign float64
		switch {
		case v > 0:
			sign = 1
		case v < 0:
			sign = -1
		}
		data[i] = sign / n
	}
}

// reverseInPlace flips a unit's coefficient order: the AF solver returns
// coefficients in natural order (tap 0 = most recent lag), but Forward's
// convolution wants the oldest tap first so increasing index always walks
// forward in time. Matches the source's explicit swap loop.
func reverseInPlace(v []float64) {
	for i, j := 0, len(v)-1; i < j; i, j = i+1, j-1 {
		v[i], v[j] = v[j], v[i]
	}
}

// SearchOptimalNumUnits tries every power-of-two unit count from 1 up to
// min(maxUnits, l.NumParams) that evenly divides both l.NumParams and
// len(input), fits cheap (1-iteration) coefficients for each candidate, and
// returns whichever unit count minimizes mean absolute one-step-ahead
// prediction error. maxUnits must be a power of two (preset.MaxUnits).
func SearchOptimalNumUnits(numParams uint32, input []float64, maxUnits uint32, regularTerm float64) uint32 {
	numSamples := uint32(len(input))
	bestNumUnits := uint32(0)
	minLoss := math.MaxFloat64

	limit := maxUnits
	if numParams < limit {
		limit = numParams
	}

	for nunits := uint32(1); nunits <= limit; nunits <<= 1 {
		if numParams%nunits != 0 || numSamples%nunits != 0 {
			continue
		}
		nparamsPerUnit := numParams / nunits
		nsmplsPerUnit := numSamples / nunits

		var meanLoss float64
		for unit := uint32(0); unit < nunits; unit++ {
			pinput := input[unit*nsmplsPerUnit : (unit+1)*nsmplsPerUnit]
			pparams := lpc.CalculateCoefficientsAF(pinput, int(nparamsPerUnit), numAFIterationsDetermineUnit, lpc.WindowWelch, regularTerm)
			reverseInPlace(pparams)

			smpl := nparamsPerUnit
			if unit == 0 {
				for smpl = 1; smpl < nparamsPerUnit; smpl++ {
					residual := pinput[smpl]
					for k := uint32(0); k < smpl; k++ {
						residual += pparams[nparamsPerUnit-smpl+k] * pinput[k]
					}
					meanLoss += math.Abs(residual)
				}
			}
			for ; smpl < nsmplsPerUnit; smpl++ {
				residual := pinput[smpl]
				for k := uint32(0); k < nparamsPerUnit; k++ {
					residual += pparams[k] * pinput[smpl-nparamsPerUnit+k]
				}
				meanLoss += math.Abs(residual)
			}
		}
		meanLoss /= float64(numSamples)
		if meanLoss < minLoss {
			minLoss = meanLoss
			bestNumUnits = nunits
		}
	}
	return bestNumUnits
}

// SetParameter fits l.Params from input at l.NumUnits (already decided),
// running numAFIterations of the auxiliary-function solver per unit.
// Matches LINNENetworkLayer_SetParameter.
func (l *Layer) SetParameter(input []float64, numAFIterations int, regularTerm float64) {
	nparamsPerUnit := l.NumParams / l.NumUnits
	nsmplsPerUnit := uint32(len(input)) / l.NumUnits

	for unit := uint32(0); unit < l.NumUnits; unit++ {
		pinput := input[unit*nsmplsPerUnit : (unit+1)*nsmplsPerUnit]
		pparams := lpc.CalculateCoefficientsAF(pinput, int(nparamsPerUnit), numAFIterations, lpc.WindowWelch, regularTerm)
		reverseInPlace(pparams)
		copy(l.Params[unit*nparamsPerUnit:(unit+1)*nparamsPerUnit], pparams)
	}
}

// Network is the full layered cascade, one Layer per entry in
// preset.Preset.LayerParamCounts.
type Network struct {
	Layers []*Layer
}

// New builds an all-zero-coefficient network with one layer per entry of
// layerParamCounts.
func New(layerParamCounts []uint32) *Network {
	n := &Network{Layers: make([]*Layer, len(layerParamCounts))}
	for i, np := range layerParamCounts {
		n.Layers[i] = NewLayer(np)
	}
	return n
}

// CalculateLoss runs every layer's Forward in sequence over data (in
// place, data ends as the final layer's residual) and returns the L1-norm
// training loss of the result. Matches LINNENetwork_CalculateLoss.
func (n *Network) CalculateLoss(data []float64) float64 {
	for _, l := range n.Layers {
		l.Forward(data)
	}
	return l1NormLoss(data)
}

// calculateGradient runs a full forward pass (for the loss and to populate
// each layer's din/dout state) followed by a full backward pass, leaving
// each layer's parameter gradient populated in dparams. Matches
// LINNENetwork_CalculateGradient.
func (n *Network) calculateGradient(data []float64, dparams [][]float64) float64 {
	loss := n.CalculateLoss(data)
	l1NormBackward(data)
	for i := len(n.Layers) - 1; i >= 0; i-- {
		n.Layers[i].Backward(data, dparams[i])
	}
	return loss
}

// searchSetUnitsAndParameters runs one full regularization-candidate trial:
// for each layer in order, search its best unit count against the
// still-residual signal from the previous layer's forward pass, fit that
// unit count's coefficients with numAFIterations, then forward the layer
// so the next layer searches against this layer's residual. Returns the
// resulting whole-network loss. Matches
// LINNENetwork_SearchSetUnitsAndParameters.
func (n *Network) searchSetUnitsAndParameters(input []float64, numAFIterations int, regularTerm float64) float64 {
	data := append([]float64(nil), input...)
	for _, l := range n.Layers {
		limit := preset.MaxUnits
		if l.NumParams < uint32(limit) {
			limit = int(l.NumParams)
		}
		l.NumUnits = SearchOptimalNumUnits(l.NumParams, data, uint32(limit), regularTerm)
		l.SetParameter(data, numAFIterations, regularTerm)
		l.Forward(data)
	}
	return l1NormLoss(data)
}

// SetUnitsAndParameters is the network's full training entry point: it
// tries every candidate regularization term cheaply
// (numAFIterationsDetermineUnit iterations per layer), picks whichever
// minimizes the whole-cascade residual loss, then re-runs the winning
// candidate with the caller's full numAFIterations budget so the final
// parameters aren't limited to the cheap search's iteration count. Matches
// LINNENetwork_SetUnitsAndParameters.
func (n *Network) SetUnitsAndParameters(input []float64, numAFIterations int, regularizationCandidates []float64) {
	minLoss := math.MaxFloat64
	bestIdx := 0
	for i, rt := range regularizationCandidates {
		loss := n.searchSetUnitsAndParameters(input, numAFIterationsDetermineUnit, rt)
		if loss < minLoss {
			minLoss = loss
			bestIdx = i
		}
	}
	n.searchSetUnitsAndParameters(input, numAFIterations, regularizationCandidates[bestIdx])
}

// ResetParameters zeroes every layer's coefficients.
func (n *Network) ResetParameters() {
	for _, l := range n.Layers {
		for i := range l.Params {
			l.Params[i] = 0
		}
	}
}

// EstimateCodeLength estimates the whole cascade's per-sample code length
// using only the first layer's order, matching the source's
// LINNENetwork_EstimateCodeLength (explicitly a first-layer-only
// approximation upstream, not a full-cascade estimate).
func (n *Network) EstimateCodeLength(data []float64, bitsPerSample uint) float64 {
	return lpc.EstimateCodeLength(data, bitsPerSample, int(n.Layers[0].NumParams))
}

// Trainer runs momentum-SGD fine-tuning over a Network's parameters after
// SetUnitsAndParameters has fixed unit counts and seeded coefficients.
// Matches LINNENetworkTrainer_Train; the source's AdaGrad/Adam variants are
// '#if 0'-disabled dead code and have no Go counterpart here.
type Trainer struct {
	momentum     [][]float64
	momentumAlpha float64
}

// NewTrainer allocates momentum state for a network shaped like net.
func NewTrainer(net *Network) *Trainer {
	t := &Trainer{momentum: make([][]float64, len(net.Layers)), momentumAlpha: 0.8}
	for i, l := range net.Layers {
		t.momentum[i] = make([]float64, len(l.Params))
	}
	return t
}

// Train runs up to maxIterations of momentum-SGD, stopping early once the
// loss changes by less than lossEpsilon between iterations.
func (t *Trainer) Train(net *Network, input []float64, maxIterations int, learningRate, lossEpsilon float64) {
	dparams := make([][]float64, len(net.Layers))
	for i, l := range net.Layers {
		dparams[i] = make([]float64, len(l.Params))
		for j := range t.momentum[i] {
			t.momentum[i][j] = 0
		}
	}

	prevLoss := math.MaxFloat64
	data := make([]float64, len(input))
	for iter := 0; iter < maxIterations; iter++ {
		copy(data, input)
		loss := net.calculateGradient(data, dparams)
		for li, l := range net.Layers {
			for i := range l.Params {
				t.momentum[li][i] = t.momentumAlpha*t.momentum[li][i] + learningRate*dparams[li][i]
				l.Params[i] -= t.momentum[li][i]
			}
		}
		if math.Abs(loss-prevLoss) < lossEpsilon {
			break
		}
		prevLoss = loss
	}
}
