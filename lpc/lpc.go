// Package lpc implements the LPC coefficient solvers LINNE's layered
// network uses to build each layer's predictor: classic Levinson-Durbin
// recursion (autocorrelation method), used by EstimateCodeLength for the
// block-type (raw vs. compressed) decision, and an auxiliary-function (iteratively reweighted least squares)
// solver for the per-unit coefficients the network actually quantizes and
// transmits. Grounded on original_source/libs/lpc/src/lpc.c.
package lpc

import (
	"math"

	"github.com/linne-codec/linne/internal/fixed"
)

// silenceEpsilon guards the Levinson-Durbin recursion and the AF solver's
// Cholesky step against near-zero energy input, matching lpc.c's
// FLT_EPSILON comparisons against auto_corr[0].
const silenceEpsilon = 1.1920929e-7 // float32 epsilon, as used by the source's FLT_EPSILON

// afResidualEpsilon floors the per-sample residual used as an IRLS weight
// denominator, avoiding division by zero on exactly-predicted samples.
const afResidualEpsilon = 1e-6

// betaConstForLaplace is sqrt(2*e*e), the Laplace-distribution entropy
// constant EstimateCodeLength folds into its bits-per-sample estimate.
const betaConstForLaplace = 1.9426950408889634

// WindowType selects the apodization window CalculateCoefficientsAF (and
// EstimateCodeLength) multiply onto the input before fitting.
type WindowType int

const (
	// WindowWelch is used for the network's primary coefficient fit.
	WindowWelch WindowType = iota
	// WindowSine is used for reproducible code-length estimation.
	WindowSine
)

// ApplyWindow returns a windowed copy of data; the original is untouched.
func ApplyWindow(data []float64, w WindowType) []float64 {
	n := len(data)
	out := make([]float64, n)
	if n <= 1 {
		copy(out, data)
		return out
	}
	switch w {
	case WindowSine:
		for i, x := range data {
			out[i] = x * math.Sin(math.Pi*float64(i)/float64(n-1))
		}
	default: // WindowWelch
		for i, x := range data {
			t := (2.0*float64(i)/float64(n-1) - 1.0)
			out[i] = x * (1.0 - t*t)
		}
	}
	return out
}

// Autocorrelation computes R[0..order) of data using a blocked
// inner-product layout that reuses overlapping products once lag is small
// relative to num_samples, as lpc.c's LPC_CalculateAutoCorrelation does.
func Autocorrelation(data []float64, order int) []float64 {
	n := uint32(len(data))
	r := make([]float64, order)
	if order == 0 {
		return r
	}
	for i := uint32(0); i < n; i++ {
		r[0] += data[i] * data[i]
	}
	for lag := uint32(1); lag < uint32(order); lag++ {
		lag2 := lag << 1
		var l uint32
		if 3*lag < n {
			l = 1 + (n-3*lag)/lag2
		}
		llag2 := l * lag2
		for i := uint32(0); i < lag; i++ {
			for off := uint32(0); off < llag2; off += lag2 {
				r[lag] += data[off+lag+i] * (data[off+i] + data[off+lag2+i])
			}
		}
		for i := uint32(0); i < n-llag2-lag; i++ {
			r[lag] += data[llag2+lag+i] * data[llag2+i]
		}
	}
	return r
}

// LevinsonDurbin computes LPC coefficients (index 0 omitted, always 1.0 in
// the source's a_vec convention) and PARCOR reflection coefficients from
// autocorrelation R[0..order]. Returns all-zero coefficients when R[0] is
// below silenceEpsilon (the signal is effectively silent).
func LevinsonDurbin(autocorr []float64, order int) (coef, parcor []float64) {
	coef = make([]float64, order)
	parcor = make([]float64, order+1)
	if math.Abs(autocorr[0]) < silenceEpsilon {
		return coef, parcor
	}

	aVec := make([]float64, order+2)
	uVec := make([]float64, order+2)
	vVec := make([]float64, order+2)
	eVec := make([]float64, order+2)

	aVec[0] = 1.0
	eVec[0] = autocorr[0]
	aVec[1] = -autocorr[1] / autocorr[0]
	parcor[0] = 0.0
	parcor[1] = autocorr[1] / eVec[0]
	eVec[1] = autocorr[0] + autocorr[1]*aVec[1]
	uVec[0], uVec[1] = 1.0, 0.0
	vVec[0], vVec[1] = 0.0, 1.0

	for delay := 1; delay < order; delay++ {
		var gamma float64
		for i := 0; i <= delay; i++ {
			gamma += aVec[i] * autocorr[delay+1-i]
		}
		gamma /= -eVec[delay]
		eVec[delay+1] = (1.0 - gamma*gamma) * eVec[delay]

		for i := 0; i < delay; i++ {
			uVec[i+1] = aVec[i+1]
			vVec[delay-i] = aVec[i+1]
		}
		uVec[0], uVec[delay+1] = 1.0, 0.0
		vVec[0], vVec[delay+1] = 0.0, 1.0

		for i := 0; i <= delay+1; i++ {
			aVec[i] = uVec[i] + gamma*vVec[i]
		}
		parcor[delay+1] = -gamma
	}

	copy(coef, aVec[1:order+1])
	return coef, parcor
}

// choleskyDecompose solves Amat * x = bvec via Cholesky decomposition,
// returning false if a non-positive pivot is found (Amat is singular, per
// the source's LPC_ERROR_SINGULAR_MATRIX case).
func choleskyDecompose(amat [][]float64, bvec []float64) (xvec []float64, ok bool) {
	dim := len(bvec)
	invDiag := make([]float64, dim)
	xvec = make([]float64, dim)

	for i := 0; i < dim; i++ {
		sum := amat[i][i]
		for k := i - 1; k >= 0; k-- {
			sum -= amat[i][k] * amat[i][k]
		}
		if sum <= 0.0 {
			return nil, false
		}
		invDiag[i] = math.Pow(sum, -0.5)
		for j := i + 1; j < dim; j++ {
			sum = amat[i][j]
			for k := i - 1; k >= 0; k-- {
				sum -= amat[i][k] * amat[j][k]
			}
			amat[j][i] = sum * invDiag[i]
		}
	}

	for i := 0; i < dim; i++ {
		sum := bvec[i]
		for j := i - 1; j >= 0; j-- {
			sum -= amat[i][j] * xvec[j]
		}
		xvec[i] = sum * invDiag[i]
	}
	for i := dim - 1; i >= 0; i-- {
		sum := xvec[i]
		for j := i + 1; j < dim; j++ {
			sum -= amat[j][i] * xvec[j]
		}
		xvec[i] = sum * invDiag[i]
	}
	return xvec, true
}

// afCoefMatrixAndVector accumulates the IRLS weighted normal-equation
// matrix and vector for the current coefficient estimate a, and returns
// the mean absolute residual (the objective value).
func afCoefMatrixAndVector(data []float64, aVec []float64, order int, regularTerm float64) (rMat [][]float64, rVec []float64, objValue float64) {
	n := len(data)
	rMat = make([][]float64, order)
	for i := range rMat {
		rMat[i] = make([]float64, order)
	}
	rVec = make([]float64, order)

	for smpl := order; smpl < n; smpl++ {
		residual := data[smpl]
		for i := 0; i < order; i++ {
			residual -= aVec[i] * data[smpl-i-1]
		}
		residual = math.Abs(residual)
		objValue += residual
		if residual < afResidualEpsilon {
			residual = afResidualEpsilon
		}
		invResidual := 1.0 / residual
		for i := 0; i < order; i++ {
			rVec[i] += data[smpl] * data[smpl-i-1] * invResidual
			for j := i; j < order; j++ {
				rMat[i][j] += data[smpl-i-1] * data[smpl-j-1] * invResidual
			}
		}
	}
	for i := 0; i < order; i++ {
		for j := i + 1; j < order; j++ {
			rMat[j][i] = rMat[i][j]
		}
		// Ridge regularization: stabilizes the solve when a unit's sample
		// count is close to its parameter count (high-order, short units).
		rMat[i][i] += regularTerm
	}
	if n > order {
		objValue /= float64(n - order)
	}
	return rMat, rVec, objValue
}

// CalculateCoefficientsAF fits order LPC coefficients by the
// auxiliary-function (IRLS) method: repeatedly solve a weighted normal
// equation, re-weighting by 1/|residual|, until the mean absolute residual
// stabilizes or maxIter is reached. data is windowed by w before fitting.
// Returns an all-zero coefficient vector (signaling silence) if the normal
// equations are ever singular, matching the source's convention.
func CalculateCoefficientsAF(data []float64, order int, maxIter int, w WindowType, regularTerm float64) []float64 {
	windowed := ApplyWindow(data, w)
	aVec := make([]float64, order)

	prevObj := math.MaxFloat64
	for iter := 0; iter < maxIter; iter++ {
		rMat, rVec, objValue := afCoefMatrixAndVector(windowed, aVec, order, regularTerm)
		solved, ok := choleskyDecompose(rMat, rVec)
		if !ok {
			return make([]float64, order)
		}
		copy(aVec, solved)
		if math.Abs(prevObj-objValue) < 1e-8 {
			break
		}
		prevObj = objValue
	}

	coef := make([]float64, order)
	for i := range aVec {
		coef[i] = -aVec[i]
	}
	return coef
}

// EstimateCodeLength returns an estimated bits-per-sample for data under
// an order-th order LPC fit, using the Levinson-Durbin PARCOR
// coefficients' implied prediction-error variance and a Laplace residual
// entropy model. data is windowed with WindowSine for reproducibility.
func EstimateCodeLength(data []float64, bitsPerSample uint, order int) float64 {
	windowed := ApplyWindow(data, WindowSine)
	autocorr := Autocorrelation(windowed, order+1)
	_, parcor := LevinsonDurbin(autocorr, order)

	var power float64
	for _, x := range windowed {
		power += x * x
	}
	power *= math.Pow(2, float64(2*(int(bitsPerSample)-1)))
	if math.Abs(power) <= math.SmallestNonzeroFloat32 {
		return 0.0
	}
	log2MeanPower := math.Log2(power) - math.Log2(float64(len(windowed)))

	var log2VarRatio float64
	for ord := 1; ord <= order; ord++ {
		log2VarRatio += math.Log2(1.0 - parcor[ord]*parcor[ord])
	}

	bits := betaConstForLaplace + 0.5*(log2MeanPower+log2VarRatio)
	if bits <= 0 {
		return 1.0
	}
	return bits
}

// QuantizeCoefficients converts double-precision coefficients to
// fixed-point integers representable in precisionBits (including sign),
// along with the common right-shift amount. Coefficients too small to
// represent at all quantize to zero with rshift == precisionBits.
func QuantizeCoefficients(coef []float64, precisionBits uint) (intCoef []int32, rshift uint) {
	intCoef = make([]int32, len(coef))

	max := 0.0
	for _, c := range coef {
		if math.Abs(c) > max {
			max = math.Abs(c)
		}
	}

	if max <= math.Pow(2.0, -float64(precisionBits-1)) {
		return intCoef, precisionBits
	}

	_, ndigit := math.Frexp(max)
	nbits := precisionBits - 1
	rshift = uint(int32(nbits) - int32(ndigit))

	limit := int32(1) << nbits
	for i, c := range coef {
		v := int32(fixed.RoundNearest(c * float64(uint64(1)<<rshift)))
		if v >= limit {
			v = limit - 1
		}
		intCoef[i] = v
	}
	return intCoef, rshift
}
