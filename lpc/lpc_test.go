package lpc

import (
	"math"
	"testing"
)

func sineWave(n int, freq, amp float64) []float64 {
	data := make([]float64, n)
	for i := range data {
		data[i] = amp * math.Sin(2*math.Pi*freq*float64(i))
	}
	return data
}

func TestLevinsonDurbinSilenceIsAllZero(t *testing.T) {
	data := make([]float64, 64)
	autocorr := Autocorrelation(data, 5)
	coef, parcor := LevinsonDurbin(autocorr, 4)
	for i, c := range coef {
		if c != 0 {
			t.Errorf("coef[%d] = %v, want 0 on silence", i, c)
		}
	}
	for i, p := range parcor {
		if p != 0 {
			t.Errorf("parcor[%d] = %v, want 0 on silence", i, p)
		}
	}
}

func TestLevinsonDurbinParcorBoundedByOne(t *testing.T) {
	data := sineWave(256, 0.05, 1000)
	autocorr := Autocorrelation(data, 9)
	_, parcor := LevinsonDurbin(autocorr, 8)
	for i, p := range parcor {
		if math.Abs(p) >= 1.0 {
			t.Errorf("parcor[%d] = %v, want |parcor| < 1", i, p)
		}
	}
}

func TestAutocorrelationLag0IsEnergy(t *testing.T) {
	data := []float64{1, -2, 3, -4, 5}
	var want float64
	for _, x := range data {
		want += x * x
	}
	got := Autocorrelation(data, 3)
	if math.Abs(got[0]-want) > 1e-9 {
		t.Errorf("Autocorrelation[0] = %v, want %v", got[0], want)
	}
}

func TestCalculateCoefficientsAFPredictsSineWell(t *testing.T) {
	data := sineWave(512, 0.02, 2000)
	coef := CalculateCoefficientsAF(data, 4, 20, WindowWelch, 0)

	var sumAbsResidual, sumAbsSignal float64
	for smpl := 4; smpl < len(data); smpl++ {
		predict := 0.0
		for ord := 0; ord < 4; ord++ {
			predict += coef[ord] * data[smpl-ord-1]
		}
		residual := data[smpl] + predict
		sumAbsResidual += math.Abs(residual)
		sumAbsSignal += math.Abs(data[smpl])
	}
	if sumAbsResidual >= sumAbsSignal {
		t.Errorf("AF-fit residual energy %v not below raw signal energy %v", sumAbsResidual, sumAbsSignal)
	}
}

func TestCalculateCoefficientsAFSilenceIsZero(t *testing.T) {
	data := make([]float64, 128)
	coef := CalculateCoefficientsAF(data, 4, 10, WindowWelch, 0)
	for i, c := range coef {
		if c != 0 {
			t.Errorf("coef[%d] = %v, want 0 on silence", i, c)
		}
	}
}

func TestQuantizeCoefficientsRoundTripsApproximately(t *testing.T) {
	coef := []float64{0.5, -0.25, 0.125, -0.0625}
	intCoef, rshift := QuantizeCoefficients(coef, 12)
	if rshift == 0 {
		t.Fatal("rshift = 0, want > 0")
	}
	for i, c := range coef {
		reconstructed := float64(intCoef[i]) / float64(uint64(1)<<rshift)
		if math.Abs(reconstructed-c) > 0.01 {
			t.Errorf("coef[%d] round-trip = %v, want close to %v", i, reconstructed, c)
		}
	}
}

func TestQuantizeCoefficientsAllZeroBelowPrecision(t *testing.T) {
	coef := []float64{1e-9, -1e-9}
	intCoef, rshift := QuantizeCoefficients(coef, 8)
	if rshift != 8 {
		t.Errorf("rshift = %d, want 8 (precisionBits, signaling underflow)", rshift)
	}
	for _, c := range intCoef {
		if c != 0 {
			t.Errorf("intCoef = %v, want all zero", c)
		}
	}
}

func TestEstimateCodeLengthSilenceIsZero(t *testing.T) {
	data := make([]float64, 128)
	if got := EstimateCodeLength(data, 16, 4); got != 0 {
		t.Errorf("EstimateCodeLength(silence) = %v, want 0", got)
	}
}

func TestEstimateCodeLengthPositive(t *testing.T) {
	data := sineWave(256, 0.03, 5000)
	got := EstimateCodeLength(data, 16, 4)
	if got <= 0 {
		t.Errorf("EstimateCodeLength = %v, want > 0 for a non-silent signal", got)
	}
}
