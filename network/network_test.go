package network

import (
	"math"
	"testing"
)

func sineInput(n int, freq float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i))
	}
	return out
}

func TestLayerForwardReducesEnergyOnPredictableSignal(t *testing.T) {
	input := sineInput(256, 1.0/32.0)

	l := NewLayer(8)
	l.NumUnits = 1
	// A Welch-windowed pure sine makes the 8-tap normal equations
	// singular, so a small ridge term keeps the solve from falling back to
	// all-zero coefficients.
	l.SetParameter(input, 8, 1e-3)

	data := append([]float64(nil), input...)
	l.Forward(data)

	var inEnergy, outEnergy float64
	for i := 16; i < len(data); i++ {
		inEnergy += input[i] * input[i]
		outEnergy += data[i] * data[i]
	}
	if outEnergy >= inEnergy {
		t.Errorf("residual energy %.4f not below input energy %.4f", outEnergy, inEnergy)
	}
}

func TestSearchOptimalNumUnitsReturnsDivisor(t *testing.T) {
	input := sineInput(256, 1.0/16.0)
	units := SearchOptimalNumUnits(8, input, 8, 0)
	if units == 0 {
		t.Fatal("SearchOptimalNumUnits returned 0")
	}
	if 256%units != 0 || 8%units != 0 {
		t.Errorf("units = %d does not evenly divide both 256 samples and 8 params", units)
	}
	if units&(units-1) != 0 {
		t.Errorf("units = %d is not a power of two", units)
	}
}

func TestSetUnitsAndParametersLowersLossVersusZeroParams(t *testing.T) {
	input := sineInput(512, 1.0/40.0)

	net := New([]uint32{16, 4})
	zeroLoss := net.CalculateLoss(append([]float64(nil), input...))

	net2 := New([]uint32{16, 4})
	net2.SetUnitsAndParameters(input, 3, []float64{0, 1e-3})
	trainedLoss := net2.CalculateLoss(append([]float64(nil), input...))

	if trainedLoss >= zeroLoss {
		t.Errorf("trained loss %.6f not below zero-coefficient loss %.6f", trainedLoss, zeroLoss)
	}
}

func TestResetParametersZeroesAllLayers(t *testing.T) {
	net := New([]uint32{4, 2})
	net.SetUnitsAndParameters(sineInput(128, 1.0/20.0), 2, []float64{0})
	net.ResetParameters()
	for _, l := range net.Layers {
		for _, p := range l.Params {
			if p != 0 {
				t.Fatalf("expected all-zero params after ResetParameters, got %v", l.Params)
			}
		}
	}
}

func TestTrainerLowersLossOverIterations(t *testing.T) {
	input := sineInput(256, 1.0/24.0)
	net := New([]uint32{8})
	net.Layers[0].NumUnits = 1
	initialLoss := net.CalculateLoss(append([]float64(nil), input...))

	trainer := NewTrainer(net)
	trainer.Train(net, input, 50, 1e-3, 1e-10)

	finalLoss := net.CalculateLoss(append([]float64(nil), input...))
	if finalLoss > initialLoss {
		t.Errorf("loss increased after training: %.6f -> %.6f", initialLoss, finalLoss)
	}
}

func TestEstimateCodeLengthIsPositiveForNonSilence(t *testing.T) {
	net := New([]uint32{8, 4})
	length := net.EstimateCodeLength(sineInput(256, 1.0/30.0), 16)
	if length <= 0 {
		t.Errorf("EstimateCodeLength = %.4f, want positive", length)
	}
}
