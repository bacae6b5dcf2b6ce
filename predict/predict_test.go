package predict

import "testing"

func TestPredictSynthesizeRoundTrip(t *testing.T) {
	data := make([]int32, 64)
	for i := range data {
		data[i] = int32((i*37)%101) - 50
	}
	coef := []int32{10, -5, 3, -1}
	const units, rshift = 1, 6

	residual := Predict(data, coef, units, rshift)

	reconstructed := make([]int32, len(residual))
	copy(reconstructed, residual)
	Synthesize(reconstructed, coef, units, rshift)

	for i := range data {
		if reconstructed[i] != data[i] {
			t.Errorf("sample %d: got %d, want %d", i, reconstructed[i], data[i])
		}
	}
}

func TestPredictMultiUnitRoundTrip(t *testing.T) {
	data := make([]int32, 128)
	for i := range data {
		data[i] = int32((i*13)%200) - 100
	}
	coef := []int32{8, -4, 8, -4, 8, -4, 8, -4}
	const units, rshift = 4, 5

	residual := Predict(data, coef, units, rshift)
	reconstructed := make([]int32, len(residual))
	copy(reconstructed, residual)
	Synthesize(reconstructed, coef, units, rshift)

	p := uint32(len(coef)) / units
	s := uint32(len(data)) / units
	for unit := uint32(0); unit < units; unit++ {
		for smpl := uint32(0); smpl < s-p; smpl++ {
			i := unit*s + smpl
			if reconstructed[i] != data[i] {
				t.Errorf("unit %d sample %d: got %d, want %d", unit, smpl, reconstructed[i], data[i])
			}
		}
	}
}

func TestPredictReducesMagnitudeOnSmoothSignal(t *testing.T) {
	data := make([]int32, 256)
	for i := range data {
		data[i] = int32(1000)
	}
	coef := []int32{-64} // rshift 6 => coefficient 1.0, pre-negated per LPC solver convention
	residual := Predict(data, coef, 1, 6)

	var sumResidual, sumSignal int64
	for i := 4; i < len(data); i++ {
		if residual[i] < 0 {
			sumResidual += int64(-residual[i])
		} else {
			sumResidual += int64(residual[i])
		}
		sumSignal += int64(data[i])
	}
	if sumResidual >= sumSignal {
		t.Errorf("predicted residual energy %d not below raw signal energy %d", sumResidual, sumSignal)
	}
}
