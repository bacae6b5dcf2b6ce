package preemphasis

import "testing"

func TestPreemphasisDeemphasisRoundTrip(t *testing.T) {
	data := make([]int32, 128)
	for i := range data {
		data[i] = int32((i*29)%400) - 200
	}
	buf := make([]int32, len(data))
	copy(buf, data)

	var enc, dec Cascade
	enc.Preemphasize(buf)

	// Decoder receives the coefficients as-is (transmitted in the
	// bitstream) and starts from the same zero Prev as the encoder.
	dec[0].Coef = enc[0].Coef
	dec[1].Coef = enc[1].Coef
	dec.Deemphasize(buf)

	for i := range data {
		if buf[i] != data[i] {
			t.Fatalf("sample %d: got %d, want %d", i, buf[i], data[i])
		}
	}
}

func TestCoefficientIsNonNegativeAndInRange(t *testing.T) {
	var f Filter
	data := []int32{100, -80, 60, -40, 20, -10, 5}
	f.CalculateCoefficient(data)
	if f.Coef < 0 || f.Coef >= 1<<Shift {
		t.Errorf("Coef = %d, want in [0, %d)", f.Coef, 1<<Shift)
	}
}

func TestCoefficientZeroOnSilence(t *testing.T) {
	var f Filter
	f.CalculateCoefficient(make([]int32, 32))
	if f.Coef != 0 {
		t.Errorf("Coef = %d, want 0 on silence", f.Coef)
	}
}

func TestStatePersistsAcrossBlocks(t *testing.T) {
	var f Filter
	f.Coef = 16
	block1 := []int32{10, 20, 30}
	f.Preemphasis(block1)
	prevAfterBlock1 := f.Prev

	block2Original := []int32{40, 50}
	block2 := append([]int32(nil), block2Original...)
	f.Preemphasis(block2)
	if f.Prev == prevAfterBlock1 {
		t.Fatal("second block did not observe carried-over Prev")
	}

	// Decode should reconstruct block2 given the same starting Prev.
	var d Filter
	d.Coef = 16
	d.Prev = prevAfterBlock1
	d.Deemphasis(block2)
	if block2[0] != block2Original[0] || block2[1] != block2Original[1] {
		t.Errorf("Deemphasis with carried state = %v, want %v", block2, block2Original)
	}
}
