package preset

import (
	"bytes"
	"testing"

	"github.com/linne-codec/linne/internal/bitstream"
)

func TestSignMagnitudeValueRoundTrip(t *testing.T) {
	for _, v := range []int32{0, 1, -1, 5, -5, CoefMaxMagnitude, -CoefMaxMagnitude} {
		sym := SignMagnitude(v)
		got := Value(sym)
		if got != v {
			t.Errorf("SignMagnitude/Value(%d): got %d", v, got)
		}
	}
}

func TestSignMagnitudeClampsOverflow(t *testing.T) {
	sym := SignMagnitude(1000)
	if Value(sym) != CoefMaxMagnitude {
		t.Errorf("got %d, want clamp to %d", Value(sym), CoefMaxMagnitude)
	}
}

func TestMaxUnitsIsPowerOfTwo(t *testing.T) {
	if MaxUnits != 128 {
		t.Errorf("MaxUnits = %d, want 128 (2^(2^NumUnitsBits - 1))", MaxUnits)
	}
}

func TestBuildHuffmanCodeIsPrefixFreeAndRoundTrips(t *testing.T) {
	freq := coefficientFrequencyTable()
	hc := BuildHuffmanCode(freq)

	symbols := make([]uint32, 0, len(freq))
	for s := range freq {
		symbols = append(symbols, s)
	}

	var buf bytes.Buffer
	w := bitstream.NewWriter(&buf)
	for _, s := range symbols {
		if err := hc.Put(w, s); err != nil {
			t.Fatalf("Put(%d): %v", s, err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	r := bitstream.NewReader(&buf)
	for i, want := range symbols {
		got, err := hc.Get(r)
		if err != nil {
			t.Fatalf("symbol %d: Get: %v", i, err)
		}
		if got != want {
			t.Errorf("symbol %d: got %d, want %d", i, got, want)
		}
	}
}

func TestDefaultPresetResolvesByIndex(t *testing.T) {
	p, ok := ByIndex(0)
	if !ok || p != Default {
		t.Fatal("ByIndex(0) should resolve to Default")
	}
	if _, ok := ByIndex(1); ok {
		t.Fatal("ByIndex(1) should not resolve, only preset 0 is defined")
	}
}

func TestZeroIsAlwaysARegularizationCandidate(t *testing.T) {
	found := false
	for _, r := range Default.RegularizationCandidates {
		if r == 0 {
			found = true
		}
	}
	if !found {
		t.Error("regularization candidates must include 0 (unregularized fit)")
	}
}
