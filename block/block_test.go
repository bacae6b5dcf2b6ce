package block

import (
	"bytes"
	"math"
	"testing"

	"github.com/linne-codec/linne/preset"
)

func testPreset() *preset.Preset {
	return &preset.Preset{
		LayerParamCounts:         []uint32{4, 2},
		RegularizationCandidates: []float64{0, 1e-3},
		CoefficientCode:          preset.Default.CoefficientCode,
	}
}

func sineSamples(n int, freq float64, amp int32) []int32 {
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(float64(amp) * math.Sin(2*math.Pi*freq*float64(i)))
	}
	return out
}

func TestMSEncodeDecodeRoundTrip(t *testing.T) {
	for l := int32(-100); l <= 100; l += 7 {
		for r := int32(-100); r <= 100; r += 11 {
			m, s := MSEncode(l, r)
			gotL, gotR := MSDecode(m, s)
			if gotL != l || gotR != r {
				t.Fatalf("MSEncode/Decode(%d,%d): got (%d,%d)", l, r, gotL, gotR)
			}
		}
	}
}

func TestEncodeDecodeCompressedBlockRoundTrip(t *testing.T) {
	p := &Params{
		BitsPerSample:   16,
		ChannelCount:    2,
		Preset:          testPreset(),
		NumAFIterations: 2,
	}

	channels := [][]int32{
		sineSamples(128, 1.0/20.0, 8000),
		sineSamples(128, 1.0/33.0, 6000),
	}

	encStates := NewChannelStates(p)
	var buf bytes.Buffer
	if err := Encode(&buf, p, encStates, channels); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decStates := NewChannelStates(p)
	got, err := Decode(&buf, p, decStates, false)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	for ci, ch := range channels {
		for i, want := range ch {
			if got[ci][i] != want {
				t.Fatalf("channel %d sample %d: got %d, want %d", ci, i, got[ci][i], want)
			}
		}
	}
}

func TestEncodeDecodeSilentBlockRoundTrip(t *testing.T) {
	p := &Params{
		BitsPerSample:   16,
		ChannelCount:    2,
		Preset:          testPreset(),
		NumAFIterations: 2,
	}
	channels := [][]int32{make([]int32, 64), make([]int32, 64)}

	encStates := NewChannelStates(p)
	var buf bytes.Buffer
	if err := Encode(&buf, p, encStates, channels); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decStates := NewChannelStates(p)
	got, err := Decode(&buf, p, decStates, false)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	for ci := range channels {
		for i, v := range got[ci] {
			if v != 0 {
				t.Fatalf("silent block channel %d sample %d = %d, want 0", ci, i, v)
			}
		}
	}
}

func TestDecodeDetectsCorruption(t *testing.T) {
	p := &Params{
		BitsPerSample:   16,
		ChannelCount:    1,
		Preset:          testPreset(),
		NumAFIterations: 1,
	}
	channels := [][]int32{sineSamples(64, 1.0/16.0, 9000)}

	encStates := NewChannelStates(p)
	var buf bytes.Buffer
	if err := Encode(&buf, p, encStates, channels); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	corrupted := buf.Bytes()
	corrupted[len(corrupted)-1] ^= 0xFF

	decStates := NewChannelStates(p)
	if _, err := Decode(bytes.NewReader(corrupted), p, decStates, false); err != ErrCorruption {
		t.Fatalf("Decode with flipped trailing byte: got err %v, want ErrCorruption", err)
	}
}

func TestDecideTypeSilentOnAllZero(t *testing.T) {
	channels := [][]int32{make([]int32, 64), make([]int32, 64)}
	if got := DecideType(channels, 4, 16); got != TypeSilent {
		t.Errorf("DecideType(all-zero) = %v, want TypeSilent", got)
	}
}

func TestDecideTypeCompressedOnStructuredSignal(t *testing.T) {
	channels := [][]int32{sineSamples(256, 1.0/50.0, 12000)}
	if got := DecideType(channels, 4, 16); got != TypeCompressed {
		t.Errorf("DecideType(sine) = %v, want TypeCompressed", got)
	}
}

func TestDecideTypeRawOnNoise(t *testing.T) {
	// A full-scale pseudo-random sequence with no short-term linear
	// structure should estimate close to bits_per_sample and fall back to RAW.
	channels := [][]int32{make([]int32, 256)}
	state := uint32(12345)
	for i := range channels[0] {
		state = state*1664525 + 1013904223
		channels[0][i] = int32(int16(state >> 16))
	}
	if got := DecideType(channels, 4, 16); got != TypeRaw {
		t.Errorf("DecideType(noise) = %v, want TypeRaw", got)
	}
}
