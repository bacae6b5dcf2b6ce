package linne

import "testing"

func validHeader() *Header {
	return &Header{
		FormatVersion:        1,
		CodecVersion:         1,
		ChannelCount:         2,
		TotalSamplesPerChan:  1024,
		SamplingRate:         44100,
		BitsPerSample:        16,
		SamplesPerBlock:      256,
		PresetIndex:          0,
		ChannelProcessMethod: ChannelProcessMidSide,
	}
}

func TestHeaderMarshalUnmarshalRoundTrip(t *testing.T) {
	h := validHeader()
	buf := h.Marshal()
	if len(buf) != HeaderSize {
		t.Fatalf("Marshal produced %d bytes, want %d", len(buf), HeaderSize)
	}
	got, err := UnmarshalHeader(buf)
	if err != nil {
		t.Fatalf("UnmarshalHeader: %v", err)
	}
	if *got != *h {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestUnmarshalHeaderRejectsBadSignature(t *testing.T) {
	buf := validHeader().Marshal()
	buf[0] = 'X'
	if _, err := UnmarshalHeader(buf); KindOf(err) != ErrInvalidFormat {
		t.Errorf("bad signature: got %v, want ErrInvalidFormat", err)
	}
}

func TestUnmarshalHeaderRejectsTruncatedBuffer(t *testing.T) {
	buf := validHeader().Marshal()
	if _, err := UnmarshalHeader(buf[:HeaderSize-1]); KindOf(err) != ErrInsufficientData {
		t.Errorf("truncated header: got %v, want ErrInsufficientData", err)
	}
}

func TestValidateRejectsMidSideWithOneChannel(t *testing.T) {
	h := validHeader()
	h.ChannelCount = 1
	if err := h.Validate(); KindOf(err) != ErrInvalidFormat {
		t.Errorf("mono + mid/side: got %v, want ErrInvalidFormat", err)
	}
}

func TestValidateRejectsBadBitsPerSample(t *testing.T) {
	h := validHeader()
	h.BitsPerSample = 12
	if err := h.Validate(); KindOf(err) != ErrInvalidFormat {
		t.Errorf("bits_per_sample=12: got %v, want ErrInvalidFormat", err)
	}
}

func TestValidateRejectsZeroChannelCount(t *testing.T) {
	h := validHeader()
	h.ChannelCount = 0
	h.ChannelProcessMethod = ChannelProcessPassthrough
	if err := h.Validate(); KindOf(err) != ErrInvalidFormat {
		t.Errorf("channel_count=0: got %v, want ErrInvalidFormat", err)
	}
}
