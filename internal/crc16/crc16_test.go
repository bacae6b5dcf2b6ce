package crc16

import "testing"

func TestChecksumFixtures(t *testing.T) {
	golden := []struct {
		data []byte
		want uint16
	}{
		{[]byte{0xDE, 0xAD, 0xBE, 0xAF}, 0x159A},
		{[]byte{0x12, 0x34, 0x56, 0x78}, 0x347B},
		{[]byte{0xAB, 0xAD, 0xCA, 0xFE}, 0xE566},
	}
	for _, g := range golden {
		if got := Checksum(g.data); got != g.want {
			t.Errorf("Checksum(% X) = 0x%04X, want 0x%04X", g.data, got, g.want)
		}
	}
}

func TestWriteIncrementalMatchesOneShot(t *testing.T) {
	data := []byte{0xDE, 0xAD, 0xBE, 0xAF, 0x01, 0x02, 0x03}
	want := Checksum(data)

	d := NewIBM()
	_, _ = d.Write(data[:3])
	_, _ = d.Write(data[3:])
	if got := d.Sum16(); got != want {
		t.Errorf("incremental Write Sum16() = 0x%04X, want 0x%04X", got, want)
	}
}
