// Package bitstream implements the MSB-first bit-level reader and writer
// that every higher LINNE layer (block framing, the Rice coder, LPC
// coefficient serialization) is built on. It wraps github.com/icza/bitio's
// CountWriter/CountReader rather than re-implementing a bit accumulator,
// the same way the teacher's internal/bits package layers unary and
// two's-complement helpers on top of a bitio.Writer/Reader instead of
// managing byte buffers itself.
package bitstream

import (
	"io"

	"github.com/icza/bitio"
	"github.com/mewkiz/pkg/errutil"
)

// Writer accumulates bits MSB-first into an underlying io.Writer.
type Writer struct {
	bw *bitio.CountWriter
}

// NewWriter returns a Writer that emits bits into w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bitio.NewCountWriter(w)}
}

// PutBits emits the low n bits of v, most significant bit first. n must be
// in [0, 32]; n == 0 is a no-op.
func (w *Writer) PutBits(v uint32, n uint) error {
	if n == 0 {
		return nil
	}
	mask := uint64(1)<<n - 1
	if err := w.bw.WriteBits(uint64(v)&mask, uint8(n)); err != nil {
		return errutil.Err(err)
	}
	return nil
}

// PutZeroRun emits runLength zero bits followed by a single terminating
// one bit (unary coding). It is valid for runLength up to at least 2^31,
// matching the partition code-length range the Rice coder can produce.
func (w *Writer) PutZeroRun(runLength uint32) error {
	x := runLength
	for x > 8 {
		if err := w.bw.WriteByte(0x00); err != nil {
			return errutil.Err(err)
		}
		x -= 8
	}
	// x zero bits followed by a one bit, as the low bit of a (x+1)-bit field.
	if err := w.bw.WriteBits(1, uint8(x+1)); err != nil {
		return errutil.Err(err)
	}
	return nil
}

// Flush pads the current byte with zero bits, so the stream is byte
// aligned. It must be called before any byte-oriented write (such as a
// raw PCM block) resumes; Tell calls it itself.
func (w *Writer) Flush() error {
	if _, err := w.bw.Align(); err != nil {
		return errutil.Err(err)
	}
	return nil
}

// Tell flushes the stream and returns the number of whole bytes written so
// far. Block headers use this to back-patch the block_size field once a
// block's payload has been serialized.
func (w *Writer) Tell() (int64, error) {
	if err := w.Flush(); err != nil {
		return 0, err
	}
	return w.bw.BitsCount / 8, nil
}

// Close flushes any partial byte. It does not close the underlying writer.
func (w *Writer) Close() error {
	if err := w.bw.Close(); err != nil {
		return errutil.Err(err)
	}
	return nil
}

// Reader consumes bits MSB-first from an underlying io.Reader.
type Reader struct {
	br *bitio.CountReader
}

// NewReader returns a Reader that consumes bits from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bitio.NewCountReader(r)}
}

// GetBits reads and returns the next n bits, most significant bit first.
// n must be in [0, 32]; n == 0 returns 0 without consuming any bits.
func (r *Reader) GetBits(n uint) (uint32, error) {
	if n == 0 {
		return 0, nil
	}
	v, err := r.br.ReadBits(uint8(n))
	if err != nil {
		return 0, errutil.Err(err)
	}
	return uint32(v), nil
}

// GetZeroRunLength reads and consumes a unary-coded run: it counts the
// leading zero bits up to and including the terminating one bit, and
// returns the count of zeros (the one itself is discarded).
func (r *Reader) GetZeroRunLength() (uint32, error) {
	var run uint32
	for {
		bit, err := r.br.ReadBool()
		if err != nil {
			return 0, errutil.Err(err)
		}
		if bit {
			return run, nil
		}
		run++
	}
}

// Flush discards any bits buffered from a partial byte read and
// repositions the stream at the next whole byte boundary.
func (r *Reader) Flush() {
	r.br.Align()
}

// Tell flushes the stream and returns the number of whole bytes consumed
// so far.
func (r *Reader) Tell() int64 {
	r.Flush()
	return r.br.BitsCount / 8
}
