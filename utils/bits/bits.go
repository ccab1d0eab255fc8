// Package bits implements an LSB-first bit stream. The cser codec keeps
// booleans and integer length prefixes here so the byte stream stays aligned.
package bits

import "errors"

// ErrShortStream is the panic value raised when a Reader runs out of bits.
var ErrShortStream = errors.New("bits: read past end of stream")

type (
	// Array holds the packed bits.
	Array struct {
		Bytes []byte
	}

	// Writer appends bits to an Array.
	Writer struct {
		*Array
		bitOffset int // next free bit in the last byte, 0 means a fresh byte is needed
	}

	// Reader consumes bits from an Array.
	Reader struct {
		*Array
		byteOffset int
		bitOffset  int
	}
)

// NewWriter returns a Writer appending to arr.
func NewWriter(arr *Array) *Writer {
	return &Writer{Array: arr}
}

// NewReader returns a Reader positioned at the first bit of arr.
func NewReader(arr *Array) *Reader {
	return &Reader{Array: arr}
}

func lowMask(n int) uint {
	return (uint(1) << uint(n)) - 1
}

// Write appends the lowest n bits of v.
func (w *Writer) Write(n int, v uint) {
	for n > 0 {
		if w.bitOffset == 0 {
			w.Bytes = append(w.Bytes, 0)
		}
		take := 8 - w.bitOffset
		if n < take {
			take = n
		}
		w.Bytes[len(w.Bytes)-1] |= byte((v & lowMask(take)) << uint(w.bitOffset))
		v >>= uint(take)
		n -= take
		w.bitOffset = (w.bitOffset + take) % 8
	}
}

// Read consumes n bits and returns them as an integer.
func (r *Reader) Read(n int) (v uint) {
	shift := 0
	for n > 0 {
		if r.byteOffset >= len(r.Bytes) {
			panic(ErrShortStream)
		}
		take := 8 - r.bitOffset
		if n < take {
			take = n
		}
		chunk := (uint(r.Bytes[r.byteOffset]) >> uint(r.bitOffset)) & lowMask(take)
		v |= chunk << uint(shift)
		shift += take
		n -= take
		r.bitOffset += take
		if r.bitOffset == 8 {
			r.bitOffset = 0
			r.byteOffset++
		}
	}
	return v
}

// View returns the next n bits without consuming them.
func (r *Reader) View(n int) uint {
	cp := *r
	return cp.Read(n)
}

// NonReadBytes is the number of bytes not fully consumed, including a
// partially read one.
func (r *Reader) NonReadBytes() int {
	return len(r.Bytes) - r.byteOffset
}

// NonReadBits is the number of bits left in the stream.
func (r *Reader) NonReadBits() int {
	return r.NonReadBytes()*8 - r.bitOffset
}
