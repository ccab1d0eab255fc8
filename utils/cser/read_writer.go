// Package cser is a compact canonical binary codec. Values are split over two
// streams: a byte stream holding payload bytes and a bit stream holding
// booleans and the byte lengths of integers. Decoding is strict: every value
// must be packed minimally and every byte and bit must be consumed.
package cser

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/rony4d/go-drain-scorer/utils/bits"
	"github.com/rony4d/go-drain-scorer/utils/fast"
)

var (
	ErrNonCanonicalEncoding = errors.New("non canonical encoding")
	ErrMalformedEncoding    = errors.New("malformed encoding")
	ErrTooLargeAlloc        = errors.New("too large allocation")
)

// MaxAlloc bounds any single length-prefixed value.
const MaxAlloc = 100 * 1024

// Writer writes both streams.
type Writer struct {
	BitsW  *bits.Writer
	BytesW *fast.Writer
}

// Reader reads both streams.
type Reader struct {
	BitsR  *bits.Reader
	BytesR *fast.Reader
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{
		BitsW:  bits.NewWriter(&bits.Array{Bytes: make([]byte, 0, 32)}),
		BytesW: fast.NewWriter(make([]byte, 0, 256)),
	}
}

// writeUint64Compact writes v as base-128 groups, least significant first.
// The high bit marks the final group.
func writeUint64Compact(w *fast.Writer, v uint64) {
	for {
		chunk := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			w.PutByte(chunk | 0x80)
			return
		}
		w.PutByte(chunk)
	}
}

func readUint64Compact(r *fast.Reader) uint64 {
	var v uint64
	for i := 0; ; i++ {
		if i > 9 {
			panic(ErrMalformedEncoding)
		}
		chunk := r.GetByte()
		word := uint64(chunk & 0x7f)
		v |= word << (7 * uint(i))
		if chunk&0x80 != 0 {
			if i > 0 && word == 0 {
				panic(ErrNonCanonicalEncoding)
			}
			return v
		}
	}
}

// writeUint64BitCompact writes v little-endian using at least minSize bytes
// and no more than needed. It returns the number of bytes written.
func writeUint64BitCompact(w *fast.Writer, v uint64, minSize int) (size int) {
	for size < minSize || v != 0 {
		w.PutByte(byte(v))
		size++
		v >>= 8
	}
	return size
}

func readUint64BitCompact(r *fast.Reader, size int) uint64 {
	buf := r.Read(size)
	var v uint64
	for i, b := range buf {
		v |= uint64(b) << (8 * uint(i))
	}
	if size > 1 && buf[size-1] == 0 {
		panic(ErrNonCanonicalEncoding)
	}
	return v
}

func (w *Writer) writeSized(minSize int, sizeBits int, v uint64) {
	size := writeUint64BitCompact(w.BytesW, v, minSize)
	w.BitsW.Write(sizeBits, uint(size-minSize))
}

func (r *Reader) readSized(minSize int, sizeBits int) uint64 {
	size := int(r.BitsR.Read(sizeBits)) + minSize
	if size > 8 {
		panic(ErrMalformedEncoding)
	}
	return readUint64BitCompact(r.BytesR, size)
}

// U8 writes a raw byte.
func (w *Writer) U8(v uint8) { w.BytesW.PutByte(v) }

// U8 reads a raw byte.
func (r *Reader) U8() uint8 { return r.BytesR.GetByte() }

// U64 writes 1..8 bytes, with the length in three bits.
func (w *Writer) U64(v uint64) { w.writeSized(1, 3, v) }

// U64 reads a value written by Writer.U64.
func (r *Reader) U64() uint64 { return r.readSized(1, 3) }

// U56 writes 0..7 bytes; used for lengths.
func (w *Writer) U56(v uint64) {
	if v > 1<<56-1 {
		panic("cser: value exceeds 56 bits")
	}
	w.writeSized(0, 3, v)
}

// U56 reads a value written by Writer.U56.
func (r *Reader) U56() uint64 { return r.readSized(0, 3) }

// Bool writes one bit.
func (w *Writer) Bool(v bool) {
	var b uint
	if v {
		b = 1
	}
	w.BitsW.Write(1, b)
}

// Bool reads one bit.
func (r *Reader) Bool() bool { return r.BitsR.Read(1) != 0 }

// F64 writes the IEEE-754 bits of v as 8 fixed little-endian bytes.
func (w *Writer) F64(v float64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	w.BytesW.Write(buf[:])
}

// F64 reads a value written by Writer.F64.
func (r *Reader) F64() float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(r.BytesR.Read(8)))
}

// FixedBytes writes v without a length prefix.
func (w *Writer) FixedBytes(v []byte) { w.BytesW.Write(v) }

// FixedBytes fills v from the byte stream.
func (r *Reader) FixedBytes(v []byte) { copy(v, r.BytesR.Read(len(v))) }

// SliceBytes writes a length-prefixed byte slice.
func (w *Writer) SliceBytes(v []byte) {
	w.U56(uint64(len(v)))
	w.FixedBytes(v)
}

// SliceBytes reads a length-prefixed byte slice of at most maxLen bytes.
func (r *Reader) SliceBytes(maxLen int) []byte {
	size := r.U56()
	if size > uint64(maxLen) {
		panic(ErrTooLargeAlloc)
	}
	buf := make([]byte, size)
	r.FixedBytes(buf)
	return buf
}

// String writes s as a length-prefixed byte slice.
func (w *Writer) String(s string) { w.SliceBytes([]byte(s)) }

// String reads a string of at most maxLen bytes.
func (r *Reader) String(maxLen int) string { return string(r.SliceBytes(maxLen)) }
