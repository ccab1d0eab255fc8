// Package fast provides append-only byte writers and cursor-based byte readers
// used by the cser snapshot codec.
//
// Reader methods do not return errors. Reading past the end of the buffer
// panics with ErrShortBuffer; callers that decode untrusted input (the
// snapshot loader) recover that panic at the adapter boundary.
package fast

import "errors"

// ErrShortBuffer is the panic value raised when a Reader runs out of data.
var ErrShortBuffer = errors.New("fast: read past end of buffer")

// Writer accumulates bytes.
type Writer struct {
	buf []byte
}

// Reader consumes bytes from a fixed slice.
type Reader struct {
	buf    []byte
	offset int
}

// NewWriter returns a Writer appending to bb.
func NewWriter(bb []byte) *Writer {
	return &Writer{buf: bb}
}

// NewReader returns a Reader positioned at the start of bb.
func NewReader(bb []byte) *Reader {
	return &Reader{buf: bb}
}

// PutByte appends a single byte.
func (w *Writer) PutByte(v byte) {
	w.buf = append(w.buf, v)
}

// Write appends v.
func (w *Writer) Write(v []byte) {
	w.buf = append(w.buf, v...)
}

// Bytes returns everything written so far.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Read returns the next n bytes. The result aliases the underlying buffer.
func (r *Reader) Read(n int) []byte {
	if n < 0 || r.offset+n > len(r.buf) {
		panic(ErrShortBuffer)
	}
	res := r.buf[r.offset : r.offset+n]
	r.offset += n
	return res
}

// GetByte returns the next byte.
func (r *Reader) GetByte() byte {
	if r.offset >= len(r.buf) {
		panic(ErrShortBuffer)
	}
	res := r.buf[r.offset]
	r.offset++
	return res
}

// Position is the number of bytes consumed so far.
func (r *Reader) Position() int {
	return r.offset
}

// Bytes returns the whole underlying buffer, consumed or not.
func (r *Reader) Bytes() []byte {
	return r.buf
}

// Empty reports whether every byte was consumed.
func (r *Reader) Empty() bool {
	return r.offset == len(r.buf)
}
