// Package encoding implements the binary primitives shared by every
// condition and fulfillment codec: a buffer-backed writer, the matching
// reader, and a predictor that mirrors the writer API while only
// accumulating a byte count.
//
// Integers are unsigned LEB128 varints (multiformats encoding); byte
// strings are length-prefixed with a varint.
package encoding

import (
	"github.com/multiformats/go-varint"
)

// Writer serializes values into an in-memory buffer.
type Writer struct {
	buf []byte
}

// NewWriter creates an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// WriteVarUInt appends n as an unsigned varint.
func (w *Writer) WriteVarUInt(n uint64) {
	w.buf = append(w.buf, varint.ToUvarint(n)...)
}

// WriteVarBytes appends b as a varint length prefix followed by the raw bytes.
func (w *Writer) WriteVarBytes(b []byte) {
	w.WriteVarUInt(uint64(len(b)))
	w.buf = append(w.buf, b...)
}

// Write appends raw bytes with no prefix.
func (w *Writer) Write(b []byte) {
	w.buf = append(w.buf, b...)
}

// WriteUInt8 appends a single byte.
func (w *Writer) WriteUInt8(b byte) {
	w.buf = append(w.buf, b)
}

// Buffer returns the bytes written so far. The returned slice aliases
// the writer's internal buffer.
func (w *Writer) Buffer() []byte {
	return w.buf
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return len(w.buf)
}
