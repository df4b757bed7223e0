package encoding

import (
	"errors"
	"fmt"

	"github.com/multiformats/go-varint"
)

var (
	// ErrUnexpectedEOF indicates the buffer ended in the middle of a value.
	ErrUnexpectedEOF = errors.New("unexpected end of input")
)

// Reader consumes values from a byte buffer written by a Writer.
type Reader struct {
	buf []byte
	off int
}

// NewReader creates a Reader over b. The reader does not copy b.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// ReadVarUInt reads an unsigned varint.
func (r *Reader) ReadVarUInt() (uint64, error) {
	n, size, err := varint.FromUvarint(r.buf[r.off:])
	if err != nil {
		return 0, fmt.Errorf("read varint: %w", err)
	}
	r.off += size
	return n, nil
}

// ReadVarBytes reads a varint length prefix followed by that many bytes.
func (r *Reader) ReadVarBytes() ([]byte, error) {
	n, err := r.ReadVarUInt()
	if err != nil {
		return nil, err
	}
	return r.Read(int(n))
}

// Read consumes exactly n raw bytes.
func (r *Reader) Read(n int) ([]byte, error) {
	if n < 0 || n > len(r.buf)-r.off {
		return nil, fmt.Errorf("read %d bytes with %d remaining: %w", n, len(r.buf)-r.off, ErrUnexpectedEOF)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

// ReadUInt8 consumes a single byte.
func (r *Reader) ReadUInt8() (byte, error) {
	b, err := r.Read(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.off
}
