package encoding

import (
	"github.com/multiformats/go-varint"
)

// Predictor mirrors the Writer API without materializing any bytes. It
// is used to compute serialized sizes ahead of time, in particular for
// worst-case fulfillment length bounds where the payload itself does
// not exist yet.
type Predictor struct {
	size uint64
}

// NewPredictor creates a Predictor with a zero count.
func NewPredictor() *Predictor {
	return &Predictor{}
}

// WriteVarUInt accounts for n encoded as an unsigned varint.
func (p *Predictor) WriteVarUInt(n uint64) {
	p.size += uint64(varint.UvarintSize(n))
}

// WriteVarBytes accounts for b with its varint length prefix.
func (p *Predictor) WriteVarBytes(b []byte) {
	p.WriteVarBytesLength(uint64(len(b)))
}

// WriteVarBytesLength accounts for a length-prefixed byte string of n
// bytes without needing the bytes themselves.
func (p *Predictor) WriteVarBytesLength(n uint64) {
	p.WriteVarUInt(n)
	p.size += n
}

// Write accounts for raw bytes with no prefix.
func (p *Predictor) Write(b []byte) {
	p.size += uint64(len(b))
}

// WriteUInt8 accounts for a single byte.
func (p *Predictor) WriteUInt8(_ byte) {
	p.size++
}

// Skip accounts for n opaque bytes.
func (p *Predictor) Skip(n uint64) {
	p.size += n
}

// Size returns the accumulated byte count.
func (p *Predictor) Size() uint64 {
	return p.size
}
