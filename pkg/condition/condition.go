// Package condition implements the Condition value: a compact, publicly
// shareable commitment to a fulfillment. A condition carries the type
// identifier, the aggregated feature bitmask, the fingerprint digest and
// an upper bound on the size of any fulfillment that can satisfy it.
package condition

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/wilsonianb/five-bells-condition/pkg/encoding"
	"github.com/wilsonianb/five-bells-condition/pkg/types"
)

// ErrParse indicates malformed condition bytes or URI.
var ErrParse = errors.New("condition parse error")

// uriPrefix is the scheme and format version of the condition URI.
const uriPrefix = "cc:1:"

// Condition is an immutable commitment to a fulfillment.
//
// Binary format:
//
//	VARUINT(typeID) VARUINT(bitmask) VARBYTES(fingerprint) VARUINT(maxFulfillmentLength)
type Condition struct {
	Type                 types.ConditionType
	Bitmask              uint32
	Fingerprint          []byte
	MaxFulfillmentLength uint64
}

// SerializeBinary encodes the condition in its canonical binary form.
func (c *Condition) SerializeBinary() []byte {
	w := encoding.NewWriter()
	w.WriteVarUInt(uint64(c.Type))
	w.WriteVarUInt(uint64(c.Bitmask))
	w.WriteVarBytes(c.Fingerprint)
	w.WriteVarUInt(c.MaxFulfillmentLength)
	return w.Buffer()
}

// URI encodes the condition as a cc: URI.
func (c *Condition) URI() string {
	return uriPrefix +
		strconv.FormatUint(uint64(c.Type), 10) + ":" +
		strconv.FormatUint(uint64(c.Bitmask), 16) + ":" +
		base64.RawURLEncoding.EncodeToString(c.Fingerprint) + ":" +
		strconv.FormatUint(c.MaxFulfillmentLength, 10)
}

// Equal reports whether two conditions commit to the same fulfillment.
func (c *Condition) Equal(o *Condition) bool {
	return o != nil &&
		c.Type == o.Type &&
		c.Bitmask == o.Bitmask &&
		c.MaxFulfillmentLength == o.MaxFulfillmentLength &&
		bytes.Equal(c.Fingerprint, o.Fingerprint)
}

// String renders the condition for logs.
func (c *Condition) String() string {
	return fmt.Sprintf("%s(%s)", c.Type, hex.EncodeToString(c.Fingerprint))
}

// FromBinary parses a condition from its canonical binary form.
func FromBinary(data []byte) (*Condition, error) {
	r := encoding.NewReader(data)
	c, err := FromReader(r)
	if err != nil {
		return nil, err
	}
	if r.Remaining() > 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrParse, r.Remaining())
	}
	return c, nil
}

// FromReader parses a condition from a reader, leaving any trailing
// bytes unconsumed. Used when conditions are embedded in larger
// structures.
func FromReader(r *encoding.Reader) (*Condition, error) {
	typeID, err := r.ReadVarUInt()
	if err != nil {
		return nil, fmt.Errorf("%w: type: %v", ErrParse, err)
	}
	if !types.IsTypeSupported(types.ConditionType(typeID)) {
		return nil, fmt.Errorf("%w: unsupported type %d", ErrParse, typeID)
	}
	bitmask, err := r.ReadVarUInt()
	if err != nil {
		return nil, fmt.Errorf("%w: bitmask: %v", ErrParse, err)
	}
	fingerprint, err := r.ReadVarBytes()
	if err != nil {
		return nil, fmt.Errorf("%w: fingerprint: %v", ErrParse, err)
	}
	maxLen, err := r.ReadVarUInt()
	if err != nil {
		return nil, fmt.Errorf("%w: max fulfillment length: %v", ErrParse, err)
	}
	return &Condition{
		Type:                 types.ConditionType(typeID),
		Bitmask:              uint32(bitmask),
		Fingerprint:          append([]byte(nil), fingerprint...),
		MaxFulfillmentLength: maxLen,
	}, nil
}

// FromURI parses a cc: URI.
func FromURI(uri string) (*Condition, error) {
	if !strings.HasPrefix(uri, uriPrefix) {
		return nil, fmt.Errorf("%w: missing %q prefix", ErrParse, uriPrefix)
	}
	parts := strings.Split(strings.TrimPrefix(uri, uriPrefix), ":")
	if len(parts) != 4 {
		return nil, fmt.Errorf("%w: expected 4 URI segments, got %d", ErrParse, len(parts))
	}
	typeID, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: type: %v", ErrParse, err)
	}
	if !types.IsTypeSupported(types.ConditionType(typeID)) {
		return nil, fmt.Errorf("%w: unsupported type %d", ErrParse, typeID)
	}
	bitmask, err := strconv.ParseUint(parts[1], 16, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: bitmask: %v", ErrParse, err)
	}
	fingerprint, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: fingerprint: %v", ErrParse, err)
	}
	maxLen, err := strconv.ParseUint(parts[3], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: max fulfillment length: %v", ErrParse, err)
	}
	return &Condition{
		Type:                 types.ConditionType(typeID),
		Bitmask:              uint32(bitmask),
		Fingerprint:          fingerprint,
		MaxFulfillmentLength: maxLen,
	}, nil
}
