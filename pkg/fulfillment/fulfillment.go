// Package fulfillment implements the proof types of the crypto-conditions
// scheme: preimage-sha-256, prefix-sha-256, rsa-sha-256, ed25519 and the
// threshold-sha-256 aggregator. A fulfillment derives its condition
// commitment, serializes to a canonical binary form and validates
// against a message.
package fulfillment

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/wilsonianb/five-bells-condition/pkg/condition"
	"github.com/wilsonianb/five-bells-condition/pkg/encoding"
	"github.com/wilsonianb/five-bells-condition/pkg/types"
)

// uriPrefix is the scheme and format version of the fulfillment URI.
const uriPrefix = "cf:1:"

// Fulfillment is a proof that, validated against a message, satisfies
// its derived condition.
//
// Binary format:
//
//	VARUINT(typeID) VARBYTES(payload)
//
// Implementations are the closed set of types registered in this
// package; derived properties (bitmask, condition, maximum length) are
// recomputed on every call so late mutation can never yield stale
// results.
type Fulfillment interface {
	// Type returns the type identifier.
	Type() types.ConditionType
	// Bitmask returns the feature bits a verifier needs for this
	// fulfillment, aggregated transitively over subconditions.
	Bitmask() uint32
	// Condition derives the condition commitment.
	Condition() (*condition.Condition, error)
	// MaxFulfillmentLength returns an upper bound on the length of any
	// valid serialized form of this fulfillment.
	MaxFulfillmentLength() (uint64, error)
	// SerializeBinary encodes the fulfillment in canonical binary form.
	SerializeBinary() ([]byte, error)
	// Validate checks the proof against message. A nil error means the
	// fulfillment is valid.
	Validate(message []byte) error

	writeHashPayload(w *encoding.Writer) error
	writePayload(w *encoding.Writer) error
	parsePayload(r *encoding.Reader) error
}

// registry maps type identifiers to fresh-value constructors.
var registry = map[types.ConditionType]func() Fulfillment{
	types.TypePreimageSha256:  func() Fulfillment { return &PreimageSha256{} },
	types.TypePrefixSha256:    func() Fulfillment { return &PrefixSha256{} },
	types.TypeThresholdSha256: func() Fulfillment { return &ThresholdSha256{} },
	types.TypeRsaSha256:       func() Fulfillment { return &RsaSha256{} },
	types.TypeEd25519:         func() Fulfillment { return &Ed25519{} },
}

// FromBinary parses a fulfillment of any registered type from its
// canonical binary form.
func FromBinary(data []byte) (Fulfillment, error) {
	r := encoding.NewReader(data)
	typeID, err := r.ReadVarUInt()
	if err != nil {
		return nil, fmt.Errorf("%w: type: %v", ErrParse, err)
	}
	newFulfillment, ok := registry[types.ConditionType(typeID)]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported type %d", ErrParse, typeID)
	}
	payload, err := r.ReadVarBytes()
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrParse, err)
	}
	if r.Remaining() > 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrParse, r.Remaining())
	}
	f := newFulfillment()
	pr := encoding.NewReader(payload)
	if err := f.parsePayload(pr); err != nil {
		return nil, err
	}
	if pr.Remaining() > 0 {
		return nil, fmt.Errorf("%w: %d trailing payload bytes", ErrParse, pr.Remaining())
	}
	return f, nil
}

// FromURI parses a cf: URI.
func FromURI(uri string) (Fulfillment, error) {
	if !strings.HasPrefix(uri, uriPrefix) {
		return nil, fmt.Errorf("%w: missing %q prefix", ErrParse, uriPrefix)
	}
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(uri, uriPrefix))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return FromBinary(data)
}

// URI encodes a fulfillment as a cf: URI.
func URI(f Fulfillment) (string, error) {
	data, err := f.SerializeBinary()
	if err != nil {
		return "", err
	}
	return uriPrefix + base64.RawURLEncoding.EncodeToString(data), nil
}

// ValidateBinary parses a serialized fulfillment, checks that it derives
// cond, and validates it against message.
func ValidateBinary(data []byte, cond *condition.Condition, message []byte) error {
	f, err := FromBinary(data)
	if err != nil {
		return err
	}
	derived, err := f.Condition()
	if err != nil {
		return err
	}
	if !derived.Equal(cond) {
		return fmt.Errorf("%w: derived %s, want %s", ErrConditionMismatch, derived, cond)
	}
	return f.Validate(message)
}

// serializeFulfillment wraps a type's payload in the common envelope.
func serializeFulfillment(f Fulfillment) ([]byte, error) {
	payload := encoding.NewWriter()
	if err := f.writePayload(payload); err != nil {
		return nil, err
	}
	w := encoding.NewWriter()
	w.WriteVarUInt(uint64(f.Type()))
	w.WriteVarBytes(payload.Buffer())
	return w.Buffer(), nil
}

// serializedLength is the MaxFulfillmentLength implementation for types
// whose serialized form has a single fixed shape.
func serializedLength(f Fulfillment) (uint64, error) {
	data, err := f.SerializeBinary()
	if err != nil {
		return 0, err
	}
	return uint64(len(data)), nil
}
