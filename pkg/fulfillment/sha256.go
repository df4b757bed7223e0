package fulfillment

import (
	"crypto/sha256"

	"github.com/wilsonianb/five-bells-condition/pkg/condition"
	"github.com/wilsonianb/five-bells-condition/pkg/encoding"
)

// fingerprint feeds a type's canonical hash payload into SHA-256 to
// produce the condition digest. Every hash-based type shares this
// machinery; only the payload differs.
func fingerprint(f Fulfillment) ([]byte, error) {
	w := encoding.NewWriter()
	if err := f.writeHashPayload(w); err != nil {
		return nil, err
	}
	digest := sha256.Sum256(w.Buffer())
	return digest[:], nil
}

// deriveCondition builds the condition commitment for a fulfillment
// from its freshly computed fingerprint, bitmask and worst-case length.
func deriveCondition(f Fulfillment) (*condition.Condition, error) {
	digest, err := fingerprint(f)
	if err != nil {
		return nil, err
	}
	maxLen, err := f.MaxFulfillmentLength()
	if err != nil {
		return nil, err
	}
	return &condition.Condition{
		Type:                 f.Type(),
		Bitmask:              f.Bitmask(),
		Fingerprint:          digest,
		MaxFulfillmentLength: maxLen,
	}, nil
}
