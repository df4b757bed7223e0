package fulfillment

import (
	"fmt"

	"github.com/wilsonianb/five-bells-condition/pkg/condition"
	"github.com/wilsonianb/five-bells-condition/pkg/encoding"
	"github.com/wilsonianb/five-bells-condition/pkg/types"
)

// PreimageSha256 is the hashlock type. The condition commits to the
// SHA-256 digest of the preimage and revealing the preimage fulfills it;
// no message is involved.
type PreimageSha256 struct {
	Preimage []byte
}

// NewPreimageSha256 creates a hashlock fulfillment over preimage.
func NewPreimageSha256(preimage []byte) *PreimageSha256 {
	return &PreimageSha256{Preimage: preimage}
}

func (f *PreimageSha256) Type() types.ConditionType {
	return types.TypePreimageSha256
}

func (f *PreimageSha256) Bitmask() uint32 {
	return f.Type().Features()
}

func (f *PreimageSha256) Condition() (*condition.Condition, error) {
	return deriveCondition(f)
}

func (f *PreimageSha256) MaxFulfillmentLength() (uint64, error) {
	return serializedLength(f)
}

func (f *PreimageSha256) SerializeBinary() ([]byte, error) {
	return serializeFulfillment(f)
}

// Validate always succeeds: possession of the preimage is the proof.
func (f *PreimageSha256) Validate(_ []byte) error {
	if f.Preimage == nil {
		return fmt.Errorf("%w: preimage not set", ErrMissingData)
	}
	return nil
}

func (f *PreimageSha256) writeHashPayload(w *encoding.Writer) error {
	if f.Preimage == nil {
		return fmt.Errorf("%w: preimage not set", ErrMissingData)
	}
	w.Write(f.Preimage)
	return nil
}

func (f *PreimageSha256) writePayload(w *encoding.Writer) error {
	if f.Preimage == nil {
		return fmt.Errorf("%w: preimage not set", ErrMissingData)
	}
	w.Write(f.Preimage)
	return nil
}

func (f *PreimageSha256) parsePayload(r *encoding.Reader) error {
	b, err := r.Read(r.Remaining())
	if err != nil {
		return fmt.Errorf("%w: preimage: %v", ErrParse, err)
	}
	// An empty preimage is legal; keep the field non-nil so the
	// fulfillment counts as populated.
	f.Preimage = append(make([]byte, 0, len(b)), b...)
	return nil
}
