package fulfillment

import (
	"fmt"

	"github.com/wilsonianb/five-bells-condition/pkg/condition"
	"github.com/wilsonianb/five-bells-condition/pkg/encoding"
	"github.com/wilsonianb/five-bells-condition/pkg/types"
)

// PrefixSha256 narrows an inner fulfillment to a fixed message prefix:
// validating against message delegates to the sub-proof with
// prefix ∥ message.
type PrefixSha256 struct {
	Prefix         []byte
	Subfulfillment Fulfillment
}

// NewPrefixSha256 wraps sub with a fixed prefix.
func NewPrefixSha256(prefix []byte, sub Fulfillment) *PrefixSha256 {
	return &PrefixSha256{Prefix: prefix, Subfulfillment: sub}
}

func (f *PrefixSha256) Type() types.ConditionType {
	return types.TypePrefixSha256
}

func (f *PrefixSha256) Bitmask() uint32 {
	bitmask := f.Type().Features()
	if f.Subfulfillment != nil {
		bitmask |= f.Subfulfillment.Bitmask()
	}
	return bitmask
}

func (f *PrefixSha256) Condition() (*condition.Condition, error) {
	return deriveCondition(f)
}

func (f *PrefixSha256) MaxFulfillmentLength() (uint64, error) {
	if f.Subfulfillment == nil {
		return 0, fmt.Errorf("%w: subfulfillment not set", ErrMissingData)
	}
	subMax, err := f.Subfulfillment.MaxFulfillmentLength()
	if err != nil {
		return 0, err
	}
	inner := encoding.NewPredictor()
	inner.WriteVarBytes(f.Prefix)
	inner.WriteVarBytesLength(subMax)
	outer := encoding.NewPredictor()
	outer.WriteVarUInt(uint64(f.Type()))
	outer.WriteVarBytesLength(inner.Size())
	return outer.Size(), nil
}

func (f *PrefixSha256) SerializeBinary() ([]byte, error) {
	return serializeFulfillment(f)
}

// Validate delegates to the sub-proof with the prefix prepended to the
// message.
func (f *PrefixSha256) Validate(message []byte) error {
	if f.Subfulfillment == nil {
		return fmt.Errorf("%w: subfulfillment not set", ErrMissingData)
	}
	prefixed := make([]byte, 0, len(f.Prefix)+len(message))
	prefixed = append(prefixed, f.Prefix...)
	prefixed = append(prefixed, message...)
	return f.Subfulfillment.Validate(prefixed)
}

func (f *PrefixSha256) writeHashPayload(w *encoding.Writer) error {
	if f.Subfulfillment == nil {
		return fmt.Errorf("%w: subfulfillment not set", ErrMissingData)
	}
	sub, err := f.Subfulfillment.Condition()
	if err != nil {
		return err
	}
	w.WriteVarBytes(f.Prefix)
	w.Write(sub.SerializeBinary())
	return nil
}

func (f *PrefixSha256) writePayload(w *encoding.Writer) error {
	if f.Subfulfillment == nil {
		return fmt.Errorf("%w: subfulfillment not set", ErrMissingData)
	}
	sub, err := f.Subfulfillment.SerializeBinary()
	if err != nil {
		return err
	}
	w.WriteVarBytes(f.Prefix)
	w.WriteVarBytes(sub)
	return nil
}

func (f *PrefixSha256) parsePayload(r *encoding.Reader) error {
	prefix, err := r.ReadVarBytes()
	if err != nil {
		return fmt.Errorf("%w: prefix: %v", ErrParse, err)
	}
	subBytes, err := r.ReadVarBytes()
	if err != nil {
		return fmt.Errorf("%w: subfulfillment: %v", ErrParse, err)
	}
	sub, err := FromBinary(subBytes)
	if err != nil {
		return err
	}
	f.Prefix = append([]byte(nil), prefix...)
	f.Subfulfillment = sub
	return nil
}
