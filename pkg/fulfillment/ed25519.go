package fulfillment

import (
	"crypto/ed25519"
	"fmt"

	"github.com/wilsonianb/five-bells-condition/pkg/condition"
	"github.com/wilsonianb/five-bells-condition/pkg/encoding"
	"github.com/wilsonianb/five-bells-condition/pkg/types"
)

// Ed25519 is an Ed25519 signature over the message (RFC 8032 key and
// signature encodings). The condition commits to the public key only,
// so it can be derived before the message is signed.
type Ed25519 struct {
	PublicKey []byte
	Signature []byte
}

// NewEd25519 creates a signature fulfillment. Signature may be nil
// until signing; the condition can still be derived.
func NewEd25519(publicKey, signature []byte) *Ed25519 {
	return &Ed25519{PublicKey: publicKey, Signature: signature}
}

// Sign sets the signature over message using key.
func (f *Ed25519) Sign(key ed25519.PrivateKey, message []byte) {
	f.PublicKey = key.Public().(ed25519.PublicKey)
	f.Signature = ed25519.Sign(key, message)
}

func (f *Ed25519) Type() types.ConditionType {
	return types.TypeEd25519
}

func (f *Ed25519) Bitmask() uint32 {
	return f.Type().Features()
}

func (f *Ed25519) Condition() (*condition.Condition, error) {
	return deriveCondition(f)
}

func (f *Ed25519) MaxFulfillmentLength() (uint64, error) {
	if len(f.PublicKey) != ed25519.PublicKeySize {
		return 0, fmt.Errorf("%w: public key must be %d bytes", ErrMissingData, ed25519.PublicKeySize)
	}
	inner := encoding.NewPredictor()
	inner.WriteVarBytes(f.PublicKey)
	inner.WriteVarBytesLength(ed25519.SignatureSize)
	outer := encoding.NewPredictor()
	outer.WriteVarUInt(uint64(f.Type()))
	outer.WriteVarBytesLength(inner.Size())
	return outer.Size(), nil
}

func (f *Ed25519) SerializeBinary() ([]byte, error) {
	return serializeFulfillment(f)
}

func (f *Ed25519) Validate(message []byte) error {
	if len(f.PublicKey) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: public key must be %d bytes", ErrMissingData, ed25519.PublicKeySize)
	}
	if len(f.Signature) != ed25519.SignatureSize {
		return fmt.Errorf("%w: signature must be %d bytes", ErrMissingData, ed25519.SignatureSize)
	}
	if !ed25519.Verify(ed25519.PublicKey(f.PublicKey), message, f.Signature) {
		return fmt.Errorf("%w: ed25519", ErrSignatureInvalid)
	}
	return nil
}

func (f *Ed25519) writeHashPayload(w *encoding.Writer) error {
	if len(f.PublicKey) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: public key must be %d bytes", ErrMissingData, ed25519.PublicKeySize)
	}
	w.WriteVarBytes(f.PublicKey)
	return nil
}

func (f *Ed25519) writePayload(w *encoding.Writer) error {
	if len(f.PublicKey) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: public key must be %d bytes", ErrMissingData, ed25519.PublicKeySize)
	}
	if len(f.Signature) != ed25519.SignatureSize {
		return fmt.Errorf("%w: signature must be %d bytes", ErrMissingData, ed25519.SignatureSize)
	}
	w.WriteVarBytes(f.PublicKey)
	w.WriteVarBytes(f.Signature)
	return nil
}

func (f *Ed25519) parsePayload(r *encoding.Reader) error {
	pub, err := r.ReadVarBytes()
	if err != nil {
		return fmt.Errorf("%w: public key: %v", ErrParse, err)
	}
	if len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: public key must be %d bytes, got %d", ErrParse, ed25519.PublicKeySize, len(pub))
	}
	sig, err := r.ReadVarBytes()
	if err != nil {
		return fmt.Errorf("%w: signature: %v", ErrParse, err)
	}
	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("%w: signature must be %d bytes, got %d", ErrParse, ed25519.SignatureSize, len(sig))
	}
	f.PublicKey = append([]byte(nil), pub...)
	f.Signature = append([]byte(nil), sig...)
	return nil
}
