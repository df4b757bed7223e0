package fulfillment

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/wilsonianb/five-bells-condition/pkg/condition"
	"github.com/wilsonianb/five-bells-condition/pkg/encoding"
	"github.com/wilsonianb/five-bells-condition/pkg/types"
)

// rsaSaltLength is the PSS salt length in bytes, fixed so signatures
// are interoperable across implementations.
const rsaSaltLength = 32

// rsaPublicExponent is fixed; only the modulus is carried on the wire.
const rsaPublicExponent = 65537

// RsaSha256 is an RSA-PSS (SHA-256) signature over the message. The
// condition commits to the modulus; the exponent is fixed at 65537.
type RsaSha256 struct {
	Modulus   []byte
	Signature []byte
}

// NewRsaSha256 creates an RSA signature fulfillment. Signature may be
// nil until signing; the condition can still be derived.
func NewRsaSha256(modulus, signature []byte) *RsaSha256 {
	return &RsaSha256{Modulus: modulus, Signature: signature}
}

func (f *RsaSha256) Type() types.ConditionType {
	return types.TypeRsaSha256
}

func (f *RsaSha256) Bitmask() uint32 {
	return f.Type().Features()
}

func (f *RsaSha256) Condition() (*condition.Condition, error) {
	return deriveCondition(f)
}

func (f *RsaSha256) MaxFulfillmentLength() (uint64, error) {
	if len(f.Modulus) == 0 {
		return 0, fmt.Errorf("%w: modulus not set", ErrMissingData)
	}
	// A PSS signature is exactly as long as the modulus.
	inner := encoding.NewPredictor()
	inner.WriteVarBytes(f.Modulus)
	inner.WriteVarBytesLength(uint64(len(f.Modulus)))
	outer := encoding.NewPredictor()
	outer.WriteVarUInt(uint64(f.Type()))
	outer.WriteVarBytesLength(inner.Size())
	return outer.Size(), nil
}

func (f *RsaSha256) SerializeBinary() ([]byte, error) {
	return serializeFulfillment(f)
}

func (f *RsaSha256) Validate(message []byte) error {
	if len(f.Modulus) == 0 {
		return fmt.Errorf("%w: modulus not set", ErrMissingData)
	}
	if len(f.Signature) == 0 {
		return fmt.Errorf("%w: signature not set", ErrMissingData)
	}
	pub := &rsa.PublicKey{
		N: new(big.Int).SetBytes(f.Modulus),
		E: rsaPublicExponent,
	}
	digest := sha256.Sum256(message)
	opts := &rsa.PSSOptions{SaltLength: rsaSaltLength, Hash: crypto.SHA256}
	if err := rsa.VerifyPSS(pub, crypto.SHA256, digest[:], f.Signature, opts); err != nil {
		return fmt.Errorf("%w: rsa-pss: %v", ErrSignatureInvalid, err)
	}
	return nil
}

func (f *RsaSha256) writeHashPayload(w *encoding.Writer) error {
	if len(f.Modulus) == 0 {
		return fmt.Errorf("%w: modulus not set", ErrMissingData)
	}
	w.WriteVarBytes(f.Modulus)
	return nil
}

func (f *RsaSha256) writePayload(w *encoding.Writer) error {
	if len(f.Modulus) == 0 {
		return fmt.Errorf("%w: modulus not set", ErrMissingData)
	}
	if len(f.Signature) == 0 {
		return fmt.Errorf("%w: signature not set", ErrMissingData)
	}
	w.WriteVarBytes(f.Modulus)
	w.WriteVarBytes(f.Signature)
	return nil
}

func (f *RsaSha256) parsePayload(r *encoding.Reader) error {
	modulus, err := r.ReadVarBytes()
	if err != nil {
		return fmt.Errorf("%w: modulus: %v", ErrParse, err)
	}
	if len(modulus) == 0 {
		return fmt.Errorf("%w: empty modulus", ErrParse)
	}
	sig, err := r.ReadVarBytes()
	if err != nil {
		return fmt.Errorf("%w: signature: %v", ErrParse, err)
	}
	if len(sig) != len(modulus) {
		return fmt.Errorf("%w: signature length %d does not match modulus length %d", ErrParse, len(sig), len(modulus))
	}
	f.Modulus = append([]byte(nil), modulus...)
	f.Signature = append([]byte(nil), sig...)
	return nil
}
