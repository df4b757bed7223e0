package fulfillment

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wilsonianb/five-bells-condition/pkg/types"
)

func signedRsa(t *testing.T, message []byte) *RsaSha256 {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	digest := sha256.Sum256(message)
	sig, err := rsa.SignPSS(rand.Reader, key, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsaSaltLength,
		Hash:       crypto.SHA256,
	})
	require.NoError(t, err)

	return NewRsaSha256(key.N.Bytes(), sig)
}

func TestRsaValidate(t *testing.T) {
	message := []byte("pay bob 5")
	f := signedRsa(t, message)

	assert.NoError(t, f.Validate(message))
	assert.ErrorIs(t, f.Validate([]byte("pay eve 5")), ErrSignatureInvalid)
}

func TestRsaRoundTrip(t *testing.T) {
	message := []byte("round trip")
	f := signedRsa(t, message)

	data, err := f.SerializeBinary()
	require.NoError(t, err)

	parsed, err := FromBinary(data)
	require.NoError(t, err)
	assert.NoError(t, parsed.Validate(message))

	cond, err := f.Condition()
	require.NoError(t, err)
	assert.Equal(t, types.FeatureSha256|types.FeatureRsaPss, cond.Bitmask)
	assert.GreaterOrEqual(t, cond.MaxFulfillmentLength, uint64(len(data)))
}

func TestRsaConditionCommitsToModulusOnly(t *testing.T) {
	f := signedRsa(t, []byte("msg"))

	withSig, err := f.Condition()
	require.NoError(t, err)

	unsigned := NewRsaSha256(f.Modulus, nil)
	withoutSig, err := unsigned.Condition()
	require.NoError(t, err)

	assert.True(t, withSig.Equal(withoutSig))
}

func TestRsaParseSignatureModulusMismatch(t *testing.T) {
	f := signedRsa(t, []byte("msg"))
	f.Signature = f.Signature[:len(f.Signature)-1]

	data, err := f.SerializeBinary()
	require.NoError(t, err)

	_, err = FromBinary(data)
	assert.ErrorIs(t, err, ErrParse)
}
