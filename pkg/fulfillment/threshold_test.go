package fulfillment

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wilsonianb/five-bells-condition/pkg/condition"
	"github.com/wilsonianb/five-bells-condition/pkg/encoding"
	"github.com/wilsonianb/five-bells-condition/pkg/types"
)

func mustCondition(t *testing.T, f Fulfillment) *condition.Condition {
	t.Helper()
	c, err := f.Condition()
	require.NoError(t, err)
	return c
}

func TestThresholdConditionRequiresSubconditions(t *testing.T) {
	agg := NewThresholdSha256(1)

	_, err := agg.Condition()
	assert.ErrorIs(t, err, ErrMissingData)
}

func TestThresholdConditionInsertionOrderIndependent(t *testing.T) {
	f1 := NewPreimageSha256([]byte("first"))
	f2 := NewPreimageSha256([]byte("second, and longer"))

	a := NewThresholdSha256(2)
	require.NoError(t, a.AddSubfulfillment(f1))
	require.NoError(t, a.AddSubfulfillmentWithWeight(f2, 2))

	b := NewThresholdSha256(2)
	require.NoError(t, b.AddSubfulfillmentWithWeight(f2, 2))
	require.NoError(t, b.AddSubfulfillment(f1))

	// Commitment and worst-case bound depend only on the entry set, not
	// on insertion order.
	assert.True(t, mustCondition(t, a).Equal(mustCondition(t, b)))

	aMax, err := a.MaxFulfillmentLength()
	require.NoError(t, err)
	bMax, err := b.MaxFulfillmentLength()
	require.NoError(t, err)
	assert.Equal(t, aMax, bMax)
}

func TestThresholdConditionIndependentOfFulfilledSubset(t *testing.T) {
	f1 := NewPreimageSha256([]byte("one"))
	f2 := NewPreimageSha256([]byte("two"))

	fulfilled := NewThresholdSha256(2)
	require.NoError(t, fulfilled.AddSubfulfillment(f1))
	require.NoError(t, fulfilled.AddSubfulfillment(f2))

	mixed := NewThresholdSha256(2)
	require.NoError(t, mixed.AddSubfulfillment(f1))
	require.NoError(t, mixed.AddSubcondition(mustCondition(t, f2)))

	bare := NewThresholdSha256(2)
	require.NoError(t, bare.AddSubcondition(mustCondition(t, f1)))
	require.NoError(t, bare.AddSubcondition(mustCondition(t, f2)))

	want := mustCondition(t, fulfilled)
	assert.True(t, want.Equal(mustCondition(t, mixed)))
	assert.True(t, want.Equal(mustCondition(t, bare)))
}

func TestThresholdBitmaskAggregation(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	inner := NewThresholdSha256(1)
	require.NoError(t, inner.AddSubfulfillment(NewEd25519(pub, nil)))

	outer := NewThresholdSha256(1)
	require.NoError(t, outer.AddSubfulfillment(inner))
	require.NoError(t, outer.AddSubfulfillment(NewPreimageSha256([]byte("s"))))

	want := types.FeatureSha256 | types.FeatureThreshold | types.FeatureEd25519 | types.FeaturePreimage
	assert.Equal(t, want, outer.Bitmask())
}

func TestThresholdValidateWeighted(t *testing.T) {
	heavy := NewPreimageSha256([]byte("weight two"))
	light := NewPreimageSha256([]byte("weight one"))

	// Only the weight-2 proof attached: meets the threshold.
	enough := NewThresholdSha256(2)
	require.NoError(t, enough.AddSubfulfillmentWithWeight(heavy, 2))
	require.NoError(t, enough.AddSubcondition(mustCondition(t, light)))
	assert.NoError(t, enough.Validate(nil))

	// Only the weight-1 proof attached: below the threshold.
	short := NewThresholdSha256(2)
	require.NoError(t, short.AddSubcondition(mustCondition(t, heavy)))
	require.NoError(t, short.AddSubfulfillment(light))
	assert.ErrorIs(t, short.Validate(nil), ErrThresholdNotMet)
}

func TestThresholdValidateInvalidSubProofFailsAll(t *testing.T) {
	message := []byte("the message")
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	good := &Ed25519{}
	good.Sign(priv, message)

	bad := &Ed25519{}
	bad.Sign(priv, []byte("a different message"))

	agg := NewThresholdSha256(1)
	require.NoError(t, agg.AddSubfulfillment(good))
	require.NoError(t, agg.AddSubfulfillment(bad))

	// Weight 2 ≥ threshold 1, but the invalid proof poisons the whole
	// fulfillment regardless of the remaining valid weight.
	assert.ErrorIs(t, agg.Validate(message), ErrSignatureInvalid)
}

func TestThresholdRoundTripIdempotent(t *testing.T) {
	agg := NewThresholdSha256(2)
	require.NoError(t, agg.AddSubfulfillment(NewPreimageSha256([]byte("alpha"))))
	require.NoError(t, agg.AddSubfulfillmentWithWeight(NewPreimageSha256([]byte("beta, somewhat longer")), 2))
	require.NoError(t, agg.AddSubcondition(mustCondition(t, NewPreimageSha256([]byte("gamma")))))

	first, err := agg.SerializeBinary()
	require.NoError(t, err)

	parsed, err := FromBinary(first)
	require.NoError(t, err)

	second, err := parsed.SerializeBinary()
	require.NoError(t, err)
	assert.True(t, bytes.Equal(first, second))

	assert.True(t, mustCondition(t, agg).Equal(mustCondition(t, parsed)))
	assert.NoError(t, parsed.Validate(nil))
}

func TestThresholdWriteSelectsSmallestSet(t *testing.T) {
	small := NewPreimageSha256([]byte("tiny"))
	large := NewPreimageSha256(make([]byte, 300))

	agg := NewThresholdSha256(1)
	require.NoError(t, agg.AddSubfulfillment(small))
	require.NoError(t, agg.AddSubfulfillment(large))

	data, err := agg.SerializeBinary()
	require.NoError(t, err)

	parsed, err := FromBinary(data)
	require.NoError(t, err)

	out := parsed.(*ThresholdSha256)
	var kept []Fulfillment
	for i := range out.subs {
		if out.subs[i].kind == kindFulfillment {
			kept = append(kept, out.subs[i].fulfillment)
		}
	}
	// Only the cheap proof survives; the large one is demoted to its
	// bare condition.
	require.Len(t, kept, 1)
	assert.Equal(t, small.Preimage, kept[0].(*PreimageSha256).Preimage)
	assert.NoError(t, out.Validate(nil))
}

func TestThresholdSerializeInsufficientFulfilledWeight(t *testing.T) {
	agg := NewThresholdSha256(2)
	require.NoError(t, agg.AddSubfulfillment(NewPreimageSha256([]byte("only one"))))
	require.NoError(t, agg.AddSubcondition(mustCondition(t, NewPreimageSha256([]byte("bare")))))

	_, err := agg.SerializeBinary()
	assert.ErrorIs(t, err, ErrMissingData)
}

func TestThresholdMaxFulfillmentLengthBound(t *testing.T) {
	f1 := NewPreimageSha256([]byte("short"))
	f2 := NewPreimageSha256(make([]byte, 150))

	// Bound computed from the declared structure only.
	declared := NewThresholdSha256(2)
	require.NoError(t, declared.AddSubcondition(mustCondition(t, f1)))
	require.NoError(t, declared.AddSubcondition(mustCondition(t, f2)))
	bound, err := declared.MaxFulfillmentLength()
	require.NoError(t, err)

	// Actual fulfillment constructed from the same structure.
	actual := NewThresholdSha256(2)
	require.NoError(t, actual.AddSubfulfillment(f1))
	require.NoError(t, actual.AddSubfulfillment(f2))
	data, err := actual.SerializeBinary()
	require.NoError(t, err)

	assert.True(t, mustCondition(t, declared).Equal(mustCondition(t, actual)))
	assert.GreaterOrEqual(t, bound, uint64(len(data)))
}

func TestThresholdMaxFulfillmentLengthPartialBound(t *testing.T) {
	// Threshold 1 of 2: the worst case carries the larger proof.
	small := NewPreimageSha256([]byte("s"))
	large := NewPreimageSha256(make([]byte, 200))

	agg := NewThresholdSha256(1)
	require.NoError(t, agg.AddSubfulfillment(small))
	require.NoError(t, agg.AddSubfulfillment(large))
	bound, err := agg.MaxFulfillmentLength()
	require.NoError(t, err)

	// Force the expensive variant: only the large proof is available.
	expensive := NewThresholdSha256(1)
	require.NoError(t, expensive.AddSubcondition(mustCondition(t, small)))
	require.NoError(t, expensive.AddSubfulfillment(large))
	data, err := expensive.SerializeBinary()
	require.NoError(t, err)

	assert.GreaterOrEqual(t, bound, uint64(len(data)))
}

func TestThresholdMaxFulfillmentLengthInsufficientWeight(t *testing.T) {
	agg := NewThresholdSha256(5)
	require.NoError(t, agg.AddSubfulfillment(NewPreimageSha256([]byte("a"))))
	require.NoError(t, agg.AddSubfulfillmentWithWeight(NewPreimageSha256([]byte("b")), 2))

	_, err := agg.MaxFulfillmentLength()
	assert.ErrorIs(t, err, ErrMissingData)

	_, err = agg.Condition()
	assert.ErrorIs(t, err, ErrMissingData)
}

func TestThresholdNested(t *testing.T) {
	message := []byte("nested message")
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	sig := &Ed25519{}
	sig.Sign(priv, message)

	inner := NewThresholdSha256(1)
	require.NoError(t, inner.AddSubfulfillment(NewPreimageSha256([]byte("inner secret"))))
	require.NoError(t, inner.AddSubcondition(mustCondition(t, sig)))

	outer := NewThresholdSha256(2)
	require.NoError(t, outer.AddSubfulfillment(inner))
	require.NoError(t, outer.AddSubfulfillment(sig))

	require.NoError(t, outer.Validate(message))

	data, err := outer.SerializeBinary()
	require.NoError(t, err)

	parsed, err := FromBinary(data)
	require.NoError(t, err)
	assert.NoError(t, parsed.Validate(message))
	assert.True(t, mustCondition(t, outer).Equal(mustCondition(t, parsed)))

	bound, err := outer.MaxFulfillmentLength()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, bound, uint64(len(data)))
}

func TestThresholdAddInvalidArgument(t *testing.T) {
	agg := NewThresholdSha256(1)

	assert.ErrorIs(t, agg.AddSubcondition(nil), ErrInvalidArgument)
	assert.ErrorIs(t, agg.AddSubfulfillment(nil), ErrInvalidArgument)

	c := mustCondition(t, NewPreimageSha256([]byte("s")))
	assert.ErrorIs(t, agg.AddSubconditionWithWeight(c, 0), ErrInvalidArgument)
	assert.ErrorIs(t, agg.AddSubconditionWithWeight(c, -3), ErrInvalidArgument)
	assert.ErrorIs(t, agg.AddSubfulfillmentWithWeight(NewPreimageSha256([]byte("s")), 0), ErrInvalidArgument)
}

func thresholdEnvelope(t *testing.T, payload *encoding.Writer) []byte {
	t.Helper()
	w := encoding.NewWriter()
	w.WriteVarUInt(uint64(types.TypeThresholdSha256))
	w.WriteVarBytes(payload.Buffer())
	return w.Buffer()
}

func TestThresholdParseAmbiguousEntry(t *testing.T) {
	f := NewPreimageSha256([]byte("s"))
	fulBytes, err := f.SerializeBinary()
	require.NoError(t, err)
	condBytes := mustCondition(t, f).SerializeBinary()

	payload := encoding.NewWriter()
	payload.WriteVarUInt(1) // threshold
	payload.WriteVarUInt(1) // count
	payload.WriteVarUInt(1) // weight
	payload.WriteVarBytes(fulBytes)
	payload.WriteVarBytes(condBytes)

	_, err = FromBinary(thresholdEnvelope(t, payload))
	assert.ErrorIs(t, err, ErrParse)
}

func TestThresholdParseEmptyEntry(t *testing.T) {
	payload := encoding.NewWriter()
	payload.WriteVarUInt(1) // threshold
	payload.WriteVarUInt(1) // count
	payload.WriteVarUInt(1) // weight
	payload.WriteVarBytes(nil)
	payload.WriteVarBytes(nil)

	_, err := FromBinary(thresholdEnvelope(t, payload))
	assert.ErrorIs(t, err, ErrParse)
}

func TestThresholdParseZeroWeight(t *testing.T) {
	condBytes := mustCondition(t, NewPreimageSha256([]byte("s"))).SerializeBinary()

	payload := encoding.NewWriter()
	payload.WriteVarUInt(1) // threshold
	payload.WriteVarUInt(1) // count
	payload.WriteVarUInt(0) // weight: invalid
	payload.WriteVarBytes(nil)
	payload.WriteVarBytes(condBytes)

	_, err := FromBinary(thresholdEnvelope(t, payload))
	assert.ErrorIs(t, err, ErrParse)
}

func TestSortRecordsTotalOrder(t *testing.T) {
	records := [][]byte{
		{0xff, 0x00},
		{0x01},
		{0x00, 0x01, 0x02},
		{0x00, 0xff},
		{0xfe},
	}
	sortRecords(records)

	// Shorter records always precede longer ones, lexicographic within
	// a length.
	want := [][]byte{
		{0x01},
		{0xfe},
		{0x00, 0xff},
		{0xff, 0x00},
		{0x00, 0x01, 0x02},
	}
	assert.Equal(t, want, records)

	// Re-sorting is a no-op.
	resorted := make([][]byte, len(records))
	copy(resorted, records)
	sortRecords(resorted)
	assert.Equal(t, records, resorted)
}
