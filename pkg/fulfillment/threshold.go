package fulfillment

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/wilsonianb/five-bells-condition/pkg/condition"
	"github.com/wilsonianb/five-bells-condition/pkg/encoding"
	"github.com/wilsonianb/five-bells-condition/pkg/types"
)

// DefaultWeight is the weight assigned to subconditions added without
// an explicit one.
const DefaultWeight = 1

// subEntryKind discriminates the two forms a subcondition entry can
// take: a bare condition commitment or a full sub-proof.
type subEntryKind uint8

const (
	kindCondition subEntryKind = iota
	kindFulfillment
)

// subEntry is one element of the aggregator's collection. Exactly one
// of condition/fulfillment is set, per kind.
type subEntry struct {
	kind        subEntryKind
	condition   *condition.Condition
	fulfillment Fulfillment
	weight      int64
}

// subCondition returns the entry's commitment, deriving it from the
// sub-proof for fulfilled entries.
func (e *subEntry) subCondition() (*condition.Condition, error) {
	if e.kind == kindFulfillment {
		return e.fulfillment.Condition()
	}
	return e.condition, nil
}

func (e *subEntry) bitmask() uint32 {
	if e.kind == kindFulfillment {
		return e.fulfillment.Bitmask()
	}
	return e.condition.Bitmask
}

// maxFulfillmentLength bounds the serialized size of the entry's proof:
// declared by the condition for bare entries, computed recursively for
// fulfilled ones.
func (e *subEntry) maxFulfillmentLength() (uint64, error) {
	if e.kind == kindFulfillment {
		return e.fulfillment.MaxFulfillmentLength()
	}
	return e.condition.MaxFulfillmentLength, nil
}

// ThresholdSha256 aggregates weighted subconditions and is satisfied
// when the weights of its validated subfulfillments sum to at least the
// threshold.
//
// The condition commitment is independent of insertion order and of
// which entries currently carry proofs: it hashes over each entry's
// condition form, canonically sorted. Derived properties are recomputed
// on every call, so entries may be added at any point before the final
// derivation without risk of stale results.
//
// Payload wire format (entries canonically sorted):
//
//	VARUINT(threshold) VARUINT(count)
//	{ VARUINT(weight) VARBYTES(fulfillment|empty) VARBYTES(condition|empty) }*
type ThresholdSha256 struct {
	threshold uint64
	subs      []subEntry
}

// NewThresholdSha256 creates an empty aggregator with the given
// threshold. Entries are added with the AddSub* methods.
func NewThresholdSha256(threshold uint64) *ThresholdSha256 {
	return &ThresholdSha256{threshold: threshold}
}

// SetThreshold records the threshold. No bound checking happens here;
// whether the threshold is reachable is checked when a condition,
// length bound or serialization is requested.
func (t *ThresholdSha256) SetThreshold(threshold uint64) {
	t.threshold = threshold
}

// Threshold returns the recorded threshold.
func (t *ThresholdSha256) Threshold() uint64 {
	return t.threshold
}

// AddSubcondition appends an unfulfilled subcondition with the default
// weight of 1.
func (t *ThresholdSha256) AddSubcondition(c *condition.Condition) error {
	return t.AddSubconditionWithWeight(c, DefaultWeight)
}

// AddSubconditionWithWeight appends an unfulfilled subcondition. The
// weight must be a positive integer.
func (t *ThresholdSha256) AddSubconditionWithWeight(c *condition.Condition, weight int64) error {
	if c == nil {
		return fmt.Errorf("%w: nil subcondition", ErrInvalidArgument)
	}
	if weight < 1 {
		return fmt.Errorf("%w: weight must be a positive integer, got %d", ErrInvalidArgument, weight)
	}
	t.subs = append(t.subs, subEntry{kind: kindCondition, condition: c, weight: weight})
	return nil
}

// AddSubfulfillment appends a fulfilled sub-proof with the default
// weight of 1.
func (t *ThresholdSha256) AddSubfulfillment(f Fulfillment) error {
	return t.AddSubfulfillmentWithWeight(f, DefaultWeight)
}

// AddSubfulfillmentWithWeight appends a fulfilled sub-proof. The weight
// must be a positive integer.
func (t *ThresholdSha256) AddSubfulfillmentWithWeight(f Fulfillment, weight int64) error {
	if f == nil {
		return fmt.Errorf("%w: nil subfulfillment", ErrInvalidArgument)
	}
	if weight < 1 {
		return fmt.Errorf("%w: weight must be a positive integer, got %d", ErrInvalidArgument, weight)
	}
	t.subs = append(t.subs, subEntry{kind: kindFulfillment, fulfillment: f, weight: weight})
	return nil
}

func (t *ThresholdSha256) Type() types.ConditionType {
	return types.TypeThresholdSha256
}

// Bitmask aggregates this type's feature bits with every entry's,
// propagating required primitives through arbitrarily nested
// thresholds. Computed fresh on every call.
func (t *ThresholdSha256) Bitmask() uint32 {
	bitmask := t.Type().Features()
	for i := range t.subs {
		bitmask |= t.subs[i].bitmask()
	}
	return bitmask
}

func (t *ThresholdSha256) Condition() (*condition.Condition, error) {
	return deriveCondition(t)
}

func (t *ThresholdSha256) SerializeBinary() ([]byte, error) {
	return serializeFulfillment(t)
}

// Validate checks that the fulfilled weight reaches the threshold and
// that every attached sub-proof validates against message. A single
// invalid sub-proof fails the whole fulfillment even if the remaining
// valid weight would still meet the threshold; the writer is
// responsible for only including individually valid proofs.
func (t *ThresholdSha256) Validate(message []byte) error {
	fulfilled := lo.Filter(t.subs, func(e subEntry, _ int) bool {
		return e.kind == kindFulfillment
	})
	total := lo.SumBy(fulfilled, func(e subEntry) int64 {
		return e.weight
	})
	if total < int64(t.threshold) {
		return fmt.Errorf("%w: fulfilled weight %d of threshold %d", ErrThresholdNotMet, total, t.threshold)
	}
	for _, e := range fulfilled {
		if err := e.fulfillment.Validate(message); err != nil {
			return fmt.Errorf("subfulfillment %s: %w", e.fulfillment.Type(), err)
		}
	}
	return nil
}

// writeHashPayload builds the canonical hash payload: one record per
// entry (weight, then the entry's condition bytes), canonically sorted
// so the commitment is independent of insertion order and of which
// subset of entries happens to be fulfilled.
func (t *ThresholdSha256) writeHashPayload(w *encoding.Writer) error {
	if len(t.subs) == 0 {
		return fmt.Errorf("%w: threshold condition requires subconditions", ErrMissingData)
	}
	records := make([][]byte, 0, len(t.subs))
	for i := range t.subs {
		c, err := t.subs[i].subCondition()
		if err != nil {
			return err
		}
		rw := encoding.NewWriter()
		rw.WriteVarUInt(uint64(t.subs[i].weight))
		rw.Write(c.SerializeBinary())
		records = append(records, rw.Buffer())
	}
	sortRecords(records)
	w.WriteVarUInt(uint64(types.FeatureThreshold))
	w.WriteVarUInt(t.threshold)
	w.WriteVarUInt(uint64(len(records)))
	for _, rec := range records {
		w.Write(rec)
	}
	return nil
}

// weightedSize pairs an entry's weight with the marginal bytes incurred
// by carrying its full proof instead of its bare condition.
type weightedSize struct {
	weight int64
	size   int64
}

// MaxFulfillmentLength bounds the byte length of any valid serialized
// fulfillment for this condition before knowing which sub-proofs will
// be supplied. Every entry contributes its bare-condition record at
// minimum; on top of that, the worst-case minimal fulfilling subset
// contributes the marginal cost of carrying full proofs.
func (t *ThresholdSha256) MaxFulfillmentLength() (uint64, error) {
	var totalConditionLength uint64
	entries := make([]weightedSize, 0, len(t.subs))
	for i := range t.subs {
		e := &t.subs[i]
		c, err := e.subCondition()
		if err != nil {
			return 0, err
		}
		maxLen, err := e.maxFulfillmentLength()
		if err != nil {
			return 0, err
		}
		condLen := predictRecordLength(uint64(e.weight), uint64(len(c.SerializeBinary())), false)
		fulLen := predictRecordLength(uint64(e.weight), maxLen, true)
		totalConditionLength += condLen
		entries = append(entries, weightedSize{weight: e.weight, size: int64(fulLen) - int64(condLen)})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].weight > entries[j].weight
	})
	marginal, ok := worstCaseLength(int64(t.threshold), entries, 0)
	if !ok {
		return 0, fmt.Errorf("%w: insufficient subconditions or weights to meet threshold %d", ErrMissingData, t.threshold)
	}
	payload := encoding.NewPredictor()
	payload.WriteVarUInt(t.threshold)
	payload.WriteVarUInt(uint64(len(t.subs)))
	payload.Skip(totalConditionLength)
	payload.Skip(uint64(marginal))
	outer := encoding.NewPredictor()
	outer.WriteVarUInt(uint64(t.Type()))
	outer.WriteVarBytesLength(payload.Size())
	return outer.Size(), nil
}

// predictRecordLength computes the wire length of one entry record with
// a body of bodyLen bytes in either the fulfillment or the condition
// slot; the other slot is empty.
func predictRecordLength(weight, bodyLen uint64, fulfilled bool) uint64 {
	p := encoding.NewPredictor()
	p.WriteVarUInt(weight)
	if fulfilled {
		p.WriteVarBytesLength(bodyLen)
		p.WriteVarBytesLength(0)
	} else {
		p.WriteVarBytesLength(0)
		p.WriteVarBytesLength(bodyLen)
	}
	return p.Size()
}

// worstCaseLength maximizes total marginal size over all minimal
// subsets of entries whose weights sum to at least remaining. At each
// entry the subset either includes it (consuming its weight, paying its
// marginal size) or skips it. Exponential in the entry count, which is
// small and bounded upstream.
func worstCaseLength(remaining int64, entries []weightedSize, index int) (int64, bool) {
	if remaining <= 0 {
		return 0, true
	}
	if index >= len(entries) {
		return 0, false
	}
	with, okWith := worstCaseLength(remaining-entries[index].weight, entries, index+1)
	with += entries[index].size
	without, okWithout := worstCaseLength(remaining, entries, index+1)
	switch {
	case okWith && okWithout:
		if with > without {
			return with, true
		}
		return without, true
	case okWith:
		return with, true
	case okWithout:
		return without, true
	default:
		return 0, false
	}
}

// fulfillmentCandidate is a fulfilled entry considered for inclusion in
// the serialized output: size is its cost when included, omitSize its
// cost when demoted to a bare condition.
type fulfillmentCandidate struct {
	index    int
	weight   int64
	size     int64
	omitSize int64
}

type smallestSetResult struct {
	size int64
	set  []int
	ok   bool
}

// smallestValidSet picks the cheapest subset of candidates whose
// weights reach remaining, accounting omitted candidates at their
// bare-condition cost. The mirror of worstCaseLength: minimize over
// actual proofs instead of maximize over bounds.
func smallestValidSet(remaining int64, candidates []fulfillmentCandidate, index int, size int64, set []int) smallestSetResult {
	if remaining <= 0 {
		return smallestSetResult{size: size, set: set, ok: true}
	}
	if index >= len(candidates) {
		return smallestSetResult{ok: false}
	}
	next := candidates[index]
	withSet := make([]int, 0, len(set)+1)
	withSet = append(withSet, set...)
	withSet = append(withSet, next.index)
	with := smallestValidSet(remaining-next.weight, candidates, index+1, size+next.size, withSet)
	without := smallestValidSet(remaining, candidates, index+1, size+next.omitSize, set)
	switch {
	case with.ok && without.ok:
		if with.size < without.size {
			return with
		}
		return without
	case with.ok:
		return with
	case without.ok:
		return without
	default:
		return smallestSetResult{ok: false}
	}
}

// writePayload emits the threshold wire format, including full proofs
// only for the smallest valid subset of the currently fulfilled entries
// and demoting the rest to bare conditions in the output. The in-memory
// aggregator is not mutated.
func (t *ThresholdSha256) writePayload(w *encoding.Writer) error {
	serializedConds := make([][]byte, len(t.subs))
	serializedFuls := make([][]byte, len(t.subs))
	var candidates []fulfillmentCandidate
	for i := range t.subs {
		e := &t.subs[i]
		c, err := e.subCondition()
		if err != nil {
			return err
		}
		serializedConds[i] = c.SerializeBinary()
		if e.kind == kindFulfillment {
			fb, err := e.fulfillment.SerializeBinary()
			if err != nil {
				return err
			}
			serializedFuls[i] = fb
			candidates = append(candidates, fulfillmentCandidate{
				index:    i,
				weight:   e.weight,
				size:     int64(len(fb)),
				omitSize: int64(len(serializedConds[i])),
			})
		}
	}
	smallest := smallestValidSet(int64(t.threshold), candidates, 0, 0, nil)
	if !smallest.ok {
		// Construction-time checks normally rule this out; re-check
		// rather than emit an unsatisfiable fulfillment.
		return fmt.Errorf("%w: insufficient fulfilled weight to meet threshold %d", ErrMissingData, t.threshold)
	}
	include := make(map[int]bool, len(smallest.set))
	for _, i := range smallest.set {
		include[i] = true
	}
	records := make([][]byte, 0, len(t.subs))
	for i := range t.subs {
		e := &t.subs[i]
		rw := encoding.NewWriter()
		rw.WriteVarUInt(uint64(e.weight))
		if e.kind == kindFulfillment && include[i] {
			rw.WriteVarBytes(serializedFuls[i])
			rw.WriteVarBytes(nil)
		} else {
			rw.WriteVarBytes(nil)
			rw.WriteVarBytes(serializedConds[i])
		}
		records = append(records, rw.Buffer())
	}
	sortRecords(records)
	w.WriteVarUInt(t.threshold)
	w.WriteVarUInt(uint64(len(records)))
	for _, rec := range records {
		w.Write(rec)
	}
	return nil
}

// parsePayload reads the threshold wire format. Each entry must carry
// exactly one of a fulfillment or a condition.
func (t *ThresholdSha256) parsePayload(r *encoding.Reader) error {
	threshold, err := r.ReadVarUInt()
	if err != nil {
		return fmt.Errorf("%w: threshold: %v", ErrParse, err)
	}
	count, err := r.ReadVarUInt()
	if err != nil {
		return fmt.Errorf("%w: subcondition count: %v", ErrParse, err)
	}
	t.SetThreshold(threshold)
	for i := uint64(0); i < count; i++ {
		weight, err := r.ReadVarUInt()
		if err != nil {
			return fmt.Errorf("%w: entry %d weight: %v", ErrParse, i, err)
		}
		fulBytes, err := r.ReadVarBytes()
		if err != nil {
			return fmt.Errorf("%w: entry %d fulfillment: %v", ErrParse, i, err)
		}
		condBytes, err := r.ReadVarBytes()
		if err != nil {
			return fmt.Errorf("%w: entry %d condition: %v", ErrParse, i, err)
		}
		switch {
		case len(fulBytes) > 0 && len(condBytes) > 0:
			return fmt.Errorf("%w: entry %d has both a fulfillment and a condition", ErrParse, i)
		case len(fulBytes) > 0:
			sub, err := FromBinary(fulBytes)
			if err != nil {
				return err
			}
			if err := t.AddSubfulfillmentWithWeight(sub, int64(weight)); err != nil {
				return fmt.Errorf("%w: entry %d: %v", ErrParse, i, err)
			}
		case len(condBytes) > 0:
			sub, err := condition.FromBinary(condBytes)
			if err != nil {
				return err
			}
			if err := t.AddSubconditionWithWeight(sub, int64(weight)); err != nil {
				return fmt.Errorf("%w: entry %d: %v", ErrParse, i, err)
			}
		default:
			return fmt.Errorf("%w: entry %d has neither a fulfillment nor a condition", ErrParse, i)
		}
	}
	return nil
}

// sortRecords orders serialized records by length ascending, then
// lexicographically, a total order guaranteeing a unique encoding for
// semantically equal structures.
func sortRecords(records [][]byte) {
	sort.SliceStable(records, func(i, j int) bool {
		if len(records[i]) != len(records[j]) {
			return len(records[i]) < len(records[j])
		}
		return bytes.Compare(records[i], records[j]) < 0
	})
}
