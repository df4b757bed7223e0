// Package types defines the condition type identifiers and feature
// bitmask constants shared by conditions and fulfillments.
package types

// ConditionType identifies a condition/fulfillment type on the wire.
type ConditionType uint64

const (
	// TypePreimageSha256 is the hashlock type: the fulfillment is the preimage itself.
	TypePreimageSha256 ConditionType = 0
	// TypePrefixSha256 prepends a fixed prefix to the message before
	// delegating to an inner fulfillment.
	TypePrefixSha256 ConditionType = 1
	// TypeThresholdSha256 is satisfied by any weighted combination of
	// subfulfillments meeting a threshold.
	TypeThresholdSha256 ConditionType = 2
	// TypeRsaSha256 is an RSA-PSS signature over the message.
	TypeRsaSha256 ConditionType = 3
	// TypeEd25519 is an Ed25519 signature over the message.
	TypeEd25519 ConditionType = 4
)

// Feature bits. A condition's bitmask is the OR of the feature bits a
// verifier must support to validate it; composite types aggregate the
// bits of their subconditions transitively.
const (
	FeatureSha256    uint32 = 0x01
	FeaturePreimage  uint32 = 0x02
	FeaturePrefix    uint32 = 0x04
	FeatureThreshold uint32 = 0x08
	FeatureRsaPss    uint32 = 0x10
	FeatureEd25519   uint32 = 0x20
)

// typeFeatures maps each type to its own feature bits, before any
// aggregation over subconditions.
var typeFeatures = map[ConditionType]uint32{
	TypePreimageSha256:  FeatureSha256 | FeaturePreimage,
	TypePrefixSha256:    FeatureSha256 | FeaturePrefix,
	TypeThresholdSha256: FeatureSha256 | FeatureThreshold,
	TypeRsaSha256:       FeatureSha256 | FeatureRsaPss,
	TypeEd25519:         FeatureEd25519,
}

// typeNames holds the canonical lowercase names used in URIs and logs.
var typeNames = map[ConditionType]string{
	TypePreimageSha256:  "preimage-sha-256",
	TypePrefixSha256:    "prefix-sha-256",
	TypeThresholdSha256: "threshold-sha-256",
	TypeRsaSha256:       "rsa-sha-256",
	TypeEd25519:         "ed25519",
}

// IsTypeSupported checks whether a type identifier is known.
func IsTypeSupported(t ConditionType) bool {
	_, ok := typeFeatures[t]
	return ok
}

// Features returns the type's own feature bits. Unknown types have no
// features.
func (t ConditionType) Features() uint32 {
	return typeFeatures[t]
}

// String returns the canonical type name, or "unknown" for
// unregistered identifiers.
func (t ConditionType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}
