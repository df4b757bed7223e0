package fulfillment

import "errors"

var (
	// ErrInvalidArgument indicates malformed construction input, such as
	// a nil sub-proof or a non-positive weight.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrMissingData indicates a structurally incomplete fulfillment:
	// required fields are unset or the available weights cannot reach
	// the threshold.
	ErrMissingData = errors.New("missing data")

	// ErrParse indicates malformed fulfillment wire bytes. A partially
	// parsed fulfillment must be discarded.
	ErrParse = errors.New("fulfillment parse error")

	// ErrThresholdNotMet indicates the fulfilled weight is below the
	// threshold at validation time.
	ErrThresholdNotMet = errors.New("threshold not met")

	// ErrSignatureInvalid indicates a signature failed verification
	// against the message.
	ErrSignatureInvalid = errors.New("signature verification failed")

	// ErrConditionMismatch indicates a fulfillment does not derive the
	// condition it was checked against.
	ErrConditionMismatch = errors.New("fulfillment does not match condition")
)
