package models

import "errors"

// Error taxonomy of the moderation core. Callers match with errors.Is;
// everything else wraps one of these or is an internal failure.
var (
	// ErrValidation marks malformed input, rejected before any mutation.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks an operation against a chapter with no record.
	ErrNotFound = errors.New("moderation record not found")

	// ErrStaleContent marks a result or action that targets content which
	// has changed since it was computed.
	ErrStaleContent = errors.New("content is stale")

	// ErrClassification marks an exhausted or unusable analysis run. It is
	// absorbed into a fail-safe WARN result, never a pipeline failure.
	ErrClassification = errors.New("classification failed")

	// ErrConcurrency marks an optimistic-concurrency conflict; the caller
	// must re-fetch and retry if the write is still intended.
	ErrConcurrency = errors.New("record was modified concurrently")

	// ErrPolicyUnavailable marks a failed policy snapshot load. Submission
	// fails closed rather than analyzing against zero policies.
	ErrPolicyUnavailable = errors.New("policy store unavailable")
)
