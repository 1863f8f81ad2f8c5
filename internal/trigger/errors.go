package trigger

import "errors"

// Sentinel errors for the trigger package.
var (
	// ErrEmitFailure wraps a submission that still failed after all retries.
	ErrEmitFailure = errors.New("trigger emit failed")

	// ErrEmptyIdentifier is returned for blank item identifiers, which are
	// skipped rather than submitted.
	ErrEmptyIdentifier = errors.New("empty item identifier")

	// ErrRejected marks an engine error that retrying cannot fix, such as a
	// 4xx response from a webhook. The emitter stops retrying on it.
	ErrRejected = errors.New("trigger rejected by engine")

	ErrWebhookStatus     = errors.New("webhook returned non-success status")
	ErrInvalidAuthType   = errors.New("invalid webhook auth type")
	ErrMissingWebhookURL = errors.New("webhook URL is required")
	ErrUnknownEngine     = errors.New("unknown trigger engine")
)
