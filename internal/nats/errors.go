package nats

import "errors"

// Sentinel errors for the nats package.
var (
	ErrNotConnected   = errors.New("NATS is not connected")
	ErrPublishFailure = errors.New("failed to publish trigger")
	ErrInvalidSubject = errors.New("invalid trigger subject")
)
