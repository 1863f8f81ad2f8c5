package poller

import "errors"

// Sentinel errors for the poller package.
var (
	// ErrTickInProgress is returned when a tick is requested while the
	// previous tick of the same poller is still running.
	ErrTickInProgress = errors.New("tick already in progress")

	ErrInvalidConfig = errors.New("invalid poller config")
	ErrEmptyID       = errors.New("poller id must not be empty")
	ErrInvalidID     = errors.New("invalid poller id")
)
