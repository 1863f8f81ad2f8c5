package host

import "errors"

// Sentinel errors for the host package.
var (
	ErrUnknownPoller     = errors.New("unknown poller")
	ErrDuplicatePoller   = errors.New("duplicate poller id")
	ErrInvalidSchedule   = errors.New("invalid schedule")
	ErrInvalidDefinition = errors.New("invalid poller definition")
	ErrAlreadyRunning    = errors.New("host already running")
)
