package watermark

import "errors"

// Sentinel errors for the watermark package.
var (
	// ErrStoreFailure wraps every backend read or write error.
	ErrStoreFailure = errors.New("watermark store failure")

	// ErrEmptyPollerID indicates a call without a poller id.
	ErrEmptyPollerID = errors.New("poller id must not be empty")

	// ErrUnsupportedScheme indicates a DSN whose scheme has no backend.
	ErrUnsupportedScheme = errors.New("unsupported watermark store scheme")
)
