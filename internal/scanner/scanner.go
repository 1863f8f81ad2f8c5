// Package scanner lists the items an external source holds inside a time
// window.
//
// Scanners report item identifiers only. The same identifier may be returned
// by consecutive scans whose windows overlap, and a single scan may contain
// duplicates; callers rely on downstream deduplication rather than on the
// scanner for uniqueness.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SebastienMelki/dropwatch/internal/window"
)

// Scanner queries a source for the identifiers of items that fall inside w.
type Scanner interface {
	Scan(ctx context.Context, w window.Window) ([]string, error)
}

// Func adapts a plain function to the Scanner interface.
type Func func(ctx context.Context, w window.Window) ([]string, error)

// Scan implements Scanner.
func (f Func) Scan(ctx context.Context, w window.Window) ([]string, error) {
	return f(ctx, w)
}

// ErrScanFailure is the sentinel every scan error matches with errors.Is.
var ErrScanFailure = errors.New("scan failure")

// ScanError describes a failed scan.
type ScanError struct {
	Source string
	Window window.Window
	Err    error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s %s: %v", e.Source, e.Window, e.Err)
}

// Unwrap exposes both the cause and ErrScanFailure to errors.Is.
func (e *ScanError) Unwrap() []error {
	return []error{ErrScanFailure, e.Err}
}

// NewScanError wraps err as a scan failure. A nil err yields nil.
func NewScanError(source string, w window.Window, err error) error {
	if err == nil {
		return nil
	}
	var se *ScanError
	if errors.As(err, &se) {
		return err
	}
	return &ScanError{Source: source, Window: w, Err: err}
}

// WithTimeout bounds every scan by d. A timeout surfaces as a ScanError
// wrapping context.DeadlineExceeded. Non-positive d disables the bound.
func WithTimeout(s Scanner, d time.Duration) Scanner {
	if d <= 0 {
		return s
	}
	return Func(func(ctx context.Context, w window.Window) ([]string, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		items, err := s.Scan(ctx, w)
		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}
		if err != nil {
			return nil, NewScanError("timeout", w, err)
		}
		return items, nil
	})
}
