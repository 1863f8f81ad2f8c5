// Package window computes the time interval a poller scans on each tick.
//
// The interval deliberately overlaps the previous tick's interval by the
// configured buffer so that items which become visible at the source after
// their recorded timestamp are still picked up. Overlap is made harmless by
// deduplication downstream, not by keeping windows disjoint.
package window

import (
	"errors"
	"fmt"
	"time"
)

// Default window parameters.
const (
	DefaultLookback = 15 * time.Minute
	DefaultBuffer   = 15 * time.Minute
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid window config")

// Config parameterises window computation. It is a value type; pollers hold
// their own copy and never mutate it.
type Config struct {
	// Lookback is the window width used on the very first tick, when no
	// cursor has been committed yet.
	Lookback time.Duration `env:"BOOTSTRAP_LOOKBACK" envDefault:"15m" yaml:"bootstrap_lookback"`

	// Buffer is subtracted from the window start on every tick.
	Buffer time.Duration `env:"BUFFER" envDefault:"15m" yaml:"buffer"`

	// Floor is the earliest instant a window may start at. The zero value
	// means the Unix epoch.
	Floor time.Time `env:"FLOOR" yaml:"floor"`
}

// DefaultConfig returns a 15 minute lookback, 15 minute buffer and an epoch
// floor.
func DefaultConfig() Config {
	return Config{
		Lookback: DefaultLookback,
		Buffer:   DefaultBuffer,
	}
}

// Validate reports whether the config can be used.
func (c Config) Validate() error {
	if c.Lookback < 0 {
		return fmt.Errorf("%w: negative lookback %s", ErrInvalidConfig, c.Lookback)
	}
	if c.Buffer < 0 {
		return fmt.Errorf("%w: negative buffer %s", ErrInvalidConfig, c.Buffer)
	}
	return nil
}

// floor returns the effective lower clamp.
func (c Config) floor() time.Time {
	if c.Floor.IsZero() {
		return time.Unix(0, 0).UTC()
	}
	return c.Floor.UTC()
}

// Window is an interval of source time, inclusive at both ends.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies inside the window, boundaries included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Duration returns End - Start.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s]", w.Start.Format(time.RFC3339Nano), w.End.Format(time.RFC3339Nano))
}

// Compute returns the window for a tick starting at now.
//
//	base  = cursor            (hasCursor)
//	      = now - Lookback    (bootstrap)
//	start = max(Floor, base - Buffer)
//	end   = now
//
// If a cursor lies ahead of now (clock skew), start is pulled back to end so
// that start <= end always holds.
func Compute(cfg Config, cursor time.Time, hasCursor bool, now time.Time) Window {
	now = now.UTC()

	base := now.Add(-cfg.Lookback)
	if hasCursor {
		base = cursor.UTC()
	}

	start := base.Add(-cfg.Buffer)
	if floor := cfg.floor(); start.Before(floor) {
		start = floor
	}
	if start.After(now) {
		start = now
	}

	return Window{Start: start, End: now}
}
