// Package poller runs the tick cycle of an incremental change-detection
// poller: read the cursor, compute the window, scan the source, emit
// deduplicated triggers, then advance the cursor.
package poller

import (
	"fmt"
	"time"

	"github.com/SebastienMelki/dropwatch/internal/window"
)

// EmitFailurePolicy decides what a tick does when some items could not be
// submitted after all retries.
type EmitFailurePolicy string

const (
	// EmitFailureSkip logs and skips failed items; the cursor still advances.
	EmitFailureSkip EmitFailurePolicy = "skip"

	// EmitFailureHold fails the tick so the whole window is scanned again.
	EmitFailureHold EmitFailurePolicy = "hold"
)

// Config holds per-poller settings.
//
// Environment variable overrides (prefixed POLLER_ by the daemon):
//   - BOOTSTRAP_LOOKBACK, BUFFER, FLOOR: window parameters
//   - EVALUATION_INTERVAL: time between scheduled ticks (default: 30s)
//   - SCAN_TIMEOUT: bound on a single source scan (default: 5m)
//   - EMIT_FAILURE_POLICY: skip or hold (default: skip)
type Config struct {
	Window window.Config `yaml:",inline"`

	EvaluationInterval time.Duration     `env:"EVALUATION_INTERVAL" envDefault:"30s" yaml:"evaluation_interval"`
	ScanTimeout        time.Duration     `env:"SCAN_TIMEOUT" envDefault:"5m" yaml:"scan_timeout"`
	EmitFailurePolicy  EmitFailurePolicy `env:"EMIT_FAILURE_POLICY" envDefault:"skip" yaml:"emit_failure_policy"`
}

// DefaultConfig returns the poller defaults.
func DefaultConfig() Config {
	return Config{
		Window:             window.DefaultConfig(),
		EvaluationInterval: 30 * time.Second,
		ScanTimeout:        5 * time.Minute,
		EmitFailurePolicy:  EmitFailureSkip,
	}
}

// Validate reports whether the config can be used.
func (c Config) Validate() error {
	if err := c.Window.Validate(); err != nil {
		return err
	}
	if c.EvaluationInterval < 0 {
		return fmt.Errorf("%w: negative evaluation interval %s", ErrInvalidConfig, c.EvaluationInterval)
	}
	if c.ScanTimeout < 0 {
		return fmt.Errorf("%w: negative scan timeout %s", ErrInvalidConfig, c.ScanTimeout)
	}
	switch c.EmitFailurePolicy {
	case "", EmitFailureSkip, EmitFailureHold:
	default:
		return fmt.Errorf("%w: unknown emit failure policy %q", ErrInvalidConfig, c.EmitFailurePolicy)
	}
	return nil
}
