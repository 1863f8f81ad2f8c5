package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/SebastienMelki/dropwatch/internal/observability"
	"github.com/SebastienMelki/dropwatch/internal/scanner"
	"github.com/SebastienMelki/dropwatch/internal/sightings"
	"github.com/SebastienMelki/dropwatch/internal/trigger"
	"github.com/SebastienMelki/dropwatch/internal/watermark"
	"github.com/SebastienMelki/dropwatch/internal/window"
)

// Poller watches one source. Ticks of the same Poller never overlap; ticks of
// different Pollers share no mutable state apart from the watermark store,
// where each Poller owns a distinct key.
type Poller struct {
	id        string
	store     watermark.Store
	scanner   scanner.Scanner
	emitter   Emitter
	config    Config
	sightings *sightings.Tracker
	metrics   *observability.Metrics
	attrs     metric.MeasurementOption
	logger    *slog.Logger

	// token is held for the duration of a tick.
	token chan struct{}

	mu    sync.RWMutex
	state State
	last  TickResult
}

// Option configures a Poller.
type Option func(*Poller)

// WithSightings attaches a tracker used to estimate re-observed items.
func WithSightings(t *sightings.Tracker) Option {
	return func(p *Poller) { p.sightings = t }
}

// WithMetrics enables metric recording.
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Poller) { p.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) { p.logger = l }
}

// New creates a poller. The scanner is bounded by cfg.ScanTimeout.
func New(id string, store watermark.Store, src scanner.Scanner, emitter Emitter, cfg Config, opts ...Option) (*Poller, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("poller %s: %w", id, err)
	}
	if cfg.EmitFailurePolicy == "" {
		cfg.EmitFailurePolicy = EmitFailureSkip
	}

	p := &Poller{
		id:      id,
		store:   store,
		scanner: scanner.WithTimeout(src, cfg.ScanTimeout),
		emitter: emitter,
		config:  cfg,
		attrs:   metric.WithAttributes(attribute.String("poller", id)),
		token:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.logger = p.logger.With("component", "poller", "poller", id)

	return p, nil
}

// ID returns the poller id.
func (p *Poller) ID() string { return p.id }

// Config returns the poller configuration.
func (p *Poller) Config() Config { return p.config }

// State returns the current step of the tick cycle.
func (p *Poller) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// LastResult returns the result of the most recent completed tick.
func (p *Poller) LastResult() TickResult {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}

// Cursor returns the committed cursor.
func (p *Poller) Cursor(ctx context.Context) (time.Time, bool, error) {
	return p.store.Get(ctx, p.id)
}

// NextWindow returns the window a tick starting at now would scan.
func (p *Poller) NextWindow(ctx context.Context, now time.Time) (window.Window, error) {
	cursor, ok, err := p.store.Get(ctx, p.id)
	if err != nil {
		return window.Window{}, err
	}
	return window.Compute(p.config.Window, cursor, ok, now), nil
}

func (p *Poller) setState(s State) {
	p.mu.Lock()
	prev := p.state
	p.state = s
	p.mu.Unlock()
	p.logger.Debug("tick state", "from", prev, "to", s)
}

// EvaluateTick runs one tick at now.
//
// The cursor is committed only after emission was attempted for every
// discovered item, so a failure or crash at any earlier point leaves the
// cursor unchanged and the same window is scanned again. The committed value
// is max(previous cursor, now).
//
// A concurrent call on the same Poller returns a skipped result and
// ErrTickInProgress without touching any state.
func (p *Poller) EvaluateTick(ctx context.Context, now time.Time) (TickResult, error) {
	select {
	case p.token <- struct{}{}:
	default:
		if p.metrics != nil {
			p.metrics.TicksSkipped.Add(ctx, 1, p.attrs)
		}
		return TickResult{PollerID: p.id, Status: StatusSkipped}, ErrTickInProgress
	}
	defer func() { <-p.token }()

	started := time.Now()
	res, err := p.tick(ctx, now.UTC())
	res.Duration = time.Since(started)

	p.mu.Lock()
	p.last = res
	p.state = StateIdle
	p.mu.Unlock()

	p.record(ctx, res)

	if err != nil {
		p.logger.Error("tick failed",
			"state", res.FailedState,
			"window", res.Window,
			"error", err,
		)
		return res, err
	}

	p.logger.Info("tick committed",
		"window", res.Window,
		"discovered", res.Discovered,
		"emitted", res.Emitted,
		"duplicates", res.Duplicates,
		"failed", res.Failed,
		"reobserved", res.Reobserved,
		"cursor", res.Cursor,
		"duration", res.Duration,
	)
	return res, nil
}

func (p *Poller) tick(ctx context.Context, now time.Time) (TickResult, error) {
	res := TickResult{PollerID: p.id, Status: StatusFailed}

	fail := func(err error) (TickResult, error) {
		res.FailedState = p.State()
		p.setState(StateFailed)
		return res, err
	}

	p.setState(StateReadingCursor)
	prev, hasPrev, err := p.store.Get(ctx, p.id)
	if err != nil {
		return fail(fmt.Errorf("read cursor: %w", err))
	}

	res.Window = window.Compute(p.config.Window, prev, hasPrev, now)

	p.setState(StateScanning)
	scanStart := time.Now()
	items, err := p.scanner.Scan(ctx, res.Window)
	if p.metrics != nil {
		p.metrics.ScanDuration.Record(ctx, float64(time.Since(scanStart).Milliseconds()), p.attrs)
	}
	if err != nil {
		return fail(scanner.NewScanError(p.id, res.Window, err))
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	res.Discovered = len(items)
	if p.sightings != nil {
		res.Reobserved = p.sightings.ObserveAll(items, now)
	}

	p.setState(StateEmitting)
	summary, err := p.emitter.EmitAll(ctx, items, res.Window)
	res.Emitted = summary.Emitted()
	res.Duplicates = summary.Duplicates
	res.Skipped = summary.Skipped
	res.Failed = len(summary.Failed)
	if err != nil {
		return fail(err)
	}
	if res.Failed > 0 && p.config.EmitFailurePolicy == EmitFailureHold {
		return fail(fmt.Errorf("%w: %d of %d items, holding cursor", trigger.ErrEmitFailure, res.Failed, res.Discovered))
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	p.setState(StateCommitting)
	next := now
	if hasPrev && prev.After(next) {
		next = prev.UTC()
	}
	if err := p.store.Set(ctx, p.id, next); err != nil {
		return fail(fmt.Errorf("commit cursor: %w", err))
	}

	res.Status = StatusCommitted
	res.Cursor = next
	return res, nil
}

func (p *Poller) record(ctx context.Context, res TickResult) {
	if p.metrics == nil {
		return
	}
	// Recording happens after the tick, so a cancelled tick context must not
	// drop the measurements.
	ctx = context.WithoutCancel(ctx)

	p.metrics.Ticks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("poller", p.id),
		attribute.String("status", string(res.Status)),
	))
	p.metrics.TickDuration.Record(ctx, float64(res.Duration.Milliseconds()), p.attrs)
	p.metrics.ItemsDiscovered.Add(ctx, int64(res.Discovered), p.attrs)
	p.metrics.ItemsReobserved.Add(ctx, int64(res.Reobserved), p.attrs)

	if res.Status != StatusCommitted {
		p.metrics.TickFailures.Add(ctx, 1, p.attrs)
		return
	}
	p.metrics.CursorLag.Record(ctx, time.Since(res.Cursor).Seconds(), p.attrs)
}
