package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	"github.com/SebastienMelki/dropwatch/internal/observability"
	"github.com/SebastienMelki/dropwatch/internal/window"
)

// Summary reports the outcome of EmitAll.
type Summary struct {
	// Submitted counts requests the engine accepted as new.
	Submitted int
	// Duplicates counts requests the engine recognised as repeats.
	Duplicates int
	// Skipped counts blank identifiers.
	Skipped int
	// Failed lists identifiers whose submission failed after all retries.
	Failed []string
}

// Emitted is the number of requests the engine acknowledged.
func (s Summary) Emitted() int {
	return s.Submitted + s.Duplicates
}

// Emitter submits one trigger request per discovered item. An Emitter is
// bound to a single poller.
type Emitter struct {
	pollerID string
	engine   Engine
	config   Config
	limiter  *rate.Limiter
	metrics  *observability.Metrics
	attrs    metric.MeasurementOption
	logger   *slog.Logger
	now      func() time.Time
}

// NewEmitter creates an emitter for pollerID. metrics may be nil.
func NewEmitter(pollerID string, engine Engine, cfg Config, metrics *observability.Metrics, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RetryLimit < 0 {
		cfg.RetryLimit = 0
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Emitter{
		pollerID: pollerID,
		engine:   engine,
		config:   cfg,
		limiter:  limiter,
		metrics:  metrics,
		attrs:    metric.WithAttributes(attribute.String("poller", pollerID)),
		logger:   logger.With("component", "trigger-emitter", "poller", pollerID),
		now:      time.Now,
	}
}

// Emit submits a trigger for item discovered in w. Failed attempts are
// retried with exponential backoff up to RetryLimit times; an ErrRejected
// error or context cancellation ends the retries early. The returned error
// wraps ErrEmitFailure unless it is ErrEmptyIdentifier or a context error.
func (e *Emitter) Emit(ctx context.Context, item string, w window.Window) (Request, Receipt, error) {
	req, err := NewRequest(e.pollerID, item, w, e.now())
	if err != nil {
		return Request{}, Receipt{}, err
	}

	body, err := req.Body()
	if err != nil {
		return req, Receipt{}, fmt.Errorf("%w: %w", ErrEmitFailure, err)
	}

	var lastErr error
	for attempt := 0; attempt <= e.config.RetryLimit; attempt++ {
		if attempt > 0 {
			delay := e.config.backoff(attempt)
			e.logger.Warn("retrying trigger submission",
				"key", req.Key,
				"attempt", attempt+1,
				"backoff", delay,
				"error", lastErr,
			)
			if e.metrics != nil {
				e.metrics.TriggerRetries.Add(ctx, 1, e.attrs)
			}
			if err := wait(ctx, delay); err != nil {
				return req, Receipt{}, err
			}
		}

		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return req, Receipt{}, ctxErr
				}
				return req, Receipt{}, fmt.Errorf("%w: rate limiter: %w", ErrEmitFailure, err)
			}
		}

		receipt, err := e.engine.Submit(ctx, req.Key, body)
		if err == nil {
			e.record(ctx, receipt)
			return req, receipt, nil
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return req, Receipt{}, ctxErr
		}
		if errors.Is(err, ErrRejected) {
			break
		}
	}

	if e.metrics != nil {
		e.metrics.TriggersFailed.Add(ctx, 1, e.attrs)
	}
	return req, Receipt{}, fmt.Errorf("%w: key %q: %w", ErrEmitFailure, req.Key, lastErr)
}

// EmitAll attempts every item. A failing item is logged and recorded in the
// summary without stopping the rest of the batch. The only error returned is
// the context error when ctx is cancelled mid-batch.
func (e *Emitter) EmitAll(ctx context.Context, items []string, w window.Window) (Summary, error) {
	var s Summary
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return s, err
		}

		_, receipt, err := e.Emit(ctx, item, w)
		switch {
		case err == nil && receipt.Duplicate:
			s.Duplicates++
		case err == nil:
			s.Submitted++
		case errors.Is(err, ErrEmptyIdentifier):
			s.Skipped++
			e.logger.Debug("skipping empty identifier")
		case ctx.Err() != nil:
			return s, ctx.Err()
		default:
			s.Failed = append(s.Failed, item)
			e.logger.Error("trigger emit failed, skipping item for this tick",
				"item", item,
				"error", err,
			)
		}
	}
	return s, nil
}

func (e *Emitter) record(ctx context.Context, receipt Receipt) {
	if e.metrics == nil {
		return
	}
	if receipt.Duplicate {
		e.metrics.TriggersDuplicate.Add(ctx, 1, e.attrs)
		return
	}
	e.metrics.TriggersSubmitted.Add(ctx, 1, e.attrs)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
