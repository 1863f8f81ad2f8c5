package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SebastienMelki/dropwatch/internal/poller"
)

type entry struct {
	poller   Tickable
	schedule Schedule

	// pending is set from the moment a tick is queued until it finishes, so
	// a poller is never queued twice.
	pending atomic.Bool
}

// Host owns the configured pollers. Each poller has its own schedule
// goroutine; ticks run on a pool of MaxParallelPollers workers.
type Host struct {
	config Config
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	order   []string
	running bool

	stopSchedules context.CancelFunc
	jobs          chan *entry
	schedWG       sync.WaitGroup
	workerWG      sync.WaitGroup
}

// New creates a host with no pollers.
func New(cfg Config, logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxParallelPollers < 1 {
		cfg.MaxParallelPollers = 1
	}

	return &Host{
		config:  cfg,
		logger:  logger.With("component", "host"),
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// Add registers p with its schedule. Pollers cannot be added while the host
// is running.
func (h *Host) Add(p Tickable, sched Schedule) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return ErrAlreadyRunning
	}
	id := p.ID()
	if _, ok := h.entries[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePoller, id)
	}

	h.entries[id] = &entry{poller: p, schedule: sched}
	h.order = append(h.order, id)
	return nil
}

// Pollers returns the registered poller ids in registration order.
func (h *Host) Pollers() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]string, len(h.order))
	copy(out, h.order)
	return out
}

// EvaluateTick runs one tick of pollerID at now on the caller's goroutine,
// outside the worker pool. It fails with poller.ErrTickInProgress if that
// poller is already ticking.
func (h *Host) EvaluateTick(ctx context.Context, pollerID string, now time.Time) (poller.TickResult, error) {
	h.mu.Lock()
	e, ok := h.entries[pollerID]
	h.mu.Unlock()

	if !ok {
		return poller.TickResult{PollerID: pollerID}, fmt.Errorf("%w: %s", ErrUnknownPoller, pollerID)
	}
	return e.poller.EvaluateTick(ctx, now)
}

// Start launches the schedules and the worker pool. Ticks run with ctx;
// cancelling it aborts in-flight ticks before they commit.
func (h *Host) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return ErrAlreadyRunning
	}

	schedCtx, cancel := context.WithCancel(ctx)
	h.stopSchedules = cancel
	h.jobs = make(chan *entry, len(h.entries))
	h.running = true

	for i := range h.config.MaxParallelPollers {
		h.workerWG.Add(1)
		go h.worker(ctx, schedCtx, i)
	}

	for _, id := range h.order {
		h.schedWG.Add(1)
		go h.schedule(schedCtx, h.entries[id])
	}

	h.logger.Info("host started",
		"pollers", len(h.order),
		"workers", h.config.MaxParallelPollers,
	)
	return nil
}

// Stop halts the schedules, drops queued ticks and waits for in-flight ticks
// to finish.
func (h *Host) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.stopSchedules()
	h.mu.Unlock()

	h.schedWG.Wait()
	close(h.jobs)
	h.workerWG.Wait()

	h.logger.Info("host stopped")
}

func (h *Host) schedule(ctx context.Context, e *entry) {
	defer h.schedWG.Done()

	if h.config.RunOnStart {
		h.enqueue(e)
	}

	for {
		now := h.now()
		next := e.schedule.Next(now)
		if next.IsZero() {
			h.logger.Warn("schedule never fires again", "poller", e.poller.ID())
			<-ctx.Done()
			return
		}
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			h.enqueue(e)
		}
	}
}

// enqueue queues a tick unless one is already queued or running. The jobs
// channel holds one slot per poller, so the send never blocks.
func (h *Host) enqueue(e *entry) {
	if !e.pending.CompareAndSwap(false, true) {
		h.logger.Warn("previous tick still pending, skipping slot", "poller", e.poller.ID())
		return
	}
	h.jobs <- e
}

func (h *Host) worker(ctx, schedCtx context.Context, workerID int) {
	defer h.workerWG.Done()

	for e := range h.jobs {
		if schedCtx.Err() != nil {
			e.pending.Store(false)
			continue
		}
		h.run(ctx, e, workerID)
	}
}

func (h *Host) run(ctx context.Context, e *entry, workerID int) {
	defer e.pending.Store(false)

	res, err := e.poller.EvaluateTick(ctx, h.now())
	switch {
	case errors.Is(err, poller.ErrTickInProgress):
		h.logger.Debug("poller busy, tick skipped", "poller", e.poller.ID(), "worker", workerID)
	case err != nil:
		h.logger.Warn("scheduled tick failed",
			"poller", e.poller.ID(),
			"worker", workerID,
			"status", res.Status,
			"error", err,
		)
	default:
		h.logger.Debug("scheduled tick done",
			"poller", e.poller.ID(),
			"worker", workerID,
			"emitted", res.Emitted,
		)
	}
}
