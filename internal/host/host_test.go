package host

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SebastienMelki/dropwatch/internal/poller"
)

// gauge tracks how many ticks run at once across all pollers.
type gauge struct {
	mu      sync.Mutex
	current int
	max     int
}

func (g *gauge) enter() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.current++
	if g.current > g.max {
		g.max = g.current
	}
}

func (g *gauge) leave() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.current--
}

func (g *gauge) peak() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.max
}

type fakePoller struct {
	id      string
	delay   time.Duration
	global  *gauge
	err     error
	ticks   atomic.Int32
	active  atomic.Int32
	overlap atomic.Bool
}

func (f *fakePoller) ID() string { return f.id }

func (f *fakePoller) EvaluateTick(_ context.Context, _ time.Time) (poller.TickResult, error) {
	if f.active.Add(1) > 1 {
		f.overlap.Store(true)
	}
	defer f.active.Add(-1)

	if f.global != nil {
		f.global.enter()
		defer f.global.leave()
	}

	time.Sleep(f.delay)
	f.ticks.Add(1)

	if f.err != nil {
		return poller.TickResult{PollerID: f.id, Status: poller.StatusFailed}, f.err
	}
	return poller.TickResult{PollerID: f.id, Status: poller.StatusCommitted, Emitted: 1}, nil
}

func TestHost_EvaluateTick(t *testing.T) {
	t.Parallel()

	h := New(DefaultConfig(), nil)
	p := &fakePoller{id: "orders"}
	require.NoError(t, h.Add(p, Every(time.Minute)))

	res, err := h.EvaluateTick(context.Background(), "orders", time.Now())
	require.NoError(t, err)
	assert.Equal(t, poller.StatusCommitted, res.Status)
	assert.EqualValues(t, 1, p.ticks.Load())

	_, err = h.EvaluateTick(context.Background(), "missing", time.Now())
	require.ErrorIs(t, err, ErrUnknownPoller)
}

func TestHost_AddRejectsDuplicates(t *testing.T) {
	t.Parallel()

	h := New(DefaultConfig(), nil)
	require.NoError(t, h.Add(&fakePoller{id: "a"}, Every(time.Minute)))
	require.ErrorIs(t, h.Add(&fakePoller{id: "a"}, Every(time.Minute)), ErrDuplicatePoller)
	require.NoError(t, h.Add(&fakePoller{id: "b"}, Every(time.Minute)))
	assert.Equal(t, []string{"a", "b"}, h.Pollers())
}

func TestHost_WorkerPoolBound(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		workers int
		pollers int
	}{
		{name: "serial by default", workers: 0, pollers: 3},
		{name: "two workers", workers: 2, pollers: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g := &gauge{}
			h := New(Config{MaxParallelPollers: tt.workers, RunOnStart: true}, nil)

			var ps []*fakePoller
			for i := range tt.pollers {
				p := &fakePoller{id: string(rune('a' + i)), delay: 15 * time.Millisecond, global: g}
				ps = append(ps, p)
				require.NoError(t, h.Add(p, Every(5*time.Millisecond)))
			}

			require.NoError(t, h.Start(context.Background()))
			require.Eventually(t, func() bool {
				for _, p := range ps {
					if p.ticks.Load() < 2 {
						return false
					}
				}
				return true
			}, 5*time.Second, 5*time.Millisecond)
			h.Stop()

			limit := tt.workers
			if limit < 1 {
				limit = 1
			}
			assert.LessOrEqual(t, g.peak(), limit)
			for _, p := range ps {
				assert.False(t, p.overlap.Load(), "poller %s ticked concurrently", p.id)
			}
		})
	}
}

func TestHost_SlowPollerIsNotQueuedTwice(t *testing.T) {
	t.Parallel()

	h := New(Config{MaxParallelPollers: 4, RunOnStart: true}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	slow := &fakePoller{id: "slow", delay: 50 * time.Millisecond}
	require.NoError(t, h.Add(slow, Every(time.Millisecond)))

	require.NoError(t, h.Start(context.Background()))
	time.Sleep(160 * time.Millisecond)
	h.Stop()

	assert.False(t, slow.overlap.Load())
	// Roughly one tick per 50ms elapsed, never a backlog of 1ms slots.
	assert.LessOrEqual(t, slow.ticks.Load(), int32(6))
	assert.GreaterOrEqual(t, slow.ticks.Load(), int32(1))
}

func TestHost_StopHaltsScheduling(t *testing.T) {
	t.Parallel()

	h := New(DefaultConfig(), nil)
	p := &fakePoller{id: "orders", err: errors.New("scan failure")}
	require.NoError(t, h.Add(p, Every(2*time.Millisecond)))

	require.NoError(t, h.Start(context.Background()))
	require.ErrorIs(t, h.Start(context.Background()), ErrAlreadyRunning)
	require.ErrorIs(t, h.Add(&fakePoller{id: "late"}, Every(time.Second)), ErrAlreadyRunning)

	require.Eventually(t, func() bool { return p.ticks.Load() >= 3 }, 5*time.Second, time.Millisecond)
	h.Stop()

	after := p.ticks.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, p.ticks.Load(), "ticks ran after Stop returned")

	// Stop is idempotent.
	h.Stop()
}

func TestHost_RunOnStartDisabled(t *testing.T) {
	t.Parallel()

	h := New(Config{MaxParallelPollers: 1, RunOnStart: false}, nil)
	p := &fakePoller{id: "orders"}
	require.NoError(t, h.Add(p, Every(time.Hour)))

	require.NoError(t, h.Start(context.Background()))
	time.Sleep(20 * time.Millisecond)
	h.Stop()

	assert.Zero(t, p.ticks.Load())
}
