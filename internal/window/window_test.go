package window

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func TestCompute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		cfg       Config
		cursor    string
		hasCursor bool
		now       string
		wantStart string
		wantEnd   string
	}{
		{
			name:      "bootstrap uses lookback plus buffer",
			cfg:       DefaultConfig(),
			now:       "2024-01-01T00:15:00Z",
			wantStart: "2023-12-31T23:45:00Z",
			wantEnd:   "2024-01-01T00:15:00Z",
		},
		{
			name:      "cursor minus buffer",
			cfg:       DefaultConfig(),
			cursor:    "2024-01-01T00:15:00Z",
			hasCursor: true,
			now:       "2024-01-01T00:30:00Z",
			wantStart: "2024-01-01T00:00:00Z",
			wantEnd:   "2024-01-01T00:30:00Z",
		},
		{
			name:      "zero buffer starts at cursor",
			cfg:       Config{Lookback: time.Hour},
			cursor:    "2024-01-01T10:00:00Z",
			hasCursor: true,
			now:       "2024-01-01T10:05:00Z",
			wantStart: "2024-01-01T10:00:00Z",
			wantEnd:   "2024-01-01T10:05:00Z",
		},
		{
			name:      "clamps at epoch",
			cfg:       DefaultConfig(),
			cursor:    "1970-01-01T00:05:00Z",
			hasCursor: true,
			now:       "1970-01-01T00:20:00Z",
			wantStart: "1970-01-01T00:00:00Z",
			wantEnd:   "1970-01-01T00:20:00Z",
		},
		{
			name: "clamps at configured floor",
			cfg: Config{
				Lookback: 24 * time.Hour,
				Buffer:   time.Hour,
				Floor:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			},
			now:       "2024-01-01T06:00:00Z",
			wantStart: "2024-01-01T00:00:00Z",
			wantEnd:   "2024-01-01T06:00:00Z",
		},
		{
			name:      "cursor ahead of clock collapses to empty window",
			cfg:       Config{Buffer: time.Minute},
			cursor:    "2024-01-01T01:00:00Z",
			hasCursor: true,
			now:       "2024-01-01T00:30:00Z",
			wantStart: "2024-01-01T00:30:00Z",
			wantEnd:   "2024-01-01T00:30:00Z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var cursor time.Time
			if tt.hasCursor {
				cursor = mustTime(t, tt.cursor)
			}
			got := Compute(tt.cfg, cursor, tt.hasCursor, mustTime(t, tt.now))

			assert.True(t, got.Start.Equal(mustTime(t, tt.wantStart)), "start = %s", got.Start)
			assert.True(t, got.End.Equal(mustTime(t, tt.wantEnd)), "end = %s", got.End)
			assert.False(t, got.Start.After(got.End))
		})
	}
}

func TestCompute_BufferApplication(t *testing.T) {
	t.Parallel()

	buffer := 10 * time.Minute
	cfg := Config{Lookback: time.Minute, Buffer: buffer}
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	for offset := buffer + time.Second; offset < 6*time.Hour; offset += 17 * time.Minute {
		cursor := now.Add(-offset)
		got := Compute(cfg, cursor, true, now)
		assert.True(t, got.Start.Equal(cursor.Add(-buffer)), "cursor %s: start %s", cursor, got.Start)
	}
}

func TestCompute_NormalizesToUTC(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+2", 2*60*60)
	now := time.Date(2024, 1, 1, 2, 15, 0, 0, loc)

	got := Compute(DefaultConfig(), time.Time{}, false, now)
	assert.Equal(t, time.UTC, got.End.Location())
	assert.True(t, got.End.Equal(now))
}

func TestWindow_Contains(t *testing.T) {
	t.Parallel()

	w := Window{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 1, 0, 30, 0, 0, time.UTC),
	}

	assert.True(t, w.Contains(w.Start))
	assert.True(t, w.Contains(w.End))
	assert.True(t, w.Contains(w.Start.Add(time.Minute)))
	assert.False(t, w.Contains(w.Start.Add(-time.Nanosecond)))
	assert.False(t, w.Contains(w.End.Add(time.Nanosecond)))
	assert.Equal(t, 30*time.Minute, w.Duration())
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultConfig().Validate())
	require.ErrorIs(t, Config{Lookback: -time.Second}.Validate(), ErrInvalidConfig)
	require.ErrorIs(t, Config{Buffer: -time.Second}.Validate(), ErrInvalidConfig)
}
