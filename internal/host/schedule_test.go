package host

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSchedule(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 1, 1, 10, 2, 0, 0, time.UTC)

	tests := []struct {
		name     string
		expr     string
		interval time.Duration
		want     time.Time
		wantErr  bool
	}{
		{name: "interval fallback", interval: 30 * time.Second, want: base.Add(30 * time.Second)},
		{name: "cron expression", expr: "*/5 * * * *", want: time.Date(2024, 1, 1, 10, 5, 0, 0, time.UTC)},
		{name: "hourly descriptor", expr: "@hourly", want: time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)},
		{name: "every descriptor", expr: "@every 90s", want: base.Add(90 * time.Second)},
		{name: "bad expression", expr: "not a cron", wantErr: true},
		{name: "seconds field rejected", expr: "0 */5 * * * *", wantErr: true},
		{name: "no schedule at all", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sched, err := ParseSchedule(tt.expr, tt.interval)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidSchedule)
				return
			}
			require.NoError(t, err)
			assert.True(t, sched.Next(base).Equal(tt.want), "next = %s", sched.Next(base))
		})
	}
}
