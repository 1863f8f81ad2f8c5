package host

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule yields the activation time following t. cron.Schedule satisfies it.
type Schedule interface {
	Next(t time.Time) time.Time
}

// Every fires at a fixed interval.
type Every time.Duration

// Next implements Schedule.
func (e Every) Next(t time.Time) time.Time {
	return t.Add(time.Duration(e))
}

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule builds a Schedule from a five-field cron expression or a
// descriptor such as "@hourly" or "@every 30s". An empty expression falls back
// to a fixed interval.
func ParseSchedule(expr string, interval time.Duration) (Schedule, error) {
	if expr == "" {
		if interval <= 0 {
			return nil, fmt.Errorf("%w: interval must be positive, got %s", ErrInvalidSchedule, interval)
		}
		return Every(interval), nil
	}

	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidSchedule, expr, err)
	}
	return sched, nil
}
