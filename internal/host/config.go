// Package host schedules the configured pollers and runs their ticks on a
// bounded worker pool.
package host

// Config holds host scheduler settings.
//
// Environment variable overrides (prefixed HOST_ by the daemon):
//   - MAX_PARALLEL_POLLERS: worker pool size (default: 1, serial)
//   - RUN_ON_START:         tick every poller once at startup (default: true)
type Config struct {
	MaxParallelPollers int  `env:"MAX_PARALLEL_POLLERS" envDefault:"1"`
	RunOnStart         bool `env:"RUN_ON_START" envDefault:"true"`
}

// DefaultConfig returns a serial host that ticks every poller at startup.
func DefaultConfig() Config {
	return Config{
		MaxParallelPollers: 1,
		RunOnStart:         true,
	}
}
