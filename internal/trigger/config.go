// Package trigger turns discovered item identifiers into deduplicated
// trigger requests and submits them to a downstream engine.
package trigger

import (
	"time"
)

// Engine names accepted by Config.Engine.
const (
	EngineNATS    = "nats"
	EngineWebhook = "webhook"
	EngineMemory  = "memory"
)

// Config holds emitter settings.
type Config struct {
	// Engine selects the downstream engine (nats, webhook or memory)
	Engine string `env:"ENGINE" envDefault:"nats" yaml:"engine"`

	// RetryLimit is the number of retries after the first failed attempt
	RetryLimit int `env:"RETRY_LIMIT" envDefault:"3" yaml:"retry_limit"`

	// InitialBackoff is the delay before the first retry
	InitialBackoff time.Duration `env:"INITIAL_BACKOFF" envDefault:"200ms" yaml:"initial_backoff"`

	// MaxBackoff caps the delay between retries
	MaxBackoff time.Duration `env:"MAX_BACKOFF" envDefault:"5s" yaml:"max_backoff"`

	// BackoffMultiplier is the backoff multiplier for exponential backoff
	BackoffMultiplier float64 `env:"BACKOFF_MULTIPLIER" envDefault:"2.0" yaml:"backoff_multiplier"`

	// RateLimit is the maximum submissions per second; 0 disables throttling
	RateLimit float64 `env:"RATE_LIMIT" envDefault:"0" yaml:"rate_limit"`

	// RateBurst is the token bucket size used with RateLimit
	RateBurst int `env:"RATE_BURST" envDefault:"1" yaml:"rate_burst"`
}

// DefaultConfig returns the emitter defaults.
func DefaultConfig() Config {
	return Config{
		Engine:            EngineNATS,
		RetryLimit:        3,
		InitialBackoff:    200 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
		RateBurst:         1,
	}
}

// backoff returns the delay before retry number n (1-based).
func (c Config) backoff(n int) time.Duration {
	delay := c.InitialBackoff
	if delay <= 0 {
		return 0
	}
	mult := c.BackoffMultiplier
	if mult < 1 {
		mult = 1
	}
	for range n - 1 {
		delay = time.Duration(float64(delay) * mult)
		if c.MaxBackoff > 0 && delay > c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	if c.MaxBackoff > 0 && delay > c.MaxBackoff {
		return c.MaxBackoff
	}
	return delay
}

// WebhookConfig holds webhook engine settings.
type WebhookConfig struct {
	// URL receives a POST per trigger
	URL string `env:"URL" yaml:"url"`

	// Headers are added to every request (k1:v1,k2:v2)
	Headers map[string]string `env:"HEADERS" yaml:"headers"`

	// AuthType is none, basic, bearer or hmac
	AuthType string `env:"AUTH_TYPE" envDefault:"none" yaml:"auth_type"`

	Username string `env:"USERNAME" yaml:"username"`
	Password string `env:"PASSWORD" yaml:"password"`
	Token    string `env:"TOKEN" yaml:"token"`

	// HMACSecret signs the body; the signature goes in HMACHeader
	HMACSecret string `env:"HMAC_SECRET" yaml:"hmac_secret"`
	HMACHeader string `env:"HMAC_HEADER" envDefault:"X-Signature" yaml:"hmac_header"`

	// RequestTimeout is the HTTP request timeout for webhook calls
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s" yaml:"request_timeout"`
}
