package observability

import (
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

// RoundTrip calls f(r).
func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// HTTPMetrics returns transport middleware that records outbound request
// metrics. It measures request duration, counts total requests, and counts
// failures (transport errors or status >= 400). Metrics are tagged with
// method, host, and status; transport errors carry status "error".
//
// Usage:
//
//	client.Transport = observability.HTTPMetrics(metrics)(client.Transport)
func HTTPMetrics(metrics *Metrics) func(http.RoundTripper) http.RoundTripper {
	return func(next http.RoundTripper) http.RoundTripper {
		if next == nil {
			next = http.DefaultTransport
		}
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			start := time.Now()

			resp, err := next.RoundTrip(r)

			duration := float64(time.Since(start).Milliseconds())
			status := "error"
			if err == nil {
				status = strconv.Itoa(resp.StatusCode)
			}

			attrs := otelmetric.WithAttributes(
				attribute.String("method", r.Method),
				attribute.String("host", r.URL.Host),
				attribute.String("status", status),
			)

			ctx := r.Context()
			metrics.HTTPRequestDuration.Record(ctx, duration, attrs)
			metrics.HTTPRequestTotal.Add(ctx, 1, attrs)

			if err != nil || resp.StatusCode >= 400 {
				metrics.HTTPRequestErrors.Add(ctx, 1, attrs)
			}
			return resp, err
		})
	}
}

// InstrumentClient returns a shallow copy of client whose transport records
// HTTPMetrics. A nil client is treated as one with the given timeout.
func InstrumentClient(client *http.Client, timeout time.Duration, metrics *Metrics) *http.Client {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	instrumented := *client
	instrumented.Transport = HTTPMetrics(metrics)(client.Transport)
	return &instrumented
}
