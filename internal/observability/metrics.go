package observability

import (
	otelmetric "go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments used by the poller daemon.
// Instruments are created once at startup and shared by pollers, emitters
// and the host scheduler. Every instrument carries a "poller" attribute at
// the call site.
type Metrics struct {
	// Tick metrics
	Ticks        otelmetric.Int64Counter
	TickFailures otelmetric.Int64Counter
	TicksSkipped otelmetric.Int64Counter
	TickDuration otelmetric.Float64Histogram

	// Scan metrics
	ScanDuration    otelmetric.Float64Histogram
	ItemsDiscovered otelmetric.Int64Counter
	ItemsReobserved otelmetric.Int64Counter

	// Trigger metrics
	TriggersSubmitted otelmetric.Int64Counter
	TriggersDuplicate otelmetric.Int64Counter
	TriggersFailed    otelmetric.Int64Counter
	TriggerRetries    otelmetric.Int64Counter

	// Watermark metrics
	CursorLag otelmetric.Float64Gauge

	// Outbound HTTP metrics (webhook engine)
	HTTPRequestDuration otelmetric.Float64Histogram
	HTTPRequestTotal    otelmetric.Int64Counter
	HTTPRequestErrors   otelmetric.Int64Counter
}

// NewMetrics creates all metric instruments from the given Meter.
// Each instrument is created with a descriptive name, unit, and description
// following OpenTelemetry semantic conventions.
func NewMetrics(meter otelmetric.Meter) (*Metrics, error) {
	var m Metrics
	var err error

	// Tick metrics
	m.Ticks, err = meter.Int64Counter(
		"poller.ticks",
		otelmetric.WithDescription("Poller ticks evaluated"),
	)
	if err != nil {
		return nil, err
	}

	m.TickFailures, err = meter.Int64Counter(
		"poller.tick.failures",
		otelmetric.WithDescription("Poller ticks that ended without committing the cursor"),
	)
	if err != nil {
		return nil, err
	}

	m.TicksSkipped, err = meter.Int64Counter(
		"poller.ticks.skipped",
		otelmetric.WithDescription("Ticks skipped because the previous tick was still running"),
	)
	if err != nil {
		return nil, err
	}

	m.TickDuration, err = meter.Float64Histogram(
		"poller.tick.duration",
		otelmetric.WithUnit("ms"),
		otelmetric.WithDescription("Tick duration in milliseconds"),
	)
	if err != nil {
		return nil, err
	}

	// Scan metrics
	m.ScanDuration, err = meter.Float64Histogram(
		"scan.duration",
		otelmetric.WithUnit("ms"),
		otelmetric.WithDescription("Source scan duration in milliseconds"),
	)
	if err != nil {
		return nil, err
	}

	m.ItemsDiscovered, err = meter.Int64Counter(
		"poller.items.discovered",
		otelmetric.WithDescription("Item identifiers returned by source scans"),
	)
	if err != nil {
		return nil, err
	}

	m.ItemsReobserved, err = meter.Int64Counter(
		"poller.items.reobserved",
		otelmetric.WithDescription("Discovered items probably already seen by a recent tick"),
	)
	if err != nil {
		return nil, err
	}

	// Trigger metrics
	m.TriggersSubmitted, err = meter.Int64Counter(
		"triggers.submitted",
		otelmetric.WithDescription("Trigger requests accepted by the downstream engine"),
	)
	if err != nil {
		return nil, err
	}

	m.TriggersDuplicate, err = meter.Int64Counter(
		"triggers.duplicate",
		otelmetric.WithDescription("Trigger requests the downstream engine reported as duplicates"),
	)
	if err != nil {
		return nil, err
	}

	m.TriggersFailed, err = meter.Int64Counter(
		"triggers.failed",
		otelmetric.WithDescription("Trigger requests that failed after all retries"),
	)
	if err != nil {
		return nil, err
	}

	m.TriggerRetries, err = meter.Int64Counter(
		"triggers.retries",
		otelmetric.WithDescription("Trigger submission retries"),
	)
	if err != nil {
		return nil, err
	}

	// Watermark metrics
	m.CursorLag, err = meter.Float64Gauge(
		"cursor.lag",
		otelmetric.WithUnit("s"),
		otelmetric.WithDescription("Seconds between the committed cursor and the wall clock"),
	)
	if err != nil {
		return nil, err
	}

	// Outbound HTTP metrics
	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http.client.request.duration",
		otelmetric.WithUnit("ms"),
		otelmetric.WithDescription("Outbound HTTP request duration in milliseconds"),
	)
	if err != nil {
		return nil, err
	}

	m.HTTPRequestTotal, err = meter.Int64Counter(
		"http.client.requests",
		otelmetric.WithDescription("Outbound HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	m.HTTPRequestErrors, err = meter.Int64Counter(
		"http.client.errors",
		otelmetric.WithDescription("Outbound HTTP requests that failed or returned status >= 400"),
	)
	if err != nil {
		return nil, err
	}

	return &m, nil
}
