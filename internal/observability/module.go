// Package observability provides OpenTelemetry-based metrics instrumentation
// with a Prometheus exporter for the dropwatch poller daemon.
package observability

import (
	"context"
	"fmt"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Module owns the MeterProvider and the Prometheus registry it exports to.
// Each Module has its own registry, so several can coexist in one process.
type Module struct {
	provider *sdkmetric.MeterProvider
	meter    otelmetric.Meter
	registry *promclient.Registry
}

// New creates a Module whose metrics are exported to a fresh Prometheus
// registry that also carries the Go runtime and process collectors. The
// provider is installed as the global OTel MeterProvider. serviceName names
// both the meter scope and the service.name resource attribute.
func New(serviceName string) (*Module, error) {
	registry := promclient.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(resource.NewSchemaless(
			attribute.String("service.name", serviceName),
		)),
	)
	otel.SetMeterProvider(provider)

	return &Module{
		provider: provider,
		meter:    provider.Meter(serviceName),
		registry: registry,
	}, nil
}

// Shutdown flushes and stops the MeterProvider.
func (m *Module) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

// MetricsHandler serves the module's registry in the Prometheus exposition
// format. Mount it at "/metrics".
func (m *Module) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Meter returns the OTel Meter for creating metric instruments.
func (m *Module) Meter() otelmetric.Meter {
	return m.meter
}
