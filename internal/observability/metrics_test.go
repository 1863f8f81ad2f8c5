package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/metric/noop"
)

func TestNewMetrics(t *testing.T) {
	m, err := NewMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	if m.Ticks == nil || m.TriggersSubmitted == nil || m.CursorLag == nil {
		t.Error("NewMetrics() left instruments nil")
	}
}

func TestNew_ServesMetricsHandler(t *testing.T) {
	obs, err := New("dropwatch-test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = obs.Shutdown(t.Context()) }()

	if obs.Meter() == nil {
		t.Error("Meter() = nil")
	}
	if obs.MetricsHandler() == nil {
		t.Error("MetricsHandler() = nil")
	}
}

func TestMetricsHandler_ExposesInstruments(t *testing.T) {
	obs, err := New("dropwatch-test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = obs.Shutdown(t.Context()) }()

	m, err := NewMetrics(obs.Meter())
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	m.Ticks.Add(t.Context(), 1)

	rec := httptest.NewRecorder()
	obs.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	if !strings.Contains(body, "poller_ticks") {
		t.Errorf("/metrics does not expose poller_ticks:\n%s", body)
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Error("/metrics does not expose the Go runtime collector")
	}
}
