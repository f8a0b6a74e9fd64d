package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Lookup results recorded by RecordPairLookup.
const (
	LookupHit     = "hit"
	LookupUnknown = "unknown"
)

// Metrics is safe to use through a nil pointer; every recorder becomes a no-op.
type Metrics struct {
	HTTPRequests       metric.Int64Counter
	HTTPDuration       metric.Float64Histogram
	PairLookups        metric.Int64Counter
	MaintenanceToggles metric.Int64Counter
	KVFailovers        metric.Int64Counter
	ActiveConnections  metric.Int64UpDownCounter
}

func Setup(serviceName string) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	m, err := New(provider.Meter(serviceName))
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.Handler(), nil
}

// New creates the instruments on the given meter.
func New(meter metric.Meter) (*Metrics, error) {
	var err error
	m := &Metrics{}

	m.HTTPRequests, err = meter.Int64Counter(
		"pairs_http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	m.HTTPDuration, err = meter.Float64Histogram(
		"pairs_http_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return nil, err
	}

	m.PairLookups, err = meter.Int64Counter(
		"pairs_lookups_total",
		metric.WithDescription("Pair dictionary lookups by kind and result"),
	)
	if err != nil {
		return nil, err
	}

	m.MaintenanceToggles, err = meter.Int64Counter(
		"pairs_maintenance_toggles_total",
		metric.WithDescription("Maintenance switch changes"),
	)
	if err != nil {
		return nil, err
	}

	m.KVFailovers, err = meter.Int64Counter(
		"pairs_kv_failovers_total",
		metric.WithDescription("Key-value backend switches by newly active backend"),
	)
	if err != nil {
		return nil, err
	}

	m.ActiveConnections, err = meter.Int64UpDownCounter(
		"pairs_websocket_connections",
		metric.WithDescription("Number of active WebSocket connections"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	)

	m.HTTPRequests.Add(ctx, 1, labels)
	m.HTTPDuration.Record(ctx, duration.Seconds(), labels)
}

// RecordPairLookup counts a dictionary lookup. kind is "get", "find" or "assets".
func (m *Metrics) RecordPairLookup(ctx context.Context, kind, result string) {
	if m == nil {
		return
	}
	m.PairLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("result", result),
	))
}

func (m *Metrics) RecordMaintenanceToggle(ctx context.Context, state string, locked bool) {
	if m == nil {
		return
	}
	m.MaintenanceToggles.Add(ctx, 1, metric.WithAttributes(
		attribute.String("state", state),
		attribute.Bool("locked", locked),
	))
}

func (m *Metrics) RecordKVFailover(ctx context.Context, active string) {
	if m == nil {
		return
	}
	m.KVFailovers.Add(ctx, 1, metric.WithAttributes(attribute.String("active", active)))
}

func (m *Metrics) IncrementConnections(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveConnections.Add(ctx, 1)
}

func (m *Metrics) DecrementConnections(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveConnections.Add(ctx, -1)
}
