// Package observability provides OpenTelemetry metrics (Prometheus exporter)
// and log-context plumbing for the retrieval API.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	prometheusexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	meterScope         = "github.com/soleprint/hub/internal/observability"
	defaultServiceName = "soleprint-hub"
	cardinalityLimit   = 2000
)

// latencyHistogramBoundaries are Prometheus-style buckets (seconds) for request and query duration histograms.
var latencyHistogramBoundaries = []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5}

// HubMetrics is the single metrics interface for the retrieval API
// (HTTP surface, query pipeline, ingestion).
type HubMetrics interface {
	RecordRequest(ctx context.Context, method, route, statusClass string, duration time.Duration)
	RecordQuery(ctx context.Context, source, status string, duration time.Duration)
	RecordFootprintsInserted(ctx context.Context, count int)
	RecordInsertFailures(ctx context.Context, count int)
}

// MeterProviderShutdown is the subset of the SDK MeterProvider needed for shutdown.
type MeterProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// MeterProviderConfig holds configuration for creating the MeterProvider and metrics.
type MeterProviderConfig struct {
	// ServiceName is used in the resource (default: soleprint-hub).
	ServiceName string
}

// NewMeterProvider creates a MeterProvider with Prometheus exporter and returns the provider,
// an HTTP handler for /metrics, and HubMetrics that use the provider's Meter.
// Caller must call provider.Shutdown on exit. When metrics are disabled, pass nil for metrics at call sites.
func NewMeterProvider(_ context.Context, cfg MeterProviderConfig) (provider MeterProviderShutdown, metricsHandler http.Handler, metrics HubMetrics, err error) {
	serviceNameVal := cfg.ServiceName
	if serviceNameVal == "" {
		serviceNameVal = defaultServiceName
	}

	// Use a single resource to avoid Schema URL conflicts when merging with resource.Default().
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceNameVal),
	)

	reg := prometheus.NewRegistry()

	exporter, err := prometheusexporter.New(
		prometheusexporter.WithRegisterer(reg),
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
		sdkmetric.WithCardinalityLimit(cardinalityLimit),
		sdkmetric.WithView(
			sdkmetric.NewView(
				sdkmetric.Instrument{Name: "http.server.duration"},
				sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: latencyHistogramBoundaries}},
			),
			sdkmetric.NewView(
				sdkmetric.Instrument{Name: "retrieval_query_duration_seconds"},
				sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: latencyHistogramBoundaries}},
			),
		),
	)
	provider = mp
	meter := mp.Meter(meterScope)

	metrics, err = newMetricsFromMeter(meter)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create metrics instruments: %w", err)
	}

	metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	return provider, metricsHandler, metrics, nil
}

func newMetricsFromMeter(meter metric.Meter) (*hubMetricsImpl, error) {
	requestCount, err := meter.Int64Counter(
		"http.server.request_count",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("request_count: %w", err)
	}

	requestDuration, err := meter.Float64Histogram(
		"http.server.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("http.server.duration: %w", err)
	}

	queryCount, err := meter.Int64Counter(
		"retrieval_queries_total",
		metric.WithDescription("Retrieval queries by embedding source and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("retrieval_queries_total: %w", err)
	}

	queryDuration, err := meter.Float64Histogram(
		"retrieval_query_duration_seconds",
		metric.WithDescription("Retrieval query duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("retrieval_query_duration_seconds: %w", err)
	}

	footprintsInserted, err := meter.Int64Counter(
		"footprints_inserted_total",
		metric.WithDescription("Footprints successfully inserted or upserted"),
	)
	if err != nil {
		return nil, fmt.Errorf("footprints_inserted_total: %w", err)
	}

	insertFailures, err := meter.Int64Counter(
		"footprint_insert_failures_total",
		metric.WithDescription("Footprint records rejected during insert or batch ingest"),
	)
	if err != nil {
		return nil, fmt.Errorf("footprint_insert_failures_total: %w", err)
	}

	return &hubMetricsImpl{
		requestCount:       requestCount,
		requestDuration:    requestDuration,
		queryCount:         queryCount,
		queryDuration:      queryDuration,
		footprintsInserted: footprintsInserted,
		insertFailures:     insertFailures,
	}, nil
}

type hubMetricsImpl struct {
	requestCount       metric.Int64Counter
	requestDuration    metric.Float64Histogram
	queryCount         metric.Int64Counter
	queryDuration      metric.Float64Histogram
	footprintsInserted metric.Int64Counter
	insertFailures     metric.Int64Counter
}

func (m *hubMetricsImpl) RecordRequest(ctx context.Context, method, route, statusClass string, duration time.Duration) {
	attrs := attribute.NewSet(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status_class", statusClass),
	)
	m.requestCount.Add(ctx, 1, metric.WithAttributeSet(attrs))

	durAttrs := attribute.NewSet(
		attribute.String("method", method),
		attribute.String("route", route),
	)
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributeSet(durAttrs))
}

func (m *hubMetricsImpl) RecordQuery(ctx context.Context, source, status string, duration time.Duration) {
	source = normalizeSource(source)
	status = normalizeQueryStatus(status)
	attrs := attribute.NewSet(
		attribute.String("source", source),
		attribute.String("status", status),
	)
	m.queryCount.Add(ctx, 1, metric.WithAttributeSet(attrs))
	m.queryDuration.Record(ctx, duration.Seconds(), metric.WithAttributeSet(attrs))
}

func (m *hubMetricsImpl) RecordFootprintsInserted(ctx context.Context, count int) {
	m.footprintsInserted.Add(ctx, int64(count))
}

func (m *hubMetricsImpl) RecordInsertFailures(ctx context.Context, count int) {
	m.insertFailures.Add(ctx, int64(count))
}

// normalizeSource maps embedding source to a bounded set for cardinality control.
func normalizeSource(s string) string {
	switch s {
	case "local", "openai", "pre-computed":
		return s
	default:
		return "unknown"
	}
}

// normalizeQueryStatus maps query outcome to a bounded set.
func normalizeQueryStatus(s string) string {
	switch s {
	case "success", "no_results", "error":
		return s
	default:
		return "unknown"
	}
}
