// internal/common/observability/metrics.go
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability records review operation counts and durations through an
// OpenTelemetry meter exported to Prometheus.
type Observability struct {
	meterProvider *metric.MeterProvider
	opCounter     otelmetric.Int64Counter
	opDuration    otelmetric.Float64Histogram
}

// New falls back to a no-op recorder when the exporter cannot be created.
func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	meter := provider.Meter(serviceName)

	opCounter, _ := meter.Int64Counter(
		"review.operations",
		otelmetric.WithDescription("Number of review operations executed"),
	)
	opDuration, _ := meter.Float64Histogram(
		"review.operation.duration",
		otelmetric.WithDescription("Review operation duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider: provider,
		opCounter:     opCounter,
		opDuration:    opDuration,
	}
}

// NewNoop returns a recorder that drops everything.
func NewNoop() *Observability {
	return &Observability{}
}

// Track records one operation; use as `defer o.Track(ctx, "approve", time.Now(), &ok)`.
func (o *Observability) Track(ctx context.Context, operation string, started time.Time, succeeded *bool) {
	if o == nil {
		return
	}
	status := "failed"
	if succeeded != nil && *succeeded {
		status = "succeeded"
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", status),
	)
	if o.opCounter != nil {
		o.opCounter.Add(ctx, 1, attrs)
	}
	if o.opDuration != nil {
		o.opDuration.Record(ctx, float64(time.Since(started).Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil || o.meterProvider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return o.meterProvider.Shutdown(ctx)
}
