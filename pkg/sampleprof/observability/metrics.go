package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records pipeline metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordSample records a buffered sample and whether it was correlated
	// with a trace and tagged with an endpoint.
	RecordSample(ctx context.Context, correlated, endpoint, truncated bool)

	// RecordRejected records a sample dropped by validation.
	RecordRejected(ctx context.Context)

	// RecordFlush records a flush of size samples.
	RecordFlush(ctx context.Context, size int, duration time.Duration, err error)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	samples      metric.Int64Counter
	correlated   metric.Int64Counter
	rejected     metric.Int64Counter
	flushLatency metric.Float64Histogram
	flushSize    metric.Int64Histogram
	flushErrors  metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("sampleprof")

	samples, err := meter.Int64Counter("sampleprof.samples.recorded",
		metric.WithDescription("Number of samples buffered for export"),
	)
	if err != nil {
		return nil, err
	}

	correlated, err := meter.Int64Counter("sampleprof.samples.correlated",
		metric.WithDescription("Number of samples correlated with a trace"),
	)
	if err != nil {
		return nil, err
	}

	rejected, err := meter.Int64Counter("sampleprof.samples.rejected",
		metric.WithDescription("Number of samples dropped by validation"),
	)
	if err != nil {
		return nil, err
	}

	flushLatency, err := meter.Float64Histogram("sampleprof.flush.latency_ms",
		metric.WithDescription("Flush latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	flushSize, err := meter.Int64Histogram("sampleprof.flush.batch_size",
		metric.WithDescription("Samples per flushed batch"),
	)
	if err != nil {
		return nil, err
	}

	flushErrors, err := meter.Int64Counter("sampleprof.flush.errors",
		metric.WithDescription("Number of failed flushes"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		samples:      samples,
		correlated:   correlated,
		rejected:     rejected,
		flushLatency: flushLatency,
		flushSize:    flushSize,
		flushErrors:  flushErrors,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder backed by the global OTel
// meter provider. If initialization fails, returns a no-op recorder.
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordSample records a buffered sample.
func (m *otelMetrics) RecordSample(ctx context.Context, correlated, endpoint, truncated bool) {
	m.samples.Add(ctx, 1, metric.WithAttributes(attribute.Bool("truncated", truncated)))
	if correlated {
		m.correlated.Add(ctx, 1, metric.WithAttributes(attribute.Bool("endpoint", endpoint)))
	}
}

// RecordRejected records a rejected sample.
func (m *otelMetrics) RecordRejected(ctx context.Context) {
	m.rejected.Add(ctx, 1)
}

// RecordFlush records a flush.
func (m *otelMetrics) RecordFlush(ctx context.Context, size int, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.Bool("success", err == nil))
	m.flushLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	m.flushSize.Record(ctx, int64(size), attrs)
	if err != nil {
		m.flushErrors.Add(ctx, 1)
	}
}
