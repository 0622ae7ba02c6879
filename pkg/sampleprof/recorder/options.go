package recorder

import (
	"context"
	"log/slog"

	"github.com/randalmurphal/sampleprof/pkg/sampleprof/event"
	"github.com/randalmurphal/sampleprof/pkg/sampleprof/observability"
)

// SpanSource returns the span active in ctx, or nil if there is none.
// (*otelspan.RootTracker).FromContext is a SpanSource.
type SpanSource func(ctx context.Context) event.TraceSpan

// Option configures a Recorder.
type Option func(*Recorder)

// WithSpanSource sets where samples find their span.
// Without one, samples are never correlated.
func WithSpanSource(src SpanSource) Option {
	return func(r *Recorder) {
		r.spans = src
	}
}

// WithLogger sets the logger for flush and rejection events.
// Default: no logging.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
// Default: observability.NoopMetrics.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(r *Recorder) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithTracing sets the span manager wrapping each flush.
// Default: observability.NoopSpanManager.
func WithTracing(sm observability.SpanManager) Option {
	return func(r *Recorder) {
		if sm != nil {
			r.tracing = sm
		}
	}
}

// WithBatchIDs replaces the batch id generator (default: random UUIDs).
func WithBatchIDs(next func() string) Option {
	return func(r *Recorder) {
		if next != nil {
			r.batchID = next
		}
	}
}
