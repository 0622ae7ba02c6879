// Package observability provides logging, metrics and tracing for the sample
// recording pipeline.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"

	"github.com/randalmurphal/sampleprof/pkg/sampleprof/event"
)

// EnrichLogger adds the sampled thread and task of an event to a logger.
// Absent identifiers are left out.
func EnrichLogger(logger *slog.Logger, evt *event.StackBasedEvent) *slog.Logger {
	if logger == nil || evt == nil {
		return logger
	}
	var attrs []any
	if id, ok := evt.ThreadID.Get(); ok {
		attrs = append(attrs, slog.Int64("thread_id", id))
	}
	if name, ok := evt.ThreadName.Get(); ok {
		attrs = append(attrs, slog.String("thread_name", name))
	}
	if id, ok := evt.TaskID.Get(); ok {
		attrs = append(attrs, slog.Int64("task_id", id))
	}
	if len(attrs) == 0 {
		return logger
	}
	return logger.With(attrs...)
}

// LogSampleRejected logs a sample dropped by validation.
func LogSampleRejected(logger *slog.Logger, evt *event.StackBasedEvent, err error) {
	if logger == nil {
		return
	}
	EnrichLogger(logger, evt).Warn("sample rejected",
		slog.String("error", err.Error()),
	)
}

// LogFlush logs a successful flush of buffered samples.
func LogFlush(logger *slog.Logger, batchID string, samples int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("samples flushed",
		slog.String("batch_id", batchID),
		slog.Int("samples", samples),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogFlushError logs a failed flush. The samples of the batch are lost.
func LogFlushError(logger *slog.Logger, batchID string, samples int, err error) {
	if logger == nil {
		return
	}
	logger.Error("flush failed",
		slog.String("batch_id", batchID),
		slog.Int("samples", samples),
		slog.String("error", err.Error()),
	)
}

// LogRecorderStopped logs the end of the periodic flush loop.
func LogRecorderStopped(logger *slog.Logger, reason error) {
	if logger == nil {
		return
	}
	logger.Info("recorder stopped",
		slog.String("reason", reason.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
