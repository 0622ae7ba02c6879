package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/sampleprof/pkg/sampleprof/config"
	"github.com/randalmurphal/sampleprof/pkg/sampleprof/event"
	"github.com/randalmurphal/sampleprof/pkg/sampleprof/observability"
	"github.com/randalmurphal/sampleprof/pkg/sampleprof/store"
)

// Sentinel errors for recorder operations.
var (
	// ErrNilSample is returned by Record for a nil sample.
	ErrNilSample = errors.New("nil sample")

	// ErrNilStore is returned by New without a store.
	ErrNilStore = errors.New("recorder requires a store")
)

// Recorder correlates samples and buffers them for a Store.
// It is safe for concurrent use.
type Recorder struct {
	settings config.Settings
	store    store.Store
	spans    SpanSource
	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	tracing  observability.SpanManager
	batchID  func() string

	mu  sync.Mutex
	buf []*event.StackBasedEvent

	// flushMu keeps batches reaching the store in buffer order.
	flushMu sync.Mutex
}

// New creates a Recorder writing to st.
func New(settings config.Settings, st store.Store, opts ...Option) (*Recorder, error) {
	if st == nil {
		return nil, ErrNilStore
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	r := &Recorder{
		settings: settings,
		store:    st,
		metrics:  observability.NoopMetrics{},
		tracing:  observability.NoopSpanManager{},
		batchID:  uuid.NewString,
		buf:      make([]*event.StackBasedEvent, 0, settings.BufferSize),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Record prepares a sample and buffers it. When the buffer reaches
// Settings.BufferSize the buffer is flushed before Record returns, and a
// flush failure is returned.
//
// With ValidateSamples set, samples are validated as the sampler produced
// them, before truncation; invalid samples are dropped and the
// *event.ValidationError is returned.
func (r *Recorder) Record(ctx context.Context, e *event.StackBasedEvent) error {
	if e == nil {
		return ErrNilSample
	}

	if !e.SamplingPeriod.IsSet() {
		e.SamplingPeriod = event.Some(r.settings.SamplingPeriod)
	}

	if r.settings.ValidateSamples {
		if err := event.Validate(e); err != nil {
			r.metrics.RecordRejected(ctx)
			observability.LogSampleRejected(r.logger, e, err)
			return err
		}
	}

	truncate(e, r.settings.MaxFrames)

	if r.settings.CodeHotspotsEnabled && r.spans != nil {
		e.CorrelateWithTrace(r.spans(ctx), r.settings.EndpointCollectionEnabled)
	}

	r.metrics.RecordSample(ctx, e.Correlated(), e.TraceResourceContainer.IsSet(), e.Truncated())

	r.mu.Lock()
	r.buf = append(r.buf, e)
	full := len(r.buf) >= r.settings.BufferSize
	r.mu.Unlock()

	if full {
		return r.Flush(ctx)
	}
	return nil
}

// truncate caps frames at limit, keeping the innermost. NFrames is left as
// the sampler reported it.
func truncate(e *event.StackBasedEvent, limit int) {
	if len(e.Frames) > limit {
		e.Frames = e.Frames[:limit:limit]
	}
}

// Flush hands the buffered samples to the store as one batch.
// A batch the store rejects is dropped.
func (r *Recorder) Flush(ctx context.Context) (err error) {
	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	r.mu.Lock()
	batch := r.buf
	if len(batch) == 0 {
		r.mu.Unlock()
		return nil
	}
	r.buf = make([]*event.StackBasedEvent, 0, r.settings.BufferSize)
	r.mu.Unlock()

	batchID := r.batchID()
	ctx, span := r.tracing.StartFlushSpan(ctx, batchID, len(batch))
	defer func() {
		r.tracing.EndSpanWithError(span, err)
	}()

	start := time.Now()
	elapsedMs := observability.TimedOperation()
	err = r.store.Append(ctx, batchID, batch)
	r.metrics.RecordFlush(ctx, len(batch), time.Since(start), err)

	if err != nil {
		observability.LogFlushError(r.logger, batchID, len(batch), err)
		return fmt.Errorf("flush batch %s: %w", batchID, err)
	}
	observability.LogFlush(r.logger, batchID, len(batch), elapsedMs())
	return nil
}

// Run flushes on Settings.FlushInterval until ctx is done, then flushes
// whatever is left and returns ctx.Err(). Flush failures are logged and do
// not stop the loop.
func (r *Recorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.settings.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = r.Flush(context.WithoutCancel(ctx))
			observability.LogRecorderStopped(r.logger, ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			_ = r.Flush(ctx)
		}
	}
}

// Buffered returns the number of samples waiting for a flush.
func (r *Recorder) Buffered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf)
}

// Settings returns the settings the recorder was created with.
func (r *Recorder) Settings() config.Settings {
	return r.settings
}
