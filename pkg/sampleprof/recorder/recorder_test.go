package recorder_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/randalmurphal/sampleprof/pkg/sampleprof/config"
	"github.com/randalmurphal/sampleprof/pkg/sampleprof/event"
	"github.com/randalmurphal/sampleprof/pkg/sampleprof/otelspan"
	"github.com/randalmurphal/sampleprof/pkg/sampleprof/recorder"
	"github.com/randalmurphal/sampleprof/pkg/sampleprof/store"
)

// countingMetrics records calls for assertions.
type countingMetrics struct {
	mu         sync.Mutex
	samples    int
	correlated int
	endpoints  int
	truncated  int
	rejected   int
	flushes    []int
	flushErrs  int
}

func (m *countingMetrics) RecordSample(_ context.Context, correlated, endpoint, truncated bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples++
	if correlated {
		m.correlated++
	}
	if endpoint {
		m.endpoints++
	}
	if truncated {
		m.truncated++
	}
}

func (m *countingMetrics) RecordRejected(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected++
}

func (m *countingMetrics) RecordFlush(_ context.Context, size int, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes = append(m.flushes, size)
	if err != nil {
		m.flushErrs++
	}
}

// failingStore rejects every append.
type failingStore struct {
	store.Store
}

func (failingStore) Append(context.Context, string, []*event.StackBasedEvent) error {
	return errors.New("disk full")
}

func testSettings() config.Settings {
	s := config.DefaultSettings()
	s.BufferSize = 100
	return s
}

func frames(n int) []event.Frame {
	fs := make([]event.Frame, n)
	for i := range fs {
		fs[i] = event.Frame{File: "f.go", Line: i + 1, Function: fmt.Sprintf("fn%d", i)}
	}
	return fs
}

// setupTracing returns a tracer whose spans are visible to tracker.
func setupTracing(t *testing.T) (*otelspan.RootTracker, trace.Tracer) {
	t.Helper()
	tracker := otelspan.NewRootTracker()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(tracker),
		sdktrace.WithSyncer(tracetest.NewInMemoryExporter()),
	)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})
	return tracker, tp.Tracer("recorder-test")
}

func TestNew(t *testing.T) {
	_, err := recorder.New(testSettings(), nil)
	assert.ErrorIs(t, err, recorder.ErrNilStore)

	bad := testSettings()
	bad.MaxFrames = 0
	_, err = recorder.New(bad, store.NewMemoryStore())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MaxFrames")

	r, err := recorder.New(testSettings(), store.NewMemoryStore())
	require.NoError(t, err)
	assert.Equal(t, testSettings(), r.Settings())
	assert.Zero(t, r.Buffered())
}

func TestRecord_NilSample(t *testing.T) {
	r, err := recorder.New(testSettings(), store.NewMemoryStore())
	require.NoError(t, err)
	assert.ErrorIs(t, r.Record(context.Background(), nil), recorder.ErrNilSample)
}

func TestRecord_StampsSamplingPeriod(t *testing.T) {
	st := store.NewMemoryStore()
	r, err := recorder.New(testSettings(), st)
	require.NoError(t, err)
	ctx := context.Background()

	defaulted := event.NewStackBasedEvent(nil, 0)
	explicit := event.NewStackBasedEvent(nil, 0, event.WithSamplingPeriod(time.Second))
	require.NoError(t, r.Record(ctx, defaulted))
	require.NoError(t, r.Record(ctx, explicit))

	assert.Equal(t, event.Some(10*time.Millisecond), defaulted.SamplingPeriod)
	assert.Equal(t, event.Some(time.Second), explicit.SamplingPeriod)
}

func TestRecord_TruncatesFrames(t *testing.T) {
	settings := testSettings()
	settings.MaxFrames = 3
	metrics := &countingMetrics{}
	r, err := recorder.New(settings, store.NewMemoryStore(), recorder.WithMetrics(metrics))
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		name        string
		frames      int
		nframes     int
		wantFrames  int
		wantNFrames int
	}{
		{"within limit", 2, 2, 2, 2},
		{"at limit", 3, 3, 3, 3},
		{"over limit", 5, 5, 3, 5},
		{"over limit with deeper stack", 5, 40, 3, 40},
		{"nframes understated is not repaired", 5, 0, 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := event.NewStackBasedEvent(frames(tt.frames), tt.nframes)
			require.NoError(t, r.Record(ctx, e))
			assert.Len(t, e.Frames, tt.wantFrames)
			assert.Equal(t, tt.wantNFrames, e.NFrames)
			if tt.frames > 0 {
				leaf, ok := e.Leaf()
				assert.True(t, ok)
				assert.Equal(t, "fn0", leaf.Function, "innermost frame is kept")
			}
		})
	}

	assert.Equal(t, 2, metrics.truncated)
}

func TestRecord_ValidatesBeforeTruncation(t *testing.T) {
	settings := testSettings()
	settings.MaxFrames = 64
	settings.ValidateSamples = true
	metrics := &countingMetrics{}
	r, err := recorder.New(settings, store.NewMemoryStore(), recorder.WithMetrics(metrics))
	require.NoError(t, err)
	ctx := context.Background()

	// 100 captured frames but a reported depth of 10: invalid as produced,
	// even though the truncated sample would pass.
	understated := event.NewStackBasedEvent(frames(100), 10)
	err = r.Record(ctx, understated)
	var verr *event.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, understated.Frames, 100)
	assert.Equal(t, 10, understated.NFrames)
	assert.Zero(t, r.Buffered())
	assert.Equal(t, 1, metrics.rejected)

	deep := event.NewStackBasedEvent(frames(100), 100)
	require.NoError(t, r.Record(ctx, deep))
	assert.Len(t, deep.Frames, 64)
	assert.Equal(t, 100, deep.NFrames)
	assert.Equal(t, 1, r.Buffered())
}

func TestRecord_Correlates(t *testing.T) {
	tracker, tracer := setupTracing(t)

	ctx, root := tracer.Start(context.Background(), "GET /users",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("resource.name", "/users")),
	)
	defer root.End()
	ctx, child := tracer.Start(ctx, "db")
	defer child.End()

	rootID := otelspan.SpanIDToUint64(root.SpanContext().SpanID())
	childID := otelspan.SpanIDToUint64(child.SpanContext().SpanID())

	tests := []struct {
		name         string
		hotspots     bool
		endpoints    bool
		wantSpan     bool
		wantResource bool
	}{
		{"hotspots and endpoints", true, true, true, true},
		{"hotspots only", true, false, true, false},
		{"disabled", false, true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := testSettings()
			settings.CodeHotspotsEnabled = tt.hotspots
			settings.EndpointCollectionEnabled = tt.endpoints
			r, err := recorder.New(settings, store.NewMemoryStore(), recorder.WithSpanSource(tracker.FromContext))
			require.NoError(t, err)

			e := event.NewStackBasedEvent(frames(1), 1)
			require.NoError(t, r.Record(ctx, e))

			assert.Equal(t, tt.wantSpan, e.Correlated())
			if tt.wantSpan {
				assert.Equal(t, event.Some(childID), e.SpanID)
				assert.Equal(t, event.Some(rootID), e.LocalRootSpanID)
				assert.Equal(t, event.Some("web"), e.TraceType)
			}
			if tt.wantResource {
				assert.Equal(t, event.Some("/users"), e.TraceResourceContainer)
			} else {
				assert.False(t, e.TraceResourceContainer.IsSet())
			}
		})
	}
}

func TestRecord_NoSpanInContext(t *testing.T) {
	tracker, _ := setupTracing(t)
	r, err := recorder.New(testSettings(), store.NewMemoryStore(), recorder.WithSpanSource(tracker.FromContext))
	require.NoError(t, err)

	e := event.NewStackBasedEvent(nil, 0)
	require.NoError(t, r.Record(context.Background(), e))
	assert.False(t, e.Correlated())
	assert.False(t, e.LocalRootSpanID.IsSet())
}

func TestRecord_Validation(t *testing.T) {
	settings := testSettings()
	settings.ValidateSamples = true
	metrics := &countingMetrics{}
	r, err := recorder.New(settings, store.NewMemoryStore(), recorder.WithMetrics(metrics))
	require.NoError(t, err)
	ctx := context.Background()

	bad := event.NewStackBasedEvent(nil, -1)
	err = r.Record(ctx, bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, event.ErrInvalidEvent)
	var verr *event.ValidationError
	assert.ErrorAs(t, err, &verr)

	negative := event.NewStackBasedEvent(nil, 0, event.WithSamplingPeriod(-time.Millisecond))
	assert.ErrorIs(t, r.Record(ctx, negative), event.ErrInvalidEvent)

	require.NoError(t, r.Record(ctx, event.NewStackBasedEvent(frames(2), 2)))

	assert.Equal(t, 2, metrics.rejected)
	assert.Equal(t, 1, metrics.samples)
	assert.Equal(t, 1, r.Buffered())
}

func TestRecord_WithoutValidationKeepsInvalid(t *testing.T) {
	r, err := recorder.New(testSettings(), store.NewMemoryStore())
	require.NoError(t, err)

	require.NoError(t, r.Record(context.Background(), event.NewStackBasedEvent(nil, -1)))
	assert.Equal(t, 1, r.Buffered())
}

func TestRecord_FlushesWhenFull(t *testing.T) {
	settings := testSettings()
	settings.BufferSize = 3
	st := store.NewMemoryStore()
	metrics := &countingMetrics{}
	r, err := recorder.New(settings, st, recorder.WithMetrics(metrics))
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		require.NoError(t, r.Record(ctx, event.NewStackBasedEvent(nil, 0)))
	}

	n, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, 1, r.Buffered())
	assert.Equal(t, []int{3, 3}, metrics.flushes)
	assert.Len(t, st.Batches(), 2)
}

func TestFlush(t *testing.T) {
	st := store.NewMemoryStore()
	ids := []string{"batch-a", "batch-b"}
	next := 0
	r, err := recorder.New(testSettings(), st, recorder.WithBatchIDs(func() string {
		id := ids[next]
		next++
		return id
	}))
	require.NoError(t, err)
	ctx := context.Background()

	// Empty flush does not consume a batch id.
	require.NoError(t, r.Flush(ctx))

	require.NoError(t, r.Record(ctx, event.NewStackBasedEvent(nil, 0)))
	require.NoError(t, r.Flush(ctx))
	require.NoError(t, r.Record(ctx, event.NewStackBasedEvent(nil, 0)))
	require.NoError(t, r.Flush(ctx))

	assert.Equal(t, []string{"batch-a", "batch-b"}, st.Batches())
	assert.Zero(t, r.Buffered())
}

func TestFlush_StoreError(t *testing.T) {
	metrics := &countingMetrics{}
	r, err := recorder.New(testSettings(), failingStore{}, recorder.WithMetrics(metrics),
		recorder.WithBatchIDs(func() string { return "b1" }))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, r.Record(ctx, event.NewStackBasedEvent(nil, 0)))
	err = r.Flush(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flush batch b1")
	assert.Contains(t, err.Error(), "disk full")

	// The failed batch is dropped.
	assert.Zero(t, r.Buffered())
	assert.Equal(t, 1, metrics.flushErrs)
}

func TestFlush_ClosedStore(t *testing.T) {
	st := store.NewMemoryStore()
	require.NoError(t, st.Close())
	r, err := recorder.New(testSettings(), st)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, r.Record(ctx, event.NewStackBasedEvent(nil, 0)))
	assert.ErrorIs(t, r.Flush(ctx), store.ErrStoreClosed)
}

func TestRun(t *testing.T) {
	settings := testSettings()
	settings.FlushInterval = 10 * time.Millisecond
	st := store.NewMemoryStore()
	r, err := recorder.New(settings, st)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.NoError(t, r.Record(ctx, event.NewStackBasedEvent(nil, 0)))
	assert.Eventually(t, func() bool {
		n, _ := st.Count(context.Background())
		return n == 1
	}, time.Second, 5*time.Millisecond)

	// Samples recorded just before shutdown are flushed on the way out.
	require.NoError(t, r.Record(ctx, event.NewStackBasedEvent(nil, 0)))
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	n, err := st.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRecord_Concurrent(t *testing.T) {
	settings := testSettings()
	settings.BufferSize = 7
	st := store.NewMemoryStore()
	r, err := recorder.New(settings, st)
	require.NoError(t, err)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.NoError(t, r.Record(ctx, event.NewStackBasedEvent(frames(2), 2)))
			}
		}()
	}
	wg.Wait()
	require.NoError(t, r.Flush(ctx))

	n, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 500, n)
}
