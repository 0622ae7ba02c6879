package benchmarks

import (
	"fmt"
	"testing"
	"time"

	"github.com/randalmurphal/sampleprof/pkg/sampleprof/event"
)

// benchSpan is a fixed span with a separate local root.
type benchSpan struct {
	id   uint64
	root *benchSpan
}

func (s *benchSpan) SpanID() uint64 { return s.id }

func (s *benchSpan) LocalRoot() event.TraceSpan {
	if s.root == nil {
		return nil
	}
	return s.root
}

func (s *benchSpan) SpanType() (string, bool) { return "web", true }
func (s *benchSpan) Resource() (string, bool) { return "/bench", true }

func benchFrames(n int) []event.Frame {
	fs := make([]event.Frame, n)
	for i := range fs {
		fs[i] = event.Frame{File: "bench.go", Line: i, Function: fmt.Sprintf("fn%d", i)}
	}
	return fs
}

// BenchmarkNewStackBasedEvent measures sample construction with options.
func BenchmarkNewStackBasedEvent(b *testing.B) {
	frames := benchFrames(32)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = event.NewStackBasedEvent(frames, 32,
			event.WithSamplingPeriod(10*time.Millisecond),
			event.WithThread(1, "main"),
			event.WithTask(2, "task"),
		)
	}
}

// BenchmarkCorrelateWithTrace measures correlation with a local root.
func BenchmarkCorrelateWithTrace(b *testing.B) {
	span := &benchSpan{id: 2, root: &benchSpan{id: 1}}
	e := event.NewStackBasedEvent(benchFrames(32), 32)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.CorrelateWithTrace(span, true)
	}
}

// BenchmarkCorrelateWithTrace_NilSpan is the uncorrelated baseline.
func BenchmarkCorrelateWithTrace_NilSpan(b *testing.B) {
	e := event.NewStackBasedEvent(benchFrames(32), 32)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.CorrelateWithTrace(nil, true)
	}
}

// BenchmarkValidate measures struct validation of a full sample.
func BenchmarkValidate(b *testing.B) {
	e := event.NewStackBasedEvent(benchFrames(32), 64, event.WithSamplingPeriod(time.Millisecond))
	e.CorrelateWithTrace(&benchSpan{id: 2, root: &benchSpan{id: 1}}, true)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = event.Validate(e)
	}
}

// BenchmarkString measures the debug rendering of a sample.
func BenchmarkString(b *testing.B) {
	e := event.NewStackBasedEvent(benchFrames(32), 64, event.WithThread(1, "main"))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = e.String()
	}
}
