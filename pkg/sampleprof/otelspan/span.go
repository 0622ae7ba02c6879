package otelspan

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/randalmurphal/sampleprof/pkg/sampleprof/event"
)

// span adapts a tracked OpenTelemetry span to event.TraceSpan.
// e is nil when the span started before the tracker was installed.
type span struct {
	id      uint64
	e       *entry
	tracker *RootTracker
}

// Compile-time interface check.
var _ event.TraceSpan = (*span)(nil)

// FromContext returns the span active in ctx, or nil if there is none.
func (t *RootTracker) FromContext(ctx context.Context) event.TraceSpan {
	return t.FromSpan(trace.SpanFromContext(ctx))
}

// FromSpan adapts an OpenTelemetry span. It returns nil for a nil or
// invalid span so correlation treats it as "no span".
func (t *RootTracker) FromSpan(s trace.Span) event.TraceSpan {
	if s == nil {
		return nil
	}
	sc := s.SpanContext()
	if !sc.IsValid() {
		return nil
	}

	out := &span{id: SpanIDToUint64(sc.SpanID()), tracker: t}
	if v, ok := t.spans.Load(sc.SpanID()); ok {
		out.e = v.(*entry)
	}
	return out
}

func (s *span) SpanID() uint64 {
	return s.id
}

func (s *span) LocalRoot() event.TraceSpan {
	if s.e == nil {
		return nil
	}
	root := s.e.root
	if root == s.e {
		return s
	}
	return &span{
		id:      SpanIDToUint64(root.span.SpanContext().SpanID()),
		e:       root,
		tracker: s.tracker,
	}
}

// SpanType reads the span type attribute. Server spans without one are "web".
func (s *span) SpanType() (string, bool) {
	if s.e == nil {
		return "", false
	}
	if v, ok := s.attr(s.tracker.spanTypeKey); ok {
		return v, true
	}
	if s.e.span.SpanKind() == trace.SpanKindServer {
		return "web", true
	}
	return "", false
}

// Resource reads the resource attribute, falling back to the span name.
func (s *span) Resource() (string, bool) {
	if s.e == nil {
		return "", false
	}
	if v, ok := s.attr(s.tracker.resourceKey); ok {
		return v, true
	}
	if name := s.e.span.Name(); name != "" {
		return name, true
	}
	return "", false
}

// attr reads a string attribute under the entry lock. The SDK compacts a
// span's attribute slice in place on every read.
func (s *span) attr(key attribute.Key) (string, bool) {
	s.e.mu.Lock()
	defer s.e.mu.Unlock()

	for _, kv := range s.e.span.Attributes() {
		if kv.Key == key && kv.Value.Type() == attribute.STRING {
			if v := kv.Value.AsString(); v != "" {
				return v, true
			}
		}
	}
	return "", false
}
