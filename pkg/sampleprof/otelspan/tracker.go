// Package otelspan adapts OpenTelemetry spans to the span capability read by
// sample correlation.
//
// OpenTelemetry has no notion of a local root span, so RootTracker is installed
// as a span processor and remembers, for every live span, the outermost span
// of its trace in this process:
//
//	tracker := otelspan.NewRootTracker()
//	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(tracker))
//
//	// on the sampling path
//	evt.CorrelateWithTrace(tracker.FromContext(ctx), endpointsEnabled)
package otelspan

import (
	"context"
	"encoding/binary"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Default attribute keys read from local root spans.
const (
	DefaultSpanTypeKey = attribute.Key("span.type")
	DefaultResourceKey = attribute.Key("resource.name")
)

// RootTracker records the local root of every live span.
// It is safe for concurrent use.
type RootTracker struct {
	spans sync.Map // trace.SpanID -> *entry, live spans
	ended sync.Map // trace.SpanID -> *entry, ended spans whose local root is live

	spanTypeKey attribute.Key
	resourceKey attribute.Key
}

// entry links a span to its local root. span and root never change.
type entry struct {
	span sdktrace.ReadOnlySpan
	root *entry // self for local roots

	// mu serializes attribute reads of span and, on local roots, guards
	// the ended-descendant bookkeeping below.
	mu        sync.Mutex
	rootEnded bool
	endedKids []trace.SpanID
}

// Compile-time interface check.
var _ sdktrace.SpanProcessor = (*RootTracker)(nil)

// Option configures a RootTracker.
type Option func(*RootTracker)

// WithSpanTypeKey sets the attribute holding the span type (default: span.type).
func WithSpanTypeKey(k attribute.Key) Option {
	return func(t *RootTracker) {
		t.spanTypeKey = k
	}
}

// WithResourceKey sets the attribute holding the resource (default: resource.name).
func WithResourceKey(k attribute.Key) Option {
	return func(t *RootTracker) {
		t.resourceKey = k
	}
}

// NewRootTracker creates a RootTracker.
func NewRootTracker(opts ...Option) *RootTracker {
	t := &RootTracker{
		spanTypeKey: DefaultSpanTypeKey,
		resourceKey: DefaultResourceKey,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// OnStart implements sdktrace.SpanProcessor.
// A span whose parent is absent, remote or unknown is its own local root.
// A parent that already ended still resolves to its local root until that
// root ends.
func (t *RootTracker) OnStart(_ context.Context, s sdktrace.ReadWriteSpan) {
	e := &entry{span: s}

	parent := s.Parent()
	if parent.IsValid() && !parent.IsRemote() {
		if p, ok := t.spans.Load(parent.SpanID()); ok {
			e.root = p.(*entry).root
		} else if p, ok := t.ended.Load(parent.SpanID()); ok {
			e.root = p.(*entry).root
		}
	}
	if e.root == nil {
		e.root = e
	}

	t.spans.Store(s.SpanContext().SpanID(), e)
}

// OnEnd implements sdktrace.SpanProcessor.
func (t *RootTracker) OnEnd(s sdktrace.ReadOnlySpan) {
	id := s.SpanContext().SpanID()
	v, ok := t.spans.LoadAndDelete(id)
	if !ok {
		return
	}
	e := v.(*entry)
	root := e.root

	root.mu.Lock()
	defer root.mu.Unlock()

	if root == e {
		root.rootEnded = true
		for _, kid := range root.endedKids {
			t.ended.Delete(kid)
		}
		root.endedKids = nil
		return
	}
	if !root.rootEnded {
		t.ended.Store(id, e)
		root.endedKids = append(root.endedKids, id)
	}
}

// Shutdown implements sdktrace.SpanProcessor.
func (t *RootTracker) Shutdown(context.Context) error {
	t.spans.Clear()
	t.ended.Clear()
	return nil
}

// ForceFlush implements sdktrace.SpanProcessor.
func (t *RootTracker) ForceFlush(context.Context) error {
	return nil
}

// Tracked returns the number of live spans being tracked.
func (t *RootTracker) Tracked() int {
	n := 0
	t.spans.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// SpanIDToUint64 converts an OpenTelemetry span id to its integer form.
func SpanIDToUint64(id trace.SpanID) uint64 {
	return binary.BigEndian.Uint64(id[:])
}
