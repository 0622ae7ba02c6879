package event

import (
	"fmt"
	"strings"
)

// Frame describes one captured stack frame.
type Frame struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function"`
	Class    string `json:"class,omitempty"`
}

func (f Frame) String() string {
	fn := f.Function
	if f.Class != "" {
		fn = f.Class + "." + fn
	}
	return fmt.Sprintf("%s (%s:%d)", fn, f.File, f.Line)
}

// TraceSpan is the slice of a tracer's span that sample correlation reads.
//
// Implementations are owned by the tracing subsystem and may change
// concurrently; correlation only reads them once.
//
// "No span" is always an untyped nil TraceSpan, both for LocalRoot's result
// and for the span passed to CorrelateWithTrace. A nil pointer stored in a
// TraceSpan is a non-nil interface and is called like any other span.
type TraceSpan interface {
	// SpanID returns the span identifier.
	SpanID() uint64

	// LocalRoot returns the top-level span of the trace in this process, or nil.
	LocalRoot() TraceSpan

	// SpanType returns the span type (e.g. "web"), if known.
	SpanType() (string, bool)

	// Resource returns the resource (endpoint) the span is serving, if known.
	Resource() (string, bool)
}

// StackBasedEvent is a stack snapshot of one thread or task.
//
// Frames are ordered innermost first: Frames[0] is the frame that was
// executing when the sample was taken. NFrames is the depth of the real stack
// and is never smaller than len(Frames); a larger NFrames means the sampler
// truncated the stack.
//
// An event has a single owner at a time (sampler, then correlator, then
// exporter) and carries no synchronization of its own.
type StackBasedEvent struct {
	SampleEvent

	ThreadID       Opt[int64]  `json:"thread_id"`
	ThreadName     Opt[string] `json:"thread_name"`
	ThreadNativeID Opt[int64]  `json:"thread_native_id"`
	TaskID         Opt[int64]  `json:"task_id"`
	TaskName       Opt[string] `json:"task_name"`

	Frames  []Frame `json:"frames"`
	NFrames int     `json:"nframes" validate:"gte=0"`

	// Trace correlation, absent until CorrelateWithTrace sees a span.
	LocalRootSpanID        Opt[uint64] `json:"local_root_span_id"`
	SpanID                 Opt[uint64] `json:"span_id"`
	TraceType              Opt[string] `json:"trace_type"`
	TraceResourceContainer Opt[string] `json:"trace_resource_container"`
}

// NewStackBasedEvent creates a sample from captured frames.
// nframes is the depth of the real stack; frames may hold fewer entries.
// The frames slice is owned by the event from here on.
func NewStackBasedEvent(frames []Frame, nframes int, opts ...Option) *StackBasedEvent {
	cfg := newOptions(opts)
	return &StackBasedEvent{
		SampleEvent: SampleEvent{
			Base:           Base{Timestamp: cfg.now()},
			SamplingPeriod: cfg.samplingPeriod,
		},
		ThreadID:       cfg.threadID,
		ThreadName:     cfg.threadName,
		ThreadNativeID: cfg.threadNativeID,
		TaskID:         cfg.taskID,
		TaskName:       cfg.taskName,
		Frames:         frames,
		NFrames:        nframes,
	}
}

// Kind implements Event.
func (e *StackBasedEvent) Kind() Kind { return KindStackBased }

// Name implements Event.
func (e *StackBasedEvent) Name() string { return KindStackBased.String() }

// CorrelateWithTrace tags the sample with the trace it was taken in.
//
// A nil span leaves the event untouched; callers pass "no span" as an untyped
// nil (see TraceSpan). Otherwise the span id is recorded, and when the span
// has a local root its id and type are recorded too. The root's resource is
// only recorded when endpointCollectionEnabled is set.
//
// Each call with a non-nil span replaces all four trace fields, so the result
// only reflects the latest span.
func (e *StackBasedEvent) CorrelateWithTrace(span TraceSpan, endpointCollectionEnabled bool) {
	if span == nil {
		return
	}

	e.SpanID = Some(span.SpanID())
	e.LocalRootSpanID = None[uint64]()
	e.TraceType = None[string]()
	e.TraceResourceContainer = None[string]()

	root := span.LocalRoot()
	if root == nil {
		return
	}
	e.LocalRootSpanID = Some(root.SpanID())
	e.TraceType = OptOf(root.SpanType())
	if endpointCollectionEnabled {
		e.TraceResourceContainer = OptOf(root.Resource())
	}
}

// Correlated reports whether CorrelateWithTrace has seen a span.
// A correlated event always carries a span id.
func (e *StackBasedEvent) Correlated() bool {
	return e.SpanID.IsSet()
}

// Truncated reports whether the sampler dropped frames.
func (e *StackBasedEvent) Truncated() bool {
	return len(e.Frames) < e.NFrames
}

// Leaf returns the innermost frame, if any were captured.
func (e *StackBasedEvent) Leaf() (Frame, bool) {
	if len(e.Frames) == 0 {
		return Frame{}, false
	}
	return e.Frames[0], true
}

func (e *StackBasedEvent) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "StackBasedEvent(timestamp=%d, sampling_period=%s", e.TimestampNS(), e.SamplingPeriod)
	fmt.Fprintf(&b, ", thread_id=%s, thread_name=%s, thread_native_id=%s", e.ThreadID, e.ThreadName, e.ThreadNativeID)
	fmt.Fprintf(&b, ", task_id=%s, task_name=%s", e.TaskID, e.TaskName)
	fmt.Fprintf(&b, ", frames=%d, nframes=%d", len(e.Frames), e.NFrames)
	fmt.Fprintf(&b, ", local_root_span_id=%s, span_id=%s", e.LocalRootSpanID, e.SpanID)
	fmt.Fprintf(&b, ", trace_type=%s, trace_resource_container=%s)", e.TraceType, e.TraceResourceContainer)
	return b.String()
}
