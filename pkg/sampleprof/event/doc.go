// Package event defines the records a statistical profiler produces and how a
// sample picks up the trace it was taken in.
//
// # Variants
//
// Four fixed-shape record types form the variant set, each reporting its tag
// through Kind and Name so exporters can dispatch without reflection:
//
//   - Base ("Event"): a timestamped occurrence
//   - TimedEvent ("TimedEvent"): adds an optional Duration
//   - SampleEvent ("SampleEvent"): adds an optional SamplingPeriod
//   - StackBasedEvent ("StackBasedEvent"): a stack snapshot of one thread or task
//
// Optional fields use Opt, a value type that never allocates, so building a
// sample on the sampling path stays cheap.
//
// # Building Samples
//
//	evt := event.NewStackBasedEvent(frames, depth,
//	    event.WithSamplingPeriod(10*time.Millisecond),
//	    event.WithThread(tid, "main"),
//	)
//
// The timestamp is taken from the clock at construction unless WithTimestamp
// is given, which makes replays in tests deterministic.
//
// Frames are ordered innermost first. NFrames is the depth of the real stack
// and may exceed len(Frames) when the sampler truncated it.
//
// # Trace Correlation
//
// After capture, the sampler's tracer integration calls CorrelateWithTrace
// once with the span that was active, if any:
//
//	evt.CorrelateWithTrace(span, endpointCollectionEnabled)
//
// A nil span is a no-op. The span id is always recorded; the local root's id
// and type are recorded when the span has a local root; the local root's
// resource is recorded only when endpoint collection is enabled.
//
// # Validation
//
// Field invariants (non-negative durations, NFrames >= len(Frames)) are not
// checked at construction. Validate checks them on demand and returns a
// *ValidationError matching ErrInvalidEvent.
package event
