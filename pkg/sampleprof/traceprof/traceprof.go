// Package traceprof contains shared logic for cross-cutting tracer/profiler features.
package traceprof

import (
	"context"
	"runtime/pprof"
	"strconv"

	"github.com/randalmurphal/sampleprof/pkg/sampleprof/event"
)

// pprof labels carrying trace correlation into profiles.
const (
	SpanID          = "span id"
	LocalRootSpanID = "local root span id"
	TraceEndpoint   = "trace endpoint"
)

// env variables used to control cross-cutting tracer/profiling features.
const (
	CodeHotspotsEnvVar = "DD_PROFILING_CODE_HOTSPOTS_COLLECTION_ENABLED" // aka code hotspots
	EndpointEnvVar     = "DD_PROFILING_ENDPOINT_COLLECTION_ENABLED"      // aka endpoint profiling
)

// Labels returns the correlation fields of a sample as pprof label pairs,
// in the key, value order pprof.Labels expects. Absent fields are skipped,
// so an uncorrelated sample yields no labels.
func Labels(e *event.StackBasedEvent) []string {
	if e == nil {
		return nil
	}
	var kv []string
	if id, ok := e.SpanID.Get(); ok {
		kv = append(kv, SpanID, strconv.FormatUint(id, 10))
	}
	if id, ok := e.LocalRootSpanID.Get(); ok {
		kv = append(kv, LocalRootSpanID, strconv.FormatUint(id, 10))
	}
	if res, ok := e.TraceResourceContainer.Get(); ok {
		kv = append(kv, TraceEndpoint, res)
	}
	return kv
}

// WithLabels attaches the correlation labels of a sample to ctx, so work done
// under the returned context is attributed to the same trace in Go profiles.
func WithLabels(ctx context.Context, e *event.StackBasedEvent) context.Context {
	kv := Labels(e)
	if len(kv) == 0 {
		return ctx
	}
	return pprof.WithLabels(ctx, pprof.Labels(kv...))
}
