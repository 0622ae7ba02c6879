// Package store persists correlated samples after the recorder hands them off.
package store

import (
	"context"
	"errors"

	"github.com/randalmurphal/sampleprof/pkg/sampleprof/event"
)

// Store persists flushed samples.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append stores a batch of samples under batchID.
	// The samples are copied; callers may reuse them afterwards.
	Append(ctx context.Context, batchID string, samples []*event.StackBasedEvent) error

	// ByLocalRoot returns the samples whose local root span id is id,
	// ordered by timestamp. Returns an empty slice (not error) if none match.
	ByLocalRoot(ctx context.Context, id uint64) ([]*event.StackBasedEvent, error)

	// EndpointCounts returns the number of samples per trace resource.
	// Samples without a resource are not counted.
	EndpointCounts(ctx context.Context) (map[string]int, error)

	// Count returns the number of stored samples.
	Count(ctx context.Context) (int, error)

	// Close releases any resources (connections, files).
	Close() error
}

// ErrStoreClosed indicates the store has been closed.
var ErrStoreClosed = errors.New("sample store closed")

// clone copies a sample so stored data does not alias the caller's frames.
func clone(e *event.StackBasedEvent) *event.StackBasedEvent {
	c := *e
	if e.Frames != nil {
		c.Frames = make([]event.Frame, len(e.Frames))
		copy(c.Frames, e.Frames)
	}
	return &c
}
