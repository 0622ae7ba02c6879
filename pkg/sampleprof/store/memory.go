package store

import (
	"context"
	"sort"
	"sync"

	"github.com/randalmurphal/sampleprof/pkg/sampleprof/event"
)

// MemoryStore keeps samples in memory. Data is lost when the process exits.
type MemoryStore struct {
	mu      sync.RWMutex
	samples []storedSample
	closed  bool
}

type storedSample struct {
	batchID string
	sample  *event.StackBasedEvent
}

// NewMemoryStore creates a new in-memory sample store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append implements Store.
func (m *MemoryStore) Append(_ context.Context, batchID string, samples []*event.StackBasedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	for _, s := range samples {
		if s == nil {
			continue
		}
		m.samples = append(m.samples, storedSample{batchID: batchID, sample: clone(s)})
	}
	return nil
}

// ByLocalRoot implements Store.
func (m *MemoryStore) ByLocalRoot(_ context.Context, id uint64) ([]*event.StackBasedEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	out := []*event.StackBasedEvent{}
	for _, s := range m.samples {
		if root, ok := s.sample.LocalRootSpanID.Get(); ok && root == id {
			out = append(out, clone(s.sample))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// EndpointCounts implements Store.
func (m *MemoryStore) EndpointCounts(_ context.Context) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	counts := make(map[string]int)
	for _, s := range m.samples {
		if res, ok := s.sample.TraceResourceContainer.Get(); ok {
			counts[res]++
		}
	}
	return counts, nil
}

// Count implements Store.
func (m *MemoryStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrStoreClosed
	}
	return len(m.samples), nil
}

// Batches returns the distinct batch ids in append order.
// Useful for testing.
func (m *MemoryStore) Batches() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	seen := make(map[string]bool)
	for _, s := range m.samples {
		if !seen[s.batchID] {
			seen[s.batchID] = true
			ids = append(ids, s.batchID)
		}
	}
	return ids
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.samples = nil
	return nil
}
