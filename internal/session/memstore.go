package session

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// MemStore is an in-process Store backed by a map. State does not survive
// the process; use the PostgreSQL store for durable history.
type MemStore struct {
	mu      sync.RWMutex
	threads map[string]*ThreadState
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{threads: make(map[string]*ThreadState)}
}

// Get implements Store.
func (s *MemStore) Get(_ context.Context, threadID string) (*ThreadState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.threads[threadID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyState(state), nil
}

// Append implements Store.
func (s *MemStore) Append(_ context.Context, threadID string, msgs []Message, corrs []Correction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.threads[threadID]
	if !ok {
		state = &ThreadState{ThreadID: threadID}
		s.threads[threadID] = state
	}
	state.Messages = append(state.Messages, msgs...)
	for _, c := range corrs {
		c.Issues = slices.Clone(c.Issues)
		state.Corrections = append(state.Corrections, c)
	}
	return nil
}

// ThreadIDs returns the identifiers of all committed threads, in no
// particular order. Intended for tests and diagnostics.
func (s *MemStore) ThreadIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Collect(maps.Keys(s.threads))
}

// copyState deep-copies so callers can't race later Appends.
func copyState(state *ThreadState) *ThreadState {
	out := &ThreadState{
		ThreadID:    state.ThreadID,
		Messages:    slices.Clone(state.Messages),
		Corrections: slices.Clone(state.Corrections),
	}
	for i := range out.Corrections {
		out.Corrections[i].Issues = slices.Clone(out.Corrections[i].Issues)
	}
	return out
}
