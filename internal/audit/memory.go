package audit

import (
	"context"
	"errors"
	"sync"
)

// defaultCapacity bounds the in-memory log; the oldest entries fall off.
const defaultCapacity = 1024

// MemoryStore is a bounded, insertion-ordered Store for tests and
// single-process deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
	cap     int
	fail    error
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cap: defaultCapacity}
}

// SetFailure makes subsequent appends fail (test helper for side-channel
// behavior).
func (s *MemoryStore) SetFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

func (s *MemoryStore) Append(ctx context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	copy := *e
	if e.Metadata != nil {
		copy.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			copy.Metadata[k] = v
		}
	}
	s.entries = append(s.entries, copy)
	if len(s.entries) > s.cap {
		s.entries = s.entries[len(s.entries)-s.cap:]
	}
	return nil
}

func (s *MemoryStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, errors.New("audit: limit must be greater than zero")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := limit
	if n > len(s.entries) {
		n = len(s.entries)
	}
	out := make([]Entry, 0, n)
	for i := len(s.entries) - 1; i >= len(s.entries)-n; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}
