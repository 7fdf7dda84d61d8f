package token

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a map-backed Store for tests and single-process
// deployments. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	byValue map[string]ScopedToken
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byValue: make(map[string]ScopedToken)}
}

func (s *MemoryStore) Insert(ctx context.Context, tok *ScopedToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy := *tok
	copy.Scopes = append([]string(nil), tok.Scopes...)
	s.byValue[tok.Value] = copy
	return nil
}

func (s *MemoryStore) FindByValue(ctx context.Context, value string) (*ScopedToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tok, ok := s.byValue[value]
	if !ok {
		return nil, ErrNotFound
	}
	copy := tok
	copy.Scopes = append([]string(nil), tok.Scopes...)
	return &copy, nil
}

// DeleteByValue removes the record; a missing row is a non-error so
// concurrent expiry purges do not race each other into failures.
func (s *MemoryStore) DeleteByValue(ctx context.Context, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byValue, value)
	return nil
}

func (s *MemoryStore) ListBySite(ctx context.Context, siteID string) ([]ScopedToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ScopedToken, 0, len(s.byValue))
	for _, tok := range s.byValue {
		if siteID != "" && tok.SiteID != siteID {
			continue
		}
		copy := tok
		copy.Scopes = append([]string(nil), tok.Scopes...)
		out = append(out, copy)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for value, tok := range s.byValue {
		if tok.Expired(now) {
			delete(s.byValue, value)
			n++
		}
	}
	return n, nil
}

// Len reports the number of live records (test helper).
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byValue)
}
