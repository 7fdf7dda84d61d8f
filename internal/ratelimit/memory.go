package ratelimit

import (
	"context"
	"sync"
	"time"
)

// evictScanCap bounds how many entries one Bump inspects while cleaning up
// expired windows belonging to other keys.
const evictScanCap = 16

type window struct {
	count   int64
	resetAt time.Time
}

// MemoryWindowStore keeps one live window per key in a mutex-guarded map.
// Expired windows are evicted opportunistically while serving lookups for
// other keys; there is no background sweeper and no timers.
type MemoryWindowStore struct {
	mu      sync.Mutex
	windows map[string]*window
}

var _ WindowStore = (*MemoryWindowStore)(nil)

func NewMemoryWindowStore() *MemoryWindowStore {
	return &MemoryWindowStore{windows: make(map[string]*window)}
}

func (s *MemoryWindowStore) Bump(ctx context.Context, key string, dur time.Duration, now time.Time) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpired(key, now)

	w, ok := s.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &window{count: 1, resetAt: now.Add(dur)}
		s.windows[key] = w
		return w.count, w.resetAt, nil
	}
	w.count++
	return w.count, w.resetAt, nil
}

// evictExpired drops a bounded number of other keys' dead windows. Map
// iteration order varies per call, which spreads the cleanup across keys.
func (s *MemoryWindowStore) evictExpired(current string, now time.Time) {
	scanned := 0
	for key, w := range s.windows {
		if key == current {
			continue
		}
		if now.After(w.resetAt) {
			delete(s.windows, key)
		}
		scanned++
		if scanned >= evictScanCap {
			return
		}
	}
}

// Len reports the number of live windows (test helper).
func (s *MemoryWindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}
