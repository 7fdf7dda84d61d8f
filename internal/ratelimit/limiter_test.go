package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, limit int, window time.Duration, clock func() time.Time) (*Limiter, *MemoryWindowStore) {
	t.Helper()
	store := NewMemoryWindowStore()
	l, err := New(store, limit, window, WithClock(clock))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l, store
}

func TestCheckWithinLimit(t *testing.T) {
	now := time.Now()
	l, _ := newTestLimiter(t, 3, time.Minute, func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.Check(ctx, "user-1")
		if err != nil {
			t.Fatalf("Check %d: %v", i, err)
		}
		if !res.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if res.Remaining != 3-(i+1) {
			t.Fatalf("request %d: expected remaining %d, got %d", i+1, 3-(i+1), res.Remaining)
		}
	}

	res, err := l.Check(ctx, "user-1")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Allowed {
		t.Fatalf("request over limit must be denied")
	}
	if res.Remaining != 0 {
		t.Fatalf("expected remaining 0, got %d", res.Remaining)
	}
	if res.Limit != 3 {
		t.Fatalf("expected limit 3, got %d", res.Limit)
	}
}

func TestCheckFreshWindowAfterExpiry(t *testing.T) {
	now := time.Now()
	l, _ := newTestLimiter(t, 1, time.Minute, func() time.Time { return now })
	ctx := context.Background()

	if res, _ := l.Check(ctx, "user-1"); !res.Allowed {
		t.Fatalf("first request must be allowed")
	}
	if res, _ := l.Check(ctx, "user-1"); res.Allowed {
		t.Fatalf("second request must be denied")
	}

	now = now.Add(time.Minute + time.Millisecond)
	res, err := l.Check(ctx, "user-1")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !res.Allowed {
		t.Fatalf("fresh window must admit the request")
	}
	if res.Remaining != 0 {
		t.Fatalf("limit 1 fresh window: expected remaining 0, got %d", res.Remaining)
	}
	if !res.ResetAt.After(now) {
		t.Fatalf("resetAt must be in the future: %v", res.ResetAt)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	now := time.Now()
	l, _ := newTestLimiter(t, 1, time.Minute, func() time.Time { return now })
	ctx := context.Background()

	if res, _ := l.Check(ctx, "user-1"); !res.Allowed {
		t.Fatalf("user-1 first request must be allowed")
	}
	if res, _ := l.Check(ctx, "user-2"); !res.Allowed {
		t.Fatalf("user-2 must have its own window")
	}
}

func TestExpiredWindowsEvictedOnOtherLookups(t *testing.T) {
	now := time.Now()
	l, store := newTestLimiter(t, 5, time.Minute, func() time.Time { return now })
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		if _, err := l.Check(ctx, key); err != nil {
			t.Fatalf("Check %s: %v", key, err)
		}
	}
	now = now.Add(2 * time.Minute)

	if _, err := l.Check(ctx, "d"); err != nil {
		t.Fatalf("Check d: %v", err)
	}
	if got := store.Len(); got != 1 {
		t.Fatalf("expected expired windows evicted, %d remain", got)
	}
}

func TestConcurrentChecksDoNotCorruptCounts(t *testing.T) {
	l, _ := newTestLimiter(t, 100, time.Minute, time.Now)
	ctx := context.Background()

	var wg sync.WaitGroup
	denied := make(chan struct{}, 200)
	for i := 0; i < 150; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.Check(ctx, "shared")
			if err != nil {
				t.Errorf("Check: %v", err)
				return
			}
			if !res.Allowed {
				denied <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(denied)

	var n int
	for range denied {
		n++
	}
	if n != 50 {
		t.Fatalf("expected exactly 50 denials, got %d", n)
	}
}
