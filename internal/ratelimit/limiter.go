// Package ratelimit implements fixed-window admission control. Windows reset
// at fixed boundaries rather than sliding continuously, so a burst straddling
// a boundary can admit up to twice the limit; capacity planning depends on
// that coarseness, and it is kept deliberately.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Result is the admission verdict for one request.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// WindowStore counts requests per key inside fixed windows. Bump starts a
// fresh window (count=1) when the key has none or the current one has
// expired, otherwise increments in place; it returns the post-increment count
// and the window's reset time.
type WindowStore interface {
	Bump(ctx context.Context, key string, window time.Duration, now time.Time) (count int64, resetAt time.Time, err error)
}

// Limiter applies a fixed request limit per key per window.
type Limiter struct {
	store  WindowStore
	limit  int
	window time.Duration
	now    func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(l *Limiter) {
		if fn != nil {
			l.now = fn
		}
	}
}

// New constructs a limiter over the given window store.
func New(store WindowStore, limit int, window time.Duration, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, errors.New("ratelimit: window store is required")
	}
	if limit <= 0 {
		return nil, errors.New("ratelimit: limit must be greater than zero")
	}
	if window <= 0 {
		return nil, errors.New("ratelimit: window must be greater than zero")
	}
	l := &Limiter{store: store, limit: limit, window: window, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Check admits or rejects one request for the key.
func (l *Limiter) Check(ctx context.Context, key string) (Result, error) {
	if key == "" {
		key = "unknown"
	}
	count, resetAt, err := l.store.Bump(ctx, key, l.window, l.now())
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: bump %q: %w", key, err)
	}
	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= int64(l.limit),
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}
