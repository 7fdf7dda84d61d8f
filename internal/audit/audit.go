// Package audit records every authorization decision and privileged action
// in an append-only log. Entries are immutable once written; actor values
// derived from raw bearer tokens are keyed-HMAC hashes, never the tokens
// themselves.
//
// Downstream consumers treat any entry whose action contains "auth" with a
// failure outcome as a failed-authentication signal. That substring
// convention is part of the log's implicit schema; writers must keep it.
package audit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Khaledaun/orion-console/internal/ids"
	"github.com/Khaledaun/orion-console/internal/obs"
)

// Outcome classifies an audited action.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Entry is one immutable audit record.
type Entry struct {
	ID        string
	Timestamp time.Time
	Actor     string
	Action    string
	Route     string
	Outcome   Outcome
	Metadata  map[string]string
}

// Store persists entries. Append must preserve insertion order; Recent
// returns the newest entries first.
type Store interface {
	Append(ctx context.Context, e *Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// Logger writes audit entries. A persistence failure never propagates to the
// caller's primary operation: it is counted, and reported on the operational
// side channel under a throttle so a broken audit backend cannot flood logs.
type Logger struct {
	store   Store
	hashKey []byte
	now     func() time.Time
	spill   *rate.Limiter

	mu   sync.Mutex
	last time.Time
}

// LoggerOption configures a Logger.
type LoggerOption func(*Logger)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) LoggerOption {
	return func(l *Logger) {
		if fn != nil {
			l.now = fn
		}
	}
}

// NewLogger constructs a Logger. hashKey keys the actor HMAC and must stay
// stable across deployments for actor correlation to work.
func NewLogger(store Store, hashKey []byte, opts ...LoggerOption) (*Logger, error) {
	if store == nil {
		return nil, errors.New("audit: store is required")
	}
	if len(hashKey) == 0 {
		return nil, errors.New("audit: hash key is required")
	}
	l := &Logger{
		store:   store,
		hashKey: hashKey,
		now:     time.Now,
		spill:   rate.NewLimiter(rate.Every(10*time.Second), 3),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// ActorHash derives a stable one-way actor identifier from a raw credential.
func (l *Logger) ActorHash(raw string) string {
	mac := hmac.New(sha256.New, l.hashKey)
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

// Log appends the entry, assigning id and a monotonic timestamp. The append
// runs on a detached context: a decision already made is recorded even when
// the caller's request was canceled mid-flight.
func (l *Logger) Log(ctx context.Context, e Entry) {
	e.ID = ids.New()
	e.Timestamp = l.stamp()

	if err := l.store.Append(context.WithoutCancel(ctx), &e); err != nil {
		obs.AuditAppendFailure()
		if l.spill.Allow() {
			obs.LogEvent(map[string]any{
				"ts":    l.now().UTC().Format(time.RFC3339Nano),
				"level": "error",
				"msg":   "audit append failed",
				"error": err.Error(),
			})
		}
	}
}

// Recent returns the most recent entries, newest first.
func (l *Logger) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return l.store.Recent(ctx, limit)
}

// stamp returns a strictly increasing timestamp so "most recent N" retrieval
// never reorders entries written back to back.
func (l *Logger) stamp() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	ts := l.now().UTC()
	if !ts.After(l.last) {
		ts = l.last.Add(time.Nanosecond)
	}
	l.last = ts
	return ts
}
