// Package token implements narrow-purpose capability tokens, orthogonal to
// session and role based authentication. A scoped token grants the scopes it
// was issued with and nothing else; it never satisfies a role requirement.
package token

import (
	"context"
	"errors"
	"time"
)

// Scope catalog. ScopeAdminAll is a superscope satisfying any check.
const (
	ScopeReadDrafts     = "read:drafts"
	ScopeWriteDrafts    = "write:drafts"
	ScopePublishContent = "publish:content"
	ScopeManageSites    = "manage:sites"
	ScopeAdminAll       = "admin:all"
)

var (
	ErrNotFound     = errors.New("token: not found")
	ErrInvalidInput = errors.New("token: invalid input")
)

// ScopedToken is the persisted capability record. Value is the opaque secret
// (32 random bytes, hex) and is unique across live tokens.
type ScopedToken struct {
	ID        string
	Value     string
	OwnerID   string
	SiteID    string
	Scopes    []string
	CreatedAt time.Time
	ExpiresAt *time.Time
}

// Expired reports whether the token is past its expiry at the given instant.
func (t ScopedToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}

// HasScope reports whether the token grants the wanted scope, directly or
// through the admin:all superscope.
func (t ScopedToken) HasScope(wanted string) bool {
	for _, s := range t.Scopes {
		if s == wanted || s == ScopeAdminAll {
			return true
		}
	}
	return false
}

// Store is the persistence contract for scoped tokens. FindByValue returns
// ErrNotFound for unknown values; DeleteByValue treats a missing row as
// success so concurrent expiry purges stay idempotent.
type Store interface {
	Insert(ctx context.Context, tok *ScopedToken) error
	FindByValue(ctx context.Context, value string) (*ScopedToken, error)
	DeleteByValue(ctx context.Context, value string) error
	ListBySite(ctx context.Context, siteID string) ([]ScopedToken, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
