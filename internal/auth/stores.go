package auth

import (
	"context"
	"time"
)

// ConsoleToken is a long-lived API token bound 1:1 to a user. It is the only
// bearer credential class the resolver accepts; capability tokens live in
// their own service.
type ConsoleToken struct {
	ID        string
	OwnerID   string
	Value     string
	Disabled  bool
	CreatedAt time.Time
	ExpiresAt *time.Time
}

// Expired reports whether the token is past its expiry at the given instant.
func (t ConsoleToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}

// Session is a server-side session row referenced by the jti of the signed
// session cookie.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// ConsoleTokenStore looks up console API tokens by their opaque value.
// Implementations return ErrNotFound for unknown values.
type ConsoleTokenStore interface {
	FindByValue(ctx context.Context, value string) (*ConsoleToken, error)
}

// SessionStore looks up session rows by id. Implementations return
// ErrNotFound for unknown ids.
type SessionStore interface {
	Find(ctx context.Context, id string) (*Session, error)
}

// RoleStore resolves the role names assigned to a user.
type RoleStore interface {
	RolesForUser(ctx context.Context, userID string) ([]string, error)
}
