package auth

import (
	"context"
	"sort"
	"strings"
)

// Role is a coarse-grained access level. The set is open: storage may carry
// roles beyond the built-in three, and they participate in checks unchanged.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleEditor Role = "EDITOR"
	RoleViewer Role = "VIEWER"
)

// NormalizeRole canonicalizes a role string to its uppercase form. Legacy
// storage carries mixed-case role names, so every comparison goes through
// this first.
func NormalizeRole(s string) Role {
	return Role(strings.ToUpper(strings.TrimSpace(s)))
}

// RoleSet is a normalized set of roles.
type RoleSet map[Role]struct{}

// NewRoleSet builds a RoleSet from raw role strings, dropping empties and
// duplicates after normalization.
func NewRoleSet(roles ...string) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		role := NormalizeRole(r)
		if role == "" {
			continue
		}
		set[role] = struct{}{}
	}
	return set
}

// Has reports membership after normalization.
func (s RoleSet) Has(r Role) bool {
	_, ok := s[NormalizeRole(string(r))]
	return ok
}

// List returns the roles in sorted order.
func (s RoleSet) List() []string {
	out := make([]string, 0, len(s))
	for r := range s {
		out = append(out, string(r))
	}
	sort.Strings(out)
	return out
}

// SourceKind identifies which credential scheme produced an identity.
type SourceKind string

const (
	SourceSession     SourceKind = "session"
	SourceBearer      SourceKind = "bearer"
	SourceScopedToken SourceKind = "scoped_token"
)

// Identity is the per-request resolved caller. It is never persisted.
// Degraded marks an identity whose roles could not be loaded and were
// substituted with the minimal role.
type Identity struct {
	UserID   string
	Roles    RoleSet
	Source   SourceKind
	Degraded bool
}

type identityContextKey struct{}

// ContextWithIdentity attaches the resolved identity to the context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, &id)
}

// IdentityFromContext extracts the resolved identity from the context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	v, ok := ctx.Value(identityContextKey{}).(*Identity)
	if !ok || v == nil {
		return Identity{}, false
	}
	return *v, true
}
