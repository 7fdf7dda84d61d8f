package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DegradedRolePolicy controls what happens when the role store is
// unreachable during resolution.
type DegradedRolePolicy int

const (
	// DegradeToViewer substitutes the minimal role and flags the identity,
	// trading availability for least privilege.
	DegradeToViewer DegradedRolePolicy = iota
	// FailClosed surfaces the storage error instead of resolving.
	FailClosed
)

// Resolver turns an extracted credential into a resolved identity. It is the
// single resolution path for both bearer tokens and sessions.
type Resolver struct {
	tokens   ConsoleTokenStore
	sessions SessionStore
	verifier *SessionVerifier
	roles    RoleStore
	policy   DegradedRolePolicy
	now      func() time.Time
}

// ResolverOption configures Resolver behavior.
type ResolverOption func(*Resolver)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if fn != nil {
			r.now = fn
		}
	}
}

// WithDegradedRolePolicy selects the role-store outage policy.
func WithDegradedRolePolicy(p DegradedRolePolicy) ResolverOption {
	return func(r *Resolver) {
		r.policy = p
	}
}

// NewResolver constructs a resolver. The session pair (verifier, store) may
// be nil together, in which case session credentials are rejected.
func NewResolver(tokens ConsoleTokenStore, roles RoleStore, verifier *SessionVerifier, sessions SessionStore, opts ...ResolverOption) (*Resolver, error) {
	if tokens == nil {
		return nil, errors.New("auth: console token store is required")
	}
	if roles == nil {
		return nil, errors.New("auth: role store is required")
	}
	if (verifier == nil) != (sessions == nil) {
		return nil, errors.New("auth: session verifier and session store must be configured together")
	}
	r := &Resolver{
		tokens:   tokens,
		sessions: sessions,
		verifier: verifier,
		roles:    roles,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve authenticates the credential and loads the caller's roles.
func (r *Resolver) Resolve(ctx context.Context, cred Credential) (Identity, error) {
	switch cred.Kind {
	case CredentialBearer:
		return r.resolveBearer(ctx, cred.Value)
	case CredentialSession:
		return r.resolveSession(ctx, cred.Value)
	default:
		return Identity{}, fmt.Errorf("%w: missing credential", ErrUnauthorized)
	}
}

func (r *Resolver) resolveBearer(ctx context.Context, value string) (Identity, error) {
	tok, err := r.tokens.FindByValue(ctx, value)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, fmt.Errorf("%w: unknown bearer token", ErrUnauthorized)
		}
		return Identity{}, fmt.Errorf("%w: console token lookup: %v", ErrStorageUnavailable, err)
	}
	if tok.Disabled {
		return Identity{}, fmt.Errorf("%w: token disabled", ErrUnauthorized)
	}
	if tok.Expired(r.now()) {
		return Identity{}, fmt.Errorf("%w: token expired", ErrUnauthorized)
	}
	return r.withRoles(ctx, tok.OwnerID, SourceBearer)
}

func (r *Resolver) resolveSession(ctx context.Context, value string) (Identity, error) {
	if r.verifier == nil || r.sessions == nil {
		return Identity{}, fmt.Errorf("%w: session authentication is not configured", ErrUnauthorized)
	}
	sessionID, userID, err := r.verifier.Verify(value)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	sess, err := r.sessions.Find(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, fmt.Errorf("%w: unknown session", ErrUnauthorized)
		}
		return Identity{}, fmt.Errorf("%w: session lookup: %v", ErrStorageUnavailable, err)
	}
	if sess.RevokedAt != nil {
		return Identity{}, fmt.Errorf("%w: session revoked", ErrUnauthorized)
	}
	if r.now().After(sess.ExpiresAt) {
		return Identity{}, fmt.Errorf("%w: session expired", ErrUnauthorized)
	}
	// The subject in the cookie must match the row it points at.
	if sess.UserID != userID {
		return Identity{}, fmt.Errorf("%w: session subject mismatch", ErrUnauthorized)
	}
	return r.withRoles(ctx, userID, SourceSession)
}

func (r *Resolver) withRoles(ctx context.Context, userID string, source SourceKind) (Identity, error) {
	names, err := r.roles.RolesForUser(ctx, userID)
	if err != nil {
		if r.policy == FailClosed {
			return Identity{}, fmt.Errorf("%w: role lookup: %v", ErrStorageUnavailable, err)
		}
		return Identity{
			UserID:   userID,
			Roles:    NewRoleSet(string(RoleViewer)),
			Source:   source,
			Degraded: true,
		}, nil
	}
	return Identity{UserID: userID, Roles: NewRoleSet(names...), Source: source}, nil
}
