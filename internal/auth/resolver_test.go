package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestResolver(t *testing.T, opts ...ResolverOption) (*Resolver, *MemoryConsoleTokenStore, *MemoryRoleStore, *MemorySessionStore, *SessionVerifier) {
	t.Helper()
	tokens := NewMemoryConsoleTokenStore()
	roles := NewMemoryRoleStore()
	sessions := NewMemorySessionStore()
	verifier, err := NewSessionVerifier("test-secret")
	if err != nil {
		t.Fatalf("NewSessionVerifier: %v", err)
	}
	r, err := NewResolver(tokens, roles, verifier, sessions, opts...)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return r, tokens, roles, sessions, verifier
}

func TestResolveBearer(t *testing.T) {
	r, tokens, roles, _, _ := newTestResolver(t)
	tokens.Put(ConsoleToken{ID: "t1", OwnerID: "user-1", Value: "tok-abc", CreatedAt: time.Now()})
	roles.SetRoles("user-1", "Editor", "viewer")

	id, err := r.Resolve(context.Background(), Credential{Kind: CredentialBearer, Value: "tok-abc"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id.UserID != "user-1" || id.Source != SourceBearer || id.Degraded {
		t.Fatalf("unexpected identity: %+v", id)
	}
	if !id.Roles.Has(RoleEditor) || !id.Roles.Has(RoleViewer) {
		t.Fatalf("roles not normalized: %v", id.Roles.List())
	}
}

func TestResolveBearerUnknownToken(t *testing.T) {
	r, _, _, _, _ := newTestResolver(t)

	_, err := r.Resolve(context.Background(), Credential{Kind: CredentialBearer, Value: "not-a-real-token"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestResolveBearerDisabledAndExpired(t *testing.T) {
	now := time.Now()
	r, tokens, roles, _, _ := newTestResolver(t, WithClock(func() time.Time { return now }))
	roles.SetRoles("user-1", "admin")

	tokens.Put(ConsoleToken{ID: "t1", OwnerID: "user-1", Value: "tok-disabled", Disabled: true})
	if _, err := r.Resolve(context.Background(), Credential{Kind: CredentialBearer, Value: "tok-disabled"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("disabled token: expected ErrUnauthorized, got %v", err)
	}

	past := now.Add(-time.Hour)
	tokens.Put(ConsoleToken{ID: "t2", OwnerID: "user-1", Value: "tok-expired", ExpiresAt: &past})
	if _, err := r.Resolve(context.Background(), Credential{Kind: CredentialBearer, Value: "tok-expired"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expired token: expected ErrUnauthorized, got %v", err)
	}
}

func TestResolveDegradesToViewerOnRoleOutage(t *testing.T) {
	r, tokens, roles, _, _ := newTestResolver(t)
	tokens.Put(ConsoleToken{ID: "t1", OwnerID: "user-1", Value: "tok-abc"})
	roles.SetUnavailable(errors.New("connection refused"))

	id, err := r.Resolve(context.Background(), Credential{Kind: CredentialBearer, Value: "tok-abc"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !id.Degraded {
		t.Fatalf("expected degraded identity")
	}
	if !id.Roles.Has(RoleViewer) || id.Roles.Has(RoleAdmin) {
		t.Fatalf("expected viewer-only roles, got %v", id.Roles.List())
	}
}

func TestResolveFailClosedPolicy(t *testing.T) {
	r, tokens, roles, _, _ := newTestResolver(t, WithDegradedRolePolicy(FailClosed))
	tokens.Put(ConsoleToken{ID: "t1", OwnerID: "user-1", Value: "tok-abc"})
	roles.SetUnavailable(errors.New("connection refused"))

	_, err := r.Resolve(context.Background(), Credential{Kind: CredentialBearer, Value: "tok-abc"})
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestResolveSession(t *testing.T) {
	r, _, roles, sessions, verifier := newTestResolver(t)
	roles.SetRoles("user-7", "ADMIN")

	raw, sessionID, expiresAt, err := verifier.Issue("user-7", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	sessions.Put(Session{ID: sessionID, UserID: "user-7", ExpiresAt: expiresAt})

	id, err := r.Resolve(context.Background(), Credential{Kind: CredentialSession, Value: raw})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id.UserID != "user-7" || id.Source != SourceSession {
		t.Fatalf("unexpected identity: %+v", id)
	}
	if !id.Roles.Has(RoleAdmin) {
		t.Fatalf("expected admin role, got %v", id.Roles.List())
	}
}

func TestResolveSessionRevoked(t *testing.T) {
	r, _, roles, sessions, verifier := newTestResolver(t)
	roles.SetRoles("user-7", "ADMIN")

	raw, sessionID, expiresAt, err := verifier.Issue("user-7", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	revoked := time.Now()
	sessions.Put(Session{ID: sessionID, UserID: "user-7", ExpiresAt: expiresAt, RevokedAt: &revoked})

	if _, err := r.Resolve(context.Background(), Credential{Kind: CredentialSession, Value: raw}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for revoked session, got %v", err)
	}
}

func TestResolveSessionRowMissing(t *testing.T) {
	r, _, _, _, verifier := newTestResolver(t)

	raw, _, _, err := verifier.Issue("user-7", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := r.Resolve(context.Background(), Credential{Kind: CredentialSession, Value: raw}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for missing session row, got %v", err)
	}
}

func TestResolveNoCredential(t *testing.T) {
	r, _, _, _, _ := newTestResolver(t)

	if _, err := r.Resolve(context.Background(), Credential{Kind: CredentialNone}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}
