package gateway

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Khaledaun/orion-console/internal/audit"
	"github.com/Khaledaun/orion-console/internal/auth"
	"github.com/Khaledaun/orion-console/internal/ratelimit"
	"github.com/Khaledaun/orion-console/internal/token"
)

type fixture struct {
	gw       *Gateway
	tokens   *auth.MemoryConsoleTokenStore
	roles    *auth.MemoryRoleStore
	sessions *auth.MemorySessionStore
	verifier *auth.SessionVerifier
	scoped   *token.Service
	audit    *audit.Logger
}

func newFixture(t *testing.T, limit int) *fixture {
	t.Helper()

	tokens := auth.NewMemoryConsoleTokenStore()
	roles := auth.NewMemoryRoleStore()
	sessions := auth.NewMemorySessionStore()
	verifier, err := auth.NewSessionVerifier("gw-secret")
	if err != nil {
		t.Fatalf("NewSessionVerifier: %v", err)
	}
	resolver, err := auth.NewResolver(tokens, roles, verifier, sessions)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	scoped, err := token.NewService(token.NewMemoryStore())
	if err != nil {
		t.Fatalf("token.NewService: %v", err)
	}
	limiter, err := ratelimit.New(ratelimit.NewMemoryWindowStore(), limit, time.Minute)
	if err != nil {
		t.Fatalf("ratelimit.New: %v", err)
	}
	auditLogger, err := audit.NewLogger(audit.NewMemoryStore(), []byte("audit-key"))
	if err != nil {
		t.Fatalf("audit.NewLogger: %v", err)
	}
	gw, err := New(resolver, scoped, limiter, auditLogger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &fixture{gw: gw, tokens: tokens, roles: roles, sessions: sessions, verifier: verifier, scoped: scoped, audit: auditLogger}
}

func bearerRequest(value string, cookies ...*http.Cookie) Request {
	hdr := http.Header{}
	if value != "" {
		hdr.Set("Authorization", "Bearer "+value)
	}
	return Request{Method: "GET", Path: "/v1/resource", Header: hdr, Cookies: cookies, RemoteIP: "10.0.0.1"}
}

func (f *fixture) lastEntry(t *testing.T) audit.Entry {
	t.Helper()
	entries, err := f.audit.Recent(context.Background(), 1)
	if err != nil || len(entries) == 0 {
		t.Fatalf("expected audit entry, err=%v", err)
	}
	return entries[0]
}

func TestAuthorizeRoleRequirement(t *testing.T) {
	f := newFixture(t, 10)
	f.tokens.Put(auth.ConsoleToken{ID: "t1", OwnerID: "user-1", Value: "tok-ed"})
	f.roles.SetRoles("user-1", "editor")

	res, err := f.gw.Authorize(context.Background(), bearerRequest("tok-ed"), ForRole(auth.RoleEditor))
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if res.Identity.UserID != "user-1" || res.Identity.Source != auth.SourceBearer {
		t.Fatalf("unexpected identity: %+v", res.Identity)
	}
	if res.RateLimit.Limit != 10 || res.RateLimit.Remaining != 9 {
		t.Fatalf("unexpected rate limit result: %+v", res.RateLimit)
	}

	entry := f.lastEntry(t)
	if entry.Outcome != audit.OutcomeSuccess || entry.Action != "auth.bearer" {
		t.Fatalf("unexpected audit entry: %+v", entry)
	}
}

func TestAuthorizeUnknownBearerNeverFallsBackToSession(t *testing.T) {
	f := newFixture(t, 10)
	f.roles.SetRoles("user-7", "admin")

	// A perfectly valid session rides along in the cookie jar.
	raw, sessionID, expiresAt, err := f.verifier.Issue("user-7", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	f.sessions.Put(auth.Session{ID: sessionID, UserID: "user-7", ExpiresAt: expiresAt})
	cookie := &http.Cookie{Name: auth.SessionCookieName, Value: raw}

	_, err = f.gw.Authorize(context.Background(), bearerRequest("not-a-real-token", cookie), Authenticated())
	if !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	entry := f.lastEntry(t)
	if entry.Outcome != audit.OutcomeFailure || entry.Action != "auth.bearer" {
		t.Fatalf("unexpected audit entry: %+v", entry)
	}
	if entry.Actor == "not-a-real-token" {
		t.Fatalf("raw token must never be recorded as actor")
	}
}

func TestAuthorizeForbiddenDistinctFromUnauthorized(t *testing.T) {
	f := newFixture(t, 10)
	f.tokens.Put(auth.ConsoleToken{ID: "t1", OwnerID: "user-1", Value: "tok-view"})
	f.roles.SetRoles("user-1", "viewer")

	_, err := f.gw.Authorize(context.Background(), bearerRequest("tok-view"), EditAccess())
	if !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("forbidden must not also be unauthorized")
	}

	entry := f.lastEntry(t)
	if entry.Action != "rbac.check" || entry.Outcome != audit.OutcomeFailure {
		t.Fatalf("unexpected audit entry: %+v", entry)
	}
	if entry.Actor != "user-1" {
		t.Fatalf("forbidden entry should name the authenticated actor, got %q", entry.Actor)
	}
}

func TestAuthorizeEditAccessAllowsEditor(t *testing.T) {
	f := newFixture(t, 10)
	f.tokens.Put(auth.ConsoleToken{ID: "t1", OwnerID: "user-1", Value: "tok-ed"})
	f.roles.SetRoles("user-1", "EDITOR")

	if _, err := f.gw.Authorize(context.Background(), bearerRequest("tok-ed"), EditAccess()); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
}

func TestAuthorizeScopedScheme(t *testing.T) {
	f := newFixture(t, 10)

	raw, _, err := f.scoped.Issue(context.Background(), "user-9", "site-1", []string{token.ScopeReadDrafts}, 7)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	res, err := f.gw.Authorize(context.Background(), bearerRequest(raw), ForScope(token.ScopeReadDrafts))
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if res.Identity.Source != auth.SourceScopedToken || res.Identity.UserID != "user-9" {
		t.Fatalf("unexpected identity: %+v", res.Identity)
	}

	// Wrong scope on a valid token is forbidden, not unauthorized.
	_, err = f.gw.Authorize(context.Background(), bearerRequest(raw), ForScope(token.ScopeManageSites))
	if !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestScopedTokenNeverSatisfiesRoleRequirement(t *testing.T) {
	f := newFixture(t, 10)

	raw, _, err := f.scoped.Issue(context.Background(), "user-9", "", []string{token.ScopeAdminAll}, 7)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// admin:all as a scope means nothing to the role scheme.
	_, err = f.gw.Authorize(context.Background(), bearerRequest(raw), ForRole(auth.RoleAdmin))
	if !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestConsoleTokenNeverSatisfiesScopeRequirement(t *testing.T) {
	f := newFixture(t, 10)
	f.tokens.Put(auth.ConsoleToken{ID: "t1", OwnerID: "user-1", Value: "tok-admin"})
	f.roles.SetRoles("user-1", "admin")

	_, err := f.gw.Authorize(context.Background(), bearerRequest("tok-admin"), ForScope(token.ScopeReadDrafts))
	if !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthorizeRateLimited(t *testing.T) {
	f := newFixture(t, 2)
	f.tokens.Put(auth.ConsoleToken{ID: "t1", OwnerID: "user-1", Value: "tok-ed"})
	f.roles.SetRoles("user-1", "editor")

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := f.gw.Authorize(ctx, bearerRequest("tok-ed"), Authenticated()); err != nil {
			t.Fatalf("Authorize %d: %v", i, err)
		}
	}

	res, err := f.gw.Authorize(ctx, bearerRequest("tok-ed"), Authenticated())
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if res.RateLimit.Limit != 2 || res.RateLimit.Remaining != 0 {
		t.Fatalf("429 must still carry rate limit counters: %+v", res.RateLimit)
	}

	entry := f.lastEntry(t)
	if entry.Action != "rate.limit" || entry.Outcome != audit.OutcomeFailure {
		t.Fatalf("unexpected audit entry: %+v", entry)
	}
}

func TestAuthorizeMissingCredential(t *testing.T) {
	f := newFixture(t, 10)

	req := Request{Method: "GET", Path: "/v1/resource", Header: http.Header{}, RemoteIP: "10.0.0.1"}
	_, err := f.gw.Authorize(context.Background(), req, Authenticated())
	if !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	entry := f.lastEntry(t)
	if entry.Actor != "10.0.0.1" {
		t.Fatalf("anonymous failures audit by IP, got %q", entry.Actor)
	}
}

func TestAuthorizeDegradedRecordedInAudit(t *testing.T) {
	f := newFixture(t, 10)
	f.tokens.Put(auth.ConsoleToken{ID: "t1", OwnerID: "user-1", Value: "tok-ed"})
	f.roles.SetUnavailable(errors.New("role store down"))

	res, err := f.gw.Authorize(context.Background(), bearerRequest("tok-ed"), Authenticated())
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if !res.Identity.Degraded {
		t.Fatalf("expected degraded identity")
	}

	entry := f.lastEntry(t)
	if entry.Metadata["degraded"] != "true" {
		t.Fatalf("degraded resolution must be visible in audit metadata: %+v", entry.Metadata)
	}
}

func TestAuthorizeDegradedFailsAdminGate(t *testing.T) {
	f := newFixture(t, 10)
	f.tokens.Put(auth.ConsoleToken{ID: "t1", OwnerID: "user-1", Value: "tok-ed"})
	f.roles.SetUnavailable(errors.New("role store down"))

	_, err := f.gw.Authorize(context.Background(), bearerRequest("tok-ed"), ForRole(auth.RoleAdmin))
	if !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("degraded identity must not pass an ADMIN gate, got %v", err)
	}
}
