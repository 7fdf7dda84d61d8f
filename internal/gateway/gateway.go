// Package gateway composes credential extraction, identity resolution, RBAC,
// rate limiting and audit logging into the single entry point protected
// routes call.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Khaledaun/orion-console/internal/audit"
	"github.com/Khaledaun/orion-console/internal/auth"
	"github.com/Khaledaun/orion-console/internal/obs"
	"github.com/Khaledaun/orion-console/internal/ratelimit"
	"github.com/Khaledaun/orion-console/internal/token"
)

// ErrRateLimited indicates admission was denied by the rate limiter.
var ErrRateLimited = errors.New("gateway: rate limited")

// Request is the transport-agnostic descriptor of an inbound request.
type Request struct {
	Method   string
	Path     string
	Header   http.Header
	Cookies  []*http.Cookie
	RemoteIP string
}

// RequirementKind selects the authorization scheme for a route. Role-based
// and scope-based requirements are parallel schemes: a scoped token never
// satisfies a role requirement and a role credential never satisfies a scope
// requirement.
type RequirementKind int

const (
	KindAuthenticated RequirementKind = iota
	KindRole
	KindEditAccess
	KindScope
)

// Requirement is a route's declared access requirement.
type Requirement struct {
	Kind  RequirementKind
	Role  auth.Role
	Scope string
}

// Authenticated requires any resolved identity, regardless of roles.
func Authenticated() Requirement { return Requirement{Kind: KindAuthenticated} }

// ForRole requires the given role.
func ForRole(r auth.Role) Requirement { return Requirement{Kind: KindRole, Role: r} }

// EditAccess requires ADMIN or EDITOR.
func EditAccess() Requirement { return Requirement{Kind: KindEditAccess} }

// ForScope requires a scoped token granting the given scope.
func ForScope(scope string) Requirement { return Requirement{Kind: KindScope, Scope: scope} }

// AuthResult is a successful authorization verdict. RateLimit carries the
// admission counters callers surface as X-RateLimit headers; it is also
// populated on ErrRateLimited.
type AuthResult struct {
	Identity  auth.Identity
	RateLimit ratelimit.Result
}

// Gateway is the composed authorization entry point.
type Gateway struct {
	resolver *auth.Resolver
	tokens   *token.Service
	limiter  *ratelimit.Limiter
	audit    *audit.Logger
}

// New wires the gateway. All collaborators are required.
func New(resolver *auth.Resolver, tokens *token.Service, limiter *ratelimit.Limiter, auditLogger *audit.Logger) (*Gateway, error) {
	if resolver == nil || tokens == nil || limiter == nil || auditLogger == nil {
		return nil, errors.New("gateway: resolver, token service, limiter and audit logger are required")
	}
	return &Gateway{resolver: resolver, tokens: tokens, limiter: limiter, audit: auditLogger}, nil
}

// Authorize runs the full decision pipeline: extract credential, establish
// identity under the requirement's scheme, check the requirement, apply rate
// limiting, and audit the outcome. Every decision is audited, success or
// failure.
func (g *Gateway) Authorize(ctx context.Context, req Request, requirement Requirement) (AuthResult, error) {
	start := time.Now()

	cred, err := auth.ExtractCredential(req.Header, req.Cookies)
	if err != nil {
		return AuthResult{}, g.deny(ctx, req, "none", "auth.extract", req.RemoteIP, nil, start, err)
	}
	scheme := schemeFor(requirement, cred)

	var identity auth.Identity
	if requirement.Kind == KindScope {
		identity, err = g.resolveScoped(ctx, req, cred, requirement.Scope, start)
	} else {
		identity, err = g.resolveRoles(ctx, req, cred, requirement, scheme, start)
	}
	if err != nil {
		return AuthResult{}, err
	}

	key := identity.UserID
	if key == "" {
		key = req.RemoteIP
	}
	res, err := g.limiter.Check(ctx, key)
	if err != nil {
		wrapped := fmt.Errorf("%w: rate limit store: %v", auth.ErrStorageUnavailable, err)
		return AuthResult{}, g.deny(ctx, req, scheme, "rate.limit", identity.UserID, &identity, start, wrapped)
	}
	if !res.Allowed {
		obs.RateLimited()
		err := g.deny(ctx, req, scheme, "rate.limit", identity.UserID, &identity, start, ErrRateLimited)
		return AuthResult{Identity: identity, RateLimit: res}, err
	}

	g.logDecision(ctx, req, "auth."+scheme, identity.UserID, &identity, audit.OutcomeSuccess, "")
	obs.ObserveDecision(scheme, "success", time.Since(start))
	return AuthResult{Identity: identity, RateLimit: res}, nil
}

// Audit returns the composed audit logger so surrounding code can record
// privileged actions and read recent decisions.
func (g *Gateway) Audit() *audit.Logger {
	return g.audit
}

func (g *Gateway) resolveScoped(ctx context.Context, req Request, cred auth.Credential, scope string, start time.Time) (auth.Identity, error) {
	if cred.Kind != auth.CredentialBearer {
		err := fmt.Errorf("%w: scope requirement needs a bearer token", auth.ErrUnauthorized)
		return auth.Identity{}, g.deny(ctx, req, "scoped", "auth.scoped", req.RemoteIP, nil, start, err)
	}
	payload, err := g.tokens.Validate(ctx, cred.Value)
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", auth.ErrStorageUnavailable, err)
		return auth.Identity{}, g.deny(ctx, req, "scoped", "auth.scoped", g.audit.ActorHash(cred.Value), nil, start, wrapped)
	}
	if payload == nil {
		err := fmt.Errorf("%w: invalid scoped token", auth.ErrUnauthorized)
		return auth.Identity{}, g.deny(ctx, req, "scoped", "auth.scoped", g.audit.ActorHash(cred.Value), nil, start, err)
	}
	identity := auth.Identity{
		UserID: payload.OwnerID,
		Roles:  auth.NewRoleSet(),
		Source: auth.SourceScopedToken,
	}
	if !payload.HasScope(scope) {
		err := fmt.Errorf("%w: token lacks scope %s", auth.ErrForbidden, scope)
		return auth.Identity{}, g.deny(ctx, req, "scoped", "scope.check", identity.UserID, &identity, start, err)
	}
	return identity, nil
}

func (g *Gateway) resolveRoles(ctx context.Context, req Request, cred auth.Credential, requirement Requirement, scheme string, start time.Time) (auth.Identity, error) {
	identity, err := g.resolver.Resolve(ctx, cred)
	if err != nil {
		return auth.Identity{}, g.deny(ctx, req, scheme, "auth."+scheme, g.actorFor(cred, req), nil, start, err)
	}

	switch requirement.Kind {
	case KindRole:
		err = auth.RequireRole(identity, requirement.Role)
	case KindEditAccess:
		err = auth.RequireEditAccess(identity)
	}
	if err != nil {
		return auth.Identity{}, g.deny(ctx, req, scheme, "rbac.check", identity.UserID, &identity, start, err)
	}
	return identity, nil
}

// deny audits and counts a failed decision and returns the error unchanged.
func (g *Gateway) deny(ctx context.Context, req Request, scheme, action, actor string, identity *auth.Identity, start time.Time, err error) error {
	g.logDecision(ctx, req, action, actor, identity, audit.OutcomeFailure, err.Error())
	obs.ObserveDecision(scheme, outcomeLabel(err), time.Since(start))
	return err
}

func (g *Gateway) logDecision(ctx context.Context, req Request, action, actor string, identity *auth.Identity, outcome audit.Outcome, reason string) {
	if actor == "" {
		actor = req.RemoteIP
	}
	meta := map[string]string{"method": req.Method}
	if reason != "" {
		meta["reason"] = reason
	}
	if identity != nil {
		meta["source"] = string(identity.Source)
		if identity.Degraded {
			meta["degraded"] = "true"
		}
	}
	g.audit.Log(ctx, audit.Entry{
		Actor:    actor,
		Action:   action,
		Route:    req.Path,
		Outcome:  outcome,
		Metadata: meta,
	})
}

// actorFor picks an audit actor before an identity exists: credential
// material is hashed, never recorded raw.
func (g *Gateway) actorFor(cred auth.Credential, req Request) string {
	if cred.Kind == auth.CredentialNone || cred.Value == "" {
		return req.RemoteIP
	}
	return g.audit.ActorHash(cred.Value)
}

func schemeFor(requirement Requirement, cred auth.Credential) string {
	if requirement.Kind == KindScope {
		return "scoped"
	}
	switch cred.Kind {
	case auth.CredentialBearer:
		return "bearer"
	case auth.CredentialSession:
		return "session"
	default:
		return "none"
	}
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, auth.ErrForbidden):
		return "forbidden"
	case errors.Is(err, auth.ErrStorageUnavailable):
		return "storage_error"
	default:
		return "unauthorized"
	}
}
