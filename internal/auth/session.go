package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const sessionIssuer = "orion-console"

// issuedAtSkew tolerates small clock drift between the session issuer and
// this process when validating iat.
const issuedAtSkew = 5 * time.Second

// ErrInvalidSession indicates the session token failed verification.
var ErrInvalidSession = errors.New("auth: invalid session token")

// SessionVerifier validates HS256-signed session cookies. The jti claim
// references the server-side session row so revocation stays possible.
type SessionVerifier struct {
	secret []byte
	now    func() time.Time
}

// VerifierOption configures a SessionVerifier.
type VerifierOption func(*SessionVerifier)

// WithVerifierClock overrides the time source (useful for tests).
func WithVerifierClock(fn func() time.Time) VerifierOption {
	return func(v *SessionVerifier) {
		if fn != nil {
			v.now = fn
		}
	}
}

// NewSessionVerifier builds a verifier keyed with the shared session secret.
func NewSessionVerifier(secret string, opts ...VerifierOption) (*SessionVerifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: session secret is required")
	}
	v := &SessionVerifier{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Issue signs a session token for the given user. The returned session id is
// the jti and must be persisted as the session row key by the caller.
func (v *SessionVerifier) Issue(userID string, ttl time.Duration) (raw, sessionID string, expiresAt time.Time, err error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", "", time.Time{}, errors.New("auth: userID is required")
	}
	if ttl <= 0 {
		return "", "", time.Time{}, errors.New("auth: ttl must be greater than zero")
	}

	now := v.now().UTC()
	sessionID = uuid.NewString()
	expiresAt = now.Add(ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    sessionIssuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        sessionID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, sessionID, expiresAt, nil
}

// Verify checks signature and claims, returning the session id (jti) and the
// subject user id.
func (v *SessionVerifier) Verify(raw string) (sessionID, userID string, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", ErrInvalidSession
	}

	parsed, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidSession
		}
		return v.secret, nil
	}, jwt.WithTimeFunc(v.now), jwt.WithIssuer(sessionIssuer))
	if err != nil {
		return "", "", ErrInvalidSession
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return "", "", ErrInvalidSession
	}
	if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.ID) == "" {
		return "", "", ErrInvalidSession
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return "", "", ErrInvalidSession
	}
	if claims.IssuedAt.Time.After(v.now().Add(issuedAtSkew)) {
		return "", "", ErrInvalidSession
	}
	return claims.ID, claims.Subject, nil
}
