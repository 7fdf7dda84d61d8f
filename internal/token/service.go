package token

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Khaledaun/orion-console/internal/ids"
)

const tokenByteLength = 32

// Service issues, validates and revokes scoped tokens.
type Service struct {
	store Store
	now   func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a scoped token service.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("token: store is required")
	}
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue creates a token and returns the raw value exactly once; it is not
// retrievable afterwards, only re-issuable. expiryDays of zero produces a
// token that is already expired at issuance; a negative value issues a token
// without expiry.
func (s *Service) Issue(ctx context.Context, ownerID, siteID string, scopes []string, expiryDays int) (string, ScopedToken, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return "", ScopedToken{}, fmt.Errorf("%w: owner_id is required", ErrInvalidInput)
	}
	cleaned := dedupeScopes(scopes)
	if len(cleaned) == 0 {
		return "", ScopedToken{}, fmt.Errorf("%w: at least one scope is required", ErrInvalidInput)
	}

	raw, err := randomValue()
	if err != nil {
		return "", ScopedToken{}, err
	}

	now := s.now().UTC()
	tok := ScopedToken{
		ID:        ids.New(),
		Value:     raw,
		OwnerID:   ownerID,
		SiteID:    strings.TrimSpace(siteID),
		Scopes:    cleaned,
		CreatedAt: now,
	}
	if expiryDays >= 0 {
		expires := now.AddDate(0, 0, expiryDays)
		tok.ExpiresAt = &expires
	}
	if err := s.store.Insert(ctx, &tok); err != nil {
		return "", ScopedToken{}, fmt.Errorf("token: insert: %w", err)
	}
	return raw, tok, nil
}

// Validate looks the raw value up and returns the payload, or nil for
// unknown and expired tokens. An expired token is deleted on first sight so
// dead rows do not accumulate; the deletion is idempotent under concurrent
// validations. Only storage failures are errors.
func (s *Service) Validate(ctx context.Context, raw string) (*ScopedToken, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	tok, err := s.store.FindByValue(ctx, raw)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("token: lookup: %w", err)
	}
	if tok.Expired(s.now()) {
		if err := s.store.DeleteByValue(ctx, raw); err != nil && !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("token: purge expired: %w", err)
		}
		return nil, nil
	}
	return tok, nil
}

// HasScope validates the raw token and checks scope membership.
func (s *Service) HasScope(ctx context.Context, raw, wanted string) (bool, error) {
	tok, err := s.Validate(ctx, raw)
	if err != nil {
		return false, err
	}
	if tok == nil {
		return false, nil
	}
	return tok.HasScope(wanted), nil
}

// Revoke deletes the token. Revoking an unknown value is not an error.
func (s *Service) Revoke(ctx context.Context, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if err := s.store.DeleteByValue(ctx, raw); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("token: revoke: %w", err)
	}
	return nil
}

// List returns tokens scoped to the given site, or all tokens when siteID is
// empty. Raw values are redacted: they are returned exactly once at issuance
// and never retrievable again.
func (s *Service) List(ctx context.Context, siteID string) ([]ScopedToken, error) {
	toks, err := s.store.ListBySite(ctx, strings.TrimSpace(siteID))
	if err != nil {
		return nil, err
	}
	for i := range toks {
		toks[i].Value = ""
	}
	return toks, nil
}

// CleanupExpired bulk-deletes every record past its expiry. Intended for a
// periodic maintenance sweep driven by an external scheduler.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	return s.store.DeleteExpired(ctx, s.now())
}

func randomValue() (string, error) {
	buf := make([]byte, tokenByteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("token: generate value: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func dedupeScopes(scopes []string) []string {
	if len(scopes) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(scopes))
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
