package auth

import (
	"fmt"
	"net/http"
	"strings"
)

// SessionCookieName is the cookie carrying the signed session token.
const SessionCookieName = "orion_session"

const (
	authorizationHeader = "Authorization"
	bearerScheme        = "Bearer "
)

// CredentialKind tags the credential variants a request can carry.
type CredentialKind int

const (
	CredentialNone CredentialKind = iota
	CredentialBearer
	CredentialSession
)

// Credential is the single candidate credential extracted from a request.
type Credential struct {
	Kind  CredentialKind
	Value string
}

// ExtractCredential parses headers and cookies into at most one credential.
// An Authorization header always wins over the session cookie; a malformed
// header is an authentication failure, not a fallthrough, so a garbage header
// can never mask a session check.
func ExtractCredential(header http.Header, cookies []*http.Cookie) (Credential, error) {
	raw := strings.TrimSpace(header.Get(authorizationHeader))
	if raw != "" {
		if !strings.HasPrefix(strings.ToLower(raw), strings.ToLower(bearerScheme)) {
			return Credential{}, fmt.Errorf("%w: unsupported authorization scheme", ErrUnauthorized)
		}
		token := strings.TrimSpace(raw[len(bearerScheme):])
		if token == "" {
			return Credential{}, fmt.Errorf("%w: empty bearer token", ErrUnauthorized)
		}
		return Credential{Kind: CredentialBearer, Value: token}, nil
	}

	for _, c := range cookies {
		if c == nil || c.Name != SessionCookieName {
			continue
		}
		if v := strings.TrimSpace(c.Value); v != "" {
			return Credential{Kind: CredentialSession, Value: v}, nil
		}
	}
	return Credential{Kind: CredentialNone}, nil
}
