package auth

import (
	"errors"
	"fmt"
)

// Permits reports whether the identity's role set satisfies the required
// role. Comparison is case-insensitive via uppercase normalization; an empty
// role set satisfies nothing. A degraded identity never satisfies ADMIN,
// whatever its substituted roles say.
func Permits(id Identity, required Role) bool {
	req := NormalizeRole(string(required))
	if req == "" {
		return false
	}
	if id.Degraded && req == RoleAdmin {
		return false
	}
	return id.Roles.Has(req)
}

// RequireRole returns nil when the identity holds the required role,
// ErrUnauthorized for an unresolved identity, ErrForbidden otherwise.
func RequireRole(id Identity, required Role) error {
	if id.UserID == "" {
		return fmt.Errorf("%w: no resolved identity", ErrUnauthorized)
	}
	if !Permits(id, required) {
		return fmt.Errorf("%w: requires role %s", ErrForbidden, NormalizeRole(string(required)))
	}
	return nil
}

// RequireEditAccess succeeds for ADMIN or EDITOR. The ADMIN check is tried
// first; only a permission miss falls through to EDITOR. Authentication
// failures propagate immediately so an invalid credential is never retried
// under a second role.
func RequireEditAccess(id Identity) error {
	err := RequireRole(id, RoleAdmin)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrForbidden) {
		return err
	}
	return RequireRole(id, RoleEditor)
}
