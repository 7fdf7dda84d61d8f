package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Khaledaun/orion-console/internal/auth"
)

// ConsoleTokenStore looks console API tokens up by value.
type ConsoleTokenStore struct{ db *sql.DB }

var _ auth.ConsoleTokenStore = (*ConsoleTokenStore)(nil)

func NewConsoleTokenStore(db *sql.DB) *ConsoleTokenStore {
	return &ConsoleTokenStore{db: db}
}

func (s *ConsoleTokenStore) FindByValue(ctx context.Context, value string) (*auth.ConsoleToken, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, owner_id, token_value, disabled, created_at, expires_at
		   from console_tokens where token_value=$1`, value)

	var (
		tok     auth.ConsoleToken
		expires sql.NullTime
	)
	if err := row.Scan(&tok.ID, &tok.OwnerID, &tok.Value, &tok.Disabled, &tok.CreatedAt, &expires); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	if expires.Valid {
		t := expires.Time
		tok.ExpiresAt = &t
	}
	return &tok, nil
}

// SessionStore looks session rows up by id (the cookie's jti).
type SessionStore struct{ db *sql.DB }

var _ auth.SessionStore = (*SessionStore)(nil)

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) Find(ctx context.Context, id string) (*auth.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, user_id, created_at, expires_at, revoked_at
		   from sessions where id=$1`, id)

	var (
		sess    auth.Session
		revoked sql.NullTime
	)
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.CreatedAt, &sess.ExpiresAt, &revoked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	if revoked.Valid {
		t := revoked.Time
		sess.RevokedAt = &t
	}
	return &sess, nil
}

// RoleStore resolves role assignments.
type RoleStore struct{ db *sql.DB }

var _ auth.RoleStore = (*RoleStore)(nil)

func NewRoleStore(db *sql.DB) *RoleStore {
	return &RoleStore{db: db}
}

func (s *RoleStore) RolesForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`select role from user_roles where user_id=$1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}
