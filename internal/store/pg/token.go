package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/Khaledaun/orion-console/internal/token"
)

// ScopedTokenStore persists capability tokens with a unique index on
// token_value for exact-match lookup.
type ScopedTokenStore struct{ db *sql.DB }

var _ token.Store = (*ScopedTokenStore)(nil)

func NewScopedTokenStore(db *sql.DB) *ScopedTokenStore {
	return &ScopedTokenStore{db: db}
}

func (s *ScopedTokenStore) Insert(ctx context.Context, tok *token.ScopedToken) error {
	scopes, err := json.Marshal(tok.Scopes)
	if err != nil {
		return err
	}
	var siteID any
	if tok.SiteID != "" {
		siteID = tok.SiteID
	}
	_, err = s.db.ExecContext(ctx,
		`insert into scoped_tokens(id, token_value, owner_id, site_id, scopes, created_at, expires_at)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		tok.ID, tok.Value, tok.OwnerID, siteID, scopes, tok.CreatedAt, tok.ExpiresAt,
	)
	return err
}

func (s *ScopedTokenStore) FindByValue(ctx context.Context, value string) (*token.ScopedToken, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, token_value, owner_id, site_id, scopes, created_at, expires_at
		   from scoped_tokens where token_value=$1`, value)
	return scanScopedToken(row.Scan)
}

// DeleteByValue is idempotent: deleting an already-purged value succeeds.
func (s *ScopedTokenStore) DeleteByValue(ctx context.Context, value string) error {
	_, err := s.db.ExecContext(ctx,
		`delete from scoped_tokens where token_value=$1`, value)
	return err
}

func (s *ScopedTokenStore) ListBySite(ctx context.Context, siteID string) ([]token.ScopedToken, error) {
	query := `select id, token_value, owner_id, site_id, scopes, created_at, expires_at
		    from scoped_tokens order by created_at asc`
	args := []any{}
	if siteID != "" {
		query = `select id, token_value, owner_id, site_id, scopes, created_at, expires_at
			   from scoped_tokens where site_id=$1 order by created_at asc`
		args = append(args, siteID)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []token.ScopedToken
	for rows.Next() {
		tok, err := scanScopedToken(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *tok)
	}
	return out, rows.Err()
}

func (s *ScopedTokenStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`delete from scoped_tokens where expires_at is not null and expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanScopedToken(scan func(...any) error) (*token.ScopedToken, error) {
	var (
		tok     token.ScopedToken
		siteID  sql.NullString
		scopes  []byte
		expires sql.NullTime
	)
	if err := scan(&tok.ID, &tok.Value, &tok.OwnerID, &siteID, &scopes, &tok.CreatedAt, &expires); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, token.ErrNotFound
		}
		return nil, err
	}
	if siteID.Valid {
		tok.SiteID = siteID.String
	}
	if expires.Valid {
		t := expires.Time
		tok.ExpiresAt = &t
	}
	if err := json.Unmarshal(scopes, &tok.Scopes); err != nil {
		return nil, err
	}
	return &tok, nil
}
