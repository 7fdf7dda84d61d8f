package pg

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/Khaledaun/orion-console/internal/audit"
)

// AuditStore appends immutable decision records.
type AuditStore struct{ db *sql.DB }

var _ audit.Store = (*AuditStore)(nil)

func NewAuditStore(db *sql.DB) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) Append(ctx context.Context, e *audit.Entry) error {
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`insert into audit_log(id, ts, actor, action, route, outcome, metadata)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		e.ID, e.Timestamp, e.Actor, e.Action, e.Route, string(e.Outcome), meta,
	)
	return err
}

func (s *AuditStore) Recent(ctx context.Context, limit int) ([]audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, ts, actor, action, route, outcome, metadata
		   from audit_log order by ts desc, id desc limit $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var (
			e       audit.Entry
			outcome string
			meta    []byte
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Actor, &e.Action, &e.Route, &outcome, &meta); err != nil {
			return nil, err
		}
		e.Outcome = audit.Outcome(outcome)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
