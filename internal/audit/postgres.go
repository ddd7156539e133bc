package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the part of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type PGStore struct {
	db DB
}

func NewPGStore(db DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS audit_events (
			id uuid PRIMARY KEY,
			at timestamptz NOT NULL,
			actor text NOT NULL,
			action text NOT NULL,
			target text NOT NULL DEFAULT '',
			status text NOT NULL,
			detail text NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS audit_events_at_idx ON audit_events (at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("audit schema: %w", err)
		}
	}
	return nil
}

func (s *PGStore) Record(ctx context.Context, ev Event) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO audit_events (id,at,actor,action,target,status,detail) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		ev.ID.String(), ev.At, ev.Actor, ev.Action, ev.Target, ev.Status, ev.Detail)
	return err
}

func (s *PGStore) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx,
		`SELECT id::text,at,actor,action,target,status,detail FROM audit_events ORDER BY at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Event
	for rows.Next() {
		var ev Event
		var id string
		if err := rows.Scan(&id, &ev.At, &ev.Actor, &ev.Action, &ev.Target, &ev.Status, &ev.Detail); err != nil {
			return nil, err
		}
		if ev.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		res = append(res, ev)
	}
	return res, rows.Err()
}
