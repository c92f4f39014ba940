// Package postgres stores the anchor set in PostgreSQL through the pgx
// database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/jwgray1010/PawCoin/internal/model"
	"github.com/jwgray1010/PawCoin/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS anchors (
    id      TEXT PRIMARY KEY,
    ordinal INTEGER NOT NULL,
    body    JSONB NOT NULL
)`

// Open opens a PostgreSQL connection using the pgx stdlib driver and verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Store is a Postgres-backed store.AnchorSet.
type Store struct{ db *sql.DB }

var _ store.AnchorSet = (*Store)(nil)

// NewWithDB wraps db without touching the schema.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

// Migrate creates the anchors table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("postgres schema: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context) ([]model.AnchorRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT body FROM anchors ORDER BY ordinal`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.AnchorRecord{}
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var rec model.AnchorRecord
		if err := json.Unmarshal(body, &rec); err != nil {
			return nil, fmt.Errorf("decode anchor: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) Replace(ctx context.Context, anchors []model.AnchorRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM anchors`); err != nil {
		return err
	}
	for i, a := range anchors {
		body, err := json.Marshal(a)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO anchors (id, ordinal, body) VALUES ($1, $2, $3)`,
			a.ID, i, string(body)); err != nil {
			return fmt.Errorf("insert anchor %q: %w", a.ID, err)
		}
	}
	return tx.Commit()
}

// HealthPing implements health.HealthPinger.
func (s *Store) HealthPing(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }
