// Package sqlite stores the anchor set in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/jwgray1010/PawCoin/internal/model"
	"github.com/jwgray1010/PawCoin/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS anchors (
    id      TEXT PRIMARY KEY,
    ordinal INTEGER NOT NULL,
    body    TEXT NOT NULL
)`

// Open opens (or creates) a SQLite database at path with WAL journaling.
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// one writer; modernc serializes anyway and this avoids SQLITE_BUSY on Replace
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Store is a SQLite-backed store.AnchorSet.
type Store struct{ db *sql.DB }

var _ store.AnchorSet = (*Store)(nil)

// New creates the schema if needed and returns the store.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Load(ctx context.Context) ([]model.AnchorRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT body FROM anchors ORDER BY ordinal`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.AnchorRecord{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var rec model.AnchorRecord
		if err := json.Unmarshal([]byte(body), &rec); err != nil {
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
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO anchors (id, ordinal, body) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, a := range anchors {
		body, err := json.Marshal(a)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, a.ID, i, string(body)); err != nil {
			return fmt.Errorf("insert anchor %q: %w", a.ID, err)
		}
	}
	return tx.Commit()
}

func (s *Store) HealthPing(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }
