package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// DefaultSQLitePath is used by Open when no path is given.
const DefaultSQLitePath = "progress.db"

const schema = `CREATE TABLE IF NOT EXISTS progress (
	name    TEXT PRIMARY KEY,
	params  BLOB NOT NULL,
	epsilon TEXT NOT NULL
)`

// SQLiteStore keeps every agent in one row of a progress table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema in %s: %w", path, err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context, key string) (Record, error) {
	var (
		rec  Record
		text string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT params, epsilon FROM progress WHERE name = ?`, key,
	).Scan(&rec.Params, &text)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("store: load %s: %w", key, err)
	}
	if rec.Epsilon, err = parseEpsilon(text); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *SQLiteStore) Save(ctx context.Context, key string, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO progress (name, params, epsilon) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET params = excluded.params, epsilon = excluded.epsilon`,
		key, rec.Params, formatEpsilon(rec.Epsilon),
	)
	if err != nil {
		return fmt.Errorf("store: save %s: %w", key, err)
	}
	return nil
}
