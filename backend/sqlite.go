package backend

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const (
	createCountersTable = `CREATE TABLE IF NOT EXISTS counters (
	name  TEXT PRIMARY KEY,
	value INTEGER NOT NULL
)`
	incrementCounter = `INSERT INTO counters (name, value) VALUES (?, 1)
ON CONFLICT (name) DO UPDATE SET value = value + 1
RETURNING value`
)

// CounterName is the row (or key) holding the counter.
const CounterName = "counter"

// SQLiteStore keeps the counter in a SQLite table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database file at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("backend: open sqlite: %w", err)
	}
	s, err := NewSQLiteStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStore uses db and creates the counters table if missing.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.ExecContext(ctx, createCountersTable); err != nil {
		return nil, fmt.Errorf("backend: create counters table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Next(ctx context.Context) (uint32, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, incrementCounter, CounterName).Scan(&n); err != nil {
		return 0, fmt.Errorf("backend: increment counter: %w", err)
	}
	if n < 0 || n > int64(^uint32(0)) {
		return 0, fmt.Errorf("backend: counter out of range: %d", n)
	}
	return uint32(n), nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
