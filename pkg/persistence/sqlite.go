package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const sqliteStateSchemaV1 = `
CREATE TABLE IF NOT EXISTS state_blobs (
    key TEXT PRIMARY KEY,
    payload_json TEXT NOT NULL,
    updated_at_ms INTEGER NOT NULL DEFAULT 0
);
`

// SQLiteBackend keeps one JSON payload per key row.
type SQLiteBackend struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

var _ Backend = (*SQLiteBackend)(nil)

func NewSQLiteBackend(dsn string) (*SQLiteBackend, error) {
	if dsn == "" {
		return nil, errors.New("sqlite backend: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	s := &SQLiteBackend{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteBackend) migrate() error {
	if _, err := s.db.Exec(sqliteStateSchemaV1); err != nil {
		return errors.Wrap(err, "sqlite backend: migrate")
	}
	return nil
}

func (s *SQLiteBackend) Load(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errors.New("sqlite backend closed")
	}
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload_json FROM state_blobs WHERE key = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(payload), nil
}

func (s *SQLiteBackend) Save(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("sqlite backend closed")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO state_blobs (key, payload_json, updated_at_ms)
VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET payload_json = excluded.payload_json, updated_at_ms = excluded.updated_at_ms`,
		key,
		string(data),
		time.Now().UnixMilli(),
	)
	return err
}

func (s *SQLiteBackend) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func SQLiteDSNForFile(path string) (string, error) {
	if path == "" {
		return "", errors.New("sqlite backend: empty path")
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path), nil
}
