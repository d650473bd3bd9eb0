package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"netchatbridge/internal/security"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the flat string keyspace the bridge persists into. Single-key
// operations are atomic; Iterate walks the full keyspace in ascending
// key order.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Iterate(ctx context.Context, fn func(key, value string) error) error
	Close() error
}

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// SQLiteStore implements Store on a single sqlite table. Values are
// transparently encrypted at rest when an encryption secret is
// configured; keys stay plaintext so prefix scans keep working.
type SQLiteStore struct {
	db        *sql.DB
	encryptor *encryptor
}

// New opens (creating if necessary) the store at the given path.
func New(dbPath string) (*SQLiteStore, error) {
	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	enc, err := newEncryptor()
	if err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &SQLiteStore{db: db, encryptor: enc}, nil
}

func closeQuietly(db *sql.DB) {
	_ = db.Close()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read key %q: %w", key, err)
	}

	plain, err := s.encryptor.DecryptIfEnabled(value)
	if err != nil {
		return "", false, fmt.Errorf("failed to decrypt value for key %q: %w", key, err)
	}
	return plain, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	stored, err := s.encryptor.EncryptIfEnabled(value)
	if err != nil {
		return fmt.Errorf("failed to encrypt value for key %q: %w", key, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, stored,
	)
	if err != nil {
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to remove key %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Iterate(ctx context.Context, fn func(key, value string) error) error {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM kv ORDER BY key`)
	if err != nil {
		return fmt.Errorf("failed to scan keyspace: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return fmt.Errorf("failed to scan row: %w", err)
		}
		plain, err := s.encryptor.DecryptIfEnabled(value)
		if err != nil {
			return fmt.Errorf("failed to decrypt value for key %q: %w", key, err)
		}
		if err := fn(key, plain); err != nil {
			return err
		}
	}
	return rows.Err()
}
