// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Raglane Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/raglane-dev/raglane/internal/store"
	raglerr "github.com/raglane-dev/raglane/pkg/errors"
)

// Compile-time interface check.
var _ store.SettingsStore = (*SettingsStore)(nil)

// SettingsStore implements store.SettingsStore as a single key/value table.
type SettingsStore struct {
	db *sql.DB
	// ownsDB marks whether Close should close the connection. A store built
	// over a shared connection leaves closing to the sharer.
	ownsDB bool
}

// NewSettingsStore opens (or creates) a SQLite database at dbPath.
func NewSettingsStore(dbPath string) (*SettingsStore, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	ss, err := NewSettingsStoreWithDB(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	ss.ownsDB = true
	return ss, nil
}

// NewSettingsStoreWithDB wraps an already opened shared connection. Close is
// a no-op for stores built this way.
func NewSettingsStoreWithDB(db *sql.DB) (*SettingsStore, error) {
	if err := migrateSettings(db); err != nil {
		return nil, raglerr.Errorf(raglerr.CodeStoreDatabaseFailure, "migrating settings table: %w", err)
	}
	return &SettingsStore{db: db}, nil
}

func migrateSettings(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`
	_, err := db.Exec(ddl)
	return err
}

func (s *SettingsStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", raglerr.New(raglerr.CodeStoreSettingNotFound,
			"setting not found", raglerr.Field("key", key))
	}
	if err != nil {
		return "", raglerr.Errorf(raglerr.CodeStoreDatabaseFailure, "getting setting %s: %w", key, err)
	}
	return value, nil
}

func (s *SettingsStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return raglerr.New(raglerr.CodeStoreInvalidInput, "setting key must not be empty")
	}

	const q = `INSERT INTO settings (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`

	if _, err := s.db.ExecContext(ctx, q, key, value); err != nil {
		return raglerr.Errorf(raglerr.CodeStoreDatabaseFailure, "setting %s: %w", key, err)
	}
	return nil
}

func (s *SettingsStore) All(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, raglerr.Errorf(raglerr.CodeStoreDatabaseFailure, "listing settings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := map[string]string{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, raglerr.Errorf(raglerr.CodeStoreDatabaseFailure, "scanning setting row: %w", err)
		}
		out[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, raglerr.Errorf(raglerr.CodeStoreDatabaseFailure, "iterating settings: %w", err)
	}

	return out, nil
}

func (s *SettingsStore) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}
