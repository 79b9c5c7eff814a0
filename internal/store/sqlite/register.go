// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Raglane Contributors

// Package sqlite implements the document registry and settings store on
// SQLite, sharing a single database file per data directory.
package sqlite

import (
	"database/sql"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/raglane-dev/raglane/internal/store"
	raglerr "github.com/raglane-dev/raglane/pkg/errors"
)

func init() {
	store.RegisterBackend("sqlite", newStores)
}

func newStores(dataPath string) (store.DocumentStore, store.SettingsStore, error) {
	// Documents and settings share one database to keep the data directory
	// to a single registry file.
	db, err := openDB(filepath.Join(dataPath, "raglane.db"))
	if err != nil {
		return nil, nil, err
	}

	docs, err := NewDocumentStoreWithDB(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	settings, err := NewSettingsStoreWithDB(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	// The shared connection is closed through the document store; the
	// settings store's Close is a no-op.
	return docs, settings, nil
}

func openDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, raglerr.Errorf(raglerr.CodeStoreDatabaseFailure, "opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, raglerr.Errorf(raglerr.CodeStoreDatabaseFailure, "pinging sqlite db: %w", err)
	}

	return db, nil
}

// formatTime renders a timestamp in the canonical column format.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime parses a timestamp written by formatTime.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
