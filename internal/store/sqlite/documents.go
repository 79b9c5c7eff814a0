// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Raglane Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mattn/go-sqlite3"

	"github.com/raglane-dev/raglane/internal/store"
	raglerr "github.com/raglane-dev/raglane/pkg/errors"
)

// Compile-time interface check.
var _ store.DocumentStore = (*DocumentStore)(nil)

// DocumentStore implements store.DocumentStore backed by SQLite. The content
// hash carries a UNIQUE constraint so duplicate registration fails at the
// database level, closing the race between concurrent uploads of the same
// file.
type DocumentStore struct {
	db *sql.DB
}

// NewDocumentStore opens (or creates) a SQLite database at dbPath.
func NewDocumentStore(dbPath string) (*DocumentStore, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	ds, err := NewDocumentStoreWithDB(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return ds, nil
}

// NewDocumentStoreWithDB wraps an already opened connection, running
// migrations first. The caller keeps ownership of sharing; Close closes the
// connection.
func NewDocumentStoreWithDB(db *sql.DB) (*DocumentStore, error) {
	if err := migrateDocuments(db); err != nil {
		return nil, raglerr.Errorf(raglerr.CodeStoreDatabaseFailure, "migrating documents table: %w", err)
	}
	return &DocumentStore{db: db}, nil
}

func migrateDocuments(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS documents (
	id            TEXT PRIMARY KEY,
	filename      TEXT NOT NULL,
	hash          TEXT NOT NULL UNIQUE,
	status        TEXT NOT NULL,
	chunk_count   INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	created       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_created ON documents(created);
`
	_, err := db.Exec(ddl)
	return err
}

// Close closes the underlying database connection.
func (s *DocumentStore) Close() error {
	return s.db.Close()
}

func (s *DocumentStore) Insert(ctx context.Context, doc *store.Document) error {
	const q = `INSERT INTO documents (id, filename, hash, status, chunk_count, error_message, created)
VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, q,
		doc.ID, doc.Filename, doc.Hash, string(doc.Status),
		doc.ChunkCount, doc.ErrorMessage, formatTime(doc.CreatedAt))
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return raglerr.New(raglerr.CodeStoreDocumentDuplicateHash,
				"document with identical content already registered",
				raglerr.Field("hash", doc.Hash))
		}
		return raglerr.Errorf(raglerr.CodeStoreDatabaseFailure, "inserting document %s: %w", doc.ID, err)
	}
	return nil
}

func (s *DocumentStore) GetByID(ctx context.Context, id string) (*store.Document, error) {
	const q = `SELECT id, filename, hash, status, chunk_count, error_message, created
FROM documents WHERE id = ?`

	doc, err := s.scanOne(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, raglerr.New(raglerr.CodeStoreDocumentNotFound,
			"document not found", raglerr.FieldDocumentID(id))
	}
	if err != nil {
		return nil, raglerr.Errorf(raglerr.CodeStoreDatabaseFailure, "getting document %s: %w", id, err)
	}
	return doc, nil
}

func (s *DocumentStore) GetByHash(ctx context.Context, hash string) (*store.Document, error) {
	const q = `SELECT id, filename, hash, status, chunk_count, error_message, created
FROM documents WHERE hash = ?`

	doc, err := s.scanOne(s.db.QueryRowContext(ctx, q, hash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, raglerr.New(raglerr.CodeStoreDocumentNotFound,
			"no document with matching content hash", raglerr.Field("hash", hash))
	}
	if err != nil {
		return nil, raglerr.Errorf(raglerr.CodeStoreDatabaseFailure, "getting document by hash: %w", err)
	}
	return doc, nil
}

func (s *DocumentStore) UpdateStatus(ctx context.Context, id string, status store.Status, chunkCount int, errorMessage string) error {
	const q = `UPDATE documents SET status = ?, chunk_count = ?, error_message = ? WHERE id = ?`

	res, err := s.db.ExecContext(ctx, q, string(status), chunkCount, errorMessage, id)
	if err != nil {
		return raglerr.Errorf(raglerr.CodeStoreDatabaseFailure, "updating document %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return raglerr.Errorf(raglerr.CodeStoreDatabaseFailure, "reading update result for %s: %w", id, err)
	}
	if affected == 0 {
		return raglerr.New(raglerr.CodeStoreDocumentNotFound,
			"document not found", raglerr.FieldDocumentID(id))
	}
	return nil
}

func (s *DocumentStore) List(ctx context.Context) ([]*store.Document, error) {
	const q = `SELECT id, filename, hash, status, chunk_count, error_message, created
FROM documents ORDER BY created DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, raglerr.Errorf(raglerr.CodeStoreDatabaseFailure, "listing documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []*store.Document
	for rows.Next() {
		doc, err := s.scanOne(rows)
		if err != nil {
			return nil, raglerr.Errorf(raglerr.CodeStoreDatabaseFailure, "scanning document row: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, raglerr.Errorf(raglerr.CodeStoreDatabaseFailure, "iterating documents: %w", err)
	}

	return docs, nil
}

func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return raglerr.Errorf(raglerr.CodeStoreDatabaseFailure, "deleting document %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return raglerr.Errorf(raglerr.CodeStoreDatabaseFailure, "reading delete result for %s: %w", id, err)
	}
	if affected == 0 {
		return raglerr.New(raglerr.CodeStoreDocumentNotFound,
			"document not found", raglerr.FieldDocumentID(id))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *DocumentStore) scanOne(row rowScanner) (*store.Document, error) {
	var (
		doc     store.Document
		status  string
		created string
	)
	if err := row.Scan(&doc.ID, &doc.Filename, &doc.Hash, &status,
		&doc.ChunkCount, &doc.ErrorMessage, &created); err != nil {
		return nil, err
	}

	doc.Status = store.Status(status)

	createdAt, err := parseTime(created)
	if err != nil {
		return nil, err
	}
	doc.CreatedAt = createdAt

	return &doc, nil
}
