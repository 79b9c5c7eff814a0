// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Raglane Contributors

// Package sqlite implements the vector index on SQLite with the sqlite-vec
// extension. It keeps the same append-only positional-id contract as the
// flat backend: vectors are stored under monotonically increasing rowids,
// document deletion removes metadata only, and orphaned rows are skipped by
// search until an explicit compaction.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/raglane-dev/raglane/internal/index"
	raglerr "github.com/raglane-dev/raglane/pkg/errors"
)

func init() {
	sqlite_vec.Auto()

	index.Register("sqlite", func(path string, dims int) (index.Index, error) {
		return Open(path, dims)
	})
}

// Compile-time interface checks.
var (
	_ index.Index     = (*Index)(nil)
	_ index.Compactor = (*Index)(nil)
)

// Index is a vector index backed by a sqlite-vec virtual table and a
// companion metadata table in the same database file.
type Index struct {
	mu  sync.Mutex
	db  *sql.DB
	dim int
}

// Open opens (or creates) the database at dbPath. For an existing database
// the persisted dimension is ground truth and overrides dims.
func Open(dbPath string, dims int) (*Index, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, raglerr.Wrap(err, raglerr.CodeIndexLoadFailure, "opening sqlite db")
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, raglerr.Wrap(err, raglerr.CodeIndexLoadFailure, "pinging sqlite db")
	}

	dim, err := migrate(db, dims)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Index{db: db, dim: dim}, nil
}

// migrate creates the schema on first open and returns the effective
// dimension, preferring one already recorded in the database.
func migrate(db *sql.DB, dims int) (int, error) {
	const infoDDL = `
CREATE TABLE IF NOT EXISTS index_info (
	key   TEXT PRIMARY KEY,
	value INTEGER NOT NULL
)`
	if _, err := db.Exec(infoDDL); err != nil {
		return 0, raglerr.Wrap(err, raglerr.CodeIndexLoadFailure, "creating index_info table")
	}

	var stored int
	err := db.QueryRow(`SELECT value FROM index_info WHERE key = 'dimension'`).Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
		if dims <= 0 {
			return 0, raglerr.Errorf(raglerr.CodeIndexInvalidInput,
				"vector dimension must be positive, got %d", dims)
		}
		stored = dims
		if _, err := db.Exec(`INSERT INTO index_info(key, value) VALUES ('dimension', ?)`, stored); err != nil {
			return 0, raglerr.Wrap(err, raglerr.CodeIndexLoadFailure, "recording dimension")
		}
	case err != nil:
		return 0, raglerr.Wrap(err, raglerr.CodeIndexLoadFailure, "reading dimension")
	}

	vecDDL := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS chunk_vectors USING vec0(embedding float[%d])`, stored)
	if _, err := db.Exec(vecDDL); err != nil {
		return 0, raglerr.Wrap(err, raglerr.CodeIndexLoadFailure, "creating chunk_vectors virtual table")
	}

	const metaDDL = `
CREATE TABLE IF NOT EXISTS chunk_metadata (
	pos         INTEGER PRIMARY KEY,
	document_id TEXT NOT NULL,
	metadata    TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_chunk_metadata_document ON chunk_metadata(document_id)`
	if _, err := db.Exec(metaDDL); err != nil {
		return 0, raglerr.Wrap(err, raglerr.CodeIndexLoadFailure, "creating chunk_metadata table")
	}

	return stored, nil
}

// Dimension returns the index's vector dimension.
func (x *Index) Dimension() int { return x.dim }

// Count reports the total number of stored vectors, including orphans.
func (x *Index) Count() int {
	var n int
	if err := x.db.QueryRow(`SELECT COUNT(*) FROM chunk_vectors`).Scan(&n); err != nil {
		return 0
	}
	return n
}

// Add appends vectors under positional rowids assigned from the current
// count, storing each metadata record alongside in the same transaction.
func (x *Index) Add(ctx context.Context, vectors [][]float32, metadata []map[string]any, ids []string) error {
	if len(vectors) != len(metadata) || len(vectors) != len(ids) {
		return raglerr.Errorf(raglerr.CodeIndexInvalidInput,
			"mismatched add lengths: %d vectors, %d metadata, %d ids", len(vectors), len(metadata), len(ids))
	}
	if len(vectors) == 0 {
		return nil
	}

	for i, vec := range vectors {
		if len(vec) != x.dim {
			return raglerr.Errorf(raglerr.CodeIndexDimensionMismatch,
				"vector %d has dimension %d, index expects %d", i, len(vec), x.dim)
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return raglerr.Wrap(err, raglerr.CodeIndexPersistFailure, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var start int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunk_vectors`).Scan(&start); err != nil {
		return raglerr.Wrap(err, raglerr.CodeIndexPersistFailure, "reading vector count")
	}

	for i, vec := range vectors {
		blob, err := sqlite_vec.SerializeFloat32(vec)
		if err != nil {
			return raglerr.Wrap(err, raglerr.CodeIndexPersistFailure, "serializing embedding")
		}

		pos := start + i

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunk_vectors(rowid, embedding) VALUES (?, ?)`, pos, blob); err != nil {
			return raglerr.Wrapf(err, raglerr.CodeIndexPersistFailure, "inserting vector %d", pos)
		}

		record := make(map[string]any, len(metadata[i])+1)
		for k, v := range metadata[i] {
			record[k] = v
		}
		record["id"] = ids[i]

		docID, _ := record["document_id"].(string)

		metaJSON, err := json.Marshal(record)
		if err != nil {
			return raglerr.Wrap(err, raglerr.CodeIndexPersistFailure, "marshalling metadata")
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunk_metadata(pos, document_id, metadata) VALUES (?, ?, ?)`,
			pos, docID, string(metaJSON)); err != nil {
			return raglerr.Wrapf(err, raglerr.CodeIndexPersistFailure, "inserting metadata %d", pos)
		}
	}

	if err := tx.Commit(); err != nil {
		return raglerr.Wrap(err, raglerr.CodeIndexPersistFailure, "committing add")
	}
	return nil
}

// Search performs a k-nearest-neighbor query and returns live records in
// ascending distance order. The score is the squared L2 distance. Orphaned
// positions are skipped.
func (x *Index) Search(ctx context.Context, query []float32, topK int) ([]index.Result, error) {
	if topK <= 0 {
		topK = index.DefaultTopK
	}
	if len(query) != x.dim {
		return nil, raglerr.Errorf(raglerr.CodeIndexDimensionMismatch,
			"query has dimension %d, index expects %d", len(query), x.dim)
	}

	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, raglerr.Wrap(err, raglerr.CodeIndexLoadFailure, "serializing query vector")
	}

	// The KNN ranks every vector row, orphans included, so ask for enough
	// neighbors that topK live results survive the metadata filter.
	var total, live int
	if err := x.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM chunk_vectors), (SELECT COUNT(*) FROM chunk_metadata)`,
	).Scan(&total, &live); err != nil {
		return nil, raglerr.Wrap(err, raglerr.CodeIndexLoadFailure, "reading row counts")
	}

	k := topK + (total - live)

	const q = `SELECT v.distance, m.metadata
FROM chunk_vectors v
LEFT JOIN chunk_metadata m ON m.pos = v.rowid
WHERE v.embedding MATCH ? AND k = ?
ORDER BY v.distance`

	rows, err := x.db.QueryContext(ctx, q, blob, k)
	if err != nil {
		return nil, raglerr.Wrap(err, raglerr.CodeIndexLoadFailure, "searching vectors")
	}
	defer func() { _ = rows.Close() }()

	var results []index.Result
	for rows.Next() {
		var distance float64
		var metaStr sql.NullString

		if err := rows.Scan(&distance, &metaStr); err != nil {
			return nil, raglerr.Wrap(err, raglerr.CodeIndexLoadFailure, "scanning search result")
		}

		// Orphaned position: metadata deleted, vector still present.
		if !metaStr.Valid {
			continue
		}

		var record map[string]any
		if err := json.Unmarshal([]byte(metaStr.String), &record); err != nil {
			return nil, raglerr.Wrap(err, raglerr.CodeIndexLoadFailure, "parsing result metadata")
		}

		// sqlite-vec reports Euclidean distance; square it to match the
		// raw squared-L2 score contract.
		results = append(results, index.Result{Score: distance * distance, Metadata: record})
	}
	if err := rows.Err(); err != nil {
		return nil, raglerr.Wrap(err, raglerr.CodeIndexLoadFailure, "iterating search results")
	}

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// DeleteByDocument removes metadata rows for the document. Vector rows stay
// in place as orphans until Compact.
func (x *Index) DeleteByDocument(ctx context.Context, documentID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, err := x.db.ExecContext(ctx,
		`DELETE FROM chunk_metadata WHERE document_id = ?`, documentID); err != nil {
		return raglerr.Wrap(err, raglerr.CodeIndexPersistFailure, "deleting document metadata")
	}
	return nil
}

// Compact rebuilds the vector table from live metadata only, reassigning
// contiguous positional ids. Returns the number of orphaned rows dropped.
func (x *Index) Compact(ctx context.Context) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, raglerr.Wrap(err, raglerr.CodeIndexCompactFailure, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var total int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunk_vectors`).Scan(&total); err != nil {
		return 0, raglerr.Wrap(err, raglerr.CodeIndexCompactFailure, "reading vector count")
	}

	type liveRow struct {
		embedding []byte
		docID     string
		metadata  string
	}

	rows, err := tx.QueryContext(ctx, `
SELECT v.embedding, m.document_id, m.metadata
FROM chunk_metadata m
JOIN chunk_vectors v ON v.rowid = m.pos
ORDER BY m.pos`)
	if err != nil {
		return 0, raglerr.Wrap(err, raglerr.CodeIndexCompactFailure, "reading live rows")
	}

	var live []liveRow
	for rows.Next() {
		var r liveRow
		if err := rows.Scan(&r.embedding, &r.docID, &r.metadata); err != nil {
			_ = rows.Close()
			return 0, raglerr.Wrap(err, raglerr.CodeIndexCompactFailure, "scanning live row")
		}
		live = append(live, r)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, raglerr.Wrap(err, raglerr.CodeIndexCompactFailure, "iterating live rows")
	}
	_ = rows.Close()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunk_vectors`); err != nil {
		return 0, raglerr.Wrap(err, raglerr.CodeIndexCompactFailure, "clearing vectors")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunk_metadata`); err != nil {
		return 0, raglerr.Wrap(err, raglerr.CodeIndexCompactFailure, "clearing metadata")
	}

	for pos, r := range live {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunk_vectors(rowid, embedding) VALUES (?, ?)`, pos, r.embedding); err != nil {
			return 0, raglerr.Wrapf(err, raglerr.CodeIndexCompactFailure, "reinserting vector %d", pos)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunk_metadata(pos, document_id, metadata) VALUES (?, ?, ?)`,
			pos, r.docID, r.metadata); err != nil {
			return 0, raglerr.Wrapf(err, raglerr.CodeIndexCompactFailure, "reinserting metadata %d", pos)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, raglerr.Wrap(err, raglerr.CodeIndexCompactFailure, "committing compaction")
	}
	return total - len(live), nil
}

// Close closes the underlying database connection.
func (x *Index) Close() error {
	return x.db.Close()
}
