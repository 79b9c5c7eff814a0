// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Raglane Contributors

// Package index defines the append-only nearest-neighbor vector index and
// its backend registry. Backends register themselves from init() and are
// selected by name at pipeline start.
package index

import (
	"context"
	"sync"

	raglerr "github.com/raglane-dev/raglane/pkg/errors"
)

// DefaultTopK is the result count used when a search does not specify one.
const DefaultTopK = 5

// Result is one search hit: the stored metadata for the matched vector plus
// its raw squared-L2 distance from the query. The score is a distance, not a
// normalized similarity; lower is closer and 0 is an exact match.
type Result struct {
	Score    float64
	Metadata map[string]any
}

// Index is an append-only vector store with positional ids and companion
// metadata. At most one mutating call (Add or DeleteByDocument) runs at a
// time per instance; implementations enforce this internally.
type Index interface {
	// Add appends vectors in input order. The i-th metadata record is
	// stored under the assigned positional id, augmented with ids[i] under
	// the "id" key. The index is persisted before Add returns.
	Add(ctx context.Context, vectors [][]float32, metadata []map[string]any, ids []string) error

	// Search returns up to topK live records ordered by ascending distance.
	// Positions whose metadata was deleted are skipped.
	Search(ctx context.Context, query []float32, topK int) ([]Result, error)

	// DeleteByDocument removes every metadata record whose document_id
	// field matches. Underlying vectors are not removed; orphaned positions
	// are excluded from future searches.
	DeleteByDocument(ctx context.Context, documentID string) error

	// Count reports the total number of stored vectors, including orphans.
	Count() int

	Close() error
}

// Compactor is implemented by backends that support rebuilding the vector
// structure from live metadata only. Compaction is operator-invoked, never
// implicit.
type Compactor interface {
	Compact(ctx context.Context) (removed int, err error)
}

// Factory creates an index backend rooted at path with the given vector
// dimension.
type Factory func(path string, dims int) (Index, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// Register registers a factory for a named index backend. Backend packages
// call this from init(). This function is goroutine-safe.
func Register(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Open creates the index for the named backend, defaulting to "flat".
func Open(backend, path string, dims int) (Index, error) {
	if backend == "" {
		backend = "flat"
	}

	factoriesMu.RLock()
	factory, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, raglerr.New(raglerr.CodeIndexBackendUnsupported,
			"unsupported vector store backend", raglerr.FieldBackend(backend))
	}

	return factory(path, dims)
}
