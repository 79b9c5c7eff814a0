// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Raglane Contributors

// Package flat implements the reference vector index: an in-process
// brute-force squared-L2 store persisted as two companion artifacts sharing
// a path stem: a binary vector file and a JSON metadata map. Every mutation
// rewrites both artifacts via temp-write-then-rename before returning.
package flat

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/raglane-dev/raglane/internal/index"
	raglerr "github.com/raglane-dev/raglane/pkg/errors"
)

const (
	vecSuffix  = ".vec"
	metaSuffix = "_meta.json"

	formatVersion = 1
)

var magic = [4]byte{'R', 'G', 'L', 'V'}

func init() {
	index.Register("flat", func(path string, dims int) (index.Index, error) {
		return Open(path, dims)
	})
}

// Compile-time interface checks.
var (
	_ index.Index     = (*Index)(nil)
	_ index.Compactor = (*Index)(nil)
)

// Index is a flat squared-L2 vector index. Positional ids are assigned by
// append order and never reused; deleting a document removes metadata only,
// leaving orphaned vector rows in place until an explicit Compact.
type Index struct {
	mu   sync.Mutex
	stem string
	dim  int
	data []float32 // row-major, len = count*dim
	meta map[int]map[string]any
}

// Open loads the index at the path stem, or starts empty when the vector
// artifact does not exist. When loading, the persisted dimension is ground
// truth and overrides dims.
func Open(stem string, dims int) (*Index, error) {
	idx := &Index{stem: stem, dim: dims, meta: map[int]map[string]any{}}

	loaded, err := idx.load()
	if err != nil {
		return nil, err
	}
	if !loaded && dims <= 0 {
		return nil, raglerr.Errorf(raglerr.CodeIndexInvalidInput,
			"vector dimension must be positive, got %d", dims)
	}

	return idx, nil
}

// Dimension returns the index's vector dimension.
func (x *Index) Dimension() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.dim
}

// Count reports the total number of stored vectors, including orphans.
func (x *Index) Count() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.count()
}

func (x *Index) count() int {
	if x.dim == 0 {
		return 0
	}
	return len(x.data) / x.dim
}

// Add appends vectors and their metadata, assigning positional ids from the
// current count, and persists both artifacts before returning.
func (x *Index) Add(ctx context.Context, vectors [][]float32, metadata []map[string]any, ids []string) error {
	if len(vectors) != len(metadata) || len(vectors) != len(ids) {
		return raglerr.Errorf(raglerr.CodeIndexInvalidInput,
			"mismatched add lengths: %d vectors, %d metadata, %d ids", len(vectors), len(metadata), len(ids))
	}
	if len(vectors) == 0 {
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	for i, vec := range vectors {
		if len(vec) != x.dim {
			return raglerr.Errorf(raglerr.CodeIndexDimensionMismatch,
				"vector %d has dimension %d, index expects %d", i, len(vec), x.dim)
		}
	}

	prevLen := len(x.data)
	start := x.count()

	for i, vec := range vectors {
		x.data = append(x.data, vec...)

		record := make(map[string]any, len(metadata[i])+1)
		for k, v := range metadata[i] {
			record[k] = v
		}
		record["id"] = ids[i]
		x.meta[start+i] = record
	}

	if err := x.persist(); err != nil {
		// Roll memory back so it stays consistent with the artifacts.
		x.data = x.data[:prevLen]
		for i := range vectors {
			delete(x.meta, start+i)
		}
		return err
	}
	return nil
}

// Search scores every stored vector against the query and returns up to topK
// live records by ascending squared-L2 distance. Orphaned positions are
// skipped.
func (x *Index) Search(ctx context.Context, query []float32, topK int) ([]index.Result, error) {
	if topK <= 0 {
		topK = index.DefaultTopK
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if len(query) != x.dim {
		return nil, raglerr.Errorf(raglerr.CodeIndexDimensionMismatch,
			"query has dimension %d, index expects %d", len(query), x.dim)
	}

	type hit struct {
		pos  int
		dist float64
	}

	total := x.count()
	hits := make([]hit, 0, total)
	for pos := 0; pos < total; pos++ {
		row := x.data[pos*x.dim : (pos+1)*x.dim]
		var d float64
		for i, q := range query {
			diff := float64(q) - float64(row[i])
			d += diff * diff
		}
		hits = append(hits, hit{pos: pos, dist: d})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].dist != hits[j].dist {
			return hits[i].dist < hits[j].dist
		}
		return hits[i].pos < hits[j].pos
	})

	var results []index.Result
	for _, h := range hits {
		record, ok := x.meta[h.pos]
		if !ok {
			continue
		}

		out := make(map[string]any, len(record))
		for k, v := range record {
			out[k] = v
		}
		results = append(results, index.Result{Score: h.dist, Metadata: out})
		if len(results) == topK {
			break
		}
	}
	return results, nil
}

// DeleteByDocument removes every metadata record whose document_id matches
// and persists. Vector rows are not touched; the orphaned positions stay out
// of search results until Compact.
func (x *Index) DeleteByDocument(ctx context.Context, documentID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	removed := map[int]map[string]any{}
	for pos, record := range x.meta {
		if id, ok := record["document_id"].(string); ok && id == documentID {
			removed[pos] = record
			delete(x.meta, pos)
		}
	}
	if len(removed) == 0 {
		return nil
	}

	if err := x.persist(); err != nil {
		for pos, record := range removed {
			x.meta[pos] = record
		}
		return err
	}
	return nil
}

// Compact rebuilds the vector structure from live metadata only, assigning
// fresh contiguous positional ids, and persists the result. It returns the
// number of orphaned rows dropped.
func (x *Index) Compact(ctx context.Context) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	total := x.count()

	live := make([]int, 0, len(x.meta))
	for pos := range x.meta {
		live = append(live, pos)
	}
	sort.Ints(live)

	newData := make([]float32, 0, len(live)*x.dim)
	newMeta := make(map[int]map[string]any, len(live))
	for i, pos := range live {
		newData = append(newData, x.data[pos*x.dim:(pos+1)*x.dim]...)
		newMeta[i] = x.meta[pos]
	}

	prevData, prevMeta := x.data, x.meta
	x.data, x.meta = newData, newMeta

	if err := x.persist(); err != nil {
		x.data, x.meta = prevData, prevMeta
		return 0, raglerr.Wrap(err, raglerr.CodeIndexCompactFailure, "persisting compacted index")
	}
	return total - len(live), nil
}

// Close is a no-op: both artifacts are rewritten on every mutation.
func (x *Index) Close() error { return nil }

func (x *Index) vecPath() string  { return x.stem + vecSuffix }
func (x *Index) metaPath() string { return x.stem + metaSuffix }

func (x *Index) load() (bool, error) {
	f, err := os.Open(x.vecPath())
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, raglerr.Wrap(err, raglerr.CodeIndexLoadFailure, "opening vector artifact")
	}
	defer func() { _ = f.Close() }()

	var header struct {
		Magic   [4]byte
		Version uint32
		Dim     uint32
		Count   uint64
	}
	if err := binary.Read(f, binary.LittleEndian, &header); err != nil {
		return false, raglerr.Wrap(err, raglerr.CodeIndexLoadFailure, "reading vector header")
	}
	if header.Magic != magic || header.Version != formatVersion {
		return false, raglerr.Errorf(raglerr.CodeIndexLoadFailure,
			"unrecognized vector artifact format at %s", x.vecPath())
	}

	data := make([]float32, int(header.Count)*int(header.Dim))
	if err := binary.Read(f, binary.LittleEndian, data); err != nil {
		return false, raglerr.Wrap(err, raglerr.CodeIndexLoadFailure, "reading vector rows")
	}
	if _, err := f.Read(make([]byte, 1)); err != io.EOF {
		return false, raglerr.Errorf(raglerr.CodeIndexLoadFailure,
			"trailing bytes in vector artifact %s", x.vecPath())
	}

	raw, err := os.ReadFile(x.metaPath())
	if err != nil {
		return false, raglerr.Wrap(err, raglerr.CodeIndexLoadFailure, "reading metadata artifact")
	}

	var stored map[string]map[string]any
	if err := json.Unmarshal(raw, &stored); err != nil {
		return false, raglerr.Wrap(err, raglerr.CodeIndexLoadFailure, "parsing metadata artifact")
	}

	meta := make(map[int]map[string]any, len(stored))
	for key, record := range stored {
		pos, err := strconv.Atoi(key)
		if err != nil {
			return false, raglerr.Errorf(raglerr.CodeIndexLoadFailure,
				"invalid positional id %q in metadata artifact", key)
		}
		meta[pos] = record
	}

	// The persisted dimension is ground truth.
	x.dim = int(header.Dim)
	x.data = data
	x.meta = meta
	return true, nil
}

// persist rewrites both artifacts with write-then-rename so a crash never
// leaves a partially written file in place.
func (x *Index) persist() error {
	if err := x.writeVectors(); err != nil {
		return raglerr.Wrap(err, raglerr.CodeIndexPersistFailure, "persisting vector artifact")
	}
	if err := x.writeMetadata(); err != nil {
		return raglerr.Wrap(err, raglerr.CodeIndexPersistFailure, "persisting metadata artifact")
	}
	return nil
}

func (x *Index) writeVectors() error {
	header := struct {
		Magic   [4]byte
		Version uint32
		Dim     uint32
		Count   uint64
	}{Magic: magic, Version: formatVersion, Dim: uint32(x.dim), Count: uint64(x.count())}

	return atomicWrite(x.vecPath(), func(f *os.File) error {
		if err := binary.Write(f, binary.LittleEndian, header); err != nil {
			return err
		}
		return binary.Write(f, binary.LittleEndian, x.data)
	})
}

func (x *Index) writeMetadata() error {
	stored := make(map[string]map[string]any, len(x.meta))
	for pos, record := range x.meta {
		stored[strconv.Itoa(pos)] = record
	}

	raw, err := json.Marshal(stored)
	if err != nil {
		return err
	}

	return atomicWrite(x.metaPath(), func(f *os.File) error {
		_, err := f.Write(raw)
		return err
	})
}

func atomicWrite(path string, write func(*os.File) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}
