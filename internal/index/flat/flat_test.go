// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Raglane Contributors

package flat_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/raglane-dev/raglane/internal/index"
	"github.com/raglane-dev/raglane/internal/index/flat"
	raglerr "github.com/raglane-dev/raglane/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStem(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "vectors")
}

func addOne(t *testing.T, idx *flat.Index, vec []float32, docID, id string) {
	t.Helper()
	err := idx.Add(context.Background(), [][]float32{vec},
		[]map[string]any{{"document_id": docID, "text": "chunk for " + id}}, []string{id})
	require.NoError(t, err)
}

func TestOpenMissingArtifactStartsEmpty(t *testing.T) {
	idx, err := flat.Open(testStem(t), 3)
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Count())
	assert.Equal(t, 3, idx.Dimension())
}

func TestOpenRequiresPositiveDimension(t *testing.T) {
	_, err := flat.Open(testStem(t), 0)
	require.Error(t, err)
	assert.True(t, raglerr.HasCode(err, raglerr.CodeIndexInvalidInput))
}

func TestAddAssignsMonotonicPositionalIDs(t *testing.T) {
	ctx := context.Background()
	idx, err := flat.Open(testStem(t), 2)
	require.NoError(t, err)

	err = idx.Add(ctx,
		[][]float32{{1, 0}, {0, 1}},
		[]map[string]any{{"document_id": "d1"}, {"document_id": "d1"}},
		[]string{"d1_0", "d1_1"})
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Count())

	err = idx.Add(ctx,
		[][]float32{{1, 1}},
		[]map[string]any{{"document_id": "d2"}},
		[]string{"d2_0"})
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Count())

	// Nearest to (1,1) is the third vector; its external id proves the
	// metadata landed on the appended position.
	results, err := idx.Search(ctx, []float32{1, 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "d2_0", results[0].Metadata["id"])
	assert.Equal(t, float64(0), results[0].Score)
}

func TestSearchOrthogonalUnitVectors(t *testing.T) {
	ctx := context.Background()
	idx, err := flat.Open(testStem(t), 3)
	require.NoError(t, err)

	addOne(t, idx, []float32{1, 0, 0}, "d", "d_0")
	addOne(t, idx, []float32{0, 1, 0}, "d", "d_1")
	addOne(t, idx, []float32{0, 0, 1}, "d", "d_2")

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Exact match first with raw squared distance 0, the two orthogonal
	// vectors behind it at distance 2.
	assert.Equal(t, "d_0", results[0].Metadata["id"])
	assert.Equal(t, float64(0), results[0].Score)
	assert.InDelta(t, 2.0, results[1].Score, 1e-9)
	assert.InDelta(t, 2.0, results[2].Score, 1e-9)
}

func TestSearchTopKLimitsResults(t *testing.T) {
	ctx := context.Background()
	idx, err := flat.Open(testStem(t), 2)
	require.NoError(t, err)

	for i, vec := range [][]float32{{1, 0}, {2, 0}, {3, 0}, {4, 0}} {
		addOne(t, idx, vec, "d", "d_"+string(rune('0'+i)))
	}

	results, err := idx.Search(ctx, []float32{0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "d_0", results[0].Metadata["id"])
	assert.Equal(t, "d_1", results[1].Metadata["id"])
}

func TestSearchDimensionMismatch(t *testing.T) {
	idx, err := flat.Open(testStem(t), 3)
	require.NoError(t, err)

	_, err = idx.Search(context.Background(), []float32{1, 0}, 1)
	require.Error(t, err)
	assert.True(t, raglerr.HasCode(err, raglerr.CodeIndexDimensionMismatch))
}

func TestAddDimensionMismatchIsFatal(t *testing.T) {
	idx, err := flat.Open(testStem(t), 3)
	require.NoError(t, err)

	err = idx.Add(context.Background(), [][]float32{{1, 0}},
		[]map[string]any{{"document_id": "d"}}, []string{"d_0"})
	require.Error(t, err)
	assert.True(t, raglerr.HasCode(err, raglerr.CodeIndexDimensionMismatch))
	assert.Equal(t, 0, idx.Count())
}

func TestAddLengthMismatch(t *testing.T) {
	idx, err := flat.Open(testStem(t), 2)
	require.NoError(t, err)

	err = idx.Add(context.Background(), [][]float32{{1, 0}}, nil, []string{"d_0"})
	require.Error(t, err)
	assert.True(t, raglerr.HasCode(err, raglerr.CodeIndexInvalidInput))
}

func TestDeleteByDocumentHidesMetadataKeepsVectors(t *testing.T) {
	ctx := context.Background()
	idx, err := flat.Open(testStem(t), 2)
	require.NoError(t, err)

	addOne(t, idx, []float32{1, 0}, "keep", "keep_0")
	addOne(t, idx, []float32{0, 1}, "drop", "drop_0")
	addOne(t, idx, []float32{1, 1}, "drop", "drop_1")

	require.NoError(t, idx.DeleteByDocument(ctx, "drop"))

	// Vectors stay; only the metadata disappears.
	assert.Equal(t, 3, idx.Count())

	results, err := idx.Search(ctx, []float32{0, 1}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "keep", results[0].Metadata["document_id"])
}

func TestDeletedPositionsAreNeverReused(t *testing.T) {
	ctx := context.Background()
	idx, err := flat.Open(testStem(t), 2)
	require.NoError(t, err)

	addOne(t, idx, []float32{1, 0}, "d1", "d1_0")
	require.NoError(t, idx.DeleteByDocument(ctx, "d1"))

	addOne(t, idx, []float32{0, 1}, "d2", "d2_0")
	assert.Equal(t, 2, idx.Count())

	results, err := idx.Search(ctx, []float32{0, 1}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "d2_0", results[0].Metadata["id"])
}

func TestPersistenceSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	stem := testStem(t)

	idx, err := flat.Open(stem, 2)
	require.NoError(t, err)
	addOne(t, idx, []float32{1, 0}, "d1", "d1_0")
	addOne(t, idx, []float32{0, 1}, "d2", "d2_0")
	require.NoError(t, idx.Close())

	reopened, err := flat.Open(stem, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Count())

	results, err := reopened.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "d1_0", results[0].Metadata["id"])
	assert.Equal(t, "d1", results[0].Metadata["document_id"])
}

func TestPersistedDimensionIsGroundTruth(t *testing.T) {
	stem := testStem(t)

	idx, err := flat.Open(stem, 4)
	require.NoError(t, err)
	addOne(t, idx, []float32{1, 0, 0, 0}, "d", "d_0")

	// Reopening with a different configured dimension adopts the stored one.
	reopened, err := flat.Open(stem, 768)
	require.NoError(t, err)
	assert.Equal(t, 4, reopened.Dimension())
}

func TestBothArtifactsWrittenOnAdd(t *testing.T) {
	stem := testStem(t)

	idx, err := flat.Open(stem, 2)
	require.NoError(t, err)
	addOne(t, idx, []float32{1, 0}, "d", "d_0")

	_, err = os.Stat(stem + ".vec")
	require.NoError(t, err)
	_, err = os.Stat(stem + "_meta.json")
	require.NoError(t, err)
}

func TestCompactDropsOrphansAndReassignsPositions(t *testing.T) {
	ctx := context.Background()
	stem := testStem(t)

	idx, err := flat.Open(stem, 2)
	require.NoError(t, err)

	addOne(t, idx, []float32{1, 0}, "drop", "drop_0")
	addOne(t, idx, []float32{0, 1}, "keep", "keep_0")
	addOne(t, idx, []float32{1, 1}, "drop", "drop_1")

	require.NoError(t, idx.DeleteByDocument(ctx, "drop"))
	assert.Equal(t, 3, idx.Count())

	removed, err := idx.Compact(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, idx.Count())

	results, err := idx.Search(ctx, []float32{0, 1}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "keep_0", results[0].Metadata["id"])

	// Compacted state survives reopen.
	reopened, err := flat.Open(stem, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Count())
}

func TestOpenViaBackendRegistry(t *testing.T) {
	idx, err := index.Open("flat", testStem(t), 2)
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Count())

	_, err = index.Open("chroma", testStem(t), 2)
	require.Error(t, err)
	assert.True(t, raglerr.HasCode(err, raglerr.CodeIndexBackendUnsupported))
}
