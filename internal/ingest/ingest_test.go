// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Raglane Contributors

package ingest_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raglane-dev/raglane/internal/embedding"
	_ "github.com/raglane-dev/raglane/internal/index/flat"
	"github.com/raglane-dev/raglane/internal/ingest"
	"github.com/raglane-dev/raglane/internal/store"
	raglerr "github.com/raglane-dev/raglane/pkg/errors"
)

// fakeGateway embeds text deterministically so exact-text queries score a
// squared distance of 0.
type fakeGateway struct {
	embedErr error
}

func (g *fakeGateway) Embed(ctx context.Context, text string) ([]float32, error) {
	if g.embedErr != nil {
		return nil, g.embedErr
	}
	var sum float32
	for _, r := range text {
		sum += float32(r % 31)
	}
	return []float32{float32(len(text)), sum, 1}, nil
}

func (g *fakeGateway) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := g.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (g *fakeGateway) Dimension() int   { return 3 }
func (g *fakeGateway) Provider() string { return "openai" }
func (g *fakeGateway) Model() string    { return "fake-embedding" }

type env struct {
	pipeline *ingest.Pipeline
	docs     *store.MemoryDocumentStore
	settings *store.MemorySettingsStore
	dataPath string
}

type envOption func(*ingest.Options)

func withGatewayFactory(f ingest.GatewayFactory) envOption {
	return func(o *ingest.Options) { o.NewGateway = f }
}

func newEnv(t *testing.T, opts ...envOption) *env {
	t.Helper()

	docs := store.NewMemoryDocumentStore()
	settings := store.NewMemorySettingsStore()

	o := ingest.Options{
		Documents: docs,
		Settings:  settings,
		DataPath:  t.TempDir(),
		NewGateway: func(ctx context.Context, cfg embedding.Config) (embedding.Gateway, error) {
			return &fakeGateway{}, nil
		},
	}
	for _, apply := range opts {
		apply(&o)
	}

	p, err := ingest.New(o)
	require.NoError(t, err)

	return &env{pipeline: p, docs: docs, settings: settings, dataPath: o.DataPath}
}

func TestRunIngestsDocument(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	res, err := e.pipeline.Run(ctx, []byte("short note about vectors"), "note.txt")
	require.NoError(t, err)

	assert.False(t, res.AlreadyIndexed)
	assert.NotEmpty(t, res.DocumentID)
	assert.Equal(t, "note.txt", res.Filename)
	assert.Equal(t, 1, res.ChunkCount)
	assert.Equal(t, "openai", res.EmbeddingProvider)
	assert.Equal(t, "flat", res.VectorStore)

	doc, err := e.docs.GetByID(ctx, res.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, doc.Status)
	assert.Equal(t, 1, doc.ChunkCount)
	assert.Empty(t, doc.ErrorMessage)
}

func TestRunIsIdempotentForIdenticalContent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	first, err := e.pipeline.Run(ctx, []byte("same content"), "a.txt")
	require.NoError(t, err)

	// Same bytes under a different filename still dedup.
	second, err := e.pipeline.Run(ctx, []byte("same content"), "b.txt")
	require.NoError(t, err)

	assert.True(t, second.AlreadyIndexed)
	assert.Equal(t, first.DocumentID, second.DocumentID)
	assert.Equal(t, "a.txt", second.Filename)

	docs, err := e.docs.List(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestRunGatewayConstructionFailureMarksDocumentFailed(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, withGatewayFactory(
		func(ctx context.Context, cfg embedding.Config) (embedding.Gateway, error) {
			return nil, raglerr.New(raglerr.CodeIngestConfigInvalid, "api key is required")
		}))

	_, err := e.pipeline.Run(ctx, []byte("content"), "a.txt")
	require.Error(t, err)

	docs, listErr := e.docs.List(ctx)
	require.NoError(t, listErr)
	require.Len(t, docs, 1)
	assert.Equal(t, store.StatusFailed, docs[0].Status)
	assert.Contains(t, docs[0].ErrorMessage, "api key is required")
	assert.Equal(t, 0, docs[0].ChunkCount)
}

func TestRunEmbedFailureMarksDocumentFailed(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, withGatewayFactory(
		func(ctx context.Context, cfg embedding.Config) (embedding.Gateway, error) {
			return &fakeGateway{embedErr: raglerr.New(
				raglerr.CodeEmbeddingUpstreamFailure, "rate limited")}, nil
		}))

	_, err := e.pipeline.Run(ctx, []byte("content"), "a.txt")
	require.Error(t, err)
	assert.True(t, raglerr.HasCode(err, raglerr.CodeIngestEmbedFailure))

	docs, listErr := e.docs.List(ctx)
	require.NoError(t, listErr)
	require.Len(t, docs, 1)
	assert.Equal(t, store.StatusFailed, docs[0].Status)
	assert.Contains(t, docs[0].ErrorMessage, "rate limited")
}

func TestRunUnsupportedFormatMarksDocumentFailed(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.pipeline.Run(ctx, []byte{0x4d, 0x5a}, "tool.exe")
	require.Error(t, err)
	assert.True(t, raglerr.HasCode(err, raglerr.CodeIngestExtractFailure))

	docs, listErr := e.docs.List(ctx)
	require.NoError(t, listErr)
	require.Len(t, docs, 1)
	assert.Equal(t, store.StatusFailed, docs[0].Status)
}

func TestRunEmptyDocumentCompletesWithZeroChunks(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	res, err := e.pipeline.Run(ctx, []byte{}, "empty.txt")
	require.NoError(t, err)

	assert.False(t, res.AlreadyIndexed)
	assert.Equal(t, 0, res.ChunkCount)

	doc, err := e.docs.GetByID(ctx, res.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, doc.Status)
	assert.Equal(t, 0, doc.ChunkCount)
	assert.Empty(t, doc.ErrorMessage)

	// Nothing was indexed for it.
	results, err := e.pipeline.Search(ctx, "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRunFailedDocumentDoesNotBlockRetryOfNewContent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.pipeline.Run(ctx, []byte{0x4d, 0x5a}, "tool.exe")
	require.Error(t, err)

	// Different content ingests fine afterwards.
	res, err := e.pipeline.Run(ctx, []byte("plain text"), "ok.txt")
	require.NoError(t, err)
	assert.False(t, res.AlreadyIndexed)
}

func TestSearchReturnsIndexedChunks(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	content := "the capital of france is paris"
	res, err := e.pipeline.Run(ctx, []byte(content), "facts.txt")
	require.NoError(t, err)

	results, err := e.pipeline.Search(ctx, content, 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, float64(0), results[0].Score)
	assert.Equal(t, content, results[0].Metadata["text"])
	assert.Equal(t, res.DocumentID, results[0].Metadata["document_id"])
	assert.Equal(t, "facts.txt", results[0].Metadata["document_name"])
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	e := newEnv(t)

	_, err := e.pipeline.Search(context.Background(), "", 5)
	require.Error(t, err)
	assert.True(t, raglerr.IsInvalidInput(err))
}

func TestDeleteDocumentRemovesRecordAndVectors(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	content := "document slated for deletion"
	res, err := e.pipeline.Run(ctx, []byte(content), "gone.txt")
	require.NoError(t, err)

	require.NoError(t, e.pipeline.DeleteDocument(ctx, res.DocumentID))

	_, err = e.docs.GetByID(ctx, res.DocumentID)
	assert.True(t, raglerr.IsNotFound(err))

	results, err := e.pipeline.Search(ctx, content, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDeleteMissingDocument(t *testing.T) {
	e := newEnv(t)

	err := e.pipeline.DeleteDocument(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, raglerr.IsNotFound(err))
}

func TestCompactDropsDeletedDocumentVectors(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	res, err := e.pipeline.Run(ctx, []byte("compactable content"), "tmp.txt")
	require.NoError(t, err)
	require.NoError(t, e.pipeline.DeleteDocument(ctx, res.DocumentID))

	removed, err := e.pipeline.Compact(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestRunHonorsVectorStoreSetting(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	require.NoError(t, e.settings.Set(ctx, store.SettingVectorStore, "chroma"))

	_, err := e.pipeline.Run(ctx, []byte("content"), "a.txt")
	require.Error(t, err)
	assert.True(t, raglerr.HasCode(err, raglerr.CodeIndexBackendUnsupported))

	// The registered document reflects the failure.
	docs, listErr := e.docs.List(ctx)
	require.NoError(t, listErr)
	require.Len(t, docs, 1)
	assert.Equal(t, store.StatusFailed, docs[0].Status)
}

func TestNewRequiresStores(t *testing.T) {
	_, err := ingest.New(ingest.Options{DataPath: t.TempDir()})
	require.Error(t, err)
	assert.True(t, raglerr.IsInvalidInput(err))
}
