// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Raglane Contributors

// Package ingest orchestrates the document pipeline: content hashing and
// dedup, registration, text extraction, chunking, embedding, and vector
// indexing. Runtime choices (provider, model, vector backend) come from the
// settings store and are resolved once per call, so a configuration change
// applies to the next ingestion without a restart.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/raglane-dev/raglane/internal/chunker"
	"github.com/raglane-dev/raglane/internal/embedding"
	"github.com/raglane-dev/raglane/internal/extract"
	"github.com/raglane-dev/raglane/internal/index"
	"github.com/raglane-dev/raglane/internal/secrets"
	"github.com/raglane-dev/raglane/internal/store"
	raglerr "github.com/raglane-dev/raglane/pkg/errors"
)

// Defaults applied when the settings store has no value for a key.
const (
	DefaultEmbeddingProvider = embedding.ProviderOpenAI
	DefaultEmbeddingModel    = "text-embedding-3-small"
	DefaultVectorStore       = "flat"
)

// GatewayFactory builds an embedding gateway from resolved settings.
type GatewayFactory func(ctx context.Context, cfg embedding.Config) (embedding.Gateway, error)

// IndexFactory opens the vector index for a backend.
type IndexFactory func(backend, path string, dims int) (index.Index, error)

// Options configures a Pipeline. Documents, Settings, and DataPath are
// required; everything else has a default.
type Options struct {
	Documents store.DocumentStore
	Settings  store.SettingsStore
	Secrets   secrets.Store
	Extractor extract.Extractor
	Chunker   *chunker.Chunker
	DataPath  string
	Logger    *slog.Logger

	// Test seams. Production code leaves these nil.
	NewGateway GatewayFactory
	OpenIndex  IndexFactory
}

// Pipeline coordinates one document's journey from raw bytes to indexed
// vectors.
type Pipeline struct {
	docs       store.DocumentStore
	settings   store.SettingsStore
	secrets    secrets.Store
	extractor  extract.Extractor
	chunker    *chunker.Chunker
	dataPath   string
	logger     *slog.Logger
	newGateway GatewayFactory
	openIndex  IndexFactory
}

// Result summarizes a completed (or short-circuited) ingestion.
type Result struct {
	DocumentID        string
	Filename          string
	ChunkCount        int
	EmbeddingProvider string
	EmbeddingModel    string
	VectorStore       string

	// AlreadyIndexed is true when the upload's content hash matched an
	// existing document and no new work was performed.
	AlreadyIndexed bool
}

// New creates a Pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Documents == nil || opts.Settings == nil {
		return nil, raglerr.New(raglerr.CodeIngestConfigInvalid,
			"ingest pipeline requires document and settings stores")
	}
	if opts.DataPath == "" {
		return nil, raglerr.New(raglerr.CodeIngestConfigInvalid,
			"ingest pipeline requires a data path")
	}

	p := &Pipeline{
		docs:       opts.Documents,
		settings:   opts.Settings,
		secrets:    opts.Secrets,
		extractor:  opts.Extractor,
		chunker:    opts.Chunker,
		dataPath:   opts.DataPath,
		logger:     opts.Logger,
		newGateway: opts.NewGateway,
		openIndex:  opts.OpenIndex,
	}

	if p.secrets == nil {
		p.secrets = secrets.NewKeyringStore()
	}
	if p.extractor == nil {
		p.extractor = extract.New()
	}
	if p.chunker == nil {
		p.chunker = chunker.Default()
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.newGateway == nil {
		p.newGateway = embedding.New
	}
	if p.openIndex == nil {
		p.openIndex = index.Open
	}

	return p, nil
}

// runtime holds the per-call settings snapshot.
type runtime struct {
	provider  string
	model     string
	apiKey    string
	backend   string
	indexPath string
}

// setting reads one key, falling back to def when the key is absent.
func (p *Pipeline) setting(ctx context.Context, key, def string) (string, error) {
	val, err := p.settings.Get(ctx, key)
	if raglerr.IsNotFound(err) {
		return def, nil
	}
	if err != nil {
		return "", err
	}
	if val == "" {
		return def, nil
	}
	return val, nil
}

// resolveRuntime snapshots the settings that drive one pipeline call. The
// API key may be a keyring:// URI and is resolved here, never stored in
// plaintext anywhere downstream.
func (p *Pipeline) resolveRuntime(ctx context.Context) (*runtime, error) {
	provider, err := p.setting(ctx, store.SettingEmbeddingProvider, DefaultEmbeddingProvider)
	if err != nil {
		return nil, err
	}

	model, err := p.setting(ctx, store.SettingEmbeddingModel, DefaultEmbeddingModel)
	if err != nil {
		return nil, err
	}

	apiKey, err := p.setting(ctx, store.SettingEmbeddingAPIKey, "")
	if err != nil {
		return nil, err
	}
	if apiKey != "" {
		apiKey, err = secrets.ResolveKeyringURI(p.secrets, apiKey)
		if err != nil {
			return nil, err
		}
	}

	backend, err := p.setting(ctx, store.SettingVectorStore, DefaultVectorStore)
	if err != nil {
		return nil, err
	}

	indexPath, err := p.setting(ctx, store.SettingVectorDBPath, p.defaultIndexPath(backend))
	if err != nil {
		return nil, err
	}

	return &runtime{
		provider:  provider,
		model:     model,
		apiKey:    apiKey,
		backend:   backend,
		indexPath: indexPath,
	}, nil
}

func (p *Pipeline) defaultIndexPath(backend string) string {
	if backend == "sqlite" {
		return filepath.Join(p.dataPath, "vectors.db")
	}
	return filepath.Join(p.dataPath, "vectors")
}

// Run ingests one uploaded file. Identical content (by sha256) short-circuits
// before any extraction or embedding work. Every failure after registration
// finalizes the document as failed with the error message recorded.
func (p *Pipeline) Run(ctx context.Context, data []byte, filename string) (*Result, error) {
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	if existing, err := p.docs.GetByHash(ctx, hash); err == nil {
		p.logger.Info("document already indexed, skipping",
			"document_id", existing.ID, "filename", existing.Filename)
		return &Result{
			DocumentID:     existing.ID,
			Filename:       existing.Filename,
			ChunkCount:     existing.ChunkCount,
			AlreadyIndexed: true,
		}, nil
	} else if !raglerr.IsNotFound(err) {
		return nil, err
	}

	doc := &store.Document{
		ID:        uuid.NewString(),
		Filename:  filename,
		Hash:      hash,
		Status:    store.StatusProcessing,
		CreatedAt: time.Now(),
	}
	if err := p.docs.Insert(ctx, doc); err != nil {
		// A concurrent upload of the same content won the race; treat it
		// like the dedup short-circuit.
		if raglerr.IsConflict(err) {
			if existing, getErr := p.docs.GetByHash(ctx, hash); getErr == nil {
				return &Result{
					DocumentID:     existing.ID,
					Filename:       existing.Filename,
					ChunkCount:     existing.ChunkCount,
					AlreadyIndexed: true,
				}, nil
			}
		}
		return nil, err
	}

	rt, err := p.resolveRuntime(ctx)
	if err != nil {
		return nil, p.fail(ctx, doc.ID, err)
	}

	// Build the gateway before doing any extraction work so configuration
	// problems (missing key, unknown provider) surface immediately.
	gateway, err := p.newGateway(ctx, embedding.Config{
		Provider: rt.provider,
		Model:    rt.model,
		APIKey:   rt.apiKey,
	})
	if err != nil {
		return nil, p.fail(ctx, doc.ID, err)
	}

	text, err := p.extractor.Extract(ctx, data, filename)
	if err != nil {
		return nil, p.fail(ctx, doc.ID,
			raglerr.Wrapf(err, raglerr.CodeIngestExtractFailure, "extracting text from %s", filename))
	}

	chunks := p.chunker.SplitWithMetadata(text, filename)
	if len(chunks) == 0 {
		// Empty document: completed with zero chunks, nothing to index.
		if err := p.docs.UpdateStatus(ctx, doc.ID, store.StatusCompleted, 0, ""); err != nil {
			return nil, err
		}
		p.logger.Info("document produced no chunks", "document_id", doc.ID, "filename", filename)
		return &Result{
			DocumentID:        doc.ID,
			Filename:          filename,
			EmbeddingProvider: rt.provider,
			EmbeddingModel:    rt.model,
			VectorStore:       rt.backend,
		}, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := gateway.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, p.fail(ctx, doc.ID,
			raglerr.Wrap(err, raglerr.CodeIngestEmbedFailure, "embedding document chunks"))
	}
	if len(vectors) != len(chunks) {
		return nil, p.fail(ctx, doc.ID,
			raglerr.Errorf(raglerr.CodeIngestEmbedFailure,
				"embedding count mismatch: %d vectors for %d chunks", len(vectors), len(chunks)))
	}

	idx, err := p.openIndex(rt.backend, rt.indexPath, gateway.Dimension())
	if err != nil {
		return nil, p.fail(ctx, doc.ID, err)
	}
	defer func() { _ = idx.Close() }()

	metadata := make([]map[string]any, len(chunks))
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		metadata[i] = map[string]any{
			"document_id":   doc.ID,
			"document_name": c.DocumentName,
			"chunk_index":   c.Index,
			"text":          c.Text,
		}
		ids[i] = fmt.Sprintf("%s_%d", doc.ID, i)
	}

	if err := idx.Add(ctx, vectors, metadata, ids); err != nil {
		return nil, p.fail(ctx, doc.ID,
			raglerr.Wrap(err, raglerr.CodeIngestIndexFailure, "adding vectors to index"))
	}

	if err := p.docs.UpdateStatus(ctx, doc.ID, store.StatusCompleted, len(chunks), ""); err != nil {
		return nil, err
	}

	p.logger.Info("document ingested",
		"document_id", doc.ID,
		"filename", filename,
		"chunks", len(chunks),
		"provider", rt.provider,
		"model", rt.model,
		"vector_store", rt.backend,
	)

	return &Result{
		DocumentID:        doc.ID,
		Filename:          filename,
		ChunkCount:        len(chunks),
		EmbeddingProvider: rt.provider,
		EmbeddingModel:    rt.model,
		VectorStore:       rt.backend,
	}, nil
}

// fail finalizes the document as failed, recording the error message, and
// returns the original error.
func (p *Pipeline) fail(ctx context.Context, docID string, cause error) error {
	if err := p.docs.UpdateStatus(ctx, docID, store.StatusFailed, 0, cause.Error()); err != nil {
		p.logger.Error("failed to record document failure",
			"document_id", docID, "error", err)
	}
	return cause
}

// Search embeds the query with the currently configured gateway and returns
// the nearest chunks from the configured index.
func (p *Pipeline) Search(ctx context.Context, query string, topK int) ([]index.Result, error) {
	if query == "" {
		return nil, raglerr.New(raglerr.CodeIngestConfigInvalid, "search query must not be empty")
	}

	rt, err := p.resolveRuntime(ctx)
	if err != nil {
		return nil, err
	}

	gateway, err := p.newGateway(ctx, embedding.Config{
		Provider: rt.provider,
		Model:    rt.model,
		APIKey:   rt.apiKey,
	})
	if err != nil {
		return nil, err
	}

	vector, err := gateway.Embed(ctx, query)
	if err != nil {
		return nil, raglerr.Wrap(err, raglerr.CodeIngestEmbedFailure, "embedding search query")
	}

	idx, err := p.openIndex(rt.backend, rt.indexPath, gateway.Dimension())
	if err != nil {
		return nil, err
	}
	defer func() { _ = idx.Close() }()

	return idx.Search(ctx, vector, topK)
}

// DeleteDocument removes the registry record and then clears the document's
// vectors. Vector cleanup is best-effort: the orphaned rows are invisible to
// search either way, so a cleanup failure is logged, not returned.
func (p *Pipeline) DeleteDocument(ctx context.Context, documentID string) error {
	doc, err := p.docs.GetByID(ctx, documentID)
	if err != nil {
		return err
	}

	if err := p.docs.Delete(ctx, doc.ID); err != nil {
		return err
	}

	rt, err := p.resolveRuntime(ctx)
	if err != nil {
		p.logger.Warn("document deleted but vector cleanup skipped",
			"document_id", doc.ID, "error", err)
		return nil
	}

	idx, err := p.openIndex(rt.backend, rt.indexPath, 0)
	if err != nil {
		p.logger.Warn("document deleted but vector index unavailable",
			"document_id", doc.ID, "error", err)
		return nil
	}
	defer func() { _ = idx.Close() }()

	if err := idx.DeleteByDocument(ctx, doc.ID); err != nil {
		p.logger.Warn("document deleted but vector cleanup failed",
			"document_id", doc.ID, "error", err)
	}
	return nil
}

// Compact rebuilds the configured vector index without its orphaned rows and
// returns how many were dropped.
func (p *Pipeline) Compact(ctx context.Context) (int, error) {
	rt, err := p.resolveRuntime(ctx)
	if err != nil {
		return 0, err
	}

	idx, err := p.openIndex(rt.backend, rt.indexPath, 0)
	if err != nil {
		return 0, err
	}
	defer func() { _ = idx.Close() }()

	compactor, ok := idx.(index.Compactor)
	if !ok {
		return 0, raglerr.New(raglerr.CodeIndexCompactFailure,
			"vector store backend does not support compaction",
			raglerr.FieldBackend(rt.backend))
	}

	return compactor.Compact(ctx)
}
