// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Raglane Contributors

// Package store defines the document registry and runtime settings store,
// plus the backend registry that selects their implementation.
package store

import (
	"context"
	"time"
)

// Status is a document's lifecycle state. A document is created in
// StatusProcessing and transitions exactly once, to StatusCompleted or
// StatusFailed.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Document is one registered upload, identified by the sha256 hash of its
// raw content. The hash is unique across the registry and drives ingestion
// dedup.
type Document struct {
	ID           string
	Filename     string
	Hash         string
	Status       Status
	ChunkCount   int
	ErrorMessage string
	CreatedAt    time.Time
}

// DocumentStore is the registry of ingested documents.
type DocumentStore interface {
	// Insert registers a new document. A hash collision with an existing
	// record fails with a conflict error.
	Insert(ctx context.Context, doc *Document) error

	// GetByID returns the document or a not_found error.
	GetByID(ctx context.Context, id string) (*Document, error)

	// GetByHash returns the document with the given content hash, or a
	// not_found error.
	GetByHash(ctx context.Context, hash string) (*Document, error)

	// UpdateStatus finalizes a document's lifecycle state, recording the
	// chunk count on success or the error message on failure.
	UpdateStatus(ctx context.Context, id string, status Status, chunkCount int, errorMessage string) error

	// List returns all documents, newest first.
	List(ctx context.Context) ([]*Document, error)

	// Delete removes the document record, or fails with not_found.
	Delete(ctx context.Context, id string) error

	Close() error
}

// SettingsStore holds runtime configuration as a key/value table, written
// through the config API and read at the start of every ingestion.
type SettingsStore interface {
	// Get returns the stored value for key, or a not_found error.
	Get(ctx context.Context, key string) (string, error)

	// Set inserts or overwrites the value for key.
	Set(ctx context.Context, key, value string) error

	// All returns every stored key/value pair.
	All(ctx context.Context) (map[string]string, error)

	Close() error
}

// Settings keys consumed by the ingestion pipeline.
const (
	SettingEmbeddingProvider = "embedding_provider"
	SettingEmbeddingModel    = "embedding_model"
	SettingEmbeddingAPIKey   = "embedding_api_key"
	SettingVectorStore       = "vector_store"
	SettingVectorDBPath      = "vector_db_path"
)
