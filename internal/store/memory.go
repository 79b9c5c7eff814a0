// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Raglane Contributors

package store

import (
	"context"
	"sort"
	"sync"

	raglerr "github.com/raglane-dev/raglane/pkg/errors"
)

func init() {
	RegisterBackend("memory", func(string) (DocumentStore, SettingsStore, error) {
		return NewMemoryDocumentStore(), NewMemorySettingsStore(), nil
	})
}

// Compile-time interface checks.
var (
	_ DocumentStore = (*MemoryDocumentStore)(nil)
	_ SettingsStore = (*MemorySettingsStore)(nil)
)

// MemoryDocumentStore is a non-persistent DocumentStore used by tests and
// the "memory" backend.
type MemoryDocumentStore struct {
	mu     sync.RWMutex
	byID   map[string]*Document
	byHash map[string]string // hash -> id
}

func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{
		byID:   map[string]*Document{},
		byHash: map[string]string{},
	}
}

func (s *MemoryDocumentStore) Insert(ctx context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byHash[doc.Hash]; exists {
		return raglerr.New(raglerr.CodeStoreDocumentDuplicateHash,
			"document with identical content already registered",
			raglerr.Field("hash", doc.Hash))
	}

	clone := *doc
	s.byID[doc.ID] = &clone
	s.byHash[doc.Hash] = doc.ID
	return nil
}

func (s *MemoryDocumentStore) GetByID(ctx context.Context, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.byID[id]
	if !ok {
		return nil, raglerr.New(raglerr.CodeStoreDocumentNotFound,
			"document not found", raglerr.FieldDocumentID(id))
	}

	clone := *doc
	return &clone, nil
}

func (s *MemoryDocumentStore) GetByHash(ctx context.Context, hash string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byHash[hash]
	if !ok {
		return nil, raglerr.New(raglerr.CodeStoreDocumentNotFound,
			"no document with matching content hash", raglerr.Field("hash", hash))
	}

	clone := *s.byID[id]
	return &clone, nil
}

func (s *MemoryDocumentStore) UpdateStatus(ctx context.Context, id string, status Status, chunkCount int, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.byID[id]
	if !ok {
		return raglerr.New(raglerr.CodeStoreDocumentNotFound,
			"document not found", raglerr.FieldDocumentID(id))
	}

	doc.Status = status
	doc.ChunkCount = chunkCount
	doc.ErrorMessage = errorMessage
	return nil
}

func (s *MemoryDocumentStore) List(ctx context.Context) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]*Document, 0, len(s.byID))
	for _, doc := range s.byID {
		clone := *doc
		docs = append(docs, &clone)
	}

	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.After(docs[j].CreatedAt)
		}
		return docs[i].ID > docs[j].ID
	})
	return docs, nil
}

func (s *MemoryDocumentStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.byID[id]
	if !ok {
		return raglerr.New(raglerr.CodeStoreDocumentNotFound,
			"document not found", raglerr.FieldDocumentID(id))
	}

	delete(s.byHash, doc.Hash)
	delete(s.byID, id)
	return nil
}

func (s *MemoryDocumentStore) Close() error { return nil }

// MemorySettingsStore is a non-persistent SettingsStore.
type MemorySettingsStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemorySettingsStore() *MemorySettingsStore {
	return &MemorySettingsStore{values: map[string]string{}}
}

func (s *MemorySettingsStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	if !ok {
		return "", raglerr.New(raglerr.CodeStoreSettingNotFound,
			"setting not found", raglerr.Field("key", key))
	}
	return value, nil
}

func (s *MemorySettingsStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return raglerr.New(raglerr.CodeStoreInvalidInput, "setting key must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemorySettingsStore) All(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out, nil
}

func (s *MemorySettingsStore) Close() error { return nil }
