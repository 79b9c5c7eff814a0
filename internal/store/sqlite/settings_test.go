// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Raglane Contributors

package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raglane-dev/raglane/internal/store"
	storesqlite "github.com/raglane-dev/raglane/internal/store/sqlite"
	raglerr "github.com/raglane-dev/raglane/pkg/errors"
)

func newSettingsStore(t *testing.T) *storesqlite.SettingsStore {
	t.Helper()

	ss, err := storesqlite.NewSettingsStore(filepath.Join(t.TempDir(), "raglane.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })
	return ss
}

func TestSetAndGet(t *testing.T) {
	ctx := context.Background()
	ss := newSettingsStore(t)

	require.NoError(t, ss.Set(ctx, store.SettingEmbeddingProvider, "openai"))

	got, err := ss.Get(ctx, store.SettingEmbeddingProvider)
	require.NoError(t, err)
	assert.Equal(t, "openai", got)
}

func TestSetOverwrites(t *testing.T) {
	ctx := context.Background()
	ss := newSettingsStore(t)

	require.NoError(t, ss.Set(ctx, store.SettingEmbeddingModel, "text-embedding-3-small"))
	require.NoError(t, ss.Set(ctx, store.SettingEmbeddingModel, "text-embedding-3-large"))

	got, err := ss.Get(ctx, store.SettingEmbeddingModel)
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-large", got)
}

func TestGetMissingKey(t *testing.T) {
	ss := newSettingsStore(t)

	_, err := ss.Get(context.Background(), "no_such_key")
	require.Error(t, err)
	assert.True(t, raglerr.HasCode(err, raglerr.CodeStoreSettingNotFound))
	assert.True(t, raglerr.IsNotFound(err))
}

func TestSetEmptyKeyRejected(t *testing.T) {
	ss := newSettingsStore(t)

	err := ss.Set(context.Background(), "", "value")
	require.Error(t, err)
	assert.True(t, raglerr.IsInvalidInput(err))
}

func TestAllReturnsEveryPair(t *testing.T) {
	ctx := context.Background()
	ss := newSettingsStore(t)

	require.NoError(t, ss.Set(ctx, store.SettingEmbeddingProvider, "google"))
	require.NoError(t, ss.Set(ctx, store.SettingVectorStore, "flat"))

	all, err := ss.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		store.SettingEmbeddingProvider: "google",
		store.SettingVectorStore:       "flat",
	}, all)
}

func TestBackendFactoryCreatesBothStores(t *testing.T) {
	ctx := context.Background()

	docs, settings, err := store.NewStores("sqlite", t.TempDir())
	require.NoError(t, err)
	defer func() { _ = docs.Close() }()

	require.NoError(t, settings.Set(ctx, store.SettingVectorStore, "sqlite"))

	got, err := settings.Get(ctx, store.SettingVectorStore)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", got)
}
