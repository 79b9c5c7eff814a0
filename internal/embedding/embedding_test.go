// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Raglane Contributors

package embedding_test

import (
	"context"
	"testing"

	"github.com/raglane-dev/raglane/internal/embedding"
	raglerr "github.com/raglane-dev/raglane/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUnknownProvider(t *testing.T) {
	_, err := embedding.New(context.Background(), embedding.Config{Provider: "acme", APIKey: "k"})
	require.Error(t, err)
	assert.True(t, raglerr.HasCode(err, raglerr.CodeEmbeddingProviderUnknown))
}

func TestNewUnimplementedProvidersFailAtConstruction(t *testing.T) {
	for _, provider := range []string{
		embedding.ProviderCohere,
		embedding.ProviderVoyage,
		embedding.ProviderHuggingFace,
	} {
		t.Run(provider, func(t *testing.T) {
			_, err := embedding.New(context.Background(), embedding.Config{Provider: provider, APIKey: "k"})
			require.Error(t, err)
			assert.True(t, raglerr.HasCode(err, raglerr.CodeEmbeddingProviderNotImplemented))
			assert.True(t, raglerr.IsNotImplemented(err))
		})
	}
}

func TestNewMissingAPIKey(t *testing.T) {
	for _, provider := range []string{
		embedding.ProviderOpenAI,
		embedding.ProviderDeepInfra,
		embedding.ProviderGoogle,
	} {
		t.Run(provider, func(t *testing.T) {
			_, err := embedding.New(context.Background(), embedding.Config{Provider: provider})
			require.Error(t, err)
			assert.True(t, raglerr.HasCode(err, raglerr.CodeIngestConfigInvalid))
		})
	}
}

func TestDimensionIsStatic(t *testing.T) {
	tests := []struct {
		provider string
		model    string
		want     int
	}{
		{embedding.ProviderOpenAI, "text-embedding-3-small", 1536},
		{embedding.ProviderOpenAI, "text-embedding-3-large", 3072},
		{embedding.ProviderOpenAI, "", 1536},
		{embedding.ProviderOpenAI, "some-future-model", 1536},
		{embedding.ProviderDeepInfra, "BAAI/bge-base-en-v1.5", 768},
		{embedding.ProviderDeepInfra, "sentence-transformers/all-MiniLM-L6-v2", 384},
		{embedding.ProviderDeepInfra, "", 768},
	}

	for _, tt := range tests {
		t.Run(tt.provider+"/"+tt.model, func(t *testing.T) {
			gw, err := embedding.New(context.Background(), embedding.Config{
				Provider: tt.provider,
				Model:    tt.model,
				APIKey:   "test-key",
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, gw.Dimension())
			assert.Equal(t, tt.provider, gw.Provider())
		})
	}
}
