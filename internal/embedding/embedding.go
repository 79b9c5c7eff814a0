// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Raglane Contributors

// Package embedding abstracts interchangeable embedding backends behind a
// single gateway interface. Backends are selected by provider name at
// construction time; a backend that cannot be constructed (missing
// credentials, unimplemented provider) fails immediately rather than on
// first call.
package embedding

import (
	"context"

	"github.com/raglane-dev/raglane/internal/embedding/google"
	"github.com/raglane-dev/raglane/internal/embedding/openai"
	raglerr "github.com/raglane-dev/raglane/pkg/errors"
)

// Gateway produces fixed-dimension vectors from text. Output length and
// order of EmbedBatch match the input. Dimension never performs network I/O.
type Gateway interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Provider() string
	Model() string
}

// Known provider names. The set is closed: anything else fails at
// construction with a named error.
const (
	ProviderOpenAI      = "openai"
	ProviderDeepInfra   = "deepinfra"
	ProviderGoogle      = "google"
	ProviderCohere      = "cohere"
	ProviderVoyage      = "voyage"
	ProviderHuggingFace = "huggingface"
)

// Compile-time interface checks for the backend implementations.
var (
	_ Gateway = (*openai.Client)(nil)
	_ Gateway = (*google.Client)(nil)
)

// Config selects and configures a backend.
type Config struct {
	Provider string
	Model    string
	APIKey   string
}

// New constructs the gateway for cfg.Provider. Declared-but-unimplemented
// providers fail with embedding.provider.not_implemented; unknown names fail
// with embedding.provider.not_found.
func New(ctx context.Context, cfg Config) (Gateway, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		return openai.New(openai.Config{APIKey: cfg.APIKey, Model: cfg.Model})
	case ProviderDeepInfra:
		return openai.NewDeepInfra(openai.Config{APIKey: cfg.APIKey, Model: cfg.Model})
	case ProviderGoogle:
		return google.New(ctx, google.Config{APIKey: cfg.APIKey, Model: cfg.Model})
	case ProviderCohere, ProviderVoyage, ProviderHuggingFace:
		return nil, raglerr.New(raglerr.CodeEmbeddingProviderNotImplemented,
			"embedding provider is not implemented yet", raglerr.FieldProvider(cfg.Provider))
	default:
		return nil, raglerr.New(raglerr.CodeEmbeddingProviderUnknown,
			"unknown embedding provider", raglerr.FieldProvider(cfg.Provider))
	}
}
