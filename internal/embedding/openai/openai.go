// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Raglane Contributors

// Package openai implements the embedding gateway against the OpenAI
// embeddings API, and against DeepInfra's OpenAI-compatible endpoint.
package openai

import (
	"context"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	raglerr "github.com/raglane-dev/raglane/pkg/errors"
)

const (
	deepInfraBaseURL = "https://api.deepinfra.com/v1/openai"

	// maxBatchInputs is the OpenAI embeddings API input limit per request.
	// Larger batches are split transparently.
	maxBatchInputs = 2048
)

const (
	defaultOpenAIModel    = "text-embedding-3-small"
	defaultDeepInfraModel = "BAAI/bge-base-en-v1.5"
)

// openaiDimensions maps OpenAI embedding models to their vector dimension.
var openaiDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// deepInfraDimensions maps DeepInfra-hosted models to their vector dimension.
var deepInfraDimensions = map[string]int{
	"BAAI/bge-base-en-v1.5":                  768,
	"BAAI/bge-large-en-v1.5":                 1024,
	"BAAI/bge-small-en-v1.5":                 384,
	"sentence-transformers/all-MiniLM-L6-v2": 384,
}

// Config holds credentials and model selection for the gateway.
type Config struct {
	APIKey string
	Model  string
}

// Client is an embedding gateway backed by an OpenAI-compatible API.
type Client struct {
	client    openaisdk.Client
	provider  string
	model     string
	dimension int
}

// New creates an OpenAI embedding gateway. The API key is required.
func New(cfg Config) (*Client, error) {
	return newClient(cfg, "openai", "", defaultOpenAIModel, openaiDimensions, 1536)
}

// NewDeepInfra creates a gateway against DeepInfra's OpenAI-compatible
// embeddings endpoint.
func NewDeepInfra(cfg Config) (*Client, error) {
	return newClient(cfg, "deepinfra", deepInfraBaseURL, defaultDeepInfraModel, deepInfraDimensions, 768)
}

func newClient(cfg Config, provider, baseURL, defaultModel string, dims map[string]int, fallbackDim int) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, raglerr.New(raglerr.CodeIngestConfigInvalid,
			"missing API key for embedding provider", raglerr.FieldProvider(provider))
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	dimension, ok := dims[model]
	if !ok {
		dimension = fallbackDim
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &Client{
		client:    openaisdk.NewClient(opts...),
		provider:  provider,
		model:     model,
		dimension: dimension,
	}, nil
}

// Provider returns the configured provider name.
func (c *Client) Provider() string { return c.provider }

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Dimension returns the vector dimension for the configured model without
// any network round trip.
func (c *Client) Dimension() int { return c.dimension }

// Embed returns the embedding vector for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, raglerr.Errorf(raglerr.CodeEmbeddingResponseInvalid,
			"expected 1 embedding, got %d", len(vectors))
	}
	return vectors[0], nil
}

// EmbedBatch embeds all texts, splitting into sub-batches above the API's
// per-request input limit. Output order matches input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatchInputs {
		end := min(start+maxBatchInputs, len(texts))

		vectors, err := c.embedRequest(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (c *Client) embedRequest(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := c.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openaisdk.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, raglerr.Wrap(err, raglerr.CodeEmbeddingUpstreamFailure,
			"embeddings request failed", raglerr.FieldProvider(c.provider), raglerr.Field("model", c.model))
	}

	if len(resp.Data) != len(texts) {
		return nil, raglerr.Errorf(raglerr.CodeEmbeddingResponseInvalid,
			"expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	// The API reports each embedding's input position; order by it rather
	// than trusting response order.
	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || int(item.Index) >= len(texts) {
			return nil, raglerr.Errorf(raglerr.CodeEmbeddingResponseInvalid,
				"embedding index %d out of range", item.Index)
		}
		vec := make([]float32, len(item.Embedding))
		for i, v := range item.Embedding {
			vec[i] = float32(v)
		}
		vectors[item.Index] = vec
	}
	return vectors, nil
}
