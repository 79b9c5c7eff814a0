// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Raglane Contributors

// Package google implements the embedding gateway against the Gemini API.
package google

import (
	"context"

	"google.golang.org/genai"

	raglerr "github.com/raglane-dev/raglane/pkg/errors"
)

const defaultModel = "text-embedding-004"

// modelDimensions maps Gemini embedding models to their vector dimension.
var modelDimensions = map[string]int{
	"text-embedding-004":   768,
	"gemini-embedding-001": 3072,
}

// Config holds credentials and model selection for the gateway.
type Config struct {
	APIKey string
	Model  string
}

// Client is an embedding gateway backed by the Gemini API.
type Client struct {
	client    *genai.Client
	model     string
	dimension int
}

// New creates a Gemini embedding gateway. The API key is required.
// Construction performs no network I/O.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, raglerr.New(raglerr.CodeIngestConfigInvalid,
			"missing API key for embedding provider", raglerr.FieldProvider("google"))
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	dimension, ok := modelDimensions[model]
	if !ok {
		dimension = 768
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, raglerr.Wrap(err, raglerr.CodeEmbeddingUpstreamFailure,
			"creating gemini client", raglerr.FieldProvider("google"))
	}

	return &Client{client: client, model: model, dimension: dimension}, nil
}

// Provider returns the provider name.
func (c *Client) Provider() string { return "google" }

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Dimension returns the vector dimension for the configured model.
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

// EmbedBatch embeds all texts in one request. Output order matches input
// order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	resp, err := c.client.Models.EmbedContent(ctx, c.model, contents, nil)
	if err != nil {
		return nil, raglerr.Wrap(err, raglerr.CodeEmbeddingUpstreamFailure,
			"embeddings request failed", raglerr.FieldProvider("google"), raglerr.Field("model", c.model))
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, raglerr.Errorf(raglerr.CodeEmbeddingResponseInvalid,
			"expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}

	vectors := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, raglerr.Errorf(raglerr.CodeEmbeddingResponseInvalid,
				"empty embedding at index %d", i)
		}
		vectors[i] = emb.Values
	}
	return vectors, nil
}
