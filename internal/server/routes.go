// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Raglane Contributors

package server

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/raglane-dev/raglane/internal/embedding"
	"github.com/raglane-dev/raglane/internal/index"
	"github.com/raglane-dev/raglane/internal/ingest"
	"github.com/raglane-dev/raglane/internal/secrets"
	"github.com/raglane-dev/raglane/internal/store"
	raglerr "github.com/raglane-dev/raglane/pkg/errors"
)

// Ingestor is the pipeline surface the API depends on.
type Ingestor interface {
	Run(ctx context.Context, data []byte, filename string) (*ingest.Result, error)
	Search(ctx context.Context, query string, topK int) ([]index.Result, error)
	DeleteDocument(ctx context.Context, documentID string) error
	Compact(ctx context.Context) (int, error)
}

// Services holds the dependencies behind the REST routes.
type Services struct {
	Pipeline  Ingestor
	Documents store.DocumentStore
	Settings  store.SettingsStore
}

// RegisterServices sets the service dependencies and registers REST routes.
func (s *Server) RegisterServices(svc *Services) {
	s.services = svc
	s.registerRoutes()
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "ingest-document",
		Method:      http.MethodPost,
		Path:        "/api/v1/ingest",
		Summary:     "Upload and index a document",
		Tags:        []string{"documents"},
	}, s.handleIngest)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-documents",
		Method:      http.MethodGet,
		Path:        "/api/v1/documents",
		Summary:     "List registered documents",
		Tags:        []string{"documents"},
	}, s.handleListDocuments)

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-document",
		Method:      http.MethodDelete,
		Path:        "/api/v1/documents/{id}",
		Summary:     "Delete a document and its vectors",
		Tags:        []string{"documents"},
	}, s.handleDeleteDocument)

	huma.Register(s.api, huma.Operation{
		OperationID: "search",
		Method:      http.MethodPost,
		Path:        "/api/v1/search",
		Summary:     "Search indexed chunks",
		Tags:        []string{"search"},
	}, s.handleSearch)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-config",
		Method:      http.MethodGet,
		Path:        "/api/v1/config",
		Summary:     "Read ingestion settings",
		Tags:        []string{"config"},
	}, s.handleGetConfig)

	huma.Register(s.api, huma.Operation{
		OperationID: "update-config",
		Method:      http.MethodPost,
		Path:        "/api/v1/config",
		Summary:     "Update ingestion settings",
		Tags:        []string{"config"},
	}, s.handleUpdateConfig)

	huma.Register(s.api, huma.Operation{
		OperationID: "compact-index",
		Method:      http.MethodPost,
		Path:        "/api/v1/index/compact",
		Summary:     "Rebuild the vector index without orphaned rows",
		Tags:        []string{"index"},
	}, s.handleCompact)
}

// mapError converts a pipeline error to a huma status error, using the
// error code taxonomy to pick the HTTP status.
func mapError(err error) error {
	return huma.NewError(raglerr.HTTPStatus(err), err.Error())
}

// --- Request/Response types for huma ---

type ingestFormData struct {
	File huma.FormFile `form:"file" required:"true"`
}

type ingestInput struct {
	RawBody huma.MultipartFormFiles[ingestFormData]
}

type ingestOutput struct {
	Body struct {
		DocumentID        string `json:"document_id" doc:"Registry id of the document"`
		Filename          string `json:"filename"`
		ChunkCount        int    `json:"chunk_count"`
		AlreadyIndexed    bool   `json:"already_indexed" doc:"True when identical content was ingested before"`
		EmbeddingProvider string `json:"embedding_provider,omitempty"`
		EmbeddingModel    string `json:"embedding_model,omitempty"`
		VectorStore       string `json:"vector_store,omitempty"`
	}
}

type documentSummary struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	Status       string    `json:"status" enum:"processing,completed,failed"`
	ChunkCount   int       `json:"chunk_count"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type listDocumentsOutput struct {
	Body struct {
		Documents []documentSummary `json:"documents"`
	}
}

type documentIDInput struct {
	ID string `path:"id"`
}

type deleteDocumentOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

type searchInput struct {
	Body struct {
		Query string `json:"query" minLength:"1" doc:"Search query text"`
		TopK  int    `json:"top_k,omitempty" minimum:"0" maximum:"100" doc:"Number of results, default 5"`
	}
}

type searchResult struct {
	Score        float64 `json:"score" doc:"Raw squared L2 distance, lower is closer"`
	Text         string  `json:"text"`
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	ChunkIndex   int     `json:"chunk_index"`
}

type searchOutput struct {
	Body struct {
		Results []searchResult `json:"results"`
	}
}

type getConfigOutput struct {
	Body struct {
		Settings map[string]string `json:"settings"`
	}
}

type updateConfigInput struct {
	Body struct {
		EmbeddingProvider *string `json:"embedding_provider,omitempty"`
		EmbeddingModel    *string `json:"embedding_model,omitempty"`
		EmbeddingAPIKey   *string `json:"embedding_api_key,omitempty" doc:"Plaintext key or keyring://service/key URI"`
		VectorStore       *string `json:"vector_store,omitempty" enum:"flat,sqlite"`
		VectorDBPath      *string `json:"vector_db_path,omitempty"`
	}
}

type updateConfigOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

type compactOutput struct {
	Body struct {
		Removed int `json:"removed" doc:"Orphaned vector rows dropped"`
	}
}

// --- Handlers ---

func (s *Server) handleIngest(ctx context.Context, input *ingestInput) (*ingestOutput, error) {
	form := input.RawBody.Data()
	if !form.File.IsSet {
		return nil, huma.Error400BadRequest("file field is required")
	}

	data, err := io.ReadAll(form.File)
	if err != nil {
		return nil, huma.Error400BadRequest("reading uploaded file", err)
	}

	res, err := s.services.Pipeline.Run(ctx, data, form.File.Filename)
	if err != nil {
		return nil, mapError(err)
	}

	out := &ingestOutput{}
	out.Body.DocumentID = res.DocumentID
	out.Body.Filename = res.Filename
	out.Body.ChunkCount = res.ChunkCount
	out.Body.AlreadyIndexed = res.AlreadyIndexed
	out.Body.EmbeddingProvider = res.EmbeddingProvider
	out.Body.EmbeddingModel = res.EmbeddingModel
	out.Body.VectorStore = res.VectorStore
	return out, nil
}

func (s *Server) handleListDocuments(ctx context.Context, _ *struct{}) (*listDocumentsOutput, error) {
	docs, err := s.services.Documents.List(ctx)
	if err != nil {
		return nil, mapError(err)
	}

	out := &listDocumentsOutput{}
	out.Body.Documents = make([]documentSummary, 0, len(docs))
	for _, doc := range docs {
		out.Body.Documents = append(out.Body.Documents, documentSummary{
			ID:           doc.ID,
			Filename:     doc.Filename,
			Status:       string(doc.Status),
			ChunkCount:   doc.ChunkCount,
			ErrorMessage: doc.ErrorMessage,
			CreatedAt:    doc.CreatedAt,
		})
	}
	return out, nil
}

func (s *Server) handleDeleteDocument(ctx context.Context, input *documentIDInput) (*deleteDocumentOutput, error) {
	if err := s.services.Pipeline.DeleteDocument(ctx, input.ID); err != nil {
		return nil, mapError(err)
	}

	out := &deleteDocumentOutput{}
	out.Body.Status = "deleted"
	return out, nil
}

func (s *Server) handleSearch(ctx context.Context, input *searchInput) (*searchOutput, error) {
	results, err := s.services.Pipeline.Search(ctx, input.Body.Query, input.Body.TopK)
	if err != nil {
		return nil, mapError(err)
	}

	out := &searchOutput{}
	out.Body.Results = make([]searchResult, 0, len(results))
	for _, r := range results {
		out.Body.Results = append(out.Body.Results, searchResult{
			Score:        r.Score,
			Text:         metaString(r.Metadata, "text"),
			DocumentID:   metaString(r.Metadata, "document_id"),
			DocumentName: metaString(r.Metadata, "document_name"),
			ChunkIndex:   metaInt(r.Metadata, "chunk_index"),
		})
	}
	return out, nil
}

func (s *Server) handleGetConfig(ctx context.Context, _ *struct{}) (*getConfigOutput, error) {
	settings, err := s.services.Settings.All(ctx)
	if err != nil {
		return nil, mapError(err)
	}

	// Plaintext keys never leave the server. Keyring URIs are references,
	// not secrets, and stay readable.
	if key, ok := settings[store.SettingEmbeddingAPIKey]; ok && key != "" && !secrets.IsKeyringURI(key) {
		settings[store.SettingEmbeddingAPIKey] = "********"
	}

	out := &getConfigOutput{}
	out.Body.Settings = settings
	return out, nil
}

func (s *Server) handleUpdateConfig(ctx context.Context, input *updateConfigInput) (*updateConfigOutput, error) {
	if p := input.Body.EmbeddingProvider; p != nil {
		if !knownProvider(*p) {
			return nil, huma.Error400BadRequest("unknown embedding provider: " + *p)
		}
		if err := s.services.Settings.Set(ctx, store.SettingEmbeddingProvider, *p); err != nil {
			return nil, mapError(err)
		}
	}
	if m := input.Body.EmbeddingModel; m != nil {
		if err := s.services.Settings.Set(ctx, store.SettingEmbeddingModel, *m); err != nil {
			return nil, mapError(err)
		}
	}
	if k := input.Body.EmbeddingAPIKey; k != nil {
		if err := s.services.Settings.Set(ctx, store.SettingEmbeddingAPIKey, *k); err != nil {
			return nil, mapError(err)
		}
	}
	if v := input.Body.VectorStore; v != nil {
		if err := s.services.Settings.Set(ctx, store.SettingVectorStore, *v); err != nil {
			return nil, mapError(err)
		}
	}
	if p := input.Body.VectorDBPath; p != nil {
		if err := s.services.Settings.Set(ctx, store.SettingVectorDBPath, *p); err != nil {
			return nil, mapError(err)
		}
	}

	out := &updateConfigOutput{}
	out.Body.Status = "updated"
	return out, nil
}

func (s *Server) handleCompact(ctx context.Context, _ *struct{}) (*compactOutput, error) {
	removed, err := s.services.Pipeline.Compact(ctx)
	if err != nil {
		return nil, mapError(err)
	}

	out := &compactOutput{}
	out.Body.Removed = removed
	return out, nil
}

func knownProvider(name string) bool {
	switch name {
	case embedding.ProviderOpenAI, embedding.ProviderDeepInfra, embedding.ProviderGoogle,
		embedding.ProviderCohere, embedding.ProviderVoyage, embedding.ProviderHuggingFace:
		return true
	default:
		return false
	}
}

func metaString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// metaInt reads a numeric metadata value. JSON round-trips turn ints into
// float64, so both arrive here depending on the index backend.
func metaInt(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
