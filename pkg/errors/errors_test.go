// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Raglane Contributors

package errors_test

import (
	stderrors "errors"
	"net/http"
	"testing"

	raglerr "github.com/raglane-dev/raglane/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIncludesCodeAndFields(t *testing.T) {
	err := raglerr.New(
		raglerr.CodeIngestConfigInvalid,
		"invalid embedding configuration",
		raglerr.FieldDocumentID("doc-123"),
		raglerr.Field("provider", "openai"),
	)

	require.Error(t, err)
	assert.Equal(t, raglerr.CodeIngestConfigInvalid, raglerr.CodeOf(err))
	assert.True(t, raglerr.HasCode(err, raglerr.CodeIngestConfigInvalid))

	fields := raglerr.FieldsOf(err)
	assert.Equal(t, "doc-123", fields["document_id"])
	assert.Equal(t, "openai", fields["provider"])
}

func TestErrorfFormatsMessage(t *testing.T) {
	err := raglerr.Errorf(raglerr.CodeIndexDimensionMismatch, "expected %d dimensions, got %d", 1536, 768)
	require.Error(t, err)
	assert.Equal(t, raglerr.CodeIndexDimensionMismatch, raglerr.CodeOf(err))
	assert.Contains(t, err.Error(), "expected 1536 dimensions, got 768")
}

func TestWrapPreservesWrappedErrorAndCode(t *testing.T) {
	root := stderrors.New("no such row")
	err := raglerr.Wrap(
		root,
		raglerr.CodeStoreDocumentNotFound,
		"loading document",
		raglerr.FieldDocumentID("doc-42"),
	)

	require.Error(t, err)
	assert.ErrorIs(t, err, root)
	assert.Equal(t, raglerr.CodeStoreDocumentNotFound, raglerr.CodeOf(err))
	assert.True(t, raglerr.IsNotFound(err))
	assert.Equal(t, "doc-42", raglerr.FieldsOf(err)["document_id"])
}

func TestWrapOverridesInnerCode(t *testing.T) {
	inner := raglerr.New(raglerr.CodeSecretNotFound, "secret missing")
	err := raglerr.Wrap(inner, raglerr.CodeSecretResolveFailure, "resolving api key")

	require.Error(t, err)
	assert.Equal(t, raglerr.CodeSecretResolveFailure, raglerr.CodeOf(err))
	assert.True(t, raglerr.HasCode(err, raglerr.CodeSecretResolveFailure))
	assert.False(t, raglerr.IsNotFound(err))
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "secret missing")
}

func TestWrapfOverridesInnerCode(t *testing.T) {
	inner := raglerr.New(raglerr.CodeExtractUnsupportedFormat, "unsupported document format")
	err := raglerr.Wrapf(inner, raglerr.CodeIngestExtractFailure, "extracting text from %s", "tool.exe")

	assert.Equal(t, raglerr.CodeIngestExtractFailure, raglerr.CodeOf(err))
	assert.Equal(t, http.StatusInternalServerError, raglerr.HTTPStatus(err))
}

func TestWithKeepsEffectiveCode(t *testing.T) {
	inner := raglerr.Wrap(
		raglerr.New(raglerr.CodeEmbeddingUpstreamFailure, "rate limited"),
		raglerr.CodeIngestEmbedFailure, "embedding document chunks")

	err := raglerr.With(inner, raglerr.FieldDocumentID("doc-7"))
	assert.Equal(t, raglerr.CodeIngestEmbedFailure, raglerr.CodeOf(err))
	assert.Equal(t, "doc-7", raglerr.FieldsOf(err)["document_id"])
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, raglerr.Wrap(nil, raglerr.CodeStoreDatabaseFailure, "ignored"))
	assert.NoError(t, raglerr.Wrapf(nil, raglerr.CodeStoreDatabaseFailure, "ignored %d", 1))
	assert.NoError(t, raglerr.With(nil, raglerr.Field("k", "v")))
}

func TestClassificationPredicates(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"not found", raglerr.New(raglerr.CodeStoreDocumentNotFound, "x"), raglerr.IsNotFound},
		{"conflict", raglerr.New(raglerr.CodeStoreDocumentDuplicateHash, "x"), raglerr.IsConflict},
		{"invalid input", raglerr.New(raglerr.CodeIndexDimensionMismatch, "x"), raglerr.IsInvalidInput},
		{"invalid value", raglerr.New(raglerr.CodeIngestConfigInvalid, "x"), raglerr.IsInvalidInput},
		{"not implemented", raglerr.New(raglerr.CodeEmbeddingProviderNotImplemented, "x"), raglerr.IsNotImplemented},
		{"upstream", raglerr.New(raglerr.CodeEmbeddingUpstreamFailure, "x"), raglerr.IsUpstreamFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
		})
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", raglerr.New(raglerr.CodeStoreDocumentNotFound, "x"), http.StatusNotFound},
		{"conflict", raglerr.New(raglerr.CodeStoreDocumentDuplicateHash, "x"), http.StatusConflict},
		{"invalid", raglerr.New(raglerr.CodeServerRequestInvalid, "x"), http.StatusBadRequest},
		{"not implemented", raglerr.New(raglerr.CodeEmbeddingProviderNotImplemented, "x"), http.StatusNotImplemented},
		{"upstream", raglerr.New(raglerr.CodeEmbeddingUpstreamFailure, "x"), http.StatusBadGateway},
		{"fallback", raglerr.New(raglerr.CodeStoreDatabaseFailure, "x"), http.StatusInternalServerError},
		{"plain error", stderrors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, raglerr.HTTPStatus(tt.err))
		})
	}
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, raglerr.Code(""), raglerr.CodeOf(stderrors.New("plain")))
	assert.Equal(t, raglerr.Code(""), raglerr.CodeOf(nil))
}
