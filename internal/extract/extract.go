// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Raglane Contributors

// Package extract converts uploaded document bytes into plain text for the
// ingestion pipeline.
package extract

import (
	"context"
	"path/filepath"
	"strings"
	"unicode/utf8"

	raglerr "github.com/raglane-dev/raglane/pkg/errors"
)

// Extractor converts raw document bytes into extracted text.
type Extractor interface {
	Extract(ctx context.Context, data []byte, filename string) (string, error)
}

// Compile-time interface check.
var _ Extractor = (*FileExtractor)(nil)

// FileExtractor dispatches on file extension: PDF documents go through the
// PDF reader, text-like formats pass through after UTF-8 validation.
type FileExtractor struct{}

// New creates a FileExtractor.
func New() *FileExtractor {
	return &FileExtractor{}
}

// Extract returns the document's text content.
func (e *FileExtractor) Extract(ctx context.Context, data []byte, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return extractPDF(ctx, data)
	case ".txt", ".md", ".markdown", ".text", ".csv", ".log":
		if !utf8.Valid(data) {
			return "", raglerr.Errorf(raglerr.CodeExtractParseFailure, "%s is not valid UTF-8 text", filename)
		}
		return string(data), nil
	default:
		return "", raglerr.New(raglerr.CodeExtractUnsupportedFormat,
			"unsupported document format", raglerr.Field("filename", filename), raglerr.Field("extension", ext))
	}
}
