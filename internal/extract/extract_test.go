// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Raglane Contributors

package extract_test

import (
	"context"
	"testing"

	"github.com/raglane-dev/raglane/internal/extract"
	raglerr "github.com/raglane-dev/raglane/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPlainText(t *testing.T) {
	e := extract.New()

	tests := []struct {
		name     string
		filename string
	}{
		{"txt", "notes.txt"},
		{"markdown", "README.md"},
		{"uppercase extension", "NOTES.TXT"},
		{"csv", "data.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := e.Extract(context.Background(), []byte("hello world"), tt.filename)
			require.NoError(t, err)
			assert.Equal(t, "hello world", text)
		})
	}
}

func TestExtractRejectsInvalidUTF8(t *testing.T) {
	e := extract.New()

	_, err := e.Extract(context.Background(), []byte{0xff, 0xfe, 0xfd}, "broken.txt")
	require.Error(t, err)
	assert.True(t, raglerr.HasCode(err, raglerr.CodeExtractParseFailure))
}

func TestExtractUnsupportedFormat(t *testing.T) {
	e := extract.New()

	_, err := e.Extract(context.Background(), []byte("binary"), "image.png")
	require.Error(t, err)
	assert.True(t, raglerr.HasCode(err, raglerr.CodeExtractUnsupportedFormat))
	assert.True(t, raglerr.IsInvalidInput(err))
}

func TestExtractMalformedPDF(t *testing.T) {
	e := extract.New()

	_, err := e.Extract(context.Background(), []byte("not a pdf at all"), "doc.pdf")
	require.Error(t, err)
	assert.True(t, raglerr.HasCode(err, raglerr.CodeExtractParseFailure))
}
