// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Raglane Contributors

package extract

import (
	"bytes"
	"context"
	"strings"

	"github.com/ledongthuc/pdf"

	raglerr "github.com/raglane-dev/raglane/pkg/errors"
)

// extractPDF reads every page of the document and joins page texts with
// paragraph breaks so the chunker can split on them.
func extractPDF(ctx context.Context, data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", raglerr.Wrap(err, raglerr.CodeExtractParseFailure, "opening pdf")
	}

	var b strings.Builder
	fonts := make(map[string]*pdf.Font)

	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", raglerr.Wrap(err, raglerr.CodeExtractParseFailure, "pdf extraction cancelled")
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(fonts)
		if err != nil {
			return "", raglerr.Wrapf(err, raglerr.CodeExtractParseFailure, "extracting text from page %d", i)
		}

		if b.Len() > 0 && text != "" {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}

	return b.String(), nil
}
