// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Raglane Contributors

// Package chunker splits extracted document text into bounded, overlapping
// windows suitable for embedding. Splitting is deterministic: concatenating
// the emitted chunks with the declared overlaps removed reproduces the input
// text exactly.
package chunker

import (
	"strings"

	raglerr "github.com/raglane-dev/raglane/pkg/errors"
)

const (
	// DefaultChunkSize is the maximum chunk length in runes.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is the number of trailing runes from a chunk
	// repeated at the start of its successor.
	DefaultChunkOverlap = 200
)

// defaultSeparators is the boundary precedence order: paragraph break, line
// break, sentence end, word break, then a hard rune split.
var defaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Chunk is one text window plus its position within the document.
type Chunk struct {
	Text         string
	DocumentName string
	Index        int
	TotalChunks  int
}

// Chunker splits text into windows of at most Size runes with Overlap runes
// of shared context between consecutive windows.
type Chunker struct {
	size       int
	overlap    int
	separators []string
}

// New creates a Chunker. Overlap must be non-negative and strictly smaller
// than size.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, raglerr.Errorf(raglerr.CodeChunkInvalidConfig, "chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return nil, raglerr.Errorf(raglerr.CodeChunkInvalidConfig, "chunk overlap must be non-negative, got %d", overlap)
	}
	if overlap >= size {
		return nil, raglerr.Errorf(raglerr.CodeChunkInvalidConfig,
			"chunk overlap (%d) must be smaller than chunk size (%d)", overlap, size)
	}

	return &Chunker{size: size, overlap: overlap, separators: defaultSeparators}, nil
}

// Default returns a Chunker with the default size and overlap.
func Default() *Chunker {
	c, _ := New(DefaultChunkSize, DefaultChunkOverlap)
	return c
}

// Size returns the maximum chunk length in runes.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the number of runes shared between consecutive chunks.
func (c *Chunker) Overlap() int { return c.overlap }

// Split returns the ordered chunk texts for the input. Empty input yields
// no chunks; input at most Size runes long yields exactly one.
func (c *Chunker) Split(text string) []string {
	if text == "" {
		return nil
	}

	// threshold is the largest piece guaranteed to fit a chunk that already
	// carries its overlap prefix.
	threshold := c.size - c.overlap

	pieces := c.split(text, c.separators, threshold)

	var chunks []string
	var buf []rune
	prefixLen := 0

	flush := func() {
		chunks = append(chunks, string(buf))
		tail := buf
		if len(tail) > c.overlap {
			tail = tail[len(tail)-c.overlap:]
		}
		next := make([]rune, len(tail))
		copy(next, tail)
		buf = next
		prefixLen = len(next)
	}

	for _, piece := range pieces {
		p := []rune(piece)
		for len(p) > 0 {
			capacity := c.size - len(buf)

			if capacity >= len(p) {
				buf = append(buf, p...)
				break
			}

			// A run with no separator boundaries is sliced to fill the
			// remaining capacity exactly.
			if len(p) > threshold && capacity > 0 {
				buf = append(buf, p[:capacity]...)
				p = p[capacity:]
				flush()
				continue
			}

			// Piece fits an empty chunk but not this one.
			flush()
		}
	}

	// A trailing buffer holding only the overlap prefix carries no new
	// content and must not be emitted.
	if len(buf) > prefixLen {
		chunks = append(chunks, string(buf))
	}

	return chunks
}

// SplitWithMetadata splits text and attaches positional metadata to every
// chunk.
func (c *Chunker) SplitWithMetadata(text, documentName string) []Chunk {
	texts := c.Split(text)
	if len(texts) == 0 {
		return nil
	}

	chunks := make([]Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = Chunk{
			Text:         t,
			DocumentName: documentName,
			Index:        i,
			TotalChunks:  len(texts),
		}
	}
	return chunks
}

// split recursively divides text on the highest-precedence separator,
// descending to finer separators for pieces still above the threshold.
// Separators stay attached to the preceding piece so concatenating all
// pieces reproduces the input.
func (c *Chunker) split(text string, separators []string, threshold int) []string {
	if runeLen(text) <= threshold {
		return []string{text}
	}
	if len(separators) == 0 || separators[0] == "" {
		// Hard split is deferred to the packing stage, which slices the
		// run to the exact remaining chunk capacity.
		return []string{text}
	}

	sep := separators[0]
	parts := strings.SplitAfter(text, sep)

	var out []string
	for _, part := range parts {
		if part == "" {
			continue
		}
		if runeLen(part) <= threshold {
			out = append(out, part)
			continue
		}
		out = append(out, c.split(part, separators[1:], threshold)...)
	}
	return out
}

func runeLen(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}
