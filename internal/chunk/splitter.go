// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contextd Contributors

// Package chunk splits raw document text into bounded, overlapping
// segments suitable for embedding and indexing.
package chunk

import (
	"strings"

	cerr "github.com/contextd-dev/contextd/pkg/errors"
)

// Splitter produces overlapping chunks of at most ChunkSize runes.
// The last Overlap runes of each chunk are repeated as the prefix of the
// next chunk so that context spanning a boundary survives retrieval.
type Splitter struct {
	chunkSize int
	overlap   int
}

// NewSplitter validates the bounds 0 <= overlap < chunkSize.
func NewSplitter(chunkSize, overlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, cerr.Errorf(cerr.CodeChunkConfigInvalid, "chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, cerr.Errorf(cerr.CodeChunkConfigInvalid, "overlap must be in [0, %d), got %d", chunkSize, overlap)
	}
	return &Splitter{chunkSize: chunkSize, overlap: overlap}, nil
}

// ChunkSize returns the configured maximum chunk length in runes.
func (s *Splitter) ChunkSize() int { return s.chunkSize }

// Overlap returns the configured overlap length in runes.
func (s *Splitter) Overlap() int { return s.overlap }

// Split cuts text into ordered chunks. Cuts land on a paragraph break,
// sentence end, or word boundary when one exists inside the lookback
// window (the trailing fifth of the chunk); otherwise the cut is hard at
// chunkSize. Non-empty input always yields at least one chunk.
func (s *Splitter) Split(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, cerr.New(cerr.CodeChunkDocumentEmpty, "document contains no text")
	}

	runes := []rune(text)
	if len(runes) <= s.chunkSize {
		return []string{text}, nil
	}

	lookback := s.chunkSize / 5
	var chunks []string

	start := 0
	for start < len(runes) {
		end := start + s.chunkSize
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		cut := s.findCut(runes, start, end, lookback)
		chunks = append(chunks, string(runes[start:cut]))

		next := cut - s.overlap
		if next <= start {
			// Overlap would stall the scan; drop it for this boundary.
			next = cut
		}
		start = next
	}

	return chunks, nil
}

// findCut returns the cut position in (start, end], preferring natural
// boundaries within the lookback window. The returned position is the
// index after the boundary so separators stay with the earlier chunk.
func (s *Splitter) findCut(runes []rune, start, end, lookback int) int {
	windowStart := end - lookback
	if windowStart <= start {
		windowStart = start + 1
	}
	window := string(runes[windowStart:end])

	for _, boundary := range []string{"\n\n", ". ", "! ", "? ", "\n"} {
		if idx := strings.LastIndex(window, boundary); idx >= 0 {
			return windowStart + len([]rune(window[:idx])) + len([]rune(boundary))
		}
	}
	if idx := strings.LastIndex(window, " "); idx >= 0 {
		return windowStart + len([]rune(window[:idx])) + 1
	}
	return end
}
