// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contextd Contributors

// Package retrieval answers similarity queries against the vector index.
package retrieval

import (
	"context"
	"log/slog"
	"strings"

	"github.com/contextd-dev/contextd/internal/embed"
	"github.com/contextd-dev/contextd/internal/store"
	"github.com/contextd-dev/contextd/pkg/errors"
)

// Defaults for result counts when the caller does not specify them.
const (
	DefaultTopK = 3
	DefaultMaxK = 20
)

// Context is one retrieved passage.
type Context struct {
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
	DocumentID string  `json:"documentId"`
}

// Info describes the retrieval surface for discovery endpoints.
type Info struct {
	RetrievalType string `json:"retrievalType"`
	Description   string `json:"description"`
	MaxTopK       int    `json:"maxTopK"`
	DefaultTopK   int    `json:"defaultTopK"`
}

// Pipeline embeds queries and ranks stored chunks by similarity.
type Pipeline struct {
	embedder embed.Provider
	index    store.VectorIndex
	maxTopK  int
	logger   *slog.Logger
}

// NewPipeline wires the retrieval stages together. maxTopK <= 0 selects the
// default cap.
func NewPipeline(embedder embed.Provider, index store.VectorIndex, maxTopK int, logger *slog.Logger) *Pipeline {
	if maxTopK <= 0 {
		maxTopK = DefaultMaxK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{embedder: embedder, index: index, maxTopK: maxTopK, logger: logger}
}

// Info reports the pipeline's retrieval characteristics.
func (p *Pipeline) Info() Info {
	return Info{
		RetrievalType: "vector_similarity",
		Description:   "Cosine similarity over embedded document chunks.",
		MaxTopK:       p.maxTopK,
		DefaultTopK:   DefaultTopK,
	}
}

// Retrieve returns up to topK passages ranked by similarity to query.
// topK == 0 selects the default; anything negative or above the cap is
// rejected. An empty index yields an empty result, not an error.
func (p *Pipeline) Retrieve(ctx context.Context, query string, topK int) ([]Context, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New(errors.CodeRetrievalQueryEmpty, "query must not be empty")
	}
	switch {
	case topK == 0:
		topK = DefaultTopK
	case topK < 0 || topK > p.maxTopK:
		return nil, errors.New(errors.CodeRetrievalParamRange, "topK out of range",
			errors.Field("topK", topK),
			errors.Field("max", p.maxTopK))
	}

	embedding, err := p.embedder.Embed(ctx, query)
	if err != nil {
		if errors.HasCode(err, errors.CodeEmbedInputInvalid) {
			return nil, errors.Wrap(err, errors.CodeRetrievalQueryEmpty, "query has no embeddable content")
		}
		return nil, err
	}

	results, err := p.index.Query(ctx, embedding, topK)
	if err != nil {
		return nil, err
	}

	contexts := make([]Context, len(results))
	for i, r := range results {
		contexts[i] = Context{Text: r.Text, Score: r.Score, DocumentID: r.DocumentID}
	}

	p.logger.Debug("retrieval served",
		"top_k", topK,
		"results", len(contexts))

	return contexts, nil
}
