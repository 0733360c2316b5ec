// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contextd Contributors

// Package ingest turns raw documents into embedded chunks in the vector
// index.
package ingest

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/contextd-dev/contextd/internal/chunk"
	"github.com/contextd-dev/contextd/internal/embed"
	"github.com/contextd-dev/contextd/internal/store"
	"github.com/contextd-dev/contextd/pkg/errors"
)

// Summary reports what one ingestion produced.
type Summary struct {
	DocumentID string
	Chunks     int
}

// Pipeline chunks, embeds, and indexes documents. A document either lands
// completely or not at all.
type Pipeline struct {
	splitter *chunk.Splitter
	embedder embed.Provider
	index    store.VectorIndex
	logger   *slog.Logger
}

// NewPipeline wires the ingestion stages together.
func NewPipeline(splitter *chunk.Splitter, embedder embed.Provider, index store.VectorIndex, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{splitter: splitter, embedder: embedder, index: index, logger: logger}
}

// Ingest indexes one document under documentID. Re-ingesting an existing
// document is rejected; clear the index or pick a new ID.
func (p *Pipeline) Ingest(ctx context.Context, documentID, text string) (Summary, error) {
	documentID = strings.TrimSpace(documentID)
	if err := validateDocumentID(documentID); err != nil {
		return Summary{}, err
	}

	exists, err := p.index.HasDocument(ctx, documentID)
	if err != nil {
		return Summary{}, err
	}
	if exists {
		return Summary{}, errors.New(errors.CodeIngestDocumentDup, "document already ingested",
			errors.FieldDocument(documentID))
	}

	texts, err := p.splitter.Split(text)
	if err != nil {
		return Summary{}, errors.With(err, errors.FieldDocument(documentID))
	}

	embeddings, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return Summary{}, errors.With(err, errors.FieldDocument(documentID))
	}

	chunks := make([]store.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = store.Chunk{
			ID:         uuid.NewString(),
			DocumentID: documentID,
			Position:   i,
			Text:       t,
			Embedding:  embeddings[i],
		}
	}

	if err := p.index.InsertAll(ctx, chunks); err != nil {
		return Summary{}, err
	}

	p.logger.Info("document ingested",
		"document_id", documentID,
		"chunks", len(chunks))

	return Summary{DocumentID: documentID, Chunks: len(chunks)}, nil
}

// Clear drops every document from the index.
func (p *Pipeline) Clear(ctx context.Context) error {
	if err := p.index.ClearAll(ctx); err != nil {
		return err
	}
	p.logger.Info("index cleared")
	return nil
}

// Documents lists what the index currently holds.
func (p *Pipeline) Documents(ctx context.Context) ([]store.DocumentStat, error) {
	return p.index.Documents(ctx)
}

// maxDocumentIDLen bounds identifiers so listings stay readable.
const maxDocumentIDLen = 255

func validateDocumentID(documentID string) error {
	if documentID == "" {
		return errors.New(errors.CodeIngestDocumentIDBad, "document id must not be empty")
	}
	if len(documentID) > maxDocumentIDLen {
		return errors.Errorf(errors.CodeIngestDocumentIDBad, "document id exceeds %d bytes", maxDocumentIDLen)
	}
	for _, r := range documentID {
		if unicode.IsControl(r) {
			return errors.New(errors.CodeIngestDocumentIDBad, "document id contains control characters")
		}
		if r == '/' || r == '\\' {
			return errors.New(errors.CodeIngestDocumentIDBad, "document id contains path separators")
		}
	}
	return nil
}
