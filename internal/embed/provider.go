// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contextd Contributors

// Package embed turns text into fixed-dimension vectors for similarity
// search. Providers must be deterministic: the same text always maps to
// the same vector for a given configuration.
package embed

import "context"

// Info describes an embedding configuration for the /embedding/info
// endpoint of the retrieval interface.
type Info struct {
	EmbeddingType string `json:"embeddingType"`
	EmbeddingName string `json:"embeddingName"`
	Description   string `json:"description"`
	UsedWhen      string `json:"usedWhen"`
	Link          string `json:"link,omitempty"`
}

// Provider converts text into L2-normalized vectors of a fixed dimension.
type Provider interface {
	// Embed vectorizes a single text. Empty or whitespace-only input is
	// rejected.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch vectorizes many texts in one call. Implementations
	// should prefer this over repeated Embed calls for ingestion-sized
	// workloads.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the fixed output dimension.
	Dimension() int

	// Info describes the provider for discovery endpoints.
	Info() Info
}
