// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contextd Contributors

// Package store defines the persistence interfaces for the vector index
// and the credential store, plus the backend registry.
package store

import "context"

// Chunk is one embedded segment of an ingested document.
type Chunk struct {
	ID         string
	DocumentID string
	Position   int
	Text       string
	Embedding  []float32
}

// Result is a retrieval hit ordered by similarity.
type Result struct {
	Text       string
	Score      float64
	DocumentID string
	Position   int
}

// DocumentStat summarizes one ingested document.
type DocumentStat struct {
	DocumentID string
	Chunks     int
}

// VectorIndex stores embedded chunks and answers nearest-neighbor queries.
//
// InsertAll is atomic: either every chunk lands or none do. Query returns at
// most k results ordered by descending score, ties broken by insertion order.
type VectorIndex interface {
	InsertAll(ctx context.Context, chunks []Chunk) error
	Query(ctx context.Context, embedding []float32, k int) ([]Result, error)
	HasDocument(ctx context.Context, documentID string) (bool, error)
	Documents(ctx context.Context) ([]DocumentStat, error)
	ClearAll(ctx context.Context) error
	Close() error
}

// User is a stored principal. The password hash stays inside the
// credential store and never crosses this boundary except on lookup.
type User struct {
	Username string
	Role     string
}

// Role values understood by the gateway.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// CredentialStore persists users and their bcrypt password hashes.
type CredentialStore interface {
	Upsert(ctx context.Context, user User, passwordHash string) error
	Lookup(ctx context.Context, username string) (User, string, error)
	Close() error
}
