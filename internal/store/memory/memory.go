// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contextd Contributors

// Package memory provides in-memory store backends for tests and
// ephemeral deployments. Nothing survives process exit.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/contextd-dev/contextd/internal/store"
	"github.com/contextd-dev/contextd/pkg/errors"
)

func init() {
	store.RegisterBackend("memory", func(_ string, dimension int) (store.VectorIndex, store.CredentialStore, error) {
		return NewVectorIndex(dimension), NewCredentialStore(), nil
	})
}

type storedChunk struct {
	chunk store.Chunk
	order int
}

// VectorIndex is a brute-force cosine-similarity index.
type VectorIndex struct {
	mu        sync.RWMutex
	dimension int
	chunks    []storedChunk
	nextOrder int
}

// NewVectorIndex creates an empty index for vectors of the given dimension.
func NewVectorIndex(dimension int) *VectorIndex {
	return &VectorIndex{dimension: dimension}
}

func (m *VectorIndex) InsertAll(ctx context.Context, chunks []store.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Validate everything before touching state so a bad batch leaves the
	// index untouched.
	for _, c := range chunks {
		if len(c.Embedding) != m.dimension {
			return errors.New(errors.CodeStoreDimensionMismatch, "embedding dimension mismatch",
				errors.Field("want", m.dimension),
				errors.Field("got", len(c.Embedding)),
				errors.FieldDocument(c.DocumentID))
		}
	}

	for _, c := range chunks {
		m.chunks = append(m.chunks, storedChunk{chunk: c, order: m.nextOrder})
		m.nextOrder++
	}
	return nil
}

func (m *VectorIndex) Query(ctx context.Context, embedding []float32, k int) ([]store.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(embedding) != m.dimension {
		return nil, errors.New(errors.CodeStoreDimensionMismatch, "query dimension mismatch",
			errors.Field("want", m.dimension),
			errors.Field("got", len(embedding)))
	}
	if k <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		res   store.Result
		order int
	}
	hits := make([]scored, 0, len(m.chunks))
	for _, sc := range m.chunks {
		hits = append(hits, scored{
			res: store.Result{
				Text:       sc.chunk.Text,
				Score:      cosine(embedding, sc.chunk.Embedding),
				DocumentID: sc.chunk.DocumentID,
				Position:   sc.chunk.Position,
			},
			order: sc.order,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].res.Score != hits[j].res.Score {
			return hits[i].res.Score > hits[j].res.Score
		}
		return hits[i].order < hits[j].order
	})

	if k > len(hits) {
		k = len(hits)
	}
	results := make([]store.Result, k)
	for i := range results {
		results[i] = hits[i].res
	}
	return results, nil
}

func (m *VectorIndex) HasDocument(ctx context.Context, documentID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, sc := range m.chunks {
		if sc.chunk.DocumentID == documentID {
			return true, nil
		}
	}
	return false, nil
}

func (m *VectorIndex) Documents(ctx context.Context) ([]store.DocumentStat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := map[string]int{}
	order := []string{}
	for _, sc := range m.chunks {
		if _, seen := counts[sc.chunk.DocumentID]; !seen {
			order = append(order, sc.chunk.DocumentID)
		}
		counts[sc.chunk.DocumentID]++
	}

	stats := make([]store.DocumentStat, 0, len(order))
	for _, id := range order {
		stats = append(stats, store.DocumentStat{DocumentID: id, Chunks: counts[id]})
	}
	return stats, nil
}

func (m *VectorIndex) ClearAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = nil
	m.nextOrder = 0
	return nil
}

func (m *VectorIndex) Close() error { return nil }

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

type credEntry struct {
	user store.User
	hash string
}

// CredentialStore keeps users in a map guarded by a mutex.
type CredentialStore struct {
	mu    sync.RWMutex
	users map[string]credEntry
}

// NewCredentialStore creates an empty credential store.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{users: map[string]credEntry{}}
}

func (c *CredentialStore) Upsert(ctx context.Context, user store.User, passwordHash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users[user.Username] = credEntry{user: user, hash: passwordHash}
	return nil
}

func (c *CredentialStore) Lookup(ctx context.Context, username string) (store.User, string, error) {
	if err := ctx.Err(); err != nil {
		return store.User{}, "", err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.users[username]
	if !ok {
		return store.User{}, "", errors.New(errors.CodeStoreUserNotFound, "user not found",
			errors.FieldUser(username))
	}
	return entry.user, entry.hash, nil
}

func (c *CredentialStore) Close() error { return nil }
