// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contextd Contributors

package memory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contextd-dev/contextd/internal/store"
	"github.com/contextd-dev/contextd/internal/store/memory"
	"github.com/contextd-dev/contextd/pkg/errors"
)

func vec(values ...float32) []float32 { return values }

func chunk(doc string, pos int, text string, embedding []float32) store.Chunk {
	return store.Chunk{
		ID:         fmt.Sprintf("%s-%d", doc, pos),
		DocumentID: doc,
		Position:   pos,
		Text:       text,
		Embedding:  embedding,
	}
}

func TestInsertAndQuery(t *testing.T) {
	idx := memory.NewVectorIndex(3)
	ctx := context.Background()

	require.NoError(t, idx.InsertAll(ctx, []store.Chunk{
		chunk("doc-a", 0, "east", vec(1, 0, 0)),
		chunk("doc-a", 1, "north", vec(0, 1, 0)),
		chunk("doc-b", 0, "northeast", vec(0.7, 0.7, 0)),
	}))

	results, err := idx.Query(ctx, vec(1, 0, 0), 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "east", results[0].Text)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, "northeast", results[1].Text)
	assert.Equal(t, "doc-b", results[1].DocumentID)
}

func TestQuery_TieBreaksByInsertionOrder(t *testing.T) {
	idx := memory.NewVectorIndex(2)
	ctx := context.Background()

	require.NoError(t, idx.InsertAll(ctx, []store.Chunk{
		chunk("doc-a", 0, "first", vec(1, 0)),
		chunk("doc-b", 0, "second", vec(1, 0)),
		chunk("doc-c", 0, "third", vec(1, 0)),
	}))

	for range 5 {
		results, err := idx.Query(ctx, vec(1, 0), 3)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, "first", results[0].Text)
		assert.Equal(t, "second", results[1].Text)
		assert.Equal(t, "third", results[2].Text)
	}
}

func TestQuery_KLargerThanIndex(t *testing.T) {
	idx := memory.NewVectorIndex(2)
	ctx := context.Background()

	require.NoError(t, idx.InsertAll(ctx, []store.Chunk{chunk("doc-a", 0, "only", vec(1, 0))}))

	results, err := idx.Query(ctx, vec(1, 0), 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestQuery_EmptyIndex(t *testing.T) {
	idx := memory.NewVectorIndex(2)

	results, err := idx.Query(context.Background(), vec(1, 0), 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestInsertAll_DimensionMismatchIsAtomic(t *testing.T) {
	idx := memory.NewVectorIndex(3)
	ctx := context.Background()

	err := idx.InsertAll(ctx, []store.Chunk{
		chunk("doc-a", 0, "good", vec(1, 0, 0)),
		chunk("doc-a", 1, "bad", vec(1, 0)),
	})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeStoreDimensionMismatch))

	docs, err := idx.Documents(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs, "a rejected batch must leave the index untouched")
}

func TestQuery_DimensionMismatch(t *testing.T) {
	idx := memory.NewVectorIndex(3)

	_, err := idx.Query(context.Background(), vec(1, 0), 1)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeStoreDimensionMismatch))
}

func TestHasDocumentAndDocuments(t *testing.T) {
	idx := memory.NewVectorIndex(2)
	ctx := context.Background()

	require.NoError(t, idx.InsertAll(ctx, []store.Chunk{
		chunk("doc-a", 0, "a0", vec(1, 0)),
		chunk("doc-a", 1, "a1", vec(0, 1)),
		chunk("doc-b", 0, "b0", vec(1, 1)),
	}))

	has, err := idx.HasDocument(ctx, "doc-a")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = idx.HasDocument(ctx, "doc-z")
	require.NoError(t, err)
	assert.False(t, has)

	docs, err := idx.Documents(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, store.DocumentStat{DocumentID: "doc-a", Chunks: 2}, docs[0])
	assert.Equal(t, store.DocumentStat{DocumentID: "doc-b", Chunks: 1}, docs[1])
}

func TestClearAll(t *testing.T) {
	idx := memory.NewVectorIndex(2)
	ctx := context.Background()

	require.NoError(t, idx.InsertAll(ctx, []store.Chunk{chunk("doc-a", 0, "a0", vec(1, 0))}))
	require.NoError(t, idx.ClearAll(ctx))

	docs, err := idx.Documents(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)

	has, err := idx.HasDocument(ctx, "doc-a")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestInsertAll_ConcurrentBatchesStayWhole(t *testing.T) {
	idx := memory.NewVectorIndex(2)
	ctx := context.Background()

	const writers = 8
	const chunksPerDoc = 16

	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			doc := fmt.Sprintf("doc-%d", w)
			batch := make([]store.Chunk, chunksPerDoc)
			for i := range batch {
				batch[i] = chunk(doc, i, "text", vec(1, 0))
			}
			assert.NoError(t, idx.InsertAll(ctx, batch))
		}()
	}
	wg.Wait()

	docs, err := idx.Documents(ctx)
	require.NoError(t, err)
	require.Len(t, docs, writers)
	for _, stat := range docs {
		assert.Equal(t, chunksPerDoc, stat.Chunks)
	}
}

func TestCredentialStore_RoundTrip(t *testing.T) {
	creds := memory.NewCredentialStore()
	ctx := context.Background()

	require.NoError(t, creds.Upsert(ctx, store.User{Username: "alice", Role: store.RoleAdmin}, "hash-1"))

	user, hash, err := creds.Lookup(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, store.RoleAdmin, user.Role)
	assert.Equal(t, "hash-1", hash)

	require.NoError(t, creds.Upsert(ctx, store.User{Username: "alice", Role: store.RoleUser}, "hash-2"))
	user, hash, err = creds.Lookup(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, store.RoleUser, user.Role)
	assert.Equal(t, "hash-2", hash)
}

func TestCredentialStore_NotFound(t *testing.T) {
	creds := memory.NewCredentialStore()

	_, _, err := creds.Lookup(context.Background(), "nobody")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestOpen_MemoryBackend(t *testing.T) {
	idx, creds, err := store.Open("memory", t.TempDir(), 4)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, idx.Close())
		require.NoError(t, creds.Close())
	})

	require.NoError(t, idx.InsertAll(context.Background(), []store.Chunk{
		chunk("doc-a", 0, "a0", vec(1, 0, 0, 0)),
	}))
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, _, err := store.Open("voodoo", t.TempDir(), 4)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeStoreBackendUnknown))
}
