// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contextd Contributors

package retrieval_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contextd-dev/contextd/internal/embed"
	"github.com/contextd-dev/contextd/internal/retrieval"
	"github.com/contextd-dev/contextd/internal/store"
	"github.com/contextd-dev/contextd/internal/store/memory"
	"github.com/contextd-dev/contextd/pkg/errors"
)

const testDimension = 16

func newPipeline(t *testing.T, texts ...string) *retrieval.Pipeline {
	t.Helper()
	embedder, err := embed.NewHashProvider(testDimension)
	require.NoError(t, err)
	idx := memory.NewVectorIndex(testDimension)

	ctx := context.Background()
	chunks := make([]store.Chunk, len(texts))
	for i, text := range texts {
		vec, err := embedder.Embed(ctx, text)
		require.NoError(t, err)
		chunks[i] = store.Chunk{
			ID:         text,
			DocumentID: "doc",
			Position:   i,
			Text:       text,
			Embedding:  vec,
		}
	}
	if len(chunks) > 0 {
		require.NoError(t, idx.InsertAll(ctx, chunks))
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return retrieval.NewPipeline(embedder, idx, 0, logger)
}

func TestRetrieve_RanksBySimilarity(t *testing.T) {
	p := newPipeline(t,
		"the cat sat on the mat",
		"stock markets closed lower on tuesday",
		"a cat chased a mouse across the mat",
	)

	contexts, err := p.Retrieve(context.Background(), "cat on a mat", 3)
	require.NoError(t, err)
	require.Len(t, contexts, 3)
	assert.Contains(t, contexts[0].Text, "cat")
	assert.GreaterOrEqual(t, contexts[0].Score, contexts[1].Score)
	assert.GreaterOrEqual(t, contexts[1].Score, contexts[2].Score)
	assert.Equal(t, "stock markets closed lower on tuesday", contexts[2].Text)
}

func TestRetrieve_DefaultTopK(t *testing.T) {
	p := newPipeline(t, "one fish", "two fish", "red fish", "blue fish", "old fish")

	contexts, err := p.Retrieve(context.Background(), "fish", 0)
	require.NoError(t, err)
	assert.Len(t, contexts, retrieval.DefaultTopK)
}

func TestRetrieve_TopKOutOfRange(t *testing.T) {
	p := newPipeline(t, "some text")

	for _, topK := range []int{-1, retrieval.DefaultMaxK + 1} {
		_, err := p.Retrieve(context.Background(), "query", topK)
		require.Error(t, err, "topK %d should be rejected", topK)
		assert.True(t, errors.HasCode(err, errors.CodeRetrievalParamRange))
	}
}

func TestRetrieve_TopKAtCap(t *testing.T) {
	p := newPipeline(t, "only entry")

	contexts, err := p.Retrieve(context.Background(), "entry", retrieval.DefaultMaxK)
	require.NoError(t, err)
	assert.Len(t, contexts, 1)
}

func TestRetrieve_EmptyQuery(t *testing.T) {
	p := newPipeline(t, "some text")

	for _, query := range []string{"", "   ", "\t\n"} {
		_, err := p.Retrieve(context.Background(), query, 3)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.CodeRetrievalQueryEmpty))
	}
}

func TestRetrieve_TokenlessQuery(t *testing.T) {
	p := newPipeline(t, "some text")

	_, err := p.Retrieve(context.Background(), "!!! ???", 3)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeRetrievalQueryEmpty))
}

func TestRetrieve_EmptyIndex(t *testing.T) {
	p := newPipeline(t)

	contexts, err := p.Retrieve(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, contexts)
}

func TestInfo(t *testing.T) {
	p := newPipeline(t)
	info := p.Info()
	assert.Equal(t, "vector_similarity", info.RetrievalType)
	assert.Equal(t, retrieval.DefaultMaxK, info.MaxTopK)
	assert.Equal(t, retrieval.DefaultTopK, info.DefaultTopK)
}
