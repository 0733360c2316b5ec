// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contextd Contributors

package embed_test

import (
	"context"
	"math"
	"testing"

	"github.com/contextd-dev/contextd/internal/embed"
	cerr "github.com/contextd-dev/contextd/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProvider(t *testing.T) *embed.HashProvider {
	t.Helper()
	p, err := embed.NewHashProvider(embed.DefaultDimension)
	require.NoError(t, err)
	return p
}

func TestNewHashProvider_InvalidDimension(t *testing.T) {
	for _, dim := range []int{0, -1} {
		_, err := embed.NewHashProvider(dim)
		require.Error(t, err)
		assert.True(t, cerr.HasCode(err, cerr.CodeEmbedInputInvalid))
	}
}

func TestEmbed_Deterministic(t *testing.T) {
	p := newProvider(t)
	ctx := context.Background()

	a, err := p.Embed(ctx, "vector similarity search over document chunks")
	require.NoError(t, err)
	b, err := p.Embed(ctx, "vector similarity search over document chunks")
	require.NoError(t, err)

	assert.Equal(t, a, b, "identical text must embed to bit-identical vectors")
	assert.Len(t, a, embed.DefaultDimension)
}

func TestEmbed_Normalized(t *testing.T) {
	p := newProvider(t)

	vec, err := p.Embed(context.Background(), "the embedding is unit length")
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, norm, 1e-5)
}

func TestEmbed_EmptyInput(t *testing.T) {
	p := newProvider(t)

	for _, text := range []string{"", "   ", "\n\t", "!!! ---"} {
		_, err := p.Embed(context.Background(), text)
		require.Error(t, err, "input %q should be rejected", text)
		assert.True(t, cerr.HasCode(err, cerr.CodeEmbedInputInvalid))
	}
}

func TestEmbed_SimilarTextScoresHigher(t *testing.T) {
	p := newProvider(t)
	ctx := context.Background()

	query, err := p.Embed(ctx, "chunking documents for retrieval")
	require.NoError(t, err)
	near, err := p.Embed(ctx, "retrieval works by chunking documents into segments")
	require.NoError(t, err)
	far, err := p.Embed(ctx, "quarterly financial report of the shipping company")
	require.NoError(t, err)

	assert.Greater(t, dot(query, near), dot(query, far))
}

func TestEmbedBatch_MatchesSingle(t *testing.T) {
	p := newProvider(t)
	ctx := context.Background()
	texts := []string{"first chunk of text", "second chunk of text", "third one"}

	batch, err := p.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, batch, len(texts))

	for i, text := range texts {
		single, err := p.Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i], "batch entry %d diverges from single embed", i)
	}
}

func TestEmbedBatch_FailsOnEmptyEntry(t *testing.T) {
	p := newProvider(t)

	_, err := p.EmbedBatch(context.Background(), []string{"fine", ""})
	require.Error(t, err)
	assert.True(t, cerr.HasCode(err, cerr.CodeEmbedInputInvalid))
}

func TestEmbedBatch_Cancelled(t *testing.T) {
	p := newProvider(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.EmbedBatch(ctx, []string{"some text"})
	require.Error(t, err)
}

func TestInfo(t *testing.T) {
	p := newProvider(t)
	info := p.Info()
	assert.Equal(t, "Feature hashing", info.EmbeddingType)
	assert.NotEmpty(t, info.EmbeddingName)
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	if math.IsNaN(sum) {
		return 0
	}
	return sum
}
