// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contextd Contributors

package embed

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"

	cerr "github.com/contextd-dev/contextd/pkg/errors"
)

// DefaultDimension matches the dimension of common sentence-transformer
// models so the index layout stays compatible if the provider is swapped.
const DefaultDimension = 384

// HashProvider is a deterministic feature-hashing embedder. Each token
// (and each adjacent token bigram) is hashed into one of Dimension
// buckets with a hash-derived sign, and the resulting vector is
// L2-normalized so that inner product equals cosine similarity.
//
// It is a pure function of the input text: no model files, no network,
// bit-identical output for identical input.
type HashProvider struct {
	dim          int
	tokenPattern *regexp.Regexp
}

// NewHashProvider creates a provider with the given output dimension.
func NewHashProvider(dimension int) (*HashProvider, error) {
	if dimension <= 0 {
		return nil, cerr.Errorf(cerr.CodeEmbedInputInvalid, "embedding dimension must be positive, got %d", dimension)
	}
	return &HashProvider{
		dim:          dimension,
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`),
	}, nil
}

// Dimension returns the fixed output dimension.
func (p *HashProvider) Dimension() int { return p.dim }

// Info describes the provider for discovery endpoints.
func (p *HashProvider) Info() Info {
	return Info{
		EmbeddingType: "Feature hashing",
		EmbeddingName: "fnv-hash-v1",
		Description:   "Signed feature hashing of word unigrams and bigrams into a fixed-dimension L2-normalized vector.",
		UsedWhen:      "anytime",
	}
}

// Embed vectorizes a single text.
func (p *HashProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, cerr.Wrap(err, cerr.CodeEmbedInputInvalid, "embedding cancelled")
	}

	tokens := p.tokenize(text)
	if len(tokens) == 0 {
		return nil, cerr.New(cerr.CodeEmbedInputInvalid, "text contains no embeddable tokens")
	}

	vec := make([]float32, p.dim)
	for i, tok := range tokens {
		p.accumulate(vec, tok)
		if i > 0 {
			p.accumulate(vec, tokens[i-1]+" "+tok)
		}
	}

	normalize(vec)
	return vec, nil
}

// EmbedBatch vectorizes many texts, checking for cancellation between
// entries so long ingestions abort promptly.
func (p *HashProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, cerr.Wrapf(err, cerr.CodeEmbedInputInvalid, "embedding batch cancelled at %d of %d", i, len(texts))
		}
		vec, err := p.Embed(ctx, text)
		if err != nil {
			return nil, cerr.Wrapf(err, cerr.CodeOf(err), "embedding batch entry %d", i)
		}
		out = append(out, vec)
	}
	return out, nil
}

// accumulate hashes a feature into its bucket with a sign derived from a
// high hash bit, the usual trick to keep hash collisions unbiased.
func (p *HashProvider) accumulate(vec []float32, feature string) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()

	bucket := int(sum % uint64(p.dim))
	if sum&(1<<63) != 0 {
		vec[bucket]--
	} else {
		vec[bucket]++
	}
}

func (p *HashProvider) tokenize(text string) []string {
	return p.tokenPattern.FindAllString(strings.ToLower(text), -1)
}

func normalize(vec []float32) {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}
