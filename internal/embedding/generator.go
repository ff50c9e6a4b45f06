// Package embedding generates fixed-length vectors from text and provides
// the distance-metric helpers used by vector search. The Generator wraps a
// transport client (Ollama or the deterministic static embedder) and
// enforces the deployment's dimensionality on every vector it hands out.
package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/wrenware/pulse/internal/llm"
)

var (
	// ErrUnavailable indicates the embedding model cannot be reached.
	// Fatal to context assembly: no partial context is meaningful without
	// embeddings.
	ErrUnavailable = errors.New("embedding model unavailable")

	// ErrDimensionMismatch indicates two vectors of different lengths were
	// compared, or the model returned a vector of the wrong length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Generator produces embeddings of a fixed dimension D. Identical input
// text yields identical vectors (same model/version), which makes the
// results safe to memoize: a ristretto cache in front of the client avoids
// repeat model calls for recurring texts such as canonical record
// serializations.
//
// Construction is cheap; the expensive model load happens in the backing
// service (or not at all for the static embedder). Generator is safe for
// concurrent use.
type Generator struct {
	client llm.EmbeddingClient
	dim    int
	memo   *ristretto.Cache
}

// memoMaxCost bounds the memoization cache to roughly 16k vectors of
// dimension 384 (float32).
const memoMaxCost = 16_000 * 384 * 4

// NewGenerator creates a Generator enforcing the given dimensionality.
func NewGenerator(client llm.EmbeddingClient, dim int) (*Generator, error) {
	if client == nil {
		return nil, fmt.Errorf("embedding: client is required")
	}
	if dim <= 0 {
		return nil, fmt.Errorf("embedding: dimension must be positive, got %d", dim)
	}

	memo, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 160_000, // ~10x max entries, per ristretto guidance
		MaxCost:     memoMaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: create memo cache: %w", err)
	}

	return &Generator{client: client, dim: dim, memo: memo}, nil
}

// Dimension returns the fixed vector length D.
func (g *Generator) Dimension() int {
	return g.dim
}

// Model returns the backing model name.
func (g *Generator) Model() string {
	return g.client.GetModel()
}

// Embed converts text into a vector of length D. The result is
// deterministic for identical input and memoized in-process.
func (g *Generator) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := g.memo.Get(text); ok {
		if vec, ok := cached.([]float32); ok {
			return vec, nil
		}
	}

	vec, err := g.client.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(vec) != g.dim {
		return nil, fmt.Errorf("%w: model returned %d components, want %d",
			ErrDimensionMismatch, len(vec), g.dim)
	}

	g.memo.Set(text, vec, int64(len(vec)*4))
	return vec, nil
}
