package llm

import (
	"context"
	"hash/fnv"
	"math"
)

// StaticEmbedder is a deterministic, offline embedding client. It derives
// each component from an FNV hash of the input text, so identical text
// always produces identical vectors and no model service is required.
// Intended for tests and local development.
type StaticEmbedder struct {
	dimensions int
}

// NewStaticEmbedder creates a static embedder producing vectors of the
// given dimensionality.
func NewStaticEmbedder(dimensions int) *StaticEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &StaticEmbedder{dimensions: dimensions}
}

// GetModel returns the pseudo model name.
func (e *StaticEmbedder) GetModel() string {
	return "static-hash"
}

// Embed produces a deterministic unit-ish vector from the text hash.
// Components are generated by repeatedly mixing the seed hash, then mapped
// into [-1, 1).
func (e *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	state := h.Sum64()

	vec := make([]float32, e.dimensions)
	for i := range vec {
		// xorshift64 step keeps the sequence deterministic per seed.
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		vec[i] = float32(float64(state)/math.MaxUint64*2 - 1)
	}
	return vec, nil
}

// StaticGenerator is a TextGenerator that echoes a fixed response.
// Intended for tests.
type StaticGenerator struct {
	Response string
}

// GetModel returns the pseudo model name.
func (g *StaticGenerator) GetModel() string { return "static" }

// Complete returns the configured response regardless of prompt.
func (g *StaticGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	return g.Response, nil
}
