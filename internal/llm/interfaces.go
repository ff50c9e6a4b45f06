// Package llm provides transport clients for the text-generation and
// embedding collaborators. The retrieval engine treats generation as an
// opaque completion call; which model answers is a deployment concern.
package llm

import "context"

// TextGenerator is the interface for LLM text completion.
// Insight prompts use single-string completion style (not chat).
type TextGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
	GetModel() string
}

// EmbeddingClient converts text to a vector embedding.
// Returns float32 slices; dimension enforcement happens one layer up in
// the embedding package.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	GetModel() string
}
