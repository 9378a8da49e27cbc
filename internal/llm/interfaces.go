package llm

import (
	"context"
	"errors"
)

// ErrDisabled is returned by clients built for the "none" provider.
var ErrDisabled = errors.New("llm provider disabled")

// TextGenerator is the interface for short chat completions.
// The prompt carries its own system role, token budget and temperature.
type TextGenerator interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
	GetModel() string
}

// EmbeddingGenerator is the interface for generating vector embeddings.
type EmbeddingGenerator interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	GetModel() string
}
