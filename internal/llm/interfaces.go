package llm

import "context"

// TextGenerator is the interface for LLM text completion. Chapter analysis
// uses single-string completion style (not chat history).
type TextGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
	GetModel() string
}

// StreamingGenerator is implemented by providers that can deliver the
// completion incrementally. The callback receives each token chunk; the full
// concatenated text is returned at the end.
type StreamingGenerator interface {
	TextGenerator
	CompleteStream(ctx context.Context, prompt string, onChunk func(string)) (string, error)
}

// EmbeddingGenerator is the interface for generating vector embeddings, used
// for chapter-summary semantic recall. Providers without embedding support
// are simply not wired as one.
type EmbeddingGenerator interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	GetModel() string
}
