package llm

import "context"

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// Client defines the standard interface for any LLM backend.
//
// GenerateStructured fills out with the model's JSON response; out must
// be a pointer to a struct whose shape is reflected into the schema the
// model is asked to follow. GenerateFromImage is only usable when
// SupportsVision reports true.
type Client interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
	GenerateStructured(ctx context.Context, prompt string, out any, params GenerationParams) error
	GenerateFromImage(ctx context.Context, prompt string, image []byte, params GenerationParams) (string, error)
	Provider() string
	SupportsVision() bool
}
