package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrModelNotFound is returned when the configured model is not
	// available on the backend.
	ErrModelNotFound = errors.New("model not found")

	// ErrInvalidOutput is returned when the model's response cannot be
	// decoded or fails schema validation.
	ErrInvalidOutput = errors.New("model output failed validation")

	// ErrVisionUnsupported is returned when image input is requested
	// from a provider that cannot accept it.
	ErrVisionUnsupported = errors.New("provider does not support image input")
)

// ProviderError tags an error with the provider that produced it, so
// callers can report which backend misbehaved without string matching.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
