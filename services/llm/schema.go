package llm

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/eino-contrib/jsonschema"
	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// SchemaFor reflects a value's JSON schema as a compact JSON string,
// suitable for embedding into a prompt.
func SchemaFor(out any) (string, error) {
	reflector := jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
	}
	schema := reflector.Reflect(out)
	raw, err := sonic.Marshal(schema)
	if err != nil {
		return "", fmt.Errorf("reflecting schema: %w", err)
	}
	return string(raw), nil
}

// structuredPrompt appends the schema contract to a prompt. Both
// backends are also put into their native JSON output modes; the
// in-prompt schema is what actually pins the field names and types.
func structuredPrompt(prompt, schema string) string {
	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\nRespond with a single JSON object that conforms to the following JSON Schema.")
	b.WriteString(" Output only the JSON object, with no prose and no code fences.\n")
	b.WriteString(schema)
	return b.String()
}

// decodeStructured parses a model response into out and validates it.
// Model deviations (fences, malformed JSON, missing required fields)
// all surface as ErrInvalidOutput so stages can treat them uniformly.
func decodeStructured(raw string, out any) error {
	cleaned := stripFences(raw)
	if cleaned == "" {
		return fmt.Errorf("%w: empty response", ErrInvalidOutput)
	}
	if err := sonic.UnmarshalString(cleaned, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if err := structValidator().Struct(out); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			// Not a struct target; nothing to validate.
			return nil
		}
		return fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	return nil
}

// stripFences removes a markdown code fence wrapper if the model added
// one despite instructions.
func stripFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return trimmed
	}
	// Drop the opening fence (with any info string) and a closing fence.
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
