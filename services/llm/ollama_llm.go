package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("filinglens.llm.ollama")

const defaultOllamaBaseURL = "http://localhost:11434"

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Format  string         `json:"format,omitempty"`
	Images  []string       `json:"images,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Model      string `json:"model"`
	Response   string `json:"response"`
	Done       bool   `json:"done"`
	DoneReason string `json:"done_reason,omitempty"`
}

// OllamaClient talks to a local Ollama daemon over its native HTTP API.
// Image input is opt-in: it requires a multimodal model configured via
// OLLAMA_VISION_MODEL, since the default text models cannot read pages.
type OllamaClient struct {
	baseURL     string
	model       string
	visionModel string
	httpClient  *http.Client
}

func NewOllamaClient() (*OllamaClient, error) {
	baseURL := os.Getenv("OLLAMA_HOST")
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
		slog.Warn("OLLAMA_HOST not set, assuming local daemon", "base_url", baseURL)
	}
	model := os.Getenv("OLLAMA_MODEL")
	if model == "" {
		model = "qwen2.5:14b"
		slog.Warn("OLLAMA_MODEL not set, defaulting", "model", model)
	}
	visionModel := os.Getenv("OLLAMA_VISION_MODEL") // e.g., "llava:13b"
	if visionModel == "" {
		slog.Debug("OLLAMA_VISION_MODEL not set, image input disabled")
	}
	slog.Info("Initializing Ollama client", "base_url", baseURL, "model", model)
	return &OllamaClient{
		baseURL:     baseURL,
		model:       model,
		visionModel: visionModel,
		httpClient: &http.Client{
			Timeout: 300 * time.Second,
		},
	}, nil
}

func (o *OllamaClient) Provider() string {
	return "ollama"
}

func (o *OllamaClient) SupportsVision() bool {
	return o.visionModel != ""
}

// Generate implements the Client interface
func (o *OllamaClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	ctx, span := tracer.Start(ctx, "ollama.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", o.model),
		attribute.Int("llm.prompt_chars", len(prompt)),
	)

	req := ollamaGenerateRequest{
		Model:   o.model,
		Prompt:  prompt,
		System:  systemPrompt(),
		Stream:  false,
		Options: buildOptions(params),
	}
	resp, err := o.send(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate failed")
		return "", err
	}
	span.SetAttributes(attribute.Int("llm.response_chars", len(resp.Response)))
	return resp.Response, nil
}

// GenerateStructured implements the Client interface. Ollama's JSON
// format constraint keeps the output parseable; the reflected schema
// rides in the prompt to pin the shape.
func (o *OllamaClient) GenerateStructured(ctx context.Context, prompt string, out any, params GenerationParams) error {
	schema, err := SchemaFor(out)
	if err != nil {
		return err
	}

	ctx, span := tracer.Start(ctx, "ollama.GenerateStructured")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", o.model))

	req := ollamaGenerateRequest{
		Model:   o.model,
		Prompt:  structuredPrompt(prompt, schema),
		System:  systemPrompt(),
		Format:  "json",
		Stream:  false,
		Options: buildOptions(params),
	}
	resp, err := o.send(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate failed")
		return err
	}
	if err := decodeStructured(resp.Response, out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		return err
	}
	return nil
}

// GenerateFromImage implements the Client interface
func (o *OllamaClient) GenerateFromImage(ctx context.Context, prompt string, image []byte, params GenerationParams) (string, error) {
	if o.visionModel == "" {
		return "", fmt.Errorf("%w: set OLLAMA_VISION_MODEL to enable image input", ErrVisionUnsupported)
	}
	if len(image) == 0 {
		return "", fmt.Errorf("image data is empty")
	}

	ctx, span := tracer.Start(ctx, "ollama.GenerateFromImage")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", o.visionModel),
		attribute.Int("llm.image_bytes", len(image)),
	)

	req := ollamaGenerateRequest{
		Model:   o.visionModel,
		Prompt:  prompt,
		Images:  []string{base64.StdEncoding.EncodeToString(image)},
		Stream:  false,
		Options: buildOptions(params),
	}
	resp, err := o.send(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate failed")
		return "", err
	}
	span.SetAttributes(attribute.Int("llm.response_chars", len(resp.Response)))
	return resp.Response, nil
}

func (o *OllamaClient) send(ctx context.Context, genReq ollamaGenerateRequest) (*ollamaGenerateResponse, error) {
	payload, err := sonic.Marshal(genReq)
	if err != nil {
		return nil, fmt.Errorf("marshaling generate request: %w", err)
	}

	url := o.baseURL + "/api/generate"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	slog.Debug("Sending generate request to Ollama", "model", genReq.Model, "prompt_chars", len(genReq.Prompt))
	httpResp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Provider: "ollama", Err: err}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: "ollama", Err: fmt.Errorf("reading response body: %w", err)}
	}

	if httpResp.StatusCode == http.StatusNotFound {
		slog.Error("Ollama model not found", "model", genReq.Model)
		return nil, &ProviderError{
			Provider: "ollama",
			Err:      fmt.Errorf("%w: %q (try 'ollama pull %s')", ErrModelNotFound, genReq.Model, genReq.Model),
		}
	}
	if httpResp.StatusCode != http.StatusOK {
		slog.Error("Ollama returned non-200 status", "status", httpResp.StatusCode, "body", truncateForLog(string(body)))
		return nil, &ProviderError{Provider: "ollama", Err: fmt.Errorf("unexpected status %d", httpResp.StatusCode)}
	}

	var genResp ollamaGenerateResponse
	if err := sonic.Unmarshal(body, &genResp); err != nil {
		return nil, &ProviderError{Provider: "ollama", Err: fmt.Errorf("decoding response: %w", err)}
	}
	if !genResp.Done {
		slog.Warn("Ollama response marked incomplete", "done_reason", genResp.DoneReason)
	}
	return &genResp, nil
}

func buildOptions(params GenerationParams) map[string]any {
	opts := map[string]any{
		"temperature": float32(0.2),
		"top_k":       20,
		"top_p":       float32(0.9),
		"num_predict": 8192,
	}
	if params.Temperature != nil {
		opts["temperature"] = *params.Temperature
	}
	if params.TopK != nil {
		opts["top_k"] = *params.TopK
	}
	if params.TopP != nil {
		opts["top_p"] = *params.TopP
	}
	if params.MaxTokens != nil {
		opts["num_predict"] = *params.MaxTokens
	}
	if len(params.Stop) > 0 {
		opts["stop"] = params.Stop
	}
	return opts
}

func truncateForLog(s string) string {
	const max = 200
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
