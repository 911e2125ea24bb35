// Package llm defines the LlmProvider façade consumed by cognition, the
// game master and reflection. It is deliberately narrow: three
// operations, no vendor-specific types leaking out. internal/llmmock gives
// a deterministic implementation for tests; internal/llmopenai is the
// production adapter over github.com/openai/openai-go/v3.
package llm

import (
	"context"
	"encoding/json"
)

// Message is one turn of a CompletionRequest; Role is "system" or "user".
type Message struct {
	Role    string
	Content string
}

// CompletionRequest is what cognition.BuildRequest produces and the game
// master/reflection also build directly for their own structured calls.
type CompletionRequest struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Usage carries token accounting; it is optional on
// CompletionResponse because mock/offline providers have nothing to report.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type CompletionResponse struct {
	Content string
	Usage   *Usage
}

// Provider is the LlmProvider façade. CompleteStructured returns the
// schema-validated JSON payload as raw bytes rather than a generic T: Go's
// lack of constructor-generics makes a clean complete_structured<T> awkward,
// and every caller in this engine (game master, reflection) already knows
// its own target struct, so they json.Unmarshal the validated bytes
// themselves. The validation step itself — extract, schema-check, only then
// let the caller deserialize — is unchanged.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	CompleteStructured(ctx context.Context, req CompletionRequest, schema Schema) (json.RawMessage, error)
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Schema is a JSON Schema document (draft-07, what xeipuuv/gojsonschema
// expects) plus a name used for prompt/log correlation.
type Schema struct {
	Name   string
	Schema map[string]any
}
