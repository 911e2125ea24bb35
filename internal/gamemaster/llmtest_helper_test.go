package gamemaster

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/schoolsim/campus-engine/internal/llm"
)

// panicProvider fails the test if any method is called; used to prove the
// single-intent and LLM-disabled paths never reach the LLM.
type panicProvider struct {
	t *testing.T
}

func (p *panicProvider) Complete(context.Context, llm.CompletionRequest) (llm.CompletionResponse, error) {
	p.t.Fatalf("Complete should not be called")
	return llm.CompletionResponse{}, nil
}

func (p *panicProvider) CompleteStructured(context.Context, llm.CompletionRequest, llm.Schema) (json.RawMessage, error) {
	p.t.Fatalf("CompleteStructured should not be called")
	return nil, nil
}

func (p *panicProvider) Embed(context.Context, []string) ([][]float32, error) {
	p.t.Fatalf("Embed should not be called")
	return nil, nil
}
