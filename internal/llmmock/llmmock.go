// Package llmmock is a deterministic Provider used by tests and offline
// runs: no network calls, pseudo-embeddings derived
// from text bytes, and a canned/scripted completion queue.
package llmmock

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/schoolsim/campus-engine/internal/llm"
)

// Provider is a fully in-process llm.Provider. With no script configured,
// Complete echoes a fixed default reply so callers that only care about
// "some intent was classified" work out of the box; tests that need
// specific text set Script.
type Provider struct {
	mu      sync.Mutex
	Script  []string // consumed in order by successive Complete calls
	Default string

	// StructuredScript, if set, is returned verbatim (already schema-shaped)
	// by CompleteStructured in order; falls back to an empty JSON object.
	StructuredScript []json.RawMessage
}

func New() *Provider {
	return &Provider{Default: "我想去图书馆学习"}
}

func (p *Provider) Complete(_ context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	content := p.Default
	if len(p.Script) > 0 {
		content = p.Script[0]
		p.Script = p.Script[1:]
	}
	return llm.CompletionResponse{Content: content}, nil
}

func (p *Provider) CompleteStructured(_ context.Context, _ llm.CompletionRequest, _ llm.Schema) (json.RawMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.StructuredScript) > 0 {
		next := p.StructuredScript[0]
		p.StructuredScript = p.StructuredScript[1:]
		return next, nil
	}
	return json.RawMessage(`{}`), nil
}

// Embed derives a small deterministic vector from each text's bytes so
// unrelated strings land far apart and identical strings land identical,
// without pulling in any real embedding model.
func (p *Provider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = pseudoEmbed(t)
	}
	return out, nil
}

const embedDim = 16

func pseudoEmbed(text string) []float32 {
	v := make([]float32, embedDim)
	if text == "" {
		return v
	}
	for i, b := range []byte(text) {
		v[i%embedDim] += float32(b)
	}
	var norm float32
	for _, x := range v {
		norm += x * x
	}
	if norm == 0 {
		return v
	}
	inv := float32(1) / sqrt32(norm)
	for i := range v {
		v[i] *= inv
	}
	return v
}

func sqrt32(x float32) float32 {
	// Newton's method; avoids pulling math.Sqrt's float64 round-trip for a
	// vector this small, and keeps the package dependency-free.
	if x == 0 {
		return 0
	}
	z := x
	for i := 0; i < 8; i++ {
		z -= (z*z - x) / (2 * z)
	}
	return z
}
