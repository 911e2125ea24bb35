package reflection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/schoolsim/campus-engine/internal/ids"
	"github.com/schoolsim/campus-engine/internal/llm"
	"github.com/schoolsim/campus-engine/internal/memory"
	"github.com/schoolsim/campus-engine/internal/personality"
	"github.com/schoolsim/campus-engine/internal/simtime"
	"github.com/schoolsim/campus-engine/internal/world"
)

const (
	recentForReflection = 10
	semanticImportance  = 0.8
)

// reflectionSchema constrains the summarisation response: a summary plus an
// optional personality impact the personality-evolution arithmetic consumes.
var reflectionSchema = llm.Schema{
	Name: "reflection_v1",
	Schema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary": map[string]any{"type": "string"},
			"impact": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"dimension": map[string]any{"type": "string", "enum": []any{"EI", "SN", "TF", "JP"}},
					"direction": map[string]any{"type": "string", "enum": []any{"positive", "negative"}},
					"magnitude": map[string]any{"type": "number", "minimum": 0, "maximum": 0.05},
				},
				"required": []any{"dimension", "direction", "magnitude"},
			},
		},
		"required": []any{"summary"},
	},
}

type reflectionResponse struct {
	Summary string `json:"summary"`
	Impact  *struct {
		Dimension string  `json:"dimension"`
		Direction string  `json:"direction"`
		Magnitude float64 `json:"magnitude"`
	} `json:"impact"`
}

// Reflector executes the reflection task the Trigger schedules:
// retrieve the agent's recent memories, summarise them through a structured
// LLM call, write one Semantic memory, and optionally apply a personality
// shift.
type Reflector struct {
	Store       memory.Store
	Provider    llm.Provider
	World       *world.World
	DecayFactor float64
	Log         *slog.Logger
}

// Reflect runs one reflection for the agent at the given time. It returns
// an error for the runner to log; reflection failures never touch the tick
// result.
func (r *Reflector) Reflect(ctx context.Context, agent ids.AgentId, now simtime.Time) error {
	recent, err := r.Store.GetRecent(ctx, agent, memory.LayerShortTerm, recentForReflection)
	if err != nil {
		return fmt.Errorf("reflection: recent memories: %w", err)
	}
	if len(recent) == 0 {
		return nil
	}

	state, err := r.World.GetAgent(agent)
	if err != nil {
		return fmt.Errorf("reflection: %w", err)
	}

	var lines strings.Builder
	for _, m := range recent {
		fmt.Fprintf(&lines, "- %s\n", m.Content)
	}

	req := llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "system", Content: fmt.Sprintf(
				"You summarise what %s has recently lived through into one insight about themselves, "+
					"and judge whether it nudges one personality axis. Respond only with JSON matching the given schema.",
				state.Name,
			)},
			{Role: "user", Content: lines.String()},
		},
		Temperature: 0.5,
		MaxTokens:   300,
	}

	raw, err := r.Provider.CompleteStructured(ctx, req, reflectionSchema)
	if err != nil {
		return fmt.Errorf("reflection: structured call: %w", err)
	}

	var parsed reflectionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("reflection: response shape: %w", err)
	}
	if parsed.Summary == "" {
		return nil
	}

	var embedding []float32
	embs, err := r.Provider.Embed(ctx, []string{parsed.Summary})
	if err == nil && len(embs) > 0 {
		embedding = embs[0]
	}

	memId, err := r.Store.Store(ctx, agent, memory.Memory{
		Layer:      memory.LayerSemantic,
		Content:    parsed.Summary,
		CreatedAt:  now,
		Importance: semanticImportance,
		Valence:    state.Emotion.Valence,
		Tags:       []string{"reflection"},
	}, embedding)
	if err != nil {
		return fmt.Errorf("reflection: store semantic memory: %w", err)
	}

	if r.Log != nil {
		r.Log.Info("reflection_done",
			slog.String("type", "reflection_done"),
			slog.String("agent", agent.String()),
			slog.String("memory_id", memId.String()),
			slog.Bool("has_impact", parsed.Impact != nil),
		)
	}

	if parsed.Impact == nil {
		return nil
	}

	impact, ok := parseImpact(parsed.Impact.Dimension, parsed.Impact.Direction, parsed.Impact.Magnitude)
	if !ok {
		return nil
	}
	_, err = personality.ApplyToAgent(r.World, agent, impact, state.Personality.Stability, r.DecayFactor)
	if err != nil {
		return fmt.Errorf("reflection: personality shift: %w", err)
	}
	return nil
}

func parseImpact(dimension, direction string, magnitude float64) (personality.ReflectionImpact, bool) {
	var dim world.ReflectionDimension
	switch dimension {
	case "EI":
		dim = world.DimensionEI
	case "SN":
		dim = world.DimensionSN
	case "TF":
		dim = world.DimensionTF
	case "JP":
		dim = world.DimensionJP
	default:
		return personality.ReflectionImpact{}, false
	}

	dir := personality.Positive
	if direction == "negative" {
		dir = personality.Negative
	}

	return personality.ReflectionImpact{Dimension: dim, Direction: dir, Magnitude: magnitude}, true
}
