// Package gamemaster is the arbiter: the only component allowed to
// originate state changes from agent behaviour, and the trust boundary
// between free-form LLM output and world mutation.
package gamemaster

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/schoolsim/campus-engine/internal/ids"
	"github.com/schoolsim/campus-engine/internal/intent"
	"github.com/schoolsim/campus-engine/internal/llm"
	"github.com/schoolsim/campus-engine/internal/simevent"
	"github.com/schoolsim/campus-engine/internal/simtime"
	"github.com/schoolsim/campus-engine/internal/world"
)

const simpleIntensity = 0.3

// Arbiter reconciles a tick's intent batch into one SimulationEvent.
// Provider may be nil, which disables LLM arbitration and always takes the
// simple-arbitration path.
type Arbiter struct {
	Provider llm.Provider
}

func New(provider llm.Provider) *Arbiter {
	return &Arbiter{Provider: provider}
}

// Result is what Arbitrate returns: the event plus any warning produced
// while getting there (e.g. an LLM-arbitration fallback).
type Result struct {
	Event    simevent.Event
	Warnings []string
}

func (a *Arbiter) Arbitrate(ctx context.Context, eventID ids.EventId, now simtime.Time, intents []intent.BehaviorIntent) Result {
	if len(intents) == 0 {
		return Result{Event: simevent.New(eventID, simevent.EventTypeSystem, simevent.TriggerSystem, now, nil, "", nil, 0)}
	}

	if len(intents) == 1 || a.Provider == nil {
		return Result{Event: simpleArbitration(eventID, now, intents)}
	}

	event, err := a.llmArbitration(ctx, eventID, now, intents)
	if err != nil {
		fallback := simpleArbitration(eventID, now, intents)
		return Result{Event: fallback, Warnings: []string{fmt.Sprintf("LLM arbitration failed, used simple arbitration: %v", err)}}
	}
	return Result{Event: event}
}

func simpleArbitration(id ids.EventId, ts simtime.Time, intents []intent.BehaviorIntent) simevent.Event {
	typ := eventTypeForIntents(intents)

	descriptions := make([]string, 0, len(intents))
	involved := make([]ids.AgentId, 0, len(intents))
	for _, in := range intents {
		descriptions = append(descriptions, in.Description)
		involved = append(involved, in.AgentId)
		involved = append(involved, in.TargetAgents...)
	}

	return simevent.New(id, typ, simevent.TriggerAgentAction, ts, dedupeAgents(involved), strings.Join(descriptions, " "), nil, simpleIntensity)
}

// eventTypeForIntents applies the arbitration precedence: Confront beats
// everything into Conflict; {Talk, Collaborate} become SocialInteraction;
// Study becomes Academic; anything else is Routine.
func eventTypeForIntents(intents []intent.BehaviorIntent) simevent.EventTypeKind {
	hasConfront, hasSocial, hasStudy := false, false, false
	for _, in := range intents {
		switch in.Type.Kind {
		case intent.KindConfront:
			hasConfront = true
		case intent.KindTalk, intent.KindCollaborate:
			hasSocial = true
		case intent.KindStudy:
			hasStudy = true
		}
	}
	switch {
	case hasConfront:
		return simevent.EventTypeConflict
	case hasSocial:
		return simevent.EventTypeSocialInteraction
	case hasStudy:
		return simevent.EventTypeAcademic
	default:
		return simevent.EventTypeRoutine
	}
}

func dedupeAgents(ids_ []ids.AgentId) []ids.AgentId {
	seen := make(map[ids.AgentId]struct{}, len(ids_))
	out := make([]ids.AgentId, 0, len(ids_))
	for _, id := range ids_ {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// structuredSchema is the fixed JSON schema the arbiter asks the LLM to
// conform to: event_type, intensity, state_changes[], narrative.
var structuredSchema = llm.Schema{
	Name: "arbitration_v1",
	Schema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"event_type": map[string]any{
				"type": "string",
				"enum": []any{"Conflict", "SocialInteraction", "Academic", "Routine", "SpecialEvent"},
			},
			"intensity": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
			"narrative": map[string]any{"type": "string"},
			"state_changes": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"target": map[string]any{"type": "string"},
						"kind":   map[string]any{"type": "string", "enum": []any{"Delta", "Set", "Append"}},
						"value":  map[string]any{},
					},
					"required": []any{"target", "kind", "value"},
				},
			},
		},
		"required": []any{"event_type", "intensity", "narrative", "state_changes"},
	},
}

type structuredResponse struct {
	EventType    string              `json:"event_type"`
	Intensity    float64             `json:"intensity"`
	Narrative    string              `json:"narrative"`
	StateChanges []structuredChange  `json:"state_changes"`
}

type structuredChange struct {
	Target string `json:"target"`
	Kind   string `json:"kind"`
	Value  any    `json:"value"`
}

func (a *Arbiter) llmArbitration(ctx context.Context, id ids.EventId, ts simtime.Time, intents []intent.BehaviorIntent) (simevent.Event, error) {
	descriptions := make([]string, 0, len(intents))
	involved := make([]ids.AgentId, 0, len(intents))
	for _, in := range intents {
		descriptions = append(descriptions, fmt.Sprintf("%s: %s", in.AgentId, in.Description))
		involved = append(involved, in.AgentId)
		involved = append(involved, in.TargetAgents...)
	}

	req := llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "system", Content: "You are the arbiter reconciling simultaneous student actions into one school event. Respond only with JSON matching the given schema."},
			{Role: "user", Content: strings.Join(descriptions, "\n")},
		},
		Temperature: 0.3,
		MaxTokens:   400,
	}

	raw, err := a.Provider.CompleteStructured(ctx, req, structuredSchema)
	if err != nil {
		return simevent.Event{}, err
	}

	var parsed structuredResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return simevent.Event{}, fmt.Errorf("arbitration response did not match schema shape: %w", err)
	}

	typ, ok := parseEventType(parsed.EventType)
	if !ok {
		return simevent.Event{}, fmt.Errorf("unrecognized event_type %q", parsed.EventType)
	}

	changes := make([]world.StateChange, 0, len(parsed.StateChanges))
	for _, c := range parsed.StateChanges {
		kind, ok := parseChangeKind(c.Kind)
		if !ok {
			continue
		}
		changes = append(changes, world.StateChange{Target: c.Target, Kind: kind, Value: c.Value})
	}

	return simevent.New(id, typ, simevent.TriggerAgentAction, ts, dedupeAgents(involved), parsed.Narrative, changes, clampIntensity(parsed.Intensity)), nil
}

func clampIntensity(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func parseEventType(s string) (simevent.EventTypeKind, bool) {
	switch s {
	case "Conflict":
		return simevent.EventTypeConflict, true
	case "SocialInteraction":
		return simevent.EventTypeSocialInteraction, true
	case "Academic":
		return simevent.EventTypeAcademic, true
	case "Routine":
		return simevent.EventTypeRoutine, true
	case "SpecialEvent":
		return simevent.EventTypeSpecialEvent, true
	default:
		return 0, false
	}
}

func parseChangeKind(s string) (world.ChangeKind, bool) {
	switch s {
	case "Delta":
		return world.ChangeDelta, true
	case "Set":
		return world.ChangeSet, true
	case "Append":
		return world.ChangeAppend, true
	default:
		return 0, false
	}
}
