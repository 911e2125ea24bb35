// Package simevent defines SimulationEvent and its tagged-variant
// companions: the arbiter's sole output and the event generator's
// additions, pushed to the world log and cloned into broadcasts.
package simevent

import (
	"github.com/schoolsim/campus-engine/internal/ids"
	"github.com/schoolsim/campus-engine/internal/simtime"
	"github.com/schoolsim/campus-engine/internal/world"
)

// EventTypeKind is the closed sum an event is classified into. Precedence
// when deriving one from a batch of intents: Confront beats
// everything into Conflict; Talk/Collaborate become SocialInteraction;
// Study becomes Academic; anything else is Routine. That precedence never
// yields System or SpecialEvent: the arbiter uses System for an empty batch
// and parameter-change interventions use it too; SpecialEvent comes from the
// event generator, preset interventions or an LLM arbitration verdict.
type EventTypeKind int

const (
	EventTypeSystem EventTypeKind = iota
	EventTypeConflict
	EventTypeSocialInteraction
	EventTypeAcademic
	EventTypeRoutine
	EventTypeSpecialEvent
)

func (k EventTypeKind) String() string {
	switch k {
	case EventTypeSystem:
		return "System"
	case EventTypeConflict:
		return "Conflict"
	case EventTypeSocialInteraction:
		return "SocialInteraction"
	case EventTypeAcademic:
		return "Academic"
	case EventTypeRoutine:
		return "Routine"
	case EventTypeSpecialEvent:
		return "SpecialEvent"
	default:
		return "Unknown"
	}
}

// TriggerKind is the closed sum of what caused an event to exist.
type TriggerKind int

const (
	TriggerAgentAction TriggerKind = iota
	TriggerThreshold
	TriggerRandom
	TriggerSystem
	TriggerUserIntervention
)

// ScopeKind bounds which observers/narrative channels an event is relevant
// to, letting the runner and any future observer filter broadcasts without
// re-deriving it from InvolvedAgents each time.
type ScopeKind int

const (
	ScopeIndividual ScopeKind = iota
	ScopePair
	ScopeGroup
	ScopeCampus
)

// Event is one authoritative, immutable occurrence. Narrative must be
// non-empty whenever Intensity >= 0.3.
type Event struct {
	Id             ids.EventId
	Type           EventTypeKind
	Trigger        TriggerKind
	Scope          ScopeKind
	Timestamp      simtime.Time
	InvolvedAgents []ids.AgentId
	Narrative      string
	StateChanges   []world.StateChange
	Intensity      float64 // [0,1]
}

func scopeFor(involved int) ScopeKind {
	switch {
	case involved <= 1:
		return ScopeIndividual
	case involved == 2:
		return ScopePair
	default:
		return ScopeGroup
	}
}

// New builds an Event, deriving Scope from the size of involved unless the
// caller wants ScopeCampus (pass it via NewCampusWide).
func New(id ids.EventId, typ EventTypeKind, trigger TriggerKind, ts simtime.Time, involved []ids.AgentId, narrative string, changes []world.StateChange, intensity float64) Event {
	return Event{
		Id:             id,
		Type:           typ,
		Trigger:        trigger,
		Scope:          scopeFor(len(involved)),
		Timestamp:      ts,
		InvolvedAgents: involved,
		Narrative:      narrative,
		StateChanges:   changes,
		Intensity:      intensity,
	}
}

// NewCampusWide builds an Event whose scope is the whole campus regardless
// of how many agents are named in involved.
func NewCampusWide(id ids.EventId, typ EventTypeKind, trigger TriggerKind, ts simtime.Time, involved []ids.AgentId, narrative string, changes []world.StateChange, intensity float64) Event {
	e := New(id, typ, trigger, ts, involved, narrative, changes, intensity)
	e.Scope = ScopeCampus
	return e
}

func (e Event) Summary() world.EventSummary {
	return world.EventSummary{
		Id:        e.Id,
		Type:      e.Type.String(),
		Narrative: e.Narrative,
		Intensity: e.Intensity,
		At:        e.Timestamp,
	}
}
