// Package intent holds BehaviorIntent, the runner's parsed representation
// of one agent's planned action for the current tick.
package intent

import "github.com/schoolsim/campus-engine/internal/ids"

// Kind is the closed sum of behavior categories ClassifyIntent maps free
// text onto: eight named categories plus Other, which carries the raw
// text that matched none of them.
type Kind int

const (
	KindStudy Kind = iota
	KindTalk
	KindCollaborate
	KindConfront
	KindRest
	KindEat
	KindExercise
	KindExplore
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindStudy:
		return "Study"
	case KindTalk:
		return "Talk"
	case KindCollaborate:
		return "Collaborate"
	case KindConfront:
		return "Confront"
	case KindRest:
		return "Rest"
	case KindEat:
		return "Eat"
	case KindExercise:
		return "Exercise"
	case KindExplore:
		return "Explore"
	case KindOther:
		return "Other"
	default:
		return "Unknown"
	}
}

// Type is the tagged IntentType value; Other carries the unrecognized text
// that produced it.
type Type struct {
	Kind  Kind
	Other string
}

// BehaviorIntent is one agent's planned action for this tick, built by the
// runner from an LLM completion; its Type comes from cognition.ClassifyIntent.
type BehaviorIntent struct {
	AgentId        ids.AgentId
	Description    string
	TargetLocation string // empty when the intent names no destination
	TargetAgents   []ids.AgentId
	Type           Type
}
