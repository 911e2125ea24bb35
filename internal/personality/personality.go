// Package personality computes the personality-evolution arithmetic.
// It is pure: given a ReflectionImpact and the agent's current stability,
// it returns the clamped delta to apply; internal/world.ApplyPersonalityShift
// owns the actual write, the shift-history append and the stability bump.
package personality

import (
	"github.com/schoolsim/campus-engine/internal/ids"
	"github.com/schoolsim/campus-engine/internal/world"
)

const minDelta = 0.005

// Direction is the sign of a reflection's personality pull.
type Direction int

const (
	Positive Direction = iota
	Negative
)

// ReflectionImpact is what a reflection task hands to the personality
// layer after summarizing an agent's recent memories.
type ReflectionImpact struct {
	Dimension world.ReflectionDimension
	Direction Direction
	Magnitude float64 // [0, 0.05]
}

// ComputeDelta returns the signed, stability- and decay-scaled delta to
// apply to the named axis, and whether it clears the minDelta floor at all
// (impacts below the floor are ignored entirely).
func ComputeDelta(impact ReflectionImpact, stability, decayFactor float64) (delta float64, apply bool) {
	magnitude := impact.Magnitude
	if magnitude < 0 {
		magnitude = -magnitude
	}
	if magnitude > 0.05 {
		magnitude = 0.05
	}

	signed := magnitude
	if impact.Direction == Negative {
		signed = -magnitude
	}

	if stability <= 0 {
		stability = 0.5
	}
	actual := signed * (1 / stability) * decayFactor

	if actual < 0 && -actual < minDelta {
		return 0, false
	}
	if actual >= 0 && actual < minDelta {
		return 0, false
	}
	return actual, true
}

// ApplyToAgent computes the delta and, if it clears the minDelta floor,
// writes it through World.ApplyPersonalityShift. Returns applied=false with
// no error when the impact was too small to matter.
func ApplyToAgent(w *world.World, agent ids.AgentId, impact ReflectionImpact, stability, decayFactor float64) (applied bool, err error) {
	delta, ok := ComputeDelta(impact, stability, decayFactor)
	if !ok {
		return false, nil
	}
	if err := w.ApplyPersonalityShift(agent, impact.Dimension, delta); err != nil {
		return false, err
	}
	return true, nil
}
