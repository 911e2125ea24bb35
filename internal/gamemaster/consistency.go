package gamemaster

import (
	"github.com/schoolsim/campus-engine/internal/ids"
	"github.com/schoolsim/campus-engine/internal/simevent"
)

// ConsistencyWarningKind tags what kind of narrative/data mismatch a check
// found.
type ConsistencyWarningKind int

const (
	WarningNarrativeDataMismatch ConsistencyWarningKind = iota
	WarningIntensityMismatch
)

func (k ConsistencyWarningKind) String() string {
	switch k {
	case WarningNarrativeDataMismatch:
		return "narrative_data_mismatch"
	case WarningIntensityMismatch:
		return "intensity_mismatch"
	default:
		return "unknown"
	}
}

// ConsistencyWarning is one audit finding against a committed event.
type ConsistencyWarning struct {
	EventId     ids.EventId
	Kind        ConsistencyWarningKind
	Description string
}

// CheckConsistency audits one event for mismatches between its narrative
// and its data: state changes with no narrative explaining them, and
// high-intensity events that change nothing. Findings degrade to tick
// warnings; they never block the event.
func CheckConsistency(e simevent.Event) []ConsistencyWarning {
	var warnings []ConsistencyWarning

	if e.Narrative == "" && len(e.StateChanges) > 0 {
		warnings = append(warnings, ConsistencyWarning{
			EventId:     e.Id,
			Kind:        WarningNarrativeDataMismatch,
			Description: "state changes with no narrative to explain them",
		})
	}

	if e.Intensity > 0.7 && len(e.StateChanges) == 0 {
		warnings = append(warnings, ConsistencyWarning{
			EventId:     e.Id,
			Kind:        WarningIntensityMismatch,
			Description: "high-intensity event with no state changes",
		})
	}

	return warnings
}
