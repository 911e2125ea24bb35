package gamemaster

import (
	"testing"

	"github.com/schoolsim/campus-engine/internal/ids"
	"github.com/schoolsim/campus-engine/internal/simevent"
	"github.com/schoolsim/campus-engine/internal/simtime"
	"github.com/schoolsim/campus-engine/internal/world"
)

func TestCheckConsistencyFlagsSilentStateChanges(t *testing.T) {
	e := simevent.New(ids.NewEventId(), simevent.EventTypeRoutine, simevent.TriggerAgentAction, simtime.New(), nil, "", []world.StateChange{
		{Target: "agent:小明.emotion.valence", Kind: world.ChangeDelta, Value: 0.1},
	}, 0.1)

	warnings := CheckConsistency(e)
	if len(warnings) != 1 || warnings[0].Kind != WarningNarrativeDataMismatch {
		t.Fatalf("expected one narrative_data_mismatch, got %v", warnings)
	}
}

func TestCheckConsistencyFlagsIntenseButInertEvents(t *testing.T) {
	e := simevent.New(ids.NewEventId(), simevent.EventTypeConflict, simevent.TriggerAgentAction, simtime.New(), nil, "一场激烈的争吵", nil, 0.9)

	warnings := CheckConsistency(e)
	if len(warnings) != 1 || warnings[0].Kind != WarningIntensityMismatch {
		t.Fatalf("expected one intensity_mismatch, got %v", warnings)
	}
}

func TestCheckConsistencyPassesCoherentEvent(t *testing.T) {
	e := simevent.New(ids.NewEventId(), simevent.EventTypeConflict, simevent.TriggerAgentAction, simtime.New(), nil, "一场激烈的争吵", []world.StateChange{
		{Target: "agent:小明.emotion.stress", Kind: world.ChangeDelta, Value: 0.2},
	}, 0.9)

	if warnings := CheckConsistency(e); len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
}
