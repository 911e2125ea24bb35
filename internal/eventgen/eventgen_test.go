package eventgen

import (
	"testing"

	"github.com/schoolsim/campus-engine/internal/ids"
	"github.com/schoolsim/campus-engine/internal/simevent"
	"github.com/schoolsim/campus-engine/internal/simtime"
	"github.com/schoolsim/campus-engine/internal/world"
)

func TestScanEmitsConflictBelowThreshold(t *testing.T) {
	locs := []world.Location{{Id: "dorm-1", Name: "Dorm", Type: world.LocationDormitory}}
	w := world.New(locs, nil, 1)

	a := world.AgentState{Id: ids.NewAgentId(), Name: "A", Location: "dorm-1", Personality: world.NewPersonalityParams(0, 0, 0, 0), Emotion: world.NewEmotionalState(0, 0, 0), Abilities: world.NewAbilityMetrics(0, 0, 0, 0)}
	b := world.AgentState{Id: ids.NewAgentId(), Name: "B", Location: "dorm-1", Personality: world.NewPersonalityParams(0, 0, 0, 0), Emotion: world.NewEmotionalState(0, 0, 0), Abilities: world.NewAbilityMetrics(0, 0, 0, 0)}
	w.AddAgent(a)
	w.AddAgent(b)
	w.ApplyStateChanges([]world.StateChange{
		{Target: "relationship[A,B].closeness", Kind: world.ChangeDelta, Value: -0.9},
	})

	g := New(1)
	nextID := func() ids.EventId { return ids.NewEventId() }
	events := g.Scan(w, simtime.New(), []ids.AgentId{a.Id, b.Id}, func(id ids.AgentId) string { return id.String() }, 0, nextID)

	found := false
	for _, e := range events {
		if e.Type == simevent.EventTypeConflict && e.Trigger == simevent.TriggerThreshold {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a threshold Conflict event, got %+v", events)
	}
}

func TestScanNoRandomEventAtZeroFrequency(t *testing.T) {
	w := world.New(nil, nil, 1)
	g := New(1)
	events := g.Scan(w, simtime.New(), []ids.AgentId{ids.NewAgentId()}, func(id ids.AgentId) string { return id.String() }, 0, func() ids.EventId { return ids.NewEventId() })
	if len(events) != 0 {
		t.Fatalf("expected no events at zero frequency and no relationships, got %v", events)
	}
}
