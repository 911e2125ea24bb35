package world

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/schoolsim/campus-engine/internal/clock"
	"github.com/schoolsim/campus-engine/internal/ids"
)

func testLocations() []Location {
	return []Location{
		{Id: "classroom-1", Name: "Classroom 1", Type: LocationClassroom},
		{Id: "dorm-1", Name: "Dormitory 1", Type: LocationDormitory},
		{Id: "cafeteria", Name: "Cafeteria", Type: LocationCafeteria},
		{Id: "study-1", Name: "Study Room 1", Type: LocationStudyRoom},
		{Id: "yard", Name: "Courtyard", Type: LocationRestArea},
	}
}

func testSchedule() []ClassPeriod {
	return []ClassPeriod{
		{Period: 1, Subject: "Math", ClassroomId: "classroom-1"},
		{Period: 2, Subject: "Chinese", ClassroomId: "classroom-1"},
		{Period: 3, Subject: "English", ClassroomId: "classroom-1"},
		{Period: 4, Subject: "Physics", ClassroomId: "classroom-1"},
		{Period: 5, Subject: "History", ClassroomId: "classroom-1"},
	}
}

func newTestAgent(name string) AgentState {
	return AgentState{
		Id:          ids.NewAgentId(),
		Name:        name,
		Personality: NewPersonalityParams(0.2, -0.1, 0.3, 0.0),
		Emotion:     NewEmotionalState(0, 0.2, 0.1),
		Abilities:   NewAbilityMetrics(0.5, 0.5, 0.5, 0.5),
		Location:    "dorm-1",
		Activity:    RestingActivity(),
	}
}

func TestAddAndGetAgent(t *testing.T) {
	w := New(testLocations(), testSchedule(), 1)
	a := newTestAgent("Wei")
	if err := w.AddAgent(a); err != nil {
		t.Fatalf("AddAgent: %v", err)
	}
	if err := w.AddAgent(a); err == nil {
		t.Fatalf("expected duplicate AddAgent to fail")
	}
	got, err := w.GetAgent(a.Id)
	if err != nil {
		t.Fatalf("GetAgent: %v", err)
	}
	if got.Name != "Wei" {
		t.Fatalf("expected name Wei, got %q", got.Name)
	}
}

func TestApplyStateChangesEmotionDeltaClamped(t *testing.T) {
	w := New(testLocations(), testSchedule(), 1)
	a := newTestAgent("Mei")
	a.Emotion.Valence = 0.9
	_ = w.AddAgent(a)

	warnings := w.ApplyStateChanges([]StateChange{
		{Target: "agent:Mei.emotion.valence", Kind: ChangeDelta, Value: 0.5},
	})
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	got, _ := w.GetAgent(a.Id)
	if got.Emotion.Valence != 1.0 {
		t.Fatalf("expected clamp to 1.0, got %f", got.Emotion.Valence)
	}
}

func TestApplyStateChangesUnknownTargetWarnsNotAborts(t *testing.T) {
	w := New(testLocations(), testSchedule(), 1)
	a := newTestAgent("Lin")
	_ = w.AddAgent(a)

	warnings := w.ApplyStateChanges([]StateChange{
		{Target: "agent:Lin.nonsense", Kind: ChangeSet, Value: "x"},
		{Target: "agent:Lin.emotion.stress", Kind: ChangeSet, Value: 0.4},
	})
	if len(warnings) != 1 {
		t.Fatalf("expected exactly one warning, got %v", warnings)
	}
	got, _ := w.GetAgent(a.Id)
	if got.Emotion.Stress != 0.4 {
		t.Fatalf("expected second change to still apply, got %f", got.Emotion.Stress)
	}
}

func TestApplyStateChangesRelationshipKeyedBySortedPair(t *testing.T) {
	w := New(testLocations(), testSchedule(), 1)
	a := newTestAgent("Ann")
	b := newTestAgent("Bo")
	_ = w.AddAgent(a)
	_ = w.AddAgent(b)

	w.ApplyStateChanges([]StateChange{
		{Target: "relationship[Ann,Bo].closeness", Kind: ChangeDelta, Value: -0.2},
	})
	w.ApplyStateChanges([]StateChange{
		{Target: "relationship[Bo,Ann].closeness", Kind: ChangeDelta, Value: -0.2},
	})

	rel, ok := w.GetRelationship(a.Id, b.Id)
	if !ok {
		t.Fatalf("expected relationship to exist")
	}
	if rel.Closeness != -0.4 {
		t.Fatalf("expected both directions to hit the same pair, got %f", rel.Closeness)
	}
}

func TestValenceDeltaClampsBothDirections(t *testing.T) {
	w := New(testLocations(), testSchedule(), 1)
	a := newTestAgent("小明")
	a.Emotion.Valence = 0.3
	_ = w.AddAgent(a)

	warnings := w.ApplyStateChanges([]StateChange{
		{Target: "agent:小明.emotion.valence", Kind: ChangeDelta, Value: 2.0},
	})
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	got, _ := w.GetAgent(a.Id)
	if got.Emotion.Valence != 1.0 {
		t.Fatalf("expected clamp to 1.0, got %f", got.Emotion.Valence)
	}

	w.ApplyStateChanges([]StateChange{
		{Target: "agent:小明.emotion.valence", Kind: ChangeDelta, Value: -5.0},
	})
	got, _ = w.GetAgent(a.Id)
	if got.Emotion.Valence != -1.0 {
		t.Fatalf("expected clamp to -1.0, got %f", got.Emotion.Valence)
	}
}

func TestUnknownAgentTargetWarnsWithoutMutation(t *testing.T) {
	w := New(testLocations(), testSchedule(), 1)
	a := newTestAgent("Hui")
	_ = w.AddAgent(a)
	before, _ := w.GetAgent(a.Id)

	warnings := w.ApplyStateChanges([]StateChange{
		{Target: "agent:nobody.emotion.valence", Kind: ChangeDelta, Value: 0.5},
	})
	if len(warnings) != 1 {
		t.Fatalf("expected exactly one warning, got %v", warnings)
	}
	after, _ := w.GetAgent(a.Id)
	if after.Emotion != before.Emotion {
		t.Fatalf("emotion mutated despite unknown target: %+v", after.Emotion)
	}
}

func TestAgentStateJSONRoundTrip(t *testing.T) {
	a := newTestAgent("Rong")
	a.Career = CareerCategory{Kind: CareerOther, Other: "电竞选手"}
	a.Activity = StudyingActivity("Math")
	a.CurrentThought = "想去图书馆"

	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back AgentState
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(a, back) {
		t.Fatalf("round trip mismatch:\n before %+v\n after  %+v", a, back)
	}
}

func TestProcessTimeEventsClassStartMovesAgents(t *testing.T) {
	w := New(testLocations(), testSchedule(), 1)
	a := newTestAgent("Qi")
	_ = w.AddAgent(a)
	w.SetTime(w.CurrentTime()) // no-op, keep default S1W1D1 08:00

	w.ProcessTimeEvents([]clock.TimeEvent{{Kind: clock.EventClassStart, Period: 1}})

	got, _ := w.GetAgent(a.Id)
	if got.Location != "classroom-1" {
		t.Fatalf("expected agent moved to classroom-1, got %s", got.Location)
	}
	if got.Activity.Kind != ActivityStudying || got.Activity.Subject != "Math" {
		t.Fatalf("expected Studying{Math}, got %+v", got.Activity)
	}
}

func TestDescribeSituationIncludesLocationAndClass(t *testing.T) {
	w := New(testLocations(), testSchedule(), 1)
	a := newTestAgent("Fang")
	a.Location = "classroom-1"
	_ = w.AddAgent(a)

	desc, err := w.DescribeSituation(a.Id)
	if err != nil {
		t.Fatalf("DescribeSituation: %v", err)
	}
	if desc == "" {
		t.Fatalf("expected non-empty description")
	}
	if !strings.Contains(desc, "Classroom 1") || !strings.Contains(desc, "Math") {
		t.Fatalf("description %q should name the location and the class in session", desc)
	}
}
