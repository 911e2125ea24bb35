package reflection

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/schoolsim/campus-engine/internal/catalogue"
	"github.com/schoolsim/campus-engine/internal/ids"
	"github.com/schoolsim/campus-engine/internal/llmmock"
	"github.com/schoolsim/campus-engine/internal/memory"
	"github.com/schoolsim/campus-engine/internal/memstore"
	"github.com/schoolsim/campus-engine/internal/simtime"
	"github.com/schoolsim/campus-engine/internal/world"
)

func newTestWorld(t *testing.T) (*world.World, ids.AgentId) {
	t.Helper()
	cat := catalogue.Default()
	w := world.New(cat.Locations, cat.Schedule, 1)
	id := ids.NewAgentId()
	if err := w.AddAgent(world.AgentState{
		Id:          id,
		Name:        "小明",
		Personality: world.NewPersonalityParams(0.5, 0.2, -0.1, 0.3),
		Location:    "dorm-1",
	}); err != nil {
		t.Fatalf("AddAgent: %v", err)
	}
	return w, id
}

func TestReflectWritesSemanticMemory(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	provider := llmmock.New()
	provider.StructuredScript = []json.RawMessage{
		json.RawMessage(`{"summary":"我越来越喜欢和同学讨论问题","impact":{"dimension":"EI","direction":"positive","magnitude":0.04}}`),
	}

	w, agent := newTestWorld(t)
	now := simtime.Time{Semester: 1, Week: 1, Day: 1, Hour: 12}

	for _, content := range []string{"和小红讨论了数学题", "在课堂上主动发言", "小组合作很顺利"} {
		store.Store(ctx, agent, memory.Memory{Layer: memory.LayerShortTerm, Content: content, Importance: 0.4, CreatedAt: now}, nil)
	}

	r := &Reflector{Store: store, Provider: provider, World: w, DecayFactor: 1.0}
	if err := r.Reflect(ctx, agent, now); err != nil {
		t.Fatalf("Reflect: %v", err)
	}

	semantic, _ := store.GetRecent(ctx, agent, memory.LayerSemantic, 0)
	if len(semantic) != 1 {
		t.Fatalf("expected one semantic memory, got %d", len(semantic))
	}
	if semantic[0].Importance != 0.8 {
		t.Fatalf("semantic importance = %v, want 0.8", semantic[0].Importance)
	}

	state, _ := w.GetAgent(agent)
	if state.Personality.EI <= 0.5 {
		t.Fatalf("expected positive EI shift from impact, got %v", state.Personality.EI)
	}
	if len(state.Personality.ShiftHistory) != 1 {
		t.Fatalf("expected one shift-history record, got %d", len(state.Personality.ShiftHistory))
	}
}

func TestReflectNoMemoriesIsNoop(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	w, agent := newTestWorld(t)

	r := &Reflector{Store: store, Provider: llmmock.New(), World: w, DecayFactor: 1.0}
	if err := r.Reflect(ctx, agent, simtime.New()); err != nil {
		t.Fatalf("Reflect on empty store: %v", err)
	}
	semantic, _ := store.GetRecent(ctx, agent, memory.LayerSemantic, 0)
	if len(semantic) != 0 {
		t.Fatalf("expected no semantic memory, got %v", semantic)
	}
}
