package runner

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/schoolsim/campus-engine/internal/agentgen"
	"github.com/schoolsim/campus-engine/internal/catalogue"
	"github.com/schoolsim/campus-engine/internal/clock"
	"github.com/schoolsim/campus-engine/internal/config"
	"github.com/schoolsim/campus-engine/internal/intervention"
	"github.com/schoolsim/campus-engine/internal/llmmock"
	"github.com/schoolsim/campus-engine/internal/memory"
	"github.com/schoolsim/campus-engine/internal/memstore"
	"github.com/schoolsim/campus-engine/internal/simevent"
	"github.com/schoolsim/campus-engine/internal/world"
)

type fixture struct {
	runner   *Runner
	world    *world.World
	store    *memstore.Store
	provider *llmmock.Provider
}

func newFixture(t *testing.T, cfg config.Config, opts ...Opt) *fixture {
	t.Helper()
	cat := catalogue.Default()
	w := world.New(cat.Locations, cat.Schedule, 1)
	ck := clock.New(clock.Config{StepHours: cfg.TimeStepHours})
	store := memstore.New()
	provider := llmmock.New()
	r := New(cfg, w, ck, store, provider, nil, 1, opts...)
	return &fixture{runner: r, world: w, store: store, provider: provider}
}

func quietConfig() config.Config {
	cfg := config.Default()
	cfg.AutoEventsEnabled = false
	return cfg
}

// Five diverse agents, a mock LLM that always wants to study,
// ten ticks. Every arbitrated event is Academic, every involved agent ends
// up with at least one Academic-tagged ShortTerm memory, and exactly ten
// Tick broadcasts go out.
func TestTenTicksOfStudiousAgents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, quietConfig(), WithSimpleArbitration())

	agents := agentgen.New(1).GenerateDiverse(5, "dorm-1")
	for _, a := range agents {
		if err := f.runner.AddAgent(a); err != nil {
			t.Fatalf("AddAgent: %v", err)
		}
	}

	sub := f.runner.Subscribe()

	for i := 0; i < 10; i++ {
		res, err := f.runner.Step(ctx)
		if err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
		if res.Events[0].Type != simevent.EventTypeAcademic {
			t.Fatalf("tick %d: event type = %s, want Academic", i, res.Events[0].Type)
		}
		if len(res.Warnings) != 0 {
			t.Fatalf("tick %d: unexpected warnings %v", i, res.Warnings)
		}
	}

	for _, a := range agents {
		mems, err := f.store.GetRecent(ctx, a.Id, memory.LayerShortTerm, 0)
		if err != nil {
			t.Fatalf("GetRecent for %s: %v", a.Name, err)
		}
		found := false
		for _, m := range mems {
			for _, tag := range m.Tags {
				if tag == "Academic" {
					found = true
				}
			}
		}
		if !found {
			t.Fatalf("agent %s has no Academic-tagged short-term memory", a.Name)
		}
	}

	ticks := 0
	for drained := false; !drained; {
		select {
		case u := <-sub:
			if u.Kind == UpdateTick {
				ticks++
			}
		default:
			drained = true
		}
	}
	if ticks != 10 {
		t.Fatalf("expected 10 Tick broadcasts, got %d", ticks)
	}
}

// A pair at closeness -0.75 triggers the event generator's
// Conflict at intensity 0.7, involving both agents.
func TestHostileRelationshipEmitsConflict(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.RandomEventFrequency = 0
	f := newFixture(t, cfg, WithSimpleArbitration())

	agents := agentgen.New(2).GenerateDiverse(2, "dorm-1")
	for _, a := range agents {
		if err := f.runner.AddAgent(a); err != nil {
			t.Fatalf("AddAgent: %v", err)
		}
	}
	warnings := f.world.ApplyStateChanges([]world.StateChange{
		{Target: "relationship[" + agents[0].Name + "," + agents[1].Name + "].closeness", Kind: world.ChangeDelta, Value: -0.75},
	})
	if len(warnings) != 0 {
		t.Fatalf("relationship setup warnings: %v", warnings)
	}

	res, err := f.runner.Step(ctx)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}

	var conflict *simevent.Event
	for i := range res.Events {
		if res.Events[i].Type == simevent.EventTypeConflict && res.Events[i].Trigger == simevent.TriggerThreshold {
			conflict = &res.Events[i]
		}
	}
	if conflict == nil {
		t.Fatalf("expected a threshold Conflict event, got %v", res.Events)
	}
	if conflict.Intensity != 0.7 {
		t.Fatalf("conflict intensity = %v, want 0.7", conflict.Intensity)
	}
	if len(conflict.InvolvedAgents) != 2 {
		t.Fatalf("conflict involved %d agents, want 2", len(conflict.InvolvedAgents))
	}
}

// Stop from another goroutine 50 ms into a Normal-speed run;
// Run must return within 2.2 s.
func TestStopFromAnotherGoroutineReturnsPromptly(t *testing.T) {
	f := newFixture(t, quietConfig(), WithSimpleArbitration())
	for _, a := range agentgen.New(3).GenerateDiverse(2, "dorm-1") {
		_ = f.runner.AddAgent(a)
	}

	done := make(chan error, 1)
	start := time.Now()
	go func() { done <- f.runner.Run(context.Background()) }()

	time.Sleep(50 * time.Millisecond)
	f.runner.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2200 * time.Millisecond):
		t.Fatalf("Run did not return within 2.2s")
	}
	if elapsed := time.Since(start); elapsed > 2200*time.Millisecond {
		t.Fatalf("Run took %v", elapsed)
	}
}

// A failed step sends no broadcast for that tick.
func TestCancelledStepSendsNoBroadcast(t *testing.T) {
	f := newFixture(t, quietConfig(), WithSimpleArbitration())
	sub := f.runner.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.runner.Step(ctx); err == nil {
		t.Fatalf("expected error from cancelled step")
	}

	select {
	case u := <-sub:
		t.Fatalf("unexpected broadcast %v after failed step", u.Kind)
	default:
	}
}

func TestRunRejectsSecondConcurrentRun(t *testing.T) {
	f := newFixture(t, quietConfig(), WithSimpleArbitration())
	f.runner.SetSpeed(SpeedPaused)

	done := make(chan error, 1)
	go func() { done <- f.runner.Run(context.Background()) }()

	// Wait until the first loop has claimed the flag.
	deadline := time.Now().Add(time.Second)
	for !f.runner.Running() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if err := f.runner.Run(context.Background()); err == nil {
		t.Fatalf("expected AlreadyRunning from second Run")
	}

	f.runner.Stop()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestReflectionFiresAfterThreshold(t *testing.T) {
	ctx := context.Background()
	cfg := quietConfig()
	cfg.ReflectionThreshold = 2
	f := newFixture(t, cfg, WithSimpleArbitration())
	f.provider.StructuredScript = []json.RawMessage{
		json.RawMessage(`{"summary":"最近一直在认真学习"}`),
	}

	agent := agentgen.New(4).GenerateDiverse(1, "dorm-1")[0]
	if err := f.runner.AddAgent(agent); err != nil {
		t.Fatalf("AddAgent: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := f.runner.Step(ctx); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}

	// Reflection runs in the background; poll for its semantic memory.
	deadline := time.Now().Add(2 * time.Second)
	for {
		semantic, err := f.store.GetRecent(ctx, agent.Id, memory.LayerSemantic, 0)
		if err != nil {
			t.Fatalf("GetRecent: %v", err)
		}
		if len(semantic) == 1 {
			if semantic[0].Importance != 0.8 {
				t.Fatalf("semantic importance = %v, want 0.8", semantic[0].Importance)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("reflection never produced a semantic memory")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestInterveneChatWritesAgentMemory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, quietConfig(), WithSimpleArbitration())
	agent := agentgen.New(7).GenerateDiverse(1, "dorm-1")[0]
	if err := f.runner.AddAgent(agent); err != nil {
		t.Fatalf("AddAgent: %v", err)
	}

	e, err := f.runner.Intervene(ctx, intervention.Intervention{
		Kind:    intervention.KindChat,
		AgentId: agent.Id,
		Role:    "班主任",
		Message: "下周有数学竞赛，好好准备。",
	})
	if err != nil {
		t.Fatalf("Intervene: %v", err)
	}
	if e.Trigger != simevent.TriggerUserIntervention {
		t.Fatalf("trigger = %v, want UserIntervention", e.Trigger)
	}

	mems, _ := f.store.GetRecent(ctx, agent.Id, memory.LayerShortTerm, 0)
	if len(mems) != 1 {
		t.Fatalf("expected one chat memory, got %d", len(mems))
	}
	if len(f.runner.InterventionLogs()) != 1 {
		t.Fatalf("expected one intervention log entry")
	}
}

func TestInterveneParameterChangeAdjustsEventFrequency(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.RandomEventFrequency = 1.0
	f := newFixture(t, cfg, WithSimpleArbitration())
	agent := agentgen.New(8).GenerateDiverse(1, "dorm-1")[0]
	_ = f.runner.AddAgent(agent)

	if _, err := f.runner.Intervene(ctx, intervention.Intervention{
		Kind:      intervention.KindParameterChange,
		Parameter: intervention.ParamRandomEventFrequency,
		Value:     0,
	}); err != nil {
		t.Fatalf("Intervene: %v", err)
	}

	// With the frequency forced to zero, ticks never roll a random event.
	for i := 0; i < 5; i++ {
		res, err := f.runner.Step(ctx)
		if err != nil {
			t.Fatalf("Step: %v", err)
		}
		for _, e := range res.Events {
			if e.Trigger == simevent.TriggerRandom {
				t.Fatalf("random event fired after frequency set to 0")
			}
		}
	}
}

func TestIntervenePresetEventEntersWorldLog(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, quietConfig(), WithSimpleArbitration())
	agents := agentgen.New(9).GenerateDiverse(2, "dorm-1")
	for _, a := range agents {
		_ = f.runner.AddAgent(a)
	}

	e, err := f.runner.Intervene(ctx, intervention.Intervention{
		Kind: intervention.KindTriggerEvent,
		Event: intervention.PresetEvent{
			Kind:   intervention.PresetFriendshipConflict,
			AgentA: agents[0].Id,
			AgentB: agents[1].Id,
		},
	})
	if err != nil {
		t.Fatalf("Intervene: %v", err)
	}
	if e.Type != simevent.EventTypeConflict {
		t.Fatalf("event type = %v, want Conflict", e.Type)
	}

	logged := f.world.RecentEvents(0)
	if len(logged) != 1 || logged[0].Id != e.Id {
		t.Fatalf("expected the preset event in the world log, got %v", logged)
	}

	// Both involved agents remember it.
	for _, a := range agents {
		mems, _ := f.store.GetRecent(ctx, a.Id, memory.LayerShortTerm, 0)
		if len(mems) != 1 {
			t.Fatalf("agent %s: expected one memory, got %d", a.Name, len(mems))
		}
	}
}

func TestGetStatusReportsWorld(t *testing.T) {
	f := newFixture(t, quietConfig(), WithSimpleArbitration())
	for _, a := range agentgen.New(5).GenerateDiverse(3, "dorm-1") {
		_ = f.runner.AddAgent(a)
	}

	st := f.runner.GetStatus()
	if st.Partial {
		t.Fatalf("expected full status on an idle world")
	}
	if st.AgentCount != 3 {
		t.Fatalf("agent count = %d, want 3", st.AgentCount)
	}
	if st.Running {
		t.Fatalf("runner should not report running before Run")
	}
}

func TestExportShape(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, quietConfig(), WithSimpleArbitration())
	for _, a := range agentgen.New(6).GenerateDiverse(2, "dorm-1") {
		_ = f.runner.AddAgent(a)
	}
	if _, err := f.runner.Step(ctx); err != nil {
		t.Fatalf("Step: %v", err)
	}

	doc, err := f.runner.Export()
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	if !gjson.ValidBytes(doc) {
		t.Fatalf("export is not valid JSON: %s", doc)
	}
	root := gjson.ParseBytes(doc)
	if got := root.Get("simulation.agent_count").Int(); got != 2 {
		t.Fatalf("simulation.agent_count = %d, want 2", got)
	}
	if got := root.Get("agents.#").Int(); got != 2 {
		t.Fatalf("agents length = %d, want 2", got)
	}
	if root.Get("simulation.time.tick").Int() != 1 {
		t.Fatalf("expected tick 1 in export, got %s", root.Get("simulation.time").Raw)
	}
	if root.Get("events.#").Int() < 1 {
		t.Fatalf("expected at least one event in export")
	}
}

func TestSetSpeedBroadcasts(t *testing.T) {
	f := newFixture(t, quietConfig(), WithSimpleArbitration())
	sub := f.runner.Subscribe()

	f.runner.SetSpeed(SpeedFast)

	select {
	case u := <-sub:
		if u.Kind != UpdateSpeedChanged || u.Speed != SpeedFast {
			t.Fatalf("unexpected update %+v", u)
		}
	case <-time.After(time.Second):
		t.Fatalf("no SpeedChanged broadcast")
	}
}
