// Package runner orchestrates the tick pipeline: clock advance,
// time-event processing, per-agent cognition, arbitration, state-change
// application, event logging, memory writes, reflection scheduling and the
// observer broadcast — strictly in that order, one tick at a time.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/schoolsim/campus-engine/internal/clock"
	"github.com/schoolsim/campus-engine/internal/cognition"
	"github.com/schoolsim/campus-engine/internal/config"
	"github.com/schoolsim/campus-engine/internal/consolidation"
	"github.com/schoolsim/campus-engine/internal/eventgen"
	"github.com/schoolsim/campus-engine/internal/gamemaster"
	"github.com/schoolsim/campus-engine/internal/ids"
	"github.com/schoolsim/campus-engine/internal/intent"
	"github.com/schoolsim/campus-engine/internal/intervention"
	"github.com/schoolsim/campus-engine/internal/llm"
	"github.com/schoolsim/campus-engine/internal/memory"
	"github.com/schoolsim/campus-engine/internal/reflection"
	"github.com/schoolsim/campus-engine/internal/simerrors"
	"github.com/schoolsim/campus-engine/internal/simevent"
	"github.com/schoolsim/campus-engine/internal/simtime"
	"github.com/schoolsim/campus-engine/internal/world"
)

const (
	defaultLlmTimeout      = 30 * time.Second
	maxConcurrentCognition = 8
	pausePollInterval      = 100 * time.Millisecond
	statusLockTimeout      = 100 * time.Millisecond

	// ConsolidationInterval is the cadence for the memory
	// consolidation/forgetting sweep: every 20 ticks, after the memory-write
	// phase of the tick that lands on the boundary.
	ConsolidationInterval = 20
)

// Runner owns the world, the collaborators and the control surface. It is
// safe to call Stop, SetSpeed, Subscribe and Status from any goroutine
// while Run is looping.
type Runner struct {
	cfg      config.Config
	world    *world.World
	clk      *clock.Clock
	store    memory.Store
	provider llm.Provider

	arbiter       *gamemaster.Arbiter
	events        *eventgen.Generator
	trigger       *reflection.Trigger
	reflector     *reflection.Reflector
	sweeper       *consolidation.Sweeper
	interventions *intervention.Manager

	log *slog.Logger
	bc  *broadcaster

	// running is the sole cancellation mechanism for the loop; it is a
	// standalone atomic so Stop never contends with an in-flight tick.
	running atomic.Bool
	speed   atomic.Int64

	stepMu      sync.Mutex
	reflections sync.WaitGroup

	llmTimeout time.Duration
}

// Opt tweaks a Runner at construction.
type Opt func(*Runner)

// WithLlmTimeout overrides the per-call LLM timeout used in the cognition
// phase.
func WithLlmTimeout(d time.Duration) Opt {
	return func(r *Runner) { r.llmTimeout = d }
}

// WithSimpleArbitration disables LLM arbitration so every batch takes the
// precedence-table path, regardless of batch size.
func WithSimpleArbitration() Opt {
	return func(r *Runner) { r.arbiter = gamemaster.New(nil) }
}

// New wires a Runner from its collaborators. seed drives the event
// generator's RNG so runs are reproducible given a fixed seed and a mock
// provider.
func New(cfg config.Config, w *world.World, ck *clock.Clock, store memory.Store, provider llm.Provider, log *slog.Logger, seed int64, opts ...Opt) *Runner {
	if log == nil {
		log = slog.Default()
	}
	r := &Runner{
		cfg:      cfg,
		world:    w,
		clk:      ck,
		store:    store,
		provider: provider,
		arbiter:  gamemaster.New(provider),
		events:   eventgen.New(seed),
		trigger:  reflection.New(cfg.ReflectionThreshold),
		reflector: &reflection.Reflector{
			Store:       store,
			Provider:    provider,
			World:       w,
			DecayFactor: cfg.PersonalityDecayFactor,
			Log:         log,
		},
		sweeper:       &consolidation.Sweeper{Store: store, Embed: provider.Embed, Log: log},
		interventions: intervention.NewManager(),
		log:           log,
		bc:            newBroadcaster(),
		llmTimeout:    defaultLlmTimeout,
	}
	r.speed.Store(int64(SpeedNormal))
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddAgent inserts an agent into the world.
func (r *Runner) AddAgent(a world.AgentState) error {
	return r.world.AddAgent(a)
}

// Subscribe registers a new broadcast consumer. Slow consumers miss
// messages rather than blocking the runner.
func (r *Runner) Subscribe() <-chan Update {
	return r.bc.subscribe()
}

// Unsubscribe removes and closes a channel previously returned by Subscribe.
func (r *Runner) Unsubscribe(ch <-chan Update) {
	r.bc.unsubscribe(ch)
}

// SetSpeed changes the pacing level and announces it to observers.
func (r *Runner) SetSpeed(s Speed) {
	r.speed.Store(int64(s))
	r.bc.send(Update{Kind: UpdateSpeedChanged, Time: r.clk.CurrentTime(), Speed: s})
}

func (r *Runner) Speed() Speed { return Speed(r.speed.Load()) }

// Stop flips the running flag. It takes no locks, so it can never deadlock
// against a tick in progress; Run exits after the current tick and sleep.
func (r *Runner) Stop() { r.running.Store(false) }

func (r *Runner) Running() bool { return r.running.Load() }

// StepResult is one tick's outcome: its events plus every per-agent and
// per-change warning accumulated along the way.
type StepResult struct {
	Tick     uint64
	Time     simtime.Time
	Events   []simevent.Event
	Warnings []string
}

// Step executes one tick synchronously, phases in a fixed order.
// Agent-scoped and change-scoped failures degrade to warnings; only
// system-scoped failures (here: a dead context) return an error, and no
// broadcast is sent in that case.
func (r *Runner) Step(ctx context.Context) (StepResult, error) {
	r.stepMu.Lock()
	defer r.stepMu.Unlock()

	if err := ctx.Err(); err != nil {
		return StepResult{}, simerrors.NewSimulationError(simerrors.SimNotRunning, "step cancelled", err)
	}

	start := time.Now()
	var warnings []string

	// 1-2. Advance time, move agents by schedule.
	timeEvents := r.clk.Advance()
	now := r.clk.CurrentTime()
	r.world.SetTime(now)
	r.world.ProcessTimeEvents(timeEvents)

	// 3. Perceive + think, one goroutine per agent, bounded.
	snap := r.world.Snapshot()
	intents := r.collectIntents(ctx, snap, &warnings)

	// 4-5. Arbitrate, apply the bounded state changes.
	res := r.arbiter.Arbitrate(ctx, ids.NewEventId(), now, intents)
	warnings = append(warnings, res.Warnings...)
	warnings = append(warnings, r.world.ApplyStateChanges(res.Event.StateChanges)...)

	// 6. Log the authoritative event, then any generator additions.
	events := []simevent.Event{res.Event}
	r.world.PushEvent(res.Event.Summary())

	if r.cfg.AutoEventsEnabled {
		agentIds := make([]ids.AgentId, 0, len(snap.Agents))
		names := make(map[ids.AgentId]string, len(snap.Agents))
		for _, a := range snap.Agents {
			agentIds = append(agentIds, a.Id)
			names[a.Id] = a.Name
		}
		generated := r.events.Scan(r.world, now, agentIds,
			func(id ids.AgentId) string { return names[id] },
			r.cfg.RandomEventFrequency, ids.NewEventId)
		for _, e := range generated {
			r.world.PushEvent(e.Summary())
			events = append(events, e)
		}
	}

	// Audit the committed events for narrative/data mismatches; findings
	// join the warning list, they never block the tick.
	for _, e := range events {
		for _, cw := range gamemaster.CheckConsistency(e) {
			err := simerrors.NewSimulationError(simerrors.SimConsistencyViolation,
				fmt.Sprintf("event %s: %s: %s", e.Id, cw.Kind, cw.Description), nil)
			warnings = append(warnings, err.Error())
		}
	}

	// 7. Remember: one ShortTerm memory per involved agent per event, then
	// feed the reflection trigger.
	r.writeEventMemories(ctx, events, now, &warnings)

	// Sensory never survives a tick; the full consolidation sweep runs on
	// its own cadence.
	allAgents := make([]ids.AgentId, 0, len(snap.Agents))
	for _, a := range snap.Agents {
		allAgents = append(allAgents, a.Id)
	}
	warnings = append(warnings, r.sweeper.DiscardSensory(ctx, allAgents)...)
	if now.Tick > 0 && now.Tick%ConsolidationInterval == 0 {
		warnings = append(warnings, r.sweeper.Sweep(ctx, allAgents, now)...)
	}

	// 8. Broadcast the post-commit state.
	post := r.world.Snapshot()
	r.bc.send(Update{Kind: UpdateTick, Time: now, Snapshot: &post, Events: events})

	r.log.Info("tick",
		slog.String("type", "tick"),
		slog.Uint64("tick", now.Tick),
		slog.String("time", now.String()),
		slog.Int("events", len(events)),
		slog.Int("intents", len(intents)),
		slog.Int("warnings", len(warnings)),
		slog.Duration("latency", time.Since(start)),
	)

	return StepResult{Tick: now.Tick, Time: now, Events: events, Warnings: warnings}, nil
}

// collectIntents runs the perceive/retrieve/think phase for every agent
// concurrently. Per-agent failures append a warning and omit that agent's
// intent; they never abort the tick.
func (r *Runner) collectIntents(ctx context.Context, snap world.WorldSnapshot, warnings *[]string) []intent.BehaviorIntent {
	slots := make([]*intent.BehaviorIntent, len(snap.Agents))

	var warnMu sync.Mutex
	warn := func(format string, args ...any) {
		warnMu.Lock()
		*warnings = append(*warnings, fmt.Sprintf(format, args...))
		warnMu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentCognition)

	for i := range snap.Agents {
		g.Go(func() error {
			a := snap.Agents[i]

			situation, err := r.world.DescribeSituation(a.Id)
			if err != nil {
				warn("agent %s: describe situation: %v", a.Name, err)
				return nil
			}

			var memories []memory.ScoredMemory
			embs, err := r.provider.Embed(gctx, []string{situation})
			if err != nil {
				warn("agent %s: query embedding: %v", a.Name, err)
			} else if len(embs) > 0 {
				memories, err = r.store.Retrieve(gctx, a.Id, embs[0],
					memory.RetrievalFilter{Limit: 5}, memory.RetrievalWeights{}, snap.Time)
				if err != nil {
					warn("agent %s: memory retrieval: %v", a.Name, err)
					memories = nil
				}
			}

			req := cognition.BuildRequest(cognition.AgentView{
				Name:        a.Name,
				Personality: a.Personality,
				Career:      a.Career,
				Emotion:     a.Emotion,
			}, situation, memories)

			cctx, cancel := context.WithTimeout(gctx, r.llmTimeout)
			resp, err := r.provider.Complete(cctx, req)
			cancel()
			if err != nil {
				warn("agent %s: completion: %v", a.Name, err)
				return nil
			}

			if err := r.world.WithAgentMut(a.Id, func(live *world.AgentState) {
				live.CurrentThought = resp.Content
			}); err != nil {
				warn("agent %s: record thought: %v", a.Name, err)
			}

			slots[i] = &intent.BehaviorIntent{
				AgentId:     a.Id,
				Description: resp.Content,
				Type:        cognition.ClassifyIntent(resp.Content),
			}
			return nil
		})
	}
	_ = g.Wait() // closures always return nil; failures became warnings

	intents := make([]intent.BehaviorIntent, 0, len(slots))
	for _, s := range slots {
		if s != nil {
			intents = append(intents, *s)
		}
	}
	return intents
}

// writeEventMemories stores one ShortTerm memory per involved agent per
// event with importance equal to the event's intensity, then feeds the
// reflection trigger and schedules a reflection when it fires.
func (r *Runner) writeEventMemories(ctx context.Context, events []simevent.Event, now simtime.Time, warnings *[]string) {
	for _, e := range events {
		if e.Narrative == "" || len(e.InvolvedAgents) == 0 {
			continue
		}

		var embedding []float32
		embs, err := r.provider.Embed(ctx, []string{e.Narrative})
		if err != nil {
			*warnings = append(*warnings, fmt.Sprintf("event %s: narrative embedding: %v", e.Id, err))
		} else if len(embs) > 0 {
			embedding = embs[0]
		}

		for _, agent := range e.InvolvedAgents {
			_, err := r.store.Store(ctx, agent, memory.Memory{
				Layer:      memory.LayerShortTerm,
				Content:    e.Narrative,
				CreatedAt:  now,
				Importance: e.Intensity,
				Tags:       []string{e.Type.String()},
			}, embedding)
			if err != nil {
				*warnings = append(*warnings, fmt.Sprintf("agent %s: memory write: %v", agent, err))
				continue
			}

			if r.trigger.RecordEvent(agent) {
				r.scheduleReflection(agent, now)
			}
		}
	}
}

// scheduleReflection runs the reflection task in the background so it never
// extends the tick; Run waits for in-flight reflections before returning.
func (r *Runner) scheduleReflection(agent ids.AgentId, now simtime.Time) {
	r.reflections.Add(1)
	go func() {
		defer r.reflections.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.llmTimeout)
		defer cancel()
		if err := r.reflector.Reflect(ctx, agent, now); err != nil {
			r.log.Warn("reflection_failed",
				slog.String("type", "reflection_failed"),
				slog.String("agent", agent.String()),
				slog.Any("err", err),
			)
		}
	}()
}

// Run loops Step under the speed-controlled pacing until Stop flips the
// running flag (or ctx dies). Step failures are logged and the loop
// continues; only an explicit stop or cancellation terminates it.
func (r *Runner) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return simerrors.NewSimulationError(simerrors.SimAlreadyRunning, "run loop already active", nil)
	}
	defer r.running.Store(false)

	r.bc.send(Update{Kind: UpdateStarted, Time: r.clk.CurrentTime()})
	defer r.bc.send(Update{Kind: UpdateStopped, Time: r.clk.CurrentTime()})
	defer r.reflections.Wait()

	for r.running.Load() {
		if ctx.Err() != nil {
			break
		}

		sp := r.Speed()
		if sp == SpeedPaused {
			select {
			case <-ctx.Done():
			case <-time.After(pausePollInterval):
			}
			continue
		}

		if _, err := r.Step(ctx); err != nil {
			r.log.Error("step_failed",
				slog.String("type", "step_failed"),
				slog.Any("err", err),
			)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if !r.running.Load() {
			break
		}
		if iv := sp.Interval(); iv > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(iv):
			}
		}
	}
	return nil
}

const (
	chatMemoryImportance = 0.5
	chatEventIntensity   = 0.4
)

// Intervene applies one operator intervention between ticks: a role-played
// chat lands in the target agent's memory, a parameter change adjusts the
// engine's knobs, and a preset event enters the world log exactly like a
// generated one. It serializes against Step so an intervention never lands
// mid-tick.
func (r *Runner) Intervene(ctx context.Context, iv intervention.Intervention) (simevent.Event, error) {
	r.stepMu.Lock()
	defer r.stepMu.Unlock()

	now := r.clk.CurrentTime()

	switch iv.Kind {
	case intervention.KindChat:
		if _, err := r.world.GetAgent(iv.AgentId); err != nil {
			return simevent.Event{}, err
		}
		entry := r.interventions.RecordChat(iv.AgentId, iv.Role, iv.Message, now)

		var embedding []float32
		if embs, err := r.provider.Embed(ctx, []string{entry.Description}); err == nil && len(embs) > 0 {
			embedding = embs[0]
		}
		_, err := r.store.Store(ctx, iv.AgentId, memory.Memory{
			Layer:      memory.LayerShortTerm,
			Content:    entry.Description,
			CreatedAt:  now,
			Importance: chatMemoryImportance,
			Tags:       []string{"intervention"},
		}, embedding)
		if err != nil {
			return simevent.Event{}, err
		}

		e := simevent.New(entry.Id, simevent.EventTypeSocialInteraction, simevent.TriggerUserIntervention,
			now, []ids.AgentId{iv.AgentId}, entry.Description, nil, chatEventIntensity)
		r.world.PushEvent(e.Summary())
		if r.trigger.RecordEvent(iv.AgentId) {
			r.scheduleReflection(iv.AgentId, now)
		}
		return e, nil

	case intervention.KindParameterChange:
		entry, value := r.interventions.ApplyParameterChange(iv.Parameter, iv.Value, now)
		if iv.Parameter == intervention.ParamRandomEventFrequency {
			r.cfg.RandomEventFrequency = value
		}
		e := simevent.New(entry.Id, simevent.EventTypeSystem, simevent.TriggerUserIntervention,
			now, nil, entry.Description, nil, 0)
		r.world.PushEvent(e.Summary())
		return e, nil

	case intervention.KindTriggerEvent:
		e := r.interventions.TriggerPresetEvent(iv.Event, now, ids.NewEventId)
		r.world.PushEvent(e.Summary())
		var warnings []string
		r.writeEventMemories(ctx, []simevent.Event{e}, now, &warnings)
		for _, w := range warnings {
			r.log.Warn("intervention_warning",
				slog.String("type", "intervention_warning"),
				slog.String("warning", w),
			)
		}
		return e, nil

	default:
		return simevent.Event{}, fmt.Errorf("unknown intervention kind %d", iv.Kind)
	}
}

// InterventionLogs returns the audit trail of applied interventions.
func (r *Runner) InterventionLogs() []intervention.Log {
	return r.interventions.Logs()
}

// Status is the observer-facing health view. Partial is true when the world
// read lock could not be acquired within 100 ms, in which case only Running
// is meaningful.
type Status struct {
	Running    bool
	Speed      Speed
	Time       simtime.Time
	AgentCount int
	Partial    bool
}

// GetStatus reports the runner's state without ever blocking the caller on
// a long-held world lock.
func (r *Runner) GetStatus() Status {
	st := Status{Running: r.running.Load(), Speed: r.Speed(), Partial: true}

	done := make(chan world.WorldSnapshot, 1)
	go func() { done <- r.world.Snapshot() }()

	select {
	case snap := <-done:
		st.Time = snap.Time
		st.AgentCount = len(snap.Agents)
		st.Partial = false
	case <-time.After(statusLockTimeout):
	}
	return st
}
