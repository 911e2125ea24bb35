package world

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/schoolsim/campus-engine/internal/clock"
	"github.com/schoolsim/campus-engine/internal/ids"
	"github.com/schoolsim/campus-engine/internal/simerrors"
	"github.com/schoolsim/campus-engine/internal/simtime"
)

// World is the single mutation target for agents, locations, relationships
// and the event log. All writers take the exclusive lock; readers (the
// cognition snapshot phase and any observer) take the shared lock. It is
// never held across an LLM or memory-store call.
type World struct {
	mu sync.RWMutex

	now simtime.Time

	agents   map[ids.AgentId]*AgentState
	byName   map[string]ids.AgentId
	locations map[LocationId]*Location
	schedule  []ClassPeriod // weekday periods, repeated every weekday

	relationships map[string]*Relationship

	events []EventSummary

	rng *rand.Rand
}

// New builds an empty world seeded with the given campus locations and
// weekday class schedule (typically loaded by internal/catalogue).
func New(locations []Location, schedule []ClassPeriod, seed int64) *World {
	locIndex := make(map[LocationId]*Location, len(locations))
	for i := range locations {
		l := locations[i]
		locIndex[l.Id] = &l
	}
	return &World{
		now:           simtime.New(),
		agents:        make(map[ids.AgentId]*AgentState),
		byName:        make(map[string]ids.AgentId),
		locations:     locIndex,
		schedule:      schedule,
		relationships: make(map[string]*Relationship),
		rng:           rand.New(rand.NewSource(seed)),
	}
}

func (w *World) SetTime(t simtime.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.now = t
}

func (w *World) CurrentTime() simtime.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.now
}

// AddAgent inserts a new agent, failing if its id already exists.
func (w *World) AddAgent(a AgentState) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.agents[a.Id]; exists {
		return simerrors.NewWorldError(simerrors.WorldStateError, fmt.Sprintf("agent %s already exists", a.Id), nil)
	}
	if _, ok := w.locations[a.Location]; !ok {
		return simerrors.NewWorldError(simerrors.WorldLocationNotFound, string(a.Location), nil)
	}
	cp := a
	w.agents[cp.Id] = &cp
	w.byName[cp.Name] = cp.Id
	return nil
}

// GetAgent returns a copy of the agent state; safe for callers to retain.
func (w *World) GetAgent(id ids.AgentId) (AgentState, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	a, ok := w.agents[id]
	if !ok {
		return AgentState{}, simerrors.NewWorldError(simerrors.WorldAgentNotFound, id.String(), nil)
	}
	return *a, nil
}

// WithAgentMut runs fn against the live agent record under the write lock,
// touching LastUpdated afterward. This is how callers outside this package
// mutate an AgentState field not covered by the StateChange DSL (e.g. the
// runner recording an agent's CurrentThought).
func (w *World) WithAgentMut(id ids.AgentId, fn func(*AgentState)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, ok := w.agents[id]
	if !ok {
		return simerrors.NewWorldError(simerrors.WorldAgentNotFound, id.String(), nil)
	}
	fn(a)
	a.touch(time.Now())
	return nil
}

// AgentsAtLocation enumerates agents currently at loc.
func (w *World) AgentsAtLocation(loc LocationId) []AgentState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var out []AgentState
	for _, a := range w.agents {
		if a.Location == loc {
			out = append(out, *a)
		}
	}
	return out
}

// CurrentClass returns the active class period, if the current hour maps to
// one on a weekday, per the same hour table clock.Advance uses.
func (w *World) CurrentClass() (ClassPeriod, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.currentClassLocked()
}

func (w *World) currentClassLocked() (ClassPeriod, bool) {
	if !w.now.IsWeekday() {
		return ClassPeriod{}, false
	}
	period, ok := clock.PeriodForHour(w.now.Hour)
	if !ok {
		return ClassPeriod{}, false
	}
	for _, cp := range w.schedule {
		if cp.Period == period {
			return cp, true
		}
	}
	return ClassPeriod{}, false
}

func (w *World) resolveAgentRef(ref string) (ids.AgentId, bool) {
	if id, err := ids.ParseAgentId(ref); err == nil {
		if _, ok := w.agents[id]; ok {
			return id, true
		}
	}
	if id, ok := w.byName[ref]; ok {
		return id, true
	}
	return ids.AgentId{}, false
}

// ApplyStateChanges validates and applies each change. No single invalid
// change halts the batch; each failure is folded into the returned warning
// list instead.
func (w *World) ApplyStateChanges(changes []StateChange) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var warnings []string
	warn := func(format string, args ...any) { warnings = append(warnings, fmt.Sprintf(format, args...)) }

	for _, c := range changes {
		sel, ok := parseTarget(c.Target)
		if !ok {
			warn("unrecognized state-change target %q", c.Target)
			continue
		}

		switch {
		case sel.isAgent:
			id, ok := w.resolveAgentRef(sel.agentRef)
			if !ok {
				warn("state change %q: unknown agent %q", c.Target, sel.agentRef)
				continue
			}
			agent := w.agents[id]
			if err := applyAgentField(agent, sel.agentField, c.Kind, c.Value, w); err != nil {
				warn("state change %q: %v", c.Target, err)
				continue
			}
			agent.touch(time.Now())

		case sel.isRelationship:
			a, ok1 := w.resolveAgentRef(sel.relA)
			b, ok2 := w.resolveAgentRef(sel.relB)
			if !ok1 || !ok2 {
				warn("state change %q: unknown agent in pair", c.Target)
				continue
			}
			if err := w.applyRelationshipField(a, b, sel.relField, c.Kind, c.Value); err != nil {
				warn("state change %q: %v", c.Target, err)
				continue
			}
		}
	}

	return warnings
}

func applyAgentField(a *AgentState, field string, kind ChangeKind, value any, w *World) error {
	switch field {
	case "location":
		if kind != ChangeSet {
			return fmt.Errorf("location only supports Set")
		}
		s, ok := asString(value)
		if !ok {
			return fmt.Errorf("location value must be a string")
		}
		if _, exists := w.locations[LocationId(s)]; !exists {
			return fmt.Errorf("unknown location %q", s)
		}
		a.Location = LocationId(s)
		return nil

	case "emotion.valence":
		return applyClampedFloat(&a.Emotion.Valence, kind, value, -1, 1)
	case "emotion.arousal":
		return applyClampedFloat(&a.Emotion.Arousal, kind, value, 0, 1)
	case "emotion.stress":
		return applyClampedFloat(&a.Emotion.Stress, kind, value, 0, 1)
	default:
		return fmt.Errorf("unsupported agent field %q", field)
	}
}

func applyClampedFloat(field *float64, kind ChangeKind, value any, lo, hi float64) error {
	v, ok := asFloat(value)
	if !ok {
		return fmt.Errorf("value must be numeric")
	}
	switch kind {
	case ChangeSet:
		*field = clamp(v, lo, hi)
	case ChangeDelta:
		*field = clamp(*field+v, lo, hi)
	default:
		return fmt.Errorf("unsupported change kind for numeric field")
	}
	return nil
}

func (w *World) applyRelationshipField(a, b ids.AgentId, field string, kind ChangeKind, value any) error {
	v, ok := asFloat(value)
	if !ok {
		return fmt.Errorf("value must be numeric")
	}
	if kind != ChangeDelta {
		return fmt.Errorf("relationship fields only support Delta")
	}

	lo, hi := a, b
	if lo.String() > hi.String() {
		lo, hi = hi, lo
	}
	key := lo.String() + "|" + hi.String()

	rel, ok := w.relationships[key]
	if !ok {
		rel = &Relationship{A: lo, B: hi}
		w.relationships[key] = rel
	}
	switch field {
	case "closeness":
		rel.Closeness = clamp(rel.Closeness+v, -1, 1)
	case "trust":
		rel.Trust = clamp(rel.Trust+v, 0, 1)
	default:
		return fmt.Errorf("unsupported relationship field %q", field)
	}
	rel.LastInteraction = w.now
	return nil
}

// ApplyPersonalityShift applies one already-computed, already-clamped delta
// to an agent's personality axis: the signed-magnitude/stability/
// decay arithmetic lives in internal/personality, which is pure; the World
// only owns the write, the shift-history append and the stability bump.
func (w *World) ApplyPersonalityShift(id ids.AgentId, dim ReflectionDimension, delta float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	a, ok := w.agents[id]
	if !ok {
		return simerrors.NewWorldError(simerrors.WorldAgentNotFound, id.String(), nil)
	}

	axis := a.Personality.axis(dim)
	*axis = clamp(*axis+delta, -1, 1)
	a.Personality.Stability = clamp(a.Personality.Stability+0.01, 0.5, 10.0)
	a.Personality.ShiftHistory = append(a.Personality.ShiftHistory, PersonalityShift{
		Dimension: dim,
		Delta:     delta,
		At:        w.now,
	})
	a.touch(time.Now())
	return nil
}

// GetRelationship returns the relationship for the unordered pair, if any.
func (w *World) GetRelationship(a, b ids.AgentId) (Relationship, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	lo, hi := relKey(a, b)
	key := lo.String() + "|" + hi.String()
	rel, ok := w.relationships[key]
	if !ok {
		return Relationship{}, false
	}
	return *rel, true
}

// AllRelationships returns every stored relationship; used by the event
// generator's threshold scan.
func (w *World) AllRelationships() []Relationship {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Relationship, 0, len(w.relationships))
	for _, r := range w.relationships {
		out = append(out, *r)
	}
	return out
}

// locationsOfType returns every catalogue location matching any of kinds.
// Callers hold w.mu already (read or write).
func (w *World) locationsOfType(kinds ...LocationType) []LocationId {
	var out []LocationId
	for _, l := range w.locations {
		for _, k := range kinds {
			if l.Type == k {
				out = append(out, l.Id)
				break
			}
		}
	}
	return out
}

// ProcessTimeEvents bulk-moves agents by the time-of-day rule. It
// runs after Clock.Advance and before any per-agent cognition.
func (w *World) ProcessTimeEvents(events []clock.TimeEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, e := range events {
		switch e.Kind {
		case clock.EventClassStart:
			w.moveAllToClass()
		case clock.EventBreak, clock.EventWeekend, clock.EventFreeTime:
			w.disperseRandomly(w.locationsOfType(LocationRestArea, LocationActivityArea), RestingActivity())
		case clock.EventLunchBreak, clock.EventDinner:
			w.moveAllTo(w.locationsOfType(LocationCafeteria), RestingActivity())
		case clock.EventEveningStudy:
			w.disperseRandomly(w.locationsOfType(LocationStudyRoom), StudyingActivity("自习"))
		case clock.EventBedtime, clock.EventNewDay:
			w.moveAllTo(w.locationsOfType(LocationDormitory), RestingActivity())
		}
	}
}

func (w *World) moveAllToClass() {
	cp, ok := w.currentClassLocked()
	if !ok {
		return
	}
	if _, exists := w.locations[cp.ClassroomId]; !exists {
		return
	}
	for _, a := range w.agents {
		a.Location = cp.ClassroomId
		a.Activity = StudyingActivity(cp.Subject)
		a.touch(time.Now())
	}
}

func (w *World) moveAllTo(candidates []LocationId, activity AgentActivity) {
	if len(candidates) == 0 {
		return
	}
	dest := candidates[0]
	for _, a := range w.agents {
		a.Location = dest
		a.Activity = activity
		a.touch(time.Now())
	}
}

// disperseRandomly scatters each agent independently and uniformly across
// candidates.
func (w *World) disperseRandomly(candidates []LocationId, activity AgentActivity) {
	if len(candidates) == 0 {
		return
	}
	for _, a := range w.agents {
		a.Location = candidates[w.rng.Intn(len(candidates))]
		a.Activity = activity
		a.touch(time.Now())
	}
}

// PushEvent appends an event summary to the world log (step 6 of the tick
// pipeline); events are never mutated afterward.
func (w *World) PushEvent(e EventSummary) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, e)
}

// RecentEvents returns up to limit of the most recently pushed events.
func (w *World) RecentEvents(limit int) []EventSummary {
	w.mu.RLock()
	defer w.mu.RUnlock()
	n := len(w.events)
	if limit > 0 && limit < n {
		return append([]EventSummary(nil), w.events[n-limit:]...)
	}
	return append([]EventSummary(nil), w.events...)
}

// Snapshot deep-clones time, agents, relationships and a trimmed event-log
// tail for observers and the cognition phase.
func (w *World) Snapshot() WorldSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	agents := make([]AgentState, 0, len(w.agents))
	for _, a := range w.agents {
		agents = append(agents, *a)
	}
	rels := make([]Relationship, 0, len(w.relationships))
	for _, r := range w.relationships {
		rels = append(rels, *r)
	}
	n := len(w.events)
	tail := 20
	if tail > n {
		tail = n
	}
	return WorldSnapshot{
		Time:          w.now,
		Agents:        agents,
		Relationships: rels,
		RecentEvents:  append([]EventSummary(nil), w.events[n-tail:]...),
	}
}

// DescribeSituation renders the natural-language paragraph used both as
// LLM-prompt context and as a memory-retrieval query: current time, the
// agent's location name, nearby agent names, and the current class name if
// any. It also folds in a relative-time mention of the most recent campus
// event, rendered with go-humanize the way the engine's other narrative
// text does.
func (w *World) DescribeSituation(id ids.AgentId) (string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	a, ok := w.agents[id]
	if !ok {
		return "", simerrors.NewWorldError(simerrors.WorldAgentNotFound, id.String(), nil)
	}

	loc := w.locations[a.Location]
	locName := string(a.Location)
	if loc != nil {
		locName = loc.Name
	}

	var others []string
	for oid, other := range w.agents {
		if oid == id {
			continue
		}
		if other.Location == a.Location {
			others = append(others, other.Name)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "It is %s. %s is at %s.", w.now, a.Name, locName)
	if len(others) > 0 {
		fmt.Fprintf(&b, " Also present: %s.", strings.Join(others, ", "))
	}
	if cp, ok := w.currentClassLocked(); ok {
		fmt.Fprintf(&b, " Class in session: %s.", cp.Subject)
	}
	if n := len(w.events); n > 0 {
		last := w.events[n-1]
		fmt.Fprintf(&b, " The most recent campus event (%s) was %s.", last.Type, humanize.Time(toWallClock(w.now, last.At)))
	}

	return b.String(), nil
}

// toWallClock approximates a wall-clock instant for a SimulationTime delta
// so humanize.Time has something to compare against; it is only used for
// narrative flavor text, never for ordering logic (simtime.Time.Compare
// remains authoritative there).
func toWallClock(now, at simtime.Time) time.Time {
	tickDelta := int64(now.Tick) - int64(at.Tick)
	if tickDelta < 0 {
		tickDelta = 0
	}
	return time.Now().Add(-time.Duration(tickDelta) * time.Hour)
}
