// Package eventgen is the event generator: it scans the world each
// tick, after arbitration, for relationship-closeness threshold crossings
// and fires a random occurrence with configurable probability.
package eventgen

import (
	"math/rand"

	"github.com/schoolsim/campus-engine/internal/ids"
	"github.com/schoolsim/campus-engine/internal/simevent"
	"github.com/schoolsim/campus-engine/internal/simtime"
	"github.com/schoolsim/campus-engine/internal/world"
)

const (
	conflictThreshold = -0.7
	thresholdIntensity = 0.7
	randomIntensity     = 0.3
)

// randomEventTemplates is the fixed narrative pool random events draw from.
var randomEventTemplates = []string{
	"won a small campus award",
	"got caught up in an unexpected rumor",
	"found an old photo and felt nostalgic",
	"received an unexpected package from home",
	"ran into a childhood friend on campus",
}

// Generator owns the RNG used for random-event selection; construct one per
// runner instance so its sequence is reproducible given a fixed seed.
type Generator struct {
	rng *rand.Rand
}

func New(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Scan emits threshold and random events for the current tick.
// randomEventFrequency is the configured per-tick probability in [0,1].
// nameOf resolves an agent id to its display
// name for the random-event narrative; agents lists every candidate for the
// random draw.
func (g *Generator) Scan(w *world.World, now simtime.Time, agents []ids.AgentId, nameOf func(ids.AgentId) string, randomEventFrequency float64, nextID func() ids.EventId) []simevent.Event {
	var events []simevent.Event

	for _, rel := range w.AllRelationships() {
		if rel.Closeness < conflictThreshold {
			events = append(events, simevent.New(
				nextID(),
				simevent.EventTypeConflict,
				simevent.TriggerThreshold,
				now,
				[]ids.AgentId{rel.A, rel.B},
				"a simmering conflict boils over",
				nil,
				thresholdIntensity,
			))
		}
	}

	if len(agents) > 0 && randomEventFrequency > 0 && g.rng.Float64() < randomEventFrequency {
		agent := agents[g.rng.Intn(len(agents))]
		template := randomEventTemplates[g.rng.Intn(len(randomEventTemplates))]
		events = append(events, simevent.New(
			nextID(),
			simevent.EventTypeSpecialEvent,
			simevent.TriggerRandom,
			now,
			[]ids.AgentId{agent},
			nameOf(agent)+" "+template,
			nil,
			randomIntensity,
		))
	}

	return events
}
