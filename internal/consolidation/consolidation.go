// Package consolidation implements the memory consolidation and forgetting
// policy over the memory.Store interface. The runner drives it on a fixed
// cadence (see internal/runner); nothing here runs inside retrieval.
package consolidation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/schoolsim/campus-engine/internal/ids"
	"github.com/schoolsim/campus-engine/internal/memory"
	"github.com/schoolsim/campus-engine/internal/simtime"
)

// Policy thresholds. Semantic memories are never forgotten.
const (
	promoteImportance = 0.6
	promoteAccess     = 3

	shortTermForgetImportance = 0.3
	shortTermForgetAgeHours   = 48
	shortTermForgetAccess     = 2

	longTermForgetImportance = 0.1
	longTermForgetAgeHours   = 1000
)

// EmbedFunc re-embeds a promoted memory's content before Consolidate
// inserts it at the higher layer; every store is preceded by a real embed.
type EmbedFunc func(ctx context.Context, texts []string) ([][]float32, error)

// PromotionEligible reports whether a ShortTerm memory should move to
// LongTerm: importance >= 0.6 or access count >= 3.
func PromotionEligible(m memory.Memory) bool {
	if m.Layer != memory.LayerShortTerm {
		return false
	}
	return m.Importance >= promoteImportance || m.AccessCount >= promoteAccess
}

// ForgetEligible reports whether a memory may be dropped at the given time.
// Sensory is always droppable; Semantic never is.
func ForgetEligible(m memory.Memory, now simtime.Time) bool {
	age := now.HoursSince(m.CreatedAt)
	switch m.Layer {
	case memory.LayerSensory:
		return true
	case memory.LayerShortTerm:
		return m.Importance < shortTermForgetImportance && age > shortTermForgetAgeHours && m.AccessCount < shortTermForgetAccess
	case memory.LayerLongTerm:
		return m.Importance < longTermForgetImportance && age > longTermForgetAgeHours && m.AccessCount == 0
	default:
		return false
	}
}

// Sweeper walks every agent's ShortTerm and LongTerm partitions, promoting
// and forgetting per policy. Failures degrade to warnings; a sweep never
// aborts a tick.
type Sweeper struct {
	Store memory.Store
	Embed EmbedFunc
	Log   *slog.Logger
}

// DiscardSensory drops every Sensory memory for the given agents; sensory
// impressions never survive the tick that produced them.
func (s *Sweeper) DiscardSensory(ctx context.Context, agents []ids.AgentId) []string {
	var warnings []string
	for _, agent := range agents {
		sensory, err := s.Store.GetRecent(ctx, agent, memory.LayerSensory, 0)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("sensory sweep for %s: %v", agent, err))
			continue
		}
		if len(sensory) == 0 {
			continue
		}
		targets := make([]ids.MemoryId, 0, len(sensory))
		for _, m := range sensory {
			targets = append(targets, m.Id)
		}
		if err := s.Store.Forget(ctx, agent, targets); err != nil {
			warnings = append(warnings, fmt.Sprintf("sensory forget for %s: %v", agent, err))
		}
	}
	return warnings
}

// Sweep runs one promotion-and-forgetting pass for the given agents.
func (s *Sweeper) Sweep(ctx context.Context, agents []ids.AgentId, now simtime.Time) []string {
	var warnings []string
	warn := func(format string, args ...any) { warnings = append(warnings, fmt.Sprintf(format, args...)) }

	for _, agent := range agents {
		shortTerm, err := s.Store.GetRecent(ctx, agent, memory.LayerShortTerm, 0)
		if err != nil {
			warn("sweep %s: short-term listing: %v", agent, err)
			continue
		}

		var forget []ids.MemoryId
		for _, m := range shortTerm {
			switch {
			case PromotionEligible(m):
				if err := s.promote(ctx, agent, m); err != nil {
					warn("sweep %s: promote %s: %v", agent, m.Id, err)
				}
			case ForgetEligible(m, now):
				forget = append(forget, m.Id)
			}
		}

		longTerm, err := s.Store.GetRecent(ctx, agent, memory.LayerLongTerm, 0)
		if err != nil {
			warn("sweep %s: long-term listing: %v", agent, err)
		} else {
			for _, m := range longTerm {
				if ForgetEligible(m, now) {
					forget = append(forget, m.Id)
				}
			}
		}

		if len(forget) > 0 {
			if err := s.Store.Forget(ctx, agent, forget); err != nil {
				warn("sweep %s: forget: %v", agent, err)
			} else if s.Log != nil {
				s.Log.Debug("memories_forgotten",
					slog.String("type", "memories_forgotten"),
					slog.String("agent", agent.String()),
					slog.Int("count", len(forget)),
				)
			}
		}
	}
	return warnings
}

// promote moves one ShortTerm memory to LongTerm through Consolidate, which
// atomically removes the source and inserts the promoted copy under a new
// id. Content, importance and access history carry over; the layer becomes
// LongTerm.
func (s *Sweeper) promote(ctx context.Context, agent ids.AgentId, m memory.Memory) error {
	promoted := m
	promoted.Id = ids.MemoryId{}
	promoted.Layer = memory.LayerLongTerm

	var embedding []float32
	if s.Embed != nil {
		embs, err := s.Embed(ctx, []string{promoted.Content})
		if err != nil {
			return fmt.Errorf("re-embed: %w", err)
		}
		if len(embs) > 0 {
			embedding = embs[0]
		}
	}

	newId, err := s.Store.Consolidate(ctx, agent, []ids.MemoryId{m.Id}, promoted, embedding)
	if err != nil {
		return err
	}
	if s.Log != nil {
		s.Log.Debug("memory_promoted",
			slog.String("type", "memory_promoted"),
			slog.String("agent", agent.String()),
			slog.String("from", m.Id.String()),
			slog.String("to", newId.String()),
		)
	}
	return nil
}
