// Package reflection is the per-agent reflection trigger: a simple event
// counter the runner feeds after every memory write, which schedules a
// reflection task once it crosses the configured threshold.
package reflection

import (
	"sync"

	"github.com/schoolsim/campus-engine/internal/ids"
)

// Trigger tracks one counter per agent. It is safe for concurrent use
// since the runner may feed it from multiple per-agent goroutines within a
// tick.
type Trigger struct {
	mu        sync.Mutex
	threshold int
	counts    map[ids.AgentId]int
}

func New(threshold int) *Trigger {
	if threshold <= 0 {
		threshold = 1
	}
	return &Trigger{threshold: threshold, counts: make(map[ids.AgentId]int)}
}

// RecordEvent increments the agent's counter and reports whether it just
// crossed the threshold, resetting it to zero in that case.
func (t *Trigger) RecordEvent(agent ids.AgentId) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.counts[agent]++
	if t.counts[agent] >= t.threshold {
		t.counts[agent] = 0
		return true
	}
	return false
}

// Count returns the agent's current counter value, mostly for tests and
// status reporting.
func (t *Trigger) Count(agent ids.AgentId) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[agent]
}
