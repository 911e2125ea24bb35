// Package memstore is the in-process reference implementation of
// internal/memory.Store: per-agent partitions, each internally thread-safe,
// supporting concurrent readers and a single writer at a time.
package memstore

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/schoolsim/campus-engine/internal/ids"
	"github.com/schoolsim/campus-engine/internal/memory"
	"github.com/schoolsim/campus-engine/internal/simerrors"
	"github.com/schoolsim/campus-engine/internal/simtime"
)

type record struct {
	mem       memory.Memory
	embedding []float32
}

type partition struct {
	mu      sync.RWMutex
	records map[ids.MemoryId]*record
	// order is append order, used by GetRecent before layer filtering.
	order []ids.MemoryId
}

func newPartition() *partition {
	return &partition{records: make(map[ids.MemoryId]*record)}
}

// Store is the concrete MemoryStore (internal/memory.Store). The outer lock
// only guards the partitions map itself; once a partition pointer is
// obtained, all work happens under that partition's own lock so unrelated
// agents never contend.
type Store struct {
	mu         sync.RWMutex
	partitions map[ids.AgentId]*partition
}

func New() *Store {
	return &Store{partitions: make(map[ids.AgentId]*partition)}
}

func (s *Store) partitionFor(owner ids.AgentId) *partition {
	s.mu.RLock()
	p, ok := s.partitions[owner]
	s.mu.RUnlock()
	if ok {
		return p
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok = s.partitions[owner]; ok {
		return p
	}
	p = newPartition()
	s.partitions[owner] = p
	return p
}

func (s *Store) Store(_ context.Context, owner ids.AgentId, m memory.Memory, embedding []float32) (ids.MemoryId, error) {
	if m.Id.IsZero() {
		m.Id = ids.NewMemoryId()
	}
	m.Owner = owner

	p := s.partitionFor(owner)
	p.mu.Lock()
	defer p.mu.Unlock()

	p.records[m.Id] = &record{mem: m, embedding: embedding}
	p.order = append(p.order, m.Id)
	return m.Id, nil
}

func (s *Store) GetRecent(_ context.Context, owner ids.AgentId, layer memory.Layer, limit int) ([]memory.Memory, error) {
	p := s.partitionFor(owner)
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []memory.Memory
	for i := len(p.order) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		r, ok := p.records[p.order[i]]
		if !ok || r.mem.Layer != layer {
			continue
		}
		out = append(out, r.mem)
	}
	return out, nil
}

func (s *Store) Consolidate(_ context.Context, owner ids.AgentId, sourceIds []ids.MemoryId, merged memory.Memory, embedding []float32) (ids.MemoryId, error) {
	p := s.partitionFor(owner)
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, id := range sourceIds {
		if _, ok := p.records[id]; !ok {
			return ids.MemoryId{}, simerrors.NewMemoryError(simerrors.MemoryConsolidation, "unknown source memory "+id.String(), nil)
		}
	}
	for _, id := range sourceIds {
		delete(p.records, id)
	}
	p.order = pruneDeleted(p.order, p.records)

	if merged.Id.IsZero() {
		merged.Id = ids.NewMemoryId()
	}
	merged.Owner = owner
	p.records[merged.Id] = &record{mem: merged, embedding: embedding}
	p.order = append(p.order, merged.Id)
	return merged.Id, nil
}

func (s *Store) Forget(_ context.Context, owner ids.AgentId, targetIds []ids.MemoryId) error {
	p := s.partitionFor(owner)
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, id := range targetIds {
		delete(p.records, id)
	}
	p.order = pruneDeleted(p.order, p.records)
	return nil
}

func pruneDeleted(order []ids.MemoryId, records map[ids.MemoryId]*record) []ids.MemoryId {
	out := order[:0]
	for _, id := range order {
		if _, ok := records[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func (s *Store) Retrieve(_ context.Context, owner ids.AgentId, queryEmbedding []float32, filter memory.RetrievalFilter, weights memory.RetrievalWeights, now simtime.Time) ([]memory.ScoredMemory, error) {
	if weights == (memory.RetrievalWeights{}) {
		weights = memory.DefaultWeights()
	}

	p := s.partitionFor(owner)
	p.mu.Lock() // write lock: retrieval also bumps AccessCount/LastAccessed
	defer p.mu.Unlock()

	type candidate struct {
		id         ids.MemoryId
		relevance  float64
		recency    float64
		importance float64
	}

	var candidates []candidate
	for id, r := range p.records {
		if filter.Layer != nil && r.mem.Layer != *filter.Layer {
			continue
		}
		if filter.MinTimestamp != nil && r.mem.CreatedAt.Before(*filter.MinTimestamp) {
			continue
		}
		if len(filter.Tags) > 0 && !hasAnyTag(r.mem.Tags, filter.Tags) {
			continue
		}
		candidates = append(candidates, candidate{
			id:         id,
			relevance:  cosineSimilarity(queryEmbedding, r.embedding),
			recency:    math.Exp(-0.01 * now.HoursSince(r.mem.CreatedAt)),
			importance: r.mem.Importance,
		})
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	// The combined score is a direct weighted sum of the raw subscores; a
	// uniformly weak batch scores uniformly low rather than being rescaled
	// against its own best entry.
	scored := make([]memory.ScoredMemory, 0, len(candidates))
	for _, c := range candidates {
		total := weights.Relevance*c.relevance + weights.Recency*c.recency + weights.Importance*c.importance
		scored = append(scored, memory.ScoredMemory{
			Memory:     p.records[c.id].mem,
			Relevance:  c.relevance,
			Recency:    c.recency,
			Importance: c.importance,
			Total:      total,
		})
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Total > scored[j].Total })

	limit := filter.Limit
	if limit <= 0 || limit > len(scored) {
		limit = len(scored)
	}
	scored = scored[:limit]

	for i := range scored {
		r := p.records[scored[i].Id]
		r.mem.AccessCount++
		r.mem.LastAccessed = now
		scored[i].AccessCount = r.mem.AccessCount
		scored[i].LastAccessed = now
	}

	return scored, nil
}

func hasAnyTag(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

// cosineSimilarity compares float32 embeddings; a zero-length or zero-norm
// vector yields 0 instead of panicking, since retrieval must degrade to a
// warning, not a crash.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
