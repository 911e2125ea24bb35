// Package memory defines the MemoryStore interface and the value types it
// operates on. internal/memstore provides the in-process reference
// implementation; a vector-database-backed implementation can satisfy the
// same interface.
package memory

import (
	"context"

	"github.com/schoolsim/campus-engine/internal/ids"
	"github.com/schoolsim/campus-engine/internal/simtime"
)

// Layer is the closed sum of memory layers; transitions only ever move
// ShortTerm→LongTerm→Semantic. Sensory is discarded every tick and never
// promoted.
type Layer int

const (
	LayerSensory Layer = iota
	LayerShortTerm
	LayerLongTerm
	LayerSemantic
)

func (l Layer) String() string {
	switch l {
	case LayerSensory:
		return "Sensory"
	case LayerShortTerm:
		return "ShortTerm"
	case LayerLongTerm:
		return "LongTerm"
	case LayerSemantic:
		return "Semantic"
	default:
		return "Unknown"
	}
}

// Memory is one stored record, owned exclusively by the MemoryStore.
type Memory struct {
	Id          ids.MemoryId
	Owner       ids.AgentId
	Layer       Layer
	Content     string
	CreatedAt   simtime.Time
	Importance  float64 // [0,1]
	Valence     float64 // [-1,1]
	Tags        []string
	AccessCount int
	LastAccessed simtime.Time
}

// ScoredMemory is a Memory annotated with the retrieval subscores and their
// combined α·relevance + β·recency + γ·importance total.
type ScoredMemory struct {
	Memory
	Relevance float64
	Recency   float64
	Importance float64
	Total      float64
}

// RetrievalFilter narrows candidates before any scoring happens.
type RetrievalFilter struct {
	Layer          *Layer
	Tags           []string
	MinTimestamp   *simtime.Time
	Limit          int
}

// RetrievalWeights are the α, β, γ coefficients; zero-value Weights falls
// back to the defaults (0.5, 0.3, 0.2) in the memstore implementation.
type RetrievalWeights struct {
	Relevance  float64
	Recency    float64
	Importance float64
}

func DefaultWeights() RetrievalWeights {
	return RetrievalWeights{Relevance: 0.5, Recency: 0.3, Importance: 0.2}
}

// Store is the per-agent, four-layer MemoryStore contract. All operations
// are fallible; callers never hold a store lock across an LLM call.
type Store interface {
	Store(ctx context.Context, owner ids.AgentId, m Memory, embedding []float32) (ids.MemoryId, error)
	Retrieve(ctx context.Context, owner ids.AgentId, queryEmbedding []float32, filter RetrievalFilter, weights RetrievalWeights, now simtime.Time) ([]ScoredMemory, error)
	GetRecent(ctx context.Context, owner ids.AgentId, layer Layer, limit int) ([]Memory, error)
	Consolidate(ctx context.Context, owner ids.AgentId, sourceIds []ids.MemoryId, merged Memory, embedding []float32) (ids.MemoryId, error)
	Forget(ctx context.Context, owner ids.AgentId, targetIds []ids.MemoryId) error
}
