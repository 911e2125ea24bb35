// Package ids provides the opaque, time-sortable identifiers used across
// the engine (AgentId, MemoryId, EventId). They are backed by UUIDv7 so that
// lexicographic/byte ordering matches creation order without a separate
// sequence counter, and are never reused once minted.
package ids

import "github.com/google/uuid"

// AgentId is a globally unique, time-sortable identifier for an AgentState.
// The zero value is never a valid id; use NewAgentId.
type AgentId uuid.UUID

func NewAgentId() AgentId {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails if the system clock/rand source is broken beyond
		// recovery; a random v4 is a safe, still-unique fallback.
		return AgentId(uuid.New())
	}
	return AgentId(id)
}

func (a AgentId) String() string { return uuid.UUID(a).String() }
func (a AgentId) IsZero() bool   { return a == AgentId{} }

func (a AgentId) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *AgentId) UnmarshalText(text []byte) error {
	id, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*a = AgentId(id)
	return nil
}

func ParseAgentId(s string) (AgentId, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return AgentId{}, err
	}
	return AgentId(id), nil
}

// MemoryId is a globally unique, time-sortable identifier for a Memory.
type MemoryId uuid.UUID

func NewMemoryId() MemoryId {
	id, err := uuid.NewV7()
	if err != nil {
		return MemoryId(uuid.New())
	}
	return MemoryId(id)
}

func (m MemoryId) String() string { return uuid.UUID(m).String() }
func (m MemoryId) IsZero() bool   { return m == MemoryId{} }

func (m MemoryId) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *MemoryId) UnmarshalText(text []byte) error {
	id, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*m = MemoryId(id)
	return nil
}

// EventId is a globally unique, time-sortable identifier for a
// SimulationEvent.
type EventId uuid.UUID

func NewEventId() EventId {
	id, err := uuid.NewV7()
	if err != nil {
		return EventId(uuid.New())
	}
	return EventId(id)
}

func (e EventId) String() string { return uuid.UUID(e).String() }

func (e EventId) MarshalText() ([]byte, error) { return []byte(e.String()), nil }

func (e *EventId) UnmarshalText(text []byte) error {
	id, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*e = EventId(id)
	return nil
}
