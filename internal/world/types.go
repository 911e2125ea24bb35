// Package world owns the single mutable source of truth for the
// simulation: agents, locations, relationships, schedule and event log. It
// is the only package allowed to mutate an AgentState; everything else
// reads a snapshot or submits a StateChange through ApplyStateChanges.
package world

import (
	"math"
	"time"

	"github.com/schoolsim/campus-engine/internal/ids"
	"github.com/schoolsim/campus-engine/internal/simtime"
)

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// PersonalityParams holds the four continuous MBTI axes plus a
// stability factor that dampens how much a single reflection can shift
// them. Axes are always clamped to [-1,1] on write; Stability only ever
// increases, capped at 10.
type PersonalityParams struct {
	EI           float64 // extraversion(+1) / introversion(-1)
	SN           float64 // sensing(+1) / intuition(-1)
	TF           float64 // thinking(+1) / feeling(-1)
	JP           float64 // judging(+1) / perceiving(-1)
	Stability    float64
	ShiftHistory []PersonalityShift
}

// PersonalityShift is one append-only record of a personality-evolution
// application.
type PersonalityShift struct {
	Dimension ReflectionDimension
	Delta     float64
	At        simtime.Time
}

type ReflectionDimension int

const (
	DimensionEI ReflectionDimension = iota
	DimensionSN
	DimensionTF
	DimensionJP
)

func NewPersonalityParams(ei, sn, tf, jp float64) PersonalityParams {
	return PersonalityParams{
		EI:        clamp(ei, -1, 1),
		SN:        clamp(sn, -1, 1),
		TF:        clamp(tf, -1, 1),
		JP:        clamp(jp, -1, 1),
		Stability: clamp(1.0, 0.5, 10.0),
	}
}

// Label renders the four-letter MBTI label by thresholding each axis at 0.
func (p PersonalityParams) Label() string {
	letter := func(v float64, neg, pos byte) byte {
		if v >= 0 {
			return pos
		}
		return neg
	}
	return string([]byte{
		letter(p.EI, 'I', 'E'),
		letter(p.SN, 'N', 'S'),
		letter(p.TF, 'F', 'T'),
		letter(p.JP, 'P', 'J'),
	})
}

func (p *PersonalityParams) axis(dim ReflectionDimension) *float64 {
	switch dim {
	case DimensionEI:
		return &p.EI
	case DimensionSN:
		return &p.SN
	case DimensionTF:
		return &p.TF
	default:
		return &p.JP
	}
}

// EmotionalState is clamped on every write: valence in [-1,1], arousal and
// stress in [0,1].
type EmotionalState struct {
	Valence float64
	Arousal float64
	Stress  float64
}

func NewEmotionalState(valence, arousal, stress float64) EmotionalState {
	return EmotionalState{
		Valence: clamp(valence, -1, 1),
		Arousal: clamp(arousal, 0, 1),
		Stress:  clamp(stress, 0, 1),
	}
}

// AbilityMetrics tracks four skill dimensions in [0,1].
type AbilityMetrics struct {
	Academic   float64
	Social     float64
	Resilience float64
	Creativity float64
}

func NewAbilityMetrics(academic, social, resilience, creativity float64) AbilityMetrics {
	return AbilityMetrics{
		Academic:   clamp(academic, 0, 1),
		Social:     clamp(social, 0, 1),
		Resilience: clamp(resilience, 0, 1),
		Creativity: clamp(creativity, 0, 1),
	}
}

// CareerCategory is a closed sum type with an Other escape hatch, per
// GLOSSARY's note that CareerCategory and IntentType are the two variants
// the source clearly intends extensibility for.
type CareerCategory struct {
	Kind  CareerKind
	Other string // only meaningful when Kind == CareerOther
}

type CareerKind int

const (
	CareerSTEM CareerKind = iota
	CareerHumanities
	CareerArts
	CareerBusiness
	CareerMedicine
	CareerTrades
	CareerOther
)

func (c CareerCategory) String() string {
	switch c.Kind {
	case CareerSTEM:
		return "STEM"
	case CareerHumanities:
		return "Humanities"
	case CareerArts:
		return "Arts"
	case CareerBusiness:
		return "Business"
	case CareerMedicine:
		return "Medicine"
	case CareerTrades:
		return "Trades"
	case CareerOther:
		if c.Other != "" {
			return c.Other
		}
		return "Other"
	default:
		return "Unknown"
	}
}

// AgentActivityKind is the closed sum of activities an agent can be doing.
type AgentActivityKind int

const (
	ActivityIdle AgentActivityKind = iota
	ActivityStudying
	ActivityResting
	ActivityTalking
	ActivityCollaborating
)

// AgentActivity carries an optional Subject payload, meaningful only for
// ActivityStudying (the classroom subject, or "自习" for evening self-study).
type AgentActivity struct {
	Kind    AgentActivityKind
	Subject string
}

func IdleActivity() AgentActivity    { return AgentActivity{Kind: ActivityIdle} }
func RestingActivity() AgentActivity { return AgentActivity{Kind: ActivityResting} }
func StudyingActivity(subject string) AgentActivity {
	return AgentActivity{Kind: ActivityStudying, Subject: subject}
}

// LocationId is a string key resolved against the campus catalogue.
type LocationId string

// LocationType is a closed sum of campus location kinds.
type LocationType int

const (
	LocationClassroom LocationType = iota
	LocationDormitory
	LocationCafeteria
	LocationStudyRoom
	LocationRestArea
	LocationActivityArea
	LocationLibrary
	LocationClubRoom
)

// Position is a 2-D campus map coordinate.
type Position struct {
	X float64
	Y float64
}

// Location is one node of the campus map; Adjacent lists directly reachable
// LocationIds. The default catalogue keeps adjacency symmetric.
type Location struct {
	Id       LocationId
	Name     string
	Type     LocationType
	Capacity int
	Pos      Position
	Adjacent []LocationId
}

// AgentState is the only mutable per-agent record. CreatedAt never exceeds
// LastUpdated.
type AgentState struct {
	Id             ids.AgentId
	Name           string
	Personality    PersonalityParams
	Emotion        EmotionalState
	Abilities      AbilityMetrics
	Career         CareerCategory
	Location       LocationId
	Activity       AgentActivity
	CurrentThought string
	CreatedAt      time.Time
	LastUpdated    time.Time
}

func (a *AgentState) touch(now time.Time) {
	if now.After(a.LastUpdated) {
		a.LastUpdated = now
	}
}

// Relationship is keyed by a sorted pair of agent ids; at most one exists
// per unordered pair.
type Relationship struct {
	A, B      ids.AgentId
	Closeness float64 // [-1,1]
	Trust     float64 // [0,1]
	Tags      []string
	LastInteraction simtime.Time
}

// relKey returns the pair in canonical (sorted) order so lookups are
// direction-independent.
func relKey(a, b ids.AgentId) (ids.AgentId, ids.AgentId) {
	if a.String() <= b.String() {
		return a, b
	}
	return b, a
}

// ClassPeriod binds an hour-derived period number to a subject and the
// classroom it is taught in. The default catalogue repeats the same five
// periods every weekday.
type ClassPeriod struct {
	Period      int
	Subject     string
	ClassroomId LocationId
}

// WorldSnapshot is a deep-clone read view used by observers and the
// cognition-request phase; mutating it never affects the live World.
type WorldSnapshot struct {
	Time          simtime.Time
	Agents        []AgentState
	Relationships []Relationship
	RecentEvents  []EventSummary
}

// EventSummary is the trimmed event-log projection carried in a snapshot.
type EventSummary struct {
	Id        ids.EventId
	Type      string
	Narrative string
	Intensity float64
	At        simtime.Time
}

// recencyFactor mirrors the retrieval-scoring shape used elsewhere in the
// engine (internal/memstore). Nothing in this package calls it;
// DescribeSituation renders its "how long ago" text with go-humanize.
func recencyFactor(hoursSince float64) float64 {
	return math.Exp(-0.01 * hoursSince)
}
