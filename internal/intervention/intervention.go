// Package intervention implements the operator-side intervention mechanism:
// chatting with an agent in a played role, adjusting environment
// parameters, and firing preset campus events. The Manager keeps an
// append-only log of every intervention so a run can be audited afterward.
package intervention

import (
	"fmt"
	"sync"

	"github.com/schoolsim/campus-engine/internal/ids"
	"github.com/schoolsim/campus-engine/internal/simevent"
	"github.com/schoolsim/campus-engine/internal/simtime"
	"github.com/schoolsim/campus-engine/internal/world"
)

const presetIntensity = 0.6

// EnvironmentParameter is the closed sum of tunable campus-wide knobs.
type EnvironmentParameter int

const (
	ParamCourseDifficulty EnvironmentParameter = iota
	ParamSocialDensity
	ParamCompetitivePressure
	ParamRandomEventFrequency
)

func (p EnvironmentParameter) String() string {
	switch p {
	case ParamCourseDifficulty:
		return "CourseDifficulty"
	case ParamSocialDensity:
		return "SocialDensity"
	case ParamCompetitivePressure:
		return "CompetitivePressure"
	case ParamRandomEventFrequency:
		return "RandomEventFrequency"
	default:
		return "Unknown"
	}
}

// EventScopeKind tags how far a preset event reaches.
type EventScopeKind int

const (
	ScopeGlobal EventScopeKind = iota
	ScopeAgents
	ScopeLocation
)

// EventScope describes which agents a custom preset event touches.
// TriggerPresetEvent involves exactly Scope.Agents and makes the event
// campus-wide for every Kind other than ScopeAgents; a ScopeLocation scope
// is not resolved to the agents present at Location.
type EventScope struct {
	Kind     EventScopeKind
	Agents   []ids.AgentId
	Location world.LocationId
}

// PresetEventKind enumerates the fixed campus-event templates.
type PresetEventKind int

const (
	PresetMidtermExam PresetEventKind = iota
	PresetClubRecruitment
	PresetSportsMeet
	PresetFriendshipConflict
	PresetNewStudent
	PresetTeacherPraise
	PresetTeacherCriticism
	PresetCustom
)

// PresetEvent is one operator-fireable event template. The payload fields
// are meaningful only for the kinds that name them.
type PresetEvent struct {
	Kind PresetEventKind

	AgentA, AgentB ids.AgentId // FriendshipConflict
	Target         ids.AgentId // TeacherPraise / TeacherCriticism
	Name           string      // NewStudent
	Description    string      // Custom
	Scope          EventScope  // Custom
}

// Kind tags the InterventionType variant.
type Kind int

const (
	KindChat Kind = iota
	KindParameterChange
	KindTriggerEvent
)

// Intervention is one tagged operator request. The payload groups are
// meaningful only for the matching Kind.
type Intervention struct {
	Kind Kind

	// Chat
	AgentId ids.AgentId
	Role    string
	Message string

	// ParameterChange
	Parameter EnvironmentParameter
	Value     float64

	// TriggerEvent
	Event PresetEvent
}

// Log is one append-only audit record of an applied intervention.
type Log struct {
	Id             ids.EventId
	Timestamp      simtime.Time
	Intervention   Intervention
	AffectedAgents []ids.AgentId
	Description    string
}

// Manager records interventions and holds the current values of adjusted
// environment parameters. It is safe for concurrent use.
type Manager struct {
	mu     sync.Mutex
	logs   []Log
	params map[EnvironmentParameter]float64
}

func NewManager() *Manager {
	return &Manager{params: make(map[EnvironmentParameter]float64)}
}

func (m *Manager) append(l Log) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, l)
}

// Logs returns a copy of the audit trail in application order.
func (m *Manager) Logs() []Log {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Log(nil), m.logs...)
}

// RecordChat logs a role-played chat with one agent and returns the log
// entry; its Description is the line the runner writes into the agent's
// memory.
func (m *Manager) RecordChat(agent ids.AgentId, role, message string, now simtime.Time) Log {
	l := Log{
		Id:        ids.NewEventId(),
		Timestamp: now,
		Intervention: Intervention{
			Kind:    KindChat,
			AgentId: agent,
			Role:    role,
			Message: message,
		},
		AffectedAgents: []ids.AgentId{agent},
		Description:    fmt.Sprintf("%s对你说：%s", role, message),
	}
	m.append(l)
	return l
}

// ApplyParameterChange records a parameter adjustment and stores the
// clamped value; every parameter lives in [0,1].
func (m *Manager) ApplyParameterChange(param EnvironmentParameter, value float64, now simtime.Time) (Log, float64) {
	if value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}

	l := Log{
		Id:        ids.NewEventId(),
		Timestamp: now,
		Intervention: Intervention{
			Kind:      KindParameterChange,
			Parameter: param,
			Value:     value,
		},
		Description: fmt.Sprintf("参数调整: %s = %.2f", param, value),
	}

	m.mu.Lock()
	m.params[param] = value
	m.logs = append(m.logs, l)
	m.mu.Unlock()
	return l, value
}

// Parameter returns the current value of a previously adjusted parameter.
func (m *Manager) Parameter(param EnvironmentParameter) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.params[param]
	return v, ok
}

// TriggerPresetEvent expands a preset template into the simulation event
// the runner pushes to the world log, and records it in the audit trail.
func (m *Manager) TriggerPresetEvent(ev PresetEvent, now simtime.Time, nextID func() ids.EventId) simevent.Event {
	var narrative string
	var involved []ids.AgentId
	typ := simevent.EventTypeSpecialEvent
	campusWide := false

	switch ev.Kind {
	case PresetMidtermExam:
		narrative = "期中考试开始了！所有同学紧张地准备着。"
		typ = simevent.EventTypeAcademic
		campusWide = true
	case PresetClubRecruitment:
		narrative = "社团招新活动开始了，各个社团在操场设立了展位。"
		campusWide = true
	case PresetSportsMeet:
		narrative = "学校运动会拉开帷幕！同学们热情高涨。"
		campusWide = true
	case PresetFriendshipConflict:
		narrative = "两位同学之间产生了矛盾。"
		involved = []ids.AgentId{ev.AgentA, ev.AgentB}
		typ = simevent.EventTypeConflict
	case PresetTeacherPraise:
		narrative = "老师在全班面前表扬了一位同学。"
		involved = []ids.AgentId{ev.Target}
		typ = simevent.EventTypeAcademic
	case PresetTeacherCriticism:
		narrative = "老师批评了一位同学的表现。"
		involved = []ids.AgentId{ev.Target}
		typ = simevent.EventTypeAcademic
	case PresetNewStudent:
		narrative = fmt.Sprintf("班级来了一位新同学：%s。", ev.Name)
		campusWide = true
	case PresetCustom:
		narrative = ev.Description
		involved = ev.Scope.Agents
		campusWide = ev.Scope.Kind != ScopeAgents
	}

	var e simevent.Event
	if campusWide {
		e = simevent.NewCampusWide(nextID(), typ, simevent.TriggerUserIntervention, now, involved, narrative, nil, presetIntensity)
	} else {
		e = simevent.New(nextID(), typ, simevent.TriggerUserIntervention, now, involved, narrative, nil, presetIntensity)
	}

	m.append(Log{
		Id:             e.Id,
		Timestamp:      now,
		Intervention:   Intervention{Kind: KindTriggerEvent, Event: ev},
		AffectedAgents: involved,
		Description:    narrative,
	})
	return e
}
