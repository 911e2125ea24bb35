// Package clock advances the simulation calendar and derives the
// schedule-driven time events. It has no
// knowledge of agents or the world; Clock.Advance is pure with respect to
// its own state and returns the events World.ProcessTimeEvents consumes.
package clock

import (
	"fmt"

	"github.com/schoolsim/campus-engine/internal/simtime"
)

// TimeEventKind is the closed sum of schedule-derived events a single
// Advance() can emit.
type TimeEventKind int

const (
	EventClassStart TimeEventKind = iota
	EventBreak
	EventLunchBreak
	EventFreeTime
	EventDinner
	EventEveningStudy
	EventBedtime
	EventNewDay
	EventNewWeek
	EventNewSemester
	EventWeekend
)

// TimeEvent is one schedule-derived occurrence emitted by Advance. Period is
// only meaningful for EventClassStart.
type TimeEvent struct {
	Kind   TimeEventKind
	Period int
}

// Description renders a short human-readable line for the narrative channel.
func (e TimeEvent) Description() string {
	switch e.Kind {
	case EventClassStart:
		return fmt.Sprintf("class period %d begins", e.Period)
	case EventBreak:
		return "break between classes"
	case EventLunchBreak:
		return "lunch break"
	case EventFreeTime:
		return "free time"
	case EventDinner:
		return "dinner"
	case EventEveningStudy:
		return "evening self-study"
	case EventBedtime:
		return "lights out"
	case EventNewDay:
		return "a new day begins"
	case EventNewWeek:
		return "a new week begins"
	case EventNewSemester:
		return "a new semester begins"
	case EventWeekend:
		return "the weekend begins"
	default:
		return "unknown time event"
	}
}

// Config controls how fast the clock advances per tick.
type Config struct {
	// StepHours is added to the current hour on every Advance call.
	StepHours int
}

// DefaultConfig is the default step of one hour per tick.
func DefaultConfig() Config { return Config{StepHours: 1} }

const (
	hoursPerDay  = 24
	daysPerWeek  = 7
	weeksPerTerm = 20
)

// Clock owns the current SimulationTime and derives TimeEvents on Advance.
type Clock struct {
	cfg     Config
	current simtime.Time
}

func New(cfg Config) *Clock {
	if cfg.StepHours <= 0 {
		cfg.StepHours = 1
	}
	return &Clock{cfg: cfg, current: simtime.New()}
}

// NewAt seeds the clock at an arbitrary time, used by tests exercising
// rollover edges.
func NewAt(cfg Config, start simtime.Time) *Clock {
	if cfg.StepHours <= 0 {
		cfg.StepHours = 1
	}
	return &Clock{cfg: cfg, current: start}
}

func (c *Clock) CurrentTime() simtime.Time { return c.current }

// Advance adds cfg.StepHours to the current hour, cascades day/week/semester
// rollovers, and returns every TimeEvent the new hour/day triggers.
func (c *Clock) Advance() []TimeEvent {
	t := c.current
	t.Tick++

	newHour := t.Hour + c.cfg.StepHours
	dayRollover := 0
	for newHour >= hoursPerDay {
		newHour -= hoursPerDay
		dayRollover++
	}
	t.Hour = newHour

	var events []TimeEvent

	weekRolled := false
	semesterRolled := false

	for i := 0; i < dayRollover; i++ {
		t.Day++
		if t.Day > daysPerWeek {
			t.Day = 1
			t.Week++
			weekRolled = true
		}
		if t.Week > weeksPerTerm {
			t.Week = 1
			t.Semester++
			semesterRolled = true
		}
	}

	if dayRollover > 0 {
		events = append(events, TimeEvent{Kind: EventNewDay})
		if weekRolled {
			events = append(events, TimeEvent{Kind: EventNewWeek})
		}
		if semesterRolled {
			events = append(events, TimeEvent{Kind: EventNewSemester})
		}
		if t.Day > 5 {
			events = append(events, TimeEvent{Kind: EventWeekend})
		}
	}

	events = append(events, hourEvents(t)...)

	c.current = t
	return events
}

// PeriodForHour reports which class period, if any, starts at the given
// weekday hour, per the same table Advance uses. World.CurrentClass reuses
// it so the two stay in lockstep.
func PeriodForHour(hour int) (period int, ok bool) {
	switch hour {
	case 8:
		return 1, true
	case 9:
		return 2, true
	case 11:
		return 3, true
	case 14:
		return 4, true
	case 15:
		return 5, true
	default:
		return 0, false
	}
}

// hourEvents derives the weekday class-schedule events for the hour just
// reached.
func hourEvents(t simtime.Time) []TimeEvent {
	if !t.IsWeekday() {
		return nil
	}

	switch t.Hour {
	case 8:
		return []TimeEvent{{Kind: EventClassStart, Period: 1}}
	case 9:
		return []TimeEvent{{Kind: EventClassStart, Period: 2}}
	case 10:
		return []TimeEvent{{Kind: EventBreak}}
	case 11:
		return []TimeEvent{{Kind: EventClassStart, Period: 3}}
	case 12:
		return []TimeEvent{{Kind: EventLunchBreak}}
	case 14:
		return []TimeEvent{{Kind: EventClassStart, Period: 4}}
	case 15:
		return []TimeEvent{{Kind: EventClassStart, Period: 5}}
	case 16:
		return []TimeEvent{{Kind: EventFreeTime}}
	case 18:
		return []TimeEvent{{Kind: EventDinner}}
	case 19:
		return []TimeEvent{{Kind: EventEveningStudy}}
	case 22:
		return []TimeEvent{{Kind: EventBedtime}}
	default:
		return nil
	}
}
