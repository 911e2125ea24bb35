package clock

import (
	"testing"

	"github.com/schoolsim/campus-engine/internal/simtime"
)

func hasKind(events []TimeEvent, kind TimeEventKind) bool {
	for _, e := range events {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

// Advancing from week 20, day 7 (Sunday), hour 23 by one step must roll
// the semester, reset week to 1 and day to 1, and emit NewDay, NewWeek and
// NewSemester together.
func TestAdvanceSemesterRollover(t *testing.T) {
	start := simtime.Time{Semester: 1, Week: 20, Day: 7, Hour: 23, Tick: 41}
	c := NewAt(DefaultConfig(), start)

	events := c.Advance()

	got := c.CurrentTime()
	if got.Semester != 2 {
		t.Fatalf("expected semester 2, got %d", got.Semester)
	}
	if got.Week != 1 {
		t.Fatalf("expected week reset to 1, got %d", got.Week)
	}
	if got.Day != 1 {
		t.Fatalf("expected day reset to 1, got %d", got.Day)
	}
	if got.Hour != 0 {
		t.Fatalf("expected hour 0, got %d", got.Hour)
	}
	if got.Tick != 42 {
		t.Fatalf("expected tick 42, got %d", got.Tick)
	}

	for _, kind := range []TimeEventKind{EventNewDay, EventNewWeek, EventNewSemester} {
		if !hasKind(events, kind) {
			t.Errorf("expected event kind %d in %v", kind, events)
		}
	}
	if hasKind(events, EventWeekend) {
		t.Errorf("day 1 is a weekday, should not emit Weekend: %v", events)
	}
}

func TestAdvanceWeekdayRollsIntoWeekend(t *testing.T) {
	start := simtime.Time{Semester: 1, Week: 1, Day: 5, Hour: 23, Tick: 0}
	c := NewAt(DefaultConfig(), start)

	events := c.Advance()

	got := c.CurrentTime()
	if got.Day != 6 {
		t.Fatalf("expected day 6, got %d", got.Day)
	}
	if !hasKind(events, EventNewDay) || !hasKind(events, EventWeekend) {
		t.Errorf("expected NewDay and Weekend, got %v", events)
	}
	if hasKind(events, EventNewWeek) {
		t.Errorf("day 6 does not start a new week: %v", events)
	}
}

func TestHourEventsWeekdaySchedule(t *testing.T) {
	cases := []struct {
		hour int
		kind TimeEventKind
	}{
		{8, EventClassStart},
		{9, EventClassStart},
		{10, EventBreak},
		{11, EventClassStart},
		{12, EventLunchBreak},
		{14, EventClassStart},
		{15, EventClassStart},
		{16, EventFreeTime},
		{18, EventDinner},
		{19, EventEveningStudy},
		{22, EventBedtime},
	}

	for _, tc := range cases {
		start := simtime.Time{Semester: 1, Week: 1, Day: 2, Hour: tc.hour - 1}
		c := NewAt(DefaultConfig(), start)
		events := c.Advance()
		if !hasKind(events, tc.kind) {
			t.Errorf("hour %d: expected kind %d in %v", tc.hour, tc.kind, events)
		}
	}
}

func TestHourEventsSkipOnWeekend(t *testing.T) {
	start := simtime.Time{Semester: 1, Week: 1, Day: 6, Hour: 7}
	c := NewAt(DefaultConfig(), start)
	events := c.Advance()
	if hasKind(events, EventClassStart) {
		t.Errorf("Saturday should not emit ClassStart: %v", events)
	}
}

func TestClockOrderingMonotonic(t *testing.T) {
	c := New(DefaultConfig())
	prev := c.CurrentTime()
	for i := 0; i < 500; i++ {
		c.Advance()
		cur := c.CurrentTime()
		if !prev.Before(cur) {
			t.Fatalf("expected %v before %v", prev, cur)
		}
		prev = cur
	}
}
