package catalogue

import (
	"testing"

	"github.com/schoolsim/campus-engine/internal/world"
)

const sampleYAML = `
locations:
  - id: classroom-1
    name: Classroom 1
    type: classroom
    capacity: 40
    x: 1
    y: 2
    adjacent: [study-1]
  - id: study-1
    name: Study Room 1
    type: study_room
    capacity: 20
schedule:
  - period: 1
    subject: Math
    classroom_id: classroom-1
clubs:
  - name: Chess Club
    description: Weekly chess meetup
    room_id: study-1
`

func TestLoadParsesLocationsScheduleAndClubs(t *testing.T) {
	cat, err := Load([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cat.Locations) != 2 {
		t.Fatalf("expected 2 locations, got %d", len(cat.Locations))
	}
	if cat.Locations[0].Type != world.LocationClassroom {
		t.Fatalf("expected classroom type, got %v", cat.Locations[0].Type)
	}
	if len(cat.Locations[0].Adjacent) != 1 || cat.Locations[0].Adjacent[0] != "study-1" {
		t.Fatalf("expected adjacency to study-1, got %v", cat.Locations[0].Adjacent)
	}
	if len(cat.Schedule) != 1 || cat.Schedule[0].Subject != "Math" {
		t.Fatalf("unexpected schedule: %+v", cat.Schedule)
	}
	if len(cat.Clubs) != 1 || cat.Clubs[0].Name != "Chess Club" {
		t.Fatalf("unexpected clubs: %+v", cat.Clubs)
	}
}

func TestLoadRejectsUnknownLocationType(t *testing.T) {
	_, err := Load([]byte(`
locations:
  - id: x
    name: X
    type: spaceship
`))
	if err == nil {
		t.Fatalf("expected error for unknown location type")
	}
}

func TestDefaultProducesUsableCatalogue(t *testing.T) {
	cat := Default()
	if len(cat.Locations) == 0 || len(cat.Schedule) == 0 {
		t.Fatalf("expected Default to be non-empty")
	}
	ids := make(map[world.LocationId]bool)
	for _, l := range cat.Locations {
		ids[l.Id] = true
	}
	for _, cp := range cat.Schedule {
		if !ids[cp.ClassroomId] {
			t.Fatalf("schedule references unknown classroom %q", cp.ClassroomId)
		}
	}
}
