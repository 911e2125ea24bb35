// Package catalogue loads the static campus content: the campus map,
// curriculum and club list.
// It is the one place gopkg.in/yaml.v3 touches the engine, keeping the
// dependency at the edge rather than smeared through internal/world.
package catalogue

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/schoolsim/campus-engine/internal/world"
)

// locationYAML/classPeriodYAML/clubYAML mirror the on-disk shape; they are
// translated into world.Location/world.ClassPeriod so nothing downstream of
// this package ever sees YAML tags.
type locationYAML struct {
	Id       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Type     string   `yaml:"type"`
	Capacity int      `yaml:"capacity"`
	X        float64  `yaml:"x"`
	Y        float64  `yaml:"y"`
	Adjacent []string `yaml:"adjacent"`
}

type classPeriodYAML struct {
	Period      int    `yaml:"period"`
	Subject     string `yaml:"subject"`
	ClassroomId string `yaml:"classroom_id"`
}

type clubYAML struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	RoomId      string `yaml:"room_id"`
}

type catalogueYAML struct {
	Locations []locationYAML    `yaml:"locations"`
	Schedule  []classPeriodYAML `yaml:"schedule"`
	Clubs     []clubYAML        `yaml:"clubs"`
}

// Club is the one piece of catalogue content with no world.* counterpart
// (the engine's core doesn't model clubs as a mutation target, only as
// situational flavor); Catalogue carries it in Clubs.
type Club struct {
	Name        string
	Description string
	RoomId      world.LocationId
}

// Catalogue is the parsed, typed static content ready to seed a World.
type Catalogue struct {
	Locations []world.Location
	Schedule  []world.ClassPeriod
	Clubs     []Club
}

var locationTypeNames = map[string]world.LocationType{
	"classroom":     world.LocationClassroom,
	"dormitory":     world.LocationDormitory,
	"cafeteria":     world.LocationCafeteria,
	"study_room":    world.LocationStudyRoom,
	"rest_area":     world.LocationRestArea,
	"activity_area": world.LocationActivityArea,
	"library":       world.LocationLibrary,
	"club_room":     world.LocationClubRoom,
}

// Load parses a catalogue YAML document (campus map + curriculum + clubs)
// from bytes, typically read from a config-supplied path by the caller.
func Load(data []byte) (Catalogue, error) {
	var raw catalogueYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Catalogue{}, fmt.Errorf("catalogue: invalid YAML: %w", err)
	}

	locations := make([]world.Location, 0, len(raw.Locations))
	for _, l := range raw.Locations {
		typ, ok := locationTypeNames[l.Type]
		if !ok {
			return Catalogue{}, fmt.Errorf("catalogue: location %q has unknown type %q", l.Id, l.Type)
		}
		adj := make([]world.LocationId, 0, len(l.Adjacent))
		for _, a := range l.Adjacent {
			adj = append(adj, world.LocationId(a))
		}
		locations = append(locations, world.Location{
			Id:       world.LocationId(l.Id),
			Name:     l.Name,
			Type:     typ,
			Capacity: l.Capacity,
			Pos:      world.Position{X: l.X, Y: l.Y},
			Adjacent: adj,
		})
	}

	schedule := make([]world.ClassPeriod, 0, len(raw.Schedule))
	for _, cp := range raw.Schedule {
		schedule = append(schedule, world.ClassPeriod{
			Period:      cp.Period,
			Subject:     cp.Subject,
			ClassroomId: world.LocationId(cp.ClassroomId),
		})
	}

	clubs := make([]Club, 0, len(raw.Clubs))
	for _, c := range raw.Clubs {
		clubs = append(clubs, Club{Name: c.Name, Description: c.Description, RoomId: world.LocationId(c.RoomId)})
	}

	return Catalogue{Locations: locations, Schedule: schedule, Clubs: clubs}, nil
}

// LoadFile reads and parses a catalogue YAML file from disk.
func LoadFile(path string) (Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalogue{}, fmt.Errorf("catalogue: %w", err)
	}
	return Load(data)
}

// Default returns a small self-consistent catalogue sufficient to run the
// engine without external content: one classroom, one dormitory, one
// cafeteria, one study room and one rest area, with a five-period weekday
// schedule that repeats in the same classroom.
func Default() Catalogue {
	locs := []world.Location{
		{Id: "classroom-1", Name: "Classroom 1", Type: world.LocationClassroom, Capacity: 40, Adjacent: []world.LocationId{"study-1"}},
		{Id: "dorm-1", Name: "Dormitory 1", Type: world.LocationDormitory, Capacity: 200, Adjacent: []world.LocationId{"cafeteria"}},
		{Id: "cafeteria", Name: "Cafeteria", Type: world.LocationCafeteria, Capacity: 300, Adjacent: []world.LocationId{"dorm-1", "yard"}},
		{Id: "study-1", Name: "Study Room 1", Type: world.LocationStudyRoom, Capacity: 30, Adjacent: []world.LocationId{"classroom-1"}},
		{Id: "yard", Name: "Courtyard", Type: world.LocationRestArea, Capacity: 100, Adjacent: []world.LocationId{"cafeteria"}},
	}
	schedule := []world.ClassPeriod{
		{Period: 1, Subject: "Math", ClassroomId: "classroom-1"},
		{Period: 2, Subject: "Chinese", ClassroomId: "classroom-1"},
		{Period: 3, Subject: "English", ClassroomId: "classroom-1"},
		{Period: 4, Subject: "Physics", ClassroomId: "classroom-1"},
		{Period: 5, Subject: "History", ClassroomId: "classroom-1"},
	}
	return Catalogue{Locations: locs, Schedule: schedule}
}
