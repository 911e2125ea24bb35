package runner

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/schoolsim/campus-engine/internal/world"
)

// exportTime renders SimulationTime with its canonical lowercase field
// names for the on-demand export.
type exportTime struct {
	Semester int    `json:"semester"`
	Week     int    `json:"week"`
	Day      int    `json:"day"`
	Hour     int    `json:"hour"`
	Tick     uint64 `json:"tick"`
}

// Export renders the on-demand JSON document:
// {simulation:{time,agent_count}, agents:[…], events:[…]}. The document is
// assembled field by field with sjson so the top-level key order is stable
// regardless of Go's map iteration, then pretty-printed.
func (r *Runner) Export() ([]byte, error) {
	return exportWorld(r.world)
}

func exportWorld(w *world.World) ([]byte, error) {
	snap := w.Snapshot()

	doc := []byte(`{}`)

	timeRaw, err := json.Marshal(exportTime{
		Semester: snap.Time.Semester,
		Week:     snap.Time.Week,
		Day:      snap.Time.Day,
		Hour:     snap.Time.Hour,
		Tick:     snap.Time.Tick,
	})
	if err != nil {
		return nil, fmt.Errorf("export: time: %w", err)
	}
	if doc, err = sjson.SetRawBytes(doc, "simulation.time", timeRaw); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	if doc, err = sjson.SetBytes(doc, "simulation.agent_count", len(snap.Agents)); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	if doc, err = sjson.SetRawBytes(doc, "agents", []byte(`[]`)); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	for _, a := range snap.Agents {
		raw, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("export: agent %s: %w", a.Name, err)
		}
		if doc, err = sjson.SetRawBytes(doc, "agents.-1", raw); err != nil {
			return nil, fmt.Errorf("export: %w", err)
		}
	}

	if doc, err = sjson.SetRawBytes(doc, "events", []byte(`[]`)); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	for _, e := range w.RecentEvents(0) {
		raw, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("export: event %s: %w", e.Id, err)
		}
		if doc, err = sjson.SetRawBytes(doc, "events.-1", raw); err != nil {
			return nil, fmt.Errorf("export: %w", err)
		}
	}

	return pretty.Pretty(doc), nil
}
