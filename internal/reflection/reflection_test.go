package reflection

import (
	"testing"

	"github.com/schoolsim/campus-engine/internal/ids"
)

func TestRecordEventFiresAtThresholdAndResets(t *testing.T) {
	trig := New(3)
	agent := ids.NewAgentId()

	if trig.RecordEvent(agent) {
		t.Fatalf("should not fire at count 1")
	}
	if trig.RecordEvent(agent) {
		t.Fatalf("should not fire at count 2")
	}
	if !trig.RecordEvent(agent) {
		t.Fatalf("should fire at count 3")
	}
	if trig.Count(agent) != 0 {
		t.Fatalf("expected reset to 0, got %d", trig.Count(agent))
	}
}

func TestRecordEventPerAgentIndependent(t *testing.T) {
	trig := New(2)
	a, b := ids.NewAgentId(), ids.NewAgentId()

	trig.RecordEvent(a)
	if trig.RecordEvent(b) {
		t.Fatalf("b should not fire yet")
	}
	if !trig.RecordEvent(a) {
		t.Fatalf("a should fire at its own count 2")
	}
}
