package world

import (
	"strconv"
	"strings"
)

// ChangeKind is the closed sum of ways a StateChange can apply its value.
type ChangeKind int

const (
	ChangeDelta ChangeKind = iota
	ChangeSet
	ChangeAppend
)

// StateChange is a typed, bounded mutation of a single world field. The
// arbiter is the only component allowed to originate one from agent
// behaviour; events from the event generator and from interventions carry
// none.
type StateChange struct {
	Target string
	Kind   ChangeKind
	Value  any
}

// fieldSelector is the parsed form of a StateChange.Target dotted path.
// Exactly one of agentRef/relA+relB is set, matching which grammar branch
// matched.
type fieldSelector struct {
	isAgent bool
	agentRef string
	agentField string // "emotion.valence" | "emotion.arousal" | "emotion.stress" | "location"

	isRelationship bool
	relA, relB     string
	relField       string // "closeness" | "trust"
}

// parseTarget parses the state-change target grammar:
//
//	agent:<name-or-uuid>.emotion.{valence|arousal|stress}
//	agent:<name-or-uuid>.location
//	relationship[<nameA>,<nameB>].{closeness|trust}
//
// A malformed or unrecognized path returns ok=false; callers turn that into
// a warning rather than an error, per the "never abort the tick" rule.
func parseTarget(target string) (fieldSelector, bool) {
	switch {
	case strings.HasPrefix(target, "agent:"):
		rest := target[len("agent:"):]
		dot := strings.IndexByte(rest, '.')
		if dot < 0 {
			return fieldSelector{}, false
		}
		ref := rest[:dot]
		field := rest[dot+1:]
		if ref == "" || field == "" {
			return fieldSelector{}, false
		}
		switch field {
		case "emotion.valence", "emotion.arousal", "emotion.stress", "location":
			return fieldSelector{isAgent: true, agentRef: ref, agentField: field}, true
		default:
			return fieldSelector{}, false
		}

	case strings.HasPrefix(target, "relationship["):
		close := strings.IndexByte(target, ']')
		if close < 0 || close+1 >= len(target) || target[close+1] != '.' {
			return fieldSelector{}, false
		}
		pair := target[len("relationship[") : close]
		parts := strings.SplitN(pair, ",", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return fieldSelector{}, false
		}
		field := target[close+2:]
		switch field {
		case "closeness", "trust":
			return fieldSelector{isRelationship: true, relA: parts[0], relB: parts[1], relField: field}, true
		default:
			return fieldSelector{}, false
		}

	default:
		return fieldSelector{}, false
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}
