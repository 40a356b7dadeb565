package types

// Phase is the assessment stage a session has reached. It is bookkeeping for
// the browser client, which owns the transition guards; the server never
// rejects a request because of it.
type Phase string

// Phases in order.
const (
	PhaseUpload     Phase = "upload"
	PhaseExperience Phase = "experience"
	PhaseQuestions  Phase = "questions"
	PhaseBehavioral Phase = "behavioral"
	PhaseSummary    Phase = "summary"
)

var phaseOrder = []Phase{PhaseUpload, PhaseExperience, PhaseQuestions, PhaseBehavioral, PhaseSummary}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	return p.index() >= 0
}

func (p Phase) index() int {
	for i, candidate := range phaseOrder {
		if candidate == p {
			return i
		}
	}
	return -1
}

// Advance returns the phase recorded after an operation that reaches target runs
// while the session is at current. A new upload always lands on experience;
// anything else only moves forward, and unknown targets leave current as is.
func Advance(current, target Phase) Phase {
	switch {
	case target == PhaseExperience:
		return PhaseExperience
	case !target.Valid():
		return current
	case current.index() > target.index():
		return current
	default:
		return target
	}
}
