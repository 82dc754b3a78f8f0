package crawler

// State is the lifecycle phase of a crawl.
type State int

const (
	// StateIdle is the state before Run is called.
	StateIdle State = iota

	// StateSeeded means the configuration was validated and the first page queued.
	StateSeeded

	// StateRunning means workers are claiming pages.
	StateRunning

	// StateDraining means the page budget is fully claimed; in-flight pages are finishing.
	StateDraining

	// StateDone means every worker has exited and the result is final.
	StateDone
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSeeded:
		return "seeded"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// transitions lists the legal moves of the state machine.
var transitions = map[State][]State{
	StateIdle:     {StateSeeded},
	StateSeeded:   {StateRunning},
	StateRunning:  {StateDraining, StateDone},
	StateDraining: {StateDone},
}

// canTransition reports whether from -> to is a legal move.
func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
