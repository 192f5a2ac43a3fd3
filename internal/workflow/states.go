package workflow

import "time"

// State identifies where a workflow sits in its lifecycle. Completed is the
// only terminal state: a workflow that exhausts its retries is finalized to
// Completed with a failure reason rather than left dangling in Error.
type State string

const (
	StateIdle              State = "idle"
	StateIngesting         State = "ingesting"
	StateAnalyzing         State = "analyzing"
	StateAssessing         State = "assessing"
	StateEngaging          State = "engaging"
	StateScheduling        State = "scheduling"
	StateAwaitingExternal  State = "awaiting_external"
	StateCollectingOutcome State = "collecting_outcome"
	StateCompleted         State = "completed"
	StateError             State = "error"
)

// transitions is the validated edge set. A result arriving for a workflow
// whose current state has no edge to the requested target is stale or
// out of order and must be dropped, not applied.
var transitions = map[State][]State{
	StateIdle:              {StateAnalyzing, StateError},
	StateIngesting:         {StateError},
	StateAnalyzing:         {StateAssessing, StateError},
	StateAssessing:         {StateEngaging, StateCompleted, StateError},
	StateEngaging:          {StateScheduling, StateCompleted, StateError},
	StateScheduling:        {StateAwaitingExternal, StateError},
	StateAwaitingExternal:  {StateCollectingOutcome, StateError},
	StateCollectingOutcome: {StateCompleted, StateError},
	StateError:             {StateIdle, StateCompleted},
	StateCompleted:         nil,
}

// AllStates lists every state the machine recognizes.
func AllStates() []State {
	return []State{
		StateIdle,
		StateIngesting,
		StateAnalyzing,
		StateAssessing,
		StateEngaging,
		StateScheduling,
		StateAwaitingExternal,
		StateCollectingOutcome,
		StateCompleted,
		StateError,
	}
}

// Known reports whether s is one of the defined states.
func (s State) Known() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no further automatic transition can occur.
func (s State) Terminal() bool { return s == StateCompleted }

func (s State) String() string { return string(s) }

// CanTransition reports whether the edge from -> to exists in the table.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition is one accepted state change in a workflow's history.
type Transition struct {
	From      State     `json:"from"`
	To        State     `json:"to"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason,omitempty"`
}
