package daycycle

import (
	"encoding/json"
	"fmt"
)

// State is a day-cycle state.
type State int

// Cycle states, in the order a successful night visits them.
const (
	Idle State = iota
	AwaitingObservationWindow
	StartingUp
	HealthChecking
	Observing
	ShuttingDown
	Aborted
	Completed
)

var stateNames = map[State]string{
	Idle:                      "idle",
	AwaitingObservationWindow: "awaiting_observation_window",
	StartingUp:                "starting_up",
	HealthChecking:            "health_checking",
	Observing:                 "observing",
	ShuttingDown:              "shutting_down",
	Aborted:                   "aborted",
	Completed:                 "completed",
}

// transitions lists the legal successors of each state. Terminal states
// are reachable only from ShuttingDown.
var transitions = map[State][]State{
	Idle:                      {AwaitingObservationWindow, ShuttingDown},
	AwaitingObservationWindow: {StartingUp, ShuttingDown},
	StartingUp:                {HealthChecking, ShuttingDown},
	HealthChecking:            {Observing, ShuttingDown},
	Observing:                 {ShuttingDown},
	ShuttingDown:              {Aborted, Completed},
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// IsTerminal reports whether the cycle is over.
func (s State) IsTerminal() bool {
	return s == Aborted || s == Completed
}

// CanTransition reports whether to is a legal successor of s.
func (s State) CanTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseState parses a state name as produced by String.
func ParseState(name string) (State, error) {
	for s, n := range stateNames {
		if n == name {
			return s, nil
		}
	}
	return Idle, fmt.Errorf("unknown cycle state %q", name)
}

// MarshalJSON encodes the state by name.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a state name.
func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseState(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
