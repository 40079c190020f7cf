package dialogue

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// State is a dialogue mode. Every non-router state has exactly one bound
// handler in the dispatcher.
type State int

// StateAwaitingConnection is the sentinel used before a session starts and
// after it ends. It has no outgoing events and no handler.
const StateAwaitingConnection State = -1

const (
	StateComparing State = iota
	StateExplainingFood
	StateAnsweringQuestion
	StateFixingProblem
	StateEnhancingResponse
	StateHandlingDisagreement
	StateGuidingNextStep
	StateCorrectingOrder
	StateAnnouncingProgress

	numStates
)

// NumStates is the number of handler-bound states.
const NumStates = int(numStates)

// InitialState is the base state a session moves to on connect.
const InitialState = StateComparing

// StateInfo describes a state.
type StateInfo struct {
	Name  string `json:"name" yaml:"name"`
	Label string `json:"label" yaml:"label"`

	// Monitoring states run the periodic scene analysis.
	Monitoring bool `json:"monitoring,omitempty" yaml:"monitoring,omitempty"`
}

var states = [numStates]StateInfo{
	StateComparing:            {Name: "comparing", Label: "Comparing reality to the video", Monitoring: true},
	StateExplainingFood:       {Name: "explaining_food", Label: "Explaining the current food state"},
	StateAnsweringQuestion:    {Name: "answering_question", Label: "Answering a question"},
	StateFixingProblem:        {Name: "fixing_problem", Label: "Explaining how to fix a problem"},
	StateEnhancingResponse:    {Name: "enhancing_response", Label: "Adding detail to the previous answer"},
	StateHandlingDisagreement: {Name: "handling_disagreement", Label: "Handling disagreement"},
	StateGuidingNextStep:      {Name: "guiding_next_step", Label: "Describing the next step"},
	StateCorrectingOrder:      {Name: "correcting_order", Label: "Correcting the procedure order"},
	StateAnnouncingProgress:   {Name: "announcing_progress", Label: "Announcing progress"},
}

var awaitingInfo = StateInfo{Name: "awaiting_connection", Label: "Awaiting connection"}

// Valid reports whether s is a handler-bound state.
func (s State) Valid() bool {
	return s >= 0 && s < numStates
}

// Known reports whether s is either a handler-bound state or the sentinel.
func (s State) Known() bool {
	return s == StateAwaitingConnection || s.Valid()
}

// Info returns the registry entry of s. It panics on an unknown state.
func (s State) Info() StateInfo {
	if s == StateAwaitingConnection {
		return awaitingInfo
	}
	if !s.Valid() {
		panic(fmt.Sprintf("dialogue: invalid state %d", int(s)))
	}
	return states[s]
}

// Monitoring reports whether the scene analysis should run in s.
func (s State) Monitoring() bool {
	return s.Valid() && states[s].Monitoring
}

// String returns the registered name of the state.
func (s State) String() string {
	if !s.Known() {
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
	return s.Info().Name
}

// ParseState parses a state name or its decimal code.
func ParseState(str string) (State, error) {
	if str == awaitingInfo.Name {
		return StateAwaitingConnection, nil
	}
	for i := range states {
		if states[i].Name == str {
			return State(i), nil
		}
	}
	n, err := strconv.Atoi(str)
	if err == nil && State(n).Known() {
		return State(n), nil
	}
	return StateAwaitingConnection, fmt.Errorf("dialogue: unknown state %q", str)
}

// States returns all handler-bound states in code order.
func States() []State {
	out := make([]State, numStates)
	for i := range out {
		out[i] = State(i)
	}
	return out
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(b []byte) error {
	v, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// UnmarshalJSON accepts both the state name and the integer code.
func (s *State) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		if !State(n).Known() {
			return fmt.Errorf("dialogue: unknown state %d", n)
		}
		*s = State(n)
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	return s.UnmarshalText([]byte(str))
}
