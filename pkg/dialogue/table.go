package dialogue

import (
	"errors"
	"fmt"
	"slices"
)

// Transition is one row of the transition table.
type Transition struct {
	From  State `json:"from" yaml:"from"`
	Event Event `json:"event" yaml:"event"`
	To    State `json:"to" yaml:"to"`
}

func (t Transition) String() string {
	return fmt.Sprintf("%s --%s--> %s", t.From, t.Event, t.To)
}

// Table is a deterministic, partial mapping from (state, event) to the next
// state. It is immutable after construction and safe for concurrent use.
type Table struct {
	rows [numStates]map[Event]State
}

// conversational states share the same user-event row.
var conversational = []State{
	StateComparing,
	StateExplainingFood,
	StateAnsweringQuestion,
	StateFixingProblem,
	StateEnhancingResponse,
	StateGuidingNextStep,
	StateCorrectingOrder,
	StateAnnouncingProgress,
}

// DefaultTransitions returns the canonical transition list.
func DefaultTransitions() []Transition {
	var ts []Transition
	for _, s := range conversational {
		ts = append(ts,
			Transition{s, EventAskFoodState, StateExplainingFood},
			Transition{s, EventAskQuestion, StateAnsweringQuestion},
			Transition{s, EventAskHowToFix, StateFixingProblem},
			Transition{s, EventDisagree, StateHandlingDisagreement},
			Transition{s, EventAgree, StateComparing},
			Transition{s, EventRepeat, s},
			Transition{s, EventFollowUp, StateEnhancingResponse},
			Transition{s, EventAskNextStep, StateGuidingNextStep},
			Transition{s, EventControlPlayback, s},
			Transition{s, EventTimeout, StateComparing},
		)
	}
	ts = append(ts,
		Transition{StateComparing, EventStepIncorrect, StateFixingProblem},
		Transition{StateComparing, EventWrongOrder, StateCorrectingOrder},
		Transition{StateComparing, EventStepProgressed, StateAnnouncingProgress},

		Transition{StateHandlingDisagreement, EventAskQuestion, StateAnsweringQuestion},
		Transition{StateHandlingDisagreement, EventAskHowToFix, StateFixingProblem},
		Transition{StateHandlingDisagreement, EventDisagree, StateHandlingDisagreement},
		Transition{StateHandlingDisagreement, EventAgree, StateComparing},
		Transition{StateHandlingDisagreement, EventRepeat, StateHandlingDisagreement},
		Transition{StateHandlingDisagreement, EventFollowUp, StateEnhancingResponse},
		Transition{StateHandlingDisagreement, EventControlPlayback, StateHandlingDisagreement},
		Transition{StateHandlingDisagreement, EventTimeout, StateComparing},
	)
	return ts
}

// DefaultTable returns the table built from DefaultTransitions.
func DefaultTable() *Table {
	t, err := NewTable(DefaultTransitions())
	if err != nil {
		panic(err)
	}
	return t
}

// NewTable builds a table from transition triples. It fails when a pair has
// two different targets, when a triple names an unknown state or event, or
// when a state reachable from InitialState has no outgoing event.
func NewTable(ts []Transition) (*Table, error) {
	var t Table
	var errs []error
	for _, tr := range ts {
		if !tr.From.Valid() {
			errs = append(errs, fmt.Errorf("dialogue: %v: unknown source state", tr))
			continue
		}
		if !tr.To.Valid() {
			errs = append(errs, fmt.Errorf("dialogue: %v: unknown target state", tr))
			continue
		}
		if !tr.Event.Valid() {
			errs = append(errs, fmt.Errorf("dialogue: %v: unknown event", tr))
			continue
		}
		if tr.Event == EventSceneTick {
			errs = append(errs, fmt.Errorf("dialogue: %v: scene ticks do not transition", tr))
			continue
		}
		row := t.rows[tr.From]
		if row == nil {
			row = make(map[Event]State)
			t.rows[tr.From] = row
		}
		if prev, ok := row[tr.Event]; ok && prev != tr.To {
			errs = append(errs, fmt.Errorf("dialogue: %v: conflicts with target %s", tr, prev))
			continue
		}
		row[tr.Event] = tr.To
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	for _, s := range t.Reachable() {
		if len(t.rows[s]) == 0 {
			errs = append(errs, fmt.Errorf("dialogue: state %s is reachable but has no outgoing events", s))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &t, nil
}

// Lookup returns the next state for (s, e). ok is false when the pair is not
// in the table.
func (t *Table) Lookup(s State, e Event) (next State, ok bool) {
	if !s.Valid() {
		return s, false
	}
	next, ok = t.rows[s][e]
	if !ok {
		return s, false
	}
	return next, true
}

// Next is Lookup returning a *TransitionError for undefined pairs.
func (t *Table) Next(s State, e Event) (State, error) {
	next, ok := t.Lookup(s, e)
	if !ok {
		return s, &TransitionError{State: s, Event: e}
	}
	return next, nil
}

// IsLegal reports whether e has a row in state s.
func (t *Table) IsLegal(s State, e Event) bool {
	_, ok := t.Lookup(s, e)
	return ok
}

// LegalEvents returns the events that have a row in state s, in code order.
func (t *Table) LegalEvents(s State) []Event {
	if !s.Valid() {
		return nil
	}
	out := make([]Event, 0, len(t.rows[s]))
	for e := range t.rows[s] {
		out = append(out, e)
	}
	slices.Sort(out)
	return out
}

// UserEvents is LegalEvents restricted to user-originated events.
func (t *Table) UserEvents(s State) []Event {
	return slices.DeleteFunc(t.LegalEvents(s), func(e Event) bool {
		return e.Info().Origin != OriginUser
	})
}

// Transitions returns every row, ordered by source state then event.
func (t *Table) Transitions() []Transition {
	var out []Transition
	for s := range t.rows {
		for _, e := range t.LegalEvents(State(s)) {
			out = append(out, Transition{From: State(s), Event: e, To: t.rows[s][e]})
		}
	}
	return out
}

// Reachable returns the states reachable from InitialState, including it.
func (t *Table) Reachable() []State {
	var seen [numStates]bool
	queue := []State{InitialState}
	seen[InitialState] = true
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		for _, next := range t.rows[s] {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	var out []State
	for s, ok := range seen {
		if ok {
			out = append(out, State(s))
		}
	}
	return out
}
