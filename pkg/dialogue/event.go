package dialogue

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Event is a discrete signal that drives a transition. The set of events is
// closed: every valid code is listed in the registry below.
type Event int

// NotFound is returned by classifiers when no legal event matches.
const NotFound Event = -1

const (
	EventAskFoodState Event = iota
	EventAskQuestion
	EventAskHowToFix
	EventDisagree
	EventAgree
	EventRepeat
	EventFollowUp
	EventAskNextStep
	EventControlPlayback

	EventSceneTick
	EventStepIncorrect
	EventWrongOrder
	EventTimeout
	EventStepProgressed

	numEvents
)

// NumEvents is the number of registered events.
const NumEvents = int(numEvents)

// Origin tells who produces an event.
type Origin string

const (
	OriginUser   Origin = "user"
	OriginSystem Origin = "system"
)

// AgreeQuery is the query recorded in memory for EventAgree.
const AgreeQuery = "I agree with your response"

// EventInfo describes an event for classifiers and clients.
type EventInfo struct {
	Name        string   `json:"name" yaml:"name"`
	Origin      Origin   `json:"origin" yaml:"origin"`
	Description string   `json:"description" yaml:"description"`
	Examples    []string `json:"examples,omitempty" yaml:"examples,omitempty"`

	// Autonomous events bypass the legal-event check of the current state.
	Autonomous bool `json:"autonomous,omitempty" yaml:"autonomous,omitempty"`

	// FixedQuery, when set, replaces the user's wording in the memory log.
	FixedQuery string `json:"fixed_query,omitempty" yaml:"fixed_query,omitempty"`
}

var events = [numEvents]EventInfo{
	EventAskFoodState: {
		Name:        "ask_food_state",
		Origin:      OriginUser,
		Description: "The user asks about the current state of the food (doneness, color, texture, amount).",
		Examples:    []string{"Is the onion brown enough?", "Does this look right?", "How does my pan look?"},
	},
	EventAskQuestion: {
		Name:        "ask_question",
		Origin:      OriginUser,
		Description: "The user asks a general question about the recipe, an ingredient or a step.",
		Examples:    []string{"How much salt do I need?", "What temperature should the oven be?"},
	},
	EventAskHowToFix: {
		Name:        "ask_how_to_fix",
		Origin:      OriginUser,
		Description: "The user reports a problem and asks how to fix it.",
		Examples:    []string{"I think I burned it, what now?", "The sauce is too thin, how do I fix it?"},
	},
	EventDisagree: {
		Name:        "disagree",
		Origin:      OriginUser,
		Description: "The user disagrees with or doubts the assistant's last response.",
		Examples:    []string{"No, that's not right.", "I don't think so, it already looks done."},
	},
	EventAgree: {
		Name:        "agree",
		Origin:      OriginUser,
		Description: "The user agrees with or accepts the assistant's last response.",
		Examples:    []string{"Okay, got it.", "Yes, that makes sense.", "Thanks, I'll do that."},
		FixedQuery:  AgreeQuery,
	},
	EventRepeat: {
		Name:        "repeat",
		Origin:      OriginUser,
		Description: "The user asks the assistant to repeat something it said before.",
		Examples:    []string{"Can you say that again?", "What did you say about the garlic?"},
	},
	EventFollowUp: {
		Name:        "follow_up",
		Origin:      OriginUser,
		Description: "The user asks for more detail about the previous answer.",
		Examples:    []string{"Can you explain more?", "Why is that?", "What do you mean by fold?"},
	},
	EventAskNextStep: {
		Name:        "ask_next_step",
		Origin:      OriginUser,
		Description: "The user asks what to do next.",
		Examples:    []string{"What's next?", "I'm done chopping, now what?"},
	},
	EventControlPlayback: {
		Name:        "control_playback",
		Origin:      OriginUser,
		Description: "The user wants to pause, play or replay the reference video.",
		Examples:    []string{"Pause the video.", "Play it again from the start.", "Continue."},
	},
	EventSceneTick: {
		Name:        "scene_tick",
		Origin:      OriginSystem,
		Description: "Periodic scene analysis of the live camera feed.",
		Autonomous:  true,
	},
	EventStepIncorrect: {
		Name:        "step_incorrect",
		Origin:      OriginSystem,
		Description: "Scene analysis found that the current step is not being done correctly.",
	},
	EventWrongOrder: {
		Name:        "wrong_order",
		Origin:      OriginSystem,
		Description: "Scene analysis found a skipped step or a wrong procedure order.",
	},
	EventTimeout: {
		Name:        "timeout",
		Origin:      OriginSystem,
		Description: "No interaction for the configured idle period.",
		Autonomous:  true,
	},
	EventStepProgressed: {
		Name:        "step_progressed",
		Origin:      OriginSystem,
		Description: "Scene analysis found that the user moved on to the next procedure.",
	},
}

// Valid reports whether e is a registered event.
func (e Event) Valid() bool {
	return e >= 0 && e < numEvents
}

// Info returns the registry entry of e. It panics on an invalid event.
func (e Event) Info() EventInfo {
	if !e.Valid() {
		panic(fmt.Sprintf("dialogue: invalid event %d", int(e)))
	}
	return events[e]
}

// Autonomous reports whether e is a reserved autonomous event.
func (e Event) Autonomous() bool {
	return e.Valid() && events[e].Autonomous
}

// String returns the registered name of the event.
func (e Event) String() string {
	if e == NotFound {
		return "not_found"
	}
	if !e.Valid() {
		return "event(" + strconv.Itoa(int(e)) + ")"
	}
	return events[e].Name
}

// ParseEvent parses an event name or its decimal code.
func ParseEvent(s string) (Event, error) {
	for i := range events {
		if events[i].Name == s {
			return Event(i), nil
		}
	}
	n, err := strconv.Atoi(s)
	if err == nil && Event(n).Valid() {
		return Event(n), nil
	}
	return NotFound, fmt.Errorf("dialogue: unknown event %q", s)
}

// Events returns all registered events in code order.
func Events() []Event {
	out := make([]Event, numEvents)
	for i := range out {
		out[i] = Event(i)
	}
	return out
}

// MarshalText implements encoding.TextMarshaler.
func (e Event) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Event) UnmarshalText(b []byte) error {
	if string(b) == "not_found" {
		*e = NotFound
		return nil
	}
	v, err := ParseEvent(string(b))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// UnmarshalJSON accepts both the event name and the integer code.
func (e *Event) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		if !Event(n).Valid() && Event(n) != NotFound {
			return fmt.Errorf("dialogue: unknown event %d", n)
		}
		*e = Event(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return e.UnmarshalText([]byte(s))
}
