package controller

import (
	"github.com/haivivi/cookguide/pkg/assist"
	"github.com/haivivi/cookguide/pkg/dialogue"
	"github.com/haivivi/cookguide/pkg/memlog"
)

// Status tells what became of a command.
type Status string

const (
	// StatusHandled: the transition happened and the handler answered.
	StatusHandled Status = "handled"

	// StatusFailed: the transition happened but the handler failed; the
	// result carries the failure response.
	StatusFailed Status = "failed"

	// StatusInvalidTransition: the event is not legal in the current state
	// and was discarded.
	StatusInvalidTransition Status = "invalid_transition"

	// StatusNoMatch: the classifier found no legal event for the utterance.
	StatusNoMatch Status = "no_match"

	// StatusNoChange: an autonomous event that needed no reaction.
	StatusNoChange Status = "no_change"

	// StatusStale: the session was disconnected while the command ran; its
	// result was dropped.
	StatusStale Status = "stale"

	// StatusNotConnected: the session is awaiting connection.
	StatusNotConnected Status = "not_connected"
)

// Outcome reports one processed command.
type Outcome struct {
	Status Status         `json:"status"`
	Event  dialogue.Event `json:"event"`
	From   dialogue.State `json:"from"`
	To     dialogue.State `json:"to"`

	// Result is set when a handler ran.
	Result *assist.Result `json:"result,omitempty"`

	// Scene is set for scene ticks that produced an analysis.
	Scene *memlog.Scene `json:"scene,omitempty"`

	// Entries are the memory entries the command appended.
	Entries []memlog.Entry `json:"entries,omitempty"`

	// Detail describes a failure or a discarded event.
	Detail string `json:"detail,omitempty"`
}

// Changed reports whether the command moved the session to another state.
func (o Outcome) Changed() bool {
	return o.From != o.To
}

// Snapshot is a consistent view of a session.
type Snapshot struct {
	Session    string           `json:"session"`
	State      dialogue.State   `json:"state"`
	Connected  bool             `json:"connected"`
	Generation uint64           `json:"generation"`
	Legal      []dialogue.Event `json:"legal"`
	Memory     memlog.Snapshot  `json:"memory"`
}
