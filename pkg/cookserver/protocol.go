package cookserver

import (
	"github.com/haivivi/cookguide/pkg/controller"
	"github.com/haivivi/cookguide/pkg/dialogue"
)

// Client message types.
const (
	TypeConnect    = "connect"
	TypeUtterance  = "utterance"
	TypeEvent      = "event"
	TypeImage      = "image"
	TypeTick       = "tick"
	TypeReset      = "reset"
	TypeDisconnect = "disconnect"
)

// Server message types.
const (
	TypeOutcome = "outcome"
	TypeState   = "state"
	TypeError   = "error"
)

// ClientMessage is a JSON text frame sent by the client.
type ClientMessage struct {
	Type string `json:"type"`

	// Session names the session to connect, or to restore when its memory
	// was persisted. A new id is generated when empty.
	Session string `json:"session,omitempty"`

	// Text is the utterance, or the user query recorded with an event.
	Text string `json:"text,omitempty"`

	// Event accepts an event name or code.
	Event *dialogue.Event `json:"event,omitempty"`

	// Data is the base64 camera frame of an image message.
	Data     []byte `json:"data,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`

	// ID is echoed in the reply.
	ID string `json:"id,omitempty"`
}

// ServerMessage is a JSON text frame sent by the server.
type ServerMessage struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`

	Outcome *controller.Outcome `json:"outcome,omitempty"`

	Session   string           `json:"session,omitempty"`
	State     *dialogue.State  `json:"state,omitempty"`
	Connected bool             `json:"connected,omitempty"`
	Legal     []dialogue.Event `json:"legal,omitempty"`

	Error string `json:"error,omitempty"`
}

func stateMessage(id string, snap controller.Snapshot) ServerMessage {
	state := snap.State
	return ServerMessage{
		Type:      TypeState,
		ID:        id,
		Session:   snap.Session,
		State:     &state,
		Connected: snap.Connected,
		Legal:     snap.Legal,
	}
}

func errorMessage(id string, err error) ServerMessage {
	return ServerMessage{Type: TypeError, ID: id, Error: err.Error()}
}
