package memlog

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimeLayout is the timestamp layout of entries: RFC 3339 with milliseconds.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Entry is one record of the log.
type Entry struct {
	Index     int
	Content   Payload
	Timestamp string
}

func (e Entry) Kind() Kind {
	if e.Content == nil {
		return KindConversation
	}
	return e.Content.Kind()
}

// Interaction returns the content as an interaction, if it is one.
func (e Entry) Interaction() (*Interaction, bool) {
	p, ok := e.Content.(*Interaction)
	return p, ok
}

// Scene returns the content as a scene analysis, if it is one.
func (e Entry) Scene() (*Scene, bool) {
	p, ok := e.Content.(*Scene)
	return p, ok
}

// Time parses the entry timestamp.
func (e Entry) Time() (time.Time, error) {
	return time.Parse(TimeLayout, e.Timestamp)
}

type entryJSON struct {
	Index     int             `json:"index"`
	Type      Kind            `json:"type"`
	Content   json.RawMessage `json:"content"`
	Timestamp string          `json:"timestamp"`
}

func (e Entry) MarshalJSON() ([]byte, error) {
	content, err := json.Marshal(e.Content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(entryJSON{
		Index:     e.Index,
		Type:      e.Kind(),
		Content:   content,
		Timestamp: e.Timestamp,
	})
}

func (e *Entry) UnmarshalJSON(b []byte) error {
	var raw entryJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var p Payload
	switch raw.Type {
	case KindConversation:
		p = &Interaction{}
	case KindSceneAnalysis:
		p = &Scene{}
	default:
		return fmt.Errorf("memlog: unknown entry type %v", raw.Type)
	}
	if len(raw.Content) > 0 && string(raw.Content) != "null" {
		if err := json.Unmarshal(raw.Content, p); err != nil {
			return fmt.Errorf("memlog: entry %d content: %w", raw.Index, err)
		}
	}
	*e = Entry{Index: raw.Index, Content: p, Timestamp: raw.Timestamp}
	return nil
}

// record is the msgpack form of an Entry in a kv store.
type record struct {
	Index       int          `msgpack:"i"`
	Kind        int8         `msgpack:"k"`
	Interaction *Interaction `msgpack:"c,omitempty"`
	Scene       *Scene       `msgpack:"s,omitempty"`
	Timestamp   string       `msgpack:"ts"`
}

func toRecord(e Entry) record {
	r := record{Index: e.Index, Kind: int8(e.Kind()), Timestamp: e.Timestamp}
	switch p := e.Content.(type) {
	case *Interaction:
		r.Interaction = p
	case *Scene:
		r.Scene = p
	}
	return r
}

func (r record) entry() (Entry, error) {
	e := Entry{Index: r.Index, Timestamp: r.Timestamp}
	switch Kind(r.Kind) {
	case KindConversation:
		if r.Interaction == nil {
			r.Interaction = &Interaction{}
		}
		e.Content = r.Interaction
	case KindSceneAnalysis:
		if r.Scene == nil {
			return Entry{}, fmt.Errorf("memlog: entry %d: scene record without content", r.Index)
		}
		e.Content = r.Scene
	default:
		return Entry{}, fmt.Errorf("memlog: entry %d: unknown kind %d", r.Index, r.Kind)
	}
	return e, nil
}
