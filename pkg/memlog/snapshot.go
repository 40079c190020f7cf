package memlog

import (
	"github.com/goccy/go-yaml"
)

// Snapshot is an immutable copy of a log, oldest entry first.
type Snapshot []Entry

// Window returns the last n entries. n <= 0 means all of them.
func (s Snapshot) Window(n int) Snapshot {
	if n <= 0 || n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}

// Conversations returns the conversation entries, oldest first.
func (s Snapshot) Conversations() []Entry {
	var out []Entry
	for _, e := range s {
		if e.Kind() == KindConversation {
			out = append(out, e)
		}
	}
	return out
}

// LastInteraction returns the most recent interaction that carries an
// agent response.
func (s Snapshot) LastInteraction() (*Interaction, bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if p, ok := s[i].Interaction(); ok && p.AgentResponse != "" {
			return p, true
		}
	}
	return nil, false
}

// LastScene returns the most recent scene analysis.
func (s Snapshot) LastScene() (*Scene, bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if p, ok := s[i].Scene(); ok {
			return p, true
		}
	}
	return nil, false
}

type entryView struct {
	Index     int     `yaml:"index"`
	Type      string  `yaml:"type"`
	Timestamp string  `yaml:"timestamp"`
	Content   Payload `yaml:"content"`
}

// Views returns the entries in the shape used for prompts and YAML output.
func (s Snapshot) Views() []any {
	out := make([]any, len(s))
	for i, e := range s {
		out[i] = entryView{
			Index:     e.Index,
			Type:      e.Kind().String(),
			Timestamp: e.Timestamp,
			Content:   e.Content,
		}
	}
	return out
}

// YAML renders the snapshot as a YAML list.
func (s Snapshot) YAML() (string, error) {
	if len(s) == 0 {
		return "[]\n", nil
	}
	b, err := yaml.Marshal(s.Views())
	if err != nil {
		return "", err
	}
	return string(b), nil
}
