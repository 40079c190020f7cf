// Package intent maps free-form user speech onto one of the events that are
// legal in the current dialogue state.
package intent

import (
	"context"

	"github.com/haivivi/cookguide/pkg/dialogue"
)

// Classifier picks the event an utterance expresses. The result is always a
// member of legal or dialogue.NotFound; classifiers never fail.
type Classifier interface {
	Classify(ctx context.Context, utterance string, legal []dialogue.Event) dialogue.Event
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, utterance string, legal []dialogue.Event) dialogue.Event

func (f ClassifierFunc) Classify(ctx context.Context, utterance string, legal []dialogue.Event) dialogue.Event {
	return f(ctx, utterance, legal)
}

// Bound returns e when it is a member of legal and dialogue.NotFound
// otherwise.
func Bound(e dialogue.Event, legal []dialogue.Event) dialogue.Event {
	for _, l := range legal {
		if l == e {
			return e
		}
	}
	return dialogue.NotFound
}
