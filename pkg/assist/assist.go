// Package assist runs the response strategy bound to each dialogue state.
//
// A Dispatcher maps the destination state of a transition to a Handler. Most
// handlers are PromptHandlers: they render the state's instruction, the video
// knowledge, a window of the memory log and the user's input into a model
// context and ask the reasoning generator to call the respond tool. Repeat and
// playback requests are bound to their events instead of a state.
package assist

import (
	"context"
	"strings"

	"github.com/haivivi/cookguide/pkg/dialogue"
	"github.com/haivivi/cookguide/pkg/knowledge"
	"github.com/haivivi/cookguide/pkg/memlog"
)

// FailedResponse is the response surfaced when a handler could not produce
// one.
const FailedResponse = "GPT FAILED! Please retry."

// NothingToRepeatResponse is the response of a repeat request on a log with
// no conversation.
const NothingToRepeatResponse = "I haven't said anything yet, so there is nothing to repeat."

// Request is the input of a handler. Handlers must not retain or modify it.
type Request struct {
	// State is the state the handler runs for and Event the event that led
	// there.
	State dialogue.State
	Event dialogue.Event

	Knowledge *knowledge.VideoKnowledge

	// Image is the latest camera frame, if any. ImageType defaults to
	// image/jpeg.
	Image     []byte
	ImageType string

	Utterance string
	Memory    memlog.Snapshot
}

func (r *Request) imageType() string {
	if r.ImageType == "" {
		return "image/jpeg"
	}
	return r.ImageType
}

// Result is the output of a handler.
type Result struct {
	Response          string `json:"response"`
	VideoSegmentIndex []int  `json:"video_segment_index"`

	// Playback is set by the playback handler.
	Playback *Playback `json:"playback,omitempty"`

	// NothingToRepeat is set when a repeat request found no conversation.
	NothingToRepeat bool `json:"nothing_to_repeat,omitempty"`

	// Repeated is the memory index of the replayed interaction.
	Repeated *int `json:"repeated,omitempty"`

	// Failure is non-nil when Response is FailedResponse.
	Failure error `json:"-"`
}

// Failed returns the failure result for err.
func Failed(err error) Result {
	return Result{
		Response:          FailedResponse,
		VideoSegmentIndex: []int{},
		Failure:           err,
	}
}

// Interaction returns the memory payload recording the result for query.
// ok is false for results that are not remembered: playback commands, empty
// repeats.
func (r Result) Interaction(query string) (*memlog.Interaction, bool) {
	if r.Playback != nil || r.NothingToRepeat {
		return nil, false
	}
	return &memlog.Interaction{
		UserQuery:         query,
		AgentResponse:     r.Response,
		VideoSegmentIndex: r.VideoSegmentIndex,
	}, true
}

// Handler produces the response for one request.
type Handler interface {
	Handle(ctx context.Context, req Request) (Result, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req Request) (Result, error)

func (f HandlerFunc) Handle(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

// sanitize trims the response and keeps only the segment indices present in
// vk. ok is false when no text is left.
func sanitize(response string, indices []int, vk *knowledge.VideoKnowledge) (Result, bool) {
	response = strings.TrimSpace(response)
	if response == "" {
		return Result{}, false
	}
	return Result{
		Response:          response,
		VideoSegmentIndex: vk.Filter(indices),
	}, true
}
