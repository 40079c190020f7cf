package assist

import (
	"context"
	"fmt"
	"strings"

	"github.com/haivivi/cookguide/pkg/dialogue"
	"github.com/haivivi/cookguide/pkg/genx"
	"github.com/haivivi/cookguide/pkg/genx/generators"
)

// PlaybackAction is a command for the reference video player.
type PlaybackAction string

const (
	ActionPause  PlaybackAction = "pause"
	ActionPlay   PlaybackAction = "play"
	ActionReplay PlaybackAction = "replay"
)

func (a PlaybackAction) Valid() bool {
	switch a {
	case ActionPause, ActionPlay, ActionReplay:
		return true
	}
	return false
}

// Playback is surfaced to clients so a player can act on it. SegmentIndex
// is nil when the command applies to the current position.
type Playback struct {
	Action       PlaybackAction `json:"action"`
	SegmentIndex *int           `json:"segment_index,omitempty"`
}

type controlPlaybackArg struct {
	Action       string `json:"action" jsonschema:"one of pause, play, replay"`
	SegmentIndex int    `json:"segment_index" jsonschema:"segment to replay, or -1"`
}

var controlPlaybackTool = genx.MustNewFuncTool[controlPlaybackArg](
	"control_playback",
	"Pause, play or replay the reference cooking video.",
)

var playbackResponses = map[PlaybackAction]string{
	ActionPause:  "Pausing the video.",
	ActionPlay:   "Playing the video.",
	ActionReplay: "Replaying the video.",
}

var _ Handler = (*PlaybackHandler)(nil)

// PlaybackHandler turns a playback request into a Playback command.
type PlaybackHandler struct {
	Generator   string
	Mux         *generators.Mux
	Instruction string
}

func (h *PlaybackHandler) Handle(ctx context.Context, req Request) (Result, error) {
	var b contextBuilder
	b.instruction(h.Instruction)
	if err := b.knowledge(&req); err != nil {
		return Result{}, err
	}
	b.input(&req)

	_, call, err := mux(h.Mux).Invoke(ctx, h.Generator, b.Build(), controlPlaybackTool)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", dialogue.ErrOracleCallFailed, err)
	}
	arg, err := genx.Decode[controlPlaybackArg](call)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", dialogue.ErrMalformedOracleResponse, err)
	}
	action := PlaybackAction(strings.ToLower(strings.TrimSpace(arg.Action)))
	if !action.Valid() {
		return Result{}, fmt.Errorf("%w: unknown playback action %q", dialogue.ErrMalformedOracleResponse, arg.Action)
	}
	res := Result{
		Response:          playbackResponses[action],
		VideoSegmentIndex: []int{},
		Playback:          &Playback{Action: action},
	}
	if req.Knowledge.Has(arg.SegmentIndex) {
		i := arg.SegmentIndex
		res.Playback.SegmentIndex = &i
		res.VideoSegmentIndex = []int{i}
	}
	return res, nil
}
