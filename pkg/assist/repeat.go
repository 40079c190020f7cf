package assist

import (
	"context"
	"fmt"
	"slices"

	"github.com/haivivi/cookguide/pkg/dialogue"
	"github.com/haivivi/cookguide/pkg/genx"
	"github.com/haivivi/cookguide/pkg/genx/generators"
	"github.com/haivivi/cookguide/pkg/memlog"
)

type selectInteractionArg struct {
	Index int `json:"index" jsonschema:"index of the interaction to repeat"`
}

var selectInteractionTool = genx.MustNewFuncTool[selectInteractionArg](
	"select_interaction",
	"Select the earlier interaction the user wants repeated.",
)

type repeatCandidate struct {
	Index         int    `yaml:"index"`
	UserQuery     string `yaml:"user_query,omitempty"`
	AgentResponse string `yaml:"agent_response"`
}

var _ Handler = (*RepeatHandler)(nil)

// RepeatHandler replays a stored response. The generator only picks which
// one; the replayed text comes from memory.
type RepeatHandler struct {
	Generator   string
	Mux         *generators.Mux
	Instruction string
}

func (h *RepeatHandler) Handle(ctx context.Context, req Request) (Result, error) {
	var (
		candidates []repeatCandidate
		byIndex    = make(map[int]*memlog.Interaction)
	)
	for _, e := range req.Memory.Conversations() {
		p, _ := e.Interaction()
		if p.AgentResponse == "" || p.AgentResponse == FailedResponse {
			continue
		}
		candidates = append(candidates, repeatCandidate{
			Index:         e.Index,
			UserQuery:     p.UserQuery,
			AgentResponse: p.AgentResponse,
		})
		byIndex[e.Index] = p
	}
	if len(candidates) == 0 {
		return Result{
			Response:          NothingToRepeatResponse,
			VideoSegmentIndex: []int{},
			NothingToRepeat:   true,
		}, nil
	}

	var b contextBuilder
	b.instruction(h.Instruction)
	if err := b.Prompt("candidates", "interactions", candidates); err != nil {
		return Result{}, err
	}
	b.input(&req)

	_, call, err := mux(h.Mux).Invoke(ctx, h.Generator, b.Build(), selectInteractionTool)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", dialogue.ErrOracleCallFailed, err)
	}
	arg, err := genx.Decode[selectInteractionArg](call)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", dialogue.ErrMalformedOracleResponse, err)
	}
	p, ok := byIndex[arg.Index]
	if !ok {
		return Result{}, fmt.Errorf("%w: no interaction with index %d", dialogue.ErrMalformedOracleResponse, arg.Index)
	}
	index := arg.Index
	return Result{
		Response:          p.AgentResponse,
		VideoSegmentIndex: req.Knowledge.Filter(slices.Clone(p.VideoSegmentIndex)),
		Repeated:          &index,
	}, nil
}
