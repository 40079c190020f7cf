package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/haivivi/cookguide/pkg/dialogue"
	"github.com/haivivi/cookguide/pkg/genx"
	"github.com/haivivi/cookguide/pkg/genx/generators"
)

type respondArg struct {
	Response          string `json:"response" jsonschema:"what to say to the user"`
	VideoSegmentIndex []int  `json:"video_segment_index" jsonschema:"indices of the video segments the response relies on"`
}

// respondReply is what the model sent for respond. Indices stay raw so one
// bad element does not cost the response text.
type respondReply struct {
	Response          string          `json:"response"`
	VideoSegmentIndex json.RawMessage `json:"video_segment_index"`
}

// indices returns the integral elements of the index list and drops the
// rest. A value that is not a list yields none.
func (r respondReply) indices() []int {
	var raw []json.RawMessage
	if err := json.Unmarshal(r.VideoSegmentIndex, &raw); err != nil {
		return nil
	}
	out := make([]int, 0, len(raw))
	for _, v := range raw {
		var f *float64
		if err := json.Unmarshal(v, &f); err != nil || f == nil {
			continue
		}
		if *f != math.Trunc(*f) || *f < math.MinInt32 || *f > math.MaxInt32 {
			continue
		}
		out = append(out, int(*f))
	}
	return out
}

var respondTool = genx.MustNewFuncTool[respondArg](
	"respond",
	"Say the response to the user and cite the video segments it relies on.",
)

var _ Handler = (*PromptHandler)(nil)

// PromptHandler answers with the reasoning generator, guided by the policy
// of one state.
type PromptHandler struct {
	Generator string
	Mux       *generators.Mux
	Policy    StatePolicy
}

// ModelContext renders the model context of req.
func (h *PromptHandler) ModelContext(req Request) (genx.ModelContext, error) {
	var b contextBuilder
	b.instruction(h.Policy.Instruction)
	if err := b.knowledge(&req); err != nil {
		return nil, err
	}
	if err := b.memory(req.Memory.Window(h.Policy.MemoryWindow)); err != nil {
		return nil, err
	}
	if h.Policy.UseImage {
		b.image(&req)
	}
	b.input(&req)
	return b.Build(), nil
}

func (h *PromptHandler) Handle(ctx context.Context, req Request) (Result, error) {
	mctx, err := h.ModelContext(req)
	if err != nil {
		return Result{}, err
	}
	_, call, err := mux(h.Mux).Invoke(ctx, h.Generator, mctx, respondTool)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", dialogue.ErrOracleCallFailed, err)
	}
	reply, err := genx.Decode[respondReply](call)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", dialogue.ErrMalformedOracleResponse, err)
	}
	res, ok := sanitize(reply.Response, reply.indices(), req.Knowledge)
	if !ok {
		return Result{}, fmt.Errorf("%w: empty response", dialogue.ErrMalformedOracleResponse)
	}
	return res, nil
}

func mux(m *generators.Mux) *generators.Mux {
	if m == nil {
		return generators.DefaultMux
	}
	return m
}
