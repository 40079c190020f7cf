package assist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/haivivi/cookguide/pkg/dialogue"
	"github.com/haivivi/cookguide/pkg/genx"
	"github.com/haivivi/cookguide/pkg/genx/generators"
	"github.com/haivivi/cookguide/pkg/memlog"
)

// ErrNoImage is returned by the scene analyzer when the request carries no
// camera frame.
var ErrNoImage = errors.New("assist: no camera image")

var analyzeSceneTool = genx.MustNewFuncTool[memlog.Scene](
	"analyze_scene",
	"Report the analysis of the camera image against the cooking video.",
)

// SceneAnalyzer runs the vision generator over the latest camera frame.
type SceneAnalyzer struct {
	Generator   string
	Mux         *generators.Mux
	Instruction string
	Window      int
}

// ModelContext renders the model context of req.
func (a *SceneAnalyzer) ModelContext(req Request) (genx.ModelContext, error) {
	var b contextBuilder
	b.instruction(a.Instruction)
	if err := b.knowledge(&req); err != nil {
		return nil, err
	}
	if err := b.memory(req.Memory.Window(a.Window)); err != nil {
		return nil, err
	}
	b.image(&req)
	b.input(&req)
	return b.Build(), nil
}

// Analyze returns the scene found in req.Image.
func (a *SceneAnalyzer) Analyze(ctx context.Context, req Request) (*memlog.Scene, error) {
	if len(req.Image) == 0 {
		return nil, ErrNoImage
	}
	req.Event = dialogue.EventSceneTick
	mctx, err := a.ModelContext(req)
	if err != nil {
		return nil, err
	}
	_, call, err := mux(a.Mux).Invoke(ctx, a.Generator, mctx, analyzeSceneTool)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", dialogue.ErrOracleCallFailed, err)
	}
	scene, err := genx.Decode[memlog.Scene](call)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", dialogue.ErrMalformedOracleResponse, err)
	}
	flags, err := genx.Decode[sceneFlags](call)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", dialogue.ErrMalformedOracleResponse, err)
	}
	if missing := flags.missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: scene lacks %s", dialogue.ErrMalformedOracleResponse, strings.Join(missing, ", "))
	}
	return &scene, nil
}

// sceneFlags tells which of the scene booleans the model actually set.
type sceneFlags struct {
	IsValidCookingStep       *bool `json:"isValidCookingStep"`
	IsStepCorrect            *bool `json:"isStepCorrect"`
	IsCorrectProcedureOrder  *bool `json:"isCorrectProcedureOrder"`
	HasProgressedToProcedure *bool `json:"hasProgressedToProcedure"`
}

func (f sceneFlags) missing() []string {
	var out []string
	for _, v := range []struct {
		name string
		set  *bool
	}{
		{"isValidCookingStep", f.IsValidCookingStep},
		{"isStepCorrect", f.IsStepCorrect},
		{"isCorrectProcedureOrder", f.IsCorrectProcedureOrder},
		{"hasProgressedToProcedure", f.HasProgressedToProcedure},
	} {
		if v.set == nil {
			out = append(out, v.name)
		}
	}
	return out
}
