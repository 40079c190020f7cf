package intent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/haivivi/cookguide/pkg/dialogue"
	"github.com/haivivi/cookguide/pkg/genx"
	"github.com/haivivi/cookguide/pkg/genx/generators"
)

var _ Classifier = (*GenX)(nil)

// noneEvent is the name the model returns when nothing fits.
const noneEvent = "none"

type selectArg struct {
	Event  string `json:"event" jsonschema:"name of the selected event, or none"`
	Reason string `json:"reason,omitempty" jsonschema:"one short sentence explaining the choice"`
}

var selectTool = genx.MustNewFuncTool[selectArg](
	"select_event",
	"Select the single event that best matches what the user said.",
)

// Config configures a GenX classifier.
type Config struct {
	// Generator is the registered generator pattern (e.g. "openai/gpt-4o-mini").
	Generator string `json:"generator" yaml:"generator"`

	// Mux routes the generator. Defaults to generators.DefaultMux.
	Mux *generators.Mux `json:"-" yaml:"-"`

	// Info describes events in the prompt. Defaults to dialogue.Event.Info.
	Info func(dialogue.Event) dialogue.EventInfo `json:"-" yaml:"-"`

	Logger *slog.Logger `json:"-" yaml:"-"`
}

// GenX implements [Classifier] via a genx.Generator.
type GenX struct {
	generator string
	mux       *generators.Mux
	info      func(dialogue.Event) dialogue.EventInfo
	logger    *slog.Logger
}

func NewGenX(cfg Config) *GenX {
	g := &GenX{
		generator: cfg.Generator,
		mux:       cfg.Mux,
		info:      cfg.Info,
		logger:    cfg.Logger,
	}
	if g.mux == nil {
		g.mux = generators.DefaultMux
	}
	if g.info == nil {
		g.info = dialogue.Event.Info
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g
}

// Model returns the generator pattern.
func (g *GenX) Model() string {
	return g.generator
}

// Classify asks the generator to pick one of the user events in legal.
// System events in legal are never offered to the model.
func (g *GenX) Classify(ctx context.Context, utterance string, legal []dialogue.Event) dialogue.Event {
	e, err := g.classify(ctx, utterance, legal)
	if err != nil {
		g.logger.WarnContext(ctx, "intent: classification failed", "generator", g.generator, "error", err)
		return dialogue.NotFound
	}
	return e
}

func (g *GenX) classify(ctx context.Context, utterance string, legal []dialogue.Event) (dialogue.Event, error) {
	candidates := userEvents(legal)
	if strings.TrimSpace(utterance) == "" || len(candidates) == 0 {
		return dialogue.NotFound, dialogue.ErrClassifierNoMatch
	}

	var mcb genx.ModelContextBuilder
	mcb.PromptText("classifier", buildPrompt(candidates, g.info))
	mcb.UserText("user", utterance)

	_, call, err := g.mux.Invoke(ctx, g.generator, mcb.Build(), selectTool)
	if err != nil {
		return dialogue.NotFound, fmt.Errorf("%w: %w", dialogue.ErrOracleCallFailed, err)
	}
	return parseAndValidate(call, candidates)
}

func userEvents(legal []dialogue.Event) []dialogue.Event {
	out := make([]dialogue.Event, 0, len(legal))
	for _, e := range legal {
		if e.Valid() && e.Info().Origin == dialogue.OriginUser {
			out = append(out, e)
		}
	}
	return out
}

func parseAndValidate(call *genx.FuncCall, candidates []dialogue.Event) (dialogue.Event, error) {
	arg, err := genx.Decode[selectArg](call)
	if err != nil {
		return dialogue.NotFound, fmt.Errorf("%w: %w", dialogue.ErrMalformedOracleResponse, err)
	}
	name := strings.ToLower(strings.TrimSpace(arg.Event))
	if name == "" || name == noneEvent {
		return dialogue.NotFound, dialogue.ErrClassifierNoMatch
	}
	e, err := dialogue.ParseEvent(name)
	if err != nil {
		return dialogue.NotFound, fmt.Errorf("%w: %w", dialogue.ErrClassifierNoMatch, err)
	}
	if Bound(e, candidates) == dialogue.NotFound {
		return dialogue.NotFound, fmt.Errorf("%w: %s is not legal here", dialogue.ErrClassifierNoMatch, e)
	}
	return e, nil
}
