package assist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/haivivi/cookguide/pkg/dialogue"
	"github.com/haivivi/cookguide/pkg/genx"
	"github.com/haivivi/cookguide/pkg/genx/generators"
)

// Dispatcher selects and runs the handler of a transition. Event-bound
// handlers take precedence over the handler of the destination state.
//
// Bind and BindEvent must not be called concurrently with Execute.
type Dispatcher struct {
	states [dialogue.NumStates]Handler
	events [dialogue.NumEvents]Handler
	logger *slog.Logger
}

// NewDispatcher returns a dispatcher with no handlers bound.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{logger: logger}
}

// Config configures New.
type Config struct {
	Policy *Policy

	// Reasoning is the generator pattern of the response handlers.
	Reasoning string

	Mux    *generators.Mux
	Logger *slog.Logger
}

// New binds a PromptHandler to every state and the repeat and playback
// handlers to their events, as configured by cfg.Policy (DefaultPolicy when
// nil).
func New(cfg Config) *Dispatcher {
	p := cfg.Policy
	if p == nil {
		p = DefaultPolicy()
	}
	d := NewDispatcher(cfg.Logger)
	for _, s := range dialogue.States() {
		d.states[s] = &PromptHandler{
			Generator: cfg.Reasoning,
			Mux:       cfg.Mux,
			Policy:    p.State(s),
		}
	}
	d.events[dialogue.EventRepeat] = &RepeatHandler{
		Generator:   cfg.Reasoning,
		Mux:         cfg.Mux,
		Instruction: p.RepeatInstruction,
	}
	d.events[dialogue.EventControlPlayback] = &PlaybackHandler{
		Generator:   cfg.Reasoning,
		Mux:         cfg.Mux,
		Instruction: p.PlaybackInstruction,
	}
	return d
}

// Bind sets the handler of state s. A nil handler unbinds it.
func (d *Dispatcher) Bind(s dialogue.State, h Handler) error {
	if !s.Valid() {
		return fmt.Errorf("assist: cannot bind handler to state %s", s)
	}
	d.states[s] = h
	return nil
}

// BindEvent sets the handler of event e, which then runs whatever the
// destination state. A nil handler unbinds it.
func (d *Dispatcher) BindEvent(e dialogue.Event, h Handler) error {
	if !e.Valid() {
		return fmt.Errorf("assist: cannot bind handler to event %s", e)
	}
	d.events[e] = h
	return nil
}

// Handler returns the handler that runs for a transition into s on e.
func (d *Dispatcher) Handler(s dialogue.State, e dialogue.Event) (Handler, error) {
	if e.Valid() && d.events[e] != nil {
		return d.events[e], nil
	}
	if s.Valid() && d.states[s] != nil {
		return d.states[s], nil
	}
	return nil, fmt.Errorf("%w: state %s", dialogue.ErrNoHandlerBound, s)
}

// Validate reports every state reachable in t that has no handler.
func (d *Dispatcher) Validate(t *dialogue.Table) error {
	var errs []error
	for _, s := range t.Reachable() {
		if d.states[s] == nil {
			errs = append(errs, fmt.Errorf("%w: state %s", dialogue.ErrNoHandlerBound, s))
		}
	}
	return errors.Join(errs...)
}

// Execute runs the handler for a transition into s on e. Handler errors and
// panics are contained: they yield the Failed result and a nil error. The
// only error is ErrNoHandlerBound.
func (d *Dispatcher) Execute(ctx context.Context, s dialogue.State, e dialogue.Event, req Request) (Result, error) {
	h, err := d.Handler(s, e)
	if err != nil {
		return Result{}, err
	}
	req.State, req.Event = s, e
	res, err := d.run(ctx, h, req)
	if err == nil && res.Response == "" {
		err = fmt.Errorf("%w: empty response", dialogue.ErrMalformedOracleResponse)
	}
	if err != nil {
		d.logger.WarnContext(ctx, "assist: handler failed", "state", s, "event", e, "error", err)
		return Failed(err), nil
	}
	if res.VideoSegmentIndex == nil {
		res.VideoSegmentIndex = []int{}
	}
	return res, nil
}

func (d *Dispatcher) run(ctx context.Context, h Handler, req Request) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("assist: handler panic: %v", r)
		}
	}()
	return h.Handle(ctx, req)
}

// ModelContext renders the model context the handler for a transition into
// s on e would send, for handlers that expose it.
func (d *Dispatcher) ModelContext(s dialogue.State, e dialogue.Event, req Request) (genx.ModelContext, error) {
	h, err := d.Handler(s, e)
	if err != nil {
		return nil, err
	}
	r, ok := h.(interface {
		ModelContext(Request) (genx.ModelContext, error)
	})
	if !ok {
		return nil, fmt.Errorf("assist: handler for %s on %s does not expose its context", s, e)
	}
	req.State, req.Event = s, e
	return r.ModelContext(req)
}
