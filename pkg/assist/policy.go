package assist

import (
	"errors"
	"fmt"

	"github.com/haivivi/cookguide/pkg/dialogue"
)

// StatePolicy configures the handler of one state.
type StatePolicy struct {
	Instruction string `json:"instruction" yaml:"instruction"`

	// MemoryWindow is the number of most recent memory entries shown to the
	// model. Zero shows the whole log.
	MemoryWindow int `json:"memory_window" yaml:"memory_window"`

	// UseImage attaches the latest camera frame.
	UseImage bool `json:"use_image" yaml:"use_image"`
}

// EventPolicy overrides how an event is described to the classifier.
type EventPolicy struct {
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Examples    []string `json:"examples,omitempty" yaml:"examples,omitempty"`
}

// Policy is the prompt configuration of the dialogue engine.
type Policy struct {
	States [dialogue.NumStates]StatePolicy
	Events map[dialogue.Event]EventPolicy

	RepeatInstruction   string
	PlaybackInstruction string
	SceneInstruction    string

	// SceneWindow is the memory window of the scene analysis.
	SceneWindow int

	// Transitions replaces dialogue.DefaultTransitions when non-empty.
	Transitions []dialogue.Transition
}

// DefaultPolicy returns the built-in policy.
func DefaultPolicy() *Policy {
	p := &Policy{
		Events:              make(map[dialogue.Event]EventPolicy),
		RepeatInstruction:   repeatInstruction,
		PlaybackInstruction: playbackInstruction,
		SceneInstruction:    sceneInstruction,
		SceneWindow:         5,
	}
	p.States = defaultStates
	return p
}

// Table builds the transition table of the policy.
func (p *Policy) Table() (*dialogue.Table, error) {
	if len(p.Transitions) == 0 {
		return dialogue.DefaultTable(), nil
	}
	return dialogue.NewTable(p.Transitions)
}

// State returns the policy of s.
func (p *Policy) State(s dialogue.State) StatePolicy {
	if !s.Valid() {
		return StatePolicy{}
	}
	return p.States[s]
}

// EventInfo returns the registry entry of e with the policy's overrides
// applied.
func (p *Policy) EventInfo(e dialogue.Event) dialogue.EventInfo {
	info := e.Info()
	if ep, ok := p.Events[e]; ok {
		if ep.Description != "" {
			info.Description = ep.Description
		}
		if len(ep.Examples) > 0 {
			info.Examples = ep.Examples
		}
	}
	return info
}

// Validate reports empty instructions, negative windows and an invalid
// transition list.
func (p *Policy) Validate() error {
	var errs []error
	for _, s := range dialogue.States() {
		sp := p.States[s]
		if sp.Instruction == "" {
			errs = append(errs, fmt.Errorf("assist: state %s: empty instruction", s))
		}
		if sp.MemoryWindow < 0 {
			errs = append(errs, fmt.Errorf("assist: state %s: negative memory window %d", s, sp.MemoryWindow))
		}
	}
	if p.RepeatInstruction == "" || p.PlaybackInstruction == "" || p.SceneInstruction == "" {
		errs = append(errs, errors.New("assist: repeat, playback and scene instructions are required"))
	}
	if p.SceneWindow < 0 {
		errs = append(errs, fmt.Errorf("assist: negative scene window %d", p.SceneWindow))
	}
	for e := range p.Events {
		if !e.Valid() {
			errs = append(errs, fmt.Errorf("assist: unknown event %d", int(e)))
		}
	}
	if _, err := p.Table(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// PolicyFile is the YAML/JSON form of a Policy. Every field is optional and
// overrides the default policy. States and events are keyed by name.
type PolicyFile struct {
	States              map[string]StatePatch  `json:"states,omitempty" yaml:"states,omitempty"`
	Events              map[string]EventPolicy `json:"events,omitempty" yaml:"events,omitempty"`
	RepeatInstruction   string                 `json:"repeat_instruction,omitempty" yaml:"repeat_instruction,omitempty"`
	PlaybackInstruction string                 `json:"playback_instruction,omitempty" yaml:"playback_instruction,omitempty"`
	SceneInstruction    string                 `json:"scene_instruction,omitempty" yaml:"scene_instruction,omitempty"`
	SceneWindow         *int                   `json:"scene_window,omitempty" yaml:"scene_window,omitempty"`
	Transitions         []dialogue.Transition  `json:"transitions,omitempty" yaml:"transitions,omitempty"`
}

// StatePatch overrides the fields of a StatePolicy that are set.
type StatePatch struct {
	Instruction  *string `json:"instruction,omitempty" yaml:"instruction,omitempty"`
	MemoryWindow *int    `json:"memory_window,omitempty" yaml:"memory_window,omitempty"`
	UseImage     *bool   `json:"use_image,omitempty" yaml:"use_image,omitempty"`
}

// Policy applies the file on top of DefaultPolicy and validates the result.
func (f *PolicyFile) Policy() (*Policy, error) {
	p := DefaultPolicy()
	var errs []error
	for name, patch := range f.States {
		s, err := dialogue.ParseState(name)
		if err != nil || !s.Valid() {
			errs = append(errs, fmt.Errorf("assist: policy: unknown state %q", name))
			continue
		}
		sp := &p.States[s]
		if patch.Instruction != nil {
			sp.Instruction = *patch.Instruction
		}
		if patch.MemoryWindow != nil {
			sp.MemoryWindow = *patch.MemoryWindow
		}
		if patch.UseImage != nil {
			sp.UseImage = *patch.UseImage
		}
	}
	for name, ep := range f.Events {
		e, err := dialogue.ParseEvent(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("assist: policy: unknown event %q", name))
			continue
		}
		p.Events[e] = ep
	}
	if f.RepeatInstruction != "" {
		p.RepeatInstruction = f.RepeatInstruction
	}
	if f.PlaybackInstruction != "" {
		p.PlaybackInstruction = f.PlaybackInstruction
	}
	if f.SceneInstruction != "" {
		p.SceneInstruction = f.SceneInstruction
	}
	if f.SceneWindow != nil {
		p.SceneWindow = *f.SceneWindow
	}
	p.Transitions = f.Transitions
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// File returns the complete file form of p, for dumping.
func (p *Policy) File() *PolicyFile {
	f := &PolicyFile{
		States:              make(map[string]StatePatch, dialogue.NumStates),
		Events:              make(map[string]EventPolicy, len(p.Events)),
		RepeatInstruction:   p.RepeatInstruction,
		PlaybackInstruction: p.PlaybackInstruction,
		SceneInstruction:    p.SceneInstruction,
		SceneWindow:         &p.SceneWindow,
		Transitions:         p.Transitions,
	}
	for _, s := range dialogue.States() {
		sp := p.States[s]
		f.States[s.String()] = StatePatch{
			Instruction:  &sp.Instruction,
			MemoryWindow: &sp.MemoryWindow,
			UseImage:     &sp.UseImage,
		}
	}
	for e, ep := range p.Events {
		f.Events[e.String()] = ep
	}
	if len(f.Transitions) == 0 {
		f.Transitions = dialogue.DefaultTransitions()
	}
	return f
}
