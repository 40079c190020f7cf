package memlog

import (
	"fmt"
	"slices"

	"github.com/haivivi/cookguide/pkg/dialogue"
)

// Kind tags the payload of an Entry.
type Kind int

const (
	KindConversation Kind = iota
	KindSceneAnalysis
)

func (k Kind) String() string {
	switch k {
	case KindConversation:
		return "conversation"
	case KindSceneAnalysis:
		return "scene_analysis"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	if k != KindConversation && k != KindSceneAnalysis {
		return nil, fmt.Errorf("memlog: unknown kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "conversation":
		*k = KindConversation
	case "scene_analysis":
		*k = KindSceneAnalysis
	default:
		return fmt.Errorf("memlog: unknown kind %q", b)
	}
	return nil
}

// Payload is the content of an Entry. It is implemented by *Interaction and
// *Scene only.
type Payload interface {
	Kind() Kind
	clone() Payload
}

var (
	_ Payload = (*Interaction)(nil)
	_ Payload = (*Scene)(nil)
)

// Interaction is one conversational exchange. Any field may be empty: a
// repeat that found nothing records only the query.
type Interaction struct {
	UserQuery         string `json:"user_query,omitempty" yaml:"user_query,omitempty" msgpack:"user_query,omitempty"`
	AgentResponse     string `json:"agent_response,omitempty" yaml:"agent_response,omitempty" msgpack:"agent_response,omitempty"`
	VideoSegmentIndex []int  `json:"video_segment_index,omitempty" yaml:"video_segment_index,omitempty" msgpack:"video_segment_index,omitempty"`
}

func (*Interaction) Kind() Kind { return KindConversation }

func (p *Interaction) clone() Payload {
	c := *p
	c.VideoSegmentIndex = slices.Clone(p.VideoSegmentIndex)
	return &c
}

// Scene is the result of one scene analysis of the camera image against the
// current video segment.
type Scene struct {
	IsValidCookingStep         bool   `json:"isValidCookingStep" yaml:"isValidCookingStep" msgpack:"valid"`
	IsStepCorrect              bool   `json:"isStepCorrect" yaml:"isStepCorrect" msgpack:"correct"`
	IsCorrectProcedureOrder    bool   `json:"isCorrectProcedureOrder" yaml:"isCorrectProcedureOrder" msgpack:"order"`
	HasProgressedToProcedure   bool   `json:"hasProgressedToProcedure" yaml:"hasProgressedToProcedure" msgpack:"progressed"`
	ProcedureAnalysis          string `json:"procedureAnalysis" yaml:"procedureAnalysis" msgpack:"procedure,omitempty"`
	StepAnalysis               string `json:"stepAnalysis" yaml:"stepAnalysis" msgpack:"step,omitempty"`
	FoodAndKitchenwareAnalysis string `json:"foodAndKitchenwareAnalysis" yaml:"foodAndKitchenwareAnalysis" msgpack:"food,omitempty"`
	AudioAnalysis              string `json:"audioAnalysis" yaml:"audioAnalysis" msgpack:"audio,omitempty"`
	ImprovementInstructions    string `json:"improvementInstructions" yaml:"improvementInstructions" msgpack:"improve,omitempty"`
}

func (*Scene) Kind() Kind { return KindSceneAnalysis }

func (p *Scene) clone() Payload {
	c := *p
	return &c
}

// Event returns the system event the scene calls for. An incorrect step
// outranks a wrong order, which outranks progress; ok is false when the
// scene needs no reaction or the frame shows no cooking step.
func (p *Scene) Event() (e dialogue.Event, ok bool) {
	switch {
	case !p.IsValidCookingStep:
		return dialogue.NotFound, false
	case !p.IsStepCorrect:
		return dialogue.EventStepIncorrect, true
	case !p.IsCorrectProcedureOrder:
		return dialogue.EventWrongOrder, true
	case p.HasProgressedToProcedure:
		return dialogue.EventStepProgressed, true
	}
	return dialogue.NotFound, false
}
