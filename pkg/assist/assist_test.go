package assist

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/haivivi/cookguide/pkg/dialogue"
	"github.com/haivivi/cookguide/pkg/genx"
	"github.com/haivivi/cookguide/pkg/genx/generators"
	"github.com/haivivi/cookguide/pkg/genx/genxtest"
	"github.com/haivivi/cookguide/pkg/knowledge"
	"github.com/haivivi/cookguide/pkg/memlog"
)

const testModel = "test/reasoning"

func testKnowledge(t *testing.T) *knowledge.VideoKnowledge {
	t.Helper()
	vk, err := knowledge.New([]knowledge.Segment{
		{Index: 0, Span: [2]int64{0, 5000}, VideoTranscript: "Slice the garlic thinly.", ProcedureDescription: "Slice garlic"},
		{Index: 1, Span: [2]int64{5000, 12000}, VideoTranscript: "Fry it on low heat until golden.", ProcedureDescription: "Fry garlic"},
		{Index: 2, Span: [2]int64{12000, 20000}, VideoTranscript: "Add the pasta.", ProcedureDescription: "Add pasta"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return vk
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *genxtest.Generator) {
	t.Helper()
	gen := &genxtest.Generator{}
	m := generators.NewMux()
	if err := m.Handle(testModel, gen); err != nil {
		t.Fatal(err)
	}
	return New(Config{Reasoning: testModel, Mux: m}), gen
}

func snapshot(t *testing.T, payloads ...memlog.Payload) memlog.Snapshot {
	t.Helper()
	l := memlog.New(memlog.Config{Session: "test"})
	for _, p := range payloads {
		if _, err := l.Append(context.Background(), p); err != nil {
			t.Fatal(err)
		}
	}
	return l.Snapshot()
}

func TestExecuteHowToFix(t *testing.T) {
	d, gen := newTestDispatcher(t)
	vk := testKnowledge(t)
	gen.Queue("respond", genxtest.Reply{Arguments: map[string]any{
		"response":            "Turn the heat down and stir the garlic.",
		"video_segment_index": []int{1, 7, -2},
	}})

	res, err := d.Execute(context.Background(), dialogue.StateFixingProblem, dialogue.EventAskHowToFix, Request{
		Knowledge: vk,
		Utterance: "The garlic is getting dark, how do I fix it?",
		Image:     []byte{0xff, 0xd8, 0xff},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Failure != nil {
		t.Fatalf("Failure = %v", res.Failure)
	}
	if res.Response != "Turn the heat down and stir the garlic." {
		t.Fatalf("Response = %q", res.Response)
	}
	if !slices.Equal(res.VideoSegmentIndex, []int{1}) {
		t.Fatalf("VideoSegmentIndex = %v, want [1]", res.VideoSegmentIndex)
	}

	prompt := gen.Calls("respond")[0].Prompt()
	for _, want := range []string{"how to fix it", "Fry it on low heat", "how to fix", "[image/jpeg, 3 bytes]"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt misses %q:\n%s", want, prompt)
		}
	}
}

func TestExecuteMemoryWindow(t *testing.T) {
	d, gen := newTestDispatcher(t)
	var payloads []memlog.Payload
	for i := range 8 {
		payloads = append(payloads, &memlog.Interaction{
			UserQuery:     "question " + string(rune('A'+i)),
			AgentResponse: "answer",
		})
	}
	mem := snapshot(t, payloads...)

	tests := []struct {
		state   dialogue.State
		present []string
		absent  []string
	}{
		{dialogue.StateAnnouncingProgress, []string{"question F", "question H"}, []string{"question E"}},
		{dialogue.StateComparing, []string{"question D", "question H"}, []string{"question C"}},
		{dialogue.StateAnsweringQuestion, []string{"question A", "question H"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			gen.Queue("respond", genxtest.Reply{Arguments: `{"response":"ok","video_segment_index":[]}`})
			if _, err := d.Execute(context.Background(), tt.state, dialogue.EventAskQuestion, Request{Memory: mem, Utterance: "hi"}); err != nil {
				t.Fatal(err)
			}
			calls := gen.Calls("respond")
			prompt := calls[len(calls)-1].Prompt()
			for _, s := range tt.present {
				if !strings.Contains(prompt, s) {
					t.Errorf("prompt misses %q", s)
				}
			}
			for _, s := range tt.absent {
				if strings.Contains(prompt, s) {
					t.Errorf("prompt contains %q outside the window", s)
				}
			}
		})
	}
}

func TestExecuteFailureContainment(t *testing.T) {
	tests := []struct {
		name    string
		reply   genxtest.Reply
		wantErr error
	}{
		{"oracle error", genxtest.Reply{Err: errors.New("timeout")}, dialogue.ErrOracleCallFailed},
		{"no call", genxtest.Reply{}, dialogue.ErrOracleCallFailed},
		{"empty text", genxtest.Reply{Arguments: `{"response":"   ","video_segment_index":[0]}`}, dialogue.ErrMalformedOracleResponse},
		{"bad json", genxtest.Reply{Arguments: `not json at all`}, dialogue.ErrMalformedOracleResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, gen := newTestDispatcher(t)
			gen.Queue("respond", tt.reply)
			res, err := d.Execute(context.Background(), dialogue.StateAnsweringQuestion, dialogue.EventAskQuestion, Request{Utterance: "why?"})
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if res.Response != FailedResponse || len(res.VideoSegmentIndex) != 0 || res.VideoSegmentIndex == nil {
				t.Fatalf("result = %+v, want failure sentinel", res)
			}
			if !errors.Is(res.Failure, tt.wantErr) {
				t.Fatalf("Failure = %v, want %v", res.Failure, tt.wantErr)
			}
		})
	}
}

func TestExecuteKeepsTextWithBadIndices(t *testing.T) {
	tests := []struct {
		name    string
		indices string
		want    []int
	}{
		{"string index", `["1"]`, []int{}},
		{"fractional index", `[1.5]`, []int{}},
		{"mixed", `["0", 1.5, 2, null, 2.0, 9]`, []int{2}},
		{"not a list", `"1"`, []int{}},
		{"missing", ``, []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, gen := newTestDispatcher(t)
			args := `{"response":"Use low heat."}`
			if tt.indices != "" {
				args = `{"response":"Use low heat.","video_segment_index":` + tt.indices + `}`
			}
			gen.Queue("respond", genxtest.Reply{Arguments: args})
			res, err := d.Execute(context.Background(), dialogue.StateAnsweringQuestion, dialogue.EventAskQuestion,
				Request{Utterance: "why?", Knowledge: testKnowledge(t)})
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if res.Failure != nil || res.Response != "Use low heat." {
				t.Fatalf("result = %+v, want the text kept", res)
			}
			if res.VideoSegmentIndex == nil || !slices.Equal(res.VideoSegmentIndex, tt.want) {
				t.Fatalf("indices = %v, want %v", res.VideoSegmentIndex, tt.want)
			}
		})
	}
}

func TestExecuteRecoversPanic(t *testing.T) {
	d := NewDispatcher(nil)
	if err := d.Bind(dialogue.StateComparing, HandlerFunc(func(context.Context, Request) (Result, error) {
		panic("boom")
	})); err != nil {
		t.Fatal(err)
	}
	res, err := d.Execute(context.Background(), dialogue.StateComparing, dialogue.EventTimeout, Request{})
	if err != nil || res.Response != FailedResponse || res.Failure == nil {
		t.Fatalf("Execute() = %+v, %v", res, err)
	}
}

func TestExecuteNoHandlerBound(t *testing.T) {
	d := NewDispatcher(nil)
	_, err := d.Execute(context.Background(), dialogue.StateComparing, dialogue.EventAgree, Request{})
	if !errors.Is(err, dialogue.ErrNoHandlerBound) {
		t.Fatalf("error = %v, want ErrNoHandlerBound", err)
	}
	if err := d.Validate(dialogue.DefaultTable()); !errors.Is(err, dialogue.ErrNoHandlerBound) {
		t.Fatalf("Validate() = %v", err)
	}
	full, _ := newTestDispatcher(t)
	if err := full.Validate(dialogue.DefaultTable()); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	if err := d.Bind(dialogue.StateAwaitingConnection, HandlerFunc(nil)); err == nil {
		t.Fatal("binding the sentinel should fail")
	}
}

func TestEventHandlerPrecedence(t *testing.T) {
	d, _ := newTestDispatcher(t)
	called := false
	if err := d.BindEvent(dialogue.EventAgree, HandlerFunc(func(_ context.Context, req Request) (Result, error) {
		called = true
		if req.State != dialogue.StateComparing || req.Event != dialogue.EventAgree {
			t.Errorf("request state/event = %s/%s", req.State, req.Event)
		}
		return Result{Response: "noted"}, nil
	})); err != nil {
		t.Fatal(err)
	}
	res, err := d.Execute(context.Background(), dialogue.StateComparing, dialogue.EventAgree, Request{})
	if err != nil || !called || res.Response != "noted" || res.VideoSegmentIndex == nil {
		t.Fatalf("Execute() = %+v, %v, called = %v", res, err, called)
	}
}

func TestRepeat(t *testing.T) {
	t.Run("nothing to repeat", func(t *testing.T) {
		d, gen := newTestDispatcher(t)
		mem := snapshot(t, &memlog.Scene{IsStepCorrect: true, IsCorrectProcedureOrder: true})
		res, err := d.Execute(context.Background(), dialogue.StateComparing, dialogue.EventRepeat, Request{Memory: mem, Utterance: "say that again"})
		if err != nil {
			t.Fatal(err)
		}
		if !res.NothingToRepeat || res.Failure != nil || res.Response != NothingToRepeatResponse {
			t.Fatalf("result = %+v", res)
		}
		if _, ok := res.Interaction("say that again"); ok {
			t.Fatal("an empty repeat must not be remembered")
		}
		if n := len(gen.Calls()); n != 0 {
			t.Fatalf("oracle called %d times", n)
		}
	})

	t.Run("replays stored response", func(t *testing.T) {
		d, gen := newTestDispatcher(t)
		vk := testKnowledge(t)
		mem := snapshot(t,
			&memlog.Interaction{UserQuery: "how thin?", AgentResponse: "About a millimeter.", VideoSegmentIndex: []int{0}},
			&memlog.Scene{IsStepCorrect: true, IsCorrectProcedureOrder: true},
			&memlog.Interaction{UserQuery: "what heat?", AgentResponse: "Low heat.", VideoSegmentIndex: []int{1, 9}},
		)
		gen.Queue("select_interaction", genxtest.Reply{Arguments: `{"index": 0}`})
		res, err := d.Execute(context.Background(), dialogue.StateComparing, dialogue.EventRepeat, Request{Knowledge: vk, Memory: mem, Utterance: "what did you say about thickness?"})
		if err != nil {
			t.Fatal(err)
		}
		if res.Response != "About a millimeter." || !slices.Equal(res.VideoSegmentIndex, []int{0}) {
			t.Fatalf("result = %+v", res)
		}
		if res.Repeated == nil || *res.Repeated != 0 {
			t.Fatalf("Repeated = %v", res.Repeated)
		}
		prompt := gen.Calls("select_interaction")[0].Prompt()
		if !strings.Contains(prompt, "Low heat.") || strings.Contains(prompt, "isStepCorrect") {
			t.Fatalf("candidates prompt:\n%s", prompt)
		}
	})

	t.Run("unknown index fails", func(t *testing.T) {
		d, gen := newTestDispatcher(t)
		mem := snapshot(t, &memlog.Interaction{UserQuery: "q", AgentResponse: "a"})
		gen.Queue("select_interaction", genxtest.Reply{Arguments: `{"index": 4}`})
		res, err := d.Execute(context.Background(), dialogue.StateComparing, dialogue.EventRepeat, Request{Memory: mem})
		if err != nil || !errors.Is(res.Failure, dialogue.ErrMalformedOracleResponse) {
			t.Fatalf("Execute() = %+v, %v", res, err)
		}
	})
}

func TestPlayback(t *testing.T) {
	vk := testKnowledge(t)
	tests := []struct {
		args    string
		action  PlaybackAction
		segment *int
		failed  bool
	}{
		{`{"action":"pause","segment_index":-1}`, ActionPause, nil, false},
		{`{"action":"Replay","segment_index":2}`, ActionReplay, ptr(2), false},
		{`{"action":"play","segment_index":42}`, ActionPlay, nil, false},
		{`{"action":"rewind","segment_index":0}`, "", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.args, func(t *testing.T) {
			d, gen := newTestDispatcher(t)
			gen.Queue("control_playback", genxtest.Reply{Arguments: tt.args})
			res, err := d.Execute(context.Background(), dialogue.StateAnsweringQuestion, dialogue.EventControlPlayback, Request{Knowledge: vk, Utterance: "video"})
			if err != nil {
				t.Fatal(err)
			}
			if tt.failed {
				if res.Failure == nil {
					t.Fatalf("expected failure, got %+v", res)
				}
				return
			}
			if res.Playback == nil || res.Playback.Action != tt.action {
				t.Fatalf("Playback = %+v", res.Playback)
			}
			if (tt.segment == nil) != (res.Playback.SegmentIndex == nil) ||
				(tt.segment != nil && *tt.segment != *res.Playback.SegmentIndex) {
				t.Fatalf("SegmentIndex = %v, want %v", res.Playback.SegmentIndex, tt.segment)
			}
			if _, ok := res.Interaction("video"); ok {
				t.Fatal("playback commands must not be remembered")
			}
		})
	}
}

func TestSceneAnalyzer(t *testing.T) {
	gen := &genxtest.Generator{}
	m := generators.NewMux()
	if err := m.Handle("test/vision", gen); err != nil {
		t.Fatal(err)
	}
	a := &SceneAnalyzer{Generator: "test/vision", Mux: m, Instruction: sceneInstruction, Window: 5}
	ctx := context.Background()

	if _, err := a.Analyze(ctx, Request{}); !errors.Is(err, ErrNoImage) {
		t.Fatalf("Analyze() without image = %v", err)
	}

	gen.Queue("analyze_scene", genxtest.Reply{Arguments: memlog.Scene{
		IsValidCookingStep:      true,
		IsStepCorrect:           false,
		IsCorrectProcedureOrder: true,
		ImprovementInstructions: "reduce heat",
	}})
	scene, err := a.Analyze(ctx, Request{Knowledge: testKnowledge(t), Image: []byte("jpeg")})
	if err != nil {
		t.Fatal(err)
	}
	if scene.IsStepCorrect || scene.ImprovementInstructions != "reduce heat" {
		t.Fatalf("scene = %+v", scene)
	}
	if e, ok := scene.Event(); !ok || e != dialogue.EventStepIncorrect {
		t.Fatalf("Event() = %s, %v", e, ok)
	}
	if p := gen.Calls()[0].Prompt(); !strings.Contains(p, "[scene_tick]") || !strings.Contains(p, "[image/jpeg, 4 bytes]") {
		t.Fatalf("prompt:\n%s", p)
	}

	gen.Queue("analyze_scene", genxtest.Reply{Arguments: `{}`})
	if _, err := a.Analyze(ctx, Request{Image: []byte("jpeg")}); !errors.Is(err, dialogue.ErrMalformedOracleResponse) {
		t.Fatalf("Analyze() of an empty scene = %v", err)
	}

	gen.Queue("analyze_scene", genxtest.Reply{Err: errors.New("quota")})
	if _, err := a.Analyze(ctx, Request{Image: []byte("jpeg")}); !errors.Is(err, dialogue.ErrOracleCallFailed) {
		t.Fatalf("Analyze() error = %v", err)
	}
}

func TestDispatcherModelContext(t *testing.T) {
	d, _ := newTestDispatcher(t)
	mctx, err := d.ModelContext(dialogue.StateComparing, dialogue.EventTimeout, Request{Image: []byte("x")})
	if err != nil {
		t.Fatal(err)
	}
	s, err := genx.InspectModelContext(mctx)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(s, "[timeout]") || !strings.Contains(s, "## Prompt (instruction)") {
		t.Fatalf("context:\n%s", s)
	}
	if _, err := d.ModelContext(dialogue.StateComparing, dialogue.EventRepeat, Request{}); err == nil {
		t.Fatal("repeat handler should not expose a context")
	}
}

func ptr[T any](v T) *T { return &v }
