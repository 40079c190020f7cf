package genxtest

import (
	"context"
	"errors"
	"testing"

	"github.com/haivivi/cookguide/pkg/genx"
)

type arg struct {
	Text string `json:"text"`
}

var tool = genx.MustNewFuncTool[arg]("echo", "Echo text.")

func TestGeneratorQueueThenFunc(t *testing.T) {
	g := &Generator{Func: func(string, genx.ModelContext) Reply {
		return Reply{Arguments: arg{Text: "fallback"}}
	}}
	boom := errors.New("boom")
	g.Queue("echo", Reply{Arguments: `{"text":"first"}`}, Reply{Err: boom})

	var mcb genx.ModelContextBuilder
	mcb.UserText("user", "hello")
	ctx := context.Background()

	_, call, err := g.Invoke(ctx, "m", mcb.Build(), tool)
	if err != nil || call.Arguments != `{"text":"first"}` {
		t.Fatalf("first = %v, %v", call, err)
	}
	if _, _, err := g.Invoke(ctx, "m", mcb.Build(), tool); !errors.Is(err, boom) {
		t.Fatalf("second error = %v", err)
	}
	_, call, err = g.Invoke(ctx, "m", mcb.Build(), tool)
	if err != nil {
		t.Fatal(err)
	}
	got, err := genx.Decode[arg](call)
	if err != nil || got.Text != "fallback" {
		t.Fatalf("third = %+v, %v", got, err)
	}
	calls := g.Calls("echo")
	if len(calls) != 3 {
		t.Fatalf("len(Calls) = %d", len(calls))
	}
	if p := calls[0].Prompt(); p == "" {
		t.Fatal("empty prompt")
	}
}

func TestGeneratorNoReply(t *testing.T) {
	g := &Generator{}
	if _, _, err := g.Invoke(context.Background(), "m", (&genx.ModelContextBuilder{}).Build(), tool); err == nil {
		t.Fatal("expected error")
	}
	g.Queue("echo", Reply{})
	if _, _, err := g.Invoke(context.Background(), "m", (&genx.ModelContextBuilder{}).Build(), tool); !errors.Is(err, genx.ErrNoCall) {
		t.Fatalf("error = %v, want ErrNoCall", err)
	}
}
