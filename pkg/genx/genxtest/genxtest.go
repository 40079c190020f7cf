// Package genxtest provides a scripted genx.Generator for tests.
package genxtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/haivivi/cookguide/pkg/genx"
)

var _ genx.Generator = (*Generator)(nil)

// Reply is the answer to one Invoke. Arguments are sent as-is when they are a
// string and JSON-encoded otherwise.
type Reply struct {
	Arguments any
	Err       error
}

// Call is a recorded Invoke.
type Call struct {
	Pattern string
	Tool    string
	Context genx.ModelContext
}

// Prompt returns the rendered model context of the call.
func (c Call) Prompt() string {
	s, _ := genx.InspectModelContext(c.Context)
	return s
}

// Generator answers each tool from its own queue of replies, falling back
// to Func when the queue is empty. It records every call.
type Generator struct {
	// Func answers calls that have no queued reply.
	Func func(tool string, mctx genx.ModelContext) Reply

	mu      sync.Mutex
	replies map[string][]Reply
	calls   []Call
}

// Queue appends replies for tool.
func (g *Generator) Queue(tool string, replies ...Reply) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.replies == nil {
		g.replies = make(map[string][]Reply)
	}
	g.replies[tool] = append(g.replies[tool], replies...)
}

// Calls returns the recorded calls, optionally filtered by tool name.
func (g *Generator) Calls(tool ...string) []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []Call
	for _, c := range g.calls {
		if len(tool) == 0 || c.Tool == tool[0] {
			out = append(out, c)
		}
	}
	return out
}

func (g *Generator) Invoke(ctx context.Context, pattern string, mctx genx.ModelContext, fn *genx.FuncTool) (genx.Usage, *genx.FuncCall, error) {
	if err := ctx.Err(); err != nil {
		return genx.Usage{}, nil, err
	}
	g.mu.Lock()
	g.calls = append(g.calls, Call{Pattern: pattern, Tool: fn.Name, Context: mctx})
	var (
		r  Reply
		ok bool
	)
	if q := g.replies[fn.Name]; len(q) > 0 {
		r, ok = q[0], true
		g.replies[fn.Name] = q[1:]
	}
	f := g.Func
	g.mu.Unlock()

	if !ok {
		if f == nil {
			return genx.Usage{}, nil, fmt.Errorf("genxtest: no reply for %s", fn.Name)
		}
		r = f(fn.Name, mctx)
	}
	if r.Err != nil {
		return genx.Usage{}, nil, r.Err
	}
	var args string
	switch v := r.Arguments.(type) {
	case string:
		args = v
	case nil:
		return genx.Usage{}, nil, genx.ErrNoCall
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return genx.Usage{}, nil, err
		}
		args = string(b)
	}
	return genx.Usage{}, fn.NewFuncCall(args), nil
}
