package genx

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"text/template"

	"github.com/goccy/go-yaml"

	_ "embed"
)

var (
	//go:embed inspect_model_context.gotmpl
	inspectModelContextTplContent string

	inspectModelContextTpl = template.Must(
		template.New("inspectModelContext").
			Funcs(template.FuncMap{
				"inspectMessage": InspectMessage,
				"inspectTool":    InspectTool,
				"trim":           strings.Trim,
			}).
			Parse(inspectModelContextTplContent))
)

type ModelParams struct {
	MaxTokens        int     `json:"max_tokens,omitzero" yaml:"max_tokens,omitempty"`
	FrequencyPenalty float32 `json:"frequency_penalty,omitzero" yaml:"frequency_penalty,omitempty"`
	Temperature      float32 `json:"temperature,omitzero" yaml:"temperature,omitempty"`
	TopP             float32 `json:"top_p,omitzero" yaml:"top_p,omitempty"`
	PresencePenalty  float32 `json:"presence_penalty,omitzero" yaml:"presence_penalty,omitempty"`
	TopK             float32 `json:"top_k,omitzero" yaml:"top_k,omitempty"`
}

// Prompt is a named block of system instruction text.
type Prompt struct {
	Name string
	Text string
}

type Tool interface {
	isTool()
}

// ModelContext is everything a generator sees for one call.
type ModelContext interface {
	Prompts() iter.Seq[*Prompt]
	Messages() iter.Seq[*Message]
	Tools() iter.Seq[Tool]

	Params() *ModelParams
}

// Generator is an external model that answers a ModelContext by calling the
// given function tool exactly once.
//
// pattern is the name the generator was registered under; implementations
// that serve a single model ignore it.
type Generator interface {
	Invoke(ctx context.Context, pattern string, mctx ModelContext, fn *FuncTool) (Usage, *FuncCall, error)
}

type Usage struct {
	PromptTokenCount        int64
	CachedContentTokenCount int64
	GeneratedTokenCount     int64
}

func (u Usage) String() string {
	b, _ := yaml.Marshal(map[string]map[string]any{
		"Usage": {
			"Prompt":    u.PromptTokenCount,
			"Cached":    u.CachedContentTokenCount,
			"Generated": u.GeneratedTokenCount,
		},
	})
	return string(b)
}

func InspectTool(tool Tool) string {
	switch t := tool.(type) {
	case *FuncTool:
		name := strings.Trim(fmt.Sprintf("%q", t.Name), `"`)
		return fmt.Sprintf("### %s\n%s", name, t.Description)
	}
	return ""
}

func InspectMessage(msg *Message) string {
	if msg == nil {
		return ""
	}
	var sb strings.Builder

	fmt.Fprintf(&sb, "### %s", msg.Role)
	if msg.Name != "" {
		fmt.Fprintf(&sb, " (%s)", strings.Trim(fmt.Sprintf("%q", msg.Name), `"`))
	}
	sb.WriteByte('\n')
	switch p := msg.Payload.(type) {
	case Contents:
		for _, part := range p {
			switch pt := part.(type) {
			case Text:
				fmt.Fprintln(&sb, pt)
			case *Blob:
				if pt != nil {
					fmt.Fprintf(&sb, "[%s, %d bytes]\n", pt.MIMEType, len(pt.Data))
				}
			}
		}
	case *ToolCall:
		fmt.Fprintf(&sb, "[%s]\n", p.ID)
		if p.FuncCall != nil {
			fmt.Fprintf(&sb, "%s(%s)\n", p.FuncCall.Name, p.FuncCall.Arguments)
		}
	case *ToolResult:
		fmt.Fprintf(&sb, "[%s]\n", p.ID)
		fmt.Fprintln(&sb, p.Result)
	}
	return sb.String()
}

// InspectModelContext renders mctx as markdown, for logs and the CLI.
func InspectModelContext(mctx ModelContext) (string, error) {
	var sb strings.Builder
	if err := inspectModelContextTpl.Execute(&sb, mctx); err != nil {
		return "", err
	}
	return sb.String(), nil
}
