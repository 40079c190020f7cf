package genx

import (
	"iter"
	"slices"

	"github.com/goccy/go-yaml"
)

var _ ModelContext = (*modelContext)(nil)

// ModelContextBuilder accumulates prompts, messages and tools. Consecutive
// prompts with the same name are merged, as are consecutive content messages
// from the same role and name.
type ModelContextBuilder struct {
	Prompts  []*Prompt
	Messages []*Message
	Tools    []Tool

	Params *ModelParams
}

func (mcb *ModelContextBuilder) Build() ModelContext {
	return &modelContext{
		prompts:  slices.Clone(mcb.Prompts),
		messages: slices.Clone(mcb.Messages),
		tools:    slices.Clone(mcb.Tools),
		params:   mcb.Params,
	}
}

func (mcb *ModelContextBuilder) AddPrompt(prompt *Prompt) {
	if n := len(mcb.Prompts); n > 0 && mcb.Prompts[n-1].Name == prompt.Name {
		p := mcb.Prompts[n-1]
		if p.Text != "" {
			p.Text += "\n" + prompt.Text
		} else {
			p.Text = prompt.Text
		}
		return
	}
	mcb.Prompts = append(mcb.Prompts, prompt)
}

func (mcb *ModelContextBuilder) AddMessage(msg *Message) {
	if n := len(mcb.Messages); n > 0 {
		m := mcb.Messages[n-1]
		if p, ok := m.Payload.(Contents); ok && msg.Role == m.Role && msg.Name == m.Name {
			if more, ok := msg.Payload.(Contents); ok {
				m.Payload = append(p, more...)
				return
			}
		}
	}
	mcb.Messages = append(mcb.Messages, msg)
}

func (mcb *ModelContextBuilder) AddTool(tool Tool) {
	mcb.Tools = append(mcb.Tools, tool)
}

// Prompt adds {key: value} rendered as YAML under the prompt name.
func (mcb *ModelContextBuilder) Prompt(name, key string, value any) error {
	b, err := yaml.Marshal(map[string]any{key: value})
	if err != nil {
		return err
	}
	mcb.AddPrompt(&Prompt{Name: name, Text: string(b)})
	return nil
}

func (mcb *ModelContextBuilder) PromptText(name, text string) {
	mcb.AddPrompt(&Prompt{Name: name, Text: text})
}

func (mcb *ModelContextBuilder) UserText(name, text string) {
	mcb.AddMessage(&Message{
		Role:    RoleUser,
		Name:    name,
		Payload: Contents{Text(text)},
	})
}

func (mcb *ModelContextBuilder) UserBlob(name string, mimeType string, data []byte) {
	mcb.AddMessage(&Message{
		Role:    RoleUser,
		Name:    name,
		Payload: Contents{&Blob{MIMEType: mimeType, Data: data}},
	})
}

func (mcb *ModelContextBuilder) ModelText(name, text string) {
	mcb.AddMessage(&Message{
		Role:    RoleModel,
		Name:    name,
		Payload: Contents{Text(text)},
	})
}

type modelContext struct {
	prompts  []*Prompt
	messages []*Message
	tools    []Tool

	params *ModelParams
}

func (mctx *modelContext) Prompts() iter.Seq[*Prompt] {
	return slices.Values(mctx.prompts)
}

func (mctx *modelContext) Messages() iter.Seq[*Message] {
	return slices.Values(mctx.messages)
}

func (mctx *modelContext) Tools() iter.Seq[Tool] {
	return slices.Values(mctx.tools)
}

func (mctx *modelContext) Params() *ModelParams {
	return mctx.params
}
