package genx

import (
	"context"
	"encoding/base64"
	"fmt"
)

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
	RoleTool  Role = "tool"
)

var (
	_ Payload = (*Contents)(nil)
	_ Payload = (*ToolCall)(nil)
	_ Payload = (*ToolResult)(nil)

	_ Part = (*Blob)(nil)
	_ Part = (*Text)(nil)
)

type Message struct {
	Role    Role
	Name    string
	Payload Payload
}

type Role string

func (r Role) String() string {
	return string(r)
}

type Payload interface {
	isPayload()
}

// FuncCall is a model's call of a FuncTool. Arguments is the raw JSON the
// model produced.
type FuncCall struct {
	Name      string
	Arguments string

	tool *FuncTool
}

// Invoke runs the tool's invoke function on the call arguments.
func (f *FuncCall) Invoke(ctx context.Context) (any, error) {
	if f.tool == nil {
		return nil, fmt.Errorf("genx: tool not found: name=%s", f.Name)
	}
	if f.tool.Invoke == nil {
		return nil, fmt.Errorf("genx: invoke function not set: name=%s", f.Name)
	}
	return f.tool.Invoke(ctx, f, f.Arguments)
}

type ToolCall struct {
	ID       string
	FuncCall *FuncCall
}

func (*ToolCall) isPayload() {}

type ToolResult struct {
	ID     string
	Result string
}

func (*ToolResult) isPayload() {}

type Contents []Part

func (Contents) isPayload() {}

type Part interface {
	isPart()
}

type Blob struct {
	MIMEType string
	Data     []byte
}

func (*Blob) isPart() {}

// IsImage reports whether the blob carries an image/* MIME type.
func (b *Blob) IsImage() bool {
	return len(b.MIMEType) > 6 && b.MIMEType[:6] == "image/"
}

// DataURL returns the blob as a base64 data URL.
func (b *Blob) DataURL() string {
	return "data:" + b.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(b.Data)
}

type Text string

func (Text) isPart() {}
