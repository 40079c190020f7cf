package genx

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/jsonschema-go/jsonschema"
)

var _ Tool = (*FuncTool)(nil)

type FuncToolOption[ArgType any] interface {
	applyToFuncTool(*FuncTool)
}

// WithSchema overrides the generated schema for every field of type T.
func WithSchema[T any](s *jsonschema.Schema) FuncToolOption[any] {
	return &typeSchemaOption{t: reflect.TypeFor[T](), s: s}
}

type typeSchemaOption struct {
	t reflect.Type
	s *jsonschema.Schema
}

func (o *typeSchemaOption) applyToFuncTool(t *FuncTool) {
	t.typeSchemas[o.t] = o.s
}

// InvokeFunc handles a decoded call. Passing one to NewFuncTool replaces the
// default, which returns a *ArgType.
type InvokeFunc[T any] func(ctx context.Context, call *FuncCall, arg T) (any, error)

func (fn InvokeFunc[T]) applyToFuncTool(t *FuncTool) {
	t.Invoke = func(ctx context.Context, call *FuncCall, arg string) (any, error) {
		var v T
		if err := unmarshalJSON([]byte(arg), &v); err != nil {
			return nil, fmt.Errorf("genx: unmarshal %q: %w", arg, err)
		}
		return fn(ctx, call, v)
	}
}

// FuncTool is a function the model is asked to call. Argument is the JSON
// schema of its single object argument.
type FuncTool struct {
	Name        string
	Description string
	Argument    *jsonschema.Schema

	typeSchemas map[reflect.Type]*jsonschema.Schema

	Invoke InvokeFunc[string]
}

func (tool *FuncTool) NewFuncCall(args string) *FuncCall {
	return &FuncCall{
		Name:      tool.Name,
		Arguments: args,

		tool: tool,
	}
}

func (*FuncTool) isTool() {}

// NewFuncTool derives the argument schema from ArgType's json tags.
func NewFuncTool[ArgType any](name, description string, opts ...FuncToolOption[ArgType]) (*FuncTool, error) {
	tool := &FuncTool{
		Name:        name,
		Description: description,
		typeSchemas: make(map[reflect.Type]*jsonschema.Schema),
	}
	for _, opt := range opts {
		opt.applyToFuncTool(tool)
	}
	arg, err := jsonschema.For[ArgType](&jsonschema.ForOptions{
		TypeSchemas: tool.typeSchemas,
	})
	if err != nil {
		return nil, err
	}
	tool.Argument = arg

	if tool.Invoke == nil {
		tool.Invoke = func(ctx context.Context, _ *FuncCall, arg string) (any, error) {
			var v ArgType
			if err := unmarshalJSON([]byte(arg), &v); err != nil {
				return nil, fmt.Errorf("genx: unmarshal %q: %w", arg, err)
			}
			return &v, nil
		}
	}
	return tool, nil
}

func MustNewFuncTool[ArgType any](name, description string, opts ...FuncToolOption[ArgType]) *FuncTool {
	tool, err := NewFuncTool(name, description, opts...)
	if err != nil {
		panic(err)
	}
	return tool
}
