// Package tools provides the tool registry and built-in tools exposed to
// the language model during reasoning.
//
// Tools declare a JSON Schema for their arguments; the registry validates
// arguments against it before execution. Built-in tools follow the
// convention that bad input is reported in the result text (so the model
// can correct itself), while infrastructure failures are returned as
// errors and folded into the tool result by the registry.
package tools

import (
	"context"
	"encoding/json"
)

// Tool is a callable function exposed to the model.
type Tool interface {
	// Name returns the unique tool name.
	Name() string

	// Description tells the model what the tool does.
	Description() string

	// Schema returns the JSON Schema for the tool's arguments.
	Schema() json.RawMessage

	// Execute runs the tool with validated arguments.
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// Func adapts a plain function to the Tool interface.
type Func struct {
	name        string
	description string
	schema      json.RawMessage
	fn          func(ctx context.Context, args map[string]any) (string, error)
}

// NewFunc creates a Tool from a function.
func NewFunc(name, description string, schema json.RawMessage, fn func(ctx context.Context, args map[string]any) (string, error)) *Func {
	return &Func{name: name, description: description, schema: schema, fn: fn}
}

// Name implements Tool.
func (f *Func) Name() string { return f.name }

// Description implements Tool.
func (f *Func) Description() string { return f.description }

// Schema implements Tool.
func (f *Func) Schema() json.RawMessage { return f.schema }

// Execute implements Tool.
func (f *Func) Execute(ctx context.Context, args map[string]any) (string, error) {
	return f.fn(ctx, args)
}

// emptyObjectSchema is used by tools that take no arguments.
var emptyObjectSchema = json.RawMessage(`{"type":"object","properties":{}}`)
