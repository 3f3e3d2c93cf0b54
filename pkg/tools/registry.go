package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/sourcegraph/conc/pool"

	"github.com/kwhite/agentgraph/pkg/agentgraph/observability"
	"github.com/kwhite/agentgraph/pkg/agentgraph/registry"
	"github.com/kwhite/agentgraph/pkg/llm"
)

// Kind classifies how a tool is provided.
type Kind string

// Tool kinds.
const (
	KindBuiltin Kind = "builtin"
	KindMCP     Kind = "mcp" // Model Context Protocol servers
	KindA2A     Kind = "a2a" // agent-to-agent delegation
)

// NotFoundError is returned when a tool name does not resolve.
type NotFoundError struct {
	Tool string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tool '%s' not found", e.Tool)
}

// entry is a registered tool with its compiled argument schema.
type entry struct {
	tool   Tool
	kind   Kind
	schema *jsonschema.Schema
}

// Registry holds the tools available to the model and executes them.
//
// Remote tools (MCP, A2A) are registered separately from builtins and only
// surface when the corresponding kind is enabled.
type Registry struct {
	entries *registry.Registry[string, *entry]
	order   []string

	enableMCP bool
	enableA2A bool

	logger  *slog.Logger
	metrics observability.MetricsRecorder
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithMCP enables tools registered under KindMCP.
func WithMCP(enabled bool) RegistryOption {
	return func(r *Registry) { r.enableMCP = enabled }
}

// WithA2A enables tools registered under KindA2A.
func WithA2A(enabled bool) RegistryOption {
	return func(r *Registry) { r.enableA2A = enabled }
}

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

// WithMetrics sets the metrics recorder for tool executions.
func WithMetrics(m observability.MetricsRecorder) RegistryOption {
	return func(r *Registry) { r.metrics = m }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		entries: registry.New[string, *entry](),
		logger:  slog.Default(),
		metrics: observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewDefaultRegistry creates a registry preloaded with the built-in tools:
// calculator, web_search, wikipedia_search, and get_current_time.
func NewDefaultRegistry(opts ...RegistryOption) (*Registry, error) {
	r := NewRegistry(opts...)
	for _, t := range []Tool{
		NewCalculator(),
		NewWebSearch(nil),
		NewWikipediaSearch(nil),
		NewClock(),
	} {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a built-in tool.
// Registering a name twice replaces the earlier tool.
func (r *Registry) Register(tool Tool) error {
	return r.register(tool, KindBuiltin)
}

// RegisterRemote adds a remote tool under the given kind.
func (r *Registry) RegisterRemote(tool Tool, kind Kind) error {
	if kind != KindMCP && kind != KindA2A {
		return fmt.Errorf("tools: invalid remote kind %q", kind)
	}
	return r.register(tool, kind)
}

func (r *Registry) register(tool Tool, kind Kind) error {
	schema, err := compileSchema(tool.Name(), tool.Schema())
	if err != nil {
		return fmt.Errorf("tools: compile schema for %s: %w", tool.Name(), err)
	}
	if !r.entries.Has(tool.Name()) {
		r.order = append(r.order, tool.Name())
	}
	r.entries.Register(tool.Name(), &entry{tool: tool, kind: kind, schema: schema})
	return nil
}

// enabled reports whether a tool of the given kind is currently visible.
func (r *Registry) enabled(kind Kind) bool {
	switch kind {
	case KindMCP:
		return r.enableMCP
	case KindA2A:
		return r.enableA2A
	default:
		return true
	}
}

// List returns the names of all visible tools in registration order.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.order))
	for _, name := range r.order {
		if e, ok := r.entries.Get(name); ok && r.enabled(e.kind) {
			names = append(names, name)
		}
	}
	return names
}

// Specs returns tool definitions for all visible tools, in registration
// order, ready to pass to the model.
func (r *Registry) Specs() []llm.Tool {
	specs := make([]llm.Tool, 0, len(r.order))
	for _, name := range r.order {
		e, ok := r.entries.Get(name)
		if !ok || !r.enabled(e.kind) {
			continue
		}
		specs = append(specs, llm.Tool{
			Name:        e.tool.Name(),
			Description: e.tool.Description(),
			Parameters:  e.tool.Schema(),
		})
	}
	return specs
}

// Execute runs a tool by name with the given arguments.
// Arguments are validated against the tool's schema before execution.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	return r.execute(ctx, name, "", args)
}

func (r *Registry) execute(ctx context.Context, name, callID string, args map[string]any) (string, error) {
	e, ok := r.entries.Get(name)
	if !ok || !r.enabled(e.kind) {
		return "", &NotFoundError{Tool: name}
	}

	if e.schema != nil {
		if err := e.schema.Validate(anyMap(args)); err != nil {
			return "", fmt.Errorf("invalid arguments for %s: %w", name, err)
		}
	}

	start := time.Now()
	result, err := e.tool.Execute(ctx, args)
	duration := time.Since(start)

	r.metrics.RecordToolExecution(ctx, name, duration, err)
	observability.LogToolCall(r.logger, name, callID, float64(duration.Milliseconds()), err)

	return result, err
}

// CallResult is the outcome of one model-requested tool call.
type CallResult struct {
	Call   llm.ToolCall
	Result string
	Err    error
}

// Message renders the result as a tool-role message. Failures are folded
// into the message content so the model can see what went wrong.
func (cr CallResult) Message() llm.Message {
	msg := llm.Message{
		Role:       llm.RoleTool,
		ToolCallID: cr.Call.ID,
		Name:       cr.Call.Name,
	}
	if cr.Err != nil {
		msg.Content = fmt.Sprintf("Error executing tool: %v", cr.Err)
		return msg
	}
	msg.Content = cr.Result
	return msg
}

// ExecuteCalls runs a batch of model-requested tool calls concurrently and
// returns one result per call, in the same order as the input.
//
// Failures never abort the batch: each result carries its own error.
func (r *Registry) ExecuteCalls(ctx context.Context, calls []llm.ToolCall) []CallResult {
	if len(calls) == 0 {
		return nil
	}

	// Indexed writes keep results aligned with the input even though the
	// calls finish in arbitrary order.
	results := make([]CallResult, len(calls))
	p := pool.New()
	for i, call := range calls {
		i, call := i, call
		p.Go(func() {
			results[i] = r.executeCall(ctx, call)
		})
	}
	p.Wait()
	return results
}

// executeCall runs one tool call.
func (r *Registry) executeCall(ctx context.Context, call llm.ToolCall) CallResult {
	var args map[string]any
	if len(call.Arguments) > 0 {
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			return CallResult{Call: call, Err: fmt.Errorf("invalid arguments: %w", err)}
		}
	}

	result, err := r.execute(ctx, call.Name, call.ID, args)
	return CallResult{Call: call, Result: result, Err: err}
}

// compileSchema compiles a JSON Schema document for argument validation.
// A nil schema disables validation for that tool.
func compileSchema(name string, raw json.RawMessage) (*jsonschema.Schema, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	resource := name + ".schema.json"
	if err := c.AddResource(resource, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return c.Compile(resource)
}

// anyMap widens a nil map so schema validation sees an empty object.
func anyMap(args map[string]any) any {
	if args == nil {
		return map[string]any{}
	}
	return args
}
