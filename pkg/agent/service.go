package agent

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/kwhite/agentgraph/pkg/agentgraph"
	"github.com/kwhite/agentgraph/pkg/agentgraph/checkpoint"
	"github.com/kwhite/agentgraph/pkg/agentgraph/event"
	"github.com/kwhite/agentgraph/pkg/agentgraph/observability"
	"github.com/kwhite/agentgraph/pkg/agentgraph/registry"
	"github.com/kwhite/agentgraph/pkg/guardrails"
	"github.com/kwhite/agentgraph/pkg/llm"
	"github.com/kwhite/agentgraph/pkg/retrieval"
	"github.com/kwhite/agentgraph/pkg/tools"
)

// Workflow stage names. Stages double as graph node IDs and as the Stage
// field of streamed TurnEvents.
const (
	StageGuardrails = "guardrails"
	StageRetrieval  = "rag_retrieval"
	StageAgent      = "agent"
	StageTools      = "tool_execution"
	StageResponse   = "response_generation"
)

// Canned responses produced by the workflow itself.
const (
	rejectedPrefix       = "Input rejected: "
	filteredPrefix       = "Response filtered: "
	maxIterationsMessage = "Maximum iterations reached. Please try a simpler query."
)

// Service runs the conversational workflow.
//
// The graph is compiled once at construction and shared by all turns.
// Concurrent turns on different threads run freely; turns on the same
// thread are serialized so conversation history stays consistent.
type Service struct {
	client    llm.Client
	tools     *tools.Registry
	retriever *retrieval.Service
	gate      *guardrails.Gate
	store     checkpoint.Store

	graph   *agentgraph.CompiledGraph[TurnState]
	bus     *event.LocalBus
	locks   *registry.Registry[string, *threadLock]
	locksMu sync.Mutex

	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	spans    observability.SpanManager
	settings Settings
}

// Option configures a Service.
type Option func(*Service)

// WithTools sets the tool registry. Defaults to the built-in tools.
func WithTools(r *tools.Registry) Option {
	return func(s *Service) { s.tools = r }
}

// WithRetriever enables document context retrieval.
// Without a retriever the retrieval stage is a no-op.
func WithRetriever(r *retrieval.Service) Option {
	return func(s *Service) { s.retriever = r }
}

// WithCheckpoints enables durable thread state. Threads then carry
// conversation history across turns and survive restarts.
func WithCheckpoints(store checkpoint.Store) Option {
	return func(s *Service) { s.store = store }
}

// WithSettings overrides the default settings.
func WithSettings(settings Settings) Option {
	return func(s *Service) { s.settings = settings }
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics sets the metrics recorder passed to graph runs.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTracing enables OTel spans on graph runs.
func WithTracing(spans observability.SpanManager) Option {
	return func(s *Service) { s.spans = spans }
}

// New creates a Service backed by the given model client.
func New(client llm.Client, opts ...Option) (*Service, error) {
	if client == nil {
		return nil, fmt.Errorf("agent: client is required")
	}

	s := &Service{
		client:   client,
		bus:      event.NewBus(event.DefaultBusConfig),
		locks:    registry.New[string, *threadLock](),
		logger:   slog.Default(),
		metrics:  observability.NoopMetrics{},
		settings: DefaultSettings(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.gate = guardrails.New(s.settings.Guardrails)

	if s.tools == nil {
		r, err := tools.NewDefaultRegistry(tools.WithLogger(s.logger), tools.WithMetrics(s.metrics))
		if err != nil {
			return nil, fmt.Errorf("agent: default tools: %w", err)
		}
		s.tools = r
	}

	graph, err := s.buildGraph().Compile()
	if err != nil {
		return nil, fmt.Errorf("agent: compile workflow: %w", err)
	}
	s.graph = graph

	return s, nil
}

// Close shuts down the streaming event bus. In-flight Run calls are
// unaffected; Stream calls fail once the bus is closed.
func (s *Service) Close() error {
	return s.bus.Close()
}

// buildGraph wires the workflow:
//
//	guardrails ─┬─> rag_retrieval ─> agent ─┬─> tool_execution ─> agent
//	            │                           └─> response_generation ─> END
//	            └─> END (rejected)
func (s *Service) buildGraph() *agentgraph.Graph[TurnState] {
	return agentgraph.NewGraph[TurnState]().
		AddNode(StageGuardrails, s.gateNode).
		AddNode(StageRetrieval, s.retrieveNode).
		AddNode(StageAgent, s.reasonNode).
		AddNode(StageTools, s.toolNode).
		AddNode(StageResponse, s.filterNode).
		SetEntry(StageGuardrails).
		AddConditionalEdge(StageGuardrails, func(_ agentgraph.Context, st TurnState) string {
			if st.Rejected {
				return agentgraph.END
			}
			return StageRetrieval
		}).
		AddEdge(StageRetrieval, StageAgent).
		AddConditionalEdge(StageAgent, func(_ agentgraph.Context, st TurnState) string {
			if msg, ok := st.lastAssistant(); ok && len(msg.ToolCalls) > 0 {
				return StageTools
			}
			return StageResponse
		}).
		AddEdge(StageTools, StageAgent).
		AddEdge(StageResponse, agentgraph.END)
}

// gateNode screens the incoming user message. A rejected input short-
// circuits the turn: no retrieval, no model call, no tools.
func (s *Service) gateNode(_ agentgraph.Context, st TurnState) (TurnState, error) {
	msg, ok := st.lastMessage()
	if !ok {
		return st, nil
	}

	if passed, reason := s.gate.CheckInput(msg.Content); !passed {
		st = st.appendMessage(llm.Message{
			Role:    llm.RoleAssistant,
			Content: rejectedPrefix + reason,
		})
		st.Rejected = true
	}
	return st, nil
}

// retrieveNode fetches document context for the user's query. Retrieval
// failures degrade: the error text lands in the context slot and the turn
// continues.
func (s *Service) retrieveNode(ctx agentgraph.Context, st TurnState) (TurnState, error) {
	if s.retriever == nil {
		return st, nil
	}

	msg, ok := st.lastMessage()
	if !ok {
		return st, nil
	}

	docCtx, err := s.retriever.Context(ctx, msg.Content, st.UserID, st.DocumentID,
		s.settings.TopK, s.settings.SimilarityThreshold)
	if err != nil {
		observability.LogRetrievalError(ctx.Logger(), err)
		st.Context = "Error retrieving context: " + err.Error()
		return st, nil
	}

	st.Context = docCtx
	return st, nil
}

// reasonNode calls the model. When tools are enabled and the backend
// supports tool calling, the model may request tool executions; a failed
// tool-augmented call falls back to plain completion.
func (s *Service) reasonNode(ctx agentgraph.Context, st TurnState) (TurnState, error) {
	if st.IterationCount >= s.settings.MaxIterations {
		return st.appendMessage(llm.Message{
			Role:    llm.RoleAssistant,
			Content: maxIterationsMessage,
		}), nil
	}
	st.IterationCount++

	messages := s.promptMessages(st)

	var resp *llm.CompletionResponse
	var err error
	if s.settings.EnableTools && s.client.SupportsToolCalls() {
		resp, err = s.client.Complete(ctx, llm.CompletionRequest{
			Messages: messages,
			Tools:    s.tools.Specs(),
		})
		if err != nil {
			observability.LogToolFallback(ctx.Logger(), fmt.Sprintf("%T", s.client), err)
			resp, err = s.client.Complete(ctx, llm.CompletionRequest{Messages: messages})
		}
	} else {
		resp, err = s.client.Complete(ctx, llm.CompletionRequest{Messages: messages})
	}
	if err != nil {
		return st, fmt.Errorf("completion: %w", err)
	}

	return st.appendMessage(llm.Message{
		Role:      llm.RoleAssistant,
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
	}), nil
}

// promptMessages assembles the model's view of the conversation for one
// completion call. Retrieved context is injected as a system message just
// before the newest message, and the system prompt is prepended when the
// conversation carries no system message of its own. Neither insertion is
// persisted into the turn state.
func (s *Service) promptMessages(st TurnState) []llm.Message {
	messages := make([]llm.Message, len(st.Messages), len(st.Messages)+2)
	copy(messages, st.Messages)

	if st.Context != "" && len(messages) > 0 {
		last := messages[len(messages)-1]
		messages = messages[:len(messages)-1]
		messages = append(messages,
			llm.Message{
				Role:    llm.RoleSystem,
				Content: "Relevant context from documents:\n" + st.Context,
			},
			last,
		)
	}

	if s.settings.SystemPrompt != "" && !hasSystemMessage(messages) {
		messages = append([]llm.Message{
			{Role: llm.RoleSystem, Content: s.settings.SystemPrompt},
		}, messages...)
	}

	return messages
}

func hasSystemMessage(messages []llm.Message) bool {
	for _, m := range messages {
		if m.Role == llm.RoleSystem {
			return true
		}
	}
	return false
}

// toolNode executes the tool calls requested by the last assistant
// message. Every call produces a tool message for the model; only
// successful calls are recorded in ToolResults.
func (s *Service) toolNode(ctx agentgraph.Context, st TurnState) (TurnState, error) {
	msg, ok := st.lastAssistant()
	if !ok || len(msg.ToolCalls) == 0 {
		return st, nil
	}

	results := s.tools.ExecuteCalls(ctx, msg.ToolCalls)

	toolResults := make([]ToolResult, 0, len(st.ToolResults)+len(results))
	toolResults = append(toolResults, st.ToolResults...)
	for _, res := range results {
		st = st.appendMessage(res.Message())
		if res.Err == nil {
			toolResults = append(toolResults, ToolResult{
				Tool:   res.Call.Name,
				Result: res.Result,
			})
		}
	}
	st.ToolResults = toolResults

	return st, nil
}

// filterNode screens the final assistant response. A filtered response is
// replaced wholesale so neither its content nor its tool calls leak out.
func (s *Service) filterNode(_ agentgraph.Context, st TurnState) (TurnState, error) {
	msg, ok := st.lastAssistant()
	if !ok {
		return st, nil
	}

	if passed, reason := s.gate.CheckOutput(msg.Content); !passed {
		messages := make([]llm.Message, len(st.Messages))
		copy(messages, st.Messages)
		messages[len(messages)-1] = llm.Message{
			Role:    llm.RoleAssistant,
			Content: filteredPrefix + reason,
		}
		st.Messages = messages
	}
	return st, nil
}
