package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/kwhite/agentgraph/pkg/agentgraph"
	"github.com/kwhite/agentgraph/pkg/agentgraph/checkpoint"
	"github.com/kwhite/agentgraph/pkg/llm"
)

// Result is the outcome of one completed turn.
type Result struct {
	// Response is the final assistant message, or a canned message when
	// the input was rejected or the response was filtered.
	Response string `json:"response"`

	// ThreadID identifies the conversation thread. Generated when the
	// caller did not supply one.
	ThreadID string `json:"thread_id"`

	// Messages is the conversation history after the turn.
	Messages []llm.Message `json:"messages"`

	// ToolResults lists the successful tool executions of the turn.
	ToolResults []ToolResult `json:"tool_results,omitempty"`

	// Iterations is the number of reasoning passes used.
	Iterations int `json:"iterations"`

	// ContextUsed reports whether document context was attached.
	ContextUsed bool `json:"context_used"`
}

// Run executes one turn: the query is appended to the thread's
// conversation and driven through the workflow until a final response.
//
// An empty threadID starts a fresh thread with a generated ID. When a
// checkpoint store is configured, prior turns of the thread are loaded
// first so the model sees the full conversation.
//
// Backend and infrastructure failures are returned as the turn error.
// Callers that want a user-facing message instead can map the error with
// guardrails.Gate.Fallback.
func (s *Service) Run(ctx context.Context, query, userID, documentID, threadID string) (*Result, error) {
	return s.turn(ctx, query, userID, documentID, threadID)
}

// turn is the shared implementation behind Run and Stream.
func (s *Service) turn(ctx context.Context, query, userID, documentID, threadID string, extra ...agentgraph.RunOption[TurnState]) (*Result, error) {
	if threadID == "" {
		threadID = uuid.New().String()
	}

	// One turn at a time per thread.
	lock := s.lockThread(threadID)
	defer s.unlockThread(threadID, lock)

	state, sequence, err := s.loadThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	state.UserID = userID
	state.DocumentID = documentID
	state = state.appendMessage(llm.Message{Role: llm.RoleUser, Content: query})

	runCtx := agentgraph.NewContext(ctx,
		agentgraph.WithLogger(s.logger),
		agentgraph.WithContextRunID(threadID),
	)

	opts := []agentgraph.RunOption[TurnState]{
		agentgraph.WithMaxSteps[TurnState](s.maxSteps()),
		agentgraph.WithRunLogger[TurnState](s.logger),
		agentgraph.WithMetrics[TurnState](s.metrics),
	}
	if s.spans != nil {
		opts = append(opts, agentgraph.WithTracing[TurnState](s.spans))
	}
	if s.store != nil {
		opts = append(opts,
			agentgraph.WithCheckpointStore[TurnState](s.store),
			agentgraph.WithRunID[TurnState](threadID),
			agentgraph.WithCheckpointSequence[TurnState](sequence),
		)
	}
	opts = append(opts, extra...)

	final, err := s.graph.Run(runCtx, state, opts...)
	if err != nil {
		s.logger.Error("turn failed", "thread_id", threadID, "error", err)
		return nil, fmt.Errorf("agent: run turn: %w", err)
	}

	return buildResult(threadID, final), nil
}

// threadLock serializes turns on one thread. refs counts the turns
// holding or waiting on the lock so idle entries can be evicted.
type threadLock struct {
	mu   sync.Mutex
	refs int
}

// lockThread blocks until the calling turn owns the thread.
func (s *Service) lockThread(threadID string) *threadLock {
	s.locksMu.Lock()
	lock := s.locks.GetOrCreate(threadID, func() *threadLock { return &threadLock{} })
	lock.refs++
	s.locksMu.Unlock()

	lock.mu.Lock()
	return lock
}

// unlockThread releases the thread and drops the lock entry once no
// other turn holds or waits on it, keeping the table bounded by the
// number of in-flight turns rather than the number of threads ever seen.
func (s *Service) unlockThread(threadID string, lock *threadLock) {
	lock.mu.Unlock()

	s.locksMu.Lock()
	lock.refs--
	if lock.refs == 0 {
		s.locks.Delete(threadID)
	}
	s.locksMu.Unlock()
}

// loadThread restores a thread's conversation from its latest checkpoint.
// Returns a zero state for new threads or when checkpointing is disabled.
// The sequence return is the checkpoint sequence to continue from.
func (s *Service) loadThread(ctx context.Context, threadID string) (TurnState, int, error) {
	if s.store == nil {
		return TurnState{}, 0, nil
	}

	data, err := s.store.LoadLatest(ctx, threadID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return TurnState{}, 0, nil
	}
	if err != nil {
		return TurnState{}, 0, fmt.Errorf("agent: load thread %s: %w", threadID, err)
	}

	cp, err := checkpoint.Unmarshal(data)
	if err != nil {
		return TurnState{}, 0, fmt.Errorf("agent: decode thread %s checkpoint: %w", threadID, err)
	}

	var prev TurnState
	if err := json.Unmarshal(cp.State, &prev); err != nil {
		return TurnState{}, 0, fmt.Errorf("agent: decode thread %s state: %w", threadID, err)
	}

	return prev.resetForTurn(), cp.Sequence, nil
}

// maxSteps bounds the graph loop. Each reasoning iteration costs at most
// two nodes (agent + tool_execution), plus the three linear stages and
// the final pass that emits the iteration-cap message.
func (s *Service) maxSteps() int {
	return 2*s.settings.MaxIterations + 5
}

// buildResult shapes the final state into a Result.
func buildResult(threadID string, final TurnState) *Result {
	response := ""
	if msg, ok := final.lastAssistant(); ok {
		response = msg.Content
	}
	return &Result{
		Response:    response,
		ThreadID:    threadID,
		Messages:    final.Messages,
		ToolResults: final.ToolResults,
		Iterations:  final.IterationCount,
		ContextUsed: final.Context != "",
	}
}
