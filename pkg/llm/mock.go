package llm

import (
	"context"
	"strings"
	"sync"
)

// MockClient is a configurable in-memory Client for tests.
//
// By default it echoes a fixed response. Queue multiple responses with
// WithResponses, structured tool calls with WithToolCalls, or take full
// control with WithCompleteFunc / WithStreamFunc.
type MockClient struct {
	mu sync.Mutex

	response  string
	responses []*CompletionResponse
	err       error
	toolCalls bool

	completeFunc func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	streamFunc   func(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)

	calls []CompletionRequest
}

// NewMockClient creates a mock that returns the given response text.
func NewMockClient(response string) *MockClient {
	return &MockClient{response: response, toolCalls: true}
}

// WithResponses queues response texts returned in order.
// After the queue is exhausted, the last response repeats.
func (m *MockClient) WithResponses(responses ...string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range responses {
		m.responses = append(m.responses, &CompletionResponse{Content: r, FinishReason: "stop"})
	}
	return m
}

// WithResponse queues a full structured response.
func (m *MockClient) WithResponse(resp *CompletionResponse) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
	return m
}

// WithToolCalls queues a response that requests the given tool calls.
func (m *MockClient) WithToolCalls(calls ...ToolCall) *MockClient {
	return m.WithResponse(&CompletionResponse{ToolCalls: calls, FinishReason: "tool_calls"})
}

// WithError makes all calls fail with err.
func (m *MockClient) WithError(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithoutToolSupport makes SupportsToolCalls report false.
func (m *MockClient) WithoutToolSupport() *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toolCalls = false
	return m
}

// WithCompleteFunc overrides Complete entirely.
func (m *MockClient) WithCompleteFunc(fn func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completeFunc = fn
	return m
}

// WithStreamFunc overrides Stream entirely.
func (m *MockClient) WithStreamFunc(fn func(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamFunc = fn
	return m
}

// SupportsToolCalls implements Client.
func (m *MockClient) SupportsToolCalls() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.toolCalls
}

// Complete implements Client.
func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewError("complete", err, false)
	}

	m.mu.Lock()
	m.calls = append(m.calls, req)
	fn := m.completeFunc
	err := m.err
	resp := m.nextLocked()
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Stream implements Client.
// The queued response is split into word chunks followed by a final chunk.
func (m *MockClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewError("stream", err, false)
	}

	m.mu.Lock()
	m.calls = append(m.calls, req)
	fn := m.streamFunc
	err := m.err
	resp := m.nextLocked()
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		words := strings.Fields(resp.Content)
		for i, w := range words {
			chunk := w
			if i < len(words)-1 {
				chunk += " "
			}
			select {
			case ch <- StreamChunk{Content: chunk}:
			case <-ctx.Done():
				ch <- StreamChunk{Error: ctx.Err()}
				return
			}
		}
		select {
		case ch <- StreamChunk{Done: true, ToolCalls: resp.ToolCalls, Usage: &resp.Usage}:
		case <-ctx.Done():
		}
	}()
	return ch, nil
}

// nextLocked pops the next queued response; callers hold the mutex.
func (m *MockClient) nextLocked() *CompletionResponse {
	if len(m.responses) == 0 {
		return &CompletionResponse{
			Content:      m.response,
			FinishReason: "stop",
			Usage:        estimateUsage(m.response),
		}
	}
	resp := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	out := *resp
	if out.Usage == (TokenUsage{}) {
		out.Usage = estimateUsage(out.Content)
	}
	return &out
}

// CallCount returns how many calls were made.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastCall returns the most recent request, or false if none were made.
func (m *MockClient) LastCall() (CompletionRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return CompletionRequest{}, false
	}
	return m.calls[len(m.calls)-1], true
}

// Calls returns a copy of all recorded requests.
func (m *MockClient) Calls() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CompletionRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

// Reset clears recorded calls and restores the response queue position.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// estimateUsage fabricates token counts from whitespace-separated words.
func estimateUsage(content string) TokenUsage {
	n := len(strings.Fields(content))
	return TokenUsage{OutputTokens: n, TotalTokens: n}
}
