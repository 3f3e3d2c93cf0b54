package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ClaudeCLI implements Client using the Claude CLI binary.
//
// The CLI accepts a flat prompt and returns plain text: it cannot request
// structured tool calls, so SupportsToolCalls reports false and callers
// fall back to plain completion.
type ClaudeCLI struct {
	path    string
	model   string
	workdir string
	timeout time.Duration
}

// ClaudeOption configures ClaudeCLI.
type ClaudeOption func(*ClaudeCLI)

// NewClaudeCLI creates a new Claude CLI client.
// Assumes "claude" is available in PATH unless overridden with WithClaudePath.
func NewClaudeCLI(opts ...ClaudeOption) *ClaudeCLI {
	c := &ClaudeCLI{
		path:    "claude",
		timeout: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithClaudePath sets the path to the claude binary.
func WithClaudePath(path string) ClaudeOption {
	return func(c *ClaudeCLI) { c.path = path }
}

// WithModel sets the default model.
func WithModel(model string) ClaudeOption {
	return func(c *ClaudeCLI) { c.model = model }
}

// WithWorkdir sets the working directory for claude commands.
func WithWorkdir(dir string) ClaudeOption {
	return func(c *ClaudeCLI) { c.workdir = dir }
}

// WithTimeout sets the default timeout for commands.
func WithTimeout(d time.Duration) ClaudeOption {
	return func(c *ClaudeCLI) { c.timeout = d }
}

// SupportsToolCalls reports false: the CLI has no structured tool protocol.
func (c *ClaudeCLI) SupportsToolCalls() bool { return false }

// Complete implements Client.
func (c *ClaudeCLI) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if len(req.Tools) > 0 {
		return nil, NewError("complete", ErrToolCallsUnsupported, false)
	}

	start := time.Now()

	cmd := exec.CommandContext(ctx, c.path, c.buildArgs(req)...)
	if c.workdir != "" {
		cmd.Dir = c.workdir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, NewError("complete", ctx.Err(), false)
		}
		errMsg := stderr.String()
		return nil, NewError("complete", fmt.Errorf("%w: %s", err, errMsg), isRetryableMessage(errMsg))
	}

	return &CompletionResponse{
		Content:      strings.TrimSpace(stdout.String()),
		FinishReason: "stop",
		Model:        c.model,
		Duration:     time.Since(start),
	}, nil
}

// Stream implements Client.
func (c *ClaudeCLI) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	if len(req.Tools) > 0 {
		return nil, NewError("stream", ErrToolCallsUnsupported, false)
	}

	args := append(c.buildArgs(req), "--output-format", "stream-json")
	cmd := exec.CommandContext(ctx, c.path, args...)
	if c.workdir != "" {
		cmd.Dir = c.workdir
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, NewError("stream", fmt.Errorf("create stdout pipe: %w", err), false)
	}
	if err := cmd.Start(); err != nil {
		return nil, NewError("stream", fmt.Errorf("start command: %w", err), false)
	}

	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		defer func() { _ = cmd.Wait() }()

		scanner := bufio.NewScanner(stdout)
		sawStop := false

		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}

			var event claudeStreamEvent
			if err := json.Unmarshal([]byte(line), &event); err != nil {
				// Not JSON, treat as raw text
				select {
				case ch <- StreamChunk{Content: line + "\n"}:
				case <-ctx.Done():
					ch <- StreamChunk{Error: NewError("stream", ctx.Err(), false)}
					return
				}
				continue
			}

			switch event.Type {
			case "content_block_delta":
				if event.Delta != nil && event.Delta.Text != "" {
					select {
					case ch <- StreamChunk{Content: event.Delta.Text}:
					case <-ctx.Done():
						ch <- StreamChunk{Error: NewError("stream", ctx.Err(), false)}
						return
					}
				}
			case "message_stop":
				sawStop = true
				select {
				case ch <- StreamChunk{
					Done: true,
					Usage: &TokenUsage{
						InputTokens:  event.Usage.InputTokens,
						OutputTokens: event.Usage.OutputTokens,
						TotalTokens:  event.Usage.InputTokens + event.Usage.OutputTokens,
					},
				}:
				case <-ctx.Done():
					ch <- StreamChunk{Error: NewError("stream", ctx.Err(), false)}
					return
				}
			}
		}

		if err := scanner.Err(); err != nil {
			ch <- StreamChunk{Error: NewError("stream", fmt.Errorf("read output: %w", err), false)}
			return
		}

		if !sawStop {
			select {
			case ch <- StreamChunk{Done: true}:
			default:
			}
		}
	}()

	return ch, nil
}

// buildArgs constructs CLI arguments from a request.
// The CLI takes a single flat prompt, so history is folded into it.
func (c *ClaudeCLI) buildArgs(req CompletionRequest) []string {
	args := []string{"--print"}

	if req.SystemPrompt != "" {
		args = append(args, "--system-prompt", req.SystemPrompt)
	}

	// Model priority: request > client default
	model := c.model
	if req.Model != "" {
		model = req.Model
	}
	if model != "" {
		args = append(args, "--model", model)
	}

	if req.MaxTokens > 0 {
		args = append(args, "--max-tokens", fmt.Sprintf("%d", req.MaxTokens))
	}

	var prompt strings.Builder
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleUser:
			prompt.WriteString(msg.Content)
			prompt.WriteString("\n")
		case RoleAssistant:
			if prompt.Len() > 0 && msg.Content != "" {
				prompt.WriteString("\nAssistant: ")
				prompt.WriteString(msg.Content)
				prompt.WriteString("\n\nUser: ")
			}
		case RoleTool:
			if msg.Content != "" {
				prompt.WriteString("\n[")
				prompt.WriteString(msg.Name)
				prompt.WriteString(" result: ")
				prompt.WriteString(msg.Content)
				prompt.WriteString("]\n")
			}
		}
	}

	promptStr := strings.TrimSpace(prompt.String())
	if promptStr != "" {
		args = append(args, "-p", promptStr)
	}

	return args
}

// claudeStreamEvent represents a streaming API event from the CLI.
type claudeStreamEvent struct {
	Type  string       `json:"type"`
	Delta *claudeDelta `json:"delta,omitempty"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage,omitempty"`
}

type claudeDelta struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
