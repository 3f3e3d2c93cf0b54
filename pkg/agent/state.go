// Package agent assembles the conversational workflow: a compiled graph
// that screens input, retrieves document context, reasons with the model,
// executes requested tools, and filters the final response.
//
// Each call to Run or Stream is one turn. Turns on the same thread share
// conversation history through the checkpoint store, so a thread behaves
// like a persistent chat session.
package agent

import "github.com/kwhite/agentgraph/pkg/llm"

// ToolResult records one successful tool execution during a turn.
type ToolResult struct {
	Tool   string `json:"tool"`
	Result string `json:"result"`
}

// TurnState is the workflow state for one reasoning turn.
// It is JSON-serialized into checkpoints after every node.
type TurnState struct {
	// Messages is the full conversation history, oldest first.
	Messages []llm.Message `json:"messages"`

	// UserID scopes retrieval to one user's documents.
	UserID string `json:"user_id"`

	// DocumentID optionally narrows retrieval to a single document.
	DocumentID string `json:"document_id,omitempty"`

	// IterationCount is the number of reasoning passes this turn.
	IterationCount int `json:"iteration_count"`

	// Context holds retrieved document context for this turn, or an
	// error description when retrieval failed.
	Context string `json:"context,omitempty"`

	// ToolResults lists successful tool executions this turn.
	ToolResults []ToolResult `json:"tool_results,omitempty"`

	// Rejected is set when the safety gate refused the input.
	Rejected bool `json:"rejected"`
}

// lastMessage returns the most recent message, or false when empty.
func (s TurnState) lastMessage() (llm.Message, bool) {
	if len(s.Messages) == 0 {
		return llm.Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// lastAssistant returns the most recent message if it is from the
// assistant.
func (s TurnState) lastAssistant() (llm.Message, bool) {
	msg, ok := s.lastMessage()
	if !ok || msg.Role != llm.RoleAssistant {
		return llm.Message{}, false
	}
	return msg, true
}

// appendMessage returns a copy of the state with msg appended.
// The messages slice is copied so checkpointed states never alias.
func (s TurnState) appendMessage(msg llm.Message) TurnState {
	messages := make([]llm.Message, 0, len(s.Messages)+1)
	messages = append(messages, s.Messages...)
	messages = append(messages, msg)
	s.Messages = messages
	return s
}

// resetForTurn clears per-turn fields while keeping the conversation
// history. Used when a thread's prior state is reloaded for a new turn.
func (s TurnState) resetForTurn() TurnState {
	s.IterationCount = 0
	s.Context = ""
	s.ToolResults = nil
	s.Rejected = false
	return s
}
