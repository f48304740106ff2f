// Package llm provides the tool-calling chat client used by the insight
// analyzer and the cron runner, backed by the Anthropic Messages API.
package llm

import "context"

// Stop reasons surfaced to callers. The tool loop continues on
// StopReasonToolUse and finishes on StopReasonEndTurn.
const (
	StopReasonToolUse = "tool_use"
	StopReasonEndTurn = "end_turn"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	ID    string
	Name  string
	Input map[string]any
}

// ToolResult feeds a tool's output back into the conversation.
type ToolResult struct {
	ToolCallID string
	Content    string
	IsError    bool
}

// Message is one conversation turn. Assistant turns may carry tool calls;
// user turns may carry tool results.
type Message struct {
	Role        string
	Text        string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

// Tool describes a callable tool advertised to the model. InputSchema is a
// JSON Schema object.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// ChatRequest is a single non-streaming completion request.
type ChatRequest struct {
	System    string
	Messages  []Message
	Tools     []Tool
	MaxTokens int
}

// Usage is the token accounting for one request.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// ChatResponse is the model's reply. Text concatenates all text blocks;
// ToolCalls is non-empty when StopReason is tool_use.
type ChatResponse struct {
	Text       string
	ToolCalls  []ToolCall
	StopReason string
	Usage      Usage
}

// Client is a tool-calling chat client.
type Client interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}
