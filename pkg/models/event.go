package models

// Event sources. Producers tag every raw payload with one of these;
// the cron runner and sandbox listeners emit synthetic events with
// their own source tags.
const (
	SourceClaudeCode = "claude-code"
	SourceCodex      = "codex"
	SourceOpenCode   = "opencode"
	SourceCron       = "cron"
	SourceSandbox    = "sandbox"
)

// Event categories.
const (
	CategorySession = "session"
	CategoryMessage = "message"
	CategoryTool    = "tool"
	CategoryError   = "error"
	CategorySystem  = "system"
)

// Canonical event types (lowercase dot-separated verbs).
const (
	TypeSessionStart     = "session.start"
	TypeSessionEnd       = "session.end"
	TypeMessageUser      = "message.user"
	TypeMessageAssistant = "message.assistant"
	TypeToolStart        = "tool.start"
	TypeToolEnd          = "tool.end"
	TypeError            = "error"
)

// Roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Event is the atomic record of the pipeline: one normalized observation
// inside a session. Events are appended once and never mutated.
type Event struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionId"`
	// Timestamp is milliseconds since epoch. Monotonicity per session is
	// not guaranteed; ties are broken by insertion order (Seq).
	Timestamp int64  `json:"timestamp"`
	Source    string `json:"source"`
	Category  string `json:"category"`
	Type      string `json:"type"`

	Role       *string        `json:"role,omitempty"`
	Text       *string        `json:"text,omitempty"`
	ToolName   *string        `json:"toolName,omitempty"`
	ToolInput  any            `json:"toolInput,omitempty"`
	ToolOutput any            `json:"toolOutput,omitempty"`
	Error      *string        `json:"error,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`

	// Seq is the store-assigned insertion counter. It orders events with
	// equal timestamps and serves as the snapshot watermark for the
	// realtime gateway. Producers never set it.
	Seq int64 `json:"-"`
}

// StrPtr returns a pointer to s. Convenience for the optional Event fields.
func StrPtr(s string) *string { return &s }
