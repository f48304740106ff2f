// Package agent provides the local tools dispatched during analyzer and
// cron tool loops: read-only SQL over the event store, a schema reference,
// and optional Slack delivery.
package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentflow-dev/agentflow/pkg/llm"
	"github.com/agentflow-dev/agentflow/pkg/normalize"
	"github.com/agentflow-dev/agentflow/pkg/slack"
)

// Tool names.
const (
	ToolRunSQL    = "run_sql"
	ToolGetSchema = "get_schema"
	ToolPostSlack = "post_slack"
)

// maxSQLRows caps how many rows a single run_sql call returns to the model.
const maxSQLRows = 200

// SQLRunner executes read-only queries. Implemented by store.Store.
type SQLRunner interface {
	RunReadOnlyQuery(ctx context.Context, query string) ([]map[string]any, error)
}

// Toolset is the fixed set of local tools. Slack is optional; when absent
// the post_slack tool is not advertised.
type Toolset struct {
	sql      SQLRunner
	slackSvc *slack.Service
}

// NewToolset creates a Toolset. slackSvc may be nil.
func NewToolset(sql SQLRunner, slackSvc *slack.Service) *Toolset {
	return &Toolset{sql: sql, slackSvc: slackSvc}
}

// Tools returns the tool definitions to advertise to the model.
func (t *Toolset) Tools() []llm.Tool {
	tools := []llm.Tool{
		{
			Name: ToolRunSQL,
			Description: "Run a read-only SQL query against the observability database. " +
				"Only SELECT statements are permitted; writes are rejected. " +
				"Results are capped at 200 rows.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "The SQL SELECT statement to execute.",
					},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        ToolGetSchema,
			Description: "Get the database schema: tables, columns, and what each stores.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
	}

	if t.slackSvc.Available() {
		tools = append(tools, llm.Tool{
			Name:        ToolPostSlack,
			Description: "Post a short message to the team Slack channel.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"message": map[string]any{
						"type":        "string",
						"description": "The message text to post.",
					},
				},
				"required": []string{"message"},
			},
		})
	}

	return tools
}

// Dispatch executes one tool call and returns its result. Tool failures are
// returned as error results, never as Go errors, so the loop keeps going.
func (t *Toolset) Dispatch(ctx context.Context, call llm.ToolCall) llm.ToolResult {
	switch call.Name {
	case ToolRunSQL:
		return t.runSQL(ctx, call)
	case ToolGetSchema:
		return llm.ToolResult{ToolCallID: call.ID, Content: schemaReference}
	case ToolPostSlack:
		return t.postSlack(ctx, call)
	default:
		return llm.ToolResult{
			ToolCallID: call.ID,
			Content:    fmt.Sprintf("unknown tool %q", call.Name),
			IsError:    true,
		}
	}
}

func (t *Toolset) runSQL(ctx context.Context, call llm.ToolCall) llm.ToolResult {
	query, _ := call.Input["query"].(string)
	if query == "" {
		return llm.ToolResult{ToolCallID: call.ID, Content: "query is required", IsError: true}
	}

	rows, err := t.sql.RunReadOnlyQuery(ctx, query)
	if err != nil {
		return llm.ToolResult{ToolCallID: call.ID, Content: err.Error(), IsError: true}
	}
	if len(rows) > maxSQLRows {
		rows = rows[:maxSQLRows]
	}

	out := normalize.TruncateToolOutput(rows)
	data, err := json.Marshal(out)
	if err != nil {
		return llm.ToolResult{ToolCallID: call.ID, Content: err.Error(), IsError: true}
	}
	return llm.ToolResult{ToolCallID: call.ID, Content: string(data)}
}

func (t *Toolset) postSlack(ctx context.Context, call llm.ToolCall) llm.ToolResult {
	message, _ := call.Input["message"].(string)
	if message == "" {
		return llm.ToolResult{ToolCallID: call.ID, Content: "message is required", IsError: true}
	}
	if !t.slackSvc.Available() {
		return llm.ToolResult{ToolCallID: call.ID, Content: "slack is not configured", IsError: true}
	}
	if _, err := t.slackSvc.PostQuestion(ctx, message); err != nil {
		return llm.ToolResult{ToolCallID: call.ID, Content: err.Error(), IsError: true}
	}
	return llm.ToolResult{ToolCallID: call.ID, Content: "posted"}
}

// schemaReference is handed to the model verbatim by get_schema.
const schemaReference = `Tables:

sessions
  id TEXT PRIMARY KEY          -- producer-supplied session id
  source TEXT                  -- claude-code | codex | opencode | cron | sandbox
  start_time BIGINT            -- ms since epoch
  last_event_time BIGINT       -- ms since epoch
  status TEXT                  -- active | completed | error | archived
  metadata JSONB               -- user/git context, cron job info
  user_id TEXT                 -- owner, null for anonymous producers

events
  id TEXT PRIMARY KEY
  session_id TEXT REFERENCES sessions(id)
  seq BIGSERIAL                -- insertion order, unique per store
  timestamp BIGINT             -- ms since epoch
  source TEXT
  category TEXT                -- session | message | tool | error | system
  type TEXT                    -- session.start, message.user, tool.end, ...
  role TEXT                    -- user | assistant | system
  text TEXT                    -- message or result text
  tool_name TEXT
  tool_input JSONB
  tool_output JSONB
  error TEXT
  meta JSONB

Timestamps are milliseconds since the Unix epoch. Join events to sessions
via session_id; filter by sessions.user_id for per-user analysis.`
