package normalize

import "github.com/agentflow-dev/agentflow/pkg/models"

// claude-code hook payloads are dispatched on hook_event_name.

func claudeKey(raw map[string]any) string {
	s, _ := firstString(raw, "hook_event_name")
	return s
}

var claudeTable = map[string]handlerFunc{
	"SessionStart": func(e *models.Event, raw map[string]any) {
		e.Category = models.CategorySession
		e.Type = models.TypeSessionStart
	},
	"UserPromptSubmit": func(e *models.Event, raw map[string]any) {
		e.Category = models.CategoryMessage
		e.Type = models.TypeMessageUser
		e.Role = models.StrPtr(models.RoleUser)
		setText(e, raw, "user_message", "message", "text", "prompt")
	},
	"PreToolUse": func(e *models.Event, raw map[string]any) {
		e.Category = models.CategoryTool
		e.Type = models.TypeToolStart
		if name, ok := firstString(raw, "tool_name"); ok {
			e.ToolName = models.StrPtr(name)
		}
		if in, ok := raw["tool_input"]; ok {
			e.ToolInput = in
		}
	},
	"PostToolUse": func(e *models.Event, raw map[string]any) {
		e.Category = models.CategoryTool
		e.Type = models.TypeToolEnd
		if name, ok := firstString(raw, "tool_name"); ok {
			e.ToolName = models.StrPtr(name)
		}
		if out, ok := raw["tool_response"]; ok {
			e.ToolOutput = TruncateToolOutput(out)
		} else if out, ok := raw["tool_output"]; ok {
			e.ToolOutput = TruncateToolOutput(out)
		}
	},
	"Stop": func(e *models.Event, raw map[string]any) {
		e.Category = models.CategoryMessage
		e.Type = models.TypeMessageAssistant
		e.Role = models.StrPtr(models.RoleAssistant)
		setText(e, raw, "result", "response")
		if reason, ok := firstString(raw, "stop_reason"); ok {
			metaSet(e, "stop_reason", reason)
		}
	},
	"SessionEnd": func(e *models.Event, raw map[string]any) {
		e.Category = models.CategorySession
		e.Type = models.TypeSessionEnd
	},
	"Error": func(e *models.Event, raw map[string]any) {
		e.Category = models.CategoryError
		e.Type = models.TypeError
		if msg, ok := firstString(raw, "error", "message"); ok {
			e.Error = models.StrPtr(msg)
		}
	},
}
