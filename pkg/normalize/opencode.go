package normalize

import "github.com/agentflow-dev/agentflow/pkg/models"

// opencode speaks two dialects through one table: hook-style events
// (session.created, session.idle, message.updated, message.part.updated)
// and jsonl-style events (step_start, step_finish, text, tool_use).

func opencodeKey(raw map[string]any) string {
	s, _ := firstString(raw, "type")
	return s
}

var opencodeTable = map[string]handlerFunc{
	"session.created": func(e *models.Event, raw map[string]any) {
		e.Category = models.CategorySession
		e.Type = models.TypeSessionStart
	},
	// opencode never sends an explicit end; idle is the lifecycle signal.
	"session.idle": func(e *models.Event, raw map[string]any) {
		e.Category = models.CategorySession
		e.Type = models.TypeSessionEnd
	},
	"message.updated":      opencodeMessageUpdated,
	"message.part.updated": opencodePartUpdated,

	"step_start": func(e *models.Event, raw map[string]any) {
		e.Category = models.CategorySystem
		e.Type = "step.start"
	},
	"step_finish": func(e *models.Event, raw map[string]any) {
		e.Category = models.CategorySystem
		e.Type = "step.finish"
		if usage, ok := raw["usage"]; ok {
			metaSet(e, "usage", usage)
		}
	},
	"text": func(e *models.Event, raw map[string]any) {
		opencodeMessage(e, opencodeRole(raw, raw))
		setText(e, raw, "text", "content")
	},
	"tool_use": opencodeToolUse,
}

// opencodeRole resolves the message role, preferring the adapter-injected
// _role hint over the payload's own role field. Defaults to assistant.
func opencodeRole(raw, part map[string]any) string {
	if r, ok := firstString(raw, "_role"); ok {
		return r
	}
	if r, ok := firstString(part, "role"); ok {
		return r
	}
	if r, ok := firstString(raw, "role"); ok {
		return r
	}
	return models.RoleAssistant
}

func opencodeMessage(e *models.Event, role string) {
	e.Category = models.CategoryMessage
	if role == models.RoleUser {
		e.Type = models.TypeMessageUser
	} else {
		role = models.RoleAssistant
		e.Type = models.TypeMessageAssistant
	}
	e.Role = models.StrPtr(role)
}

func opencodeMessageUpdated(e *models.Event, raw map[string]any) {
	msg := childMap(raw, "message")

	// Find the first text part; payloads without one are opaque to us.
	if parts, ok := msg["parts"].([]any); ok {
		for _, p := range parts {
			part, ok := p.(map[string]any)
			if !ok {
				continue
			}
			if t, _ := firstString(part, "type"); t != "text" {
				continue
			}
			if text, ok := firstString(part, "text", "content"); ok {
				opencodeMessage(e, opencodeRole(raw, msg))
				e.Text = models.StrPtr(text)
				return
			}
		}
	}

	fallbackSystem(e, "message.updated", raw)
}

func opencodePartUpdated(e *models.Event, raw map[string]any) {
	part := childMap(raw, "part")
	partType, _ := firstString(part, "type")

	switch partType {
	case "text":
		opencodeMessage(e, opencodeRole(raw, part))
		setText(e, part, "text", "content")

	case "tool":
		state := childMap(part, "state")
		status, _ := firstString(state, "status")
		if name, ok := firstString(part, "tool", "name"); ok {
			e.ToolName = models.StrPtr(name)
		}
		switch status {
		case "running":
			e.Category = models.CategoryTool
			e.Type = models.TypeToolStart
			if in, ok := state["input"]; ok {
				e.ToolInput = in
			}
		case "completed":
			e.Category = models.CategoryTool
			e.Type = models.TypeToolEnd
			if out, ok := state["output"]; ok {
				e.ToolOutput = TruncateToolOutput(out)
			}
		case "error":
			e.Category = models.CategoryError
			e.Type = models.TypeError
			if msg, ok := firstString(state, "error", "message"); ok {
				e.Error = models.StrPtr(msg)
			}
		default:
			fallbackSystem(e, "message.part.updated", raw)
		}

	default:
		fallbackSystem(e, "message.part.updated", raw)
	}
}

func opencodeToolUse(e *models.Event, raw map[string]any) {
	e.Category = models.CategoryTool
	if name, ok := firstString(raw, "name", "tool"); ok {
		e.ToolName = models.StrPtr(name)
	}
	if in, ok := raw["input"]; ok {
		e.ToolInput = in
	}

	// jsonl tool_use lines carry the output once the call has finished;
	// a line without one marks the call start.
	for _, key := range []string{"output", "result"} {
		if out, ok := raw[key]; ok {
			e.Type = models.TypeToolEnd
			e.ToolOutput = TruncateToolOutput(out)
			return
		}
	}
	e.Type = models.TypeToolStart
}
