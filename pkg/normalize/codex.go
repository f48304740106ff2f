package normalize

import "github.com/agentflow-dev/agentflow/pkg/models"

// codex events are dispatched on the event's type field, with item events
// sub-dispatched on item.type.

func codexKey(raw map[string]any) string {
	s, _ := firstString(raw, "type")
	return s
}

var codexTable = map[string]handlerFunc{
	"thread.started": func(e *models.Event, raw map[string]any) {
		e.Category = models.CategorySession
		e.Type = models.TypeSessionStart
	},
	"turn.started": func(e *models.Event, raw map[string]any) {
		e.Category = models.CategorySystem
		e.Type = "turn.start"
	},
	"turn.completed": func(e *models.Event, raw map[string]any) {
		e.Category = models.CategorySession
		e.Type = models.TypeSessionEnd
	},
	"item.started":   codexItemStarted,
	"item.completed": codexItemCompleted,
	"error": func(e *models.Event, raw map[string]any) {
		e.Category = models.CategoryError
		e.Type = models.TypeError
		if msg, ok := firstString(raw, "message", "error"); ok {
			e.Error = models.StrPtr(msg)
		}
	},
}

func codexItemType(raw map[string]any) (map[string]any, string) {
	item := childMap(raw, "item")
	t, _ := firstString(item, "type")
	return item, t
}

func codexItemStarted(e *models.Event, raw map[string]any) {
	item, itemType := codexItemType(raw)
	switch itemType {
	case "command_execution":
		e.Category = models.CategoryTool
		e.Type = models.TypeToolStart
		e.ToolName = models.StrPtr(itemType)
		if cmd, ok := firstString(item, "command"); ok {
			e.ToolInput = map[string]any{"command": cmd}
		}
	case "file_change":
		e.Category = models.CategoryTool
		e.Type = models.TypeToolStart
		e.ToolName = models.StrPtr(itemType)
		input := map[string]any{}
		if f, ok := firstString(item, "file", "path"); ok {
			input["file"] = f
		}
		if p, ok := firstString(item, "patch", "diff"); ok {
			input["patch"] = p
		}
		if len(input) > 0 {
			e.ToolInput = input
		}
	case "agent_message":
		e.Category = models.CategoryMessage
		e.Type = models.TypeMessageAssistant
		e.Role = models.StrPtr(models.RoleAssistant)
		setText(e, item, "content", "text")
	default:
		fallbackSystem(e, "item.started", raw)
	}
}

func codexItemCompleted(e *models.Event, raw map[string]any) {
	item, itemType := codexItemType(raw)
	switch itemType {
	case "command_execution", "file_change":
		e.Category = models.CategoryTool
		e.Type = models.TypeToolEnd
		e.ToolName = models.StrPtr(itemType)
		for _, key := range []string{"output", "aggregated_output", "result"} {
			if out, ok := item[key]; ok {
				e.ToolOutput = TruncateToolOutput(out)
				break
			}
		}
	case "agent_message":
		e.Category = models.CategoryMessage
		e.Type = models.TypeMessageAssistant
		e.Role = models.StrPtr(models.RoleAssistant)
		setText(e, item, "content", "text")
	default:
		fallbackSystem(e, "item.completed", raw)
	}
}
