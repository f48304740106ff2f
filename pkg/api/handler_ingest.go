package api

import (
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/agentflow-dev/agentflow/pkg/models"
	"github.com/agentflow-dev/agentflow/pkg/normalize"
)

// ingestHandler handles POST /api/ingest.
// Pipeline: validate → pre-normalize side effects → normalize → append +
// publish → session meta merge → ack.
func (s *Server) ingestHandler(c *echo.Context) error {
	var req IngestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if req.Source == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "source field is required")
	}
	if req.SessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "sessionId field is required")
	}
	if req.Event == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "event field is required")
	}

	// Claude Code Stop hooks carry the response text only inside the
	// transcript file; splice it in before normalization sees the event.
	if req.Source == models.SourceClaudeCode {
		if hook, _ := req.Event["hook_event_name"].(string); hook == "Stop" {
			spliceTranscriptResult(req.Event)
		}
	}

	event := normalize.Normalize(req.Source, req.SessionID, req.Event)

	var userID *string
	if p := principalFrom(c); p != nil {
		userID = &p.UserID
	}

	session, err := s.recorder.Record(c.Request().Context(), userID, event)
	if err != nil {
		return mapStoreError(err)
	}

	if patch := metaPatch(req.User, req.Git); patch != nil {
		if err := s.store.UpdateSessionMeta(c.Request().Context(), session.ID, patch); err != nil {
			slog.Warn("Failed to merge session metadata",
				"session_id", session.ID, "error", err)
		}
	}

	return c.JSON(http.StatusOK, &IngestResponse{OK: true, EventID: event.ID})
}

// metaPatch folds the optional user and git envelope fields into a session
// metadata patch. Nil when the request carried neither.
func metaPatch(user, git map[string]any) map[string]any {
	if user == nil && git == nil {
		return nil
	}
	patch := make(map[string]any, 2)
	if user != nil {
		patch["user"] = user
	}
	if git != nil {
		patch["git"] = git
	}
	return patch
}
