package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/agentflow-dev/agentflow/pkg/models"
)

// listSessionsHandler handles GET /api/sessions.
func (s *Server) listSessionsHandler(c *echo.Context) error {
	sessions, err := s.store.ListSessions(c.Request().Context())
	if err != nil {
		return mapStoreError(err)
	}
	return c.JSON(http.StatusOK, sessions)
}

// getSessionHandler handles GET /api/sessions/:id. Returns the session
// merged with its full event history.
func (s *Server) getSessionHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}

	ctx := c.Request().Context()
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return mapStoreError(err)
	}
	events, err := s.store.GetSessionEvents(ctx, sessionID)
	if err != nil {
		return mapStoreError(err)
	}

	return c.JSON(http.StatusOK, &models.SessionDetail{
		Session: *session,
		Events:  events,
	})
}

// deleteSessionHandler handles DELETE /api/sessions/:id.
func (s *Server) deleteSessionHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session id is required")
	}

	if err := s.store.DeleteSession(c.Request().Context(), sessionID); err != nil {
		return mapStoreError(err)
	}
	_ = s.publisher.PublishSessionDeleted(sessionID)

	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// clearSessionsHandler handles DELETE /api/sessions.
func (s *Server) clearSessionsHandler(c *echo.Context) error {
	if err := s.store.ClearAll(c.Request().Context()); err != nil {
		return mapStoreError(err)
	}
	_ = s.publisher.PublishSessionsCleared()

	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}
