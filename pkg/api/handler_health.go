package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/agentflow-dev/agentflow/pkg/database"
	"github.com/agentflow-dev/agentflow/pkg/version"
)

// healthHandler handles GET /health. Public; only the database is checked
// so an unhealthy external collaborator never restarts the service.
func (s *Server) healthHandler(c *echo.Context) error {
	reqCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := database.Health(reqCtx, s.store.DB()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, &HealthResponse{
			Status:  "unhealthy",
			Version: version.GitCommit,
		})
	}

	return c.JSON(http.StatusOK, &HealthResponse{
		Status:  "ok",
		Version: version.GitCommit,
	})
}
