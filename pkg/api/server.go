// Package api exposes the HTTP surface: event ingest, session and insight
// queries, cron job management, auth endpoints, and the realtime WebSocket
// upgrade. Handlers stay thin; semantics live in store, auth, and gateway.
package api

import (
	"context"
	"fmt"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/agentflow-dev/agentflow/pkg/auth"
	"github.com/agentflow-dev/agentflow/pkg/config"
	"github.com/agentflow-dev/agentflow/pkg/events"
	"github.com/agentflow-dev/agentflow/pkg/gateway"
	"github.com/agentflow-dev/agentflow/pkg/ingest"
	"github.com/agentflow-dev/agentflow/pkg/store"
)

// CronTrigger runs a cron job outside its schedule. Implemented by
// cron.Runner; nil when the runner is disabled.
type CronTrigger interface {
	Trigger(jobID string) error
}

// Server wires the HTTP routes to the service components.
type Server struct {
	cfg         *config.Config
	store       *store.Store
	recorder    *ingest.Recorder
	publisher   *events.Publisher
	authService *auth.Service
	verifier    auth.Verifier
	connManager *gateway.ConnectionManager
	cronTrigger CronTrigger

	echo       *echo.Echo
	httpServer *http.Server
}

// NewServer creates the API server and registers all routes.
func NewServer(
	cfg *config.Config,
	st *store.Store,
	recorder *ingest.Recorder,
	publisher *events.Publisher,
	authService *auth.Service,
	connManager *gateway.ConnectionManager,
) *Server {
	s := &Server{
		cfg:         cfg,
		store:       st,
		recorder:    recorder,
		publisher:   publisher,
		authService: authService,
		verifier:    authService,
		connManager: connManager,
	}
	s.echo = s.buildEcho()
	return s
}

// SetCronTrigger attaches the cron runner's manual-trigger hook.
func (s *Server) SetCronTrigger(t CronTrigger) {
	s.cronTrigger = t
}

func (s *Server) buildEcho() *echo.Echo {
	e := echo.New()

	e.Use(securityHeaders())
	e.Use(s.requireAuth())

	e.GET("/health", s.healthHandler)
	e.GET("/ws", s.wsHandler)
	e.GET("/setup/hook.sh", s.hookScriptHandler)

	api := e.Group("/api")

	api.POST("/ingest", s.ingestHandler)

	api.GET("/sessions", s.listSessionsHandler)
	api.GET("/sessions/:id", s.getSessionHandler)
	api.DELETE("/sessions/:id", s.deleteSessionHandler)
	api.DELETE("/sessions", s.clearSessionsHandler)

	api.POST("/auth/sign-in/email", s.signInHandler)
	api.POST("/auth/sign-up/email", s.signUpHandler)
	api.GET("/auth/get-session", s.getAuthSessionHandler)
	api.POST("/auth/api-key/create", s.createAPIKeyHandler)
	api.GET("/auth/api-keys", s.listAPIKeysHandler)

	api.GET("/insights", s.listInsightsHandler)
	api.GET("/insights/:id", s.getInsightHandler)
	api.POST("/insights/:id/answers", s.answerInsightHandler)

	api.GET("/cron-jobs", s.listCronJobsHandler)
	api.POST("/cron-jobs", s.createCronJobHandler)
	api.PUT("/cron-jobs/:id", s.updateCronJobHandler)
	api.DELETE("/cron-jobs/:id", s.deleteCronJobHandler)
	api.POST("/cron-jobs/:id/trigger", s.triggerCronJobHandler)

	return e
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start runs the HTTP server. Blocks until Shutdown or a listener error.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.echo,
		ReadHeaderTimeout: s.cfg.ServerIdleTimeout,
		IdleTimeout:       s.cfg.ServerIdleTimeout,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Addr formats the listen address from the configured port.
func (s *Server) Addr() string {
	return fmt.Sprintf(":%d", s.cfg.Port)
}
