package slack

import (
	"context"
	"log/slog"
	"time"

	"github.com/agentflow-dev/agentflow/pkg/models"
)

// ServiceConfig holds the parameters needed to construct a Service.
type ServiceConfig struct {
	Token        string
	Channel      string
	DashboardURL string
}

// Service handles Slack delivery for the insight question channel and cron
// notifications. Nil-safe: all methods are no-ops when service is nil, so
// an unconfigured deployment needs no call-site guards.
type Service struct {
	client       *Client
	dashboardURL string
	logger       *slog.Logger
}

// NewService creates a new Slack service.
// Returns nil if Token or Channel is empty.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Token == "" || cfg.Channel == "" {
		return nil
	}
	return &Service{
		client:       NewClient(cfg.Token, cfg.Channel),
		dashboardURL: cfg.DashboardURL,
		logger:       slog.Default().With("component", "slack-service"),
	}
}

// NewServiceWithClient creates a Service backed by a pre-built Client.
// Useful for testing with a mock API server.
func NewServiceWithClient(client *Client, dashboardURL string) *Service {
	return &Service{
		client:       client,
		dashboardURL: dashboardURL,
		logger:       slog.Default().With("component", "slack-service"),
	}
}

// Available reports whether questions can be posted. The insight scheduler
// uses this to pick the preliminary vs final-no-answers phase.
func (s *Service) Available() bool {
	return s != nil
}

// PostQuestion posts an analyzer follow-up question and returns the thread
// timestamp recorded on the question row. Errors are returned so the caller
// can leave ThreadTS empty and fall back to dashboard-only answering.
func (s *Service) PostQuestion(ctx context.Context, question string) (string, error) {
	if s == nil {
		return "", nil
	}
	return s.client.PostMessage(ctx, BuildQuestionMessage(question), "", 5*time.Second)
}

// NotifyInsight posts a summary of a new insight.
// Fail-open: errors are logged, never returned.
func (s *Service) NotifyInsight(ctx context.Context, insight *models.Insight) {
	if s == nil {
		return
	}
	if _, err := s.client.PostMessage(ctx, BuildInsightMessage(insight), "", 10*time.Second); err != nil {
		s.logger.Error("Failed to send insight notification",
			"insight_id", insight.ID, "error", err)
	}
}

// NotifyCronRun posts a cron run outcome for jobs with notifySlack set.
// Fail-open: errors are logged, never returned.
func (s *Service) NotifyCronRun(ctx context.Context, job *models.CronJob, sessionID, status, summary string) {
	if s == nil {
		return
	}
	blocks := BuildCronRunMessage(job, sessionID, status, summary, s.dashboardURL)
	if _, err := s.client.PostMessage(ctx, blocks, "", 10*time.Second); err != nil {
		s.logger.Error("Failed to send cron run notification",
			"job_id", job.ID, "session_id", sessionID, "error", err)
	}
}
