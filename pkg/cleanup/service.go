// Package cleanup provides data retention and cleanup services.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/agentflow-dev/agentflow/pkg/store"
)

// Config controls what the cleanup loop removes. A zero retention disables
// that rule.
type Config struct {
	// SessionRetentionDays removes sessions whose last event is older.
	SessionRetentionDays int

	// InsightRetentionDays removes insights created earlier.
	InsightRetentionDays int

	// Interval between sweeps.
	Interval time.Duration
}

// Enabled reports whether any retention rule is active.
func (c Config) Enabled() bool {
	return c.SessionRetentionDays > 0 || c.InsightRetentionDays > 0
}

// Service periodically enforces retention policies:
//   - Deletes sessions (and their events) past the session retention window
//   - Deletes insights (and their questions) past the insight retention window
//
// All operations are idempotent and safe to run from multiple replicas.
type Service struct {
	config Config
	store  *store.Store

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(cfg Config, st *store.Store) *Service {
	return &Service{config: cfg, store: st}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Cleanup service started",
		"session_retention_days", s.config.SessionRetentionDays,
		"insight_retention_days", s.config.InsightRetentionDays,
		"interval", s.config.Interval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.RunAll(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunAll(ctx)
		}
	}
}

// RunAll performs one sweep of every active retention rule.
func (s *Service) RunAll(ctx context.Context) {
	s.pruneSessions(ctx)
	s.pruneInsights(ctx)
}

func (s *Service) pruneSessions(ctx context.Context) {
	if s.config.SessionRetentionDays <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -s.config.SessionRetentionDays)
	count, err := s.store.PruneSessions(ctx, cutoff.UnixMilli())
	if err != nil {
		slog.Error("Retention: session prune failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: pruned old sessions", "count", count)
	}
}

func (s *Service) pruneInsights(ctx context.Context) {
	if s.config.InsightRetentionDays <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -s.config.InsightRetentionDays)
	count, err := s.store.PruneInsights(ctx, cutoff)
	if err != nil {
		slog.Error("Retention: insight prune failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: pruned old insights", "count", count)
	}
}
