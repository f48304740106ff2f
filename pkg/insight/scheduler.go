package insight

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/agentflow-dev/agentflow/pkg/events"
	"github.com/agentflow-dev/agentflow/pkg/llm"
	"github.com/agentflow-dev/agentflow/pkg/models"
	"github.com/agentflow-dev/agentflow/pkg/slack"
	"github.com/agentflow-dev/agentflow/pkg/store"
)

// Scheduler runs the periodic analysis and the answer-driven refinement
// loop. One instance per process; runs never overlap.
type Scheduler struct {
	store     *store.Store
	bus       *events.Bus
	publisher *events.Publisher
	slackSvc  *slack.Service
	analyzer  *Analyzer

	cronSpec  string
	minEvents int
	timeout   time.Duration

	cron      *cron.Cron
	answerSub *events.Subscription

	// running guards against overlapping analysis runs. TryLock skip, not
	// queueing: a missed tick just waits for the next one.
	running sync.Mutex
	logger  *slog.Logger
}

// Config holds the scheduler knobs.
type Config struct {
	CronSpec  string
	MinEvents int
	Timeout   time.Duration
}

// NewScheduler creates a Scheduler.
func NewScheduler(st *store.Store, bus *events.Bus, publisher *events.Publisher, slackSvc *slack.Service, analyzer *Analyzer, cfg Config) *Scheduler {
	return &Scheduler{
		store:     st,
		bus:       bus,
		publisher: publisher,
		slackSvc:  slackSvc,
		analyzer:  analyzer,
		cronSpec:  cfg.CronSpec,
		minEvents: cfg.MinEvents,
		timeout:   cfg.Timeout,
		logger:    slog.Default().With("component", "insight-scheduler"),
	}
}

// Start registers the cron entry and the thread:ready listener.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.cronSpec, func() { s.RunOnce(ctx) }); err != nil {
		return err
	}
	s.cron.Start()

	s.answerSub = s.bus.Subscribe(events.GlobalTopic)
	go s.watchAnswers(ctx)

	s.logger.Info("Insight scheduler started", "cron", s.cronSpec, "min_events", s.minEvents)
	return nil
}

// Stop halts the cron schedule and the answer listener. Does not interrupt
// an in-flight analysis.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.answerSub != nil {
		s.answerSub.Close()
	}
}

// RunOnce analyzes every user with enough new activity. Skips entirely when
// a previous run is still in flight.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if !s.running.TryLock() {
		s.logger.Warn("Skipping analysis run, previous run still in flight")
		return
	}
	defer s.running.Unlock()

	userIDs, err := s.store.DistinctUserIDs(ctx)
	if err != nil {
		s.logger.Error("Failed to list users for analysis", "error", err)
		return
	}

	for _, userID := range userIDs {
		if err := s.analyzeUser(ctx, userID); err != nil {
			s.logger.Error("Analysis failed", "user_id", userID, "error", err)
			_ = s.publisher.PublishInsightError(userID, err)
		}
	}
}

func (s *Scheduler) analyzeUser(ctx context.Context, userID string) error {
	state, err := s.store.GetAnalysisState(ctx, userID)
	if err != nil {
		return err
	}
	var sinceMs int64
	if state != nil {
		sinceMs = state.LastEventTimestamp
	}

	count, err := s.store.CountEventsSince(ctx, userID, sinceMs)
	if err != nil {
		return err
	}
	if count < s.minEvents {
		return nil
	}

	s.logger.Info("Analyzing user activity", "user_id", userID, "new_events", count)

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.analyzer.Analyze(runCtx, userID, sinceMs)
	if err != nil {
		return err
	}

	insight := s.buildInsight(userID, result)
	if err := s.store.CreateInsight(ctx, insight); err != nil {
		return err
	}

	if len(result.Questions) > 0 {
		if err := s.recordQuestions(ctx, insight, result.Questions); err != nil {
			s.logger.Error("Failed to record insight questions",
				"insight_id", insight.ID, "error", err)
		}
	}

	_ = s.publisher.PublishInsight(insight, false)
	s.slackSvc.NotifyInsight(ctx, insight)

	maxTs, err := s.store.MaxEventTimestamp(ctx, userID)
	if err != nil {
		return err
	}
	return s.store.SaveAnalysisState(ctx, &models.AnalysisState{
		UserID:             userID,
		LastAnalyzedAt:     time.Now(),
		LastEventTimestamp: maxTs,
	})
}

// buildInsight maps an analyzer Result onto the persisted model. Phase
// depends on whether questions exist and whether a question channel does.
func (s *Scheduler) buildInsight(userID string, result *Result) *models.Insight {
	phase := ""
	if len(result.Questions) > 0 {
		if s.slackSvc.Available() {
			phase = models.PhasePreliminary
		} else {
			phase = models.PhaseFinalNoAnswer
		}
	}

	return &models.Insight{
		ID:               uuid.New().String(),
		UserID:           userID,
		Content:          renderContent(result),
		Categories:       actionCategories(result.FollowUpActions),
		FollowUpActions:  result.FollowUpActions,
		SessionsAnalyzed: result.Stats.SessionsAnalyzed,
		EventsAnalyzed:   result.Stats.EventsAnalyzed,
		Phase:            phase,
		Round:            0,
		Meta:             usageMeta(map[string]any{"success": true}, result.Usage),
	}
}

// usageMeta accumulates token accounting into the insight meta. Existing
// counts arrive as float64 after a jsonb round trip.
func usageMeta(meta map[string]any, usage llm.Usage) map[string]any {
	if meta == nil {
		meta = map[string]any{}
	}
	meta["inputTokens"] = metaInt64(meta["inputTokens"]) + usage.InputTokens
	meta["outputTokens"] = metaInt64(meta["outputTokens"]) + usage.OutputTokens
	return meta
}

func metaInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	case int:
		return int64(n)
	}
	return 0
}

// recordQuestions posts each question to the question channel (when
// configured) and persists the rows with their thread ids.
func (s *Scheduler) recordQuestions(ctx context.Context, insight *models.Insight, questions []string) error {
	rows := make([]*models.InsightQuestion, 0, len(questions))
	for _, q := range questions {
		row := &models.InsightQuestion{
			ID:        uuid.New().String(),
			InsightID: insight.ID,
			Question:  q,
		}
		if s.slackSvc.Available() {
			ts, err := s.slackSvc.PostQuestion(ctx, q)
			if err != nil {
				s.logger.Error("Failed to post question", "insight_id", insight.ID, "error", err)
			} else {
				row.ThreadTS = ts
			}
		}
		rows = append(rows, row)
	}
	return s.store.CreateInsightQuestions(ctx, rows)
}

// watchAnswers consumes thread:ready frames and triggers refinement once
// all of an insight's questions are answered.
func (s *Scheduler) watchAnswers(ctx context.Context) {
	for msg := range s.answerSub.C {
		if msg.Type != events.TypeThreadReady {
			continue
		}
		var payload events.ThreadReadyPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			continue
		}
		if err := s.refine(ctx, payload.InsightID); err != nil {
			s.logger.Error("Refinement failed", "insight_id", payload.InsightID, "error", err)
		}
	}
}

// refine re-runs the analyzer for an insight whose questions are all
// answered. A refinement round that asks new questions keeps the insight
// preliminary and posts them; the insight only becomes refined when a round
// returns no questions or the round cap is hit. answersReceived must
// strictly increase so a replayed frame cannot re-trigger the same round.
func (s *Scheduler) refine(ctx context.Context, insightID string) error {
	insight, err := s.store.GetInsight(ctx, insightID)
	if err != nil {
		return err
	}
	if insight.Phase != models.PhasePreliminary {
		return nil
	}
	if insight.Round >= models.MaxRefinementRounds {
		return nil
	}

	questions, err := s.store.ListInsightQuestions(ctx, insightID)
	if err != nil {
		return err
	}
	answered := 0
	for _, q := range questions {
		if q.Answer != "" {
			answered++
		}
	}
	if answered < len(questions) || answered <= insight.AnswersReceived {
		return nil
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.analyzer.Refine(runCtx, insight, questions)
	if err != nil {
		_ = s.publisher.PublishInsightError(insight.UserID, err)
		return err
	}

	insight.Content = renderContent(result)
	insight.Categories = actionCategories(result.FollowUpActions)
	insight.FollowUpActions = result.FollowUpActions
	insight.Round++
	insight.AnswersReceived = answered
	insight.Meta = usageMeta(insight.Meta, result.Usage)

	if len(result.Questions) > 0 && insight.Round < models.MaxRefinementRounds && s.slackSvc.Available() {
		insight.Phase = models.PhasePreliminary
		if err := s.recordQuestions(ctx, insight, result.Questions); err != nil {
			s.logger.Error("Failed to record refinement questions",
				"insight_id", insight.ID, "error", err)
		}
	} else {
		insight.Phase = models.PhaseRefined
	}

	if err := s.store.UpdateInsight(ctx, insight); err != nil {
		return err
	}
	_ = s.publisher.PublishInsight(insight, true)
	s.logger.Info("Insight refined",
		"insight_id", insightID, "round", insight.Round, "phase", insight.Phase)
	return nil
}
