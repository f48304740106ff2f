package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/agentflow-dev/agentflow/pkg/models"
)

const insightSelect = `
SELECT id, user_id, repo, content, categories, follow_up_actions,
       sessions_analyzed, events_analyzed, phase, round, answers_received,
       meta, created_at, updated_at
FROM insights`

// CreateInsight persists a new analysis artifact.
func (s *Store) CreateInsight(ctx context.Context, in *models.Insight) error {
	if in.ID == "" {
		return NewValidationError("id", "required")
	}
	if in.UserID == "" {
		return NewValidationError("userId", "required")
	}

	categories, err := json.Marshal(orEmptySlice(in.Categories))
	if err != nil {
		return fmt.Errorf("failed to marshal categories: %w", err)
	}
	actions, err := json.Marshal(orEmptyActions(in.FollowUpActions))
	if err != nil {
		return fmt.Errorf("failed to marshal follow-up actions: %w", err)
	}
	meta, err := marshalColumn(in.Meta)
	if err != nil {
		return fmt.Errorf("failed to marshal meta: %w", err)
	}

	now := time.Now().UTC()
	in.CreatedAt = now
	in.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO insights (id, user_id, repo, content, categories, follow_up_actions,
			sessions_analyzed, events_analyzed, phase, round, answers_received, meta, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)`,
		in.ID, in.UserID, in.Repo, in.Content, categories, actions,
		in.SessionsAnalyzed, in.EventsAnalyzed, in.Phase, in.Round, in.AnswersReceived, meta, now)
	if err != nil {
		return fmt.Errorf("failed to create insight: %w", err)
	}
	return nil
}

// UpdateInsight rewrites the refinable fields of an insight in place.
func (s *Store) UpdateInsight(ctx context.Context, in *models.Insight) error {
	categories, err := json.Marshal(orEmptySlice(in.Categories))
	if err != nil {
		return fmt.Errorf("failed to marshal categories: %w", err)
	}
	actions, err := json.Marshal(orEmptyActions(in.FollowUpActions))
	if err != nil {
		return fmt.Errorf("failed to marshal follow-up actions: %w", err)
	}
	meta, err := marshalColumn(in.Meta)
	if err != nil {
		return fmt.Errorf("failed to marshal meta: %w", err)
	}

	in.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE insights SET content = $2, categories = $3, follow_up_actions = $4,
			phase = $5, round = $6, answers_received = $7, meta = $8, updated_at = $9
		WHERE id = $1`,
		in.ID, in.Content, categories, actions, in.Phase, in.Round, in.AnswersReceived, meta, in.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update insight: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetInsight returns one insight by id.
func (s *Store) GetInsight(ctx context.Context, id string) (*models.Insight, error) {
	in, err := scanInsight(s.db.QueryRowContext(ctx, insightSelect+" WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get insight: %w", err)
	}
	return in, nil
}

// ListInsights returns a user's insights, newest first.
func (s *Store) ListInsights(ctx context.Context, userID string) ([]*models.Insight, error) {
	rows, err := s.db.QueryContext(ctx, insightSelect+" WHERE user_id = $1 ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list insights: %w", err)
	}
	defer rows.Close()

	insights := []*models.Insight{}
	for rows.Next() {
		in, err := scanInsight(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan insight: %w", err)
		}
		insights = append(insights, in)
	}
	return insights, rows.Err()
}

// CreateInsightQuestions stores the analyzer's follow-up questions.
func (s *Store) CreateInsightQuestions(ctx context.Context, questions []*models.InsightQuestion) error {
	if len(questions) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range questions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO insight_questions (id, insight_id, question, thread_ts)
			VALUES ($1, $2, $3, $4)`,
			q.ID, q.InsightID, q.Question, q.ThreadTS)
		if err != nil {
			return fmt.Errorf("failed to create question: %w", err)
		}
	}
	return tx.Commit()
}

// AnswerInsightQuestion records an answer; answering twice overwrites.
func (s *Store) AnswerInsightQuestion(ctx context.Context, questionID, answer string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE insight_questions SET answer = $2, answered_at = now() WHERE id = $1`,
		questionID, answer)
	if err != nil {
		return fmt.Errorf("failed to answer question: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListInsightQuestions returns all questions for an insight.
func (s *Store) ListInsightQuestions(ctx context.Context, insightID string) ([]*models.InsightQuestion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, insight_id, question, thread_ts, answer, answered_at
		FROM insight_questions WHERE insight_id = $1 ORDER BY id`, insightID)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer rows.Close()

	questions := []*models.InsightQuestion{}
	for rows.Next() {
		var q models.InsightQuestion
		if err := rows.Scan(&q.ID, &q.InsightID, &q.Question, &q.ThreadTS, &q.Answer, &q.AnsweredAt); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, &q)
	}
	return questions, rows.Err()
}

// GetAnalysisState returns a user's analysis watermark, or nil when the user
// has never been analyzed.
func (s *Store) GetAnalysisState(ctx context.Context, userID string) (*models.AnalysisState, error) {
	var state models.AnalysisState
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, last_analyzed_at, last_event_timestamp
		FROM insight_analysis_state WHERE user_id = $1`, userID).
		Scan(&state.UserID, &state.LastAnalyzedAt, &state.LastEventTimestamp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get analysis state: %w", err)
	}
	return &state, nil
}

// SaveAnalysisState upserts a user's analysis watermark.
func (s *Store) SaveAnalysisState(ctx context.Context, state *models.AnalysisState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO insight_analysis_state (user_id, last_analyzed_at, last_event_timestamp)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			last_analyzed_at = EXCLUDED.last_analyzed_at,
			last_event_timestamp = EXCLUDED.last_event_timestamp`,
		state.UserID, state.LastAnalyzedAt, state.LastEventTimestamp)
	if err != nil {
		return fmt.Errorf("failed to save analysis state: %w", err)
	}
	return nil
}

func scanInsight(row rowScanner) (*models.Insight, error) {
	var (
		in         models.Insight
		categories []byte
		actions    []byte
		meta       []byte
	)
	err := row.Scan(
		&in.ID, &in.UserID, &in.Repo, &in.Content, &categories, &actions,
		&in.SessionsAnalyzed, &in.EventsAnalyzed, &in.Phase, &in.Round, &in.AnswersReceived,
		&meta, &in.CreatedAt, &in.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(categories, &in.Categories); err != nil {
		return nil, fmt.Errorf("failed to unmarshal categories: %w", err)
	}
	if err := json.Unmarshal(actions, &in.FollowUpActions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal follow-up actions: %w", err)
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &in.Meta); err != nil {
			return nil, fmt.Errorf("failed to unmarshal meta: %w", err)
		}
	}
	return &in, nil
}

func orEmptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orEmptyActions(a []models.FollowUpAction) []models.FollowUpAction {
	if a == nil {
		return []models.FollowUpAction{}
	}
	return a
}
