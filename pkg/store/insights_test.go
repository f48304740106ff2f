package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow-dev/agentflow/pkg/models"
)

func newInsight(userID string) *models.Insight {
	return &models.Insight{
		ID:      uuid.New().String(),
		UserID:  userID,
		Content: "## Findings\n\nYou retry failing builds a lot.",
		Categories: []string{
			"workflow",
		},
		FollowUpActions: []models.FollowUpAction{
			{Action: "add a pre-commit hook", Priority: "medium", Category: "tooling"},
		},
		SessionsAnalyzed: 4,
		EventsAnalyzed:   120,
		Phase:            models.PhasePreliminary,
		Meta:             map[string]any{"model": "claude", "inputTokens": float64(900)},
	}
}

func TestInsightRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := newInsight("user-1")
	require.NoError(t, s.CreateInsight(ctx, in))

	got, err := s.GetInsight(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, in.Content, got.Content)
	assert.Equal(t, []string{"workflow"}, got.Categories)
	require.Len(t, got.FollowUpActions, 1)
	assert.Equal(t, "medium", got.FollowUpActions[0].Priority)
	assert.Equal(t, models.PhasePreliminary, got.Phase)
	assert.Equal(t, float64(900), got.Meta["inputTokens"])
	assert.False(t, got.CreatedAt.IsZero())
}

func TestInsightRefinement(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := newInsight("user-1")
	require.NoError(t, s.CreateInsight(ctx, in))

	in.Content = "## Findings (refined)\n\nMore detail."
	in.Phase = models.PhaseRefined
	in.Round = 1
	in.AnswersReceived = 2
	require.NoError(t, s.UpdateInsight(ctx, in))

	got, err := s.GetInsight(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseRefined, got.Phase)
	assert.Equal(t, 1, got.Round)
	assert.Equal(t, 2, got.AnswersReceived)
	assert.Contains(t, got.Content, "refined")

	missing := newInsight("user-1")
	assert.ErrorIs(t, s.UpdateInsight(ctx, missing), ErrNotFound)
}

func TestListInsightsScopedAndOrdered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := newInsight("user-1")
	require.NoError(t, s.CreateInsight(ctx, a))
	time.Sleep(5 * time.Millisecond)
	b := newInsight("user-1")
	require.NoError(t, s.CreateInsight(ctx, b))
	require.NoError(t, s.CreateInsight(ctx, newInsight("user-2")))

	insights, err := s.ListInsights(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, insights, 2)
	assert.Equal(t, b.ID, insights[0].ID)
	assert.Equal(t, a.ID, insights[1].ID)
}

func TestInsightQuestions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := newInsight("user-1")
	require.NoError(t, s.CreateInsight(ctx, in))

	q1 := &models.InsightQuestion{ID: "q-1", InsightID: in.ID, Question: "Which repo was that?", ThreadTS: "123.456"}
	q2 := &models.InsightQuestion{ID: "q-2", InsightID: in.ID, Question: "Was CI green?"}
	require.NoError(t, s.CreateInsightQuestions(ctx, []*models.InsightQuestion{q1, q2}))

	require.NoError(t, s.AnswerInsightQuestion(ctx, "q-1", "the api repo"))
	assert.ErrorIs(t, s.AnswerInsightQuestion(ctx, "q-missing", "x"), ErrNotFound)

	questions, err := s.ListInsightQuestions(ctx, in.ID)
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, "the api repo", questions[0].Answer)
	require.NotNil(t, questions[0].AnsweredAt)
	assert.Nil(t, questions[1].AnsweredAt)
}

func TestAnalysisState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	state, err := s.GetAnalysisState(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, state)

	now := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, s.SaveAnalysisState(ctx, &models.AnalysisState{
		UserID:             "user-1",
		LastAnalyzedAt:     now,
		LastEventTimestamp: 42,
	}))

	state, err = s.GetAnalysisState(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, int64(42), state.LastEventTimestamp)
	assert.WithinDuration(t, now, state.LastAnalyzedAt, time.Second)

	// upsert overwrites
	require.NoError(t, s.SaveAnalysisState(ctx, &models.AnalysisState{
		UserID:             "user-1",
		LastAnalyzedAt:     now.Add(time.Minute),
		LastEventTimestamp: 99,
	}))
	state, err = s.GetAnalysisState(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(99), state.LastEventTimestamp)
}
