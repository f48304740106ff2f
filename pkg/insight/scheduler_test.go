package insight

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow-dev/agentflow/pkg/agent"
	"github.com/agentflow-dev/agentflow/pkg/events"
	"github.com/agentflow-dev/agentflow/pkg/llm"
	"github.com/agentflow-dev/agentflow/pkg/models"
	"github.com/agentflow-dev/agentflow/pkg/slack"
	"github.com/agentflow-dev/agentflow/pkg/store"
	"github.com/agentflow-dev/agentflow/test/util"
)

func newTestScheduler(t *testing.T, client llm.Client, slackSvc *slack.Service) (*Scheduler, *store.Store, *events.Bus) {
	t.Helper()
	db := util.SetupTestDatabase(t)
	st := store.New(db)
	bus := events.NewBus()
	t.Cleanup(bus.Close)
	pub := events.NewPublisher(bus)

	analyzer := NewAnalyzer(client, agent.NewToolset(st, slackSvc))
	s := NewScheduler(st, bus, pub, slackSvc, analyzer, Config{
		CronSpec:  "0 */5 * * *",
		MinEvents: 5,
		Timeout:   30 * time.Second,
	})
	return s, st, bus
}

func seedUserEvents(t *testing.T, st *store.Store, userID string, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		e := &models.Event{
			ID:        uuid.New().String(),
			SessionID: "sess-" + userID,
			Timestamp: time.Now().UnixMilli(),
			Source:    models.SourceClaudeCode,
			Category:  models.CategoryMessage,
			Type:      models.TypeMessageUser,
			Role:      models.StrPtr(models.RoleUser),
			Text:      models.StrPtr("run the tests again"),
		}
		_, err := st.Append(ctx, &userID, e)
		require.NoError(t, err)
	}
}

// newFakeSlack returns a Service backed by a stub chat.postMessage endpoint.
func newFakeSlack(t *testing.T) *slack.Service {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok": true, "channel": "C123", "ts": "1724500000.000100",
		})
	}))
	t.Cleanup(server.Close)
	client := slack.NewClientWithAPIURL("xoxb-test", "C123", server.URL+"/")
	return slack.NewServiceWithClient(client, "")
}

func TestSchedulerRunOnce(t *testing.T) {
	ctx := context.Background()
	client := &scriptedClient{responses: []*llm.ChatResponse{
		{StopReason: llm.StopReasonEndTurn, Text: resultJSON, Usage: llm.Usage{InputTokens: 500, OutputTokens: 120}},
	}}
	s, st, bus := newTestScheduler(t, client, nil)
	seedUserEvents(t, st, "u1", 6)

	sub := bus.Subscribe(events.GlobalTopic)
	defer sub.Close()

	s.RunOnce(ctx)

	insights, err := st.ListInsights(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, insights, 1)
	insight := insights[0]
	assert.Contains(t, insight.Content, "rerun failing tests")
	assert.Equal(t, 2, insight.SessionsAnalyzed)
	// Questions exist but no question channel is configured.
	assert.Equal(t, models.PhaseFinalNoAnswer, insight.Phase)
	assert.Equal(t, true, insight.Meta["success"])
	assert.EqualValues(t, 500, insight.Meta["inputTokens"])
	assert.EqualValues(t, 120, insight.Meta["outputTokens"])

	questions, err := st.ListInsightQuestions(ctx, insight.ID)
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Empty(t, questions[0].ThreadTS)

	state, err := st.GetAnalysisState(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Positive(t, state.LastEventTimestamp)

	// insight:new went out on the global topic.
	found := false
	for len(sub.C) > 0 {
		msg := <-sub.C
		if msg.Type == events.TypeInsightNew {
			found = true
		}
	}
	assert.True(t, found, "expected an insight:new frame")

	// No new events since the watermark: the next run is a no-op.
	s.RunOnce(ctx)
	insights, err = st.ListInsights(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, insights, 1)
}

func TestSchedulerSkipsBelowThreshold(t *testing.T) {
	ctx := context.Background()
	client := &scriptedClient{responses: []*llm.ChatResponse{
		{StopReason: llm.StopReasonEndTurn, Text: resultJSON},
	}}
	s, st, _ := newTestScheduler(t, client, nil)
	seedUserEvents(t, st, "u1", 3)

	s.RunOnce(ctx)

	insights, err := st.ListInsights(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, insights)
	assert.Empty(t, client.requests)
}

func TestSchedulerOverlapGuard(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ChatResponse{
		{StopReason: llm.StopReasonEndTurn, Text: resultJSON},
	}}
	s, st, _ := newTestScheduler(t, client, nil)
	seedUserEvents(t, st, "u1", 6)

	s.running.Lock()
	s.RunOnce(context.Background())
	s.running.Unlock()

	insights, err := st.ListInsights(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, insights, "overlapping run must be skipped")
}

func TestSchedulerQuestionsPostedToChannel(t *testing.T) {
	ctx := context.Background()
	client := &scriptedClient{responses: []*llm.ChatResponse{
		{StopReason: llm.StopReasonEndTurn, Text: resultJSON},
	}}
	s, st, _ := newTestScheduler(t, client, newFakeSlack(t))
	seedUserEvents(t, st, "u1", 6)

	s.RunOnce(ctx)

	insights, err := st.ListInsights(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, insights, 1)
	assert.Equal(t, models.PhasePreliminary, insights[0].Phase)

	questions, err := st.ListInsightQuestions(ctx, insights[0].ID)
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, "1724500000.000100", questions[0].ThreadTS)
}

func TestSchedulerRefinement(t *testing.T) {
	ctx := context.Background()
	refinedJSON := `{
	  "summary": "Refined: the flakiness was local-only.",
	  "userIntent": "fix a flaky integration test",
	  "frustrationPoints": [],
	  "improvements": ["pin the test database version"],
	  "followUpActions": [{"action": "pin postgres image", "priority": "medium", "category": "tooling"}],
	  "stats": {"sessionsAnalyzed": 2, "eventsAnalyzed": 40}
	}`
	client := &scriptedClient{responses: []*llm.ChatResponse{
		{StopReason: llm.StopReasonEndTurn, Text: resultJSON},
		{StopReason: llm.StopReasonEndTurn, Text: refinedJSON},
	}}
	s, st, bus := newTestScheduler(t, client, newFakeSlack(t))
	seedUserEvents(t, st, "u1", 6)

	s.RunOnce(ctx)
	insights, err := st.ListInsights(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, insights, 1)
	insightID := insights[0].ID

	questions, err := st.ListInsightQuestions(ctx, insightID)
	require.NoError(t, err)
	require.Len(t, questions, 1)

	require.NoError(t, st.AnswerInsightQuestion(ctx, questions[0].ID, "local only"))

	sub := bus.Subscribe(events.GlobalTopic)
	defer sub.Close()

	require.NoError(t, s.refine(ctx, insightID))

	refined, err := st.GetInsight(ctx, insightID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseRefined, refined.Phase)
	assert.Equal(t, 1, refined.Round)
	assert.Equal(t, 1, refined.AnswersReceived)
	assert.Contains(t, refined.Content, "Refined")

	found := false
	for len(sub.C) > 0 {
		msg := <-sub.C
		if msg.Type == events.TypeInsightUpdated {
			found = true
		}
	}
	assert.True(t, found, "expected an insight:updated frame")

	// A replayed thread:ready for the same answers is a no-op.
	require.NoError(t, s.refine(ctx, insightID))
	again, err := st.GetInsight(ctx, insightID)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Round)
}

func TestSchedulerMultiRoundRefinement(t *testing.T) {
	ctx := context.Background()
	roundOneJSON := `{
	  "summary": "Sharper: the flakiness tracks the local database version.",
	  "userIntent": "fix a flaky integration test",
	  "frustrationPoints": ["same command failed 6 times"],
	  "improvements": ["pin the test database version"],
	  "followUpActions": [{"action": "pin postgres image", "priority": "medium", "category": "tooling"}],
	  "questions": ["Which postgres version does CI run?"],
	  "stats": {"sessionsAnalyzed": 2, "eventsAnalyzed": 40}
	}`
	finalJSON := `{
	  "summary": "Final: CI runs 17, local ran 15. Pin both.",
	  "userIntent": "fix a flaky integration test",
	  "frustrationPoints": [],
	  "improvements": ["pin postgres 17 everywhere"],
	  "followUpActions": [{"action": "pin postgres image", "priority": "high", "category": "tooling"}],
	  "stats": {"sessionsAnalyzed": 2, "eventsAnalyzed": 40}
	}`
	client := &scriptedClient{responses: []*llm.ChatResponse{
		{StopReason: llm.StopReasonEndTurn, Text: resultJSON},
		{StopReason: llm.StopReasonEndTurn, Text: roundOneJSON},
		{StopReason: llm.StopReasonEndTurn, Text: finalJSON},
	}}
	s, st, _ := newTestScheduler(t, client, newFakeSlack(t))
	seedUserEvents(t, st, "u1", 6)

	s.RunOnce(ctx)
	insights, err := st.ListInsights(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, insights, 1)
	insightID := insights[0].ID

	questions, err := st.ListInsightQuestions(ctx, insightID)
	require.NoError(t, err)
	require.Len(t, questions, 1)
	require.NoError(t, st.AnswerInsightQuestion(ctx, questions[0].ID, "local only"))

	// Round 1 asks a new question: still preliminary, question posted.
	require.NoError(t, s.refine(ctx, insightID))

	afterRoundOne, err := st.GetInsight(ctx, insightID)
	require.NoError(t, err)
	assert.Equal(t, models.PhasePreliminary, afterRoundOne.Phase)
	assert.Equal(t, 1, afterRoundOne.Round)
	assert.Contains(t, afterRoundOne.Content, "Sharper")

	questions, err = st.ListInsightQuestions(ctx, insightID)
	require.NoError(t, err)
	require.Len(t, questions, 2)
	var newQuestion *models.InsightQuestion
	for _, q := range questions {
		if q.Answer == "" {
			newQuestion = q
		}
	}
	require.NotNil(t, newQuestion)
	assert.Equal(t, "1724500000.000100", newQuestion.ThreadTS)

	// Unanswered new question blocks the next round.
	require.NoError(t, s.refine(ctx, insightID))
	blocked, err := st.GetInsight(ctx, insightID)
	require.NoError(t, err)
	assert.Equal(t, 1, blocked.Round)

	// Round 2 returns no questions: the insight settles as refined.
	require.NoError(t, st.AnswerInsightQuestion(ctx, newQuestion.ID, "postgres 17"))
	require.NoError(t, s.refine(ctx, insightID))

	final, err := st.GetInsight(ctx, insightID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseRefined, final.Phase)
	assert.Equal(t, 2, final.Round)
	assert.Equal(t, 2, final.AnswersReceived)
	assert.Contains(t, final.Content, "Final")
}

func TestSchedulerRefinementRoundCap(t *testing.T) {
	ctx := context.Background()
	client := &scriptedClient{responses: []*llm.ChatResponse{
		{StopReason: llm.StopReasonEndTurn, Text: resultJSON},
	}}
	s, st, _ := newTestScheduler(t, client, newFakeSlack(t))
	seedUserEvents(t, st, "u1", 6)

	s.RunOnce(ctx)
	insights, err := st.ListInsights(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, insights, 1)
	insight := insights[0]

	questions, err := st.ListInsightQuestions(ctx, insight.ID)
	require.NoError(t, err)
	require.Len(t, questions, 1)
	require.NoError(t, st.AnswerInsightQuestion(ctx, questions[0].ID, "local only"))

	// The analyzer keeps asking (scripted result always carries a question),
	// but the last allowed round settles the insight anyway.
	insight.Round = models.MaxRefinementRounds - 1
	require.NoError(t, st.UpdateInsight(ctx, insight))

	require.NoError(t, s.refine(ctx, insight.ID))

	capped, err := st.GetInsight(ctx, insight.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseRefined, capped.Phase)
	assert.Equal(t, models.MaxRefinementRounds, capped.Round)
}
