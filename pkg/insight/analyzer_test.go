package insight

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow-dev/agentflow/pkg/agent"
	"github.com/agentflow-dev/agentflow/pkg/llm"
	"github.com/agentflow-dev/agentflow/pkg/models"
)

// scriptedClient replays canned responses in order, repeating the last one.
type scriptedClient struct {
	responses []*llm.ChatResponse
	err       error
	requests  []*llm.ChatRequest
}

func (c *scriptedClient) Chat(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	c.requests = append(c.requests, req)
	if c.err != nil {
		return nil, c.err
	}
	idx := len(c.requests) - 1
	if idx >= len(c.responses) {
		idx = len(c.responses) - 1
	}
	return c.responses[idx], nil
}

type fakeRunner struct {
	rows []map[string]any
	got  []string
}

func (f *fakeRunner) RunReadOnlyQuery(_ context.Context, query string) ([]map[string]any, error) {
	f.got = append(f.got, query)
	return f.rows, nil
}

const resultJSON = `{
  "summary": "You rerun failing tests without reading the output.",
  "userIntent": "fix a flaky integration test",
  "frustrationPoints": ["same command failed 6 times"],
  "improvements": ["pipe test output to a file"],
  "followUpActions": [{"action": "add a test log alias", "priority": "high", "category": "tooling"}],
  "questions": ["Was the flaky test in CI or local?"],
  "stats": {"sessionsAnalyzed": 2, "eventsAnalyzed": 40}
}`

func TestAnalyzerRunsToolLoop(t *testing.T) {
	runner := &fakeRunner{rows: []map[string]any{{"count": int64(40)}}}
	client := &scriptedClient{responses: []*llm.ChatResponse{
		{
			StopReason: llm.StopReasonToolUse,
			ToolCalls: []llm.ToolCall{
				{ID: "t1", Name: agent.ToolRunSQL, Input: map[string]any{"query": "SELECT count(*) FROM events"}},
			},
			Usage: llm.Usage{InputTokens: 120, OutputTokens: 15},
		},
		{StopReason: llm.StopReasonEndTurn, Text: resultJSON, Usage: llm.Usage{InputTokens: 300, OutputTokens: 80}},
	}}
	a := NewAnalyzer(client, agent.NewToolset(runner, nil))

	result, err := a.Analyze(context.Background(), "u1", 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"SELECT count(*) FROM events"}, runner.got)
	assert.Equal(t, 2, result.Stats.SessionsAnalyzed)
	assert.Len(t, result.Questions, 1)
	assert.Equal(t, "tooling", result.FollowUpActions[0].Category)

	// Token usage sums across the tool loop.
	assert.Equal(t, int64(420), result.Usage.InputTokens)
	assert.Equal(t, int64(95), result.Usage.OutputTokens)

	// Second request must carry the tool call and its result back.
	require.Len(t, client.requests, 2)
	second := client.requests[1]
	require.Len(t, second.Messages, 3)
	assert.Equal(t, llm.RoleAssistant, second.Messages[1].Role)
	require.Len(t, second.Messages[2].ToolResults, 1)
	assert.Equal(t, "t1", second.Messages[2].ToolResults[0].ToolCallID)
}

func TestAnalyzerIterationCap(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ChatResponse{
		{
			StopReason: llm.StopReasonToolUse,
			ToolCalls:  []llm.ToolCall{{ID: "t1", Name: agent.ToolGetSchema}},
		},
	}}
	a := NewAnalyzer(client, agent.NewToolset(&fakeRunner{}, nil))

	_, err := a.Analyze(context.Background(), "u1", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tool iterations")
	assert.Len(t, client.requests, maxToolIterations)
}

func TestAnalyzerChatError(t *testing.T) {
	client := &scriptedClient{err: errors.New("api down")}
	a := NewAnalyzer(client, agent.NewToolset(&fakeRunner{}, nil))

	_, err := a.Analyze(context.Background(), "u1", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api down")
}

func TestAnalyzerRefinePrompt(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ChatResponse{
		{StopReason: llm.StopReasonEndTurn, Text: resultJSON},
	}}
	a := NewAnalyzer(client, agent.NewToolset(&fakeRunner{}, nil))

	insight := &models.Insight{UserID: "u1", Content: "previous finding"}
	questions := []*models.InsightQuestion{
		{Question: "CI or local?", Answer: "local"},
	}

	_, err := a.Refine(context.Background(), insight, questions)
	require.NoError(t, err)

	prompt := client.requests[0].Messages[0].Text
	assert.Contains(t, prompt, "previous finding")
	assert.Contains(t, prompt, "Q: CI or local?")
	assert.Contains(t, prompt, "A: local")
}

func TestParseResult(t *testing.T) {
	t.Run("plain json", func(t *testing.T) {
		result, err := parseResult(resultJSON)
		require.NoError(t, err)
		assert.Contains(t, result.Summary, "rerun failing tests")
	})

	t.Run("fenced json", func(t *testing.T) {
		result, err := parseResult("```json\n" + resultJSON + "\n```")
		require.NoError(t, err)
		assert.Contains(t, result.Summary, "rerun failing tests")
	})

	t.Run("prose around json", func(t *testing.T) {
		result, err := parseResult("Here is the analysis:\n" + resultJSON)
		require.NoError(t, err)
		assert.NotEmpty(t, result.Summary)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := parseResult("not json")
		assert.Error(t, err)
	})

	t.Run("missing summary", func(t *testing.T) {
		_, err := parseResult(`{"stats":{}}`)
		assert.Error(t, err)
	})
}

func TestRenderContent(t *testing.T) {
	result := &Result{
		Summary:           "Top finding.",
		UserIntent:        "ship a feature",
		FrustrationPoints: []string{"stuck on flaky test"},
		Improvements:      []string{"read the logs"},
	}
	content := renderContent(result)
	assert.Contains(t, content, "Top finding.")
	assert.Contains(t, content, "**Intent:** ship a feature")
	assert.Contains(t, content, "- stuck on flaky test")
	assert.Contains(t, content, "- read the logs")
}

func TestActionCategories(t *testing.T) {
	actions := []models.FollowUpAction{
		{Category: "tooling"},
		{Category: "workflow"},
		{Category: "tooling"},
		{Category: ""},
	}
	assert.Equal(t, []string{"tooling", "workflow"}, actionCategories(actions))
}
