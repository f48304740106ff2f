// Package insight runs the scheduled behavioral analysis over recorded
// sessions and manages the question/refinement lifecycle.
package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentflow-dev/agentflow/pkg/agent"
	"github.com/agentflow-dev/agentflow/pkg/llm"
	"github.com/agentflow-dev/agentflow/pkg/models"
)

// maxToolIterations bounds the analyzer tool loop. Each iteration is one
// model call; tool results feed the next.
const maxToolIterations = 15

const analyzerMaxTokens = 8192

// Result is the fixed JSON document the analyzer must produce.
type Result struct {
	Summary           string                  `json:"summary"`
	UserIntent        string                  `json:"userIntent"`
	FrustrationPoints []string                `json:"frustrationPoints"`
	Improvements      []string                `json:"improvements"`
	FollowUpActions   []models.FollowUpAction `json:"followUpActions"`
	Questions         []string                `json:"questions,omitempty"`
	Stats             ResultStats             `json:"stats"`

	// Usage totals the model's token consumption across the tool loop.
	// Filled by the runner, not the model.
	Usage llm.Usage `json:"-"`
}

// ResultStats is the analyzer's own accounting of what it looked at.
type ResultStats struct {
	SessionsAnalyzed int `json:"sessionsAnalyzed"`
	EventsAnalyzed   int `json:"eventsAnalyzed"`
}

// Analyzer drives the tool-calling chat client over the event store.
type Analyzer struct {
	client llm.Client
	tools  *agent.Toolset
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(client llm.Client, tools *agent.Toolset) *Analyzer {
	return &Analyzer{client: client, tools: tools}
}

const analyzerSystem = `You are a coding-workflow analyst. You inspect recorded
AI-agent coding sessions stored in a PostgreSQL database and produce one
concise behavioral insight for a single user.

Use the run_sql tool to inspect sessions and events (call get_schema first
if you need the table layout). Look for repeated friction: failing commands
rerun unchanged, long tool loops, abandoned sessions, error spikes.

When you are done, respond with ONLY a JSON object, no prose and no code
fences, in exactly this shape:

{
  "summary": "markdown summary of the key finding",
  "userIntent": "what the user was trying to accomplish",
  "frustrationPoints": ["..."],
  "improvements": ["..."],
  "followUpActions": [{"action": "...", "priority": "low|medium|high", "category": "tooling|workflow|knowledge|other"}],
  "questions": ["optional clarifying questions for the user"],
  "stats": {"sessionsAnalyzed": 0, "eventsAnalyzed": 0}
}

Ask questions only when an answer would materially change the insight.`

// Analyze runs a fresh analysis for one user over events newer than sinceMs.
func (a *Analyzer) Analyze(ctx context.Context, userID string, sinceMs int64) (*Result, error) {
	prompt := fmt.Sprintf(
		"Analyze the coding sessions of user %q. Only consider events with timestamp > %d. Current stats and content are in the database.",
		userID, sinceMs)
	return a.run(ctx, prompt)
}

// Refine re-runs the analysis after the user answered the follow-up
// questions. The previous insight and the answers anchor the new round.
func (a *Analyzer) Refine(ctx context.Context, insight *models.Insight, questions []*models.InsightQuestion) (*Result, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Refine a previous insight for user %q using their answers.\n\nPrevious insight:\n%s\n\nAnswers:\n",
		insight.UserID, insight.Content)
	for _, q := range questions {
		fmt.Fprintf(&b, "Q: %s\nA: %s\n", q.Question, q.Answer)
	}
	b.WriteString("\nQuery the database again only if the answers point somewhere new. Ask further questions only if an answer leaves a gap that would materially change the insight.")
	return a.run(ctx, b.String())
}

// run executes the tool loop until the model stops calling tools, then
// parses the final text as a Result.
func (a *Analyzer) run(ctx context.Context, prompt string) (*Result, error) {
	messages := []llm.Message{{Role: llm.RoleUser, Text: prompt}}
	var usage llm.Usage

	for i := 0; i < maxToolIterations; i++ {
		resp, err := a.client.Chat(ctx, &llm.ChatRequest{
			System:    analyzerSystem,
			Messages:  messages,
			Tools:     a.tools.Tools(),
			MaxTokens: analyzerMaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("analyzer chat failed: %w", err)
		}
		usage.InputTokens += resp.Usage.InputTokens
		usage.OutputTokens += resp.Usage.OutputTokens

		if resp.StopReason != llm.StopReasonToolUse {
			result, err := parseResult(resp.Text)
			if err != nil {
				return nil, err
			}
			result.Usage = usage
			return result, nil
		}

		results := make([]llm.ToolResult, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			results = append(results, a.tools.Dispatch(ctx, call))
		}
		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, Text: resp.Text, ToolCalls: resp.ToolCalls},
			llm.Message{Role: llm.RoleUser, ToolResults: results},
		)
	}

	return nil, fmt.Errorf("analyzer exceeded %d tool iterations", maxToolIterations)
}

// parseResult decodes the analyzer's final JSON, tolerating code fences the
// model was told not to emit but sometimes does anyway.
func parseResult(text string) (*Result, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	// The model sometimes wraps the JSON in prose; cut to the outermost braces.
	if start := strings.Index(cleaned, "{"); start > 0 {
		if end := strings.LastIndex(cleaned, "}"); end > start {
			cleaned = cleaned[start : end+1]
		}
	}

	var result Result
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, fmt.Errorf("analyzer returned invalid JSON: %w", err)
	}
	if result.Summary == "" {
		return nil, fmt.Errorf("analyzer result missing summary")
	}
	return &result, nil
}
