package models

import "time"

// Insight phases. An insight with no outstanding questions carries no phase.
const (
	PhasePreliminary   = "preliminary"
	PhaseRefined       = "refined"
	PhaseFinalNoAnswer = "final-no-answers"
)

// MaxRefinementRounds caps the preliminary → preliminary refinement loop.
const MaxRefinementRounds = 3

// FollowUpAction is a single recommended action inside an insight.
type FollowUpAction struct {
	Action   string `json:"action"`
	Priority string `json:"priority"` // low | medium | high
	Category string `json:"category"` // tooling | workflow | knowledge | other
}

// Insight is one analysis artifact per (user, optional repo, time window).
// Immutable except for in-place refinement after question answers arrive.
type Insight struct {
	ID               string           `json:"id"`
	UserID           string           `json:"userId"`
	Repo             string           `json:"repo,omitempty"`
	Content          string           `json:"content"` // markdown
	Categories       []string         `json:"categories"`
	FollowUpActions  []FollowUpAction `json:"followUpActions"`
	SessionsAnalyzed int              `json:"sessionsAnalyzed"`
	EventsAnalyzed   int              `json:"eventsAnalyzed"`
	Phase            string           `json:"phase,omitempty"`
	Round            int              `json:"round"`
	AnswersReceived  int              `json:"answersReceived"`
	Meta             map[string]any   `json:"meta,omitempty"` // token usage, model, success flag
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// InsightQuestion is a follow-up question the analyzer asked the user.
// ThreadTS holds the question-channel thread id when posted.
type InsightQuestion struct {
	ID         string     `json:"id"`
	InsightID  string     `json:"insightId"`
	Question   string     `json:"question"`
	ThreadTS   string     `json:"threadTs,omitempty"`
	Answer     string     `json:"answer,omitempty"`
	AnsweredAt *time.Time `json:"answeredAt,omitempty"`
}

// AnalysisState tracks per-user analysis progress for the insight scheduler.
type AnalysisState struct {
	UserID             string
	LastAnalyzedAt     time.Time
	LastEventTimestamp int64 // ms since epoch of the newest analyzed event
}
