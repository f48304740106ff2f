package events

import (
	"github.com/agentflow-dev/agentflow/pkg/models"
)

// Frame types delivered to realtime subscribers. The gateway forwards these
// verbatim; the dashboard switches on the type field.
const (
	// Sent by the gateway itself
	TypeSessionsList  = "sessions:list"  // snapshot on connect
	TypeSessionEvents = "session:events" // history snapshot on subscribe

	// Published per append
	TypeEvent         = "event"
	TypeSessionUpdate = "session:update"

	// Administrative notifications on the global topic
	TypeSessionDeleted  = "session:deleted"
	TypeSessionsCleared = "sessions:cleared"
	TypeInsightNew      = "insight:new"
	TypeInsightUpdated  = "insight:updated"
	TypeInsightError    = "insight:error"
	TypeCronRun         = "cron:run"

	// Internal: a question thread has an answer ready for refinement
	TypeThreadReady = "thread:ready"

	// Source listener lifecycle
	TypeSourceEntry  = "source:entry"
	TypeSourceStatus = "source:status"
	TypeSourceError  = "source:error"
)

// GlobalTopic carries session summaries and administrative notifications.
const GlobalTopic = "global"

// SessionTopic returns the per-session topic name.
func SessionTopic(sessionID string) string {
	return "session:" + sessionID
}

// EventPayload is the frame for a single appended event.
type EventPayload struct {
	Type      string        `json:"type"` // always TypeEvent
	SessionID string        `json:"sessionId"`
	Event     *models.Event `json:"event"`
}

// SessionUpdatePayload is the session summary broadcast on every append.
type SessionUpdatePayload struct {
	Type    string          `json:"type"` // always TypeSessionUpdate
	Session *models.Session `json:"session"`
}

// SessionDeletedPayload announces an explicit admin delete.
type SessionDeletedPayload struct {
	Type      string `json:"type"` // always TypeSessionDeleted
	SessionID string `json:"sessionId"`
}

// SessionsClearedPayload announces a full purge.
type SessionsClearedPayload struct {
	Type string `json:"type"` // always TypeSessionsCleared
}

// SessionsListPayload is the snapshot the gateway sends on connect.
type SessionsListPayload struct {
	Type     string            `json:"type"` // always TypeSessionsList
	Sessions []*models.Session `json:"sessions"`
}

// SessionEventsPayload is the one-shot history snapshot sent on subscribe.
type SessionEventsPayload struct {
	Type      string          `json:"type"` // always TypeSessionEvents
	SessionID string          `json:"sessionId"`
	Events    []*models.Event `json:"events"`
}

// InsightPayload is the frame for insight:new and insight:updated.
type InsightPayload struct {
	Type    string          `json:"type"`
	Insight *models.Insight `json:"insight"`
}

// InsightErrorPayload announces a failed analysis run.
type InsightErrorPayload struct {
	Type   string `json:"type"` // always TypeInsightError
	UserID string `json:"userId"`
	Error  string `json:"error"`
}

// CronRunPayload announces a completed cron job run.
type CronRunPayload struct {
	Type      string `json:"type"` // always TypeCronRun
	JobID     string `json:"jobId"`
	JobName   string `json:"jobName"`
	SessionID string `json:"sessionId"`
	Status    string `json:"status"` // success | failed
}

// ThreadReadyPayload signals that a question received an answer. Internal
// to the insight refinement loop; never forwarded to clients.
type ThreadReadyPayload struct {
	Type       string `json:"type"` // always TypeThreadReady
	QuestionID string `json:"questionId"`
	InsightID  string `json:"insightId"`
}

// SourceEntryPayload announces one entry ingested from a registered source.
type SourceEntryPayload struct {
	Type      string `json:"type"` // always TypeSourceEntry
	Source    string `json:"source"`
	SessionID string `json:"sessionId"`
	EventID   string `json:"eventId"`
}

// SourceStatusPayload reports a source listener lifecycle change.
type SourceStatusPayload struct {
	Type   string `json:"type"` // always TypeSourceStatus
	Source string `json:"source"`
	Status string `json:"status"` // started | stopped | syncing
}

// SourceErrorPayload reports a source listener failure.
type SourceErrorPayload struct {
	Type   string `json:"type"` // always TypeSourceError
	Source string `json:"source"`
	Error  string `json:"error"`
}
