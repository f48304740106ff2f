package models

// Stored session statuses.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusError     = "error"
	StatusArchived  = "archived"
)

// StaleSessionTimeoutMs is the inactivity window after which a stored
// "active" session reads back as "completed". The stored row is never
// mutated by this rule; it is applied at read time only.
const StaleSessionTimeoutMs = 120_000

// Session groups events by the producer-supplied session id. Rows are
// created lazily on the first event carrying an unknown id.
type Session struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	// StartTime and LastEventTime are milliseconds since epoch.
	StartTime     int64 `json:"startTime"`
	LastEventTime int64 `json:"lastEventTime"`
	// Status is the effective status: the stored value with the stale
	// timeout rule applied at read time.
	Status   string         `json:"status"`
	Metadata map[string]any `json:"metadata,omitempty"`
	UserID   *string        `json:"userId,omitempty"`

	// Derived at read time, never stored.
	EventCount    int    `json:"eventCount"`
	LastEventType string `json:"lastEventType,omitempty"`
	LastEventText string `json:"lastEventText,omitempty"`
}

// ApplyEffectiveStatus overrides a stored "active" status with "completed"
// when the session has been idle past the stale timeout.
func (s *Session) ApplyEffectiveStatus(nowMs int64) {
	if s.Status == StatusActive && nowMs-s.LastEventTime > StaleSessionTimeoutMs {
		s.Status = StatusCompleted
	}
}

// SessionDetail is a session merged with its full event history, as
// returned by GET /api/sessions/:id.
type SessionDetail struct {
	Session
	Events []*Event `json:"events"`
}
