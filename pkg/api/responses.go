package api

import "github.com/agentflow-dev/agentflow/pkg/models"

// IngestResponse acknowledges a recorded event.
type IngestResponse struct {
	OK      bool   `json:"ok"`
	EventID string `json:"eventId"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// UserResponse is the safe projection of a principal.
type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// AuthSessionResponse is returned by sign-in and get-session.
type AuthSessionResponse struct {
	User UserResponse `json:"user"`
}

// CreateAPIKeyResponse returns the plaintext key exactly once.
type CreateAPIKeyResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Key  string `json:"key"`
}

// InsightDetailResponse is an insight with its follow-up questions.
type InsightDetailResponse struct {
	*models.Insight
	Questions []*models.InsightQuestion `json:"questions"`
}
