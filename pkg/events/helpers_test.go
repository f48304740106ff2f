package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/agentflow-dev/agentflow/pkg/models"
)

func newBusTestEvent(sessionID string) *models.Event {
	return &models.Event{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Timestamp: time.Now().UnixMilli(),
		Source:    models.SourceClaudeCode,
		Category:  models.CategoryMessage,
		Type:      models.TypeMessageUser,
		Seq:       7,
	}
}

func newBusTestSession(id string) *models.Session {
	now := time.Now().UnixMilli()
	return &models.Session{
		ID:            id,
		Source:        models.SourceClaudeCode,
		StartTime:     now,
		LastEventTime: now,
		Status:        models.StatusActive,
		EventCount:    1,
	}
}
