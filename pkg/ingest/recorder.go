// Package ingest holds the persist-then-publish step shared by every event
// producer: the HTTP ingest endpoint, the insight scheduler and the cron
// runner all record events through the same path.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/agentflow-dev/agentflow/pkg/events"
	"github.com/agentflow-dev/agentflow/pkg/masking"
	"github.com/agentflow-dev/agentflow/pkg/models"
	"github.com/agentflow-dev/agentflow/pkg/store"
)

// Recorder appends an event to the store and fans it out on the bus.
// The append is the linearization point; fan-out happens only after the
// event is durably committed. Credential masking runs before the append so
// secrets never reach the database or the bus.
type Recorder struct {
	store     *store.Store
	publisher *events.Publisher
	masker    *masking.Service
}

// NewRecorder creates a Recorder.
func NewRecorder(st *store.Store, publisher *events.Publisher) *Recorder {
	return &Recorder{store: st, publisher: publisher, masker: masking.NewService()}
}

// Record persists the event and publishes it on session:<id> plus the
// updated session summary on global. A publish failure is logged, not
// returned: the event is already durable and subscribers reconcile by
// polling.
func (r *Recorder) Record(ctx context.Context, userID *string, event *models.Event) (*models.Session, error) {
	r.maskEvent(event)

	session, err := r.store.Append(ctx, userID, event)
	if err != nil {
		return nil, fmt.Errorf("failed to append event: %w", err)
	}

	if err := r.publisher.PublishEvent(event, session); err != nil {
		slog.Warn("Failed to publish event",
			"session_id", event.SessionID, "event_id", event.ID, "error", err)
	}
	return session, nil
}

// maskEvent masks credentials in every free-text carrying field. Type,
// category and meta keys are producer-controlled enums and stay as-is.
func (r *Recorder) maskEvent(e *models.Event) {
	if e == nil {
		return
	}
	if e.Text != nil {
		masked := r.masker.MaskString(*e.Text)
		e.Text = &masked
	}
	if e.Error != nil {
		masked := r.masker.MaskString(*e.Error)
		e.Error = &masked
	}
	if e.ToolInput != nil {
		e.ToolInput = r.masker.MaskValue(e.ToolInput)
	}
	if e.ToolOutput != nil {
		e.ToolOutput = r.masker.MaskValue(e.ToolOutput)
	}
}

// Store exposes the underlying store for callers that need reads alongside
// recording (the cron executor's SQL tool, the ingest handler's meta merge).
func (r *Recorder) Store() *store.Store {
	return r.store
}

// Publisher exposes the underlying publisher for administrative frames.
func (r *Recorder) Publisher() *events.Publisher {
	return r.publisher
}
