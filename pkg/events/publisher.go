package events

import (
	"encoding/json"
	"fmt"

	"github.com/agentflow-dev/agentflow/pkg/models"
)

// Publisher emits typed frames onto the bus. Each public method accepts a
// specific payload — see payloads.go — marshals it once and routes it to
// the session topic, the global topic, or both.
type Publisher struct {
	bus *Bus
}

// NewPublisher creates a Publisher over a bus.
func NewPublisher(bus *Bus) *Publisher {
	return &Publisher{bus: bus}
}

// PublishEvent broadcasts an appended event on its session topic and the
// updated session summary on the global topic. This is the fan-out step of
// every append, whether it came from ingest, insight or cron.
func (p *Publisher) PublishEvent(event *models.Event, session *models.Session) error {
	eventJSON, err := json.Marshal(EventPayload{
		Type:      TypeEvent,
		SessionID: event.SessionID,
		Event:     event,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal EventPayload: %w", err)
	}
	p.bus.Publish(SessionTopic(event.SessionID), Message{
		Type:    TypeEvent,
		Seq:     event.Seq,
		Payload: eventJSON,
	})

	return p.PublishSessionUpdate(session)
}

// PublishSessionUpdate broadcasts a session summary on the global topic.
func (p *Publisher) PublishSessionUpdate(session *models.Session) error {
	payloadJSON, err := json.Marshal(SessionUpdatePayload{
		Type:    TypeSessionUpdate,
		Session: session,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal SessionUpdatePayload: %w", err)
	}
	p.bus.Publish(GlobalTopic, Message{Type: TypeSessionUpdate, Payload: payloadJSON})
	return nil
}

// PublishSessionDeleted announces an admin delete on the global topic.
func (p *Publisher) PublishSessionDeleted(sessionID string) error {
	payloadJSON, err := json.Marshal(SessionDeletedPayload{
		Type:      TypeSessionDeleted,
		SessionID: sessionID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal SessionDeletedPayload: %w", err)
	}
	p.bus.Publish(GlobalTopic, Message{Type: TypeSessionDeleted, Payload: payloadJSON})
	return nil
}

// PublishSessionsCleared announces a full purge on the global topic.
func (p *Publisher) PublishSessionsCleared() error {
	payloadJSON, err := json.Marshal(SessionsClearedPayload{Type: TypeSessionsCleared})
	if err != nil {
		return fmt.Errorf("failed to marshal SessionsClearedPayload: %w", err)
	}
	p.bus.Publish(GlobalTopic, Message{Type: TypeSessionsCleared, Payload: payloadJSON})
	return nil
}

// PublishInsight broadcasts insight:new or insight:updated on the global
// topic, depending on whether this is the first time the insight is seen.
func (p *Publisher) PublishInsight(insight *models.Insight, updated bool) error {
	frameType := TypeInsightNew
	if updated {
		frameType = TypeInsightUpdated
	}
	payloadJSON, err := json.Marshal(InsightPayload{Type: frameType, Insight: insight})
	if err != nil {
		return fmt.Errorf("failed to marshal InsightPayload: %w", err)
	}
	p.bus.Publish(GlobalTopic, Message{Type: frameType, Payload: payloadJSON})
	return nil
}

// PublishInsightError announces a failed analysis run on the global topic.
func (p *Publisher) PublishInsightError(userID string, analyzeErr error) error {
	payloadJSON, err := json.Marshal(InsightErrorPayload{
		Type:   TypeInsightError,
		UserID: userID,
		Error:  analyzeErr.Error(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal InsightErrorPayload: %w", err)
	}
	p.bus.Publish(GlobalTopic, Message{Type: TypeInsightError, Payload: payloadJSON})
	return nil
}

// PublishCronRun announces a completed cron run on the global topic.
func (p *Publisher) PublishCronRun(job *models.CronJob, sessionID, status string) error {
	payloadJSON, err := json.Marshal(CronRunPayload{
		Type:      TypeCronRun,
		JobID:     job.ID,
		JobName:   job.Name,
		SessionID: sessionID,
		Status:    status,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal CronRunPayload: %w", err)
	}
	p.bus.Publish(GlobalTopic, Message{Type: TypeCronRun, Payload: payloadJSON})
	return nil
}

// PublishThreadReady signals the refinement loop that a question has an
// answer. Routed on the global topic; the gateway filters it out.
func (p *Publisher) PublishThreadReady(questionID, insightID string) error {
	payloadJSON, err := json.Marshal(ThreadReadyPayload{
		Type:       TypeThreadReady,
		QuestionID: questionID,
		InsightID:  insightID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal ThreadReadyPayload: %w", err)
	}
	p.bus.Publish(GlobalTopic, Message{Type: TypeThreadReady, Payload: payloadJSON})
	return nil
}

// PublishSourceEntry announces one entry ingested from a registered source.
func (p *Publisher) PublishSourceEntry(source, sessionID, eventID string) error {
	payloadJSON, err := json.Marshal(SourceEntryPayload{
		Type:      TypeSourceEntry,
		Source:    source,
		SessionID: sessionID,
		EventID:   eventID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal SourceEntryPayload: %w", err)
	}
	p.bus.Publish(GlobalTopic, Message{Type: TypeSourceEntry, Payload: payloadJSON})
	return nil
}

// PublishSourceStatus reports a source listener lifecycle change.
func (p *Publisher) PublishSourceStatus(source, status string) error {
	payloadJSON, err := json.Marshal(SourceStatusPayload{
		Type:   TypeSourceStatus,
		Source: source,
		Status: status,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal SourceStatusPayload: %w", err)
	}
	p.bus.Publish(GlobalTopic, Message{Type: TypeSourceStatus, Payload: payloadJSON})
	return nil
}

// PublishSourceError reports a source listener failure.
func (p *Publisher) PublishSourceError(source string, srcErr error) error {
	payloadJSON, err := json.Marshal(SourceErrorPayload{
		Type:   TypeSourceError,
		Source: source,
		Error:  srcErr.Error(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal SourceErrorPayload: %w", err)
	}
	p.bus.Publish(GlobalTopic, Message{Type: TypeSourceError, Payload: payloadJSON})
	return nil
}
