package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow-dev/agentflow/pkg/events"
	"github.com/agentflow-dev/agentflow/pkg/models"
	"github.com/agentflow-dev/agentflow/pkg/store"
	"github.com/agentflow-dev/agentflow/test/util"
)

func newTestRecorder(t *testing.T) (*Recorder, *store.Store, *events.Bus) {
	t.Helper()
	db := util.SetupTestDatabase(t)
	st := store.New(db)
	bus := events.NewBus()
	t.Cleanup(bus.Close)
	return NewRecorder(st, events.NewPublisher(bus)), st, bus
}

func TestRecordPersistsThenPublishes(t *testing.T) {
	r, st, bus := newTestRecorder(t)
	ctx := context.Background()

	sub := bus.Subscribe(events.SessionTopic("s1"))
	defer sub.Close()

	event := &models.Event{
		ID:        uuid.New().String(),
		SessionID: "s1",
		Source:    models.SourceClaudeCode,
		Category:  models.CategoryMessage,
		Type:      models.TypeMessageUser,
		Timestamp: time.Now().UnixMilli(),
		Text:      models.StrPtr("fix the login bug"),
	}

	session, err := r.Record(ctx, nil, event)
	require.NoError(t, err)
	assert.Equal(t, "s1", session.ID)
	assert.NotZero(t, event.Seq)

	select {
	case msg := <-sub.C:
		assert.Equal(t, events.TypeEvent, msg.Type)
	case <-time.After(time.Second):
		t.Fatal("expected an event frame on the session topic")
	}

	stored, err := st.GetSessionEvents(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
}

func TestRecordMasksCredentials(t *testing.T) {
	r, st, _ := newTestRecorder(t)
	ctx := context.Background()

	event := &models.Event{
		ID:        uuid.New().String(),
		SessionID: "s2",
		Source:    models.SourceClaudeCode,
		Category:  models.CategoryTool,
		Type:      models.TypeToolEnd,
		Timestamp: time.Now().UnixMilli(),
		ToolName:  models.StrPtr("Bash"),
		ToolInput: map[string]any{"command": "env"},
		ToolOutput: map[string]any{
			"stdout": "DATABASE_URL=postgres://app:hunter2@db:5432/agentflow\nAPI_KEY=sk-ant-REDACTED",
		},
	}

	_, err := r.Record(ctx, nil, event)
	require.NoError(t, err)

	stored, err := st.GetSessionEvents(ctx, "s2")
	require.NoError(t, err)
	require.Len(t, stored, 1)

	out := stored[0].ToolOutput.(map[string]any)["stdout"].(string)
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "sk-ant-api03")
	assert.Contains(t, out, "***MASKED***")
	assert.Contains(t, out, "***MASKED_API_KEY***")
}
