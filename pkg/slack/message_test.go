package slack

import (
	"context"
	"strings"
	"testing"

	goslack "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow-dev/agentflow/pkg/models"
)

func sectionText(t *testing.T, block goslack.Block) string {
	t.Helper()
	section, ok := block.(*goslack.SectionBlock)
	require.True(t, ok, "expected section block, got %T", block)
	require.NotNil(t, section.Text)
	return section.Text.Text
}

func TestBuildQuestionMessage(t *testing.T) {
	blocks := BuildQuestionMessage("Which repo was that?")
	require.Len(t, blocks, 1)
	text := sectionText(t, blocks[0])
	assert.Contains(t, text, "has a question")
	assert.Contains(t, text, "Which repo was that?")
}

func TestBuildInsightMessage(t *testing.T) {
	insight := &models.Insight{
		ID:               "i1",
		Content:          "You rerun failing tests without reading output.",
		SessionsAnalyzed: 3,
		EventsAnalyzed:   80,
		FollowUpActions: []models.FollowUpAction{
			{Action: "pipe test output to a file", Priority: "high", Category: "workflow"},
		},
	}
	blocks := BuildInsightMessage(insight)
	require.Len(t, blocks, 3)
	assert.Contains(t, sectionText(t, blocks[0]), "3 sessions, 80 events")
	assert.Contains(t, sectionText(t, blocks[1]), "rerun failing tests")
	actions := sectionText(t, blocks[2])
	assert.Contains(t, actions, "[high/workflow]")
	assert.Contains(t, actions, "pipe test output")
}

func TestBuildCronRunMessage(t *testing.T) {
	job := &models.CronJob{ID: "j1", Name: "nightly check"}

	blocks := BuildCronRunMessage(job, "sess-1", models.RunStatusSuccess, "All green.", "https://flow.example.com")
	require.Len(t, blocks, 2)
	text := sectionText(t, blocks[0])
	assert.Contains(t, text, "nightly check")
	assert.Contains(t, text, "success")
	assert.Contains(t, text, "https://flow.example.com/sessions/sess-1")

	blocks = BuildCronRunMessage(job, "sess-1", models.RunStatusFailed, "", "")
	require.Len(t, blocks, 1)
	text = sectionText(t, blocks[0])
	assert.Contains(t, text, ":x:")
	assert.NotContains(t, text, "View session")
}

func TestTruncateBlockText(t *testing.T) {
	long := strings.Repeat("x", maxBlockTextLength+500)
	got := truncateBlockText(long)
	assert.Len(t, got, maxBlockTextLength+len("…"))

	short := "fine"
	assert.Equal(t, short, truncateBlockText(short))
}

func TestNilServiceIsNoOp(t *testing.T) {
	var s *Service
	assert.False(t, s.Available())

	ts, err := s.PostQuestion(context.Background(), "q")
	assert.NoError(t, err)
	assert.Empty(t, ts)

	s.NotifyInsight(context.Background(), &models.Insight{})
	s.NotifyCronRun(context.Background(), &models.CronJob{}, "s", models.RunStatusSuccess, "")
}
