package slack

import (
	"fmt"
	"strings"

	goslack "github.com/slack-go/slack"

	"github.com/agentflow-dev/agentflow/pkg/models"
)

const maxBlockTextLength = 2900

func sessionURL(sessionID, dashboardURL string) string {
	return fmt.Sprintf("%s/sessions/%s", dashboardURL, sessionID)
}

func markdownSection(text string) goslack.Block {
	return goslack.NewSectionBlock(
		goslack.NewTextBlockObject(goslack.MarkdownType, truncateBlockText(text), false, false),
		nil, nil,
	)
}

func truncateBlockText(text string) string {
	if len(text) > maxBlockTextLength {
		return text[:maxBlockTextLength] + "…"
	}
	return text
}

// BuildQuestionMessage creates Block Kit blocks for an analyzer follow-up
// question. Answers are collected through the dashboard; the thread exists
// so humans can discuss before answering.
func BuildQuestionMessage(question string) []goslack.Block {
	return []goslack.Block{
		markdownSection(":thinking_face: *AgentFlow has a question about your recent sessions*\n\n" + question),
	}
}

// BuildInsightMessage creates Block Kit blocks summarizing a new insight.
func BuildInsightMessage(insight *models.Insight) []goslack.Block {
	header := fmt.Sprintf(":bulb: *New insight* (%d sessions, %d events analyzed)",
		insight.SessionsAnalyzed, insight.EventsAnalyzed)

	blocks := []goslack.Block{
		markdownSection(header),
		markdownSection(insight.Content),
	}
	if len(insight.FollowUpActions) > 0 {
		var b strings.Builder
		b.WriteString("*Follow-up actions*\n")
		for _, action := range insight.FollowUpActions {
			fmt.Fprintf(&b, "• [%s/%s] %s\n", action.Priority, action.Category, action.Action)
		}
		blocks = append(blocks, markdownSection(b.String()))
	}
	return blocks
}

// BuildCronRunMessage creates Block Kit blocks for a cron run notification.
func BuildCronRunMessage(job *models.CronJob, sessionID, status, summary, dashboardURL string) []goslack.Block {
	emoji := ":white_check_mark:"
	if status == models.RunStatusFailed {
		emoji = ":x:"
	}
	text := fmt.Sprintf("%s *%s* finished with status *%s*", emoji, job.Name, status)
	if dashboardURL != "" {
		text += fmt.Sprintf("\n<%s|View session>", sessionURL(sessionID, dashboardURL))
	}

	blocks := []goslack.Block{markdownSection(text)}
	if summary != "" {
		blocks = append(blocks, markdownSection(summary))
	}
	return blocks
}
