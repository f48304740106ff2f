// Package cron schedules user-defined prompts and records each run as a
// synthetic session so the dashboard replays it like any live agent session.
package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agentflow-dev/agentflow/pkg/agent"
	"github.com/agentflow-dev/agentflow/pkg/ingest"
	"github.com/agentflow-dev/agentflow/pkg/llm"
	"github.com/agentflow-dev/agentflow/pkg/models"
	"github.com/agentflow-dev/agentflow/pkg/normalize"
)

// maxToolIterations bounds the executor tool loop per run.
const maxToolIterations = 15

const executorMaxTokens = 4096

const executorSystem = `You are a scheduled assistant running inside a coding
observability service. Execute the user's standing instruction using the
available tools. The run_sql tool queries the session database read-only;
get_schema describes it. Finish with a short plain-text report of what you
found or did.`

// Executor runs one cron job as a tool loop, recording every step as
// session events through the ingest pipeline.
type Executor struct {
	recorder *ingest.Recorder
	client   llm.Client
	tools    *agent.Toolset
}

// NewExecutor creates an Executor.
func NewExecutor(recorder *ingest.Recorder, client llm.Client, tools *agent.Toolset) *Executor {
	return &Executor{recorder: recorder, client: client, tools: tools}
}

// Execute runs the job and returns the synthetic session id and the final
// assistant text. The session always gets a terminal event: session.end on
// success, error otherwise.
func (e *Executor) Execute(ctx context.Context, job *models.CronJob) (string, string, error) {
	sessionID := fmt.Sprintf("cron-%s-%d", job.ID, time.Now().UnixMilli())

	err := e.emit(ctx, job, &models.Event{
		SessionID: sessionID,
		Category:  models.CategorySession,
		Type:      models.TypeSessionStart,
		Meta: map[string]any{
			"title": job.Name,
			"cronJob": map[string]any{
				"id":       job.ID,
				"name":     job.Name,
				"schedule": job.CronExpression,
			},
		},
	})
	if err != nil {
		return sessionID, "", err
	}

	err = e.emit(ctx, job, &models.Event{
		SessionID: sessionID,
		Category:  models.CategoryMessage,
		Type:      models.TypeMessageUser,
		Role:      models.StrPtr(models.RoleUser),
		Text:      models.StrPtr(job.Prompt),
	})
	if err != nil {
		return sessionID, "", err
	}

	summary, loopErr := e.runLoop(ctx, job, sessionID)
	if loopErr != nil {
		e.emitError(ctx, job, sessionID, loopErr)
		return sessionID, "", loopErr
	}

	err = e.emit(ctx, job, &models.Event{
		SessionID: sessionID,
		Category:  models.CategorySession,
		Type:      models.TypeSessionEnd,
	})
	if err != nil {
		return sessionID, summary, err
	}
	return sessionID, summary, nil
}

func (e *Executor) runLoop(ctx context.Context, job *models.CronJob, sessionID string) (string, error) {
	messages := []llm.Message{{Role: llm.RoleUser, Text: job.Prompt}}

	for i := 0; i < maxToolIterations; i++ {
		resp, err := e.client.Chat(ctx, &llm.ChatRequest{
			System:    executorSystem,
			Messages:  messages,
			Tools:     e.tools.Tools(),
			MaxTokens: executorMaxTokens,
		})
		if err != nil {
			return "", fmt.Errorf("cron chat failed: %w", err)
		}

		if resp.StopReason != llm.StopReasonToolUse {
			err := e.emit(ctx, job, &models.Event{
				SessionID: sessionID,
				Category:  models.CategoryMessage,
				Type:      models.TypeMessageAssistant,
				Role:      models.StrPtr(models.RoleAssistant),
				Text:      models.StrPtr(resp.Text),
			})
			return resp.Text, err
		}

		results := make([]llm.ToolResult, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			if err := e.emit(ctx, job, &models.Event{
				SessionID: sessionID,
				Category:  models.CategoryTool,
				Type:      models.TypeToolStart,
				ToolName:  models.StrPtr(call.Name),
				ToolInput: call.Input,
			}); err != nil {
				return "", err
			}

			result := e.tools.Dispatch(ctx, call)
			results = append(results, result)

			end := &models.Event{
				SessionID:  sessionID,
				Category:   models.CategoryTool,
				Type:       models.TypeToolEnd,
				ToolName:   models.StrPtr(call.Name),
				ToolOutput: normalize.TruncateToolOutput(result.Content),
			}
			if result.IsError {
				end.Error = models.StrPtr(result.Content)
			}
			if err := e.emit(ctx, job, end); err != nil {
				return "", err
			}
		}

		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, Text: resp.Text, ToolCalls: resp.ToolCalls},
			llm.Message{Role: llm.RoleUser, ToolResults: results},
		)
	}

	return "", fmt.Errorf("cron run exceeded %d tool iterations", maxToolIterations)
}

// emit stamps and records one synthetic event.
func (e *Executor) emit(ctx context.Context, job *models.CronJob, event *models.Event) error {
	event.ID = uuid.New().String()
	event.Timestamp = time.Now().UnixMilli()
	event.Source = models.SourceCron
	_, err := e.recorder.Record(ctx, &job.UserID, event)
	return err
}

// emitError records the failure as a session event. Best effort: the run
// already failed, a second failure here is only logged by the recorder.
func (e *Executor) emitError(ctx context.Context, job *models.CronJob, sessionID string, runErr error) {
	_ = e.emit(ctx, job, &models.Event{
		SessionID: sessionID,
		Category:  models.CategoryError,
		Type:      models.TypeError,
		Error:     models.StrPtr(runErr.Error()),
	})
}
