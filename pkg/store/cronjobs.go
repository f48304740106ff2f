package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/agentflow-dev/agentflow/pkg/models"
)

const cronJobSelect = `
SELECT id, user_id, name, prompt, schedule_text, cron_expression, timezone,
       enabled, notify_slack, last_run_at, last_run_session, last_run_status,
       next_run_at, total_runs, created_at, updated_at
FROM cron_jobs`

// CreateCronJob persists a new scheduled job.
func (s *Store) CreateCronJob(ctx context.Context, job *models.CronJob) error {
	if job.ID == "" {
		return NewValidationError("id", "required")
	}
	if job.Name == "" {
		return NewValidationError("name", "required")
	}
	if job.Prompt == "" {
		return NewValidationError("prompt", "required")
	}
	if job.CronExpression == "" {
		return NewValidationError("cronExpression", "required")
	}

	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cron_jobs (id, user_id, name, prompt, schedule_text, cron_expression,
			timezone, enabled, notify_slack, next_run_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)`,
		job.ID, job.UserID, job.Name, job.Prompt, job.ScheduleText, job.CronExpression,
		job.Timezone, job.Enabled, job.NotifySlack, job.NextRunAt, now)
	if err != nil {
		return fmt.Errorf("failed to create cron job: %w", err)
	}
	return nil
}

// UpdateCronJob rewrites a job's user-editable fields.
func (s *Store) UpdateCronJob(ctx context.Context, job *models.CronJob) error {
	job.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE cron_jobs SET name = $2, prompt = $3, schedule_text = $4,
			cron_expression = $5, timezone = $6, enabled = $7, notify_slack = $8,
			next_run_at = $9, updated_at = $10
		WHERE id = $1`,
		job.ID, job.Name, job.Prompt, job.ScheduleText,
		job.CronExpression, job.Timezone, job.Enabled, job.NotifySlack,
		job.NextRunAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update cron job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordCronRun stamps the outcome of a run onto the job row.
func (s *Store) RecordCronRun(ctx context.Context, jobID, sessionID, status string, nextRunAt *time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE cron_jobs SET last_run_at = now(), last_run_session = $2,
			last_run_status = $3, next_run_at = $4, total_runs = total_runs + 1,
			updated_at = now()
		WHERE id = $1`,
		jobID, sessionID, status, nextRunAt)
	if err != nil {
		return fmt.Errorf("failed to record cron run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetCronJob returns one job by id.
func (s *Store) GetCronJob(ctx context.Context, id string) (*models.CronJob, error) {
	job, err := scanCronJob(s.db.QueryRowContext(ctx, cronJobSelect+" WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get cron job: %w", err)
	}
	return job, nil
}

// ListCronJobs returns a user's jobs, newest first.
func (s *Store) ListCronJobs(ctx context.Context, userID string) ([]*models.CronJob, error) {
	return s.queryCronJobs(ctx, cronJobSelect+" WHERE user_id = $1 ORDER BY created_at DESC", userID)
}

// ListEnabledCronJobs returns every enabled job across all users. The cron
// runner loads these at startup and after any job mutation.
func (s *Store) ListEnabledCronJobs(ctx context.Context) ([]*models.CronJob, error) {
	return s.queryCronJobs(ctx, cronJobSelect+" WHERE enabled ORDER BY created_at")
}

// DeleteCronJob removes a job.
func (s *Store) DeleteCronJob(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cron_jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete cron job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) queryCronJobs(ctx context.Context, query string, args ...any) ([]*models.CronJob, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cron jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*models.CronJob{}
	for rows.Next() {
		job, err := scanCronJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cron job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanCronJob(row rowScanner) (*models.CronJob, error) {
	var job models.CronJob
	err := row.Scan(
		&job.ID, &job.UserID, &job.Name, &job.Prompt, &job.ScheduleText,
		&job.CronExpression, &job.Timezone, &job.Enabled, &job.NotifySlack,
		&job.LastRunAt, &job.LastRunSession, &job.LastRunStatus,
		&job.NextRunAt, &job.TotalRuns, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &job, nil
}
