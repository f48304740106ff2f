package cron

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/agentflow-dev/agentflow/pkg/events"
	"github.com/agentflow-dev/agentflow/pkg/models"
	"github.com/agentflow-dev/agentflow/pkg/slack"
	"github.com/agentflow-dev/agentflow/pkg/store"
)

// syncInterval is how often the schedule is reconciled with the database,
// so API-side job changes take effect without a restart.
const syncInterval = time.Minute

// scheduledEntry ties a job to its cron entry and the spec it was
// registered with, so Sync can detect schedule changes.
type scheduledEntry struct {
	id   cron.EntryID
	spec string
}

// Runner owns the cron schedule. One instance per process.
type Runner struct {
	store     *store.Store
	executor  *Executor
	publisher *events.Publisher
	slackSvc  *slack.Service

	cron *cron.Cron
	ctx  context.Context

	mu      sync.Mutex
	entries map[string]scheduledEntry
	running map[string]bool

	logger *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(st *store.Store, executor *Executor, publisher *events.Publisher, slackSvc *slack.Service) *Runner {
	return &Runner{
		store:     st,
		executor:  executor,
		publisher: publisher,
		slackSvc:  slackSvc,
		entries:   make(map[string]scheduledEntry),
		running:   make(map[string]bool),
		logger:    slog.Default().With("component", "cron-runner"),
	}
}

// Start loads the enabled jobs and begins the schedule. The context is held
// for the lifetime of the runner and bounds every job run.
func (r *Runner) Start(ctx context.Context) error {
	r.ctx = ctx
	r.cron = cron.New()

	if err := r.Sync(ctx); err != nil {
		return err
	}
	if _, err := r.cron.AddFunc("@every 1m", func() {
		if err := r.Sync(r.ctx); err != nil {
			r.logger.Error("Cron schedule sync failed", "error", err)
		}
	}); err != nil {
		return err
	}

	r.cron.Start()
	r.logger.Info("Cron runner started", "jobs", len(r.entries))
	return nil
}

// Stop halts the schedule. In-flight runs finish on their own.
func (r *Runner) Stop() {
	if r.cron != nil {
		r.cron.Stop()
	}
}

// Sync reconciles the schedule with the enabled jobs in the database:
// new jobs are added, changed schedules replaced, removed jobs dropped.
func (r *Runner) Sync(ctx context.Context) error {
	jobs, err := r.store.ListEnabledCronJobs(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	want := make(map[string]string, len(jobs))
	for _, job := range jobs {
		want[job.ID] = cronSpec(job.Timezone, job.CronExpression)
	}

	for jobID, entry := range r.entries {
		if spec, ok := want[jobID]; !ok || spec != entry.spec {
			r.cron.Remove(entry.id)
			delete(r.entries, jobID)
		}
	}

	for jobID, spec := range want {
		if _, ok := r.entries[jobID]; ok {
			continue
		}
		id := jobID
		entryID, err := r.cron.AddFunc(spec, func() { r.runJob(id) })
		if err != nil {
			r.logger.Error("Failed to schedule cron job", "job_id", jobID, "spec", spec, "error", err)
			continue
		}
		r.entries[jobID] = scheduledEntry{id: entryID, spec: spec}
	}

	return nil
}

// Trigger runs a job now, outside its schedule. The overlap guard still
// applies: a job already running is not started twice.
func (r *Runner) Trigger(jobID string) error {
	ctx := r.runContext()
	if _, err := r.store.GetCronJob(ctx, jobID); err != nil {
		return err
	}
	go r.runJob(jobID)
	return nil
}

// runJob executes one job run end to end: overlap guard, execution,
// run bookkeeping, fan-out.
func (r *Runner) runJob(jobID string) {
	r.mu.Lock()
	if r.running[jobID] {
		r.mu.Unlock()
		r.logger.Warn("Skipping cron run, previous run still in flight", "job_id", jobID)
		return
	}
	r.running[jobID] = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.running, jobID)
		r.mu.Unlock()
	}()

	ctx := r.runContext()
	job, err := r.store.GetCronJob(ctx, jobID)
	if err != nil {
		r.logger.Error("Cron job vanished before run", "job_id", jobID, "error", err)
		return
	}
	if !job.Enabled {
		return
	}

	r.logger.Info("Running cron job", "job_id", jobID, "name", job.Name)
	sessionID, summary, execErr := r.executor.Execute(ctx, job)

	status := models.RunStatusSuccess
	if execErr != nil {
		status = models.RunStatusFailed
		r.logger.Error("Cron run failed", "job_id", jobID, "session_id", sessionID, "error", execErr)
	}

	if err := r.store.RecordCronRun(ctx, jobID, sessionID, status, r.nextRun(jobID)); err != nil {
		r.logger.Error("Failed to record cron run", "job_id", jobID, "error", err)
	}
	_ = r.publisher.PublishCronRun(job, sessionID, status)

	if job.NotifySlack {
		r.slackSvc.NotifyCronRun(ctx, job, sessionID, status, summary)
	}
}

// nextRun reads the schedule's next fire time for a job, nil when the job
// is not scheduled (manual-only or just disabled).
func (r *Runner) nextRun(jobID string) *time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[jobID]
	if !ok {
		return nil
	}
	next := r.cron.Entry(entry.id).Next
	if next.IsZero() {
		return nil
	}
	return &next
}

func (r *Runner) runContext() context.Context {
	if r.ctx != nil {
		return r.ctx
	}
	return context.Background()
}

// cronSpec prefixes the expression with its timezone for the parser.
func cronSpec(timezone, expression string) string {
	if timezone == "" {
		return expression
	}
	return "CRON_TZ=" + timezone + " " + expression
}
