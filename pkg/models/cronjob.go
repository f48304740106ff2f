package models

import "time"

// Cron run statuses.
const (
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// CronJob is a user-defined scheduled prompt. CronExpression is the
// canonical schedule; ScheduleText is a human echo kept only for the UI.
type CronJob struct {
	ID             string     `json:"id"`
	UserID         string     `json:"userId"`
	Name           string     `json:"name"`
	Prompt         string     `json:"prompt"`
	ScheduleText   string     `json:"scheduleText,omitempty"`
	CronExpression string     `json:"cronExpression"`
	Timezone       string     `json:"timezone,omitempty"`
	Enabled        bool       `json:"enabled"`
	NotifySlack    bool       `json:"notifySlack"`
	LastRunAt      *time.Time `json:"lastRunAt,omitempty"`
	LastRunSession string     `json:"lastRunSessionId,omitempty"`
	LastRunStatus  string     `json:"lastRunStatus,omitempty"`
	NextRunAt      *time.Time `json:"nextRunAt,omitempty"`
	TotalRuns      int        `json:"totalRuns"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}
