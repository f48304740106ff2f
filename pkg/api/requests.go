package api

// IngestRequest is the body of POST /api/ingest. Event carries the raw
// producer payload; the normalizer decides what it means.
type IngestRequest struct {
	Source    string         `json:"source"`
	SessionID string         `json:"sessionId"`
	Event     map[string]any `json:"event"`
	User      map[string]any `json:"user,omitempty"`
	Git       map[string]any `json:"git,omitempty"`
}

// SignInRequest is the body of POST /api/auth/sign-in/email.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateAPIKeyRequest is the body of POST /api/auth/api-key/create.
type CreateAPIKeyRequest struct {
	Name string `json:"name"`
}

// AnswerQuestionRequest is the body of POST /api/insights/:id/answers.
type AnswerQuestionRequest struct {
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
}

// CronJobRequest is the body of POST and PUT /api/cron-jobs.
type CronJobRequest struct {
	Name           string `json:"name"`
	Prompt         string `json:"prompt"`
	ScheduleText   string `json:"scheduleText,omitempty"`
	CronExpression string `json:"cronExpression"`
	Timezone       string `json:"timezone,omitempty"`
	Enabled        *bool  `json:"enabled,omitempty"`
	NotifySlack    bool   `json:"notifySlack"`
}
