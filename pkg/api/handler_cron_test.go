package api

import (
	"net/http"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
)

func TestValidateCronRequest(t *testing.T) {
	tests := []struct {
		name   string
		req    CronJobRequest
		errMsg string
	}{
		{
			name:   "missing name",
			req:    CronJobRequest{Prompt: "p", CronExpression: "0 9 * * *"},
			errMsg: "name field is required",
		},
		{
			name:   "missing prompt",
			req:    CronJobRequest{Name: "n", CronExpression: "0 9 * * *"},
			errMsg: "prompt field is required",
		},
		{
			name:   "missing expression",
			req:    CronJobRequest{Name: "n", Prompt: "p"},
			errMsg: "cronExpression field is required",
		},
		{
			name:   "malformed expression",
			req:    CronJobRequest{Name: "n", Prompt: "p", CronExpression: "not a schedule"},
			errMsg: "invalid cronExpression",
		},
		{
			name:   "too many fields",
			req:    CronJobRequest{Name: "n", Prompt: "p", CronExpression: "0 0 9 * * 1"},
			errMsg: "invalid cronExpression",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpErr := validateCronRequest(&tt.req)
			if assert.NotNil(t, httpErr) {
				assert.Equal(t, http.StatusBadRequest, httpErr.Code)
				assert.Contains(t, httpErr.Message, tt.errMsg)
			}
		})
	}

	t.Run("valid request", func(t *testing.T) {
		req := CronJobRequest{Name: "n", Prompt: "p", CronExpression: "*/5 * * * *"}
		assert.Nil(t, validateCronRequest(&req))
	})
}

func TestTriggerCronJobHandler_Validation(t *testing.T) {
	s := &Server{}

	t.Run("missing job id returns 400", func(t *testing.T) {
		e := echo.New()
		c, _ := postJSON(t, e, "/api/cron-jobs//trigger", "")

		err := s.triggerCronJobHandler(c)
		if assert.Error(t, err) {
			he, ok := err.(*echo.HTTPError)
			if assert.True(t, ok) {
				assert.Equal(t, http.StatusBadRequest, he.Code)
			}
		}
	})
}
