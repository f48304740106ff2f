package api

import (
	"net/http"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v5"
	"github.com/robfig/cron/v3"

	"github.com/agentflow-dev/agentflow/pkg/models"
)

// validateCronRequest checks the shared create/update fields.
func validateCronRequest(req *CronJobRequest) *echo.HTTPError {
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name field is required")
	}
	if req.Prompt == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "prompt field is required")
	}
	if req.CronExpression == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "cronExpression field is required")
	}
	if _, err := cron.ParseStandard(req.CronExpression); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid cronExpression: "+err.Error())
	}
	return nil
}

// listCronJobsHandler handles GET /api/cron-jobs.
func (s *Server) listCronJobsHandler(c *echo.Context) error {
	p := principalFrom(c)
	if p == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	jobs, err := s.store.ListCronJobs(c.Request().Context(), p.UserID)
	if err != nil {
		return mapStoreError(err)
	}
	return c.JSON(http.StatusOK, jobs)
}

// createCronJobHandler handles POST /api/cron-jobs.
func (s *Server) createCronJobHandler(c *echo.Context) error {
	p := principalFrom(c)
	if p == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	var req CronJobRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if httpErr := validateCronRequest(&req); httpErr != nil {
		return httpErr
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	job := &models.CronJob{
		ID:             uuid.New().String(),
		UserID:         p.UserID,
		Name:           req.Name,
		Prompt:         req.Prompt,
		ScheduleText:   req.ScheduleText,
		CronExpression: req.CronExpression,
		Timezone:       req.Timezone,
		Enabled:        enabled,
		NotifySlack:    req.NotifySlack,
	}

	if err := s.store.CreateCronJob(c.Request().Context(), job); err != nil {
		return mapStoreError(err)
	}

	return c.JSON(http.StatusCreated, job)
}

// updateCronJobHandler handles PUT /api/cron-jobs/:id.
func (s *Server) updateCronJobHandler(c *echo.Context) error {
	jobID := c.Param("id")
	if jobID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "cron job id is required")
	}

	var req CronJobRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if httpErr := validateCronRequest(&req); httpErr != nil {
		return httpErr
	}

	ctx := c.Request().Context()
	job, err := s.store.GetCronJob(ctx, jobID)
	if err != nil {
		return mapStoreError(err)
	}

	job.Name = req.Name
	job.Prompt = req.Prompt
	job.ScheduleText = req.ScheduleText
	job.CronExpression = req.CronExpression
	job.Timezone = req.Timezone
	job.NotifySlack = req.NotifySlack
	if req.Enabled != nil {
		job.Enabled = *req.Enabled
	}

	if err := s.store.UpdateCronJob(ctx, job); err != nil {
		return mapStoreError(err)
	}

	return c.JSON(http.StatusOK, job)
}

// deleteCronJobHandler handles DELETE /api/cron-jobs/:id.
func (s *Server) deleteCronJobHandler(c *echo.Context) error {
	jobID := c.Param("id")
	if jobID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "cron job id is required")
	}

	if err := s.store.DeleteCronJob(c.Request().Context(), jobID); err != nil {
		return mapStoreError(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// triggerCronJobHandler handles POST /api/cron-jobs/:id/trigger. Manual
// trigger bypasses the schedule but not the overlap guard.
func (s *Server) triggerCronJobHandler(c *echo.Context) error {
	jobID := c.Param("id")
	if jobID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "cron job id is required")
	}
	if s.cronTrigger == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "cron runner not available")
	}

	if err := s.cronTrigger.Trigger(jobID); err != nil {
		return mapStoreError(err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "triggered"})
}
