package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// listInsightsHandler handles GET /api/insights. Insights are scoped to
// the requesting user.
func (s *Server) listInsightsHandler(c *echo.Context) error {
	p := principalFrom(c)
	if p == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	insights, err := s.store.ListInsights(c.Request().Context(), p.UserID)
	if err != nil {
		return mapStoreError(err)
	}
	return c.JSON(http.StatusOK, insights)
}

// getInsightHandler handles GET /api/insights/:id. Returns the insight
// plus its follow-up questions.
func (s *Server) getInsightHandler(c *echo.Context) error {
	insightID := c.Param("id")
	if insightID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "insight id is required")
	}

	ctx := c.Request().Context()
	insight, err := s.store.GetInsight(ctx, insightID)
	if err != nil {
		return mapStoreError(err)
	}
	questions, err := s.store.ListInsightQuestions(ctx, insightID)
	if err != nil {
		return mapStoreError(err)
	}

	return c.JSON(http.StatusOK, &InsightDetailResponse{
		Insight:   insight,
		Questions: questions,
	})
}

// answerInsightHandler handles POST /api/insights/:id/answers. Recording
// an answer publishes thread:ready so the scheduler can pick up refinement.
func (s *Server) answerInsightHandler(c *echo.Context) error {
	insightID := c.Param("id")
	if insightID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "insight id is required")
	}

	var req AnswerQuestionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.QuestionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "questionId field is required")
	}
	if req.Answer == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "answer field is required")
	}

	if err := s.store.AnswerInsightQuestion(c.Request().Context(), req.QuestionID, req.Answer); err != nil {
		return mapStoreError(err)
	}
	_ = s.publisher.PublishThreadReady(req.QuestionID, insightID)

	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}
