package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
)

func TestGetSessionHandler_Validation(t *testing.T) {
	s := &Server{}

	t.Run("missing session id returns 400", func(t *testing.T) {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/api/sessions/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := s.getSessionHandler(c)
		if assert.Error(t, err) {
			he, ok := err.(*echo.HTTPError)
			if assert.True(t, ok, "expected echo.HTTPError") {
				assert.Equal(t, http.StatusBadRequest, he.Code)
				assert.Contains(t, he.Message, "session id")
			}
		}
	})
}

func TestDeleteSessionHandler_Validation(t *testing.T) {
	s := &Server{}

	t.Run("missing session id returns 400", func(t *testing.T) {
		e := echo.New()
		req := httptest.NewRequest(http.MethodDelete, "/api/sessions/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := s.deleteSessionHandler(c)
		if assert.Error(t, err) {
			he, ok := err.(*echo.HTTPError)
			if assert.True(t, ok) {
				assert.Equal(t, http.StatusBadRequest, he.Code)
			}
		}
	})
}
