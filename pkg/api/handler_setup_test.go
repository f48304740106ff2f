package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"

	"github.com/agentflow-dev/agentflow/pkg/config"
)

func TestHookScriptHandler(t *testing.T) {
	s := &Server{cfg: &config.Config{Port: 3333}}

	t.Run("origin from forwarded headers", func(t *testing.T) {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/setup/hook.sh", nil)
		req.Host = "internal:8080"
		req.Header.Set("X-Forwarded-Proto", "https")
		req.Header.Set("X-Forwarded-Host", "flow.example.com")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		assert.NoError(t, s.hookScriptHandler(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "hook.sh")
		assert.Contains(t, rec.Body.String(), "https://flow.example.com")
		assert.Contains(t, rec.Body.String(), "/api/ingest")
	})

	t.Run("configured public URL wins", func(t *testing.T) {
		s := &Server{cfg: &config.Config{Port: 3333, PublicURL: "https://public.example.com"}}
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/setup/hook.sh", nil)
		req.Header.Set("X-Forwarded-Host", "other.example.com")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		assert.NoError(t, s.hookScriptHandler(c))
		assert.Contains(t, rec.Body.String(), "https://public.example.com")
	})

	t.Run("host header fallback", func(t *testing.T) {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/setup/hook.sh", nil)
		req.Host = "localhost:3333"
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		assert.NoError(t, s.hookScriptHandler(c))
		assert.Contains(t, rec.Body.String(), "http://localhost:3333")
	})
}

func TestRequestOrigin_LocalhostFallback(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/setup/hook.sh", nil)
	req.Host = ""
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	assert.Equal(t, "http://localhost:4444", requestOrigin(c, "", 4444))
}
