package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
)

func postJSON(t *testing.T, e *echo.Echo, path, body string) (*echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestIngestHandler_Validation(t *testing.T) {
	// Only request validation is covered here; the append path needs a
	// database and is tested in the store and ingest packages.
	s := &Server{}

	tests := []struct {
		name   string
		body   string
		errMsg string
	}{
		{
			name:   "missing source",
			body:   `{"sessionId":"s1","event":{"hook_event_name":"Stop"}}`,
			errMsg: "source field is required",
		},
		{
			name:   "missing sessionId",
			body:   `{"source":"claude-code","event":{"hook_event_name":"Stop"}}`,
			errMsg: "sessionId field is required",
		},
		{
			name:   "missing event",
			body:   `{"source":"claude-code","sessionId":"s1"}`,
			errMsg: "event field is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			c, _ := postJSON(t, e, "/api/ingest", tt.body)

			err := s.ingestHandler(c)
			if assert.Error(t, err) {
				he, ok := err.(*echo.HTTPError)
				if assert.True(t, ok, "expected echo.HTTPError") {
					assert.Equal(t, http.StatusBadRequest, he.Code)
					assert.Contains(t, he.Message, tt.errMsg)
				}
			}
		})
	}
}

func TestMetaPatch(t *testing.T) {
	assert.Nil(t, metaPatch(nil, nil))

	patch := metaPatch(map[string]any{"name": "dev"}, nil)
	assert.Equal(t, map[string]any{"user": map[string]any{"name": "dev"}}, patch)

	patch = metaPatch(nil, map[string]any{"repo": "agentflow"})
	assert.Equal(t, map[string]any{"git": map[string]any{"repo": "agentflow"}}, patch)

	patch = metaPatch(map[string]any{"name": "dev"}, map[string]any{"repo": "agentflow"})
	assert.Len(t, patch, 2)
}
