package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
)

func TestSignUpHandler_AlwaysForbidden(t *testing.T) {
	s := &Server{}
	e := echo.New()
	c, rec := postJSON(t, e, "/api/auth/sign-up/email", `{"email":"a@b.com","password":"longenough"}`)

	err := s.signUpHandler(c)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "disabled")
}

func TestSignInHandler_Validation(t *testing.T) {
	s := &Server{}

	tests := []struct {
		name string
		body string
	}{
		{name: "missing email", body: `{"password":"secret123"}`},
		{name: "missing password", body: `{"email":"a@b.com"}`},
		{name: "empty body", body: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			c, _ := postJSON(t, e, "/api/auth/sign-in/email", tt.body)

			err := s.signInHandler(c)
			if assert.Error(t, err) {
				he, ok := err.(*echo.HTTPError)
				if assert.True(t, ok) {
					assert.Equal(t, http.StatusBadRequest, he.Code)
				}
			}
		})
	}
}

func TestGetAuthSessionHandler_NoPrincipal(t *testing.T) {
	s := &Server{}
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/get-session", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := s.getAuthSessionHandler(c)
	if assert.Error(t, err) {
		he, ok := err.(*echo.HTTPError)
		if assert.True(t, ok) {
			assert.Equal(t, http.StatusUnauthorized, he.Code)
		}
	}
}
