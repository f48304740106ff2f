package api

import (
	"errors"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/agentflow-dev/agentflow/pkg/auth"
)

// sessionCookieMaxAge matches the JWT lifetime.
const sessionCookieMaxAge = 7 * 24 * time.Hour

// signInHandler handles POST /api/auth/sign-in/email. Public.
func (s *Server) signInHandler(c *echo.Context) error {
	var req SignInRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	token, principal, err := s.authService.SignIn(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password")
		}
		return mapStoreError(err)
	}

	http.SetCookie(c.Response(), &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(sessionCookieMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return c.JSON(http.StatusOK, &AuthSessionResponse{
		User: UserResponse{ID: principal.UserID, Email: principal.Email},
	})
}

// signUpHandler handles POST /api/auth/sign-up/email. Public sign-up is
// disabled; accounts are created server-side.
func (s *Server) signUpHandler(c *echo.Context) error {
	return c.JSON(http.StatusForbidden, map[string]string{"error": "Sign-up is disabled"})
}

// getAuthSessionHandler handles GET /api/auth/get-session.
func (s *Server) getAuthSessionHandler(c *echo.Context) error {
	p := principalFrom(c)
	if p == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
	return c.JSON(http.StatusOK, &AuthSessionResponse{
		User: UserResponse{ID: p.UserID, Email: p.Email},
	})
}

// createAPIKeyHandler handles POST /api/auth/api-key/create. The plaintext
// key appears in this response and nowhere else.
func (s *Server) createAPIKeyHandler(c *echo.Context) error {
	p := principalFrom(c)
	if p == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	var req CreateAPIKeyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name field is required")
	}

	key, plaintext, err := s.authService.CreateAPIKey(c.Request().Context(), p.UserID, req.Name)
	if err != nil {
		return mapStoreError(err)
	}

	return c.JSON(http.StatusOK, &CreateAPIKeyResponse{
		ID:   key.ID,
		Name: key.Name,
		Key:  plaintext,
	})
}

// listAPIKeysHandler handles GET /api/auth/api-keys. Hashes never leave
// the store, so the models marshal safely.
func (s *Server) listAPIKeysHandler(c *echo.Context) error {
	p := principalFrom(c)
	if p == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	keys, err := s.authService.ListAPIKeys(c.Request().Context(), p.UserID)
	if err != nil {
		return mapStoreError(err)
	}
	return c.JSON(http.StatusOK, keys)
}
