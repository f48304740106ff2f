package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/agentflow-dev/agentflow/pkg/auth"
)

// principalKey is the echo context key the auth middleware stores the
// verified principal under.
const principalKey = "principal"

// publicPaths are reachable without credentials.
var publicPaths = map[string]bool{
	"/health":                 true,
	"/api/auth/sign-in/email": true,
	"/api/auth/sign-up/email": true,
}

// securityHeaders returns middleware that sets standard security response headers.
func securityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			return next(c)
		}
	}
}

// requireAuth admits requests carrying an API key (x-api-key header, or the
// api_key query parameter for clients that cannot set upgrade headers) or a
// session cookie. Order matters: producers send API keys, browsers send
// cookies, and a bad API key must not fall through to the cookie path.
func (s *Server) requireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			path := c.Request().URL.Path
			if publicPaths[path] {
				return next(c)
			}

			ctx := c.Request().Context()

			key := c.Request().Header.Get("x-api-key")
			if key == "" {
				key = c.QueryParam("api_key")
			}
			if key != "" {
				p, err := s.verifier.VerifyAPIKey(ctx, key)
				if err != nil {
					return unauthorized(c, path)
				}
				c.Set(principalKey, p)
				return next(c)
			}

			if cookie, err := c.Request().Cookie(auth.SessionCookieName); err == nil && cookie.Value != "" {
				p, err := s.verifier.VerifySessionToken(ctx, cookie.Value)
				if err != nil {
					return unauthorized(c, path)
				}
				c.Set(principalKey, p)
				return next(c)
			}

			return unauthorized(c, path)
		}
	}
}

// unauthorized writes the 401 response. The WebSocket route gets a plain-text
// body so clients surface a readable close reason before the upgrade.
func unauthorized(c *echo.Context, path string) error {
	if path == "/ws" {
		return c.String(http.StatusUnauthorized, "Authentication required")
	}
	return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
}

// principalFrom returns the verified principal stored by requireAuth.
// Nil only on public routes.
func principalFrom(c *echo.Context) *auth.Principal {
	p, _ := c.Get(principalKey).(*auth.Principal)
	return p
}
