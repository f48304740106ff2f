package api

import (
	"fmt"
	"net/http"

	echo "github.com/labstack/echo/v5"
)

const hookScriptTemplate = `#!/usr/bin/env bash
# AgentFlow hook for Claude Code. Install by adding this script to every
# hook event in ~/.claude/settings.json; it forwards the hook payload to
# the ingest API and never blocks the agent.
#
# Requires AGENT_FLOW_API_KEY in the environment.

AGENT_FLOW_URL="${AGENT_FLOW_URL:-%s}"

payload=$(cat)
session_id=$(printf '%%s' "$payload" | grep -o '"session_id":"[^"]*"' | head -1 | cut -d'"' -f4)

curl -s -m 5 -X POST "$AGENT_FLOW_URL/api/ingest" \
  -H "content-type: application/json" \
  -H "x-api-key: $AGENT_FLOW_API_KEY" \
  -d "{\"source\":\"claude-code\",\"sessionId\":\"$session_id\",\"event\":$payload}" \
  >/dev/null 2>&1 || true

exit 0
`

// hookScriptHandler handles GET /setup/hook.sh. The script embeds the
// origin the request arrived on so it works behind proxies.
func (s *Server) hookScriptHandler(c *echo.Context) error {
	origin := requestOrigin(c, s.cfg.PublicURL, s.cfg.Port)
	script := fmt.Sprintf(hookScriptTemplate, origin)

	c.Response().Header().Set("Content-Disposition", `attachment; filename="hook.sh"`)
	return c.Blob(http.StatusOK, "text/plain; charset=utf-8", []byte(script))
}

// requestOrigin resolves the externally reachable origin: configured public
// URL first, then proxy headers, then a localhost fallback.
func requestOrigin(c *echo.Context, publicURL string, port int) string {
	if publicURL != "" {
		return publicURL
	}
	host := c.Request().Header.Get("X-Forwarded-Host")
	if host == "" {
		host = c.Request().Host
	}
	if host != "" {
		proto := c.Request().Header.Get("X-Forwarded-Proto")
		if proto == "" {
			proto = "http"
		}
		return proto + "://" + host
	}
	return fmt.Sprintf("http://localhost:%d", port)
}
