package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/openlearn/auth-service/internal/api"
)

// RequireRole gates a route to the listed roles. It assumes Authenticate
// ran earlier in the chain. An authenticated caller with the wrong role
// gets 403, never 401: authorization failures are not authentication
// failures.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := CurrentPrincipal(c)
			if !ok {
				return api.Fail(c, http.StatusUnauthorized, api.CodeUnauthorized, "authentication required")
			}
			if _, ok := allowed[p.Role]; !ok {
				return api.Fail(c, http.StatusForbidden, api.CodeForbidden, "insufficient role")
			}
			return next(c)
		}
	}
}
