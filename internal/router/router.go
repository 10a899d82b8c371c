// Package router registers the HTTP surface of the auth core.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/openlearn/auth-service/internal/config"
	"github.com/openlearn/auth-service/internal/handler"
	"github.com/openlearn/auth-service/internal/middleware"
	"github.com/openlearn/auth-service/internal/token"
)

// Register wires every route. Credential endpoints sit behind the
// distributed rate limiter; session-holding endpoints sit behind the
// request authenticator.
func Register(
	e *echo.Echo,
	a *handler.AuthHandler,
	codec *token.Codec,
	users middleware.PrincipalLoader,
	rlCfg config.RateLimitConfig,
	rdb *redis.Client,
) {
	e.GET("/healthz", handler.Health)

	limited := middleware.RateLimit(rlCfg, rdb)
	authed := middleware.Authenticate(codec, users)

	g := e.Group("/v1/auth")

	// Unauthenticated, brute-forceable: rate limited.
	g.POST("/register", a.Register, limited)
	g.POST("/login", a.Login, limited)
	g.POST("/forgot-password", a.ForgotPassword, limited)

	// Token-bearing rather than credential-bearing.
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)
	g.POST("/reset-password", a.ResetPassword)
	g.POST("/verify-email", a.VerifyEmail)

	// External provider flow.
	g.GET("/google", a.GoogleRedirect)
	g.GET("/google/callback", a.GoogleCallback)

	// Requires a live access token.
	g.GET("/me", a.Me, authed)
	g.PUT("/change-password", a.ChangePassword, authed)
}
