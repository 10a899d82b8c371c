package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/openlearn/auth-service/internal/api"
	"github.com/openlearn/auth-service/internal/model"
	"github.com/openlearn/auth-service/internal/repository"
	"github.com/openlearn/auth-service/internal/token"
)

// principalKey is the echo context key the authenticator stores under.
const principalKey = "auth_principal"

// Principal is the resolved caller attached to authenticated requests.
type Principal struct {
	ID       uint64
	Email    string
	Role     string
	Provider string
}

// PrincipalLoader resolves a user id from verified claims to a live
// account. A still-valid access token for a deleted account must not pass.
type PrincipalLoader interface {
	Principal(ctx context.Context, userID uint64) (model.User, error)
}

// Authenticate verifies the bearer access token and loads the principal.
// Expired and invalid tokens fail with distinct codes, without touching
// storage; only a valid signature costs a user lookup.
func Authenticate(codec *token.Codec, users PrincipalLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(header, "Bearer ") {
				return api.Fail(c, http.StatusUnauthorized, api.CodeUnauthorized, "missing bearer token")
			}
			raw := strings.TrimPrefix(header, "Bearer ")

			claims, err := codec.VerifyAccess(raw)
			if err != nil {
				if errors.Is(err, token.ErrExpired) {
					return api.Fail(c, http.StatusUnauthorized, api.CodeTokenExpired, "access token expired")
				}
				return api.Fail(c, http.StatusUnauthorized, api.CodeTokenInvalid, "access token invalid")
			}

			u, err := users.Principal(c.Request().Context(), claims.UserID)
			if err != nil {
				if errors.Is(err, repository.ErrUserNotFound) {
					return api.Fail(c, http.StatusUnauthorized, api.CodeUnauthorized, "unknown principal")
				}
				return api.Fail(c, http.StatusInternalServerError, api.CodeInternal, "principal lookup failed")
			}

			c.Set(principalKey, Principal{ID: u.ID, Email: u.Email, Role: u.Role, Provider: u.Provider})
			return next(c)
		}
	}
}

// CurrentPrincipal returns the principal stored by Authenticate.
func CurrentPrincipal(c echo.Context) (Principal, bool) {
	p, ok := c.Get(principalKey).(Principal)
	return p, ok
}
