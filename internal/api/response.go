// Package api defines the response envelope and the stable machine-readable
// error codes the SPA branches on. The human-readable error string may
// change; the code never does.
package api

import "github.com/labstack/echo/v4"

// Error codes consumed by clients.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeInvalidCredential = "INVALID_CREDENTIALS"
	CodeEmailExists       = "EMAIL_EXISTS"
	CodeTokenExpired      = "TOKEN_EXPIRED"
	CodeTokenInvalid      = "TOKEN_INVALID"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeResetTokenInvalid = "RESET_TOKEN_INVALID"
	CodeRateLimited       = "RATE_LIMITED"
	CodeInternal          = "INTERNAL_ERROR"
)

// Envelope wraps every response body.
type Envelope struct {
	Success bool     `json:"success"`
	Data    any      `json:"data,omitempty"`
	Error   string   `json:"error,omitempty"`
	Code    string   `json:"code,omitempty"`
	Details []string `json:"details,omitempty"`
}

// OK writes a success envelope.
func OK(c echo.Context, status int, data any) error {
	return c.JSON(status, Envelope{Success: true, Data: data})
}

// Fail writes an error envelope with a stable code.
func Fail(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, Envelope{Success: false, Error: msg, Code: code})
}

// FailDetails writes an error envelope carrying the full rule list of a
// validation failure.
func FailDetails(c echo.Context, status int, code, msg string, details []string) error {
	return c.JSON(status, Envelope{Success: false, Error: msg, Code: code, Details: details})
}
