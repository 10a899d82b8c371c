package auth

import (
	"errors"
	"strings"
)

// Sentinels for the auth flows. Handlers map these to stable response codes;
// anything else that escapes an operation is an internal error.
var (
	// ErrInvalidCredentials covers unknown email, OAuth-only account and
	// wrong password alike. One error on purpose: the response must not
	// reveal which half failed.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailExists is the duplicate-registration conflict.
	ErrEmailExists = errors.New("email already registered")
	// ErrRefreshInvalid covers every way a refresh can fail: bad signature,
	// expired, revoked, unknown JTI, deleted principal. Deliberately
	// ambiguous so revocation state does not leak.
	ErrRefreshInvalid = errors.New("refresh token invalid or expired")
	// ErrActionTokenInvalid covers unknown, expired and already-used reset
	// or verification tokens.
	ErrActionTokenInvalid = errors.New("token invalid or expired")
	// ErrNoLocalPassword is returned by ChangePassword for accounts that
	// only authenticate through an external provider.
	ErrNoLocalPassword = errors.New("account has no local password")
)

// ValidationError carries the complete list of violated rules so the client
// can display every problem in one round trip.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Violations, "; ")
}
