// Package repository holds thin data-access structs over *sql.DB with
// hand-written SQL. Sentinel errors let the service layer branch without
// inspecting driver errors.
package repository

import "errors"

// ErrEmailExists is returned when an insert hits the unique key on
// users.email. The pre-insert lookup in the service is only an
// optimization; this is the actual backstop against duplicate accounts.
var ErrEmailExists = errors.New("email already exists")

// ErrUserNotFound is returned for lookups that match no user row.
var ErrUserNotFound = errors.New("user not found")

// ErrTokenNotFound is returned when a refresh token is unknown, revoked or
// expired. Callers cannot distinguish the three cases; that is intentional
// so responses do not leak revocation state.
var ErrTokenNotFound = errors.New("refresh token not found")

// ErrActionTokenInvalid is returned when a reset or verification token is
// unknown, expired, or already consumed.
var ErrActionTokenInvalid = errors.New("action token invalid")
