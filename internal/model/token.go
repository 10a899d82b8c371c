package model

import "time"

// RefreshToken models a row in the `refresh_tokens` table. The table is the
// single source of truth for whether a refresh token is still usable: the
// signed token carries the JTI, the row carries revocation and expiry state.
// UserAgent and IPAddress are provenance metadata only.
type RefreshToken struct {
	ID        uint64
	UserID    uint64
	JTI       string
	ExpiresAt time.Time
	RevokedAt *time.Time
	UserAgent string
	IPAddress string
	CreatedAt time.Time
}

// Active reports whether the token is non-revoked and unexpired at now.
func (t RefreshToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// Purposes for single-use action tokens.
const (
	PurposeResetPassword = "RESET_PASSWORD"
	PurposeVerifyEmail   = "VERIFY_EMAIL"
)

// ActionToken models a row in the `action_tokens` table: single-use,
// short-lived tokens for password reset and email verification. The random
// token string itself is the lookup key; rows are deleted on consumption.
type ActionToken struct {
	Token     string
	UserID    uint64
	Purpose   string
	ExpiresAt time.Time
	CreatedAt time.Time
}
