package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/openlearn/auth-service/internal/model"
)

// TokenRepo persists refresh tokens keyed by JTI. Rotation safety lives
// here: Consume is a single conditional UPDATE, so of N concurrent refresh
// calls presenting the same JTI exactly one wins.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Store inserts a refresh token row. Never overwrites: the JTI column is
// unique and JTIs are freshly generated per issuance.
func (r *TokenRepo) Store(ctx context.Context, userID uint64, jti string, exp time.Time, userAgent, ip string) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, jti, expires_at, user_agent, ip_address) VALUES (?,?,?,?,?)",
		userID, jti, exp, userAgent, ip)
	return err
}

// FindActive returns the row only while it is non-revoked and unexpired.
// Unknown, revoked and expired all collapse into ErrTokenNotFound.
func (r *TokenRepo) FindActive(ctx context.Context, jti string) (model.RefreshToken, error) {
	var (
		t         model.RefreshToken
		revokedAt sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, jti, expires_at, revoked_at, user_agent, ip_address, created_at FROM refresh_tokens WHERE jti=? LIMIT 1",
		jti).Scan(&t.ID, &t.UserID, &t.JTI, &t.ExpiresAt, &revokedAt, &t.UserAgent, &t.IPAddress, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RefreshToken{}, ErrTokenNotFound
		}
		return model.RefreshToken{}, err
	}
	if revokedAt.Valid || time.Now().UTC().After(t.ExpiresAt) {
		return model.RefreshToken{}, ErrTokenNotFound
	}
	return t, nil
}

// Consume atomically revokes an active token and returns its owner. The
// conditional UPDATE only succeeds while the row is still active, so two
// concurrent refreshes of the same token cannot both mint new sessions.
func (r *TokenRepo) Consume(ctx context.Context, jti string) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=NOW() WHERE jti=? AND revoked_at IS NULL AND expires_at > NOW()",
		jti)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrTokenNotFound
	}
	var userID uint64
	if err := r.DB.QueryRowContext(ctx,
		"SELECT user_id FROM refresh_tokens WHERE jti=? LIMIT 1", jti).Scan(&userID); err != nil {
		return 0, err
	}
	return userID, nil
}

// Revoke marks a token revoked. Idempotent: revoking an already-revoked or
// unknown JTI is a no-op, not an error.
func (r *TokenRepo) Revoke(ctx context.Context, jti string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=NOW() WHERE jti=? AND revoked_at IS NULL", jti)
	return err
}

// RevokeAllForUser revokes every active token the user holds, across all
// devices. Runs as a single statement so later FindActive calls cannot see
// a stale row once this returns.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=NOW() WHERE user_id=? AND revoked_at IS NULL", userID)
	return err
}

// DeleteExpired removes revoked or expired rows. Pure storage hygiene; safe
// to skip or delay arbitrarily.
func (r *TokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE revoked_at IS NOT NULL OR expires_at <= NOW()")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
