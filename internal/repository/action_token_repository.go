package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/openlearn/auth-service/internal/utils"
)

// ActionTokenRepo persists single-use reset and verification tokens in the
// `action_tokens` table. Rows survive restarts and are visible to every
// instance, so a link mailed by one node can be consumed on another.
type ActionTokenRepo struct{ DB *sql.DB }

func NewActionTokenRepo(db *sql.DB) *ActionTokenRepo { return &ActionTokenRepo{DB: db} }

// Create issues a fresh token for (user, purpose), superseding any earlier
// one for the same purpose. Returns the raw token to embed in the mailed
// link.
func (r *ActionTokenRepo) Create(ctx context.Context, userID uint64, purpose string, ttl time.Duration) (string, error) {
	token, err := utils.RandomHex(32)
	if err != nil {
		return "", err
	}
	// A newer request invalidates the previous token for the same purpose.
	if _, err := r.DB.ExecContext(ctx,
		"DELETE FROM action_tokens WHERE user_id=? AND purpose=?", userID, purpose); err != nil {
		return "", err
	}
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO action_tokens (token, user_id, purpose, expires_at) VALUES (?,?,?,?)",
		token, userID, purpose, time.Now().UTC().Add(ttl))
	if err != nil {
		return "", err
	}
	return token, nil
}

// Consume deletes the token and returns its owner. Single-use is enforced
// by the DELETE: the caller whose delete removed the row wins, any
// concurrent duplicate sees ErrActionTokenInvalid.
func (r *ActionTokenRepo) Consume(ctx context.Context, token, purpose string) (uint64, error) {
	var (
		userID    uint64
		expiresAt time.Time
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT user_id, expires_at FROM action_tokens WHERE token=? AND purpose=? LIMIT 1",
		token, purpose).Scan(&userID, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrActionTokenInvalid
		}
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM action_tokens WHERE token=?", token)
	if err != nil {
		return 0, err
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return 0, ErrActionTokenInvalid
	}
	if time.Now().UTC().After(expiresAt) {
		return 0, ErrActionTokenInvalid
	}
	return userID, nil
}

// DeleteExpired sweeps rows that are past expiry.
func (r *ActionTokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM action_tokens WHERE expires_at <= NOW()")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
