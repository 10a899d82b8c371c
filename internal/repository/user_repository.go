package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/openlearn/auth-service/internal/model"
	"github.com/openlearn/auth-service/internal/validate"
)

// mysqlDupEntry is the MySQL error number for a unique-key violation.
const mysqlDupEntry = 1062

// UserRepo persists principals in the `users` table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,email,password_hash,role,provider,provider_id,email_verified_at,created_at,updated_at"

// Create inserts a user and returns its ID. A duplicate email maps to
// ErrEmailExists regardless of whether the pre-insert check caught it.
func (r *UserRepo) Create(ctx context.Context, u *model.User) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, role, provider, provider_id, email_verified_at) VALUES (?,?,?,?,?,?)",
		validate.Normalize(u.Email), nullString(u.PasswordHash), u.Role, u.Provider, nullString(u.ProviderID), u.EmailVerifiedAt)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlDupEntry {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return r.getWhere(ctx, "email=?", validate.Normalize(email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.getWhere(ctx, "id=?", id)
}

// GetByProvider fetches a user by external identity (provider, subject id).
func (r *UserRepo) GetByProvider(ctx context.Context, provider, providerID string) (model.User, error) {
	return r.getWhere(ctx, "provider=? AND provider_id=?", provider, providerID)
}

func (r *UserRepo) getWhere(ctx context.Context, where string, args ...any) (model.User, error) {
	var (
		u          model.User
		hash, pid  sql.NullString
		verifiedAt sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE "+where+" LIMIT 1", args...).
		Scan(&u.ID, &u.Email, &hash, &u.Role, &u.Provider, &pid, &verifiedAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, err
	}
	u.PasswordHash = hash.String
	u.ProviderID = pid.String
	if verifiedAt.Valid {
		t := verifiedAt.Time
		u.EmailVerifiedAt = &t
	}
	return u, nil
}

// UpdatePasswordHash replaces the stored hash. Callers revoke all refresh
// tokens for the user immediately after.
func (r *UserRepo) UpdatePasswordHash(ctx context.Context, id uint64, hash string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?, updated_at=NOW() WHERE id=?", hash, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// LinkProvider attaches an external identity to an existing local account
// and marks the email verified: external providers are trusted to have
// verified it.
func (r *UserRepo) LinkProvider(ctx context.Context, id uint64, provider, providerID string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET provider=?, provider_id=?, email_verified_at=COALESCE(email_verified_at, NOW()), updated_at=NOW() WHERE id=?",
		provider, providerID, id)
	return err
}

// SetEmailVerified records the verification timestamp once; a second call
// keeps the original time.
func (r *UserRepo) SetEmailVerified(ctx context.Context, id uint64, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET email_verified_at=COALESCE(email_verified_at, ?), updated_at=NOW() WHERE id=?", at, id)
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
