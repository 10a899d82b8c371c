package model

import "time"

// Roles assigned to principals. New accounts always start as STUDENT;
// INSTRUCTOR and ADMIN are granted through the admin approval workflow,
// which lives outside this service.
const (
	RoleStudent    = "STUDENT"
	RoleInstructor = "INSTRUCTOR"
	RoleAdmin      = "ADMIN"
)

// Identity providers. A LOCAL user authenticates with a password; a GOOGLE
// user may carry no password hash at all.
const (
	ProviderLocal  = "LOCAL"
	ProviderGoogle = "GOOGLE"
)

// User mirrors the `users` table. Email is stored lowercased and trimmed.
// PasswordHash is empty for accounts that only authenticate through an
// external provider.
type User struct {
	ID              uint64
	Email           string
	PasswordHash    string
	Role            string
	Provider        string
	ProviderID      string
	EmailVerifiedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasPassword reports whether the account can authenticate locally.
func (u User) HasPassword() bool { return u.PasswordHash != "" }
