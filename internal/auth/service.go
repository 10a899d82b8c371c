// Package auth orchestrates the session lifecycle: register, login (local
// and external), refresh with rotation, logout, password change and reset.
// It owns no storage or HTTP concerns; those are injected.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/openlearn/auth-service/internal/model"
	"github.com/openlearn/auth-service/internal/queue"
	"github.com/openlearn/auth-service/internal/repository"
	"github.com/openlearn/auth-service/internal/token"
	"github.com/openlearn/auth-service/internal/utils"
	"github.com/openlearn/auth-service/internal/validate"
)

// Action token lifetimes.
const (
	resetTokenTTL  = 30 * time.Minute
	verifyTokenTTL = 24 * time.Hour
)

// UserStore is the principal storage contract. Every method is required;
// there is no optional capability surface.
type UserStore interface {
	Create(ctx context.Context, u *model.User) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	GetByProvider(ctx context.Context, provider, providerID string) (model.User, error)
	UpdatePasswordHash(ctx context.Context, id uint64, hash string) error
	LinkProvider(ctx context.Context, id uint64, provider, providerID string) error
	SetEmailVerified(ctx context.Context, id uint64, at time.Time) error
}

// RefreshTokenStore persists refresh-token state keyed by JTI. Consume must
// be atomic with respect to concurrent calls on the same JTI.
type RefreshTokenStore interface {
	Store(ctx context.Context, userID uint64, jti string, exp time.Time, userAgent, ip string) error
	Consume(ctx context.Context, jti string) (uint64, error)
	Revoke(ctx context.Context, jti string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// ActionTokenStore persists single-use reset and verification tokens.
type ActionTokenStore interface {
	Create(ctx context.Context, userID uint64, purpose string, ttl time.Duration) (string, error)
	Consume(ctx context.Context, token, purpose string) (uint64, error)
}

// MailPublisher dispatches outbound mail events. Always fire-and-forget
// from the service's point of view.
type MailPublisher interface {
	PublishMail(ctx context.Context, ev queue.MailEvent) error
}

// Provenance is informational metadata recorded next to refresh tokens.
type Provenance struct {
	UserAgent string
	IPAddress string
}

// Session is what a successful authentication returns: the principal and a
// fresh token pair. The refresh token is transported as a cookie by the
// handler, never in a response body.
type Session struct {
	User    model.User
	Access  token.Issued
	Refresh token.Issued
}

// Service wires the credential hasher, validator, token codec and stores
// into the auth operations.
type Service struct {
	users       UserStore
	tokens      RefreshTokenStore
	actions     ActionTokenStore
	mail        MailPublisher
	codec       *token.Codec
	emails      *validate.EmailPolicy
	passwords   *validate.PasswordPolicy
	bcryptCost  int
	frontendURL string
	log         zerolog.Logger
}

func NewService(
	users UserStore,
	tokens RefreshTokenStore,
	actions ActionTokenStore,
	mail MailPublisher,
	codec *token.Codec,
	emails *validate.EmailPolicy,
	passwords *validate.PasswordPolicy,
	bcryptCost int,
	frontendURL string,
	log zerolog.Logger,
) *Service {
	return &Service{
		users:       users,
		tokens:      tokens,
		actions:     actions,
		mail:        mail,
		codec:       codec,
		emails:      emails,
		passwords:   passwords,
		bcryptCost:  bcryptCost,
		frontendURL: frontendURL,
		log:         log,
	}
}

// Register creates a local account and signs it in. The account and its
// tokens exist before verification mail dispatch is attempted; a dispatch
// failure is logged and swallowed, never rolled back.
func (s *Service) Register(ctx context.Context, email, password string, prov Provenance) (Session, error) {
	email = validate.Normalize(email)

	var violations []string
	if err := s.emails.Validate(email); err != nil {
		violations = append(violations, err.Error())
	}
	violations = append(violations, s.passwords.Validate(password)...)
	if len(violations) > 0 {
		return Session{}, &ValidationError{Violations: violations}
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return Session{}, ErrEmailExists
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return Session{}, fmt.Errorf("register: lookup email: %w", err)
	}

	hash, err := utils.HashPassword(password, s.bcryptCost)
	if err != nil {
		return Session{}, fmt.Errorf("register: hash password: %w", err)
	}

	u := &model.User{
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleStudent,
		Provider:     model.ProviderLocal,
	}
	id, err := s.users.Create(ctx, u)
	if err != nil {
		// The unique key is the real guard; the lookup above is only a
		// friendlier error path.
		if errors.Is(err, repository.ErrEmailExists) {
			return Session{}, ErrEmailExists
		}
		return Session{}, fmt.Errorf("register: create user: %w", err)
	}
	u.ID = id

	sess, err := s.issueSession(ctx, *u, prov)
	if err != nil {
		return Session{}, err
	}

	s.dispatchActionMail(ctx, *u, model.PurposeVerifyEmail)
	return sess, nil
}

// Authenticate signs in a principal from either credential kind.
func (s *Service) Authenticate(ctx context.Context, cred Credential, prov Provenance) (Session, error) {
	switch c := cred.(type) {
	case LocalCredential:
		return s.authenticateLocal(ctx, c, prov)
	case ExternalCredential:
		return s.authenticateExternal(ctx, c, prov)
	default:
		return Session{}, fmt.Errorf("authenticate: unsupported credential %T", cred)
	}
}

func (s *Service) authenticateLocal(ctx context.Context, c LocalCredential, prov Provenance) (Session, error) {
	email := validate.Normalize(c.Email)

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("login: lookup email: %w", err)
	}
	// An OAuth-only account fails identically to a wrong password.
	if !u.HasPassword() || !utils.VerifyPassword(u.PasswordHash, c.Password) {
		return Session{}, ErrInvalidCredentials
	}
	return s.issueSession(ctx, u, prov)
}

func (s *Service) authenticateExternal(ctx context.Context, c ExternalCredential, prov Provenance) (Session, error) {
	u, err := s.users.GetByProvider(ctx, c.Provider, c.SubjectID)
	switch {
	case err == nil:
		return s.issueSession(ctx, u, prov)
	case !errors.Is(err, repository.ErrUserNotFound):
		return Session{}, fmt.Errorf("oauth login: lookup provider: %w", err)
	}

	// No provider match: link to an existing local account by email, or
	// create a new principal. External providers are trusted to have
	// verified the email.
	email := validate.Normalize(c.Email)
	u, err = s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if err := s.users.LinkProvider(ctx, u.ID, c.Provider, c.SubjectID); err != nil {
			return Session{}, fmt.Errorf("oauth login: link provider: %w", err)
		}
		u.Provider = c.Provider
		u.ProviderID = c.SubjectID
		return s.issueSession(ctx, u, prov)
	case !errors.Is(err, repository.ErrUserNotFound):
		return Session{}, fmt.Errorf("oauth login: lookup email: %w", err)
	}

	now := time.Now().UTC()
	nu := &model.User{
		Email:           email,
		Role:            model.RoleStudent,
		Provider:        c.Provider,
		ProviderID:      c.SubjectID,
		EmailVerifiedAt: &now,
	}
	id, err := s.users.Create(ctx, nu)
	if err != nil {
		return Session{}, fmt.Errorf("oauth login: create user: %w", err)
	}
	nu.ID = id
	return s.issueSession(ctx, *nu, prov)
}

// Refresh rotates a refresh token: the presented JTI is atomically revoked
// and a brand-new pair is issued. A rotated token fails on any later use,
// which is the anti-replay property.
func (s *Service) Refresh(ctx context.Context, rawRefresh string, prov Provenance) (Session, error) {
	claimUserID, jti, err := s.codec.VerifyRefresh(rawRefresh)
	if err != nil {
		return Session{}, ErrRefreshInvalid
	}

	userID, err := s.tokens.Consume(ctx, jti)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return Session{}, ErrRefreshInvalid
		}
		return Session{}, fmt.Errorf("refresh: consume jti: %w", err)
	}
	if userID != claimUserID {
		// Stored owner and signed subject disagree; treat as invalid.
		return Session{}, ErrRefreshInvalid
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return Session{}, ErrRefreshInvalid
		}
		return Session{}, fmt.Errorf("refresh: load user: %w", err)
	}
	return s.issueSession(ctx, u, prov)
}

// Logout best-effort revokes the presented refresh token. It never fails
// from the caller's perspective: an absent, malformed or already-revoked
// token still results in a successful logout.
func (s *Service) Logout(ctx context.Context, rawRefresh string) {
	if rawRefresh == "" {
		return
	}
	_, jti, err := s.codec.VerifyRefresh(rawRefresh)
	if err != nil {
		return
	}
	if err := s.tokens.Revoke(ctx, jti); err != nil {
		s.log.Warn().Err(err).Msg("logout: revoke failed")
	}
}

// ChangePassword verifies the current password, installs the new one and
// force-logs-out every session the user holds.
func (s *Service) ChangePassword(ctx context.Context, userID uint64, current, next string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("change password: load user: %w", err)
	}
	if !u.HasPassword() {
		return ErrNoLocalPassword
	}
	if !utils.VerifyPassword(u.PasswordHash, current) {
		return ErrInvalidCredentials
	}
	if violations := s.passwords.Validate(next); len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}

	hash, err := utils.HashPassword(next, s.bcryptCost)
	if err != nil {
		return fmt.Errorf("change password: hash: %w", err)
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("change password: update: %w", err)
	}
	if err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("change password: revoke sessions: %w", err)
	}
	return nil
}

// ForgotPassword issues a reset token and dispatches the mail when the email
// matches an account. It reports nothing either way; the handler's response
// is identical for registered and unregistered addresses.
func (s *Service) ForgotPassword(ctx context.Context, email string) {
	email = validate.Normalize(email)
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			s.log.Error().Err(err).Msg("forgot-password: lookup failed")
		}
		return
	}
	s.dispatchActionMail(ctx, u, model.PurposeResetPassword)
}

// ResetPassword consumes a reset token exactly once and installs the new
// password. Strength is validated before the token is consumed so a weak
// password does not burn the link. All sessions are revoked afterwards.
func (s *Service) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	if violations := s.passwords.Validate(newPassword); len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}

	userID, err := s.actions.Consume(ctx, resetToken, model.PurposeResetPassword)
	if err != nil {
		if errors.Is(err, repository.ErrActionTokenInvalid) {
			return ErrActionTokenInvalid
		}
		return fmt.Errorf("reset password: consume token: %w", err)
	}

	hash, err := utils.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return fmt.Errorf("reset password: hash: %w", err)
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("reset password: update: %w", err)
	}
	if err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("reset password: revoke sessions: %w", err)
	}
	return nil
}

// VerifyEmail consumes a verification token and records the timestamp.
func (s *Service) VerifyEmail(ctx context.Context, verifyToken string) error {
	userID, err := s.actions.Consume(ctx, verifyToken, model.PurposeVerifyEmail)
	if err != nil {
		if errors.Is(err, repository.ErrActionTokenInvalid) {
			return ErrActionTokenInvalid
		}
		return fmt.Errorf("verify email: consume token: %w", err)
	}
	if err := s.users.SetEmailVerified(ctx, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("verify email: mark verified: %w", err)
	}
	return nil
}

// Principal loads the current user, for /me and the request authenticator.
func (s *Service) Principal(ctx context.Context, userID uint64) (model.User, error) {
	return s.users.GetByID(ctx, userID)
}

// DeleteExpiredTokens is the periodic hygiene sweep.
func (s *Service) DeleteExpiredTokens(ctx context.Context) (int64, error) {
	return s.tokens.DeleteExpired(ctx)
}

func (s *Service) issueSession(ctx context.Context, u model.User, prov Provenance) (Session, error) {
	access, err := s.codec.IssueAccess(u.ID, u.Email, u.Role)
	if err != nil {
		return Session{}, fmt.Errorf("issue access: %w", err)
	}
	refresh, jti, err := s.codec.IssueRefresh(u.ID)
	if err != nil {
		return Session{}, fmt.Errorf("issue refresh: %w", err)
	}
	if err := s.tokens.Store(ctx, u.ID, jti, refresh.ExpiresAt, prov.UserAgent, prov.IPAddress); err != nil {
		return Session{}, fmt.Errorf("persist refresh: %w", err)
	}
	return Session{User: u, Access: access, Refresh: refresh}, nil
}

// dispatchActionMail creates a single-use token and publishes the matching
// mail event. Failures are soft: they are logged and never surfaced.
func (s *Service) dispatchActionMail(ctx context.Context, u model.User, purpose string) {
	ttl, kind, path := verifyTokenTTL, queue.MailVerifyEmail, "/verify-email"
	if purpose == model.PurposeResetPassword {
		ttl, kind, path = resetTokenTTL, queue.MailResetPassword, "/reset-password"
	}

	tok, err := s.actions.Create(ctx, u.ID, purpose, ttl)
	if err != nil {
		s.log.Warn().Err(err).Str("purpose", purpose).Uint64("user_id", u.ID).Msg("action token create failed")
		return
	}
	ev := queue.MailEvent{
		Kind:        kind,
		UserID:      u.ID,
		Email:       u.Email,
		Link:        s.frontendURL + path + "?token=" + tok,
		RequestedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.mail.PublishMail(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("kind", kind).Uint64("user_id", u.ID).Msg("mail dispatch failed")
	}
}
