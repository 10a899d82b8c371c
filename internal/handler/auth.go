package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/openlearn/auth-service/internal/api"
	"github.com/openlearn/auth-service/internal/auth"
	"github.com/openlearn/auth-service/internal/config"
	"github.com/openlearn/auth-service/internal/middleware"
	"github.com/openlearn/auth-service/internal/model"
	"github.com/openlearn/auth-service/internal/oauth"
)

// Cookie names. The refresh cookie is HttpOnly, SameSite=Lax, Secure in
// production and scoped to the auth path so it never rides along on API
// calls that don't need it.
const (
	refreshCookieName = "refresh_token"
	stateCookieName   = "oauth_state"
)

// forgotPasswordReply is deliberately constant: registered and unregistered
// addresses produce byte-identical responses.
const forgotPasswordReply = "If an account exists for that address, a password reset link has been sent."

// AuthHandler exposes the auth session operations over HTTP.
type AuthHandler struct {
	Svc    *auth.Service
	Cfg    config.Config
	Google *oauth.GoogleProvider
	Log    zerolog.Logger
}

func NewAuthHandler(svc *auth.Service, cfg config.Config, google *oauth.GoogleProvider, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{Svc: svc, Cfg: cfg, Google: google, Log: log}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type forgotReq struct {
	Email string `json:"email"`
}
type resetReq struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}
type verifyEmailReq struct {
	Token string `json:"token"`
}
type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type userPart struct {
	ID            uint64 `json:"id"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	Provider      string `json:"provider"`
	EmailVerified bool   `json:"emailVerified"`
}

type sessionResp struct {
	User            userPart  `json:"user"`
	AccessToken     string    `json:"accessToken"`
	AccessExpiresAt time.Time `json:"accessExpiresAt"`
}

func toUserPart(u model.User) userPart {
	return userPart{
		ID:            u.ID,
		Email:         u.Email,
		Role:          u.Role,
		Provider:      u.Provider,
		EmailVerified: u.EmailVerifiedAt != nil,
	}
}

// Register creates a local account and signs it in.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return api.Fail(c, http.StatusBadRequest, api.CodeValidation, "invalid body")
	}
	sess, err := h.Svc.Register(c.Request().Context(), req.Email, req.Password, provenance(c))
	if err != nil {
		return h.fail(c, err)
	}
	h.setRefreshCookie(c, sess)
	return api.OK(c, http.StatusCreated, sessionResp{
		User:            toUserPart(sess.User),
		AccessToken:     sess.Access.Token,
		AccessExpiresAt: sess.Access.ExpiresAt,
	})
}

// Login authenticates with email and password.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return api.Fail(c, http.StatusBadRequest, api.CodeValidation, "invalid body")
	}
	cred := auth.LocalCredential{Email: req.Email, Password: req.Password}
	sess, err := h.Svc.Authenticate(c.Request().Context(), cred, provenance(c))
	if err != nil {
		return h.fail(c, err)
	}
	h.setRefreshCookie(c, sess)
	return api.OK(c, http.StatusOK, sessionResp{
		User:            toUserPart(sess.User),
		AccessToken:     sess.Access.Token,
		AccessExpiresAt: sess.Access.ExpiresAt,
	})
}

// Refresh rotates the token pair presented via the refresh cookie.
func (h *AuthHandler) Refresh(c echo.Context) error {
	cookie, err := c.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		return api.Fail(c, http.StatusUnauthorized, api.CodeTokenInvalid, "refresh token missing")
	}
	sess, err := h.Svc.Refresh(c.Request().Context(), cookie.Value, provenance(c))
	if err != nil {
		h.clearRefreshCookie(c)
		return h.fail(c, err)
	}
	h.setRefreshCookie(c, sess)
	return api.OK(c, http.StatusOK, sessionResp{
		User:            toUserPart(sess.User),
		AccessToken:     sess.Access.Token,
		AccessExpiresAt: sess.Access.ExpiresAt,
	})
}

// Logout revokes the presented refresh token if there is one and clears the
// cookie. It always reports success: logging out with an already-dead token
// is still logged out.
func (h *AuthHandler) Logout(c echo.Context) error {
	if cookie, err := c.Cookie(refreshCookieName); err == nil {
		h.Svc.Logout(c.Request().Context(), cookie.Value)
	}
	h.clearRefreshCookie(c)
	return api.OK(c, http.StatusOK, echo.Map{"message": "logged out"})
}

// ForgotPassword always answers the same way regardless of whether the
// email matched an account.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotReq
	if err := c.Bind(&req); err != nil {
		return api.Fail(c, http.StatusBadRequest, api.CodeValidation, "invalid body")
	}
	h.Svc.ForgotPassword(c.Request().Context(), req.Email)
	return api.OK(c, http.StatusOK, echo.Map{"message": forgotPasswordReply})
}

// ResetPassword consumes a reset token and installs a new password.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return api.Fail(c, http.StatusBadRequest, api.CodeValidation, "invalid body")
	}
	if err := h.Svc.ResetPassword(c.Request().Context(), req.Token, req.Password); err != nil {
		return h.fail(c, err)
	}
	return api.OK(c, http.StatusOK, echo.Map{"message": "password updated"})
}

// VerifyEmail consumes an email-verification token.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req verifyEmailReq
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return api.Fail(c, http.StatusBadRequest, api.CodeValidation, "invalid body")
	}
	if err := h.Svc.VerifyEmail(c.Request().Context(), req.Token); err != nil {
		return h.fail(c, err)
	}
	return api.OK(c, http.StatusOK, echo.Map{"message": "email verified"})
}

// ChangePassword rotates the caller's password and ends every session,
// including those on other devices.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return api.Fail(c, http.StatusUnauthorized, api.CodeUnauthorized, "authentication required")
	}
	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return api.Fail(c, http.StatusBadRequest, api.CodeValidation, "invalid body")
	}
	if err := h.Svc.ChangePassword(c.Request().Context(), p.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return h.fail(c, err)
	}
	h.clearRefreshCookie(c)
	return api.OK(c, http.StatusOK, echo.Map{"message": "password changed, all sessions revoked"})
}

// Me returns the authenticated principal.
func (h *AuthHandler) Me(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return api.Fail(c, http.StatusUnauthorized, api.CodeUnauthorized, "authentication required")
	}
	u, err := h.Svc.Principal(c.Request().Context(), p.ID)
	if err != nil {
		return h.fail(c, err)
	}
	return api.OK(c, http.StatusOK, toUserPart(u))
}

// GoogleRedirect starts the Google authorization-code flow.
func (h *AuthHandler) GoogleRedirect(c echo.Context) error {
	if h.Google == nil || !h.Google.Enabled() {
		return api.Fail(c, http.StatusNotFound, api.CodeValidation, "google login not configured")
	}
	state, err := oauth.NewState()
	if err != nil {
		return api.Fail(c, http.StatusInternalServerError, api.CodeInternal, "state generation failed")
	}
	c.SetCookie(&http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/v1/auth",
		MaxAge:   int(5 * time.Minute / time.Second),
		HttpOnly: true,
		Secure:   h.Cfg.IsProd(),
		SameSite: http.SameSiteLaxMode,
	})
	return c.Redirect(http.StatusTemporaryRedirect, h.Google.AuthURL(state))
}

// GoogleCallback completes the flow: state check, code exchange, account
// resolution, then the same token issuance as password login.
func (h *AuthHandler) GoogleCallback(c echo.Context) error {
	if h.Google == nil || !h.Google.Enabled() {
		return api.Fail(c, http.StatusNotFound, api.CodeValidation, "google login not configured")
	}
	stateCookie, err := c.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != c.QueryParam("state") {
		return api.Fail(c, http.StatusUnauthorized, api.CodeUnauthorized, "oauth state mismatch")
	}
	code := c.QueryParam("code")
	if code == "" {
		return api.Fail(c, http.StatusBadRequest, api.CodeValidation, "authorization code missing")
	}

	ident, err := h.Google.Exchange(c.Request().Context(), code)
	if err != nil {
		h.Log.Warn().Err(err).Msg("google exchange failed")
		return api.Fail(c, http.StatusUnauthorized, api.CodeUnauthorized, "google sign-in failed")
	}

	cred := auth.ExternalCredential{Provider: model.ProviderGoogle, SubjectID: ident.SubjectID, Email: ident.Email}
	sess, err := h.Svc.Authenticate(c.Request().Context(), cred, provenance(c))
	if err != nil {
		return h.fail(c, err)
	}
	h.setRefreshCookie(c, sess)
	return api.OK(c, http.StatusOK, sessionResp{
		User:            toUserPart(sess.User),
		AccessToken:     sess.Access.Token,
		AccessExpiresAt: sess.Access.ExpiresAt,
	})
}

// ----- helpers -----

// fail maps service errors to envelope codes. Anything unmapped is an
// internal error: logged with detail, reported without.
func (h *AuthHandler) fail(c echo.Context, err error) error {
	var ve *auth.ValidationError
	switch {
	case errors.As(err, &ve):
		return api.FailDetails(c, http.StatusBadRequest, api.CodeValidation, "validation failed", ve.Violations)
	case errors.Is(err, auth.ErrInvalidCredentials):
		return api.Fail(c, http.StatusUnauthorized, api.CodeInvalidCredential, "invalid email or password")
	case errors.Is(err, auth.ErrEmailExists):
		return api.Fail(c, http.StatusConflict, api.CodeEmailExists, "email already registered")
	case errors.Is(err, auth.ErrRefreshInvalid):
		return api.Fail(c, http.StatusUnauthorized, api.CodeTokenInvalid, "refresh token invalid or expired")
	case errors.Is(err, auth.ErrActionTokenInvalid):
		return api.Fail(c, http.StatusBadRequest, api.CodeResetTokenInvalid, "token invalid or expired")
	case errors.Is(err, auth.ErrNoLocalPassword):
		return api.Fail(c, http.StatusBadRequest, api.CodeValidation, "account has no local password")
	default:
		h.Log.Error().Err(err).Str("path", c.Path()).Msg("auth operation failed")
		return api.Fail(c, http.StatusInternalServerError, api.CodeInternal, "internal error")
	}
}

func (h *AuthHandler) setRefreshCookie(c echo.Context, sess auth.Session) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    sess.Refresh.Token,
		Path:     "/v1/auth",
		Domain:   h.Cfg.CookieDomain,
		Expires:  sess.Refresh.ExpiresAt,
		HttpOnly: true,
		Secure:   h.Cfg.IsProd(),
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/v1/auth",
		Domain:   h.Cfg.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.Cfg.IsProd(),
		SameSite: http.SameSiteLaxMode,
	})
}

func provenance(c echo.Context) auth.Provenance {
	return auth.Provenance{
		UserAgent: c.Request().UserAgent(),
		IPAddress: c.RealIP(),
	}
}
