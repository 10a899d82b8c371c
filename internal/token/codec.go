// Package token signs and verifies the two token kinds used by the auth
// core. Access tokens are stateless: everything a route guard needs is in
// the claims. Refresh tokens carry a JTI that must additionally be checked
// against the refresh-token store before they are honored.
package token

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Verification outcomes. Callers map these to distinct response codes:
// expired prompts the client to refresh, invalid is a hard failure.
var (
	ErrExpired = errors.New("token expired")
	ErrInvalid = errors.New("token invalid")
)

// Config holds the signing material and lifetimes. AccessSecret and
// RefreshSecret must differ so compromise of one does not compromise the
// other; config loading enforces that before a Codec is ever built.
type Config struct {
	AccessSecret  string
	RefreshSecret string
	Issuer        string
	Audience      string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Codec issues and verifies HS256-signed tokens.
type Codec struct {
	cfg Config
}

func NewCodec(cfg Config) *Codec { return &Codec{cfg: cfg} }

// AccessTTL exposes the configured access-token lifetime for handlers that
// report expiry to clients.
func (c *Codec) AccessTTL() time.Duration { return c.cfg.AccessTTL }

// RefreshTTL exposes the configured refresh-token lifetime for cookie
// Max-Age calculation.
func (c *Codec) RefreshTTL() time.Duration { return c.cfg.RefreshTTL }

// AccessClaims is the principal subset embedded in an access token.
type AccessClaims struct {
	UserID uint64
	Email  string
	Role   string
}

// Issued is a signed token string with its absolute expiry.
type Issued struct {
	Token     string
	ExpiresAt time.Time
}

type accessClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

type refreshClaims struct {
	jwt.RegisteredClaims
}

// IssueAccess signs a short-lived access token for the given principal.
func (c *Codec) IssueAccess(userID uint64, email, role string) (Issued, error) {
	now := time.Now().UTC()
	exp := now.Add(c.cfg.AccessTTL)
	claims := accessClaims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			Issuer:    c.cfg.Issuer,
			Audience:  jwt.ClaimStrings{c.cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.cfg.AccessSecret))
	if err != nil {
		return Issued{}, err
	}
	return Issued{Token: signed, ExpiresAt: exp}, nil
}

// IssueRefresh signs a long-lived refresh token with a fresh JTI. The JTI is
// returned separately so the caller can persist it before handing the token
// to the client.
func (c *Codec) IssueRefresh(userID uint64) (Issued, string, error) {
	now := time.Now().UTC()
	exp := now.Add(c.cfg.RefreshTTL)
	jti := uuid.NewString()
	claims := refreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			ID:        jti,
			Issuer:    c.cfg.Issuer,
			Audience:  jwt.ClaimStrings{c.cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.cfg.RefreshSecret))
	if err != nil {
		return Issued{}, "", err
	}
	return Issued{Token: signed, ExpiresAt: exp}, jti, nil
}

// VerifyAccess parses and validates an access token, returning the embedded
// principal claims. Verification is purely cryptographic; no storage lookup.
func (c *Codec) VerifyAccess(raw string) (AccessClaims, error) {
	var claims accessClaims
	if err := c.parse(raw, &claims, c.cfg.AccessSecret); err != nil {
		return AccessClaims{}, err
	}
	uid, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return AccessClaims{}, ErrInvalid
	}
	return AccessClaims{UserID: uid, Email: claims.Email, Role: claims.Role}, nil
}

// VerifyRefresh parses and validates a refresh token, returning the owner
// and the JTI. Signature validity alone is not sufficient for a refresh
// token; the caller must still consult the token store for the JTI.
func (c *Codec) VerifyRefresh(raw string) (userID uint64, jti string, err error) {
	var claims refreshClaims
	if err := c.parse(raw, &claims, c.cfg.RefreshSecret); err != nil {
		return 0, "", err
	}
	uid, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || claims.ID == "" {
		return 0, "", ErrInvalid
	}
	return uid, claims.ID, nil
}

func (c *Codec) parse(raw string, claims jwt.Claims, secret string) error {
	tok, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (interface{}, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.cfg.Issuer),
		jwt.WithAudience(c.cfg.Audience),
	)
	switch {
	case err == nil && tok.Valid:
		return nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return ErrInvalid
	}
}
