// Package oauth implements the Google authorization-code flow. The provider
// hands back a verified external identity; account resolution and token
// issuance stay in the auth service.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/openlearn/auth-service/internal/utils"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// ErrUnverifiedEmail rejects Google identities whose email Google itself
// has not verified; the trust model of provider-login depends on it.
var ErrUnverifiedEmail = errors.New("external identity email not verified")

// Identity is the subset of the provider's profile the auth core needs.
type Identity struct {
	SubjectID string
	Email     string
}

// GoogleProvider wraps an oauth2.Config for the Google endpoints.
type GoogleProvider struct {
	cfg *oauth2.Config
}

func NewGoogle(clientID, clientSecret, redirectURL string) *GoogleProvider {
	return &GoogleProvider{cfg: &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     endpoints.Google,
	}}
}

// Enabled reports whether client credentials were configured.
func (g *GoogleProvider) Enabled() bool { return g.cfg.ClientID != "" }

// AuthURL builds the consent-screen redirect for the given CSRF state.
func (g *GoogleProvider) AuthURL(state string) string {
	return g.cfg.AuthCodeURL(state)
}

// NewState generates the random state value, stored in a short-lived cookie
// and compared on callback.
func NewState() (string, error) {
	return utils.RandomHex(16)
}

// Exchange trades the authorization code for tokens and resolves the
// caller's Google identity from the userinfo endpoint.
func (g *GoogleProvider) Exchange(ctx context.Context, code string) (Identity, error) {
	tok, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return Identity{}, fmt.Errorf("oauth exchange: %w", err)
	}

	client := g.cfg.Client(ctx, tok)
	resp, err := client.Get(googleUserInfoURL)
	if err != nil {
		return Identity{}, fmt.Errorf("userinfo fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Identity{}, fmt.Errorf("userinfo fetch: status %d", resp.StatusCode)
	}

	var info struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return Identity{}, fmt.Errorf("userinfo decode: %w", err)
	}
	if info.Sub == "" || info.Email == "" {
		return Identity{}, errors.New("userinfo missing subject or email")
	}
	if !info.EmailVerified {
		return Identity{}, ErrUnverifiedEmail
	}
	return Identity{SubjectID: info.Sub, Email: info.Email}, nil
}
