// Package validate holds credential policy checks: email plausibility and
// password strength. Policy is independent of hashing and storage so it can
// be unit tested and tuned without touching the auth flows.
package validate

import (
	"errors"
	"regexp"
	"strings"
)

// emailShape is a deliberately loose local@domain.tld check. Full RFC 5321
// parsing is out of scope; this is best-effort fraud reduction.
var emailShape = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Shape and plausibility failures. Callers present all of these to the user
// as a generic "invalid email" validation error.
var (
	ErrEmailShape     = errors.New("email is not a valid address")
	ErrEmailLocalPart = errors.New("email local part is not plausible")
	ErrEmailDomain    = errors.New("email domain is not allowed")
)

// defaultBlockedDomains are disposable or test domains we refuse at
// registration. The list is heuristic, not load-bearing; deployments can
// extend it via NewEmailPolicy.
var defaultBlockedDomains = []string{
	"mailinator.com",
	"guerrillamail.com",
	"10minutemail.com",
	"tempmail.com",
	"yopmail.com",
	"trashmail.com",
}

// EmailPolicy performs syntactic and plausibility checks on addresses.
type EmailPolicy struct {
	blocked map[string]struct{}
}

// NewEmailPolicy builds a policy with the default disposable-domain
// blocklist plus any extra domains supplied by configuration.
func NewEmailPolicy(extraBlocked ...string) *EmailPolicy {
	p := &EmailPolicy{blocked: make(map[string]struct{}, len(defaultBlockedDomains)+len(extraBlocked))}
	for _, d := range defaultBlockedDomains {
		p.blocked[strings.ToLower(d)] = struct{}{}
	}
	for _, d := range extraBlocked {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			p.blocked[d] = struct{}{}
		}
	}
	return p
}

// Normalize lowercases and trims an address. Every lookup and every stored
// email goes through this first.
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate checks shape plus plausibility heuristics: purely numeric local
// parts, blocked domains, and domains without a dot or without any letter
// are rejected. Returns nil when the address passes.
func (p *EmailPolicy) Validate(email string) error {
	email = Normalize(email)
	if !emailShape.MatchString(email) {
		return ErrEmailShape
	}
	at := strings.LastIndexByte(email, '@')
	local, domain := email[:at], email[at+1:]

	if allDigits(local) {
		return ErrEmailLocalPart
	}
	if _, bad := p.blocked[domain]; bad {
		return ErrEmailDomain
	}
	if !strings.Contains(domain, ".") || !hasLetter(domain) {
		return ErrEmailDomain
	}
	return nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func hasLetter(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return true
		}
	}
	return false
}
