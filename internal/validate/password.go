package validate

import (
	"strings"
	"unicode"
)

// Rule identifiers surfaced to clients. The strings are stable: the SPA
// matches on them to highlight individual form fields.
const (
	RuleTooShort  = "password must be at least 8 characters"
	RuleTooLong   = "password must be at most 128 characters"
	RuleNoDigit   = "password must contain at least one digit"
	RuleNoSymbol  = "password must contain at least one symbol"
	RuleTooCommon = "password is too common"
)

// defaultCommonPasswords is the case-insensitive exact-match blocklist.
// Small on purpose: it catches the worst offenders, not every weak password.
var defaultCommonPasswords = []string{
	"password",
	"password1",
	"123456",
	"12345678",
	"123456789",
	"qwerty123",
	"letmein1",
	"iloveyou1",
	"welcome1",
	"admin123",
	"abc12345",
}

// PasswordPolicy enforces a single uniform strength policy: length bounds,
// at least one digit, at least one symbol, and a common-password blocklist.
type PasswordPolicy struct {
	MinLen  int
	MaxLen  int
	blocked map[string]struct{}
}

// NewPasswordPolicy returns the standard policy (8..128 chars) with the
// default blocklist plus any extra entries.
func NewPasswordPolicy(extraBlocked ...string) *PasswordPolicy {
	p := &PasswordPolicy{
		MinLen:  8,
		MaxLen:  128,
		blocked: make(map[string]struct{}, len(defaultCommonPasswords)+len(extraBlocked)),
	}
	for _, w := range defaultCommonPasswords {
		p.blocked[strings.ToLower(w)] = struct{}{}
	}
	for _, w := range extraBlocked {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			p.blocked[w] = struct{}{}
		}
	}
	return p
}

// Validate returns every violated rule at once, never just the first, so a
// client can show all problems in a single round trip. A nil result means
// the password passes.
func (p *PasswordPolicy) Validate(password string) []string {
	var violations []string
	if len(password) < p.MinLen {
		violations = append(violations, RuleTooShort)
	}
	if len(password) > p.MaxLen {
		violations = append(violations, RuleTooLong)
	}
	if !containsFunc(password, unicode.IsDigit) {
		violations = append(violations, RuleNoDigit)
	}
	if !containsFunc(password, isSymbol) {
		violations = append(violations, RuleNoSymbol)
	}
	if _, bad := p.blocked[strings.ToLower(password)]; bad {
		violations = append(violations, RuleTooCommon)
	}
	return violations
}

func isSymbol(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}

func containsFunc(s string, f func(rune) bool) bool {
	for _, r := range s {
		if f(r) {
			return true
		}
	}
	return false
}
