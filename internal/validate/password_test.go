package validate

import (
	"strings"
	"testing"
)

func TestPasswordPolicyViolations(t *testing.T) {
	p := NewPasswordPolicy()

	cases := []struct {
		name     string
		password string
		want     []string
	}{
		{"ok", "Secret1!", nil},
		{"ok long", "Password1!", nil},
		{"short no symbol", "abc123", []string{RuleTooShort, RuleNoSymbol}},
		{"no digit", "abcdefg!", []string{RuleNoDigit}},
		{"no symbol", "abcdefg1", []string{RuleNoSymbol}},
		{"everything wrong", "abc", []string{RuleTooShort, RuleNoDigit, RuleNoSymbol}},
		{"too long", strings.Repeat("a1!", 50), []string{RuleTooLong}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := p.Validate(tc.password)
			if len(got) != len(tc.want) {
				t.Fatalf("Validate(%q) = %v, want %v", tc.password, got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("Validate(%q)[%d] = %q, want %q", tc.password, i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestPasswordPolicyReturnsAllViolationsAtOnce(t *testing.T) {
	p := NewPasswordPolicy()
	got := p.Validate("abc")
	if len(got) < 3 {
		t.Fatalf("expected every violated rule, got %v", got)
	}
}

func TestPasswordPolicySymbolRuleNamed(t *testing.T) {
	p := NewPasswordPolicy()
	for _, rule := range p.Validate("abc123") {
		if strings.Contains(rule, "symbol") {
			return
		}
	}
	t.Fatal("expected a violation mentioning symbol for \"abc123\"")
}

func TestPasswordBlocklistCaseInsensitive(t *testing.T) {
	p := NewPasswordPolicy("password1")

	got := p.Validate("PaSsWoRd1")
	found := false
	for _, rule := range got {
		if rule == RuleTooCommon {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected blocklist hit for PaSsWoRd1, got %v", got)
	}

	// Exact match only: the blocklist entry "password1" must not reject
	// "Password1!".
	for _, rule := range p.Validate("Password1!") {
		if rule == RuleTooCommon {
			t.Fatal("blocklist matched a non-exact password")
		}
	}
}
