// Package validate normalizes raw form input into typed values and reports
// failures as field-keyed messages so forms can re-render with inline errors.
package validate

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"
)

// PasswordMinLength is the minimum accepted password length.
const PasswordMinLength = 8

// SlugMaxLength caps tenant slugs.
const SlugMaxLength = 32

var (
	slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	v           = validator.New()
)

// Fields maps form field names to validation messages.
type Fields map[string]string

// Ok reports whether no field failed.
func (f Fields) Ok() bool { return len(f) == 0 }

// TenantName checks a store name.
func TenantName(name string) string {
	if len(strings.TrimSpace(name)) < 2 {
		return "Please enter a store name"
	}
	return ""
}

// Slug checks a tenant slug against the canonical pattern.
func Slug(slug string) string {
	if len(slug) < 2 {
		return "Slug must be at least 2 chars"
	}
	if len(slug) > SlugMaxLength {
		return "Slug must be <= 32 chars"
	}
	if !slugPattern.MatchString(slug) {
		return "Use lowercase letters, numbers and dashes"
	}
	return ""
}

// CleanSlug mirrors the storefront's live slug cleaning: lowercase, drop
// disallowed characters, turn whitespace into dashes, collapse repeats, trim
// edge dashes and truncate.
func CleanSlug(raw string) string {
	s := strings.ToLower(raw)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('-')
		}
	}
	s = b.String()
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-")
	if len(s) > SlugMaxLength {
		s = s[:SlugMaxLength]
		s = strings.TrimRight(s, "-")
	}
	return s
}

// NormalizeEmail applies NFKC normalization, strips zero-width runes and all
// whitespace, and lowercases. Idempotent.
func NormalizeEmail(raw string) string {
	s := norm.NFKC.String(raw)
	var b strings.Builder
	for _, r := range s {
		// Zero-width space/joiners and the BOM survive copy-paste from chat
		// apps; strip them before the grammar check.
		if (r >= '\u200b' && r <= '\u200d') || r == '\ufeff' {
			continue
		}
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}

// Email normalizes then checks the address grammar. Returns the normalized
// address and an error message, empty when valid.
func Email(raw string) (string, string) {
	email := NormalizeEmail(raw)
	if err := v.Var(email, "required,email"); err != nil {
		return email, "Enter a valid email"
	}
	return email, ""
}

// Password enforces the minimum length plus at least one letter and digit.
func Password(password string) string {
	if len(password) < PasswordMinLength {
		return "Password must be at least 8 characters"
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return "Include letters and numbers"
	}
	return ""
}

// Price coerces a form value to a non-negative price. Non-numeric input
// coerces to zero rather than failing, matching the permissive product form.
func Price(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 {
		return 0
	}
	return f
}

// InventoryCount coerces a form value to a non-negative integer.
func InventoryCount(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// WhatsAppNumber accepts an empty value (clears the number) or an
// international-format number with a leading plus.
func WhatsAppNumber(raw string) string {
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(raw, "+") || len(raw) < 8 || len(raw) > 20 {
		return "Use international format with country code (e.g. +1234567890)"
	}
	return ""
}
