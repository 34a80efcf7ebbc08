package validation

import (
	"regexp"
	"strings"

	"github.com/Payphone-Digital/portfolio-service/internal/constants"
)

var (
	nonPhoneChars = regexp.MustCompile(`[^\d+]`)
	e164Regex     = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)
)

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone strips formatting characters and ensures a leading '+'.
// It returns "" for input with no digits.
func NormalizePhone(phone string) string {
	normalized := nonPhoneChars.ReplaceAllString(strings.TrimSpace(phone), "")
	normalized = "+" + strings.TrimLeft(normalized, "+")
	if normalized == "+" {
		return ""
	}
	return normalized
}

func ValidE164(phone string) bool {
	return e164Regex.MatchString(phone)
}

func ValidEmail(email string) bool {
	if len(email) == 0 || len(email) > constants.MaxEmailLength {
		return false
	}
	return Validator().Var(email, "email") == nil
}

// NormalizeUsername trims surrounding whitespace; case is preserved.
func NormalizeUsername(username string) string {
	return strings.TrimSpace(username)
}
