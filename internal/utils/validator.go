// Package utils holds small form-input helpers shared by the page handlers.
package utils

import (
	"regexp"
	"strings"
	"unicode"
)

const minPasswordLength = 8

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail reports whether email looks like a deliverable address.
func ValidateEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// ValidatePassword enforces the upstream's password policy: at least 8
// characters with an uppercase letter, a lowercase letter and a digit.
// Checking here keeps the round trip for obviously bad input off the wire.
func ValidatePassword(password string) bool {
	if len(password) < minPasswordLength {
		return false
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	return hasUpper && hasLower && hasDigit
}

// SanitizeEmail normalizes an address for comparison and submission.
func SanitizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
