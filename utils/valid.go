// utils/valid.go
package utils

import (
	"errors"
	"html"
	"regexp"
	"strings"
	"unicode"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	otpRegex   = regexp.MustCompile(`^[0-9]{6}$`)
)

// SanitizeInput sanitizes user input to prevent XSS and injection attacks
func SanitizeInput(input string) string {
	input = strings.TrimSpace(input)
	input = html.EscapeString(input)

	// Remove control characters
	input = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, input)

	return input
}

// SanitizeEmail sanitizes and validates an email address
func SanitizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	email = strings.ToLower(email)

	if !emailRegex.MatchString(email) {
		return "", errors.New("invalid email format")
	}

	return email, nil
}

// IsValidOTPCode reports whether the input is exactly 6 decimal digits.
// Format validation lives here in the transport layer; the OTP service
// assumes well-formed input.
func IsValidOTPCode(code string) bool {
	return otpRegex.MatchString(code)
}

// SanitizePhone sanitizes and validates a phone number
func SanitizePhone(phone string) (string, error) {
	// Phone is optional
	if strings.TrimSpace(phone) == "" {
		return "", nil
	}

	// Remove all non-numeric characters except +
	phone = regexp.MustCompile(`[^\d+]`).ReplaceAllString(phone, "")

	if !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}

	if len(phone) < 8 || len(phone) > 16 {
		return "", errors.New("invalid phone number length")
	}

	return phone, nil
}
