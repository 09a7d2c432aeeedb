// Package authutil holds password rules and hashing for console operators.
package authutil

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 10
	MaxPasswordLength = 72 // bcrypt ignores bytes past 72
	BcryptCost        = 12
)

var (
	ErrPasswordTooShort = errors.New("Password must be at least 10 characters.")
	ErrPasswordTooLong  = errors.New("Password must be at most 72 characters.")
	ErrPasswordCommon   = errors.New("This password is too common. Please choose a different one.")
	ErrPasswordLoginID  = errors.New("Password must not contain your login ID.")
)

var commonPasswords = map[string]bool{
	"1234567890":    true,
	"0123456789":    true,
	"password123":   true,
	"password1234":  true,
	"qwertyuiop":    true,
	"1q2w3e4r5t":    true,
	"iloveyou123":   true,
	"letmein123":    true,
	"welcome123":    true,
	"admin12345":    true,
	"administrator": true,
	"changeme123":   true,
	"woocommerce":   true,
	"shopmanager":   true,
}

// PasswordRules describes the rules for display on password forms.
func PasswordRules() string {
	return "Use at least 10 characters. Common passwords and your login ID are not allowed."
}

// ValidatePassword checks password against the length and blocklist rules.
// loginID may be empty; when set, passwords containing it are rejected.
func ValidatePassword(loginID, password string) error {
	switch {
	case len(password) < MinPasswordLength:
		return ErrPasswordTooShort
	case len(password) > MaxPasswordLength:
		return ErrPasswordTooLong
	}

	lower := strings.ToLower(password)
	if commonPasswords[lower] {
		return ErrPasswordCommon
	}
	if id := strings.ToLower(strings.TrimSpace(loginID)); id != "" && strings.Contains(lower, id) {
		return ErrPasswordLoginID
	}
	return nil
}

// HashPassword hashes password with bcrypt. Validate it first.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the bcrypt hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
