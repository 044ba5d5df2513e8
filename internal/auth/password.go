package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// PINLength is the length of a PIN set through rotation or administrative reset.
const PINLength = 6

// HashPassword hashes a plaintext password with configured cost.
func HashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its hashed value.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

// HashPIN hashes a PIN. PINs share the password hashing scheme.
func HashPIN(pin string, cost int) (string, error) {
	if !IsDigits(pin) {
		return "", errors.New("pin must be numeric")
	}
	return HashPassword(pin, cost)
}

// MatchPIN reports whether pin matches hashed. An empty hash never matches.
func MatchPIN(hashed, pin string) bool {
	if hashed == "" {
		return false
	}
	return ComparePassword(hashed, pin) == nil
}

// IsDigits reports whether s is non-empty and entirely ASCII digits.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// IsPIN reports whether s is a numeric PIN of length between min and PINLength.
func IsPIN(s string, min int) bool {
	return IsDigits(s) && len(s) >= min && len(s) <= PINLength
}
