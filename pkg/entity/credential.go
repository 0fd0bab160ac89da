package entity

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the cost used by HashPassword.
const DefaultBcryptCost = 10

// ErrPasswordTooLong is returned for passwords bcrypt would truncate.
var ErrPasswordTooLong = errors.New("password must be at most 72 bytes")

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	if len(password) > 72 {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), DefaultBcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches the bcrypt hash encoded.
// An empty hash never matches.
func VerifyPassword(encoded, password string) bool {
	if encoded == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password)) == nil
}
