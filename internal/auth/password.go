// Package auth holds the credential primitives of the service: password
// hashing and bearer-token issuance/validation. Every value here is configured
// at construction time; nothing reads globals, so tests can inject a secret
// and a clock.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned when a password does not match its stored hash.
var ErrInvalidCredentials = errors.New("invalid credentials")

// PasswordHasher hashes and verifies passwords with bcrypt.
type PasswordHasher struct {
	Cost int
}

// NewPasswordHasher returns a hasher using cost, or bcrypt.DefaultCost when cost is out of range.
func NewPasswordHasher(cost int) PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return PasswordHasher{Cost: cost}
}

// Hash returns a salted one-way hash of plain.
func (h PasswordHasher) Hash(plain string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// Verify returns nil when plain matches hash and ErrInvalidCredentials otherwise.
func (h PasswordHasher) Verify(hash, plain string) error {
	if hash == "" {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
