package crypto

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const dummyPassword = "alexander-auth-dummy-password"

// HashPassword returns the bcrypt hash of password at the given cost.
// A cost of 0 selects bcrypt.DefaultCost.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// PasswordComparer checks passwords against stored hashes. A missing hash is
// compared against a dummy hash of the same cost as new hashes, so accounts
// without a password take as long to reject as a wrong password.
type PasswordComparer struct {
	dummy []byte
}

// NewPasswordComparer creates a comparer whose dummy hash uses cost.
// A cost of 0 selects bcrypt.DefaultCost.
func NewPasswordComparer(cost int) (*PasswordComparer, error) {
	hash, err := HashPassword(dummyPassword, cost)
	if err != nil {
		return nil, err
	}
	return &PasswordComparer{dummy: []byte(hash)}, nil
}

// DummyCost returns the bcrypt cost of the dummy hash.
func (c *PasswordComparer) DummyCost() int {
	cost, _ := bcrypt.Cost(c.dummy)
	return cost
}

// Compare reports whether password matches hash. An empty hash is never a
// match but still performs a full comparison.
func (c *PasswordComparer) Compare(hash, password string) (bool, error) {
	if hash == "" {
		_ = bcrypt.CompareHashAndPassword(c.dummy, []byte(password))
		return false, nil
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("failed to compare password: %w", err)
	}
}
