// Package crypto provides cryptographic utilities for Alexander Auth.
package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// ErrInvalidCodeLength indicates a code length outside the supported range.
var ErrInvalidCodeLength = errors.New("code length must be between 1 and 18 digits")

// GenerateNumericCode returns a zero-padded string of length decimal digits
// drawn uniformly from [0, 10^length) using crypto/rand.
func GenerateNumericCode(length int) (string, error) {
	if length < 1 || length > 18 {
		return "", ErrInvalidCodeLength
	}

	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("failed to generate random code: %w", err)
	}

	return fmt.Sprintf("%0*d", length, n.Int64()), nil
}
