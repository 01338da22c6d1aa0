package domain

import (
	"time"
)

// OTPChallenge is a one-time passcode issued to an email address.
// At most one live challenge exists per email; issuing a new one replaces
// the previous, and verifying or expiring one deletes it.
type OTPChallenge struct {
	// ID is the unique identifier for the challenge (auto-generated).
	ID int64

	// Email is the target address. It need not belong to an existing user.
	Email string

	// Code is the fixed-length numeric passcode.
	Code string

	// ExpiresAt is the instant from which the challenge is no longer valid.
	ExpiresAt time.Time

	// CreatedAt is the timestamp when the challenge was issued.
	CreatedAt time.Time
}

// NewOTPChallenge creates a challenge valid for ttl starting at now.
func NewOTPChallenge(email, code string, now time.Time, ttl time.Duration) *OTPChallenge {
	now = now.UTC()
	return &OTPChallenge{
		Email:     email,
		Code:      code,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

// IsExpired reports whether the challenge is past its validity window.
// A challenge is valid only strictly before ExpiresAt.
func (c *OTPChallenge) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// IsNumericCode reports whether code is exactly length ASCII digits.
func IsNumericCode(code string, length int) bool {
	if len(code) != length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
