// Package domain contains the core business entities for Alexander Auth.
// These are pure Go structs with no external dependencies, representing
// accounts and the one-time passcodes that prove ownership of an email.
package domain

import (
	"strings"
	"time"
)

// User represents an account keyed by email address.
// A user row may exist before registration completes: verifying an OTP
// creates an inactive, verified placeholder that Register later activates.
type User struct {
	// ID is the unique identifier for the user (auto-generated).
	ID int64 `json:"id"`

	// Email is the unique, normalized email address.
	Email string `json:"email"`

	// FullName is the display name supplied at registration.
	FullName string `json:"full_name"`

	// PasswordHash is the bcrypt hash of the user's password.
	// This should never be exposed in API responses.
	PasswordHash string `json:"-"`

	// IsActive is true once registration is finalized.
	IsActive bool `json:"is_active"`

	// IsVerified is true once an OTP for this email has been verified.
	IsVerified bool `json:"is_verified"`

	// CreatedAt is the timestamp when the user was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the timestamp when the user was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewVerifiedPlaceholder creates the inactive user recorded when an email
// is verified before the account is registered.
func NewVerifiedPlaceholder(email string, now time.Time) *User {
	now = now.UTC()
	return &User{
		Email:      email,
		IsActive:   false,
		IsVerified: true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// MarkVerified flags the user as verified. It never clears the flag.
func (u *User) MarkVerified(now time.Time) {
	u.IsVerified = true
	u.UpdatedAt = now.UTC()
}

// Activate finalizes registration for a verified placeholder.
func (u *User) Activate(fullName, passwordHash string, now time.Time) {
	u.FullName = fullName
	u.PasswordHash = passwordHash
	u.IsActive = true
	u.UpdatedAt = now.UTC()
}

// CanAuthenticate returns true if the user is allowed to authenticate.
func (u *User) CanAuthenticate() bool {
	return u.IsActive && u.PasswordHash != ""
}

// PublicUser is the representation of a user returned to API clients.
type PublicUser struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	IsActive bool   `json:"is_active"`
}

// Public returns the client-facing view of the user.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:       u.ID,
		Email:    u.Email,
		FullName: u.FullName,
		IsActive: u.IsActive,
	}
}

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
// Every store lookup goes through this so that emails compare consistently
// across drivers with different collations.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
