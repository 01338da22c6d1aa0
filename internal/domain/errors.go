package domain

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (database, network, etc.),
// which are wrapped in ErrStoreUnavailable or ErrDeliveryFailed.

var (
	// ===========================================
	// Validation Errors
	// ===========================================

	// ErrInvalidEmail indicates the email address is malformed.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrInvalidPassword indicates the password does not meet requirements.
	ErrInvalidPassword = errors.New("invalid password")

	// ErrInvalidFullName indicates the full name is empty or too long.
	ErrInvalidFullName = errors.New("full name must be between 1 and 255 characters")

	// ErrInvalidOtpFormat indicates the submitted code is not a fixed-length digit string.
	ErrInvalidOtpFormat = errors.New("otp must be a numeric code of the expected length")

	// ===========================================
	// Registration Errors
	// ===========================================

	// ErrEmailAlreadyRegistered indicates an active account already uses the email.
	ErrEmailAlreadyRegistered = errors.New("email already registered")

	// ErrEmailNotVerified indicates registration was attempted before OTP verification.
	ErrEmailNotVerified = errors.New("email not verified")

	// ===========================================
	// OTP Errors
	// ===========================================

	// ErrInvalidOtp indicates no challenge matches the email and code.
	ErrInvalidOtp = errors.New("invalid otp")

	// ErrOtpExpired indicates the matching challenge is past its validity window.
	ErrOtpExpired = errors.New("otp expired")

	// ErrOtpNotFound indicates the requested challenge does not exist.
	ErrOtpNotFound = errors.New("otp not found")

	// ===========================================
	// Authentication Errors
	// ===========================================

	// ErrInvalidCredentials indicates authentication failed.
	ErrInvalidCredentials = errors.New("incorrect email or password")

	// ErrAccountNotVerified indicates the password matched but the email is unverified.
	ErrAccountNotVerified = errors.New("account not verified")

	// ErrInvalidToken indicates the bearer token is missing, malformed, expired
	// or does not resolve to an active user.
	ErrInvalidToken = errors.New("could not validate credentials")

	// ===========================================
	// User Errors
	// ===========================================

	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates a user row with the same email exists.
	ErrUserAlreadyExists = errors.New("user already exists")

	// ===========================================
	// Dependency Errors
	// ===========================================

	// ErrDeliveryFailed indicates the notification could not be delivered.
	ErrDeliveryFailed = errors.New("failed to deliver otp")

	// ErrStoreUnavailable indicates the credential store failed.
	ErrStoreUnavailable = errors.New("credential store unavailable")
)

// Kind classifies a domain error for transport mapping.
type Kind int

const (
	// KindInternal is any error not otherwise classified.
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindAuth
	KindNotFound
	KindExpired
	KindDependency
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindExpired:
		return "expired"
	case KindDependency:
		return "dependency"
	default:
		return "internal"
	}
}

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrInvalidEmail, KindValidation},
	{ErrInvalidPassword, KindValidation},
	{ErrInvalidFullName, KindValidation},
	{ErrInvalidOtpFormat, KindValidation},
	{ErrInvalidOtp, KindValidation},
	{ErrEmailAlreadyRegistered, KindConflict},
	{ErrUserAlreadyExists, KindConflict},
	{ErrEmailNotVerified, KindAuth},
	{ErrInvalidCredentials, KindAuth},
	{ErrAccountNotVerified, KindAuth},
	{ErrInvalidToken, KindAuth},
	{ErrUserNotFound, KindNotFound},
	{ErrOtpNotFound, KindNotFound},
	{ErrOtpExpired, KindExpired},
	{ErrDeliveryFailed, KindDependency},
	{ErrStoreUnavailable, KindDependency},
}

// KindOf returns the kind of the first domain sentinel found in err's chain.
func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// DomainError wraps a domain error with additional context.
type DomainError struct {
	// Err is the underlying domain error.
	Err error

	// Message provides additional context.
	Message string

	// Resource identifies the affected resource (e.g., an email address).
	Resource string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Err.Error(), e.Message, e.Resource)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError with context.
func NewDomainError(err error, message, resource string) *DomainError {
	return &DomainError{
		Err:      err,
		Message:  message,
		Resource: resource,
	}
}

// StoreError wraps an infrastructure failure as ErrStoreUnavailable while
// keeping the cause reachable through errors.Is.
func StoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
