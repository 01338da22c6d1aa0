// Package service provides the business logic of Alexander Auth.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/prn-tf/alexander-auth/internal/config"
	"github.com/prn-tf/alexander-auth/internal/domain"
	"github.com/prn-tf/alexander-auth/internal/metrics"
	"github.com/prn-tf/alexander-auth/internal/notify"
	"github.com/prn-tf/alexander-auth/internal/pkg/crypto"
	"github.com/prn-tf/alexander-auth/internal/repository"
	"github.com/prn-tf/alexander-auth/internal/token"
)

const (
	minPasswordLength = 8
	// bcrypt ignores input past 72 bytes.
	maxPasswordBytes  = 72
	maxFullNameLength = 255
	maxEmailLength    = 320
)

// AccountConfig contains account flow configuration.
type AccountConfig struct {
	// OTPLength is the number of digits in an issued code.
	OTPLength int

	// OTPTTL is how long an issued code stays valid.
	OTPTTL time.Duration

	// SendTimeout bounds delivery of one code.
	SendTimeout time.Duration

	// BcryptCost is the work factor for new password hashes.
	BcryptCost int

	// MailSubject is the subject line of OTP emails.
	MailSubject string

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// GenerateCode returns a fresh code. Defaults to crypto.GenerateNumericCode.
	GenerateCode func(length int) (string, error)
}

// DefaultAccountConfig returns sensible defaults.
func DefaultAccountConfig() AccountConfig {
	return AccountConfig{
		OTPLength:    6,
		OTPTTL:       10 * time.Minute,
		SendTimeout:  10 * time.Second,
		BcryptCost:   10,
		MailSubject:  "Your Verification OTP",
		Now:          time.Now,
		GenerateCode: crypto.GenerateNumericCode,
	}
}

// AccountConfigFrom builds an AccountConfig from the loaded configuration.
func AccountConfigFrom(cfg *config.Config) AccountConfig {
	ac := DefaultAccountConfig()
	ac.OTPLength = cfg.OTP.Length
	ac.OTPTTL = cfg.OTP.TTL
	ac.SendTimeout = cfg.OTP.SendTimeout
	ac.BcryptCost = cfg.Auth.BcryptCost
	if cfg.OTP.Subject != "" {
		ac.MailSubject = cfg.OTP.Subject
	}
	return ac
}

// AccountService runs the OTP-gated registration and login flow.
// Every operation re-reads the store; nothing is cached between calls.
type AccountService struct {
	users   repository.UserRepository
	otps    repository.OTPRepository
	tx      repository.TxManager
	sender  notify.Sender
	issuer  *token.Issuer
	metrics *metrics.Metrics
	logger  zerolog.Logger
	config  AccountConfig

	// passwords rejects accounts without a hash at the same bcrypt cost as
	// a wrong password.
	passwords *crypto.PasswordComparer
}

// NewAccountService creates a new AccountService. It fails when the bcrypt
// cost is out of range.
func NewAccountService(
	repos *repository.Repositories,
	sender notify.Sender,
	issuer *token.Issuer,
	m *metrics.Metrics,
	logger zerolog.Logger,
	config AccountConfig,
) (*AccountService, error) {
	defaults := DefaultAccountConfig()
	if config.Now == nil {
		config.Now = defaults.Now
	}
	if config.GenerateCode == nil {
		config.GenerateCode = defaults.GenerateCode
	}
	if config.OTPLength <= 0 {
		config.OTPLength = defaults.OTPLength
	}
	if config.MailSubject == "" {
		config.MailSubject = defaults.MailSubject
	}
	if config.BcryptCost <= 0 {
		config.BcryptCost = defaults.BcryptCost
	}

	passwords, err := crypto.NewPasswordComparer(config.BcryptCost)
	if err != nil {
		return nil, err
	}

	return &AccountService{
		users:     repos.User,
		otps:      repos.OTP,
		tx:        repos.Tx,
		sender:    sender,
		issuer:    issuer,
		metrics:   m,
		logger:    logger.With().Str("service", "account").Logger(),
		config:    config,
		passwords: passwords,
	}, nil
}

// emailLockKey is the per-email key serializing read-then-write operations.
func emailLockKey(email string) string {
	return "account:" + email
}

// finish records the outcome of op and returns err unchanged.
func (s *AccountService) finish(op string, err error) error {
	s.metrics.RecordOperation(op, outcome(err))
	return err
}

// =============================================================================
// RequestChallenge
// =============================================================================

// RequestChallengeInput contains the data needed to request an OTP.
type RequestChallengeInput struct {
	Email string
}

// RequestChallengeOutput contains the result of requesting an OTP.
type RequestChallengeOutput struct {
	Email     string
	ExpiresAt time.Time
}

// RequestChallenge issues a fresh OTP for the email, replacing any previous
// one, and delivers it. A code is stored even if delivery fails; a retry
// replaces it.
func (s *AccountService) RequestChallenge(ctx context.Context, input RequestChallengeInput) (*RequestChallengeOutput, error) {
	email, err := validateEmail(input.Email)
	if err != nil {
		return nil, s.finish(opRequestChallenge, err)
	}

	code, err := s.config.GenerateCode(s.config.OTPLength)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to generate otp")
		return nil, s.finish(opRequestChallenge, fmt.Errorf("%w: generate otp: %v", errInternal, err))
	}

	challenge := domain.NewOTPChallenge(email, code, s.config.Now(), s.config.OTPTTL)

	err = s.tx.WithLockedTx(ctx, emailLockKey(email), func(ctx context.Context) error {
		user, err := s.users.GetByEmail(ctx, email)
		switch {
		case err == nil:
			if user.IsActive {
				return domain.ErrEmailAlreadyRegistered
			}
		case errors.Is(err, domain.ErrUserNotFound):
		default:
			return domain.StoreError("get user", err)
		}

		if _, err := s.otps.DeleteByEmail(ctx, email); err != nil {
			return domain.StoreError("delete otps", err)
		}
		if err := s.otps.Create(ctx, challenge); err != nil {
			return domain.StoreError("create otp", err)
		}
		return nil
	})
	if err != nil {
		err = txError("request otp", err)
		if domain.KindOf(err) == domain.KindDependency {
			s.logger.Error().Err(err).Str("email", email).Msg("failed to store otp")
		}
		return nil, s.finish(opRequestChallenge, err)
	}

	if err := s.deliver(ctx, challenge); err != nil {
		return nil, s.finish(opRequestChallenge, err)
	}

	s.logger.Info().
		Str("email", email).
		Time("expires_at", challenge.ExpiresAt).
		Msg("otp issued")

	return &RequestChallengeOutput{Email: email, ExpiresAt: challenge.ExpiresAt}, s.finish(opRequestChallenge, nil)
}

// deliver sends the code, giving up after the configured send timeout even
// if the sender does not honor context cancellation.
func (s *AccountService) deliver(ctx context.Context, challenge *domain.OTPChallenge) error {
	if s.config.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.SendTimeout)
		defer cancel()
	}

	msg := notify.OTPMessage(challenge.Email, s.config.MailSubject, challenge.Code, s.config.OTPTTL)

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- s.sender.Send(ctx, msg) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	s.metrics.RecordMailSend(err, time.Since(start))

	if err != nil {
		s.logger.Warn().Err(err).Str("email", challenge.Email).Msg("failed to deliver otp")
		return fmt.Errorf("%w: %w", domain.ErrDeliveryFailed, err)
	}
	return nil
}

// =============================================================================
// VerifyChallenge
// =============================================================================

// VerifyChallengeInput contains the data needed to verify an OTP.
type VerifyChallengeInput struct {
	Email string
	Code  string
}

// VerifyChallenge consumes the OTP matching email and code and marks the
// email verified. An expired match is deleted and reported as expired.
func (s *AccountService) VerifyChallenge(ctx context.Context, input VerifyChallengeInput) error {
	email, err := validateEmail(input.Email)
	if err != nil {
		return s.finish(opVerifyChallenge, err)
	}
	if !domain.IsNumericCode(input.Code, s.config.OTPLength) {
		return s.finish(opVerifyChallenge, domain.ErrInvalidOtpFormat)
	}

	// The expired row must be deleted even though the call fails, so the
	// transaction commits and the failure is reported afterwards.
	expired := false
	err = s.tx.WithLockedTx(ctx, emailLockKey(email), func(ctx context.Context) error {
		challenge, err := s.otps.GetByEmailAndCode(ctx, email, input.Code)
		if err != nil {
			if errors.Is(err, domain.ErrOtpNotFound) {
				return domain.ErrInvalidOtp
			}
			return domain.StoreError("get otp", err)
		}

		if err := s.otps.Delete(ctx, challenge.ID); err != nil && !errors.Is(err, domain.ErrOtpNotFound) {
			return domain.StoreError("delete otp", err)
		}

		now := s.config.Now()
		if challenge.IsExpired(now) {
			expired = true
			return nil
		}

		user, err := s.users.GetByEmail(ctx, email)
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
			if err := s.users.Create(ctx, domain.NewVerifiedPlaceholder(email, now)); err != nil {
				return domain.StoreError("create user", err)
			}
			return nil
		case err != nil:
			return domain.StoreError("get user", err)
		}

		if user.IsVerified {
			return nil
		}
		user.MarkVerified(now)
		if err := s.users.Update(ctx, user); err != nil {
			return domain.StoreError("update user", err)
		}
		return nil
	})
	if err != nil {
		return s.finish(opVerifyChallenge, txError("verify otp", err))
	}
	if expired {
		s.logger.Debug().Str("email", email).Msg("expired otp removed")
		return s.finish(opVerifyChallenge, domain.ErrOtpExpired)
	}

	s.logger.Info().Str("email", email).Msg("email verified")
	return s.finish(opVerifyChallenge, nil)
}

// =============================================================================
// Register
// =============================================================================

// RegisterInput contains the data needed to register an account.
type RegisterInput struct {
	Email    string
	Password string
	FullName string
}

// RegisterOutput contains the registered account.
type RegisterOutput struct {
	User domain.PublicUser
}

// Register activates the verified placeholder for the email.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (*RegisterOutput, error) {
	email, err := validateEmail(input.Email)
	if err != nil {
		return nil, s.finish(opRegister, err)
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, s.finish(opRegister, err)
	}
	fullName, err := validateFullName(input.FullName)
	if err != nil {
		return nil, s.finish(opRegister, err)
	}

	hash, err := crypto.HashPassword(input.Password, s.config.BcryptCost)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to hash password")
		return nil, s.finish(opRegister, fmt.Errorf("%w: %v", errInternal, err))
	}

	var registered *domain.User
	err = s.tx.WithLockedTx(ctx, emailLockKey(email), func(ctx context.Context) error {
		user, err := s.users.GetByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, domain.ErrUserNotFound) {
				return domain.ErrEmailNotVerified
			}
			return domain.StoreError("get user", err)
		}
		if user.IsActive {
			return domain.ErrEmailAlreadyRegistered
		}
		if !user.IsVerified {
			return domain.ErrEmailNotVerified
		}

		user.Activate(fullName, hash, s.config.Now())
		if err := s.users.Update(ctx, user); err != nil {
			return domain.StoreError("update user", err)
		}
		registered = user
		return nil
	})
	if err != nil {
		return nil, s.finish(opRegister, txError("register", err))
	}

	s.logger.Info().
		Int64("user_id", registered.ID).
		Str("email", registered.Email).
		Msg("user registered")

	return &RegisterOutput{User: registered.Public()}, s.finish(opRegister, nil)
}

// =============================================================================
// Authenticate
// =============================================================================

// AuthenticateInput contains login credentials.
type AuthenticateInput struct {
	Email    string
	Password string
}

// AuthenticateOutput contains an issued access token.
type AuthenticateOutput struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
	ExpiresIn   time.Duration
}

// Authenticate checks credentials and issues an access token. Unknown emails
// and wrong passwords fail identically and cost the same bcrypt work.
func (s *AccountService) Authenticate(ctx context.Context, input AuthenticateInput) (*AuthenticateOutput, error) {
	email := domain.NormalizeEmail(input.Email)

	var hash string
	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		hash = user.PasswordHash
	case errors.Is(err, domain.ErrUserNotFound):
		user = nil
	default:
		s.logger.Error().Err(err).Msg("failed to load user for authentication")
		return nil, s.finish(opAuthenticate, domain.StoreError("get user", err))
	}

	ok, err := s.passwords.Compare(hash, input.Password)
	if err != nil {
		s.logger.Error().Err(err).Str("email", email).Msg("stored password hash is unusable")
		return nil, s.finish(opAuthenticate, domain.ErrInvalidCredentials)
	}
	if !ok || user == nil {
		s.logger.Debug().Str("email", email).Msg("invalid credentials")
		return nil, s.finish(opAuthenticate, domain.ErrInvalidCredentials)
	}
	if !user.IsVerified {
		return nil, s.finish(opAuthenticate, domain.ErrAccountNotVerified)
	}
	if !user.CanAuthenticate() {
		return nil, s.finish(opAuthenticate, domain.ErrInvalidCredentials)
	}

	raw, expiresAt, err := s.issuer.Issue(user.Email)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to issue token")
		return nil, s.finish(opAuthenticate, fmt.Errorf("%w: %v", errInternal, err))
	}

	s.logger.Info().
		Int64("user_id", user.ID).
		Str("email", user.Email).
		Msg("user authenticated")

	return &AuthenticateOutput{
		AccessToken: raw,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt,
		ExpiresIn:   s.issuer.TTL(),
	}, s.finish(opAuthenticate, nil)
}

// =============================================================================
// ValidateToken
// =============================================================================

// ValidateToken resolves a bearer token to its active user.
func (s *AccountService) ValidateToken(ctx context.Context, raw string) (*domain.User, error) {
	claims, err := s.issuer.Validate(raw)
	if err != nil {
		return nil, s.finish(opValidateToken, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err))
	}

	user, err := s.users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, s.finish(opValidateToken, domain.ErrInvalidToken)
		}
		return nil, s.finish(opValidateToken, domain.StoreError("get user", err))
	}
	if !user.IsActive {
		return nil, s.finish(opValidateToken, domain.ErrInvalidToken)
	}

	return user, s.finish(opValidateToken, nil)
}

// =============================================================================
// Validation
// =============================================================================

// validateEmail normalizes email and checks it is a bare address.
func validateEmail(email string) (string, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || len(email) > maxEmailLength {
		return "", domain.ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndexByte(email, '@'):], ".") {
		return "", domain.ErrInvalidEmail
	}
	return email, nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return domain.NewDomainError(domain.ErrInvalidPassword, "must be at least 8 characters", "")
	}
	if len(password) > maxPasswordBytes {
		return domain.NewDomainError(domain.ErrInvalidPassword, "must be at most 72 bytes", "")
	}
	return nil
}

func validateFullName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n == 0 || n > maxFullNameLength {
		return "", domain.ErrInvalidFullName
	}
	return name, nil
}
