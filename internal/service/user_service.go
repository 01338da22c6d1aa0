package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/prn-tf/alexander-auth/internal/domain"
	"github.com/prn-tf/alexander-auth/internal/repository"
)

// UserService provides read access to accounts for operators.
type UserService struct {
	userRepo repository.UserRepository
	otpRepo  repository.OTPRepository
	logger   zerolog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(userRepo repository.UserRepository, otpRepo repository.OTPRepository, logger zerolog.Logger) *UserService {
	return &UserService{
		userRepo: userRepo,
		otpRepo:  otpRepo,
		logger:   logger.With().Str("service", "user").Logger(),
	}
}

// UserDetails describes one account and its pending challenges.
type UserDetails struct {
	User *domain.User

	// PendingOTPs is the number of stored challenges for the email,
	// expired ones included.
	PendingOTPs int64
}

// GetByEmail retrieves a user by email.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*UserDetails, error) {
	email = domain.NormalizeEmail(email)

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		s.logger.Error().Err(err).Str("email", email).Msg("failed to get user")
		return nil, domain.StoreError("get user", err)
	}

	pending, err := s.otpRepo.CountByEmail(ctx, email)
	if err != nil {
		return nil, domain.StoreError("count otps", err)
	}

	return &UserDetails{User: user, PendingOTPs: pending}, nil
}

// ListUsersInput contains pagination options for listing users.
type ListUsersInput struct {
	Limit  int
	Offset int
}

// ListUsersOutput contains the result of listing users.
type ListUsersOutput struct {
	Users      []*domain.User
	TotalCount int64
}

// List returns all users with pagination.
func (s *UserService) List(ctx context.Context, input ListUsersInput) (*ListUsersOutput, error) {
	if input.Limit <= 0 {
		input.Limit = 20
	}
	if input.Limit > 100 {
		input.Limit = 100
	}
	if input.Offset < 0 {
		input.Offset = 0
	}

	result, err := s.userRepo.List(ctx, repository.ListOptions{
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list users")
		return nil, domain.StoreError("list users", err)
	}

	return &ListUsersOutput{
		Users:      result.Items,
		TotalCount: result.Total,
	}, nil
}
