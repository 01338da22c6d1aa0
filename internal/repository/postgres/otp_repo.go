package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/prn-tf/alexander-auth/internal/domain"
	"github.com/prn-tf/alexander-auth/internal/repository"
)

// otpRepository implements repository.OTPRepository for PostgreSQL.
type otpRepository struct {
	db *DB
}

// NewOTPRepository creates a new PostgreSQL OTP repository.
func NewOTPRepository(db *DB) repository.OTPRepository {
	return &otpRepository{db: db}
}

// Create inserts a new challenge.
func (r *otpRepository) Create(ctx context.Context, otp *domain.OTPChallenge) error {
	query := `
		INSERT INTO otps (email, code, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := r.db.querier(ctx).QueryRow(ctx, query,
		otp.Email,
		otp.Code,
		otp.ExpiresAt,
		otp.CreatedAt,
	).Scan(&otp.ID)
	if err != nil {
		return fmt.Errorf("failed to create otp: %w", err)
	}

	return nil
}

// GetByEmailAndCode retrieves the challenge matching both email and code.
func (r *otpRepository) GetByEmailAndCode(ctx context.Context, email, code string) (*domain.OTPChallenge, error) {
	query := `
		SELECT id, email, code, expires_at, created_at
		FROM otps
		WHERE email = $1 AND code = $2
		ORDER BY id DESC
		LIMIT 1
	`

	otp := &domain.OTPChallenge{}
	err := r.db.querier(ctx).QueryRow(ctx, query, email, code).Scan(
		&otp.ID,
		&otp.Email,
		&otp.Code,
		&otp.ExpiresAt,
		&otp.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOtpNotFound
		}
		return nil, fmt.Errorf("failed to get otp: %w", err)
	}

	return otp, nil
}

// Delete deletes a challenge by ID.
func (r *otpRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.querier(ctx).Exec(ctx, `DELETE FROM otps WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete otp: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrOtpNotFound
	}

	return nil
}

// DeleteByEmail deletes every challenge for the email.
func (r *otpRepository) DeleteByEmail(ctx context.Context, email string) (int64, error) {
	result, err := r.db.querier(ctx).Exec(ctx, `DELETE FROM otps WHERE email = $1`, email)
	if err != nil {
		return 0, fmt.Errorf("failed to delete otps by email: %w", err)
	}
	return result.RowsAffected(), nil
}

// CountByEmail returns the number of stored challenges for the email.
func (r *otpRepository) CountByEmail(ctx context.Context, email string) (int64, error) {
	var count int64
	err := r.db.querier(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM otps WHERE email = $1`, email).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count otps: %w", err)
	}
	return count, nil
}

// DeleteExpired deletes up to limit challenges that expired at or before the given time.
func (r *otpRepository) DeleteExpired(ctx context.Context, before time.Time, limit int) (int64, error) {
	query := `
		DELETE FROM otps
		WHERE id IN (
			SELECT id FROM otps
			WHERE expires_at <= $1
			ORDER BY expires_at
			LIMIT $2
		)
	`

	result, err := r.db.querier(ctx).Exec(ctx, query, before.UTC(), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired otps: %w", err)
	}
	return result.RowsAffected(), nil
}

// Ensure otpRepository implements repository.OTPRepository.
var _ repository.OTPRepository = (*otpRepository)(nil)
