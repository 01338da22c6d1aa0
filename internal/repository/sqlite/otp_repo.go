package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/prn-tf/alexander-auth/internal/domain"
	"github.com/prn-tf/alexander-auth/internal/repository"
)

// otpRepository implements repository.OTPRepository for SQLite.
type otpRepository struct {
	db *DB
}

// NewOTPRepository creates a new SQLite OTP repository.
func NewOTPRepository(db *DB) repository.OTPRepository {
	return &otpRepository{db: db}
}

// Create inserts a new challenge.
func (r *otpRepository) Create(ctx context.Context, otp *domain.OTPChallenge) error {
	query := `
		INSERT INTO otps (email, code, expires_at, created_at)
		VALUES (?, ?, ?, ?)
	`

	result, err := r.db.querier(ctx).ExecContext(ctx, query,
		otp.Email,
		otp.Code,
		formatTime(otp.ExpiresAt),
		formatTime(otp.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create otp: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	otp.ID = id

	return nil
}

// GetByEmailAndCode retrieves the challenge matching both email and code.
func (r *otpRepository) GetByEmailAndCode(ctx context.Context, email, code string) (*domain.OTPChallenge, error) {
	query := `
		SELECT id, email, code, expires_at, created_at
		FROM otps
		WHERE email = ? AND code = ?
		ORDER BY id DESC
		LIMIT 1
	`

	otp := &domain.OTPChallenge{}
	var expiresAt, createdAt string
	err := r.db.querier(ctx).QueryRowContext(ctx, query, email, code).Scan(
		&otp.ID,
		&otp.Email,
		&otp.Code,
		&expiresAt,
		&createdAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrOtpNotFound
		}
		return nil, fmt.Errorf("failed to get otp: %w", err)
	}

	if otp.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, err
	}
	if otp.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}

	return otp, nil
}

// Delete deletes a challenge by ID.
func (r *otpRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.querier(ctx).ExecContext(ctx, `DELETE FROM otps WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete otp: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrOtpNotFound
	}

	return nil
}

// DeleteByEmail deletes every challenge for the email.
func (r *otpRepository) DeleteByEmail(ctx context.Context, email string) (int64, error) {
	result, err := r.db.querier(ctx).ExecContext(ctx, `DELETE FROM otps WHERE email = ?`, email)
	if err != nil {
		return 0, fmt.Errorf("failed to delete otps by email: %w", err)
	}
	return result.RowsAffected()
}

// CountByEmail returns the number of stored challenges for the email.
func (r *otpRepository) CountByEmail(ctx context.Context, email string) (int64, error) {
	var count int64
	err := r.db.querier(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM otps WHERE email = ?`, email).Scan(&count)
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
			WHERE expires_at <= ?
			ORDER BY expires_at
			LIMIT ?
		)
	`

	result, err := r.db.querier(ctx).ExecContext(ctx, query, formatTime(before), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired otps: %w", err)
	}
	return result.RowsAffected()
}

// Ensure otpRepository implements repository.OTPRepository.
var _ repository.OTPRepository = (*otpRepository)(nil)
