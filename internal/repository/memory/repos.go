package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/prn-tf/alexander-auth/internal/domain"
	"github.com/prn-tf/alexander-auth/internal/repository"
)

var errClosed = errors.New("memory store is closed")

type userRecord struct{ domain.User }

type otpRecord struct{ domain.OTPChallenge }

func (s *Store) checkOpen(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed {
		return errClosed
	}
	return nil
}

// =============================================================================
// Users
// =============================================================================

type userRepository struct {
	s *Store
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(ctx); err != nil {
		return err
	}
	if _, ok := s.usersByEmail[user.Email]; ok {
		return fmt.Errorf("%w: email already exists", domain.ErrUserAlreadyExists)
	}

	s.nextUserID++
	user.ID = s.nextUserID
	s.users[user.ID] = &userRecord{*user}
	s.usersByEmail[user.Email] = user.ID

	id, email := user.ID, user.Email
	record(ctx, func() {
		delete(s.users, id)
		delete(s.usersByEmail, email)
	})
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}
	rec, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u := rec.User
	return &u, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}
	id, ok := s.usersByEmail[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u := s.users[id].User
	return &u, nil
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(ctx); err != nil {
		return err
	}
	rec, ok := s.users[user.ID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if other, taken := s.usersByEmail[user.Email]; taken && other != user.ID {
		return fmt.Errorf("%w: email already exists", domain.ErrUserAlreadyExists)
	}

	prev, email := rec.User, user.Email
	delete(s.usersByEmail, prev.Email)
	s.usersByEmail[email] = user.ID
	rec.User = *user

	record(ctx, func() {
		delete(s.usersByEmail, email)
		s.usersByEmail[prev.Email] = prev.ID
		s.users[prev.ID] = &userRecord{prev}
	})
	return nil
}

func (r *userRepository) List(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.User], error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if opts.Descending {
			return ids[i] > ids[j]
		}
		return ids[i] < ids[j]
	})

	result := &repository.ListResult[domain.User]{
		Total:  int64(len(ids)),
		Offset: opts.Offset,
		Limit:  opts.Limit,
	}
	for i := opts.Offset; i < len(ids); i++ {
		if opts.Limit > 0 && len(result.Items) >= opts.Limit {
			break
		}
		u := s.users[ids[i]].User
		result.Items = append(result.Items, &u)
	}
	return result, nil
}

func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(ctx); err != nil {
		return false, err
	}
	_, ok := s.usersByEmail[email]
	return ok, nil
}

// =============================================================================
// OTP challenges
// =============================================================================

type otpRepository struct {
	s *Store
}

func (r *otpRepository) Create(ctx context.Context, otp *domain.OTPChallenge) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(ctx); err != nil {
		return err
	}

	s.nextOTPID++
	otp.ID = s.nextOTPID
	s.otps[otp.ID] = &otpRecord{*otp}

	id := otp.ID
	record(ctx, func() { delete(s.otps, id) })
	return nil
}

func (r *otpRepository) GetByEmailAndCode(ctx context.Context, email, code string) (*domain.OTPChallenge, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}

	var found *otpRecord
	for _, rec := range s.otps {
		if rec.Email == email && rec.Code == code && (found == nil || rec.ID > found.ID) {
			found = rec
		}
	}
	if found == nil {
		return nil, domain.ErrOtpNotFound
	}
	otp := found.OTPChallenge
	return &otp, nil
}

// deleteOTPsLocked removes ids and records their restoration. Callers hold s.mu.
func (s *Store) deleteOTPsLocked(ctx context.Context, ids []int64) {
	removed := make([]domain.OTPChallenge, 0, len(ids))
	for _, id := range ids {
		removed = append(removed, s.otps[id].OTPChallenge)
		delete(s.otps, id)
	}
	record(ctx, func() {
		for _, otp := range removed {
			s.otps[otp.ID] = &otpRecord{otp}
		}
	})
}

func (r *otpRepository) Delete(ctx context.Context, id int64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(ctx); err != nil {
		return err
	}
	if _, ok := s.otps[id]; !ok {
		return domain.ErrOtpNotFound
	}
	s.deleteOTPsLocked(ctx, []int64{id})
	return nil
}

func (r *otpRepository) DeleteByEmail(ctx context.Context, email string) (int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(ctx); err != nil {
		return 0, err
	}

	var ids []int64
	for id, rec := range s.otps {
		if rec.Email == email {
			ids = append(ids, id)
		}
	}
	s.deleteOTPsLocked(ctx, ids)
	return int64(len(ids)), nil
}

func (r *otpRepository) CountByEmail(ctx context.Context, email string) (int64, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(ctx); err != nil {
		return 0, err
	}

	var n int64
	for _, rec := range s.otps {
		if rec.Email == email {
			n++
		}
	}
	return n, nil
}

func (r *otpRepository) DeleteExpired(ctx context.Context, before time.Time, limit int) (int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(ctx); err != nil {
		return 0, err
	}

	var expired []*otpRecord
	for _, rec := range s.otps {
		if !rec.ExpiresAt.After(before) {
			expired = append(expired, rec)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].ExpiresAt.Before(expired[j].ExpiresAt)
	})
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}

	ids := make([]int64, len(expired))
	for i, rec := range expired {
		ids[i] = rec.ID
	}
	s.deleteOTPsLocked(ctx, ids)
	return int64(len(ids)), nil
}

// Ensure the repositories implement their interfaces.
var (
	_ repository.UserRepository = (*userRepository)(nil)
	_ repository.OTPRepository  = (*otpRepository)(nil)
)
