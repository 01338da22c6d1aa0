package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/alexander-auth/internal/lock"
	"github.com/prn-tf/alexander-auth/internal/metrics"
	"github.com/prn-tf/alexander-auth/internal/repository"
)

// OTPSweeper periodically deletes expired OTP challenges.
// Expired rows are already unusable; sweeping only reclaims space for
// emails that never came back to verify.
type OTPSweeper struct {
	otpRepo repository.OTPRepository
	locker  lock.Locker
	metrics *metrics.Metrics
	logger  zerolog.Logger
	config  SweeperConfig

	// Control
	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	doneChan chan struct{}
}

// SweeperConfig contains sweeper configuration.
type SweeperConfig struct {
	// Interval is how often to sweep.
	Interval time.Duration

	// BatchSize is the maximum number of rows deleted per statement.
	BatchSize int

	// MaxBatches caps the statements issued per run. Zero means no cap.
	MaxBatches int

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// DefaultSweeperConfig returns sensible defaults.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval:   5 * time.Minute,
		BatchSize:  1000,
		MaxBatches: 100,
		Now:        time.Now,
	}
}

// NewOTPSweeper creates a new sweeper.
func NewOTPSweeper(
	otpRepo repository.OTPRepository,
	locker lock.Locker,
	m *metrics.Metrics,
	logger zerolog.Logger,
	config SweeperConfig,
) *OTPSweeper {
	defaults := DefaultSweeperConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.Now == nil {
		config.Now = defaults.Now
	}

	return &OTPSweeper{
		otpRepo:  otpRepo,
		locker:   locker,
		metrics:  m,
		logger:   logger.With().Str("service", "otp_sweeper").Logger(),
		config:   config,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start begins the sweep scheduler. It is a no-op if already running.
func (s *OTPSweeper) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info().
		Dur("interval", s.config.Interval).
		Int("batch_size", s.config.BatchSize).
		Msg("starting otp sweeper")

	go s.runLoop()
}

// Stop stops the scheduler and waits for an in-flight run to finish.
func (s *OTPSweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopChan)
	<-s.doneChan

	s.logger.Info().Msg("otp sweeper stopped")
}

func (s *OTPSweeper) runLoop() {
	defer close(s.doneChan)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	s.RunOnce(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-s.stopChan:
			return
		}
	}
}

// SweepResult contains the result of a sweep run.
type SweepResult struct {
	// Deleted is the number of challenges removed.
	Deleted int64

	// Skipped is true when another instance held the sweep lock.
	Skipped bool

	// Duration is how long the run took.
	Duration time.Duration

	// Err is the error that ended the run early, if any.
	Err error
}

// RunOnce executes a single sweep. It can be called manually or by the scheduler.
func (s *OTPSweeper) RunOnce(ctx context.Context) SweepResult {
	start := time.Now()
	result := SweepResult{}

	lockKey := lock.Keys.OTPSweep()
	// Lock expires before the next scheduled run.
	lockTTL := s.config.Interval / 2
	if lockTTL < time.Minute {
		lockTTL = time.Minute
	}

	acquired, err := s.locker.Acquire(ctx, lockKey, lockTTL)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to acquire sweep lock")
		result.Err = err
		result.Duration = time.Since(start)
		s.metrics.RecordSweep(result.Duration, 0, err)
		return result
	}
	if !acquired {
		s.logger.Debug().Msg("sweep lock held by another process, skipping run")
		result.Skipped = true
		result.Duration = time.Since(start)
		s.metrics.RecordSweepSkipped()
		return result
	}
	defer func() {
		if _, err := s.locker.Release(context.WithoutCancel(ctx), lockKey); err != nil {
			s.logger.Error().Err(err).Msg("failed to release sweep lock")
		}
	}()

	cutoff := s.config.Now()
	for batch := 0; s.config.MaxBatches == 0 || batch < s.config.MaxBatches; batch++ {
		n, err := s.otpRepo.DeleteExpired(ctx, cutoff, s.config.BatchSize)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to delete expired otps")
			result.Err = err
			break
		}
		result.Deleted += n
		if n < int64(s.config.BatchSize) {
			break
		}

		// More batches follow; keep the lock for the rest of the run.
		extended, err := s.locker.Extend(ctx, lockKey, lockTTL)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to extend sweep lock")
			result.Err = err
			break
		}
		if !extended {
			s.logger.Warn().Int64("deleted", result.Deleted).Msg("sweep lock lost, stopping run")
			result.Err = ErrSweepLockLost
			break
		}
	}

	result.Duration = time.Since(start)
	s.metrics.RecordSweep(result.Duration, result.Deleted, result.Err)

	event := s.logger.Debug()
	if result.Deleted > 0 {
		event = s.logger.Info()
	}
	event.
		Int64("deleted", result.Deleted).
		Dur("duration", result.Duration).
		Msg("otp sweep completed")

	return result
}
