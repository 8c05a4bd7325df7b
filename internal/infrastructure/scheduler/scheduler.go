// Package scheduler runs the daily overdue sweep.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/invoicing/backend/internal/infrastructure/lock"
	"go.uber.org/zap"
)

var (
	ErrSchedulerNotRunning = errors.New("overdue scheduler is not running")
	ErrInvalidConfig       = errors.New("invalid overdue scheduler configuration")
)

// overdueLockKey is suffixed with the sweep date so each day has its own lock
const overdueLockKey = "scheduler:overdue_sweep:"

// SweepFunc moves sent invoices past their due date to overdue and returns how many moved
type SweepFunc func(ctx context.Context, now time.Time) (int, error)

// OverdueSchedulerConfig holds configuration for the overdue scheduler
type OverdueSchedulerConfig struct {
	Enabled bool

	// SweepHour is the UTC hour (0-23) the sweep runs
	SweepHour int

	// CheckInterval is how often the loop checks whether the sweep is due
	CheckInterval time.Duration

	// LockTTL bounds how long one instance holds the day's lock. It should
	// cover the sweep hour so other instances skip the run.
	LockTTL time.Duration

	// JobTimeout is the maximum time for one sweep
	JobTimeout time.Duration
}

// DefaultOverdueSchedulerConfig returns default configuration
func DefaultOverdueSchedulerConfig() OverdueSchedulerConfig {
	return OverdueSchedulerConfig{
		Enabled:       true,
		SweepHour:     1,
		CheckInterval: time.Minute,
		LockTTL:       2 * time.Hour,
		JobTimeout:    15 * time.Minute,
	}
}

// OverdueSchedulerConfigFrom maps the application config, keeping defaults for unset durations
func OverdueSchedulerConfigFrom(cfg config.SchedulerConfig) OverdueSchedulerConfig {
	out := DefaultOverdueSchedulerConfig()
	out.Enabled = cfg.Enabled
	out.SweepHour = cfg.OverdueSweepHour
	if cfg.CheckInterval > 0 {
		out.CheckInterval = cfg.CheckInterval
	}
	if cfg.LockTTL > 0 {
		out.LockTTL = cfg.LockTTL
	}
	if cfg.JobTimeout > 0 {
		out.JobTimeout = cfg.JobTimeout
	}
	return out
}

// Validate checks the configuration
func (c OverdueSchedulerConfig) Validate() error {
	if c.SweepHour < 0 || c.SweepHour > 23 {
		return fmt.Errorf("%w: sweep hour must be 0-23, got %d", ErrInvalidConfig, c.SweepHour)
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("%w: check interval must be positive", ErrInvalidConfig)
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("%w: lock ttl must be positive", ErrInvalidConfig)
	}
	return nil
}

// OverdueScheduler runs the overdue sweep once a day at the configured hour.
// Every instance runs the loop; the per-day lock lets only one of them sweep.
type OverdueScheduler struct {
	config OverdueSchedulerConfig
	sweep  SweepFunc
	locker lock.Locker
	clock  shared.Clock
	logger *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	lastRunOn string // YYYY-MM-DD of the last attempted sweep
	lastRunAt *time.Time
}

// NewOverdueScheduler creates a new overdue scheduler
func NewOverdueScheduler(
	cfg OverdueSchedulerConfig,
	sweep SweepFunc,
	locker lock.Locker,
	clock shared.Clock,
	logger *zap.Logger,
) *OverdueScheduler {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	return &OverdueScheduler{
		config: cfg,
		sweep:  sweep,
		locker: locker,
		clock:  clock,
		logger: logger.Named("overdue_scheduler"),
	}
}

// Start starts the scheduler loop
func (s *OverdueScheduler) Start(ctx context.Context) error {
	if err := s.config.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Overdue scheduler is disabled")
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info("Overdue scheduler started",
		zap.Int("sweep_hour", s.config.SweepHour),
		zap.Duration("check_interval", s.config.CheckInterval),
	)
	return nil
}

// Stop gracefully stops the scheduler
func (s *OverdueScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Overdue scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Overdue scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *OverdueScheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	s.RunIfDue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunIfDue(ctx)
		}
	}
}

// ShouldRun reports whether the sweep is due at now: inside the sweep hour
// and not yet attempted on that day by this instance.
func (s *OverdueScheduler) ShouldRun(now time.Time) bool {
	now = now.UTC()
	if now.Hour() != s.config.SweepHour {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRunOn != now.Format(time.DateOnly)
}

// RunIfDue runs the sweep when it is due. It reports whether this instance swept.
func (s *OverdueScheduler) RunIfDue(ctx context.Context) bool {
	now := s.clock.Now().UTC()
	if !s.ShouldRun(now) {
		return false
	}

	day := now.Format(time.DateOnly)
	s.mu.Lock()
	s.lastRunOn = day
	s.mu.Unlock()

	held, err := s.locker.Obtain(ctx, overdueLockKey+day, s.config.LockTTL)
	if errors.Is(err, lock.ErrNotObtained) {
		s.logger.Debug("Overdue sweep already taken by another instance", zap.String("day", day))
		return false
	}
	if err != nil {
		s.logger.Error("Failed to obtain overdue sweep lock", zap.Error(err))
		s.mu.Lock()
		s.lastRunOn = ""
		s.mu.Unlock()
		return false
	}

	if err := s.execute(ctx, now); err != nil {
		// Free the day's lock so the next check, here or elsewhere, can retry
		if relErr := held.Release(context.WithoutCancel(ctx)); relErr != nil && !errors.Is(relErr, lock.ErrNotHeld) {
			s.logger.Warn("Failed to release overdue sweep lock", zap.Error(relErr))
		}
		s.mu.Lock()
		s.lastRunOn = ""
		s.mu.Unlock()
	}
	return true
}

// TriggerNow runs a sweep immediately, bypassing the schedule and the lock
func (s *OverdueScheduler) TriggerNow(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.mu.Unlock()
	return s.execute(ctx, s.clock.Now().UTC())
}

func (s *OverdueScheduler) execute(ctx context.Context, now time.Time) error {
	sweepCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	s.logger.Info("Starting overdue sweep", zap.Time("now", now))
	start := time.Now()
	moved, err := s.sweep(sweepCtx, now)
	duration := time.Since(start)
	if err != nil {
		s.logger.Error("Overdue sweep failed",
			zap.Duration("duration", duration),
			zap.Int("moved", moved),
			zap.Error(err),
		)
		return err
	}

	s.mu.Lock()
	s.lastRunAt = &now
	s.mu.Unlock()

	s.logger.Info("Overdue sweep completed",
		zap.Duration("duration", duration),
		zap.Int("moved", moved),
	)
	return nil
}

// LastRunAt returns the time of the last successful sweep
func (s *OverdueScheduler) LastRunAt() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRunAt
}

// IsRunning returns whether the scheduler is running
func (s *OverdueScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}
