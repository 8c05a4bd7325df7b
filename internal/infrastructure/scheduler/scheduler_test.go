package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/invoicing/backend/internal/infrastructure/lock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingSweep struct {
	calls atomic.Int32
	err   error
	mu    sync.Mutex
	seen  []time.Time
}

func (c *countingSweep) fn(_ context.Context, now time.Time) (int, error) {
	c.calls.Add(1)
	c.mu.Lock()
	c.seen = append(c.seen, now)
	c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	return 3, nil
}

func testConfig() OverdueSchedulerConfig {
	cfg := DefaultOverdueSchedulerConfig()
	cfg.SweepHour = 1
	return cfg
}

var sweepTime = time.Date(2026, 5, 4, 1, 5, 0, 0, time.UTC)

func TestOverdueSchedulerConfig(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		require.NoError(t, DefaultOverdueSchedulerConfig().Validate())
	})

	t.Run("hour out of range", func(t *testing.T) {
		cfg := testConfig()
		cfg.SweepHour = 24
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})

	t.Run("zero interval", func(t *testing.T) {
		cfg := testConfig()
		cfg.CheckInterval = 0
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})

	t.Run("mapped from application config", func(t *testing.T) {
		cfg := OverdueSchedulerConfigFrom(config.SchedulerConfig{
			Enabled:          true,
			OverdueSweepHour: 4,
			LockTTL:          90 * time.Minute,
		})
		assert.True(t, cfg.Enabled)
		assert.Equal(t, 4, cfg.SweepHour)
		assert.Equal(t, 90*time.Minute, cfg.LockTTL)
		assert.Equal(t, time.Minute, cfg.CheckInterval)
		assert.Equal(t, 15*time.Minute, cfg.JobTimeout)
	})
}

func TestOverdueScheduler_ShouldRun(t *testing.T) {
	s := NewOverdueScheduler(testConfig(), (&countingSweep{}).fn, lock.NewLocalLocker(), nil, zap.NewNop())

	assert.True(t, s.ShouldRun(sweepTime))
	assert.False(t, s.ShouldRun(sweepTime.Add(-2*time.Hour)))
	assert.False(t, s.ShouldRun(sweepTime.Add(time.Hour)))

	nairobi := time.FixedZone("EAT", 3*3600)
	assert.True(t, s.ShouldRun(sweepTime.In(nairobi)), "hour is compared in UTC")
}

func TestOverdueScheduler_RunIfDue(t *testing.T) {
	ctx := context.Background()

	t.Run("one instance sweeps per day", func(t *testing.T) {
		locker := lock.NewLocalLocker()
		sweep := &countingSweep{}
		clock := shared.FixedClock{At: sweepTime}
		a := NewOverdueScheduler(testConfig(), sweep.fn, locker, clock, zap.NewNop())
		b := NewOverdueScheduler(testConfig(), sweep.fn, locker, clock, zap.NewNop())

		assert.True(t, a.RunIfDue(ctx))
		assert.False(t, b.RunIfDue(ctx))
		assert.False(t, a.RunIfDue(ctx), "already attempted today")
		assert.Equal(t, int32(1), sweep.calls.Load())
		require.NotNil(t, a.LastRunAt())
		assert.Equal(t, sweepTime, *a.LastRunAt())
		assert.Equal(t, []time.Time{sweepTime}, sweep.seen)
	})

	t.Run("outside the sweep hour nothing runs", func(t *testing.T) {
		sweep := &countingSweep{}
		s := NewOverdueScheduler(testConfig(), sweep.fn, lock.NewLocalLocker(),
			shared.FixedClock{At: sweepTime.Add(5 * time.Hour)}, zap.NewNop())
		assert.False(t, s.RunIfDue(ctx))
		assert.Zero(t, sweep.calls.Load())
	})

	t.Run("failed sweep frees the day for a retry", func(t *testing.T) {
		locker := lock.NewLocalLocker()
		failing := &countingSweep{err: errors.New("database unavailable")}
		clock := shared.FixedClock{At: sweepTime}
		a := NewOverdueScheduler(testConfig(), failing.fn, locker, clock, zap.NewNop())
		require.True(t, a.RunIfDue(ctx))
		assert.Nil(t, a.LastRunAt())

		ok := &countingSweep{}
		b := NewOverdueScheduler(testConfig(), ok.fn, locker, clock, zap.NewNop())
		assert.True(t, b.RunIfDue(ctx))
		assert.Equal(t, int32(1), ok.calls.Load())

		assert.True(t, a.ShouldRun(sweepTime), "failed instance may try again")
	})
}

func TestOverdueScheduler_Lifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled scheduler does not start", func(t *testing.T) {
		cfg := testConfig()
		cfg.Enabled = false
		s := NewOverdueScheduler(cfg, (&countingSweep{}).fn, lock.NewLocalLocker(), nil, zap.NewNop())
		require.NoError(t, s.Start(ctx))
		assert.False(t, s.IsRunning())
		assert.ErrorIs(t, s.TriggerNow(ctx), ErrSchedulerNotRunning)
	})

	t.Run("invalid config is rejected", func(t *testing.T) {
		cfg := testConfig()
		cfg.SweepHour = -1
		s := NewOverdueScheduler(cfg, (&countingSweep{}).fn, lock.NewLocalLocker(), nil, zap.NewNop())
		assert.ErrorIs(t, s.Start(ctx), ErrInvalidConfig)
	})

	t.Run("sweeps on start when due and stops cleanly", func(t *testing.T) {
		cfg := testConfig()
		cfg.CheckInterval = 10 * time.Millisecond
		sweep := &countingSweep{}
		s := NewOverdueScheduler(cfg, sweep.fn, lock.NewLocalLocker(), shared.FixedClock{At: sweepTime}, zap.NewNop())

		require.NoError(t, s.Start(ctx))
		assert.True(t, s.IsRunning())
		assert.Eventually(t, func() bool { return sweep.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

		require.NoError(t, s.TriggerNow(ctx))
		assert.Equal(t, int32(2), sweep.calls.Load())

		stopCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		require.NoError(t, s.Stop(stopCtx))
		assert.False(t, s.IsRunning())
		assert.Equal(t, int32(2), sweep.calls.Load())
	})
}
