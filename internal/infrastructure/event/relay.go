package event

import (
	"context"
	"time"

	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// RelayConfig tunes the outbox relay. A zero Retention keeps delivered
// entries forever.
type RelayConfig struct {
	BatchSize    int
	PollInterval time.Duration
	MaxAttempts  int
	Retention    time.Duration
	PurgeEvery   time.Duration
}

// RelayConfigFrom reads the relay settings from the event configuration
func RelayConfigFrom(cfg config.EventConfig) RelayConfig {
	rc := RelayConfig{
		BatchSize:    cfg.BatchSize,
		PollInterval: cfg.PollInterval,
		MaxAttempts:  cfg.MaxRetries,
	}
	if cfg.CleanupEnabled {
		rc.Retention = cfg.CleanupRetention
	}
	return rc.withDefaults()
}

func (c RelayConfig) withDefaults() RelayConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = shared.DefaultOutboxAttempts
	}
	if c.PurgeEvery <= 0 {
		c.PurgeEvery = time.Hour
	}
	return c
}

// Relay moves committed outbox entries onto the event bus. Entries are
// claimed before delivery, so several relays may poll the same table.
type Relay struct {
	repo       shared.OutboxRepository
	bus        shared.EventPublisher
	serializer *EventSerializer
	cfg        RelayConfig
	clock      shared.Clock
	log        *zap.Logger
}

func NewRelay(
	repo shared.OutboxRepository,
	bus shared.EventPublisher,
	serializer *EventSerializer,
	cfg RelayConfig,
	clock shared.Clock,
	log *zap.Logger,
) *Relay {
	return &Relay{
		repo:       repo,
		bus:        bus,
		serializer: serializer,
		cfg:        cfg.withDefaults(),
		clock:      clock,
		log:        log.Named("outbox"),
	}
}

// Run polls the outbox until ctx is cancelled. Each tick drains full batches
// until the backlog is gone.
func (r *Relay) Run(ctx context.Context) {
	poll := time.NewTicker(r.cfg.PollInterval)
	defer poll.Stop()

	var purge <-chan time.Time
	if r.cfg.Retention > 0 {
		t := time.NewTicker(r.cfg.PurgeEvery)
		defer t.Stop()
		purge = t.C
	}

	r.log.Info("Outbox relay running",
		zap.Int("batch_size", r.cfg.BatchSize),
		zap.Duration("poll_interval", r.cfg.PollInterval),
		zap.Duration("retention", r.cfg.Retention),
	)
	for {
		select {
		case <-ctx.Done():
			r.log.Info("Outbox relay stopped")
			return
		case <-poll.C:
			r.catchUp(ctx)
		case <-purge:
			if _, err := r.Purge(ctx); err != nil {
				r.log.Error("Outbox purge failed", zap.Error(err))
			}
		}
	}
}

func (r *Relay) catchUp(ctx context.Context) {
	for ctx.Err() == nil {
		claimed, _, err := r.drain(ctx)
		if err != nil {
			r.log.Error("Outbox batch failed", zap.Error(err))
			return
		}
		if claimed < r.cfg.BatchSize {
			return
		}
	}
}

// Drain claims one batch of due entries and delivers it, returning how many
// were delivered
func (r *Relay) Drain(ctx context.Context) (int, error) {
	_, delivered, err := r.drain(ctx)
	return delivered, err
}

func (r *Relay) drain(ctx context.Context) (claimed, delivered int, err error) {
	won, err := r.repo.ClaimDue(ctx, r.clock.Now(), r.cfg.BatchSize)
	if err != nil {
		return 0, 0, err
	}

	for _, entry := range won {
		entry.MaxAttempts = r.cfg.MaxAttempts
		if r.settle(ctx, entry, r.deliver(ctx, entry)) {
			delivered++
		}
	}
	return len(won), delivered, nil
}

func (r *Relay) deliver(ctx context.Context, entry *shared.OutboxEntry) error {
	event, err := r.serializer.Deserialize(entry.EventType, entry.Payload)
	if err != nil {
		return err
	}
	return r.bus.Publish(ctx, event)
}

// settle stores the outcome of one delivery and reports whether it succeeded
func (r *Relay) settle(ctx context.Context, entry *shared.OutboxEntry, cause error) bool {
	log := r.log.With(
		zap.String("event_id", entry.EventID.String()),
		zap.String("event_type", entry.EventType),
		zap.String("aggregate_id", entry.AggregateID.String()),
	)
	now := r.clock.Now()

	if cause == nil {
		entry.Delivered(now)
	} else if entry.Fail(cause.Error(), now) {
		log.Warn("Event dead-lettered", zap.Int("attempts", entry.Attempts), zap.Error(cause))
	} else {
		log.Error("Event delivery failed",
			zap.Int("attempts", entry.Attempts),
			zap.Timep("next_retry_at", entry.NextRetryAt),
			zap.Error(cause),
		)
	}

	if err := r.repo.Update(ctx, entry); err != nil {
		log.Error("Failed to store delivery outcome", zap.Error(err))
		return false
	}
	if cause == nil {
		log.Debug("Event delivered")
	}
	return cause == nil
}

// Purge deletes delivered entries older than the retention period
func (r *Relay) Purge(ctx context.Context) (int64, error) {
	if r.cfg.Retention <= 0 {
		return 0, nil
	}
	cutoff := r.clock.Now().Add(-r.cfg.Retention)
	deleted, err := r.repo.DeleteSentBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		r.log.Info("Purged delivered outbox entries", zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
	}
	return deleted, nil
}
