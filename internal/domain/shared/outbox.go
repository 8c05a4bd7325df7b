package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OutboxStatus is the delivery state of a stored event
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "PENDING"
	OutboxStatusProcessing OutboxStatus = "PROCESSING"
	OutboxStatusSent       OutboxStatus = "SENT"
	OutboxStatusFailed     OutboxStatus = "FAILED"
	OutboxStatusDead       OutboxStatus = "DEAD"
)

// OutboxStatuses lists every status in lifecycle order
var OutboxStatuses = []OutboxStatus{
	OutboxStatusPending,
	OutboxStatusProcessing,
	OutboxStatusSent,
	OutboxStatusFailed,
	OutboxStatusDead,
}

// Delivery attempts allowed per event, and the backoff between them. The
// delay doubles from OutboxRetryBase and never exceeds OutboxRetryCap.
const (
	DefaultOutboxAttempts = 5
	OutboxRetryBase       = time.Second
	OutboxRetryCap        = 5 * time.Minute
)

// OutboxEntry is a domain event stored in the transaction that raised it,
// waiting to be relayed to subscribers.
type OutboxEntry struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	EventID       uuid.UUID
	EventType     string
	AggregateID   uuid.UUID
	AggregateType string
	Payload       []byte
	Status        OutboxStatus
	Attempts      int
	MaxAttempts   int
	LastError     string
	NextRetryAt   *time.Time
	DeliveredAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewOutboxEntry stores event with its serialized payload, stamped with the
// time the event occurred
func NewOutboxEntry(event DomainEvent, payload []byte) *OutboxEntry {
	return &OutboxEntry{
		ID:            uuid.New(),
		TenantID:      event.TenantID(),
		EventID:       event.EventID(),
		EventType:     event.EventType(),
		AggregateID:   event.AggregateID(),
		AggregateType: event.AggregateType(),
		Payload:       payload,
		Status:        OutboxStatusPending,
		MaxAttempts:   DefaultOutboxAttempts,
		CreatedAt:     event.OccurredAt(),
		UpdatedAt:     event.OccurredAt(),
	}
}

// Claim takes a pending or failed entry for delivery
func (e *OutboxEntry) Claim(at time.Time) error {
	switch e.Status {
	case OutboxStatusPending, OutboxStatusFailed:
	default:
		return fmt.Errorf("outbox entry %s is %s and cannot be claimed", e.ID, e.Status)
	}
	e.Status = OutboxStatusProcessing
	e.UpdatedAt = at
	return nil
}

// Delivered records that every subscriber accepted the event
func (e *OutboxEntry) Delivered(at time.Time) {
	e.Status = OutboxStatusSent
	e.DeliveredAt = &at
	e.NextRetryAt = nil
	e.UpdatedAt = at
}

// Fail records a delivery failure and reports whether the entry is now dead.
// A live entry is rescheduled after RetryDelay.
func (e *OutboxEntry) Fail(cause string, at time.Time) (dead bool) {
	e.Attempts++
	e.LastError = cause
	e.UpdatedAt = at

	if e.Attempts >= e.MaxAttempts {
		e.Status = OutboxStatusDead
		e.NextRetryAt = nil
		return true
	}
	e.Status = OutboxStatusFailed
	next := at.Add(RetryDelay(e.Attempts))
	e.NextRetryAt = &next
	return false
}

// RetryDelay is the wait after the given failed attempt (1-based)
func RetryDelay(attempt int) time.Duration {
	delay := OutboxRetryBase
	for i := 1; i < attempt && delay < OutboxRetryCap; i++ {
		delay *= 2
	}
	return min(delay, OutboxRetryCap)
}

// OutboxRepository stores outbox entries and tracks their delivery
type OutboxRepository interface {
	Save(ctx context.Context, entries ...*OutboxEntry) error
	// ClaimDue moves up to limit pending entries, and failed entries whose
	// retry time has passed, to processing. Oldest first. Entries another
	// relay holds are skipped.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*OutboxEntry, error)
	Update(ctx context.Context, entry *OutboxEntry) error
	DeleteSentBefore(ctx context.Context, before time.Time) (int64, error)
	CountByStatus(ctx context.Context) (map[OutboxStatus]int64, error)
}
