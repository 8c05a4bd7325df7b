package shared

import (
	"time"

	"github.com/google/uuid"
)

// TenantAggregateRoot holds what every tenant-owned aggregate carries: identity,
// the owning tenant, audit stamps, an optimistic-lock version and the events
// raised since it was loaded.
//
// Version starts at 1. Every mutation increments it and repositories update
// only the row still stored at Version-1.
type TenantAggregateRoot struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	CreatedBy *uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int

	events []DomainEvent
}

// NewTenantAggregateRoot creates a root with a generated id stamped at the given time
func NewTenantAggregateRoot(tenantID uuid.UUID, at time.Time) TenantAggregateRoot {
	return TenantAggregateRoot{
		ID:        uuid.New(),
		TenantID:  tenantID,
		CreatedAt: at,
		UpdatedAt: at,
		Version:   1,
	}
}

// SetCreatedBy records the acting user
func (a *TenantAggregateRoot) SetCreatedBy(userID uuid.UUID) {
	a.CreatedBy = &userID
}

// IncrementVersion marks one more mutation
func (a *TenantAggregateRoot) IncrementVersion() {
	a.Version++
}

// AddDomainEvent queues an event for the outbox
func (a *TenantAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.events = append(a.events, event)
}

// GetDomainEvents returns the queued events
func (a *TenantAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.events
}

// ClearDomainEvents drops the queued events once they are recorded
func (a *TenantAggregateRoot) ClearDomainEvents() {
	a.events = nil
}
