package event

import (
	"context"
	"fmt"

	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// OutboxPublisher turns domain events into outbox rows written by the
// transaction that raised them. The relay delivers them after commit.
type OutboxPublisher struct {
	serializer *EventSerializer
}

func NewOutboxPublisher(serializer *EventSerializer) *OutboxPublisher {
	return &OutboxPublisher{serializer: serializer}
}

// RecorderFor binds an EventRecorder to tx. It matches
// persistence.EventRecorderFactory.
func (p *OutboxPublisher) RecorderFor(tx *gorm.DB) invoicing.EventRecorder {
	return txRecorder{serializer: p.serializer, outbox: NewGormOutboxRepository(tx)}
}

type txRecorder struct {
	serializer *EventSerializer
	outbox     *GormOutboxRepository
}

func (r txRecorder) Record(ctx context.Context, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}
	entries := make([]*shared.OutboxEntry, len(events))
	for i, ev := range events {
		payload, err := r.serializer.Serialize(ev)
		if err != nil {
			return fmt.Errorf("record %s: %w", ev.EventType(), err)
		}
		entries[i] = shared.NewOutboxEntry(ev, payload)
	}
	return r.outbox.Save(ctx, entries...)
}
