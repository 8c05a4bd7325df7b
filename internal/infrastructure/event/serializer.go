package event

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
)

// EventSerializer turns events into outbox payloads and back. Decoding needs a
// constructor per event type, registered up front.
type EventSerializer struct {
	factories map[string]func() shared.DomainEvent
}

// NewEventSerializer creates a serializer with nothing registered
func NewEventSerializer() *EventSerializer {
	return &EventSerializer{factories: make(map[string]func() shared.DomainEvent)}
}

// NewInvoicingSerializer knows every event the invoicing core records
func NewInvoicingSerializer() *EventSerializer {
	s := NewEventSerializer()
	s.Register(invoicing.EventTypeInvoiceCreated, func() shared.DomainEvent { return &invoicing.InvoiceCreatedEvent{} })
	s.Register(invoicing.EventTypeInvoiceFinalized, func() shared.DomainEvent { return &invoicing.InvoiceFinalizedEvent{} })
	s.Register(invoicing.EventTypeInvoiceStatusChanged, func() shared.DomainEvent { return &invoicing.InvoiceStatusChangedEvent{} })
	s.Register(invoicing.EventTypeInvoicePrefixChanged, func() shared.DomainEvent { return &invoicing.InvoicePrefixChangedEvent{} })
	return s
}

// Register sets the constructor used to decode eventType.
// Serializers are configured at startup and read-only afterwards.
func (s *EventSerializer) Register(eventType string, factory func() shared.DomainEvent) {
	s.factories[eventType] = factory
}

// Serialize encodes an event as JSON
func (s *EventSerializer) Serialize(event shared.DomainEvent) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %s: %w", event.EventType(), err)
	}
	return data, nil
}

// Deserialize decodes a payload stored under eventType
func (s *EventSerializer) Deserialize(eventType string, data []byte) (shared.DomainEvent, error) {
	factory, ok := s.factories[eventType]
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
	event := factory()
	if err := json.Unmarshal(data, event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", eventType, err)
	}
	return event, nil
}

// IsRegistered reports whether eventType can be decoded
func (s *EventSerializer) IsRegistered(eventType string) bool {
	_, ok := s.factories[eventType]
	return ok
}

// RegisteredTypes lists the decodable event types in sorted order
func (s *EventSerializer) RegisteredTypes() []string {
	return slices.Sorted(maps.Keys(s.factories))
}
