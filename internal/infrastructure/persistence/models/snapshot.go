package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// ErrSnapshotImmutable is returned by the snapshot model hooks on any update or delete
var ErrSnapshotImmutable = shared.NewDomainError(shared.CodeImmutableRecordViolation, "Invoice snapshots cannot be modified or deleted")

// InvoiceSnapshotModel is the persistence model for the frozen invoice record.
// Rows are insert-only.
type InvoiceSnapshotModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID      uuid.UUID `gorm:"type:uuid;not null;index"`
	InvoiceID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	Payload       []byte    `gorm:"type:jsonb;not null"`
	Legacy        bool      `gorm:"not null"`
	SchemaVersion int       `gorm:"not null"`
	TakenAt       time.Time `gorm:"not null"`
	TakenBy       uuid.UUID `gorm:"type:uuid"`
	CreatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InvoiceSnapshotModel) TableName() string {
	return "invoice_snapshots"
}

// BeforeUpdate rejects every update
func (m *InvoiceSnapshotModel) BeforeUpdate(tx *gorm.DB) error {
	return ErrSnapshotImmutable
}

// BeforeDelete rejects every delete
func (m *InvoiceSnapshotModel) BeforeDelete(tx *gorm.DB) error {
	return ErrSnapshotImmutable
}

// ToDomain converts the persistence model to a domain Snapshot
func (m *InvoiceSnapshotModel) ToDomain() (*invoicing.Snapshot, error) {
	var payload invoicing.Payload
	if err := json.Unmarshal(m.Payload, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot payload: %w", err)
	}
	return &invoicing.Snapshot{
		ID:        m.ID,
		TenantID:  m.TenantID,
		InvoiceID: m.InvoiceID,
		Payload:   payload,
		Legacy:    m.Legacy,
		TakenAt:   m.TakenAt,
		TakenBy:   m.TakenBy,
		CreatedAt: m.CreatedAt,
	}, nil
}

// InvoiceSnapshotModelFromDomain creates a new persistence model from a domain Snapshot
func InvoiceSnapshotModelFromDomain(s *invoicing.Snapshot) (*InvoiceSnapshotModel, error) {
	payload, err := json.Marshal(s.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot payload: %w", err)
	}
	return &InvoiceSnapshotModel{
		ID:            s.ID,
		TenantID:      s.TenantID,
		InvoiceID:     s.InvoiceID,
		Payload:       payload,
		Legacy:        s.Legacy,
		SchemaVersion: s.Payload.Meta.SchemaVersion,
		TakenAt:       s.TakenAt,
		TakenBy:       s.TakenBy,
		CreatedAt:     s.CreatedAt,
	}, nil
}
