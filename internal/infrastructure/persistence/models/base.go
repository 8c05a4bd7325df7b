package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/shared"
)

// TenantModel carries the key, owner and timestamps of every tenant-scoped row
type TenantModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;index"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TenantAggregateModel adds the optimistic lock version and author of an
// aggregate root
type TenantAggregateModel struct {
	TenantModel
	Version   int        `gorm:"not null;default:1"`
	CreatedBy *uuid.UUID `gorm:"type:uuid"`
}

// SetRoot copies the root's columns into the model
func (m *TenantAggregateModel) SetRoot(r shared.TenantAggregateRoot) {
	m.TenantModel = TenantModel{ID: r.ID, TenantID: r.TenantID, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
	m.Version = r.Version
	m.CreatedBy = r.CreatedBy
}

// CopyRootTo fills r from the model without touching its pending events
func (m *TenantAggregateModel) CopyRootTo(r *shared.TenantAggregateRoot) {
	r.ID, r.TenantID = m.ID, m.TenantID
	r.CreatedAt, r.UpdatedAt = m.CreatedAt, m.UpdatedAt
	r.Version = m.Version
	r.CreatedBy = m.CreatedBy
}
