package event

import (
	"context"
	"fmt"
	"time"

	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOutboxRepository keeps the outbox in the invoicing database
type GormOutboxRepository struct {
	db *gorm.DB
}

func NewGormOutboxRepository(db *gorm.DB) *GormOutboxRepository {
	return &GormOutboxRepository{db: db}
}

func (r *GormOutboxRepository) rows(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.OutboxRow{})
}

func (r *GormOutboxRepository) Save(ctx context.Context, entries ...*shared.OutboxEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := make([]*models.OutboxRow, 0, len(entries))
	for _, e := range entries {
		batch = append(batch, models.NewOutboxRow(e))
	}
	if err := r.db.WithContext(ctx).Create(batch).Error; err != nil {
		return fmt.Errorf("save outbox entries: %w", err)
	}
	return nil
}

// ClaimDue selects due rows with FOR UPDATE SKIP LOCKED and flips them to
// processing in the same transaction. SQLite ignores the lock clause, which
// is fine for its single writer.
func (r *GormOutboxRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*shared.OutboxEntry, error) {
	var claimed []*shared.OutboxEntry
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var due []models.OutboxRow
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", shared.OutboxStatusPending).
			Or("status = ? AND next_retry_at <= ?", shared.OutboxStatusFailed, now).
			Order("created_at").
			Limit(limit).
			Find(&due).Error; err != nil {
			return err
		}

		ids := make([]any, 0, len(due))
		for i := range due {
			entry := due[i].Entry()
			if err := entry.Claim(now); err != nil {
				return err
			}
			claimed = append(claimed, entry)
			ids = append(ids, entry.ID)
		}
		if len(ids) == 0 {
			return nil
		}
		return tx.Model(&models.OutboxRow{}).
			Where("id IN ?", ids).
			Updates(map[string]any{"status": shared.OutboxStatusProcessing, "updated_at": now}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("claim outbox entries: %w", err)
	}
	return claimed, nil
}

// Update writes the delivery bookkeeping of entry. Event columns never change.
func (r *GormOutboxRepository) Update(ctx context.Context, entry *shared.OutboxEntry) error {
	err := r.rows(ctx).Where("id = ?", entry.ID).Updates(map[string]any{
		"status":        entry.Status,
		"attempts":      entry.Attempts,
		"max_attempts":  entry.MaxAttempts,
		"last_error":    entry.LastError,
		"next_retry_at": entry.NextRetryAt,
		"delivered_at":  entry.DeliveredAt,
		"updated_at":    entry.UpdatedAt,
	}).Error
	if err != nil {
		return fmt.Errorf("update outbox entry %s: %w", entry.ID, err)
	}
	return nil
}

func (r *GormOutboxRepository) DeleteSentBefore(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status = ? AND delivered_at < ?", shared.OutboxStatusSent, before).
		Delete(&models.OutboxRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge sent outbox entries: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *GormOutboxRepository) CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error) {
	var tally []struct {
		Status shared.OutboxStatus
		N      int64
	}
	if err := r.rows(ctx).Select("status, count(*) AS n").Group("status").Scan(&tally).Error; err != nil {
		return nil, fmt.Errorf("count outbox entries: %w", err)
	}

	counts := make(map[shared.OutboxStatus]int64, len(tally))
	for _, t := range tally {
		counts[t.Status] = t.N
	}
	return counts, nil
}

var _ shared.OutboxRepository = (*GormOutboxRepository)(nil)
