package invoicing

import (
	"context"
	"errors"
	"time"

	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/invoicing/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DefaultSweepBatchSize bounds how many invoices one sweep query loads
const DefaultSweepBatchSize = 200

// OverdueSweepService moves sent invoices past their due date to overdue
type OverdueSweepService struct {
	uow       invoicing.UnitOfWork
	reads     invoicing.InvoiceRepository
	batchSize int
	metrics   *telemetry.InvoiceMetrics
	logger    *zap.Logger
}

// NewOverdueSweepService creates a new OverdueSweepService
func NewOverdueSweepService(store Store, batchSize int, logger *zap.Logger) *OverdueSweepService {
	if batchSize <= 0 {
		batchSize = DefaultSweepBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OverdueSweepService{
		uow:       store,
		reads:     store.Repositories().Invoices,
		batchSize: batchSize,
		logger:    logger,
	}
}

// SetMetrics sets the business metrics recorder
func (s *OverdueSweepService) SetMetrics(metrics *telemetry.InvoiceMetrics) {
	s.metrics = metrics
}

// SweepOverdue transitions every sent invoice whose due date is before the day of
// now. Each invoice commits on its own so one failure does not hold back the rest.
// It returns the number of invoices marked overdue.
func (s *OverdueSweepService) SweepOverdue(ctx context.Context, now time.Time) (int, error) {
	ctx = logger.EnsureContext(ctx, s.logger)
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "sweep_overdue")
	defer span.End()

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	marked, failed := 0, 0
	var errs []error
	var cursor *invoicing.SweepCursor

	for {
		candidates, err := s.reads.FindSentDueBefore(ctx, today, cursor, s.batchSize)
		if err != nil {
			telemetry.RecordError(span, err)
			return marked, err
		}

		for i := range candidates {
			err := s.markOverdue(ctx, &candidates[i], now)
			switch {
			case err == nil:
				s.metrics.RecordTransition(ctx, candidates[i].TenantID,
					string(invoicing.InvoiceStatusSent), string(invoicing.InvoiceStatusOverdue))
				marked++
			case shared.IsCode(err, shared.CodeIllegalTransition), shared.IsCode(err, shared.CodeConcurrencyConflict):
				// changed by someone else since it was listed
			default:
				failed++
				errs = append(errs, err)
				logger.L(ctx).Error("Failed to mark invoice overdue",
					append(logger.Invoice(&candidates[i]), zap.Error(err))...)
			}
		}

		if len(candidates) < s.batchSize {
			break
		}
		cursor = invoicing.CursorAfter(&candidates[len(candidates)-1])
	}

	telemetry.SetAttributes(span, "sweep.marked", marked, "sweep.failed", failed)
	logger.L(ctx).Info("Overdue sweep finished",
		zap.Int("marked", marked),
		zap.Int("failed", failed),
		zap.Time("cutoff", today),
	)
	if len(errs) > 0 {
		err := errors.Join(errs...)
		telemetry.RecordError(span, err)
		return marked, err
	}
	telemetry.SetOK(span)
	return marked, nil
}

func (s *OverdueSweepService) markOverdue(ctx context.Context, candidate *invoicing.Invoice, now time.Time) error {
	return s.uow.Do(ctx, func(ctx context.Context, repos invoicing.Repositories) error {
		inv, err := repos.Invoices.FindByIDForUpdate(ctx, candidate.TenantID, candidate.ID)
		if err != nil {
			return err
		}
		if err := inv.MarkOverdue(now); err != nil {
			return err
		}
		if err := repos.Invoices.Save(ctx, inv); err != nil {
			return err
		}
		if err := repos.Events.Record(ctx, inv.GetDomainEvents()...); err != nil {
			return err
		}
		inv.ClearDomainEvents()
		return nil
	})
}
