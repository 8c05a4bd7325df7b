package invoicing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/invoicing/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// FinalizationService freezes a draft invoice. The status change, the snapshot
// and the outbox event commit in one transaction or not at all.
type FinalizationService struct {
	uow     invoicing.UnitOfWork
	builder *invoicing.SnapshotBuilder
	clock   shared.Clock
	metrics *telemetry.InvoiceMetrics
	logger  *zap.Logger
}

// NewFinalizationService creates a new FinalizationService
func NewFinalizationService(uow invoicing.UnitOfWork, builder *invoicing.SnapshotBuilder, clock shared.Clock, logger *zap.Logger) *FinalizationService {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FinalizationService{
		uow:     uow,
		builder: builder,
		clock:   clock,
		logger:  logger,
	}
}

// SetMetrics sets the business metrics recorder
func (s *FinalizationService) SetMetrics(metrics *telemetry.InvoiceMetrics) {
	s.metrics = metrics
}

// Finalize moves a draft to finalized and stores its snapshot.
//
// A draft is required; an invoice that already carries a snapshot yields
// AlreadyFinalized. Any failure rolls back the whole operation.
func (s *FinalizationService) Finalize(ctx context.Context, tenantID, invoiceID, actorID uuid.UUID) (*invoicing.Invoice, error) {
	started := s.clock.Now()
	ctx = logger.EnsureContext(ctx, s.logger)
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "finalize")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrInvoiceID, invoiceID.String(),
		telemetry.SpanAttrActorID, actorID.String(),
	)

	inv, snapshot, err := s.finalize(ctx, tenantID, invoiceID, actorID)
	s.metrics.RecordFinalizeDuration(ctx, s.clock.Now().Sub(started), outcomeOf(err))
	if err != nil {
		telemetry.RecordError(span, err)
		logFailure(logger.L(ctx), "Invoice finalization failed", err, logger.InvoiceID(invoiceID))
		return nil, err
	}

	telemetry.SetInvoice(span, inv)
	telemetry.SetAttribute(span, telemetry.SpanAttrSnapshotID, snapshot.ID.String())
	telemetry.SetOK(span)
	s.metrics.RecordFinalized(ctx, inv.TenantID, inv.Currency, inv.Summary.GrandTotal)
	s.metrics.RecordTransition(ctx, inv.TenantID, string(invoicing.InvoiceStatusDraft), string(invoicing.InvoiceStatusFinalized))

	logger.L(ctx).Info("Invoice finalized",
		append(logger.Invoice(inv), zap.String("snapshot_id", snapshot.ID.String()))...)
	return inv, nil
}

func (s *FinalizationService) finalize(ctx context.Context, tenantID, invoiceID, actorID uuid.UUID) (*invoicing.Invoice, *invoicing.Snapshot, error) {
	if actorID == uuid.Nil {
		return nil, nil, shared.NewDomainError(shared.CodeInvalidInput, "Finalizing actor is required")
	}

	var (
		finalized *invoicing.Invoice
		snapshot  *invoicing.Snapshot
	)
	err := s.uow.Do(ctx, func(ctx context.Context, repos invoicing.Repositories) error {
		inv, err := repos.Invoices.FindByIDForUpdate(ctx, tenantID, invoiceID)
		if err != nil {
			return err
		}

		if inv.Status().HasBeenFinalized() {
			exists, err := repos.Snapshots.ExistsForInvoice(ctx, tenantID, invoiceID)
			if err != nil {
				return err
			}
			if !exists {
				return shared.NewDomainError(shared.CodeIllegalTransition,
					fmt.Sprintf("Invoice %s is %s without a snapshot; run the legacy backfill", inv.FullNumber(), inv.Status()))
			}
		}

		now := s.clock.Now()
		if err := inv.Finalize(now); err != nil {
			return err
		}

		graph, err := loadGraph(ctx, repos, inv)
		if err != nil {
			return err
		}
		payload, err := s.builder.Build(graph, now, actorID)
		if err != nil {
			return err
		}
		if err := invoicing.ValidatePayload(payload); err != nil {
			return err
		}

		snap := invoicing.NewSnapshot(inv, payload)
		if err := repos.Snapshots.Create(ctx, snap); err != nil {
			return err
		}
		if err := repos.Invoices.Save(ctx, inv); err != nil {
			return err
		}

		events := append(inv.GetDomainEvents(), invoicing.NewInvoiceFinalizedEvent(inv, snap.ID, actorID, now))
		if err := repos.Events.Record(ctx, events...); err != nil {
			return fmt.Errorf("failed to record finalization events: %w", err)
		}
		inv.ClearDomainEvents()

		finalized = inv
		snapshot = snap
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return finalized, snapshot, nil
}

// outcomeOf labels an operation result for metrics: "ok" or the domain error code
func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return "error"
}

// logFailure logs expected domain rejections at warn and everything else at error
func logFailure(l *zap.Logger, msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	switch outcomeOf(err) {
	case shared.CodeImmutableRecordViolation, shared.CodeIncompleteGraph, "error":
		l.Error(msg, fields...)
	default:
		l.Warn(msg, fields...)
	}
}
