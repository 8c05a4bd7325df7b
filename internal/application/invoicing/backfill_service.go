package invoicing

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/invoicing/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DefaultBackfillBatchSize bounds how many invoices one backfill run snapshots
const DefaultBackfillBatchSize = 100

// BackfillService creates legacy snapshots for invoices that were finalized
// before snapshots existed. Stored values are copied as they are; nothing is recalculated.
type BackfillService struct {
	store   Store
	builder *invoicing.SnapshotBuilder
	clock   shared.Clock
	logger  *zap.Logger
}

// NewBackfillService creates a new BackfillService
func NewBackfillService(store Store, builder *invoicing.SnapshotBuilder, clock shared.Clock, logger *zap.Logger) *BackfillService {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackfillService{
		store:   store,
		builder: builder,
		clock:   clock,
		logger:  logger,
	}
}

// BackfillLegacySnapshots snapshots up to batchSize finalized invoices that have none.
// A nil tenantID scans every tenant. actorID is recorded as taken_by and may be uuid.Nil
// for system runs.
func (s *BackfillService) BackfillLegacySnapshots(ctx context.Context, tenantID *uuid.UUID, actorID uuid.UUID, batchSize int) (*BackfillResult, error) {
	ctx = logger.EnsureContext(ctx, s.logger)
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "backfill_snapshots")
	defer span.End()

	if batchSize <= 0 {
		batchSize = DefaultBackfillBatchSize
	}

	candidates, err := s.store.Repositories().Invoices.FindFinalizedWithoutSnapshot(ctx, tenantID, batchSize)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result := &BackfillResult{Scanned: len(candidates)}
	for i := range candidates {
		candidate := &candidates[i]
		created, err := s.backfill(ctx, candidate, actorID)
		switch {
		case err != nil:
			result.Failed++
			logger.L(ctx).Error("Failed to backfill legacy snapshot",
				append(logger.Invoice(candidate), zap.Error(err))...)
		case created:
			result.Created++
		default:
			result.Skipped++
		}
	}

	telemetry.SetAttributes(span,
		"backfill.scanned", result.Scanned,
		"backfill.created", result.Created,
		"backfill.failed", result.Failed,
	)
	telemetry.SetOK(span)
	logger.L(ctx).Info("Legacy snapshot backfill finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (s *BackfillService) backfill(ctx context.Context, candidate *invoicing.Invoice, actorID uuid.UUID) (bool, error) {
	created := false
	err := s.store.Do(ctx, func(ctx context.Context, repos invoicing.Repositories) error {
		inv, err := repos.Invoices.FindByIDForUpdate(ctx, candidate.TenantID, candidate.ID)
		if err != nil {
			return err
		}
		if !inv.WasFinalized() {
			return nil
		}
		exists, err := repos.Snapshots.ExistsForInvoice(ctx, inv.TenantID, inv.ID)
		if err != nil || exists {
			return err
		}

		graph, err := loadGraph(ctx, repos, inv)
		if err != nil {
			return err
		}
		takenAt := s.clock.Now()
		if inv.FinalizedAt != nil {
			takenAt = *inv.FinalizedAt
		}
		payload, err := s.builder.BuildLegacy(graph, takenAt, actorID)
		if err != nil {
			return err
		}
		if missing := invoicing.MissingRequiredFields(payload); len(missing) > 0 {
			return shared.NewDomainError(shared.CodeInvalidInput,
				fmt.Sprintf("Legacy invoice %s lacks required fields: %s", inv.FullNumber(), strings.Join(missing, ", ")))
		}
		if err := invoicing.ValidatePayload(payload); err != nil {
			// stored legacy totals are kept as they are
			logger.L(ctx).Warn("Legacy snapshot totals are inconsistent",
				append(logger.Invoice(inv), zap.Error(err))...)
		}

		if err := repos.Snapshots.Create(ctx, invoicing.NewSnapshot(inv, payload)); err != nil {
			return err
		}
		created = true
		return nil
	})
	if shared.IsCode(err, shared.CodeAlreadyFinalized) {
		// a concurrent run got there first
		return false, nil
	}
	return created, err
}
