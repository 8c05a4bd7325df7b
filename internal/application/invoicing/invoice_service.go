package invoicing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/cache"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/invoicing/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DefaultAllocationRetries is how many numbers a draft may draw before a collision is returned
const DefaultAllocationRetries = 3

// Store opens transactions and hands out repositories for plain reads
type Store interface {
	invoicing.UnitOfWork
	Repositories() invoicing.Repositories
}

// Options configures an InvoiceService
type Options struct {
	DefaultPrefix     string
	AllocationRetries int
	Formatter         *invoicing.Formatter
	Clock             shared.Clock
}

// InvoiceService handles draft, numbering, prefix and status operations on invoices
type InvoiceService struct {
	store         Store
	finalizer     *FinalizationService
	formatter     invoicing.Formatter
	clock         shared.Clock
	defaultPrefix string
	retries       int
	prefixCache   cache.PrefixCache
	metrics       *telemetry.InvoiceMetrics
	logger        *zap.Logger
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(store Store, finalizer *FinalizationService, opts Options, logger *zap.Logger) *InvoiceService {
	formatter := invoicing.DefaultFormatter()
	if opts.Formatter != nil {
		formatter = *opts.Formatter
	}
	if opts.Clock == nil {
		opts.Clock = shared.SystemClock{}
	}
	if opts.AllocationRetries <= 0 {
		opts.AllocationRetries = DefaultAllocationRetries
	}
	if opts.DefaultPrefix == "" {
		opts.DefaultPrefix = invoicing.DefaultPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceService{
		store:         store,
		finalizer:     finalizer,
		formatter:     formatter,
		clock:         opts.Clock,
		defaultPrefix: opts.DefaultPrefix,
		retries:       opts.AllocationRetries,
		logger:        logger,
	}
}

// SetPrefixCache sets the read-through cache for active prefixes
func (s *InvoiceService) SetPrefixCache(c cache.PrefixCache) {
	s.prefixCache = c
}

// SetMetrics sets the business metrics recorder
func (s *InvoiceService) SetMetrics(metrics *telemetry.InvoiceMetrics) {
	s.metrics = metrics
}

// Formatter returns the formatter used to render numbers, labels and amounts
func (s *InvoiceService) Formatter() invoicing.Formatter {
	return s.formatter
}

func (s *InvoiceService) allocator(repos invoicing.Repositories) *invoicing.NumberAllocator {
	return invoicing.NewNumberAllocator(repos.Prefixes, repos.Sequences, s.formatter, s.defaultPrefix)
}

// Calculate runs the calculation engine without persisting anything
func (s *InvoiceService) Calculate(ctx context.Context, tenantID uuid.UUID, req CalculateRequest) (*CalculationResponse, error) {
	discountType := invoicing.DiscountType(req.DiscountType)

	var cfg invoicing.CalculationConfig
	switch {
	case req.CompanyID != nil:
		company, err := s.store.Repositories().Companies.FindByIDForTenant(ctx, tenantID, *req.CompanyID)
		if err != nil {
			return nil, err
		}
		cfg = company.CalculationConfig(req.Discount, discountType)
	case req.Config != nil:
		cfg = invoicing.CalculationConfig{
			VATEnabled:         req.Config.VATEnabled,
			VATRegistered:      req.Config.VATRegistered,
			VATRate:            req.Config.VATRate,
			PlatformFeeEnabled: req.Config.PlatformFeeEnabled,
			PlatformFeeRate:    req.Config.PlatformFeeRate,
			Discount:           req.Discount,
			DiscountType:       discountType,
		}
	default:
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Either company_id or config is required")
	}

	totals, err := invoicing.Calculate(ToLineInputs(req.Items), cfg)
	if err != nil {
		return nil, err
	}
	response := ToCalculationResponse(totals)
	return &response, nil
}

// CreateDraft calculates, numbers and stores a new draft invoice. A number that
// collides with an existing invoice is discarded and the next serial drawn in the
// same transaction; the gap is accepted.
func (s *InvoiceService) CreateDraft(ctx context.Context, tenantID, actorID uuid.UUID, req CreateInvoiceRequest) (*InvoiceResponse, error) {
	ctx = logger.EnsureContext(ctx, s.logger)
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "create_draft")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrCompanyID, req.CompanyID.String(),
	)

	in := invoicing.DraftInput{
		ClientID:     req.ClientID,
		TemplateID:   req.TemplateID,
		Currency:     req.Currency,
		Notes:        req.Notes,
		Discount:     req.Discount,
		DiscountType: invoicing.DiscountType(req.DiscountType),
		Items:        ToItemInputs(req.Items),
	}
	if req.IssueDate != nil {
		in.IssueDate = *req.IssueDate
	}
	if req.DueDate != nil {
		in.DueDate = *req.DueDate
	}

	created, err := s.createDraft(ctx, tenantID, req.CompanyID, actorID, in)
	if err != nil {
		telemetry.RecordError(span, err)
		logFailure(logger.L(ctx), "Failed to create draft invoice", err, logger.TenantID(tenantID))
		return nil, err
	}

	telemetry.SetInvoice(span, created)
	telemetry.SetOK(span)
	s.metrics.RecordNumberAllocated(ctx, tenantID, string(created.NumberingMode()))
	logger.L(ctx).Info("Draft invoice created", logger.Invoice(created)...)

	response := ToInvoiceResponse(created, s.formatter)
	return &response, nil
}

func (s *InvoiceService) createDraft(ctx context.Context, tenantID, companyID, actorID uuid.UUID, in invoicing.DraftInput) (*invoicing.Invoice, error) {
	var created *invoicing.Invoice
	err := s.store.Do(ctx, func(ctx context.Context, repos invoicing.Repositories) error {
		now := s.clock.Now()

		company, err := repos.Companies.FindByIDForTenant(ctx, tenantID, companyID)
		if err != nil {
			return err
		}
		client, err := s.findClient(ctx, repos, tenantID, in.ClientID)
		if err != nil {
			return err
		}
		if client != nil && client.CompanyID != company.ID {
			return shared.NewDomainError(shared.CodeInvalidInput, "Client does not belong to the company")
		}
		if in.TemplateID != nil {
			if _, err := repos.Templates.FindByIDForTenant(ctx, tenantID, *in.TemplateID); err != nil {
				return err
			}
		}

		allocator := s.allocator(repos)
		var inv *invoicing.Invoice
		for attempt := 1; ; attempt++ {
			inv, err = s.numberDraft(ctx, allocator, company, client, actorID, in, now)
			if err != nil {
				return err
			}
			err = repos.Invoices.Create(ctx, inv)
			if err == nil {
				break
			}
			if !shared.IsCode(err, shared.CodeConcurrencyConflict) || attempt >= s.retries {
				return err
			}
			s.metrics.RecordAllocationConflict(ctx, tenantID)
			logger.L(ctx).Warn("Invoice number collided, drawing the next serial",
				zap.String("company_id", companyID.String()),
				zap.String("invoice_number", inv.FullNumber()),
				zap.Int("attempt", attempt),
			)
		}

		if err := repos.Fees.ReplaceForInvoice(ctx, inv, now); err != nil {
			return err
		}
		if err := repos.Events.Record(ctx, inv.GetDomainEvents()...); err != nil {
			return fmt.Errorf("failed to record invoice events: %w", err)
		}
		inv.ClearDomainEvents()
		created = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// numberDraft builds a fresh draft and numbers it. A draft is numbered once, so
// every allocation attempt starts from a new one.
func (s *InvoiceService) numberDraft(ctx context.Context, allocator *invoicing.NumberAllocator, company *invoicing.Company, client *invoicing.Client, actorID uuid.UUID, in invoicing.DraftInput, now time.Time) (*invoicing.Invoice, error) {
	draft, err := invoicing.NewDraft(company, in, now)
	if err != nil {
		return nil, err
	}
	if actorID != uuid.Nil {
		draft.SetCreatedBy(actorID)
	}
	number, err := allocator.Allocate(ctx, company, client, now)
	if err != nil {
		return nil, err
	}
	return draft.Number(number, now)
}

func (s *InvoiceService) findClient(ctx context.Context, repos invoicing.Repositories, tenantID uuid.UUID, clientID *uuid.UUID) (*invoicing.Client, error) {
	if clientID == nil {
		return nil, nil
	}
	return repos.Clients.FindByIDForTenant(ctx, tenantID, *clientID)
}

// UpdateDraftItems replaces the items and discount of a draft and recalculates it.
// Invoices past draft fail with NotEditable.
func (s *InvoiceService) UpdateDraftItems(ctx context.Context, tenantID, invoiceID uuid.UUID, req UpdateInvoiceItemsRequest) (*InvoiceResponse, error) {
	ctx = logger.EnsureContext(ctx, s.logger)
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "update_items")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrInvoiceID, invoiceID.String(),
	)

	var updated *invoicing.Invoice
	err := s.store.Do(ctx, func(ctx context.Context, repos invoicing.Repositories) error {
		inv, err := repos.Invoices.FindByIDForUpdate(ctx, tenantID, invoiceID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if err := inv.ReplaceItems(ToItemInputs(req.Items), req.Discount, invoicing.DiscountType(req.DiscountType), now); err != nil {
			return err
		}
		if err := repos.Invoices.ReplaceItems(ctx, inv); err != nil {
			return err
		}
		if err := repos.Invoices.Save(ctx, inv); err != nil {
			return err
		}
		if err := repos.Fees.ReplaceForInvoice(ctx, inv, now); err != nil {
			return err
		}
		updated = inv
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		logFailure(logger.L(ctx), "Failed to update draft items", err, logger.InvoiceID(invoiceID))
		return nil, err
	}

	telemetry.SetInvoice(span, updated)
	telemetry.SetOK(span)
	response := ToInvoiceResponse(updated, s.formatter)
	return &response, nil
}

// GetByID retrieves an invoice with its items
func (s *InvoiceService) GetByID(ctx context.Context, tenantID, invoiceID uuid.UUID) (*InvoiceResponse, error) {
	inv, err := s.store.Repositories().Invoices.FindByIDForTenant(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	response := ToInvoiceResponse(inv, s.formatter)
	return &response, nil
}

// List retrieves invoices with filtering and pagination
func (s *InvoiceService) List(ctx context.Context, tenantID uuid.UUID, filter InvoiceListFilter) ([]InvoiceListItemResponse, int64, error) {
	domainFilter := invoicing.InvoiceFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  filter.OrderBy,
			OrderDir: filter.OrderDir,
		}.Normalize(),
		CompanyID: filter.CompanyID,
		ClientID:  filter.ClientID,
		Search:    filter.Search,
	}
	if filter.Status != "" {
		status := invoicing.InvoiceStatus(filter.Status)
		if !status.IsValid() {
			return nil, 0, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("Unknown invoice status %q", filter.Status))
		}
		domainFilter.Status = &status
	}

	invoices, total, err := s.store.Repositories().Invoices.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	items := make([]InvoiceListItemResponse, len(invoices))
	for i := range invoices {
		items[i] = ToInvoiceListItemResponse(&invoices[i], s.formatter)
	}
	return items, total, nil
}

// AllocateNumber draws the next number for the company, or for the client under
// client-scoped numbering. The serial is consumed even if the caller never uses it.
func (s *InvoiceService) AllocateNumber(ctx context.Context, tenantID uuid.UUID, req AllocateNumberRequest) (*InvoiceNumberResponse, error) {
	ctx = logger.EnsureContext(ctx, s.logger)
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "allocate_number")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrCompanyID, req.CompanyID.String(),
	)

	var number invoicing.InvoiceNumber
	err := s.store.Do(ctx, func(ctx context.Context, repos invoicing.Repositories) error {
		company, err := repos.Companies.FindByIDForTenant(ctx, tenantID, req.CompanyID)
		if err != nil {
			return err
		}
		client, err := s.findClient(ctx, repos, tenantID, req.ClientID)
		if err != nil {
			return err
		}
		number, err = s.allocator(repos).Allocate(ctx, company, client, s.clock.Now())
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		logFailure(logger.L(ctx), "Failed to allocate invoice number", err, logger.TenantID(tenantID))
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceNumber, number.FullNumber,
		telemetry.SpanAttrNumberingMode, string(number.Mode),
	)
	telemetry.SetOK(span)
	s.metrics.RecordNumberAllocated(ctx, tenantID, string(number.Mode))

	response := ToInvoiceNumberResponse(number)
	return &response, nil
}

// ActivePrefix returns the company's active prefix, serving it from the cache when possible
func (s *InvoiceService) ActivePrefix(ctx context.Context, tenantID, companyID uuid.UUID) (*PrefixResponse, error) {
	ctx = logger.EnsureContext(ctx, s.logger)
	if s.prefixCache != nil {
		cached, err := s.prefixCache.Get(ctx, tenantID, companyID)
		if err != nil {
			logger.L(ctx).Warn("Prefix cache read failed", zap.Error(err))
		} else if cached != nil {
			response := ToPrefixResponse(cached)
			return &response, nil
		}
	}

	var prefix *invoicing.InvoicePrefix
	err := s.store.Do(ctx, func(ctx context.Context, repos invoicing.Repositories) error {
		if _, err := repos.Companies.FindByIDForTenant(ctx, tenantID, companyID); err != nil {
			return err
		}
		var err error
		prefix, err = s.allocator(repos).ActivePrefix(ctx, tenantID, companyID, s.clock.Now())
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.prefixCache != nil {
		if err := s.prefixCache.Set(ctx, prefix); err != nil {
			logger.L(ctx).Warn("Prefix cache write failed", zap.Error(err))
		}
	}
	response := ToPrefixResponse(prefix)
	return &response, nil
}

// ChangePrefix ends the active prefix and starts a new one. Numbers already
// issued keep their prefix.
func (s *InvoiceService) ChangePrefix(ctx context.Context, tenantID, companyID uuid.UUID, req ChangePrefixRequest) (*PrefixResponse, error) {
	ctx = logger.EnsureContext(ctx, s.logger)
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "change_prefix")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrCompanyID, companyID.String(),
	)

	var previous, current *invoicing.InvoicePrefix
	err := s.store.Do(ctx, func(ctx context.Context, repos invoicing.Repositories) error {
		if _, err := repos.Companies.FindByIDForTenant(ctx, tenantID, companyID); err != nil {
			return err
		}
		now := s.clock.Now()
		var err error
		previous, current, err = s.allocator(repos).ChangePrefix(ctx, tenantID, companyID, req.Prefix, now)
		if err != nil {
			return err
		}
		if err := repos.Events.Record(ctx, invoicing.NewInvoicePrefixChangedEvent(previous, current, now)); err != nil {
			return fmt.Errorf("failed to record prefix event: %w", err)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		logFailure(logger.L(ctx), "Failed to change invoice prefix", err, zap.String("company_id", companyID.String()))
		return nil, err
	}

	if s.prefixCache != nil {
		if err := s.prefixCache.Invalidate(ctx, tenantID, companyID); err != nil {
			logger.L(ctx).Warn("Prefix cache invalidation failed", zap.Error(err))
		}
	}
	telemetry.SetOK(span)

	fields := []zap.Field{
		zap.String("company_id", companyID.String()),
		zap.String("prefix", current.Prefix),
	}
	if previous != nil {
		fields = append(fields, zap.String("previous_prefix", previous.Prefix))
	}
	logger.L(ctx).Info("Invoice prefix changed", fields...)

	response := ToPrefixResponse(current)
	return &response, nil
}

// Transition moves an invoice to a new status. Finalization is routed through
// the FinalizationService so that the snapshot is written with it.
func (s *InvoiceService) Transition(ctx context.Context, tenantID, invoiceID, actorID uuid.UUID, req TransitionRequest) (*InvoiceResponse, error) {
	to := invoicing.InvoiceStatus(req.Status)
	if to == invoicing.InvoiceStatusFinalized {
		return s.Finalize(ctx, tenantID, invoiceID, actorID)
	}

	ctx = logger.EnsureContext(ctx, s.logger)
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "transition")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrInvoiceID, invoiceID.String(),
		"invoice.to_status", req.Status,
	)

	var (
		changed *invoicing.Invoice
		from    invoicing.InvoiceStatus
	)
	err := s.store.Do(ctx, func(ctx context.Context, repos invoicing.Repositories) error {
		inv, err := repos.Invoices.FindByIDForUpdate(ctx, tenantID, invoiceID)
		if err != nil {
			return err
		}
		from = inv.Status()
		if err := inv.Transition(to, s.clock.Now()); err != nil {
			return err
		}
		if err := repos.Invoices.Save(ctx, inv); err != nil {
			return err
		}
		if err := repos.Events.Record(ctx, inv.GetDomainEvents()...); err != nil {
			return fmt.Errorf("failed to record transition events: %w", err)
		}
		inv.ClearDomainEvents()
		changed = inv
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		logFailure(logger.L(ctx), "Invoice transition failed", err,
			logger.InvoiceID(invoiceID), zap.String("to", req.Status))
		return nil, err
	}

	telemetry.SetInvoice(span, changed)
	telemetry.SetOK(span)
	s.metrics.RecordTransition(ctx, tenantID, string(from), string(to))
	logger.L(ctx).Info("Invoice status changed",
		append(logger.Invoice(changed), zap.String("from", string(from)))...)

	response := ToInvoiceResponse(changed, s.formatter)
	return &response, nil
}

// Finalize freezes a draft invoice and returns it
func (s *InvoiceService) Finalize(ctx context.Context, tenantID, invoiceID, actorID uuid.UUID) (*InvoiceResponse, error) {
	if s.finalizer == nil {
		return nil, errors.New("finalization is not configured")
	}
	inv, err := s.finalizer.Finalize(ctx, tenantID, invoiceID, actorID)
	if err != nil {
		return nil, err
	}
	response := ToInvoiceResponse(inv, s.formatter)
	return &response, nil
}

// GetSnapshot returns the frozen record of a finalized invoice
func (s *InvoiceService) GetSnapshot(ctx context.Context, tenantID, invoiceID uuid.UUID) (*SnapshotResponse, error) {
	repos := s.store.Repositories()
	if _, err := repos.Invoices.FindByIDForTenant(ctx, tenantID, invoiceID); err != nil {
		return nil, err
	}
	snapshot, err := repos.Snapshots.FindByInvoiceID(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	response := ToSnapshotResponse(snapshot)
	return &response, nil
}
