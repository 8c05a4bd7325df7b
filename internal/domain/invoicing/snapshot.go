package invoicing

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// SnapshotSchemaVersion is bumped whenever the payload layout changes
const SnapshotSchemaVersion = 1

const dateLayout = "2006-01-02"

// Snapshot is the frozen financial record of an invoice. One per invoice, never updated.
type Snapshot struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	InvoiceID uuid.UUID
	Payload   Payload
	Legacy    bool
	TakenAt   time.Time
	TakenBy   uuid.UUID
	CreatedAt time.Time
}

// NewSnapshot wraps a built payload for persistence
func NewSnapshot(inv *Invoice, payload Payload) *Snapshot {
	return &Snapshot{
		ID:        uuid.New(),
		TenantID:  inv.TenantID,
		InvoiceID: inv.ID,
		Payload:   payload,
		Legacy:    payload.Meta.Legacy,
		TakenAt:   payload.Meta.TakenAt,
		TakenBy:   payload.Meta.TakenBy,
		CreatedAt: payload.Meta.TakenAt,
	}
}

// Payload is the self-contained tree consumed by rendering and export.
// Optional values are omitted from JSON when empty.
type Payload struct {
	Invoice       InvoiceSection       `json:"invoice"`
	Company       PartySection         `json:"company"`
	Client        *PartySection        `json:"client,omitempty"`
	Configuration ConfigurationSection `json:"configuration"`
	Items         []ItemSection        `json:"items"`
	Fees          []FeeSection         `json:"fees"`
	Totals        TotalsSection        `json:"totals"`
	Template      *TemplateSection     `json:"template,omitempty"`
	Branding      Branding             `json:"branding"`
	Meta          SnapshotMeta         `json:"meta"`
}

// InvoiceSection holds the invoice header
type InvoiceSection struct {
	ID            uuid.UUID     `json:"id"`
	Number        string        `json:"number"`
	Prefix        string        `json:"prefix,omitempty"`
	Serial        int64         `json:"serial"`
	NumberingMode NumberingMode `json:"numbering_mode,omitempty"`
	Status        InvoiceStatus `json:"status"`
	StatusLabel   string        `json:"status_label,omitempty"`
	IssueDate     string        `json:"issue_date"`
	DueDate       string        `json:"due_date,omitempty"`
	Currency      string        `json:"currency"`
	Notes         string        `json:"notes,omitempty"`
}

// PartySection is a frozen copy of the seller or buyer
type PartySection struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	KRAPIN  string    `json:"kra_pin,omitempty"`
	Address string    `json:"address,omitempty"`
	Email   string    `json:"email,omitempty"`
	Phone   string    `json:"phone,omitempty"`
	LogoURL string    `json:"logo_url,omitempty"`
}

// ConfigurationSection records the rates and flags the totals were computed with
type ConfigurationSection struct {
	VATEnabled         bool            `json:"vat_enabled"`
	VATRegistered      bool            `json:"vat_registered"`
	VATRate            decimal.Decimal `json:"vat_rate"`
	PlatformFeeEnabled bool            `json:"platform_fee_enabled"`
	PlatformFeeRate    decimal.Decimal `json:"platform_fee_rate"`
	Discount           decimal.Decimal `json:"discount"`
	DiscountType       DiscountType    `json:"discount_type,omitempty"`
}

// ItemSection is one frozen line
type ItemSection struct {
	Position     int             `json:"position"`
	Description  string          `json:"description"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	VATIncluded  bool            `json:"vat_included"`
	VATRate      decimal.Decimal `json:"vat_rate"`
	LineSubtotal decimal.Decimal `json:"line_subtotal"`
	VATAmount    decimal.Decimal `json:"vat_amount"`
	NetAmount    decimal.Decimal `json:"net_amount"`
	LineTotal    decimal.Decimal `json:"line_total"`
}

// FeeSection is one frozen platform fee
type FeeSection struct {
	Rate   decimal.Decimal   `json:"rate"`
	Amount decimal.Decimal   `json:"amount"`
	Status PlatformFeeStatus `json:"status"`
}

// TotalsSection holds explicit totals. Pointers distinguish absent from zero.
type TotalsSection struct {
	Subtotal              *decimal.Decimal  `json:"subtotal,omitempty"`
	DiscountAmount        *decimal.Decimal  `json:"discount_amount,omitempty"`
	SubtotalAfterDiscount *decimal.Decimal  `json:"subtotal_after_discount,omitempty"`
	VATAmount             *decimal.Decimal  `json:"vat_amount,omitempty"`
	Total                 *decimal.Decimal  `json:"total,omitempty"`
	PlatformFee           *decimal.Decimal  `json:"platform_fee,omitempty"`
	GrandTotal            *decimal.Decimal  `json:"grand_total,omitempty"`
	Display               map[string]string `json:"display,omitempty"`
}

// TemplateSection is a frozen copy of the layout settings
type TemplateSection struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Layout    string    `json:"layout,omitempty"`
	ShowVAT   bool      `json:"show_vat"`
	ShowNotes bool      `json:"show_notes"`
}

// SnapshotMeta records when, by whom and how the snapshot was taken
type SnapshotMeta struct {
	TakenAt       time.Time `json:"taken_at"`
	TakenBy       uuid.UUID `json:"taken_by"`
	Legacy        bool      `json:"legacy"`
	SchemaVersion int       `json:"schema_version"`
}

// Graph is an invoice with every relation the snapshot needs.
// A nil pointer or nil slice means the relation was not loaded.
type Graph struct {
	Invoice  *Invoice
	Company  *Company
	Client   *Client
	Template *Template
	Fees     []PlatformFee
}

// SnapshotBuilder turns a loaded Graph into a Payload. It reads nothing itself.
type SnapshotBuilder struct {
	formatter Formatter
}

// NewSnapshotBuilder creates a new SnapshotBuilder
func NewSnapshotBuilder(formatter Formatter) *SnapshotBuilder {
	return &SnapshotBuilder{formatter: formatter}
}

// Build produces the payload for a finalization. Totals are recalculated from the
// stored items and rates and must agree with the cached totals on the invoice.
func (b *SnapshotBuilder) Build(g Graph, takenAt time.Time, takenBy uuid.UUID) (Payload, error) {
	if takenBy == uuid.Nil {
		return Payload{}, shared.NewDomainError(shared.CodeInvalidInput, "Snapshot actor is required")
	}
	if takenAt.IsZero() {
		return Payload{}, shared.NewDomainError(shared.CodeInvalidInput, "Snapshot time is required")
	}
	if err := checkGraph(g); err != nil {
		return Payload{}, err
	}

	totals, err := g.Invoice.Recalculate()
	if err != nil {
		return Payload{}, err
	}
	if !summaryEqual(totals.Summary, g.Invoice.Summary) {
		return Payload{}, shared.NewDomainError(shared.CodeInvalidInput,
			fmt.Sprintf("Stored totals of invoice %s do not match recalculation", g.Invoice.FullNumber()))
	}

	items := make([]ItemSection, len(g.Invoice.Items))
	for i, item := range g.Invoice.Items {
		line := totals.Lines[i]
		items[i] = ItemSection{
			Position:     item.Position,
			Description:  item.Description,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			VATIncluded:  line.VATIncluded,
			VATRate:      line.VATRate,
			LineSubtotal: line.Subtotal,
			VATAmount:    line.VAT,
			NetAmount:    line.Net,
			LineTotal:    line.Total,
		}
	}

	return b.assemble(g, items, totals.Summary, SnapshotMeta{
		TakenAt:       takenAt,
		TakenBy:       takenBy,
		SchemaVersion: SnapshotSchemaVersion,
	}), nil
}

// BuildLegacy produces a payload for an invoice finalized before snapshots existed.
// Values are copied as stored, without recalculation, and the payload is marked legacy.
func (b *SnapshotBuilder) BuildLegacy(g Graph, takenAt time.Time, takenBy uuid.UUID) (Payload, error) {
	if takenAt.IsZero() {
		return Payload{}, shared.NewDomainError(shared.CodeInvalidInput, "Snapshot time is required")
	}
	if err := checkGraph(g); err != nil {
		return Payload{}, err
	}

	items := make([]ItemSection, len(g.Invoice.Items))
	for i, item := range g.Invoice.Items {
		items[i] = ItemSection{
			Position:     item.Position,
			Description:  item.Description,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			VATIncluded:  item.VATIncluded,
			VATRate:      item.VATRate,
			LineSubtotal: item.LineSubtotal,
			VATAmount:    item.VATAmount,
			NetAmount:    item.NetAmount,
			LineTotal:    item.LineTotal,
		}
	}

	return b.assemble(g, items, g.Invoice.Summary, SnapshotMeta{
		TakenAt:       takenAt,
		TakenBy:       takenBy,
		Legacy:        true,
		SchemaVersion: SnapshotSchemaVersion,
	}), nil
}

func (b *SnapshotBuilder) assemble(g Graph, items []ItemSection, summary Summary, meta SnapshotMeta) Payload {
	inv := g.Invoice
	cfg := inv.Config

	p := Payload{
		Invoice: InvoiceSection{
			ID:            inv.ID,
			Number:        inv.FullNumber(),
			Prefix:        inv.PrefixUsed(),
			Serial:        inv.SerialNumber(),
			NumberingMode: inv.NumberingMode(),
			Status:        inv.Status(),
			StatusLabel:   b.formatter.StatusLabel(inv.Status()),
			IssueDate:     formatDate(inv.IssueDate),
			DueDate:       formatDate(inv.DueDate),
			Currency:      inv.Currency,
			Notes:         inv.Notes,
		},
		Company: PartySection{
			ID:      g.Company.ID,
			Name:    g.Company.Name,
			KRAPIN:  g.Company.KRAPIN,
			Address: g.Company.Address,
			Email:   g.Company.Email,
			Phone:   g.Company.Phone,
			LogoURL: g.Company.Branding.LogoURL,
		},
		Configuration: ConfigurationSection{
			VATEnabled:         cfg.VATEnabled,
			VATRegistered:      cfg.VATRegistered,
			VATRate:            cfg.VATRate,
			PlatformFeeEnabled: cfg.PlatformFeeEnabled,
			PlatformFeeRate:    cfg.PlatformFeeRate,
			Discount:           cfg.Discount,
			DiscountType:       cfg.DiscountType,
		},
		Items:    items,
		Fees:     make([]FeeSection, 0, len(g.Fees)),
		Totals:   b.totalsSection(summary, inv.Currency),
		Branding: g.Company.Branding,
		Meta:     meta,
	}

	if g.Client != nil {
		p.Client = &PartySection{
			ID:      g.Client.ID,
			Name:    g.Client.Name,
			KRAPIN:  g.Client.KRAPIN,
			Address: g.Client.Address,
			Email:   g.Client.Email,
			Phone:   g.Client.Phone,
		}
	}
	if g.Template != nil {
		p.Template = &TemplateSection{
			ID:        g.Template.ID,
			Name:      g.Template.Name,
			Slug:      g.Template.Slug,
			Layout:    g.Template.Layout,
			ShowVAT:   g.Template.ShowVAT,
			ShowNotes: g.Template.ShowNotes,
		}
	}
	for _, fee := range g.Fees {
		p.Fees = append(p.Fees, FeeSection{Rate: fee.Rate, Amount: fee.Amount, Status: fee.Status})
	}
	return p
}

func (b *SnapshotBuilder) totalsSection(s Summary, currency string) TotalsSection {
	ptr := func(d decimal.Decimal) *decimal.Decimal { return &d }
	return TotalsSection{
		Subtotal:              ptr(s.Subtotal),
		DiscountAmount:        ptr(s.DiscountAmount),
		SubtotalAfterDiscount: ptr(s.SubtotalAfterDiscount),
		VATAmount:             ptr(s.VATAmount),
		Total:                 ptr(s.Total),
		PlatformFee:           ptr(s.PlatformFee),
		GrandTotal:            ptr(s.GrandTotal),
		Display: map[string]string{
			"subtotal":     b.formatter.Amount(s.Subtotal, currency),
			"discount":     b.formatter.Amount(s.DiscountAmount, currency),
			"vat":          b.formatter.Amount(s.VATAmount, currency),
			"total":        b.formatter.Amount(s.Total, currency),
			"platform_fee": b.formatter.Amount(s.PlatformFee, currency),
			"grand_total":  b.formatter.Amount(s.GrandTotal, currency),
		},
	}
}

// checkGraph fails with IncompleteGraph when a required relation was not loaded
func checkGraph(g Graph) error {
	var missing []string
	if g.Invoice == nil {
		return shared.NewDomainError(shared.CodeIncompleteGraph, "Invoice is not loaded")
	}
	if g.Company == nil {
		missing = append(missing, "company")
	} else if g.Company.ID != g.Invoice.CompanyID {
		missing = append(missing, "company (mismatched)")
	}
	if g.Invoice.ClientID != nil {
		if g.Client == nil {
			missing = append(missing, "client")
		} else if g.Client.ID != *g.Invoice.ClientID {
			missing = append(missing, "client (mismatched)")
		}
	}
	if g.Invoice.TemplateID != nil {
		if g.Template == nil {
			missing = append(missing, "template")
		} else if g.Template.ID != *g.Invoice.TemplateID {
			missing = append(missing, "template (mismatched)")
		}
	}
	if g.Invoice.Items == nil {
		missing = append(missing, "items")
	}
	if g.Fees == nil {
		missing = append(missing, "fees")
	}
	if len(missing) > 0 {
		return shared.NewDomainError(shared.CodeIncompleteGraph,
			fmt.Sprintf("Invoice %s is missing relations: %s", g.Invoice.FullNumber(), strings.Join(missing, ", ")))
	}
	if len(g.Invoice.Items) == 0 {
		return shared.NewDomainError(shared.CodeInvalidInput,
			fmt.Sprintf("Invoice %s has no line items", g.Invoice.FullNumber()))
	}
	return nil
}

func summaryEqual(a, b Summary) bool {
	return a.Subtotal.Equal(b.Subtotal) &&
		a.DiscountAmount.Equal(b.DiscountAmount) &&
		a.SubtotalAfterDiscount.Equal(b.SubtotalAfterDiscount) &&
		a.VATAmount.Equal(b.VATAmount) &&
		a.Total.Equal(b.Total) &&
		a.PlatformFee.Equal(b.PlatformFee) &&
		a.GrandTotal.Equal(b.GrandTotal)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}
