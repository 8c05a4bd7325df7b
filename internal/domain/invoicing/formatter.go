package invoicing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// DefaultSerialWidth is the zero-padded width of serial numbers (INV-0001)
const DefaultSerialWidth = 4

// FormatterConfig configures a Formatter
type FormatterConfig struct {
	SerialWidth  int
	Separator    string
	Locale       string
	StatusLabels map[InvoiceStatus]string
}

// Formatter renders invoice identifiers, status labels and display amounts.
// It is a plain value handed to the components that need it.
type Formatter struct {
	serialWidth  int
	separator    string
	locale       language.Tag
	statusLabels map[InvoiceStatus]string
}

var defaultStatusLabels = map[InvoiceStatus]string{
	InvoiceStatusDraft:     "Draft",
	InvoiceStatusFinalized: "Finalized",
	InvoiceStatusSent:      "Sent",
	InvoiceStatusPaid:      "Paid",
	InvoiceStatusOverdue:   "Overdue",
	InvoiceStatusCancelled: "Cancelled",
}

// NewFormatter creates a Formatter, filling unset fields with defaults
func NewFormatter(cfg FormatterConfig) Formatter {
	f := Formatter{
		serialWidth:  cfg.SerialWidth,
		separator:    cfg.Separator,
		locale:       language.English,
		statusLabels: make(map[InvoiceStatus]string, len(defaultStatusLabels)),
	}
	if f.serialWidth <= 0 {
		f.serialWidth = DefaultSerialWidth
	}
	if f.separator == "" {
		f.separator = "-"
	}
	if cfg.Locale != "" {
		if tag, err := language.Parse(cfg.Locale); err == nil {
			f.locale = tag
		}
	}
	for status, label := range defaultStatusLabels {
		f.statusLabels[status] = label
	}
	for status, label := range cfg.StatusLabels {
		f.statusLabels[status] = label
	}
	return f
}

// DefaultFormatter returns a Formatter with default settings
func DefaultFormatter() Formatter {
	return NewFormatter(FormatterConfig{})
}

// Prefix expands date tokens ({YYYY}, {YY}, {MM}) against at and appends the
// separator unless the prefix already ends with punctuation
func (f Formatter) Prefix(raw string, at time.Time) string {
	if raw == "" {
		return ""
	}
	expanded := strings.NewReplacer(
		"{YYYY}", at.Format("2006"),
		"{YY}", at.Format("06"),
		"{MM}", at.Format("01"),
	).Replace(raw)
	if strings.HasSuffix(expanded, "-") || strings.HasSuffix(expanded, "/") ||
		strings.HasSuffix(expanded, "_") || strings.HasSuffix(expanded, ".") {
		return expanded
	}
	return expanded + f.separator
}

// Serial zero-pads a serial number to the configured width
func (f Formatter) Serial(serial int64) string {
	return fmt.Sprintf("%0*d", f.serialWidth, serial)
}

// ClientScope renders the client segment used by client-scoped numbering
func (f Formatter) ClientScope(code string) string {
	return code + f.separator
}

// StatusLabel returns the human-readable label for a status
func (f Formatter) StatusLabel(status InvoiceStatus) string {
	if label, ok := f.statusLabels[status]; ok {
		return label
	}
	return string(status)
}

// Amount renders a monetary value with thousands grouping, e.g. "KES 1,234.50"
func (f Formatter) Amount(amount decimal.Decimal, currency string) string {
	p := message.NewPrinter(f.locale)
	formatted := p.Sprint(number.Decimal(amount.Round(MoneyPlaces).InexactFloat64(), number.Scale(int(MoneyPlaces))))
	if currency == "" {
		return formatted
	}
	return currency + " " + formatted
}
