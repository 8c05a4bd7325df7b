package persistence

import (
	"strings"

	"gorm.io/gorm/clause"
)

const defaultInvoiceOrder = "created_at"

// invoiceOrderColumns are the invoice columns a listing may sort by
var invoiceOrderColumns = map[string]struct{}{
	"created_at":    {},
	"updated_at":    {},
	"issue_date":    {},
	"due_date":      {},
	"full_number":   {},
	"serial_number": {},
	"status":        {},
	"grand_total":   {},
}

// invoiceOrder builds the ORDER BY of an invoice listing. Unknown columns fall
// back to created_at, any direction but asc sorts descending, and id breaks ties.
func invoiceOrder(orderBy, orderDir string) clause.OrderBy {
	column := strings.TrimSpace(orderBy)
	if _, ok := invoiceOrderColumns[column]; !ok {
		column = defaultInvoiceOrder
	}
	desc := !strings.EqualFold(strings.TrimSpace(orderDir), "asc")

	return clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: column}, Desc: desc},
		{Column: clause.Column{Name: "id"}, Desc: desc},
	}}
}
