package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	invoicingapp "github.com/invoicing/backend/internal/application/invoicing"
)

// NumberingHandler serves number allocation and company prefixes
type NumberingHandler struct {
	invoices *invoicingapp.InvoiceService
}

func NewNumberingHandler(invoices *invoicingapp.InvoiceService) *NumberingHandler {
	return &NumberingHandler{invoices: invoices}
}

// Allocate draws the next invoice number. The serial stays consumed even if
// no invoice ever carries the number.
//
//	POST /api/v1/numbering/allocate
func (h *NumberingHandler) Allocate(c *gin.Context) {
	r, ok := begin(c)
	if !ok {
		return
	}
	var req invoicingapp.AllocateNumberRequest
	if !r.bindJSON(&req) {
		return
	}
	number, err := h.invoices.AllocateNumber(r.ctx(), r.tenant(), req)
	r.reply(http.StatusCreated, number, err)
}

// GetPrefix returns the company's active prefix, creating the default on first use
//
//	GET /api/v1/companies/:id/prefix
func (h *NumberingHandler) GetPrefix(c *gin.Context) {
	r, ok := begin(c)
	if !ok {
		return
	}
	companyID, ok := r.id("company")
	if !ok {
		return
	}
	prefix, err := h.invoices.ActivePrefix(r.ctx(), r.tenant(), companyID)
	r.reply(http.StatusOK, prefix, err)
}

// ChangePrefix switches the company's active prefix. Numbered invoices keep
// the prefix they were issued under.
//
//	PUT /api/v1/companies/:id/prefix
func (h *NumberingHandler) ChangePrefix(c *gin.Context) {
	r, ok := begin(c)
	if !ok {
		return
	}
	companyID, ok := r.id("company")
	if !ok {
		return
	}
	var req invoicingapp.ChangePrefixRequest
	if !r.bindJSON(&req) {
		return
	}
	prefix, err := h.invoices.ChangePrefix(r.ctx(), r.tenant(), companyID, req)
	r.reply(http.StatusOK, prefix, err)
}
