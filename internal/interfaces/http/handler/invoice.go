package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	invoicingapp "github.com/invoicing/backend/internal/application/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
)

// InvoiceHandler serves the invoice lifecycle endpoints
type InvoiceHandler struct {
	invoices *invoicingapp.InvoiceService
}

func NewInvoiceHandler(invoices *invoicingapp.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

// Calculate prices a set of items without persisting anything
//
//	POST /api/v1/invoices/calculate
func (h *InvoiceHandler) Calculate(c *gin.Context) {
	r, ok := begin(c)
	if !ok {
		return
	}
	var req invoicingapp.CalculateRequest
	if !r.bindJSON(&req) {
		return
	}
	result, err := h.invoices.Calculate(r.ctx(), r.tenant(), req)
	r.reply(http.StatusOK, result, err)
}

// Create opens a numbered draft
//
//	POST /api/v1/invoices
func (h *InvoiceHandler) Create(c *gin.Context) {
	r, ok := begin(c)
	if !ok {
		return
	}
	var req invoicingapp.CreateInvoiceRequest
	if !r.bindJSON(&req) {
		return
	}
	invoice, err := h.invoices.CreateDraft(r.ctx(), r.tenant(), r.actor.UserID, req)
	r.reply(http.StatusCreated, invoice, err)
}

// List pages through the tenant's invoices
//
//	GET /api/v1/invoices?status=&company_id=&client_id=&search=&page=&page_size=
func (h *InvoiceHandler) List(c *gin.Context) {
	r, ok := begin(c)
	if !ok {
		return
	}
	var filter invoicingapp.InvoiceListFilter
	if !r.bindQuery(&filter) {
		return
	}
	paging := shared.Filter{Page: filter.Page, PageSize: filter.PageSize}.Normalize()
	filter.Page, filter.PageSize = paging.Page, paging.PageSize
	invoices, total, err := h.invoices.List(r.ctx(), r.tenant(), filter)
	r.replyPage(invoices, total, filter.Page, filter.PageSize, err)
}

// Get returns an invoice with its items
//
//	GET /api/v1/invoices/:id
func (h *InvoiceHandler) Get(c *gin.Context) {
	r, ok := begin(c)
	if !ok {
		return
	}
	id, ok := r.id("invoice")
	if !ok {
		return
	}
	invoice, err := h.invoices.GetByID(r.ctx(), r.tenant(), id)
	r.reply(http.StatusOK, invoice, err)
}

// UpdateItems replaces the items and discount of a draft
//
//	PUT /api/v1/invoices/:id/items
func (h *InvoiceHandler) UpdateItems(c *gin.Context) {
	r, ok := begin(c)
	if !ok {
		return
	}
	id, ok := r.id("invoice")
	if !ok {
		return
	}
	var req invoicingapp.UpdateInvoiceItemsRequest
	if !r.bindJSON(&req) {
		return
	}
	invoice, err := h.invoices.UpdateDraftItems(r.ctx(), r.tenant(), id, req)
	r.reply(http.StatusOK, invoice, err)
}

// Finalize freezes a draft and writes its snapshot
//
//	POST /api/v1/invoices/:id/finalize
func (h *InvoiceHandler) Finalize(c *gin.Context) {
	r, ok := begin(c)
	if !ok {
		return
	}
	id, ok := r.id("invoice")
	if !ok {
		return
	}
	invoice, err := h.invoices.Finalize(r.ctx(), r.tenant(), id, r.actor.UserID)
	r.reply(http.StatusOK, invoice, err)
}

// Transition moves an invoice along the status graph
//
//	POST /api/v1/invoices/:id/transition
func (h *InvoiceHandler) Transition(c *gin.Context) {
	r, ok := begin(c)
	if !ok {
		return
	}
	id, ok := r.id("invoice")
	if !ok {
		return
	}
	var req invoicingapp.TransitionRequest
	if !r.bindJSON(&req) {
		return
	}
	invoice, err := h.invoices.Transition(r.ctx(), r.tenant(), id, r.actor.UserID, req)
	r.reply(http.StatusOK, invoice, err)
}

// GetSnapshot returns the frozen record of a finalized invoice
//
//	GET /api/v1/invoices/:id/snapshot
func (h *InvoiceHandler) GetSnapshot(c *gin.Context) {
	r, ok := begin(c)
	if !ok {
		return
	}
	id, ok := r.id("invoice")
	if !ok {
		return
	}
	snapshot, err := h.invoices.GetSnapshot(r.ctx(), r.tenant(), id)
	r.reply(http.StatusOK, snapshot, err)
}
