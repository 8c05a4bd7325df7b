package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/invoicing/backend/internal/interfaces/http/router"
)

// InvoiceResources lists the invoice, numbering and company endpoints.
// Every route runs behind actor.
func InvoiceResources(invoices *InvoiceHandler, numbering *NumberingHandler, actor gin.HandlerFunc) []router.Resource {
	return []router.Resource{
		{
			Prefix:     "/invoices",
			Middleware: []gin.HandlerFunc{actor},
			Routes: []router.Route{
				router.POST("/calculate", invoices.Calculate),
				router.POST("", invoices.Create),
				router.GET("", invoices.List),
				router.GET("/:id", invoices.Get),
				router.PUT("/:id/items", invoices.UpdateItems),
				router.POST("/:id/finalize", invoices.Finalize),
				router.POST("/:id/transition", invoices.Transition),
				router.GET("/:id/snapshot", invoices.GetSnapshot),
			},
		},
		{
			Prefix:     "/numbering",
			Middleware: []gin.HandlerFunc{actor},
			Routes:     []router.Route{router.POST("/allocate", numbering.Allocate)},
		},
		{
			Prefix:     "/companies",
			Middleware: []gin.HandlerFunc{actor},
			Routes: []router.Route{
				router.GET("/:id/prefix", numbering.GetPrefix),
				router.PUT("/:id/prefix", numbering.ChangePrefix),
			},
		},
	}
}

// SystemResource exposes build and runtime information
func SystemResource(h *SystemHandler, actor gin.HandlerFunc) router.Resource {
	return router.Resource{
		Prefix:     "/system",
		Middleware: []gin.HandlerFunc{actor},
		Routes:     []router.Route{router.GET("/info", h.GetSystemInfo)},
	}
}
