package invoicing

import (
	"context"
	"fmt"

	"github.com/invoicing/backend/internal/domain/invoicing"
)

// loadGraph reads every relation the snapshot builder needs through the
// repositories of the current transaction
func loadGraph(ctx context.Context, repos invoicing.Repositories, inv *invoicing.Invoice) (invoicing.Graph, error) {
	g := invoicing.Graph{Invoice: inv}

	company, err := repos.Companies.FindByIDForTenant(ctx, inv.TenantID, inv.CompanyID)
	if err != nil {
		return g, fmt.Errorf("failed to load company: %w", err)
	}
	g.Company = company

	if inv.ClientID != nil {
		client, err := repos.Clients.FindByIDForTenant(ctx, inv.TenantID, *inv.ClientID)
		if err != nil {
			return g, fmt.Errorf("failed to load client: %w", err)
		}
		g.Client = client
	}

	if inv.TemplateID != nil {
		template, err := repos.Templates.FindByIDForTenant(ctx, inv.TenantID, *inv.TemplateID)
		if err != nil {
			return g, fmt.Errorf("failed to load template: %w", err)
		}
		g.Template = template
	}

	fees, err := repos.Fees.FindByInvoice(ctx, inv.TenantID, inv.ID)
	if err != nil {
		return g, err
	}
	g.Fees = fees
	return g, nil
}
