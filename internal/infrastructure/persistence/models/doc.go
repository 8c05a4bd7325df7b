// Package models contains the GORM persistence models for the invoicing schema.
// Domain types carry no ORM tags; each model converts to and from its domain
// type with ToDomain and a ...FromDomain constructor.
//
// Files:
// - base.go: shared identity, tenant and version columns
// - party.go: companies, clients, invoice templates, platform fees
// - invoice.go: invoices and invoice items
// - prefix.go: the append-only invoice prefix history
// - snapshot.go: insert-only invoice snapshots
// - outbox.go: transactional outbox rows
package models
