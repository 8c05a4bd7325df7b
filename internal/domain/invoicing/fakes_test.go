package invoicing

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/shared"
)

type memoryPrefixRepo struct {
	mu   sync.Mutex
	rows []InvoicePrefix
}

func (r *memoryPrefixRepo) FindActive(_ context.Context, tenantID, companyID uuid.UUID) (*InvoicePrefix, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var active *InvoicePrefix
	for i := range r.rows {
		p := r.rows[i]
		if p.TenantID != tenantID || p.CompanyID != companyID || p.EndedAt != nil {
			continue
		}
		if active == nil || p.StartedAt.After(active.StartedAt) {
			cp := p
			active = &cp
		}
	}
	if active == nil {
		return nil, shared.ErrNotFound
	}
	return active, nil
}

func (r *memoryPrefixRepo) ListByCompany(_ context.Context, tenantID, companyID uuid.UUID) ([]InvoicePrefix, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []InvoicePrefix
	for _, p := range r.rows {
		if p.TenantID == tenantID && p.CompanyID == companyID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

func (r *memoryPrefixRepo) Create(_ context.Context, prefix *InvoicePrefix) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, *prefix)
	return nil
}

func (r *memoryPrefixRepo) End(_ context.Context, prefix *InvoicePrefix) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].ID == prefix.ID {
			r.rows[i].EndedAt = prefix.EndedAt
			return nil
		}
	}
	return shared.ErrNotFound
}

type memorySequenceRepo struct {
	mu       sync.Mutex
	counters map[uuid.UUID]int64
}

func newMemorySequenceRepo() *memorySequenceRepo {
	return &memorySequenceRepo{counters: make(map[uuid.UUID]int64)}
}

func (r *memorySequenceRepo) next(id uuid.UUID) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	current := r.counters[id]
	if current == 0 {
		current = 1
	}
	r.counters[id] = current + 1
	return current
}

func (r *memorySequenceRepo) NextCompanySerial(_ context.Context, _, companyID uuid.UUID) (int64, error) {
	return r.next(companyID), nil
}

func (r *memorySequenceRepo) NextClientSerial(_ context.Context, _, clientID uuid.UUID) (int64, error) {
	return r.next(clientID), nil
}
