package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/legalcrm/legalcrm/internal/models"
	"github.com/legalcrm/legalcrm/internal/store"
)

// TenantStore implements store.TenantStore using in-memory storage.
// This implementation is for testing only - data is lost on restart.
type TenantStore struct {
	mu sync.RWMutex

	tenants map[uuid.UUID]*models.TenantRecord // tenant id -> record
}

// NewTenantStore creates a new in-memory tenant store.
func NewTenantStore() *TenantStore {
	return &TenantStore{
		tenants: make(map[uuid.UUID]*models.TenantRecord),
	}
}

// Create inserts a new tenant record, enforcing the same uniqueness rules as
// the PostgreSQL store.
func (s *TenantStore) Create(ctx context.Context, tenant *models.TenantRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.tenants {
		if existing.Subdomain == tenant.Subdomain {
			return store.ErrDuplicateSubdomain
		}
		if tenant.CustomDomain != "" && existing.CustomDomain == tenant.CustomDomain {
			return store.ErrDuplicateCustomDomain
		}
	}

	// Clone to avoid external modifications
	clone := *tenant
	s.tenants[tenant.ID] = &clone

	return nil
}

// Find retrieves a tenant by ID.
func (s *TenantStore) Find(ctx context.Context, id uuid.UUID) (*models.TenantRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tenant, exists := s.tenants[id]
	if !exists {
		return nil, store.ErrTenantNotFound
	}

	clone := *tenant
	return &clone, nil
}

// FindBySubdomain retrieves a tenant by its subdomain.
func (s *TenantStore) FindBySubdomain(ctx context.Context, subdomain string) (*models.TenantRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, tenant := range s.tenants {
		if tenant.Subdomain == subdomain {
			clone := *tenant
			return &clone, nil
		}
	}

	return nil, store.ErrTenantNotFound
}

// FindByCustomDomain retrieves a tenant by its custom domain.
func (s *TenantStore) FindByCustomDomain(ctx context.Context, domain string) (*models.TenantRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, tenant := range s.tenants {
		if tenant.CustomDomain != "" && tenant.CustomDomain == domain {
			clone := *tenant
			return &clone, nil
		}
	}

	return nil, store.ErrTenantNotFound
}

// Update persists mutable fields of an existing tenant record.
func (s *TenantStore) Update(ctx context.Context, tenant *models.TenantRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tenants[tenant.ID]; !exists {
		return store.ErrTenantNotFound
	}

	for id, existing := range s.tenants {
		if id == tenant.ID {
			continue
		}
		if tenant.CustomDomain != "" && existing.CustomDomain == tenant.CustomDomain {
			return store.ErrDuplicateCustomDomain
		}
	}

	tenant.UpdatedAt = time.Now()

	clone := *tenant
	s.tenants[tenant.ID] = &clone

	return nil
}

// UpdateStatus transitions a tenant to the given status.
func (s *TenantStore) UpdateStatus(ctx context.Context, id uuid.UUID, status models.TenantStatus) (*models.TenantRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tenant, exists := s.tenants[id]
	if !exists {
		return nil, store.ErrTenantNotFound
	}

	tenant.Status = status
	tenant.UpdatedAt = time.Now()

	clone := *tenant
	return &clone, nil
}

// Delete removes a tenant record.
func (s *TenantStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tenants[id]; !exists {
		return store.ErrTenantNotFound
	}

	delete(s.tenants, id)

	return nil
}

// List returns a page of tenant records ordered by creation time, newest
// first, along with the total tenant count.
func (s *TenantStore) List(ctx context.Context, limit, offset int) ([]*models.TenantRecord, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*models.TenantRecord, 0, len(s.tenants))
	for _, tenant := range s.tenants {
		clone := *tenant
		all = append(all, &clone)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := int64(len(all))

	if offset >= len(all) {
		return nil, total, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}

	return all, total, nil
}
