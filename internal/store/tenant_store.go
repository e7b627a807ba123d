package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/legalcrm/legalcrm/internal/models"
)

// Sentinel errors for tenant store operations
var (
	ErrTenantNotFound        = errors.New("tenant not found")
	ErrDuplicateSubdomain    = errors.New("subdomain already in use")
	ErrDuplicateCustomDomain = errors.New("custom domain already in use")
)

// TenantStore defines the data-access contract of the tenant directory.
// Records live in the shared public schema; this interface carries no
// provisioning or pooling logic.
type TenantStore interface {
	// Create inserts a new tenant record.
	// Returns ErrDuplicateSubdomain or ErrDuplicateCustomDomain when the
	// corresponding unique constraint is violated.
	Create(ctx context.Context, tenant *models.TenantRecord) error

	// Find retrieves a tenant by ID.
	// Returns ErrTenantNotFound if no such tenant exists.
	Find(ctx context.Context, id uuid.UUID) (*models.TenantRecord, error)

	// FindBySubdomain retrieves a tenant by its subdomain.
	// Returns ErrTenantNotFound if no such tenant exists.
	FindBySubdomain(ctx context.Context, subdomain string) (*models.TenantRecord, error)

	// FindByCustomDomain retrieves a tenant by its custom domain.
	// Returns ErrTenantNotFound if no such tenant exists.
	FindByCustomDomain(ctx context.Context, domain string) (*models.TenantRecord, error)

	// Update persists mutable fields of an existing tenant record.
	// Returns ErrTenantNotFound if the tenant doesn't exist.
	Update(ctx context.Context, tenant *models.TenantRecord) error

	// UpdateStatus transitions a tenant to the given status and returns the
	// updated record. Returns ErrTenantNotFound if the tenant doesn't exist.
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.TenantStatus) (*models.TenantRecord, error)

	// Delete removes a tenant record. Callers are responsible for tearing
	// down the tenant's schema first.
	// Returns ErrTenantNotFound if the tenant doesn't exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// List returns a page of tenant records ordered by creation time,
	// along with the total number of tenants.
	List(ctx context.Context, limit, offset int) ([]*models.TenantRecord, int64, error)
}
