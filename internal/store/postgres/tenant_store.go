package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/legalcrm/legalcrm/internal/models"
	"github.com/legalcrm/legalcrm/internal/store"
	"github.com/rs/zerolog/log"
)

const tenantColumns = `
	id, name, subdomain, custom_domain, status, plan, encryption_key,
	settings, contact_info, integrations, metadata, created_at, updated_at
`

// TenantStore implements store.TenantStore using PostgreSQL. All rows live
// in the shared public schema.
type TenantStore struct {
	pool *pgxpool.Pool
}

// NewTenantStore creates a new PostgreSQL-backed tenant store.
// It shares the public-schema connection pool with the provisioner.
func NewTenantStore(pool *pgxpool.Pool) *TenantStore {
	return &TenantStore{
		pool: pool,
	}
}

// Create inserts a new tenant record.
func (s *TenantStore) Create(ctx context.Context, tenant *models.TenantRecord) error {
	query := `
		INSERT INTO tenants (
			id, name, subdomain, custom_domain, status, plan, encryption_key,
			settings, contact_info, integrations, metadata, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
	`

	_, err := s.pool.Exec(ctx, query,
		tenant.ID,
		tenant.Name,
		tenant.Subdomain,
		nullableText(tenant.CustomDomain),
		string(tenant.Status),
		string(tenant.Plan),
		tenant.EncryptionKey,
		emptyJSON(tenant.Settings),
		emptyJSON(tenant.ContactInfo),
		emptyJSON(tenant.Integrations),
		emptyJSON(tenant.Metadata),
		tenant.CreatedAt,
		tenant.UpdatedAt,
	)

	if err != nil {
		return mapPostgresError(err)
	}

	log.Debug().
		Str("tenant_id", tenant.ID.String()).
		Str("subdomain", tenant.Subdomain).
		Msg("Created tenant record")

	return nil
}

// Find retrieves a tenant by ID.
func (s *TenantStore) Find(ctx context.Context, id uuid.UUID) (*models.TenantRecord, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	return s.queryOne(ctx, query, id)
}

// FindBySubdomain retrieves a tenant by its subdomain.
func (s *TenantStore) FindBySubdomain(ctx context.Context, subdomain string) (*models.TenantRecord, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE subdomain = $1`
	return s.queryOne(ctx, query, subdomain)
}

// FindByCustomDomain retrieves a tenant by its custom domain.
func (s *TenantStore) FindByCustomDomain(ctx context.Context, domain string) (*models.TenantRecord, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE custom_domain = $1`
	return s.queryOne(ctx, query, domain)
}

// Update persists mutable fields of an existing tenant record.
func (s *TenantStore) Update(ctx context.Context, tenant *models.TenantRecord) error {
	tenant.UpdatedAt = time.Now()

	query := `
		UPDATE tenants SET
			name = $2,
			custom_domain = $3,
			status = $4,
			plan = $5,
			settings = $6,
			contact_info = $7,
			integrations = $8,
			metadata = $9,
			updated_at = $10
		WHERE id = $1
	`

	result, err := s.pool.Exec(ctx, query,
		tenant.ID,
		tenant.Name,
		nullableText(tenant.CustomDomain),
		string(tenant.Status),
		string(tenant.Plan),
		emptyJSON(tenant.Settings),
		emptyJSON(tenant.ContactInfo),
		emptyJSON(tenant.Integrations),
		emptyJSON(tenant.Metadata),
		tenant.UpdatedAt,
	)

	if err != nil {
		return mapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrTenantNotFound
	}

	log.Debug().
		Str("tenant_id", tenant.ID.String()).
		Msg("Updated tenant record")

	return nil
}

// UpdateStatus transitions a tenant to the given status.
func (s *TenantStore) UpdateStatus(ctx context.Context, id uuid.UUID, status models.TenantStatus) (*models.TenantRecord, error) {
	query := `
		UPDATE tenants SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING ` + tenantColumns

	tenant, err := scanTenant(s.pool.QueryRow(ctx, query, id, string(status)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrTenantNotFound
		}
		return nil, mapPostgresError(err)
	}

	log.Info().
		Str("tenant_id", id.String()).
		Str("status", string(status)).
		Msg("Updated tenant status")

	return tenant, nil
}

// Delete removes a tenant record. Schema teardown is the caller's job.
func (s *TenantStore) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, id)
	if err != nil {
		return mapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrTenantNotFound
	}

	log.Info().
		Str("tenant_id", id.String()).
		Msg("Deleted tenant record")

	return nil
}

// List returns a page of tenant records ordered by creation time, newest
// first, along with the total tenant count.
func (s *TenantStore) List(ctx context.Context, limit, offset int) ([]*models.TenantRecord, int64, error) {
	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM tenants`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tenants: %w", err)
	}

	query := `
		SELECT ` + tenantColumns + `
		FROM tenants
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := s.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*models.TenantRecord
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, tenant)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating tenants: %w", err)
	}

	return tenants, total, nil
}

func (s *TenantStore) queryOne(ctx context.Context, query string, arg any) (*models.TenantRecord, error) {
	tenant, err := scanTenant(s.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrTenantNotFound
		}
		return nil, mapPostgresError(err)
	}
	return tenant, nil
}

func scanTenant(row pgx.Row) (*models.TenantRecord, error) {
	var (
		tenant       models.TenantRecord
		customDomain *string
		status       string
		plan         string
	)

	err := row.Scan(
		&tenant.ID,
		&tenant.Name,
		&tenant.Subdomain,
		&customDomain,
		&status,
		&plan,
		&tenant.EncryptionKey,
		&tenant.Settings,
		&tenant.ContactInfo,
		&tenant.Integrations,
		&tenant.Metadata,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if customDomain != nil {
		tenant.CustomDomain = *customDomain
	}
	tenant.Status = models.TenantStatus(status)
	tenant.Plan = models.TenantPlan(plan)

	return &tenant, nil
}

// nullableText maps the empty string to SQL NULL so the partial unique
// index on custom_domain never sees duplicate empty values.
func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func emptyJSON(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
