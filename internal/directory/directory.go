package directory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/legalcrm/legalcrm/internal/models"
	"github.com/legalcrm/legalcrm/internal/store"
	"github.com/rs/zerolog/log"
)

// ErrInvalidInput marks administrative requests rejected by validation.
var ErrInvalidInput = errors.New("invalid input")

var subdomainPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// reservedSubdomains can never be claimed by a tenant; they collide with
// operational hostnames.
var reservedSubdomains = map[string]bool{
	"www":   true,
	"api":   true,
	"admin": true,
	"app":   true,
}

// SchemaProvisioner is the provisioning surface the directory drives during
// tenant creation and deletion.
type SchemaProvisioner interface {
	Provision(ctx context.Context, tenantID string) error
	Deprovision(ctx context.Context, tenantID string) error
}

// Directory orchestrates tenant lifecycle over the tenant store and the
// schema provisioner. Creation and deletion are compensating-action
// sequences: no tenant record without a schema, no schema without a record.
type Directory struct {
	store       store.TenantStore
	provisioner SchemaProvisioner
}

// New creates a tenant directory.
func New(st store.TenantStore, provisioner SchemaProvisioner) *Directory {
	return &Directory{
		store:       st,
		provisioner: provisioner,
	}
}

// CreateTenantInput is the administrative specification for a new tenant.
type CreateTenantInput struct {
	Name         string
	Subdomain    string
	CustomDomain string
	Plan         models.TenantPlan
	ContactInfo  map[string]any
	Settings     map[string]any
}

// Create validates the input, synthesizes the tenant's encryption key,
// inserts the record, and provisions the tenant schema. If provisioning
// fails the record insert is rolled back - creation is all-or-nothing.
func (d *Directory) Create(ctx context.Context, in CreateTenantInput) (*models.TenantRecord, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("%w: tenant name is required", ErrInvalidInput)
	}
	if !subdomainPattern.MatchString(in.Subdomain) {
		return nil, fmt.Errorf("%w: subdomain %q must match [a-z0-9-]+", ErrInvalidInput, in.Subdomain)
	}
	if reservedSubdomains[in.Subdomain] {
		return nil, fmt.Errorf("%w: subdomain %q is reserved", ErrInvalidInput, in.Subdomain)
	}
	plan := in.Plan
	if plan == "" {
		plan = models.TenantPlanBasic
	}
	if !plan.IsValid() {
		return nil, fmt.Errorf("%w: unknown plan %q", ErrInvalidInput, plan)
	}

	key, err := newEncryptionKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate encryption key: %w", err)
	}

	now := time.Now()
	tenant := &models.TenantRecord{
		ID:            uuid.New(),
		Name:          in.Name,
		Subdomain:     in.Subdomain,
		CustomDomain:  in.CustomDomain,
		Status:        models.TenantStatusTrial,
		Plan:          plan,
		EncryptionKey: key,
		Settings:      in.Settings,
		ContactInfo:   in.ContactInfo,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := d.store.Create(ctx, tenant); err != nil {
		return nil, err
	}

	if err := d.provisioner.Provision(ctx, tenant.ID.String()); err != nil {
		// Compensate the insert so no tenant exists without a schema.
		if derr := d.store.Delete(ctx, tenant.ID); derr != nil {
			log.Error().Err(derr).
				Str("tenant_id", tenant.ID.String()).
				Msg("Failed to roll back tenant record after provisioning failure")
		}
		return nil, fmt.Errorf("failed to provision tenant schema: %w", err)
	}

	log.Info().
		Str("tenant_id", tenant.ID.String()).
		Str("subdomain", tenant.Subdomain).
		Str("plan", string(tenant.Plan)).
		Msg("Created tenant")

	return tenant, nil
}

// UpdateTenantInput is a partial update; nil fields are left unchanged.
type UpdateTenantInput struct {
	Name         *string
	CustomDomain *string
	Plan         *models.TenantPlan
	Settings     map[string]any
	ContactInfo  map[string]any
	Integrations map[string]any
	Metadata     map[string]any
}

// Update applies a patch to an existing tenant record.
func (d *Directory) Update(ctx context.Context, id uuid.UUID, in UpdateTenantInput) (*models.TenantRecord, error) {
	tenant, err := d.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		if *in.Name == "" {
			return nil, fmt.Errorf("%w: tenant name cannot be empty", ErrInvalidInput)
		}
		tenant.Name = *in.Name
	}
	if in.CustomDomain != nil {
		tenant.CustomDomain = *in.CustomDomain
	}
	if in.Plan != nil {
		if !in.Plan.IsValid() {
			return nil, fmt.Errorf("%w: unknown plan %q", ErrInvalidInput, *in.Plan)
		}
		tenant.Plan = *in.Plan
	}
	if in.Settings != nil {
		tenant.Settings = in.Settings
	}
	if in.ContactInfo != nil {
		tenant.ContactInfo = in.ContactInfo
	}
	if in.Integrations != nil {
		tenant.Integrations = in.Integrations
	}
	if in.Metadata != nil {
		tenant.Metadata = in.Metadata
	}

	if err := d.store.Update(ctx, tenant); err != nil {
		return nil, err
	}

	return tenant, nil
}

// UpdateStatus transitions a tenant to the given status.
func (d *Directory) UpdateStatus(ctx context.Context, id uuid.UUID, status models.TenantStatus) (*models.TenantRecord, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	return d.store.UpdateStatus(ctx, id, status)
}

// Get retrieves a tenant by ID.
func (d *Directory) Get(ctx context.Context, id uuid.UUID) (*models.TenantRecord, error) {
	return d.store.Find(ctx, id)
}

// List returns a page of tenants and the total count.
func (d *Directory) List(ctx context.Context, limit, offset int) ([]*models.TenantRecord, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return d.store.List(ctx, limit, offset)
}

// Delete tears down the tenant's schema and then removes the record. If
// teardown fails the record is kept, so no orphan schema loses its owner.
// With force set, a teardown failure is logged and the record is removed
// anyway - destructive, the schema may be left behind for manual cleanup.
func (d *Directory) Delete(ctx context.Context, id uuid.UUID, force bool) error {
	tenant, err := d.store.Find(ctx, id)
	if err != nil {
		return err
	}

	if err := d.provisioner.Deprovision(ctx, tenant.ID.String()); err != nil {
		if !force {
			return fmt.Errorf("failed to drop tenant schema, record kept: %w", err)
		}
		log.Error().Err(err).
			Str("tenant_id", tenant.ID.String()).
			Msg("Schema teardown failed, force-deleting record anyway")
	}

	if err := d.store.Delete(ctx, id); err != nil {
		return err
	}

	log.Info().
		Str("tenant_id", id.String()).
		Str("subdomain", tenant.Subdomain).
		Msg("Deleted tenant")

	return nil
}

// newEncryptionKey generates the tenant-scoped secret: 32 random bytes,
// hex-encoded. Generated once at creation and never regenerated.
func newEncryptionKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
