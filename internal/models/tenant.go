package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// TenantStatus is the lifecycle state of a tenant. Only active and trial
// tenants may obtain a database connection handle.
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusInactive  TenantStatus = "inactive"
	TenantStatusSuspended TenantStatus = "suspended"
	TenantStatusTrial     TenantStatus = "trial"
)

// IsValid reports whether s is one of the known tenant statuses.
func (s TenantStatus) IsValid() bool {
	return slices.Contains([]TenantStatus{
		TenantStatusActive,
		TenantStatusInactive,
		TenantStatusSuspended,
		TenantStatusTrial,
	}, s)
}

// CanConnect reports whether a tenant in this status may be handed a
// schema-bound connection.
func (s TenantStatus) CanConnect() bool {
	return s == TenantStatusActive || s == TenantStatusTrial
}

// TenantPlan is the subscription plan of a tenant. Plans drive default
// resource limits but play no part in connection routing.
type TenantPlan string

const (
	TenantPlanBasic        TenantPlan = "basic"
	TenantPlanProfessional TenantPlan = "professional"
	TenantPlanEnterprise   TenantPlan = "enterprise"
)

// IsValid reports whether p is one of the known plans.
func (p TenantPlan) IsValid() bool {
	return slices.Contains([]TenantPlan{
		TenantPlanBasic,
		TenantPlanProfessional,
		TenantPlanEnterprise,
	}, p)
}

// PlanLimits holds the default resource caps for a plan.
type PlanLimits struct {
	MaxUsers     int
	MaxStorageMB int
	MaxCases     int
	MaxDocuments int
}

// Limits returns the default resource limits for the plan. Unknown plans
// get the basic limits.
func (p TenantPlan) Limits() PlanLimits {
	switch p {
	case TenantPlanProfessional:
		return PlanLimits{MaxUsers: 25, MaxStorageMB: 51200, MaxCases: 5000, MaxDocuments: 50000}
	case TenantPlanEnterprise:
		return PlanLimits{MaxUsers: 250, MaxStorageMB: 512000, MaxCases: 100000, MaxDocuments: 1000000}
	default:
		return PlanLimits{MaxUsers: 5, MaxStorageMB: 5120, MaxCases: 500, MaxDocuments: 5000}
	}
}

// TenantRecord is the durable registry entry for one tenant. Records live in
// the shared public schema; each tenant's business data lives in its own
// schema derived from the tenant ID.
type TenantRecord struct {
	ID           uuid.UUID // UUIDv4, immutable once assigned
	Name         string
	Subdomain    string // globally unique, [a-z0-9-]+
	CustomDomain string // optional, globally unique when set
	Status       TenantStatus
	Plan         TenantPlan

	// EncryptionKey is a tenant-scoped secret generated once at creation
	// and never regenerated. Consumed by callers outside the routing core.
	EncryptionKey string

	// Opaque structured data, stored as JSONB, not interpreted here.
	Settings     map[string]any
	ContactInfo  map[string]any
	Integrations map[string]any
	Metadata     map[string]any

	CreatedAt time.Time
	UpdatedAt time.Time
}
