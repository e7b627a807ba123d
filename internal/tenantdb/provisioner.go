package tenantdb

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/legalcrm/legalcrm/internal/telemetry"
	"github.com/rs/zerolog/log"
)

//go:embed tenant_tables.sql
var tenantTablesSQL string

// Provisioner creates and drops per-tenant schemas inside the shared
// database. Provision is idempotent and safe to retry after a transient
// failure; Deprovision is destructive and irreversible.
type Provisioner struct {
	pool *pgxpool.Pool
}

// NewProvisioner creates a provisioner using the shared public-schema pool.
func NewProvisioner(pool *pgxpool.Pool) *Provisioner {
	return &Provisioner{
		pool: pool,
	}
}

// Provision ensures the tenant's schema and all business-record tables
// exist. The schema creation and the table DDL run in one transaction with
// search_path pinned to the tenant schema, so a failure partway through
// leaves nothing behind and a retry starts clean.
func (p *Provisioner) Provision(ctx context.Context, tenantID string) error {
	schemaName, err := SchemaName(tenantID)
	if err != nil {
		return err
	}
	ident := pgx.Identifier{schemaName}.Sanitize()

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin provisioning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	if _, err := tx.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+ident); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", schemaName, err)
	}

	// SET LOCAL scopes the search_path to this transaction only.
	if _, err := tx.Exec(ctx, "SET LOCAL search_path TO "+ident); err != nil {
		return fmt.Errorf("failed to set search_path to %s: %w", schemaName, err)
	}

	if _, err := tx.Exec(ctx, tenantTablesSQL); err != nil {
		return fmt.Errorf("failed to create tenant tables in %s: %w", schemaName, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit provisioning for %s: %w", schemaName, err)
	}

	telemetry.GetMetrics().ProvisionsTotal.Add(ctx, 1)

	log.Info().
		Str("tenant_id", tenantID).
		Str("schema", schemaName).
		Msg("Provisioned tenant schema")

	return nil
}

// Deprovision drops the tenant's schema and everything in it. Only invoked
// from tenant deletion.
func (p *Provisioner) Deprovision(ctx context.Context, tenantID string) error {
	schemaName, err := SchemaName(tenantID)
	if err != nil {
		return err
	}
	ident := pgx.Identifier{schemaName}.Sanitize()

	if _, err := p.pool.Exec(ctx, "DROP SCHEMA IF EXISTS "+ident+" CASCADE"); err != nil {
		return fmt.Errorf("failed to drop schema %s: %w", schemaName, err)
	}

	log.Warn().
		Str("tenant_id", tenantID).
		Str("schema", schemaName).
		Msg("Dropped tenant schema")

	return nil
}
