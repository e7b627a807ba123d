package tenantdb

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Handle is the live, schema-bound database resource for one tenant. A
// handle is created on a tenant's first request, shared by all subsequent
// requests, and destroyed exactly once at shutdown or eviction. The
// connection cache is its sole owner.
type Handle struct {
	TenantID   string
	SchemaName string

	// Pool is the physical connection pool with search_path bound to the
	// tenant's schema.
	Pool *pgxpool.Pool

	// Records holds the business-record table bindings, applied once at
	// construction.
	Records RecordSets

	closeFn func() error
}

// NewHandle wraps a schema-bound pool and binds the record sets.
func NewHandle(tenantID, schemaName string, pool *pgxpool.Pool) *Handle {
	h := &Handle{
		TenantID:   tenantID,
		SchemaName: schemaName,
		Pool:       pool,
	}
	h.Records = bindRecordSets(pool)
	return h
}

// Close releases the underlying pool. Safe to call on a handle whose pool
// was never opened.
func (h *Handle) Close() error {
	if h.closeFn != nil {
		return h.closeFn()
	}
	if h.Pool != nil {
		h.Pool.Close()
	}
	return nil
}

// RecordSets is the fixed table of business-record bindings for a tenant
// schema. The set is checked at compile time - adding a table means adding
// a field here and a binding in bindRecordSets, not re-deriving mappings at
// runtime.
type RecordSets struct {
	Clients       RecordSet
	Cases         RecordSet
	Documents     RecordSet
	Invoices      RecordSet
	TimeEntries   RecordSet
	ResearchNotes RecordSet
}

// RecordSet is one business-record table reachable through a tenant handle.
// Queries use unqualified table names and resolve through the handle's
// search_path.
type RecordSet struct {
	Table string

	pool *pgxpool.Pool
}

// Count returns the number of rows in the record set.
func (r RecordSet) Count(ctx context.Context) (int64, error) {
	var n int64
	query := "SELECT count(*) FROM " + pgx.Identifier{r.Table}.Sanitize()
	if err := r.pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", r.Table, err)
	}
	return n, nil
}

func bindRecordSets(pool *pgxpool.Pool) RecordSets {
	return RecordSets{
		Clients:       RecordSet{Table: "clients", pool: pool},
		Cases:         RecordSet{Table: "cases", pool: pool},
		Documents:     RecordSet{Table: "documents", pool: pool},
		Invoices:      RecordSet{Table: "invoices", pool: pool},
		TimeEntries:   RecordSet{Table: "time_entries", pool: pool},
		ResearchNotes: RecordSet{Table: "research_notes", pool: pool},
	}
}
