package tenantdb

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolSettings is the pool-sizing policy applied to every per-tenant
// connection pool.
type PoolSettings struct {
	// ConnString is the PostgreSQL connection string for the shared
	// cluster; the tenant schema is bound via the search_path runtime
	// parameter, not the connection string.
	ConnString string

	// MaxConns is the maximum number of physical connections per tenant
	// handle. Default: 20
	MaxConns int32

	// MinConns is the minimum number of idle connections kept per tenant.
	// Default: 0 - idle tenants hold no connections.
	MinConns int32

	// AcquireTimeout is the maximum time in seconds to establish a
	// connection. Default: 30
	AcquireTimeout int32

	// IdleTimeout is the maximum idle time in seconds before a connection
	// is released. Default: 10
	IdleTimeout int32
}

// ApplyDefaults applies default values to unset fields. MinConns
// intentionally defaults to zero.
func (s *PoolSettings) ApplyDefaults() {
	if s.MaxConns == 0 {
		s.MaxConns = 20
	}
	if s.AcquireTimeout == 0 {
		s.AcquireTimeout = 30
	}
	if s.IdleTimeout == 0 {
		s.IdleTimeout = 10
	}
}

// OpenFunc opens a schema-bound handle for a tenant. Split out so the cache
// can be exercised without a live database.
type OpenFunc func(ctx context.Context, tenantID, schemaName string) (*Handle, error)

// NewPgxOpener returns an OpenFunc that opens a pgx pool scoped to the
// tenant schema via the search_path runtime parameter and verifies
// connectivity with a ping before handing the handle out.
func NewPgxOpener(settings PoolSettings) OpenFunc {
	settings.ApplyDefaults()

	return func(ctx context.Context, tenantID, schemaName string) (*Handle, error) {
		cfg, err := pgxpool.ParseConfig(settings.ConnString)
		if err != nil {
			return nil, fmt.Errorf("failed to parse connection string: %w", err)
		}

		cfg.ConnConfig.RuntimeParams["search_path"] = schemaName
		cfg.MaxConns = settings.MaxConns
		cfg.MinConns = settings.MinConns
		cfg.MaxConnIdleTime = time.Duration(settings.IdleTimeout) * time.Second
		cfg.ConnConfig.ConnectTimeout = time.Duration(settings.AcquireTimeout) * time.Second

		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create tenant pool: %w", err)
		}

		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to ping tenant database: %w", err)
		}

		return NewHandle(tenantID, schemaName, pool), nil
	}
}
