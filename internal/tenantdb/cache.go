package tenantdb

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/legalcrm/legalcrm/internal/telemetry"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// ErrCacheClosed is returned by Get once shutdown has begun.
var ErrCacheClosed = errors.New("connection cache is closed")

// SchemaEnsurer guarantees a tenant's schema and tables exist before a
// handle is handed out.
type SchemaEnsurer interface {
	Provision(ctx context.Context, tenantID string) error
}

// Cache is the process-wide map from tenant ID to its single live
// connection handle. Hits return the cached handle with no I/O. Misses run
// the provision-and-connect sequence under a single-flight group keyed by
// tenant ID, so N concurrent first-time callers open exactly one physical
// connection and all observe the same handle.
//
// Handles are never evicted individually; the cache grows with the tenant
// count until CloseAll tears everything down at shutdown.
type Cache struct {
	open        OpenFunc
	provisioner SchemaEnsurer

	group singleflight.Group

	mu      sync.RWMutex
	closed  bool
	handles map[string]*Handle
}

// NewCache creates an empty connection cache.
func NewCache(open OpenFunc, provisioner SchemaEnsurer) *Cache {
	return &Cache{
		open:        open,
		provisioner: provisioner,
		handles:     make(map[string]*Handle),
	}
}

// Get returns the connection handle for a tenant, opening and provisioning
// it on first use. A failed attempt leaves no cache entry behind; the next
// Get retries from scratch.
func (c *Cache) Get(ctx context.Context, tenantID string) (*Handle, error) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return nil, ErrCacheClosed
	}
	if h, ok := c.handles[tenantID]; ok {
		c.mu.RUnlock()
		telemetry.GetMetrics().CacheHitsTotal.Add(ctx, 1)
		return h, nil
	}
	c.mu.RUnlock()

	// DoChan rather than Do so a caller whose context expires can bail out
	// while the in-flight connect completes for the others.
	ch := c.group.DoChan(tenantID, func() (any, error) {
		return c.connect(ctx, tenantID)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Handle), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// connect runs the miss path: derive the schema name, open a schema-bound
// pool, ensure the schema exists, and register the handle. Runs at most
// once per tenant at a time, under the single-flight group.
func (c *Cache) connect(ctx context.Context, tenantID string) (*Handle, error) {
	// A racing caller may have populated the entry between the read-lock
	// check and the flight starting.
	c.mu.RLock()
	h, ok := c.handles[tenantID]
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return nil, ErrCacheClosed
	}
	if ok {
		return h, nil
	}

	telemetry.GetMetrics().CacheMissesTotal.Add(ctx, 1)

	schemaName, err := SchemaName(tenantID)
	if err != nil {
		return nil, err
	}

	h, err = c.open(ctx, tenantID, schemaName)
	if err != nil {
		telemetry.GetMetrics().CacheOpenFailuresTotal.Add(ctx, 1)
		return nil, fmt.Errorf("failed to connect tenant %s: %w", tenantID, err)
	}

	if err := c.provisioner.Provision(ctx, tenantID); err != nil {
		if cerr := h.Close(); cerr != nil {
			log.Error().Err(cerr).Str("tenant_id", tenantID).Msg("Failed to close handle after provisioning failure")
		}
		telemetry.GetMetrics().CacheOpenFailuresTotal.Add(ctx, 1)
		return nil, fmt.Errorf("failed to provision tenant %s: %w", tenantID, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		if cerr := h.Close(); cerr != nil {
			log.Error().Err(cerr).Str("tenant_id", tenantID).Msg("Failed to close handle during shutdown")
		}
		return nil, ErrCacheClosed
	}
	c.handles[tenantID] = h
	c.mu.Unlock()

	telemetry.GetMetrics().LiveHandles.Add(ctx, 1)

	log.Info().
		Str("tenant_id", tenantID).
		Str("schema", schemaName).
		Msg("Opened tenant connection")

	return h, nil
}

// Len returns the number of live handles.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.handles)
}

// CloseAll closes every cached handle and marks the cache closed; any later
// Get fails with ErrCacheClosed. A handle that fails to close is logged and
// skipped - the rest still close. Intended for graceful shutdown, after the
// server has stopped accepting requests.
func (c *Cache) CloseAll(ctx context.Context) {
	c.mu.Lock()
	c.closed = true
	handles := c.handles
	c.handles = make(map[string]*Handle)
	c.mu.Unlock()

	for tenantID, h := range handles {
		if err := h.Close(); err != nil {
			log.Error().Err(err).Str("tenant_id", tenantID).Msg("Failed to close tenant connection")
			continue
		}
		telemetry.GetMetrics().LiveHandles.Add(ctx, -1)
		log.Debug().Str("tenant_id", tenantID).Msg("Closed tenant connection")
	}

	log.Info().Int("count", len(handles)).Msg("Connection cache closed")
}
