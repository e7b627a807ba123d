package tenantdb

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/legalcrm/legalcrm/internal/models"
	"github.com/legalcrm/legalcrm/internal/store"
	"github.com/legalcrm/legalcrm/internal/telemetry"
)

// ErrTenantForbidden is returned when a host resolves to a tenant whose
// status does not allow connections.
var ErrTenantForbidden = errors.New("tenant is not allowed to connect")

// TenantFinder is the slice of the directory the resolver needs.
type TenantFinder interface {
	FindBySubdomain(ctx context.Context, subdomain string) (*models.TenantRecord, error)
	FindByCustomDomain(ctx context.Context, domain string) (*models.TenantRecord, error)
}

// ConnectionSource hands out the per-tenant connection handle.
type ConnectionSource interface {
	Get(ctx context.Context, tenantID string) (*Handle, error)
}

// Resolution is the outcome of a successful resolve-and-connect. Bypassed
// requests (admin paths, operator hosts) carry a nil Tenant and Handle.
type Resolution struct {
	Tenant *models.TenantRecord
	Handle *Handle
}

// Bypassed reports whether the request skipped tenant resolution.
func (r *Resolution) Bypassed() bool {
	return r.Tenant == nil
}

// Resolver maps an inbound request's host to a tenant record and its
// connection handle.
type Resolver struct {
	finder      TenantFinder
	conns       ConnectionSource
	adminPrefix string
}

// NewResolver creates a resolver. Requests whose path starts with
// adminPrefix skip tenant resolution entirely.
func NewResolver(finder TenantFinder, conns ConnectionSource, adminPrefix string) *Resolver {
	return &Resolver{
		finder:      finder,
		conns:       conns,
		adminPrefix: adminPrefix,
	}
}

// Resolve maps a host header to a tenant record: exact custom-domain match
// first, then subdomain extraction for hosts with at least three
// dot-separated labels. Returns store.ErrTenantNotFound when nothing
// matches, ErrTenantForbidden when the matched tenant is inactive or
// suspended.
func (r *Resolver) Resolve(ctx context.Context, host string) (*models.TenantRecord, error) {
	hostname := normalizeHost(host)
	if hostname == "" {
		return nil, store.ErrTenantNotFound
	}

	tenant, err := r.finder.FindByCustomDomain(ctx, hostname)
	if err != nil && !errors.Is(err, store.ErrTenantNotFound) {
		return nil, fmt.Errorf("custom domain lookup failed: %w", err)
	}

	if tenant == nil {
		labels := strings.Split(hostname, ".")
		if len(labels) < 3 {
			return nil, store.ErrTenantNotFound
		}

		tenant, err = r.finder.FindBySubdomain(ctx, labels[0])
		if err != nil {
			if errors.Is(err, store.ErrTenantNotFound) {
				return nil, store.ErrTenantNotFound
			}
			return nil, fmt.Errorf("subdomain lookup failed: %w", err)
		}
	}

	if !tenant.Status.CanConnect() {
		return nil, fmt.Errorf("%w: tenant %s is %s", ErrTenantForbidden, tenant.ID, tenant.Status)
	}

	return tenant, nil
}

// ResolveAndConnect is the single entrypoint for the request router: it
// applies the bypass rules, resolves the host to a tenant, and obtains the
// tenant's connection handle. Every successful resolution is followed by
// exactly one connection acquisition, so the two travel together.
func (r *Resolver) ResolveAndConnect(ctx context.Context, host, path string) (*Resolution, error) {
	if r.adminPrefix != "" && strings.HasPrefix(path, r.adminPrefix) {
		return &Resolution{}, nil
	}
	if isBypassHost(normalizeHost(host)) {
		return &Resolution{}, nil
	}

	tenant, err := r.Resolve(ctx, host)
	if err != nil {
		telemetry.GetMetrics().ResolutionFailuresTotal.Add(ctx, 1)
		return nil, err
	}

	handle, err := r.conns.Get(ctx, tenant.ID.String())
	if err != nil {
		telemetry.GetMetrics().ResolutionFailuresTotal.Add(ctx, 1)
		return nil, err
	}

	telemetry.GetMetrics().ResolutionsTotal.Add(ctx, 1)

	return &Resolution{Tenant: tenant, Handle: handle}, nil
}

// normalizeHost strips any port and lowercases the hostname.
func normalizeHost(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(strings.TrimSuffix(host, "."))
}

// isBypassHost reports whether the host is used for direct operator access:
// localhost and bare IP literals skip tenant resolution.
func isBypassHost(hostname string) bool {
	if hostname == "localhost" {
		return true
	}
	return net.ParseIP(strings.Trim(hostname, "[]")) != nil
}
