package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/legalcrm/legalcrm/internal/models"
	"github.com/legalcrm/legalcrm/internal/store"
	"github.com/legalcrm/legalcrm/internal/tenantdb"
	"github.com/rs/zerolog"
)

type contextKey string

const resolutionContextKey contextKey = "tenant_resolution"

// Resolver is the routing contract consumed by the middleware.
type Resolver interface {
	ResolveAndConnect(ctx context.Context, host, path string) (*tenantdb.Resolution, error)
}

// TenantFromContext returns the resolved tenant record, or nil for bypassed
// (administrative/operator) requests.
func TenantFromContext(ctx context.Context) *models.TenantRecord {
	res, _ := ctx.Value(resolutionContextKey).(*tenantdb.Resolution)
	if res == nil {
		return nil
	}
	return res.Tenant
}

// HandleFromContext returns the tenant's schema-bound connection handle, or
// nil for bypassed requests.
func HandleFromContext(ctx context.Context) *tenantdb.Handle {
	res, _ := ctx.Value(resolutionContextKey).(*tenantdb.Resolution)
	if res == nil {
		return nil
	}
	return res.Handle
}

// TenantMiddleware resolves the request host to a tenant, obtains the
// tenant's connection handle, and attaches both to the request context.
// Unknown hosts get 404, suspended/inactive tenants 403. Provisioning and
// connection failures surface as a generic 500 with the cause logged, never
// leaked to the client.
func TenantMiddleware(resolver Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := resolver.ResolveAndConnect(r.Context(), r.Host, r.URL.Path)
			if err != nil {
				switch {
				case errors.Is(err, store.ErrTenantNotFound):
					writeError(w, http.StatusNotFound, "tenant not found")
				case errors.Is(err, tenantdb.ErrTenantForbidden):
					writeError(w, http.StatusForbidden, "tenant access denied")
				default:
					zerolog.Ctx(r.Context()).Error().Err(err).
						Str("host", r.Host).
						Msg("Tenant resolution failed")
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
				return
			}

			ctx := context.WithValue(r.Context(), resolutionContextKey, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
