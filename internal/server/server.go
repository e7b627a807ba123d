package server

import (
	"encoding/json"
	"net/http"

	"github.com/legalcrm/legalcrm/internal/directory"
	httpmiddleware "github.com/legalcrm/legalcrm/internal/http"
	"github.com/rs/zerolog"
)

// Server exposes the administrative tenant API and the tenant-scoped
// workspace endpoint.
type Server struct {
	tenantService *TenantService
	adminPrefix   string
}

// NewServer creates a server for the given directory. adminPrefix is the
// path prefix for the administrative API; requests under it bypass tenant
// resolution in the router middleware.
func NewServer(dir *directory.Directory, adminPrefix string) *Server {
	return &Server{
		tenantService: NewTenantService(dir),
		adminPrefix:   adminPrefix,
	}
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint for load balancer
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	p := s.adminPrefix
	mux.HandleFunc("POST "+p+"/tenants", s.tenantService.Create)
	mux.HandleFunc("GET "+p+"/tenants", s.tenantService.List)
	mux.HandleFunc("GET "+p+"/tenants/{id}", s.tenantService.Get)
	mux.HandleFunc("PATCH "+p+"/tenants/{id}", s.tenantService.Update)
	mux.HandleFunc("PUT "+p+"/tenants/{id}/status", s.tenantService.UpdateStatus)
	mux.HandleFunc("DELETE "+p+"/tenants/{id}", s.tenantService.Delete)

	mux.HandleFunc("GET /api/workspace", s.handleWorkspace)

	return mux
}

// handleWorkspace reports the resolved tenant and per-table record counts
// through the schema-bound handle attached by the router middleware.
func (s *Server) handleWorkspace(w http.ResponseWriter, r *http.Request) {
	tenant := httpmiddleware.TenantFromContext(r.Context())
	handle := httpmiddleware.HandleFromContext(r.Context())
	if tenant == nil || handle == nil {
		writeError(w, http.StatusNotFound, "no tenant in request context")
		return
	}

	counts := map[string]int64{}
	for _, rs := range []struct {
		name  string
		count func() (int64, error)
	}{
		{handle.Records.Clients.Table, func() (int64, error) { return handle.Records.Clients.Count(r.Context()) }},
		{handle.Records.Cases.Table, func() (int64, error) { return handle.Records.Cases.Count(r.Context()) }},
		{handle.Records.Documents.Table, func() (int64, error) { return handle.Records.Documents.Count(r.Context()) }},
		{handle.Records.Invoices.Table, func() (int64, error) { return handle.Records.Invoices.Count(r.Context()) }},
	} {
		n, err := rs.count()
		if err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).
				Str("tenant_id", tenant.ID.String()).
				Str("table", rs.name).
				Msg("Failed to count records")
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		counts[rs.name] = n
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tenant": map[string]any{
			"id":     tenant.ID,
			"name":   tenant.Name,
			"plan":   tenant.Plan,
			"status": tenant.Status,
		},
		"schema": handle.SchemaName,
		"counts": counts,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
