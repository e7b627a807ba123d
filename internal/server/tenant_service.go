package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/legalcrm/legalcrm/internal/directory"
	"github.com/legalcrm/legalcrm/internal/models"
	"github.com/legalcrm/legalcrm/internal/store"
	"github.com/rs/zerolog"
)

// TenantService implements the administrative tenant API over the
// directory.
type TenantService struct {
	directory *directory.Directory
}

// NewTenantService creates a tenant service.
func NewTenantService(dir *directory.Directory) *TenantService {
	return &TenantService{
		directory: dir,
	}
}

type tenantResponse struct {
	ID           uuid.UUID           `json:"id"`
	Name         string              `json:"name"`
	Subdomain    string              `json:"subdomain"`
	CustomDomain string              `json:"custom_domain,omitempty"`
	Status       models.TenantStatus `json:"status"`
	Plan         models.TenantPlan   `json:"plan"`
	Settings     map[string]any      `json:"settings,omitempty"`
	ContactInfo  map[string]any      `json:"contact_info,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`

	// EncryptionKey is returned once, on creation only.
	EncryptionKey string `json:"encryption_key,omitempty"`
}

func toTenantResponse(t *models.TenantRecord, includeKey bool) tenantResponse {
	resp := tenantResponse{
		ID:           t.ID,
		Name:         t.Name,
		Subdomain:    t.Subdomain,
		CustomDomain: t.CustomDomain,
		Status:       t.Status,
		Plan:         t.Plan,
		Settings:     t.Settings,
		ContactInfo:  t.ContactInfo,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
	if includeKey {
		resp.EncryptionKey = t.EncryptionKey
	}
	return resp
}

type createTenantRequest struct {
	Name         string         `json:"name"`
	Subdomain    string         `json:"subdomain"`
	CustomDomain string         `json:"custom_domain"`
	Plan         string         `json:"plan"`
	ContactInfo  map[string]any `json:"contact_info"`
	Settings     map[string]any `json:"settings"`
}

// Create handles POST /tenants.
func (s *TenantService) Create(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tenant, err := s.directory.Create(r.Context(), directory.CreateTenantInput{
		Name:         req.Name,
		Subdomain:    req.Subdomain,
		CustomDomain: req.CustomDomain,
		Plan:         models.TenantPlan(req.Plan),
		ContactInfo:  req.ContactInfo,
		Settings:     req.Settings,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTenantResponse(tenant, true))
}

// List handles GET /tenants?limit=&offset=.
func (s *TenantService) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	tenants, total, err := s.directory.List(r.Context(), limit, offset)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	items := make([]tenantResponse, 0, len(tenants))
	for _, t := range tenants {
		items = append(items, toTenantResponse(t, false))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tenants": items,
		"total":   total,
	})
}

// Get handles GET /tenants/{id}.
func (s *TenantService) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := s.tenantID(w, r)
	if !ok {
		return
	}

	tenant, err := s.directory.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toTenantResponse(tenant, false))
}

type updateTenantRequest struct {
	Name         *string        `json:"name"`
	CustomDomain *string        `json:"custom_domain"`
	Plan         *string        `json:"plan"`
	Settings     map[string]any `json:"settings"`
	ContactInfo  map[string]any `json:"contact_info"`
	Integrations map[string]any `json:"integrations"`
	Metadata     map[string]any `json:"metadata"`
}

// Update handles PATCH /tenants/{id}.
func (s *TenantService) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := s.tenantID(w, r)
	if !ok {
		return
	}

	var req updateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in := directory.UpdateTenantInput{
		Name:         req.Name,
		CustomDomain: req.CustomDomain,
		Settings:     req.Settings,
		ContactInfo:  req.ContactInfo,
		Integrations: req.Integrations,
		Metadata:     req.Metadata,
	}
	if req.Plan != nil {
		plan := models.TenantPlan(*req.Plan)
		in.Plan = &plan
	}

	tenant, err := s.directory.Update(r.Context(), id, in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toTenantResponse(tenant, false))
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles PUT /tenants/{id}/status.
func (s *TenantService) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := s.tenantID(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tenant, err := s.directory.UpdateStatus(r.Context(), id, models.TenantStatus(req.Status))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toTenantResponse(tenant, false))
}

// Delete handles DELETE /tenants/{id}?force=true. Plain delete aborts when
// schema teardown fails; force removes the record regardless.
func (s *TenantService) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := s.tenantID(w, r)
	if !ok {
		return
	}

	force := r.URL.Query().Get("force") == "true"
	if err := s.directory.Delete(r.Context(), id, force); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *TenantService) tenantID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tenant id")
		return uuid.Nil, false
	}
	return id, true
}

func (s *TenantService) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrTenantNotFound):
		writeError(w, http.StatusNotFound, "tenant not found")
	case errors.Is(err, store.ErrDuplicateSubdomain):
		writeError(w, http.StatusConflict, "subdomain already in use")
	case errors.Is(err, store.ErrDuplicateCustomDomain):
		writeError(w, http.StatusConflict, "custom domain already in use")
	case errors.Is(err, directory.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Tenant admin operation failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
