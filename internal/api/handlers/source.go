package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/credencehq/credence/internal/api/middleware"
	"github.com/credencehq/credence/internal/domain"
	"github.com/credencehq/credence/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type SourceHandler struct {
	svc *service.SourceService
}

func NewSourceHandler(svc *service.SourceService) *SourceHandler {
	return &SourceHandler{svc: svc}
}

type createSourceRequest struct {
	Name        string  `json:"name"`
	Reliability float64 `json:"reliability"`
	Notes       string  `json:"notes,omitempty"`
}

func (h *SourceHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	src := &domain.Source{
		TenantID:    tenant.ID,
		Name:        req.Name,
		Reliability: req.Reliability,
		Notes:       req.Notes,
	}

	if err := h.svc.Create(r.Context(), src); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidReliability):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrSourceConflict):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to create source")
		}
		return
	}

	writeJSON(w, http.StatusCreated, src)
}

func (h *SourceHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid source id")
		return
	}

	src, err := h.svc.GetByID(r.Context(), id, tenant.ID)
	if err != nil {
		if errors.Is(err, service.ErrSourceNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get source")
		return
	}

	writeJSON(w, http.StatusOK, src)
}

type listSourcesResponse struct {
	Sources []domain.Source `json:"sources"`
	Count   int             `json:"count"`
}

func (h *SourceHandler) List(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sources, err := h.svc.List(r.Context(), tenant.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sources")
		return
	}

	writeJSON(w, http.StatusOK, listSourcesResponse{Sources: sources, Count: len(sources)})
}
