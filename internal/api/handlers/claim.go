package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/credencehq/credence/internal/api/middleware"
	"github.com/credencehq/credence/internal/domain"
	"github.com/credencehq/credence/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type ClaimHandler struct {
	svc *service.ClaimService
}

func NewClaimHandler(svc *service.ClaimService) *ClaimHandler {
	return &ClaimHandler{svc: svc}
}

type createClaimRequest struct {
	Statement   string   `json:"statement"`
	Frame       []string `json:"frame"`
	DefaultRule string   `json:"default_rule,omitempty"`
}

func (h *ClaimHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Statement == "" {
		writeError(w, http.StatusBadRequest, "statement is required")
		return
	}

	claim := &domain.Claim{
		TenantID:    tenant.ID,
		Statement:   req.Statement,
		Frame:       req.Frame,
		DefaultRule: req.DefaultRule,
	}

	if err := h.svc.Create(r.Context(), claim); err != nil {
		if beliefBadRequest(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create claim")
		return
	}

	writeJSON(w, http.StatusCreated, claim)
}

func (h *ClaimHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid claim id")
		return
	}

	claim, err := h.svc.GetByID(r.Context(), id, tenant.ID)
	if err != nil {
		if errors.Is(err, service.ErrClaimNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get claim")
		return
	}

	writeJSON(w, http.StatusOK, claim)
}

type listClaimsResponse struct {
	Claims []domain.Claim `json:"claims"`
	Count  int            `json:"count"`
}

func (h *ClaimHandler) List(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	opts := domain.ListClaimsOpts{}

	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		if !domain.ValidClaimStatus(statusStr) {
			writeError(w, http.StatusBadRequest, "invalid status (open, settled, archived)")
			return
		}
		status := domain.ClaimStatus(statusStr)
		opts.Status = &status
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		opts.Limit = limit
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		opts.Offset = offset
	}

	claims, err := h.svc.List(r.Context(), tenant.ID, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list claims")
		return
	}

	writeJSON(w, http.StatusOK, listClaimsResponse{Claims: claims, Count: len(claims)})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *ClaimHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid claim id")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.UpdateStatus(r.Context(), id, tenant.ID, req.Status); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidStatus):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrClaimNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrClaimArchived):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to update claim status")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

func (h *ClaimHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid claim id")
		return
	}

	if err := h.svc.Delete(r.Context(), id, tenant.ID); err != nil {
		if errors.Is(err, service.ErrClaimNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete claim")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
