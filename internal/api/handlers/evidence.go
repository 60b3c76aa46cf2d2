package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/credencehq/credence/internal/api/middleware"
	"github.com/credencehq/credence/internal/domain"
	"github.com/credencehq/credence/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type EvidenceHandler struct {
	svc *service.EvidenceService
}

func NewEvidenceHandler(svc *service.EvidenceService) *EvidenceHandler {
	return &EvidenceHandler{svc: svc}
}

type attachEvidenceRequest struct {
	SourceID    string             `json:"source_id"`
	Assignments map[string]float64 `json:"assignments"`
	Reliability *float64           `json:"reliability,omitempty"`
	ExpiresAt   string             `json:"expires_at,omitempty"` // RFC3339 format
}

func (h *EvidenceHandler) Attach(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	claimID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid claim id")
		return
	}

	var req attachEvidenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sourceID, err := uuid.Parse(req.SourceID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid source_id")
		return
	}

	if len(req.Assignments) == 0 {
		writeError(w, http.StatusBadRequest, "assignments is required")
		return
	}

	input := service.AttachInput{
		ClaimID:     claimID,
		SourceID:    sourceID,
		Assignments: req.Assignments,
		Reliability: req.Reliability,
	}

	if req.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid expires_at format (use RFC3339)")
			return
		}
		input.ExpiresAt = &t
	}

	result, err := h.svc.Attach(r.Context(), tenant.ID, input)
	if err != nil {
		switch {
		case beliefBadRequest(err), errors.Is(err, service.ErrInvalidReliability):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrClaimNotFound), errors.Is(err, service.ErrSourceNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrClaimNotOpen):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to attach evidence")
		}
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

type listEvidenceResponse struct {
	Evidence []domain.Evidence `json:"evidence"`
	Count    int               `json:"count"`
}

func (h *EvidenceHandler) ListByClaim(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	claimID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid claim id")
		return
	}

	evidence, err := h.svc.ListByClaim(r.Context(), claimID, tenant.ID)
	if err != nil {
		if errors.Is(err, service.ErrClaimNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to list evidence")
		return
	}

	writeJSON(w, http.StatusOK, listEvidenceResponse{Evidence: evidence, Count: len(evidence)})
}

func (h *EvidenceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid evidence id")
		return
	}

	if err := h.svc.Delete(r.Context(), id, tenant.ID); err != nil {
		if errors.Is(err, service.ErrEvidenceNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete evidence")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
