package handlers

import (
	"errors"
	"net/http"

	"github.com/credencehq/credence/internal/api/middleware"
	"github.com/credencehq/credence/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type DiagnosticsHandler struct {
	svc *service.DiagnosticsService
}

func NewDiagnosticsHandler(svc *service.DiagnosticsService) *DiagnosticsHandler {
	return &DiagnosticsHandler{svc: svc}
}

func (h *DiagnosticsHandler) Report(w http.ResponseWriter, r *http.Request) {
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

	diag, err := h.svc.Report(r.Context(), tenant.ID, claimID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrClaimNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case beliefBadRequest(err):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to build diagnostics")
		}
		return
	}

	writeJSON(w, http.StatusOK, diag)
}
