package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/credencehq/credence/internal/api/middleware"
	"github.com/credencehq/credence/internal/belief"
	"github.com/credencehq/credence/internal/domain"
	"github.com/credencehq/credence/internal/policy"
	"github.com/credencehq/credence/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type FusionHandler struct {
	svc      *service.FusionService
	policies *policy.Provider
}

func NewFusionHandler(svc *service.FusionService, policies *policy.Provider) *FusionHandler {
	return &FusionHandler{svc: svc, policies: policies}
}

type fuseRequest struct {
	Rule string `json:"rule,omitempty"`
}

// decodeFuseRequest tolerates an empty body: the rule override is optional.
func decodeFuseRequest(r *http.Request) (fuseRequest, error) {
	var req fuseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return req, err
	}
	return req, nil
}

func writeFusionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, belief.ErrTotalConflict):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, belief.ErrNormalizationDrift):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case beliefBadRequest(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrClaimNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "fusion failed")
	}
}

func (h *FusionHandler) Fuse(w http.ResponseWriter, r *http.Request) {
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

	req, err := decodeFuseRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := h.svc.FuseClaim(r.Context(), tenant.ID, claimID, req.Rule)
	if err != nil {
		writeFusionError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, rec)
}

func (h *FusionHandler) Preview(w http.ResponseWriter, r *http.Request) {
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

	req, err := decodeFuseRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	outcome, err := h.svc.Preview(r.Context(), tenant.ID, claimID, req.Rule)
	if err != nil {
		writeFusionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

func (h *FusionHandler) Belief(w http.ResponseWriter, r *http.Request) {
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

	var hypothesis []string
	if raw := r.URL.Query().Get("hypothesis"); raw != "" {
		hypothesis = strings.Split(raw, ",")
	}

	report, err := h.svc.BeliefAt(r.Context(), tenant.ID, claimID, hypothesis)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFused):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrClaimNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case beliefBadRequest(err):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to get belief")
		}
		return
	}

	writeJSON(w, http.StatusOK, report)
}

type fusionHistoryResponse struct {
	Fusions []domain.FusionRecord `json:"fusions"`
	Count   int                   `json:"count"`
}

func (h *FusionHandler) History(w http.ResponseWriter, r *http.Request) {
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

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}

	fusions, err := h.svc.History(r.Context(), tenant.ID, claimID, limit)
	if err != nil {
		if errors.Is(err, service.ErrClaimNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get fusion history")
		return
	}

	writeJSON(w, http.StatusOK, fusionHistoryResponse{Fusions: fusions, Count: len(fusions)})
}

// AdHoc runs a stateless combination over caller-supplied masses.
func (h *FusionHandler) AdHoc(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req service.AdHocRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.Frame) == 0 {
		writeError(w, http.StatusBadRequest, "frame is required")
		return
	}
	if len(req.Masses) == 0 {
		writeError(w, http.StatusBadRequest, "masses is required")
		return
	}

	outcome, err := h.svc.AdHoc(req)
	if err != nil {
		writeFusionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

type ruleInfo struct {
	Name         string  `json:"name"`
	WarnConflict float64 `json:"warn_conflict"`
}

type rulesResponse struct {
	Rules            []ruleInfo `json:"rules"`
	DefaultRule      string     `json:"default_rule"`
	Epsilon          float64    `json:"epsilon"`
	HardDrift        float64    `json:"hard_drift"`
	DecayLambda      float64    `json:"decay_lambda"`
	ReliabilityFloor float64    `json:"reliability_floor"`
}

// Rules reports the supported combination rules and the active policy
// thresholds.
func (h *FusionHandler) Rules(w http.ResponseWriter, r *http.Request) {
	pol := h.policies.Current()

	resp := rulesResponse{
		DefaultRule:      pol.DefaultRule,
		Epsilon:          pol.Epsilon,
		HardDrift:        pol.HardDrift,
		DecayLambda:      pol.DecayLambda,
		ReliabilityFloor: pol.ReliabilityFloor,
	}
	for _, rule := range belief.Rules() {
		resp.Rules = append(resp.Rules, ruleInfo{
			Name:         string(rule),
			WarnConflict: pol.WarnConflictFor(rule),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}
