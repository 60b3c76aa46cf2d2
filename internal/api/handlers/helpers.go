package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/credencehq/credence/internal/belief"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// beliefBadRequest reports whether err is a kernel validation failure that
// maps to a 400: the request itself was malformed, not the combination.
func beliefBadRequest(err error) bool {
	return errors.Is(err, belief.ErrInvalidFrame) ||
		errors.Is(err, belief.ErrInvalidMass) ||
		errors.Is(err, belief.ErrUnnormalizedMass) ||
		errors.Is(err, belief.ErrInvalidFocalSet) ||
		errors.Is(err, belief.ErrFrameMismatch) ||
		errors.Is(err, belief.ErrEmptyEvidenceSet) ||
		errors.Is(err, belief.ErrUnknownRule)
}
