package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lumenlms/assessment-engine/internal/attempt"
	"github.com/lumenlms/assessment-engine/internal/catalog"
)

// writeError maps the engine's error taxonomy to distinct HTTP responses so
// the UI can render the right message: expiry, limit-exceeded, invalid state
// and unavailability each get their own code.
func writeError(w http.ResponseWriter, err error) {
	code, status := "internal_error", http.StatusInternalServerError
	switch {
	case errors.Is(err, attempt.ErrNotFound) || errors.Is(err, catalog.ErrNotFound):
		code, status = "not_found", http.StatusNotFound
	case errors.Is(err, attempt.ErrAttemptExpired):
		code, status = "attempt_expired", http.StatusConflict
	case errors.Is(err, attempt.ErrInvalidState):
		code, status = "invalid_state", http.StatusConflict
	case errors.Is(err, attempt.ErrAttemptLimitExceeded):
		code, status = "attempt_limit_exceeded", http.StatusForbidden
	case errors.Is(err, attempt.ErrAssessmentUnavailable):
		code, status = "assessment_unavailable", http.StatusForbidden
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "message": err.Error()})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
