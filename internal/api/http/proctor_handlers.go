package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lumenlms/assessment-engine/internal/attempt"
)

type violationReq struct {
	Type        string     `json:"type"`
	Description string     `json:"description"`
	OccurredAt  *time.Time `json:"occurred_at,omitempty"`
}

// POST /attempts/{attemptID}/violations
func RecordViolationHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req violationReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.Type == "" {
			http.Error(w, "type required", http.StatusBadRequest)
			return
		}
		id := chi.URLParam(r, "attemptID")
		a, err := svc.Get(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		if !canAccessAttempt(r, a) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		typ := attempt.ViolationType(req.Type)
		v, err := svc.AddViolation(r.Context(), id, typ, req.Description, req.OccurredAt)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, v)
	}
}

// GET /attempts/{attemptID}/violations
func ListViolationsHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := svc.Get(r.Context(), chi.URLParam(r, "attemptID"))
		if err != nil {
			writeError(w, err)
			return
		}
		if !canAccessAttempt(r, a) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		out := a.Violations
		if out == nil {
			out = []attempt.Violation{}
		}
		writeJSON(w, out)
	}
}
