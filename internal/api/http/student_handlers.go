package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lumenlms/assessment-engine/internal/attempt"
	authmw "github.com/lumenlms/assessment-engine/internal/auth/middleware"
	"github.com/lumenlms/assessment-engine/internal/rbac"
)

// POST /attempts  { "assessment_id": "..." }
// The attempt is always created for the authenticated subject.
func CreateAttemptHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			AssessmentID string `json:"assessment_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.AssessmentID == "" {
			http.Error(w, "assessment_id required", http.StatusBadRequest)
			return
		}
		userID := authmw.SubjectFromContext(r.Context())
		a, err := svc.Start(r.Context(), req.AssessmentID, userID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, a)
	}
}

// GET /attempts/{attemptID}
func GetAttemptHandler(svc *attempt.Service) http.HandlerFunc {
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
		writeJSON(w, a)
	}
}

// GET /attempts/{attemptID}/questions — the attempt's rendering order,
// answer keys stripped.
func AttemptQuestionsHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
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
		qs, err := svc.Questions(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, qs)
	}
}

// POST /attempts/{attemptID}/responses — save or overwrite the answer
// for one question.
func SaveResponseHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			QuestionID string `json:"question_id"`
			attempt.Answer
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.QuestionID == "" {
			http.Error(w, "question_id required", http.StatusBadRequest)
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
		resp, err := svc.RecordResponse(r.Context(), id, req.QuestionID, req.Answer)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, resp)
	}
}

// GET /attempts/{attemptID}/responses
func ListResponsesHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
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
		out, err := svc.ResponsesFor(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, out)
	}
}

// POST /attempts/{attemptID}/submit
func SubmitAttemptHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
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
		a, err = svc.Submit(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, a)
	}
}

// canAccessAttempt scopes students to their own attempts, reads and writes
// alike; attempt:view-all roles pass unconditionally.
func canAccessAttempt(r *http.Request, a attempt.Attempt) bool {
	role := rbac.RoleFromContext(r.Context())
	if rbac.Can(role, "attempt:view-all") {
		return true
	}
	return authmw.SubjectFromContext(r.Context()) == a.UserID
}
