package http

import (
	"net/http"
	"strconv"

	"github.com/lumenlms/assessment-engine/internal/attempt"
	authmw "github.com/lumenlms/assessment-engine/internal/auth/middleware"
	"github.com/lumenlms/assessment-engine/internal/rbac"
)

// GET /attempts?assessment_id=&user_id=&status=&limit=&offset=
// Students are pinned to their own attempts regardless of the user_id
// filter they pass.
func ListAttemptsHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		opts := attempt.ListOpts{
			AssessmentID: q.Get("assessment_id"),
			UserID:       q.Get("user_id"),
			Status:       attempt.Status(q.Get("status")),
		}
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				http.Error(w, "bad limit", http.StatusBadRequest)
				return
			}
			opts.Limit = n
		}
		if v := q.Get("offset"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				http.Error(w, "bad offset", http.StatusBadRequest)
				return
			}
			opts.Offset = n
		}
		role := rbac.RoleFromContext(r.Context())
		if !rbac.Can(role, "attempt:view-all") {
			opts.UserID = authmw.SubjectFromContext(r.Context())
		}
		out, err := svc.List(r.Context(), opts)
		if err != nil {
			writeError(w, err)
			return
		}
		if out == nil {
			out = []attempt.Attempt{}
		}
		writeJSON(w, out)
	}
}
