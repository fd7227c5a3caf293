package http

import (
	"net/http"
	"strconv"

	"github.com/lumenlms/assessment-engine/internal/eventlog"
)

// GET /events?after=&limit= — polling surface for notifier/reporting
// consumers. Cursor is the last offset the consumer has seen.
func ListEventsHandler(repo *eventlog.Repo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var after int64
		if v := r.URL.Query().Get("after"); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n < 0 {
				http.Error(w, "bad after", http.StatusBadRequest)
				return
			}
			after = n
		}
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				http.Error(w, "bad limit", http.StatusBadRequest)
				return
			}
			limit = n
		}
		events, err := repo.Since(r.Context(), after, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, events)
	}
}
