package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lumenlms/assessment-engine/internal/attempt"
	authmw "github.com/lumenlms/assessment-engine/internal/auth/middleware"
)

type gradingItem struct {
	QuestionID      string   `json:"question_id"`
	PromptHTML      string   `json:"prompt_html,omitempty"`
	QuestionType    string   `json:"question_type"`
	MaxPoints       float64  `json:"max_points"`
	SelectedOptions []string `json:"selected_options,omitempty"`
	TextResponse    string   `json:"text_response,omitempty"`
	FileUploads     []string `json:"file_uploads,omitempty"`
	PointsEarned    *float64 `json:"points_earned,omitempty"`
	IsCorrect       *bool    `json:"is_correct,omitempty"`
	GradedBy        string   `json:"graded_by,omitempty"`
	GraderComment   string   `json:"grader_comment,omitempty"`
	NeedsGrading    bool     `json:"needs_grading"`
}

type gradingView struct {
	Attempt attempt.Attempt `json:"attempt"`
	Items   []gradingItem   `json:"items"`
}

// GET /attempts/{attemptID}/grading — the grading worksheet: every
// recorded response joined to its question, manual-grade slots flagged.
func GetGradingHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		a, err := svc.Get(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		qs, err := svc.Questions(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		responses, err := svc.ResponsesFor(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		byQuestion := make(map[string]attempt.Response, len(responses))
		for _, resp := range responses {
			byQuestion[resp.QuestionID] = resp
		}
		view := gradingView{Attempt: a, Items: make([]gradingItem, 0, len(qs))}
		for _, q := range qs {
			resp, ok := byQuestion[q.ID]
			if !ok {
				continue
			}
			view.Items = append(view.Items, gradingItem{
				QuestionID:      q.ID,
				PromptHTML:      q.PromptHTML,
				QuestionType:    string(q.Type),
				MaxPoints:       q.Points,
				SelectedOptions: resp.SelectedOptions,
				TextResponse:    resp.TextResponse,
				FileUploads:     resp.FileUploads,
				PointsEarned:    resp.PointsEarned,
				IsCorrect:       resp.IsCorrect,
				GradedBy:        resp.GradedBy,
				GraderComment:   resp.GraderComment,
				NeedsGrading:    resp.PointsEarned == nil,
			})
		}
		writeJSON(w, view)
	}
}

type manualGradesReq struct {
	Grades   map[string]attempt.ManualGradeInput `json:"grades"`
	Finalize bool                                `json:"finalize"`
}

// POST /attempts/{attemptID}/grading — record manual grades keyed by
// question ID; finalize moves the attempt out of submitted once all
// manual slots are scored.
func ApplyManualGradesHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req manualGradesReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if len(req.Grades) == 0 {
			http.Error(w, "grades required", http.StatusBadRequest)
			return
		}
		gradedBy := authmw.SubjectFromContext(r.Context())
		a, err := svc.ApplyManualGrades(r.Context(), chi.URLParam(r, "attemptID"), req.Grades, gradedBy, req.Finalize)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, a)
	}
}
