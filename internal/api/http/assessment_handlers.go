package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/lumenlms/assessment-engine/internal/attempt"
	"github.com/lumenlms/assessment-engine/internal/catalog"
	"github.com/lumenlms/assessment-engine/internal/rbac"
)

var validate = validator.New()

type optionReq struct {
	ID        string `json:"id"`
	Text      string `json:"text" validate:"required"`
	IsCorrect bool   `json:"is_correct"`
	SortOrder int    `json:"sort_order"`
}

type questionReq struct {
	ID         string      `json:"id"`
	Type       string      `json:"type" validate:"required"`
	PromptHTML string      `json:"prompt_html"`
	Points     float64     `json:"points" validate:"min=0"`
	IsRequired bool        `json:"is_required"`
	SortOrder  int         `json:"sort_order"`
	Options    []optionReq `json:"options" validate:"dive"`
}

type assessmentReq struct {
	ID                  string      `json:"id"`
	Title               string      `json:"title" validate:"required,max=200"`
	Type                string      `json:"type" validate:"required"`
	IsPublished         bool        `json:"is_published"`
	TimeLimitMinutes    *int        `json:"time_limit_minutes" validate:"omitempty,min=1"`
	MaxAttempts         int         `json:"max_attempts" validate:"min=1"`
	PassingScore        float64     `json:"passing_score" validate:"min=0,max=100"`
	RandomizeQuestions  bool        `json:"randomize_questions"`
	AllowLateSubmission bool        `json:"allow_late_submission"`
	LatePenaltyPercent  float64     `json:"late_penalty_percent" validate:"min=0,max=100"`
	AvailableFrom       *time.Time  `json:"available_from"`
	AvailableUntil      *time.Time  `json:"available_until"`
	DueDate             *time.Time  `json:"due_date"`
	Questions           []questionReq `json:"questions" validate:"dive"`
}

func (r assessmentReq) toModel() catalog.Assessment {
	a := catalog.Assessment{
		ID:                  r.ID,
		Title:               r.Title,
		Type:                catalog.AssessmentType(r.Type),
		IsPublished:         r.IsPublished,
		TimeLimitMinutes:    r.TimeLimitMinutes,
		MaxAttempts:         r.MaxAttempts,
		PassingScore:        r.PassingScore,
		RandomizeQuestions:  r.RandomizeQuestions,
		AllowLateSubmission: r.AllowLateSubmission,
		LatePenaltyPercent:  r.LatePenaltyPercent,
		AvailableFrom:       r.AvailableFrom,
		AvailableUntil:      r.AvailableUntil,
		DueDate:             r.DueDate,
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	for _, q := range r.Questions {
		mq := catalog.Question{
			ID:         q.ID,
			Type:       catalog.QuestionType(q.Type),
			PromptHTML: q.PromptHTML,
			Points:     q.Points,
			IsRequired: q.IsRequired,
			SortOrder:  q.SortOrder,
		}
		if mq.ID == "" {
			mq.ID = uuid.NewString()
		}
		for _, o := range q.Options {
			mo := catalog.Option{ID: o.ID, Text: o.Text, IsCorrect: o.IsCorrect, SortOrder: o.SortOrder}
			if mo.ID == "" {
				mo.ID = uuid.NewString()
			}
			mq.Options = append(mq.Options, mo)
		}
		a.Questions = append(a.Questions, mq)
	}
	return a
}

// POST /assessments
//
// Creates or overwrites an assessment. Overwriting one that still has
// in-progress attempts is refused unless ?force=true, so a live edit cannot
// silently change the question set under active takers.
func CreateAssessmentHandler(store catalog.Store, attempts *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req assessmentReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			http.Error(w, "validation: "+err.Error(), http.StatusBadRequest)
			return
		}
		a := req.toModel()
		if err := a.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if _, err := store.Get(r.Context(), a.ID); err == nil && r.URL.Query().Get("force") != "true" {
			open, err := attempts.List(r.Context(), attempt.ListOpts{
				AssessmentID: a.ID,
				Status:       attempt.StatusInProgress,
				Limit:        1,
			})
			if err != nil {
				writeError(w, err)
				return
			}
			if len(open) > 0 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusConflict)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":   "assessment_in_use",
					"message": "assessment has in-progress attempts; retry with force=true",
				})
				return
			}
		}
		if err := store.Put(r.Context(), a); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, a)
	}
}

// GET /assessments/{assessmentID}
// Correctness flags are stripped unless the caller may view answers.
func GetAssessmentHandler(store catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "assessmentID")
		a, err := store.Get(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		catalog.SortQuestions(a.Questions)
		role := rbac.RoleFromContext(r.Context())
		if !rbac.Can(role, "assessment:view-answers") {
			a = catalog.StripAnswers(a)
		}
		writeJSON(w, a)
	}
}
