package catalog

import (
	"fmt"
	"time"
)

// AssessmentType is the closed set of assessment kinds the engine accepts.
type AssessmentType string

const (
	TypeQuiz         AssessmentType = "quiz"
	TypeAssignment   AssessmentType = "assignment"
	TypeExam         AssessmentType = "exam"
	TypeFinalExam    AssessmentType = "final_exam"
	TypeSurvey       AssessmentType = "survey"
	TypeProject      AssessmentType = "project"
	TypePresentation AssessmentType = "presentation"
)

func (t AssessmentType) Valid() bool {
	switch t {
	case TypeQuiz, TypeAssignment, TypeExam, TypeFinalExam, TypeSurvey, TypeProject, TypePresentation:
		return true
	}
	return false
}

// QuestionType is a closed enum so grading dispatch is a compile-time-checked
// switch rather than a loose string comparison.
type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	SingleChoice   QuestionType = "single_choice"
	TrueFalse      QuestionType = "true_false"
	FillBlank      QuestionType = "fill_blank"
	Essay          QuestionType = "essay"
	Matching       QuestionType = "matching"
	Coding         QuestionType = "coding"
	FileUpload     QuestionType = "file_upload"
)

func (t QuestionType) Valid() bool {
	switch t {
	case MultipleChoice, SingleChoice, TrueFalse, FillBlank, Essay, Matching, Coding, FileUpload:
		return true
	}
	return false
}

// IsChoice reports whether answers reference option identifiers.
func (t QuestionType) IsChoice() bool {
	return t == MultipleChoice || t == SingleChoice || t == TrueFalse
}

type Option struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
	SortOrder int    `json:"sort_order"`
}

type Question struct {
	ID         string       `json:"id"`
	Type       QuestionType `json:"type"`
	PromptHTML string       `json:"prompt_html,omitempty"`
	Points     float64      `json:"points"`
	IsRequired bool         `json:"is_required"`
	SortOrder  int          `json:"sort_order"`
	Options    []Option     `json:"options,omitempty"`
}

// CorrectOptions returns the correct options in sort order. Only meaningful
// for choice-typed questions; empty otherwise.
func (q Question) CorrectOptions() []Option {
	if !q.Type.IsChoice() {
		return nil
	}
	out := make([]Option, 0, len(q.Options))
	for _, o := range q.Options {
		if o.IsCorrect {
			out = append(out, o)
		}
	}
	return out
}

// HasOption reports whether id names an option of this question.
func (q Question) HasOption(id string) bool {
	for _, o := range q.Options {
		if o.ID == id {
			return true
		}
	}
	return false
}

// Assessment is the instructor-authored configuration an attempt runs against.
// Immutable from the engine's perspective while an attempt is open.
type Assessment struct {
	ID                  string         `json:"id"`
	Title               string         `json:"title"`
	Type                AssessmentType `json:"type"`
	IsPublished         bool           `json:"is_published"`
	TimeLimitMinutes    *int           `json:"time_limit_minutes,omitempty"` // nil = unlimited
	MaxAttempts         int            `json:"max_attempts"`
	PassingScore        float64        `json:"passing_score"` // 0..100
	RandomizeQuestions  bool           `json:"randomize_questions"`
	AllowLateSubmission bool           `json:"allow_late_submission"`
	LatePenaltyPercent  float64        `json:"late_penalty_percent"` // 0..100
	AvailableFrom       *time.Time     `json:"available_from,omitempty"`
	AvailableUntil      *time.Time     `json:"available_until,omitempty"`
	DueDate             *time.Time     `json:"due_date,omitempty"`
	Questions           []Question     `json:"questions"`

	CreatedAt int64 `json:"created_at,omitempty"`
}

// MaxScore is the sum of question points. Derived on demand, never cached.
func (a Assessment) MaxScore() float64 {
	total := 0.0
	for _, q := range a.Questions {
		total += q.Points
	}
	return total
}

// AvailableAt reports whether the assessment can be started at now.
func (a Assessment) AvailableAt(now time.Time) bool {
	if !a.IsPublished {
		return false
	}
	if a.AvailableFrom != nil && now.Before(*a.AvailableFrom) {
		return false
	}
	if a.AvailableUntil != nil && now.After(*a.AvailableUntil) {
		return false
	}
	return true
}

// Validate checks the numeric policy ranges before an assessment is accepted.
func (a Assessment) Validate() error {
	if !a.Type.Valid() {
		return fmt.Errorf("unknown assessment type %q", a.Type)
	}
	if a.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be >= 1, got %d", a.MaxAttempts)
	}
	if a.PassingScore < 0 || a.PassingScore > 100 {
		return fmt.Errorf("passing_score must be within 0..100, got %v", a.PassingScore)
	}
	if a.LatePenaltyPercent < 0 || a.LatePenaltyPercent > 100 {
		return fmt.Errorf("late_penalty_percent must be within 0..100, got %v", a.LatePenaltyPercent)
	}
	if a.TimeLimitMinutes != nil && *a.TimeLimitMinutes <= 0 {
		return fmt.Errorf("time_limit_minutes must be positive when set, got %d", *a.TimeLimitMinutes)
	}
	for _, q := range a.Questions {
		if !q.Type.Valid() {
			return fmt.Errorf("question %s: unknown type %q", q.ID, q.Type)
		}
		if q.Points < 0 {
			return fmt.Errorf("question %s: points must be >= 0, got %v", q.ID, q.Points)
		}
	}
	return nil
}
