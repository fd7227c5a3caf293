package attempt

import "time"

// Status is the attempt state machine. Transitions only move forward:
// in_progress -> {submitted, expired}, submitted -> {graded, late_submission},
// graded / late_submission / expired terminal.
type Status string

const (
	StatusInProgress     Status = "in_progress"
	StatusSubmitted      Status = "submitted"
	StatusGraded         Status = "graded"
	StatusExpired        Status = "expired"
	StatusLateSubmission Status = "late_submission"
)

// Final reports whether the status admits no further transition.
func (s Status) Final() bool {
	return s == StatusGraded || s == StatusExpired || s == StatusLateSubmission
}

type ViolationType string

const (
	ViolationTabSwitch      ViolationType = "tab_switch"
	ViolationWindowBlur     ViolationType = "window_blur"
	ViolationFullScreenExit ViolationType = "full_screen_exit"
	ViolationNoFaceDetected ViolationType = "no_face_detected"
	ViolationCopyPaste      ViolationType = "copy_paste"
	ViolationMultipleFaces  ViolationType = "multiple_faces"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

var violationSeverity = map[ViolationType]Severity{
	ViolationTabSwitch:      SeverityLow,
	ViolationWindowBlur:     SeverityLow,
	ViolationFullScreenExit: SeverityMedium,
	ViolationNoFaceDetected: SeverityMedium,
	ViolationCopyPaste:      SeverityHigh,
	ViolationMultipleFaces:  SeverityHigh,
}

// SeverityFor derives severity deterministically from the violation type.
// Unknown types default to medium.
func SeverityFor(t ViolationType) Severity {
	if s, ok := violationSeverity[t]; ok {
		return s
	}
	return SeverityMedium
}

// Violation is a discrete proctoring event logged during a timed attempt.
// Advisory data for human review; never blocks submission.
type Violation struct {
	Type        ViolationType `json:"type"`
	Description string        `json:"description,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
	Severity    Severity      `json:"severity"`
}

// Attempt is one student's timed instance of taking an assessment.
type Attempt struct {
	ID            string  `json:"id"`
	AssessmentID  string  `json:"assessment_id"`
	UserID        string  `json:"user_id"`
	AttemptNumber int     `json:"attempt_number"`
	Status        Status  `json:"status"`

	StartedAt        time.Time  `json:"started_at"`
	SubmittedAt      *time.Time `json:"submitted_at,omitempty"`
	TimeSpentMinutes int        `json:"time_spent_minutes"`

	// Scoring fields stay nil until aggregation has run.
	Score      *float64 `json:"score,omitempty"`
	MaxScore   *float64 `json:"max_score,omitempty"`
	Percentage *float64 `json:"percentage,omitempty"`
	Passed     *bool    `json:"passed,omitempty"`
	Grade      *string  `json:"grade,omitempty"`

	// NeedsGrading is true while any manually-graded response has no points
	// yet; score/percentage then reflect only the auto-graded subset.
	NeedsGrading bool `json:"needs_grading"`

	IsLate             bool    `json:"is_late"`
	LatePenaltyApplied float64 `json:"late_penalty_applied"`

	// QuestionOrder holds the per-attempt rendering order when the assessment
	// randomizes questions; empty means catalog order.
	QuestionOrder []string    `json:"question_order,omitempty"`
	Violations    []Violation `json:"proctoring_violations,omitempty"`
}

// Answer is the payload a student submits for one question.
type Answer struct {
	SelectedOptions  []string `json:"selected_options,omitempty"`
	TextResponse     string   `json:"text_response,omitempty"`
	FileUploads      []string `json:"file_uploads,omitempty"`
	TimeSpentSeconds int      `json:"time_spent_seconds,omitempty"`
}

// Response is a student's answer to one question within one attempt. At most
// one per (attempt, question); re-submission overwrites in place.
type Response struct {
	ID               string     `json:"id"`
	AttemptID        string     `json:"attempt_id"`
	QuestionID       string     `json:"question_id"`
	SelectedOptions  []string   `json:"selected_options,omitempty"`
	TextResponse     string     `json:"text_response,omitempty"`
	FileUploads      []string   `json:"file_uploads,omitempty"`
	PointsEarned     *float64   `json:"points_earned,omitempty"` // nil = not yet graded
	IsCorrect        *bool      `json:"is_correct,omitempty"`
	TimeSpentSeconds int        `json:"time_spent_seconds"`
	GradedBy         string     `json:"graded_by,omitempty"`
	GradedAt         *time.Time `json:"graded_at,omitempty"`
	GraderComment    string     `json:"grader_comment,omitempty"`
}

// ManualGradeInput is a grader's points decision for one question.
type ManualGradeInput struct {
	Points  float64 `json:"points"`
	Comment string  `json:"comment,omitempty"`
}
