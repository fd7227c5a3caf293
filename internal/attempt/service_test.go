package attempt_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lumenlms/assessment-engine/internal/attempt"
	"github.com/lumenlms/assessment-engine/internal/catalog"
)

/* ---------------- Test fixture: in-memory stores, fake clock, event sink ---------------- */

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type eventSink struct {
	types []string
}

func (e *eventSink) Append(_ context.Context, typ, _ string, _ interface{}) error {
	e.types = append(e.types, typ)
	return nil
}

func (e *eventSink) has(typ string) bool {
	for _, t := range e.types {
		if t == typ {
			return true
		}
	}
	return false
}

type denyAll struct{}

func (denyAll) IsEnrolledAndActive(context.Context, string, string) (bool, error) {
	return false, nil
}

func basicAssessment() catalog.Assessment {
	return catalog.Assessment{
		ID:           "asmt-1",
		Title:        "Unit Quiz",
		Type:         catalog.TypeQuiz,
		IsPublished:  true,
		MaxAttempts:  2,
		PassingScore: 70,
		Questions: []catalog.Question{
			{
				ID: "q1", Type: catalog.SingleChoice, Points: 10, SortOrder: 0,
				Options: []catalog.Option{
					{ID: "q1a", Text: "Right", IsCorrect: true, SortOrder: 0},
					{ID: "q1b", Text: "Wrong", SortOrder: 1},
				},
			},
			{
				ID: "q2", Type: catalog.SingleChoice, Points: 10, SortOrder: 1,
				Options: []catalog.Option{
					{ID: "q2a", Text: "Right", IsCorrect: true, SortOrder: 0},
					{ID: "q2b", Text: "Wrong", SortOrder: 1},
				},
			},
		},
	}
}

type fixture struct {
	svc    *attempt.Service
	cat    catalog.Store
	clock  *fakeClock
	events *eventSink
}

func newFixture(t *testing.T, asmt catalog.Assessment, opts ...attempt.ServiceOption) *fixture {
	t.Helper()
	cat := catalog.NewInMemoryStore()
	if err := cat.Put(context.Background(), asmt); err != nil {
		t.Fatalf("seed assessment: %v", err)
	}
	clock := &fakeClock{t: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	events := &eventSink{}
	all := append([]attempt.ServiceOption{
		attempt.WithClock(clock.Now),
		attempt.WithEvents(events),
	}, opts...)
	svc := attempt.NewService(attempt.NewInMemoryStore(), cat, all...)
	return &fixture{svc: svc, cat: cat, clock: clock, events: events}
}

func mustStart(t *testing.T, f *fixture, assessmentID, userID string) attempt.Attempt {
	t.Helper()
	a, err := f.svc.Start(context.Background(), assessmentID, userID)
	if err != nil {
		t.Fatalf("start attempt: %v", err)
	}
	return a
}

func answer(t *testing.T, f *fixture, attemptID, questionID string, ans attempt.Answer) {
	t.Helper()
	if _, err := f.svc.RecordResponse(context.Background(), attemptID, questionID, ans); err != nil {
		t.Fatalf("record response %s: %v", questionID, err)
	}
}

/* ------------------------------------------ Tests ------------------------------------------ */

func TestStartCreatesInProgressAttempt(t *testing.T) {
	f := newFixture(t, basicAssessment())
	a := mustStart(t, f, "asmt-1", "u1")

	if a.Status != attempt.StatusInProgress {
		t.Fatalf("status = %q, want in_progress", a.Status)
	}
	if a.AttemptNumber != 1 {
		t.Fatalf("attempt number = %d, want 1", a.AttemptNumber)
	}
	if a.Score != nil || a.Percentage != nil {
		t.Fatalf("scoring fields must stay nil before submission")
	}
	if !f.events.has("attempt.started") {
		t.Fatalf("expected attempt.started event")
	}
}

func TestStartEnforcesAttemptLimit(t *testing.T) {
	f := newFixture(t, basicAssessment()) // MaxAttempts: 2
	mustStart(t, f, "asmt-1", "u1")
	mustStart(t, f, "asmt-1", "u1")

	_, err := f.svc.Start(context.Background(), "asmt-1", "u1")
	if !errors.Is(err, attempt.ErrAttemptLimitExceeded) {
		t.Fatalf("third start: got %v, want ErrAttemptLimitExceeded", err)
	}
	// The rejected start leaves no attempt row behind.
	mine, err := f.svc.List(context.Background(), attempt.ListOpts{AssessmentID: "asmt-1", UserID: "u1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("attempts after rejected start = %d, want 2", len(mine))
	}
	// A different user is unaffected.
	mustStart(t, f, "asmt-1", "u2")
}

func TestStartUnpublishedOrOutsideWindow(t *testing.T) {
	asmt := basicAssessment()
	asmt.IsPublished = false
	f := newFixture(t, asmt)
	if _, err := f.svc.Start(context.Background(), "asmt-1", "u1"); !errors.Is(err, attempt.ErrAssessmentUnavailable) {
		t.Fatalf("unpublished: got %v, want ErrAssessmentUnavailable", err)
	}

	asmt = basicAssessment()
	from := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC) // after the fixture clock
	asmt.AvailableFrom = &from
	f = newFixture(t, asmt)
	if _, err := f.svc.Start(context.Background(), "asmt-1", "u1"); !errors.Is(err, attempt.ErrAssessmentUnavailable) {
		t.Fatalf("before window: got %v, want ErrAssessmentUnavailable", err)
	}
}

func TestStartRejectsUnenrolledUser(t *testing.T) {
	f := newFixture(t, basicAssessment(), attempt.WithEnrollment(denyAll{}))
	_, err := f.svc.Start(context.Background(), "asmt-1", "u1")
	if !errors.Is(err, attempt.ErrAssessmentUnavailable) {
		t.Fatalf("got %v, want ErrAssessmentUnavailable", err)
	}
}

func TestStartUnknownAssessment(t *testing.T) {
	f := newFixture(t, basicAssessment())
	_, err := f.svc.Start(context.Background(), "nope", "u1")
	if !errors.Is(err, attempt.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestSubmitGradesAndFinalizes(t *testing.T) {
	f := newFixture(t, basicAssessment())
	a := mustStart(t, f, "asmt-1", "u1")

	answer(t, f, a.ID, "q1", attempt.Answer{SelectedOptions: []string{"q1a"}}) // right
	answer(t, f, a.ID, "q2", attempt.Answer{SelectedOptions: []string{"q2b"}}) // wrong

	got, err := f.svc.Submit(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got.Status != attempt.StatusGraded {
		t.Fatalf("status = %q, want graded", got.Status)
	}
	if got.Score == nil || *got.Score != 10 {
		t.Fatalf("score = %v, want 10", got.Score)
	}
	if got.Percentage == nil || *got.Percentage != 50 {
		t.Fatalf("percentage = %v, want 50", got.Percentage)
	}
	if got.Passed == nil || *got.Passed {
		t.Fatalf("50%% must not pass a 70%% bar")
	}
	if got.Grade == nil || *got.Grade != "F" {
		t.Fatalf("grade = %v, want F", got.Grade)
	}
	if !f.events.has("attempt.submitted") || !f.events.has("attempt.graded") {
		t.Fatalf("expected submitted and graded events, got %v", f.events.types)
	}
}

func TestSubmitAllCorrectPasses(t *testing.T) {
	f := newFixture(t, basicAssessment())
	a := mustStart(t, f, "asmt-1", "u1")
	answer(t, f, a.ID, "q1", attempt.Answer{SelectedOptions: []string{"q1a"}})
	answer(t, f, a.ID, "q2", attempt.Answer{SelectedOptions: []string{"q2a"}})

	got, err := f.svc.Submit(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got.Percentage == nil || *got.Percentage != 100 {
		t.Fatalf("percentage = %v, want 100", got.Percentage)
	}
	if got.Passed == nil || !*got.Passed {
		t.Fatalf("expected pass at 100%%")
	}
	if got.Grade == nil || *got.Grade != "A" {
		t.Fatalf("grade = %v, want A", got.Grade)
	}
}

func TestSubmitTwiceIsInvalid(t *testing.T) {
	f := newFixture(t, basicAssessment())
	a := mustStart(t, f, "asmt-1", "u1")
	if _, err := f.svc.Submit(context.Background(), a.ID); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := f.svc.Submit(context.Background(), a.ID); !errors.Is(err, attempt.ErrInvalidState) {
		t.Fatalf("second submit: got %v, want ErrInvalidState", err)
	}
}

func TestRecordResponseOverwrites(t *testing.T) {
	f := newFixture(t, basicAssessment())
	a := mustStart(t, f, "asmt-1", "u1")

	answer(t, f, a.ID, "q1", attempt.Answer{SelectedOptions: []string{"q1b"}})
	answer(t, f, a.ID, "q1", attempt.Answer{SelectedOptions: []string{"q1a"}})

	responses, err := f.svc.ResponsesFor(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("responses: %v", err)
	}
	if len(responses) != 1 {
		t.Fatalf("expected 1 response after overwrite, got %d", len(responses))
	}
	if got := responses[0].SelectedOptions; len(got) != 1 || got[0] != "q1a" {
		t.Fatalf("latest answer wins; got %v", got)
	}
}

func TestRecordResponseUnknownQuestion(t *testing.T) {
	f := newFixture(t, basicAssessment())
	a := mustStart(t, f, "asmt-1", "u1")
	_, err := f.svc.RecordResponse(context.Background(), a.ID, "not-a-question", attempt.Answer{TextResponse: "x"})
	if !errors.Is(err, attempt.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestLazyExpiry(t *testing.T) {
	asmt := basicAssessment()
	limit := 30
	asmt.TimeLimitMinutes = &limit
	f := newFixture(t, asmt)
	a := mustStart(t, f, "asmt-1", "u1")

	// 29 minutes in: still open.
	f.clock.Advance(29 * time.Minute)
	answer(t, f, a.ID, "q1", attempt.Answer{SelectedOptions: []string{"q1a"}})

	// Past the deadline: the next touch expires the attempt.
	f.clock.Advance(2 * time.Minute)
	got, err := f.svc.Get(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != attempt.StatusExpired {
		t.Fatalf("status = %q, want expired", got.Status)
	}
	if !f.events.has("attempt.expired") {
		t.Fatalf("expected attempt.expired event")
	}

	if _, err := f.svc.RecordResponse(context.Background(), a.ID, "q2", attempt.Answer{SelectedOptions: []string{"q2a"}}); !errors.Is(err, attempt.ErrAttemptExpired) {
		t.Fatalf("answer after expiry: got %v, want ErrAttemptExpired", err)
	}
	if _, err := f.svc.Submit(context.Background(), a.ID); !errors.Is(err, attempt.ErrAttemptExpired) {
		t.Fatalf("submit after expiry: got %v, want ErrAttemptExpired", err)
	}
}

func TestReadPathsExpireOverdueAttempts(t *testing.T) {
	newOverdue := func(t *testing.T) (*fixture, attempt.Attempt) {
		asmt := basicAssessment()
		limit := 30
		asmt.TimeLimitMinutes = &limit
		f := newFixture(t, asmt)
		a := mustStart(t, f, "asmt-1", "u1")
		f.clock.Advance(31 * time.Minute)
		return f, a
	}
	check := func(t *testing.T, f *fixture, id string) {
		t.Helper()
		got, err := f.svc.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Status != attempt.StatusExpired {
			t.Fatalf("status = %q, want expired", got.Status)
		}
		if !f.events.has("attempt.expired") {
			t.Fatalf("expected attempt.expired event")
		}
	}

	t.Run("responses", func(t *testing.T) {
		f, a := newOverdue(t)
		if _, err := f.svc.ResponsesFor(context.Background(), a.ID); err != nil {
			t.Fatalf("responses: %v", err)
		}
		check(t, f, a.ID)
	})
	t.Run("aggregate", func(t *testing.T) {
		f, a := newOverdue(t)
		if _, err := f.svc.Aggregate(context.Background(), a.ID); err != nil {
			t.Fatalf("aggregate: %v", err)
		}
		check(t, f, a.ID)
	})
	t.Run("list", func(t *testing.T) {
		f, a := newOverdue(t)
		all, err := f.svc.List(context.Background(), attempt.ListOpts{AssessmentID: "asmt-1"})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(all) != 1 || all[0].Status != attempt.StatusExpired {
			t.Fatalf("listed attempt: %+v", all)
		}
		// A row that stops matching the status filter drops out.
		open, err := f.svc.List(context.Background(), attempt.ListOpts{Status: attempt.StatusInProgress})
		if err != nil {
			t.Fatalf("filtered list: %v", err)
		}
		if len(open) != 0 {
			t.Fatalf("overdue attempt still listed as in_progress: %+v", open)
		}
		check(t, f, a.ID)
	})
}

func TestExpiryExactlyAtDeadline(t *testing.T) {
	asmt := basicAssessment()
	limit := 30
	asmt.TimeLimitMinutes = &limit
	f := newFixture(t, asmt)
	a := mustStart(t, f, "asmt-1", "u1")

	f.clock.Advance(30 * time.Minute)
	got, err := f.svc.Get(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != attempt.StatusExpired {
		t.Fatalf("the deadline instant itself is expired; got %q", got.Status)
	}
}

func TestLateSubmissionPenalty(t *testing.T) {
	asmt := basicAssessment()
	due := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	asmt.DueDate = &due
	asmt.AllowLateSubmission = true
	asmt.LatePenaltyPercent = 10
	f := newFixture(t, asmt)
	a := mustStart(t, f, "asmt-1", "u1")

	answer(t, f, a.ID, "q1", attempt.Answer{SelectedOptions: []string{"q1a"}})
	answer(t, f, a.ID, "q2", attempt.Answer{SelectedOptions: []string{"q2b"}})

	f.clock.Advance(time.Hour) // past the due date
	got, err := f.svc.Submit(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !got.IsLate {
		t.Fatalf("expected is_late")
	}
	if got.Status != attempt.StatusLateSubmission {
		t.Fatalf("status = %q, want late_submission", got.Status)
	}
	// 50% raw, minus 10% of 50 = 45.
	if got.Percentage == nil || *got.Percentage != 45 {
		t.Fatalf("percentage = %v, want 45", got.Percentage)
	}
	if got.LatePenaltyApplied != 5 {
		t.Fatalf("penalty applied = %v, want 5", got.LatePenaltyApplied)
	}
	// Raw points are untouched; only the percentage is penalized.
	if got.Score == nil || *got.Score != 10 {
		t.Fatalf("score = %v, want 10", got.Score)
	}
}

func TestLateWithoutPenaltyConfigured(t *testing.T) {
	asmt := basicAssessment()
	due := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	asmt.DueDate = &due
	asmt.AllowLateSubmission = true // no penalty percent
	f := newFixture(t, asmt)
	a := mustStart(t, f, "asmt-1", "u1")
	answer(t, f, a.ID, "q1", attempt.Answer{SelectedOptions: []string{"q1a"}})
	answer(t, f, a.ID, "q2", attempt.Answer{SelectedOptions: []string{"q2a"}})

	f.clock.Advance(time.Hour)
	got, err := f.svc.Submit(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !got.IsLate {
		t.Fatalf("expected is_late")
	}
	if got.Status != attempt.StatusGraded {
		t.Fatalf("no deduction configured, so plain graded; got %q", got.Status)
	}
	if got.Percentage == nil || *got.Percentage != 100 {
		t.Fatalf("percentage = %v, want 100 untouched", got.Percentage)
	}
	if got.LatePenaltyApplied != 0 {
		t.Fatalf("penalty applied = %v, want 0", got.LatePenaltyApplied)
	}
}

func TestEssayNeedsGradingThenManualGrade(t *testing.T) {
	asmt := basicAssessment()
	asmt.Questions = append(asmt.Questions, catalog.Question{
		ID: "q3", Type: catalog.Essay, Points: 20, SortOrder: 2,
	})
	f := newFixture(t, asmt)
	a := mustStart(t, f, "asmt-1", "u1")
	answer(t, f, a.ID, "q1", attempt.Answer{SelectedOptions: []string{"q1a"}})
	answer(t, f, a.ID, "q2", attempt.Answer{SelectedOptions: []string{"q2a"}})
	answer(t, f, a.ID, "q3", attempt.Answer{TextResponse: "a thoughtful essay"})

	got, err := f.svc.Submit(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got.Status != attempt.StatusSubmitted {
		t.Fatalf("with a pending essay the attempt stays submitted; got %q", got.Status)
	}
	if !got.NeedsGrading {
		t.Fatalf("expected needs_grading")
	}
	// Partial totals cover the auto-graded subset only.
	if got.Score == nil || *got.Score != 20 {
		t.Fatalf("auto score = %v, want 20", got.Score)
	}
	if got.MaxScore == nil || *got.MaxScore != 40 {
		t.Fatalf("max score = %v, want 40", got.MaxScore)
	}
	if f.events.has("attempt.graded") {
		t.Fatalf("graded event must wait for manual grading")
	}

	got, err = f.svc.ApplyManualGrades(context.Background(), a.ID,
		map[string]attempt.ManualGradeInput{"q3": {Points: 15, Comment: "solid"}},
		"teacher-1", false)
	if err != nil {
		t.Fatalf("manual grade: %v", err)
	}
	if got.Status != attempt.StatusGraded {
		t.Fatalf("all slots scored, expected graded; got %q", got.Status)
	}
	if got.NeedsGrading {
		t.Fatalf("needs_grading must clear")
	}
	if got.Score == nil || *got.Score != 35 {
		t.Fatalf("score = %v, want 35", got.Score)
	}
	if got.Percentage == nil || *got.Percentage != 87.5 {
		t.Fatalf("percentage = %v, want 87.5", got.Percentage)
	}
	if !f.events.has("attempt.graded") {
		t.Fatalf("expected graded event after manual grading")
	}

	// The grader decision is recorded on the response.
	responses, err := f.svc.ResponsesFor(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("responses: %v", err)
	}
	for _, r := range responses {
		if r.QuestionID != "q3" {
			continue
		}
		if r.GradedBy != "teacher-1" || r.GradedAt == nil || r.GraderComment != "solid" {
			t.Fatalf("grader attribution missing: %+v", r)
		}
	}
}

func TestManualGradeClampsToQuestionPoints(t *testing.T) {
	asmt := basicAssessment()
	asmt.Questions = append(asmt.Questions, catalog.Question{
		ID: "q3", Type: catalog.Essay, Points: 20, SortOrder: 2,
	})
	f := newFixture(t, asmt)
	a := mustStart(t, f, "asmt-1", "u1")
	answer(t, f, a.ID, "q3", attempt.Answer{TextResponse: "x"})
	if _, err := f.svc.Submit(context.Background(), a.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	got, err := f.svc.ApplyManualGrades(context.Background(), a.ID,
		map[string]attempt.ManualGradeInput{"q3": {Points: 250}}, "teacher-1", false)
	if err != nil {
		t.Fatalf("manual grade: %v", err)
	}
	if got.Score == nil || *got.Score != 20 {
		t.Fatalf("score = %v, want clamped 20", got.Score)
	}

	if _, err := f.svc.ApplyManualGrades(context.Background(), a.ID,
		map[string]attempt.ManualGradeInput{"nope": {Points: 1}}, "teacher-1", false); !errors.Is(err, attempt.ErrNotFound) {
		t.Fatalf("unknown question: got %v, want ErrNotFound", err)
	}
}

func TestManualGradeOnInProgressIsInvalid(t *testing.T) {
	f := newFixture(t, basicAssessment())
	a := mustStart(t, f, "asmt-1", "u1")
	_, err := f.svc.ApplyManualGrades(context.Background(), a.ID,
		map[string]attempt.ManualGradeInput{"q1": {Points: 5}}, "teacher-1", false)
	if !errors.Is(err, attempt.ErrInvalidState) {
		t.Fatalf("got %v, want ErrInvalidState", err)
	}
}

func TestManualRegradeIsLastWriteWins(t *testing.T) {
	asmt := basicAssessment()
	asmt.Questions = []catalog.Question{{ID: "q1", Type: catalog.Essay, Points: 10, SortOrder: 0}}
	f := newFixture(t, asmt)
	a := mustStart(t, f, "asmt-1", "u1")
	answer(t, f, a.ID, "q1", attempt.Answer{TextResponse: "x"})
	if _, err := f.svc.Submit(context.Background(), a.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := f.svc.ApplyManualGrades(context.Background(), a.ID,
		map[string]attempt.ManualGradeInput{"q1": {Points: 4}}, "teacher-1", false); err != nil {
		t.Fatalf("first grade: %v", err)
	}
	got, err := f.svc.ApplyManualGrades(context.Background(), a.ID,
		map[string]attempt.ManualGradeInput{"q1": {Points: 8, Comment: "on review"}}, "teacher-2", false)
	if err != nil {
		t.Fatalf("regrade: %v", err)
	}
	if got.Score == nil || *got.Score != 8 {
		t.Fatalf("score = %v, want 8 after regrade", got.Score)
	}
	responses, _ := f.svc.ResponsesFor(context.Background(), a.ID)
	if len(responses) != 1 || responses[0].GradedBy != "teacher-2" {
		t.Fatalf("latest grader wins attribution: %+v", responses)
	}
}

func TestViolations(t *testing.T) {
	f := newFixture(t, basicAssessment())
	a := mustStart(t, f, "asmt-1", "u1")

	v, err := f.svc.AddViolation(context.Background(), a.ID, attempt.ViolationTabSwitch, "switched tab", nil)
	if err != nil {
		t.Fatalf("add violation: %v", err)
	}
	if v.Severity != attempt.SeverityLow {
		t.Fatalf("tab_switch severity = %q, want low", v.Severity)
	}
	if _, err := f.svc.AddViolation(context.Background(), a.ID, attempt.ViolationCopyPaste, "pasted", nil); err != nil {
		t.Fatalf("add violation: %v", err)
	}

	got, err := f.svc.Get(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Violations) != 2 {
		t.Fatalf("violations = %d, want 2", len(got.Violations))
	}
	if got.Violations[1].Severity != attempt.SeverityHigh {
		t.Fatalf("copy_paste severity = %q, want high", got.Violations[1].Severity)
	}
	if !f.events.has("attempt.violation") {
		t.Fatalf("expected violation event")
	}

	// Violations never block submission.
	if _, err := f.svc.Submit(context.Background(), a.ID); err != nil {
		t.Fatalf("submit with violations: %v", err)
	}
	// But a closed attempt takes no more.
	if _, err := f.svc.AddViolation(context.Background(), a.ID, attempt.ViolationWindowBlur, "", nil); !errors.Is(err, attempt.ErrInvalidState) {
		t.Fatalf("violation after submit: got %v, want ErrInvalidState", err)
	}
}

func TestRandomizedOrderStableAcrossReads(t *testing.T) {
	asmt := basicAssessment()
	asmt.RandomizeQuestions = true
	f := newFixture(t, asmt)
	a := mustStart(t, f, "asmt-1", "u1")

	if len(a.QuestionOrder) != 2 {
		t.Fatalf("expected a persisted order of 2 question IDs, got %v", a.QuestionOrder)
	}
	first, err := f.svc.Questions(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	second, err := f.svc.Questions(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("order changed between reads: %v vs %v", first, second)
		}
	}
	// Answer keys are never exposed through the attempt surface.
	for _, q := range first {
		for _, o := range q.Options {
			if o.IsCorrect {
				t.Fatalf("question %s leaked a correctness flag", q.ID)
			}
		}
	}
}

func TestAggregateIsIdempotent(t *testing.T) {
	f := newFixture(t, basicAssessment())
	a := mustStart(t, f, "asmt-1", "u1")
	answer(t, f, a.ID, "q1", attempt.Answer{SelectedOptions: []string{"q1a"}})
	if _, err := f.svc.Submit(context.Background(), a.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	first, err := f.svc.Aggregate(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	second, err := f.svc.Aggregate(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if first != second {
		t.Fatalf("aggregate drifted: %+v vs %+v", first, second)
	}
	if first.Score != 10 || first.MaxScore != 20 || first.Percentage != 50 {
		t.Fatalf("aggregate = %+v", first)
	}
}
