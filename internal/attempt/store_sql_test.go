package attempt_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/lumenlms/assessment-engine/internal/attempt"
	"github.com/lumenlms/assessment-engine/internal/db"
)

var sqlDBSeq int

func openTestStore(t *testing.T) *attempt.SQLStore {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sqlDBSeq++
	dsn := fmt.Sprintf("file:attempt_test_%d.db?mode=memory&cache=shared", sqlDBSeq)
	dbh, err := db.Open(ctx, db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })

	// Satisfy the FK on attempts.assessment_id.
	if _, err := dbh.Exec(`INSERT INTO assessments
		(id, title, type, is_published, max_attempts, passing_score, questions_json, created_at)
		VALUES ('asmt-1', 'Quiz', 'quiz', TRUE, 3, 70, '[]', 0)`); err != nil {
		t.Fatalf("seed assessment: %v", err)
	}
	return attempt.NewSQLStore(dbh)
}

func TestSQLStoreAttemptRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	started := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	a := attempt.Attempt{
		ID:            "att-1",
		AssessmentID:  "asmt-1",
		UserID:        "u1",
		AttemptNumber: 1,
		Status:        attempt.StatusInProgress,
		StartedAt:     started,
		QuestionOrder: []string{"q2", "q1"},
	}
	if err := st.Create(ctx, a); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := st.Get(ctx, "att-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != attempt.StatusInProgress || got.AttemptNumber != 1 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if !got.StartedAt.Equal(started) {
		t.Fatalf("started_at = %v, want %v", got.StartedAt, started)
	}
	if len(got.QuestionOrder) != 2 || got.QuestionOrder[0] != "q2" {
		t.Fatalf("question order = %v", got.QuestionOrder)
	}
	if got.Score != nil || got.SubmittedAt != nil {
		t.Fatalf("nullable fields must come back nil: %+v", got)
	}
}

func TestSQLStoreUpdatePersistsScoring(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	a := attempt.Attempt{
		ID: "att-1", AssessmentID: "asmt-1", UserID: "u1", AttemptNumber: 1,
		Status: attempt.StatusInProgress, StartedAt: time.Unix(1700000000, 0).UTC(),
	}
	if err := st.Create(ctx, a); err != nil {
		t.Fatalf("create: %v", err)
	}

	submitted := time.Unix(1700000600, 0).UTC()
	score, maxScore, pct := 18.0, 20.0, 90.0
	passed := true
	grade := "A"
	a.Status = attempt.StatusGraded
	a.SubmittedAt = &submitted
	a.TimeSpentMinutes = 10
	a.Score, a.MaxScore, a.Percentage = &score, &maxScore, &pct
	a.Passed, a.Grade = &passed, &grade
	a.Violations = []attempt.Violation{{
		Type: attempt.ViolationTabSwitch, Severity: attempt.SeverityLow,
		Timestamp: submitted,
	}}
	if err := st.Update(ctx, a); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := st.Get(ctx, "att-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != attempt.StatusGraded || got.Score == nil || *got.Score != 18 {
		t.Fatalf("scoring not persisted: %+v", got)
	}
	if got.Grade == nil || *got.Grade != "A" || got.Passed == nil || !*got.Passed {
		t.Fatalf("grade/passed not persisted: %+v", got)
	}
	if got.SubmittedAt == nil || !got.SubmittedAt.Equal(submitted) {
		t.Fatalf("submitted_at = %v", got.SubmittedAt)
	}
	if len(got.Violations) != 1 || got.Violations[0].Type != attempt.ViolationTabSwitch {
		t.Fatalf("violations = %+v", got.Violations)
	}
}

func TestSQLStoreGetAndUpdateMissing(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if _, err := st.Get(ctx, "nope"); err != attempt.ErrNotFound {
		t.Fatalf("get missing: got %v, want ErrNotFound", err)
	}
	err := st.Update(ctx, attempt.Attempt{ID: "nope", Status: attempt.StatusGraded})
	if err != attempt.ErrNotFound {
		t.Fatalf("update missing: got %v, want ErrNotFound", err)
	}
}

func TestSQLStoreUniqueAttemptNumber(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	base := attempt.Attempt{
		AssessmentID: "asmt-1", UserID: "u1", AttemptNumber: 1,
		Status: attempt.StatusInProgress, StartedAt: time.Unix(1700000000, 0).UTC(),
	}
	first := base
	first.ID = "att-1"
	if err := st.Create(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := base
	dup.ID = "att-2"
	if err := st.Create(ctx, dup); err == nil {
		t.Fatalf("expected unique violation on (assessment,user,number)")
	}
}

func TestSQLStoreCountAndList(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		a := attempt.Attempt{
			ID: fmt.Sprintf("att-%d", i), AssessmentID: "asmt-1", UserID: "u1",
			AttemptNumber: i, Status: attempt.StatusInProgress,
			StartedAt: time.Unix(int64(1700000000+i*60), 0).UTC(),
		}
		if i == 3 {
			a.UserID = "u2"
			a.AttemptNumber = 1
			a.Status = attempt.StatusGraded
		}
		if err := st.Create(ctx, a); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	n, err := st.CountForUser(ctx, "asmt-1", "u1")
	if err != nil || n != 2 {
		t.Fatalf("count = %d err=%v, want 2", n, err)
	}

	all, err := st.List(ctx, attempt.ListOpts{AssessmentID: "asmt-1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("list all = %d, want 3", len(all))
	}
	// Most recently started first.
	if all[0].ID != "att-3" {
		t.Fatalf("ordering: first = %s, want att-3", all[0].ID)
	}

	graded, err := st.List(ctx, attempt.ListOpts{Status: attempt.StatusGraded})
	if err != nil || len(graded) != 1 || graded[0].UserID != "u2" {
		t.Fatalf("status filter: %v err=%v", graded, err)
	}

	page, err := st.List(ctx, attempt.ListOpts{AssessmentID: "asmt-1", Limit: 1, Offset: 1})
	if err != nil || len(page) != 1 || page[0].ID != "att-2" {
		t.Fatalf("pagination: %v err=%v", page, err)
	}
}

func TestSQLStoreResponseUpsert(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	a := attempt.Attempt{
		ID: "att-1", AssessmentID: "asmt-1", UserID: "u1", AttemptNumber: 1,
		Status: attempt.StatusInProgress, StartedAt: time.Unix(1700000000, 0).UTC(),
	}
	if err := st.Create(ctx, a); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := st.UpsertResponse(ctx, attempt.Response{
		AttemptID: "att-1", QuestionID: "q1",
		SelectedOptions: []string{"a"}, TimeSpentSeconds: 30,
	}); err != nil {
		t.Fatalf("insert response: %v", err)
	}
	// Second write for the same question overwrites in place.
	pts := 7.5
	correct := true
	gradedAt := time.Unix(1700000700, 0).UTC()
	if err := st.UpsertResponse(ctx, attempt.Response{
		AttemptID: "att-1", QuestionID: "q1",
		SelectedOptions: []string{"b"}, TimeSpentSeconds: 45,
		PointsEarned: &pts, IsCorrect: &correct,
		GradedBy: "teacher-1", GradedAt: &gradedAt, GraderComment: "partial",
	}); err != nil {
		t.Fatalf("upsert response: %v", err)
	}

	out, err := st.ResponsesFor(ctx, "att-1")
	if err != nil {
		t.Fatalf("responses: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 response, got %d", len(out))
	}
	r := out[0]
	if len(r.SelectedOptions) != 1 || r.SelectedOptions[0] != "b" {
		t.Fatalf("selected = %v, want [b]", r.SelectedOptions)
	}
	if r.PointsEarned == nil || *r.PointsEarned != 7.5 || r.IsCorrect == nil || !*r.IsCorrect {
		t.Fatalf("grading fields: %+v", r)
	}
	if r.GradedBy != "teacher-1" || r.GradedAt == nil || !r.GradedAt.Equal(gradedAt) || r.GraderComment != "partial" {
		t.Fatalf("grader attribution: %+v", r)
	}
	if r.TimeSpentSeconds != 45 {
		t.Fatalf("time spent = %d, want 45", r.TimeSpentSeconds)
	}
}
