package attempt

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/lumenlms/assessment-engine/internal/catalog"
	"github.com/lumenlms/assessment-engine/internal/grading"
)

// Enrollment is the eligibility fact supplied by the enrollment subsystem.
// The engine never queries enrollment storage directly.
type Enrollment interface {
	IsEnrolledAndActive(ctx context.Context, userID, assessmentID string) (bool, error)
}

// AllowAll accepts every (user, assessment) pair; the offline default.
type AllowAll struct{}

func (AllowAll) IsEnrolledAndActive(context.Context, string, string) (bool, error) {
	return true, nil
}

// Events receives attempt lifecycle records for external collaborators
// (notifier, certificates, reporting). Appends are best-effort.
type Events interface {
	Append(ctx context.Context, typ, key string, payload interface{}) error
}

// Service is the attempt state machine: eligibility, lazy time-limit
// enforcement, submission, grading, late penalty, violations. All transitions
// for one attempt are serialized through a per-key lock.
type Service struct {
	store   Store
	catalog catalog.Store
	grader  *grading.Grader
	enroll  Enrollment
	events  Events
	now     func() time.Time
	log     logrus.FieldLogger
	locks   keyedMutex
}

type ServiceOption func(*Service)

func WithClock(now func() time.Time) ServiceOption { return func(s *Service) { s.now = now } }
func WithEnrollment(e Enrollment) ServiceOption    { return func(s *Service) { s.enroll = e } }
func WithEvents(e Events) ServiceOption            { return func(s *Service) { s.events = e } }
func WithGrader(g *grading.Grader) ServiceOption   { return func(s *Service) { s.grader = g } }
func WithLogger(l logrus.FieldLogger) ServiceOption {
	return func(s *Service) { s.log = l }
}

func NewService(store Store, cat catalog.Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		catalog: cat,
		grader:  grading.New(),
		enroll:  AllowAll{},
		now:     time.Now,
		log:     logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start creates a new in-progress attempt if the assessment is currently
// available to the user and the attempt limit is not yet reached. No attempt
// row is created on failure.
func (s *Service) Start(ctx context.Context, assessmentID, userID string) (Attempt, error) {
	asmt, err := s.getAssessment(ctx, assessmentID)
	if err != nil {
		return Attempt{}, err
	}
	now := s.now()
	if !asmt.AvailableAt(now) {
		return Attempt{}, ErrAssessmentUnavailable
	}
	ok, err := s.enroll.IsEnrolledAndActive(ctx, userID, assessmentID)
	if err != nil {
		return Attempt{}, err
	}
	if !ok {
		return Attempt{}, ErrAssessmentUnavailable
	}

	// Serialize attempt numbering per (assessment, user) so simultaneous
	// starts cannot both pass the limit check.
	unlock := s.locks.lock("start|" + assessmentID + "|" + userID)
	defer unlock()

	prior, err := s.store.CountForUser(ctx, assessmentID, userID)
	if err != nil {
		return Attempt{}, err
	}
	if prior >= asmt.MaxAttempts {
		return Attempt{}, ErrAttemptLimitExceeded
	}

	a := Attempt{
		ID:            uuid.NewString(),
		AssessmentID:  assessmentID,
		UserID:        userID,
		AttemptNumber: prior + 1,
		Status:        StatusInProgress,
		StartedAt:     now,
	}
	if asmt.RandomizeQuestions {
		qs := append([]catalog.Question(nil), asmt.Questions...)
		catalog.SortQuestions(qs)
		a.QuestionOrder = catalog.ShuffleForAttempt(a.ID, qs)
	}
	if err := s.store.Create(ctx, a); err != nil {
		return Attempt{}, err
	}
	s.emit(ctx, "attempt.started", a.ID, map[string]interface{}{
		"assessment_id":  assessmentID,
		"user_id":        userID,
		"attempt_number": a.AttemptNumber,
	})
	return a, nil
}

// Get returns the attempt after the lazy time-limit check; reading an
// overdue in-progress attempt expires it as a side effect.
func (s *Service) Get(ctx context.Context, id string) (Attempt, error) {
	unlock := s.locks.lock(id)
	defer unlock()
	a, _, err := s.loadFresh(ctx, id)
	return a, err
}

// Questions returns the attempt's questions in its rendering order, with
// correctness flags stripped.
func (s *Service) Questions(ctx context.Context, attemptID string) ([]catalog.Question, error) {
	unlock := s.locks.lock(attemptID)
	defer unlock()
	a, asmt, err := s.loadFresh(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	qs := append([]catalog.Question(nil), asmt.Questions...)
	catalog.SortQuestions(qs)
	if len(a.QuestionOrder) > 0 {
		qs = catalog.OrderQuestions(a.QuestionOrder, qs)
	}
	return catalog.StripQuestions(qs), nil
}

// RecordResponse upserts the student's answer for one question while the
// attempt is open. Overwrite semantics; no response history is retained, and
// nothing is graded until submission.
func (s *Service) RecordResponse(ctx context.Context, attemptID, questionID string, ans Answer) (Response, error) {
	unlock := s.locks.lock(attemptID)
	defer unlock()
	a, asmt, err := s.loadFresh(ctx, attemptID)
	if err != nil {
		return Response{}, err
	}
	if err := requireInProgress(a); err != nil {
		return Response{}, err
	}
	if !questionInAssessment(asmt, questionID) {
		return Response{}, ErrNotFound
	}
	r := Response{
		ID:               uuid.NewString(),
		AttemptID:        attemptID,
		QuestionID:       questionID,
		SelectedOptions:  ans.SelectedOptions,
		TextResponse:     ans.TextResponse,
		FileUploads:      ans.FileUploads,
		TimeSpentSeconds: ans.TimeSpentSeconds,
	}
	if err := s.store.UpsertResponse(ctx, r); err != nil {
		return Response{}, err
	}
	return r, nil
}

// ResponsesFor lists the attempt's recorded responses. Reading counts as an
// access for the lazy time-limit check.
func (s *Service) ResponsesFor(ctx context.Context, attemptID string) ([]Response, error) {
	unlock := s.locks.lock(attemptID)
	defer unlock()
	if _, _, err := s.loadFresh(ctx, attemptID); err != nil {
		return nil, err
	}
	return s.store.ResponsesFor(ctx, attemptID)
}

// Submit closes the attempt, auto-grades every objectively gradable response
// and rolls the totals up synchronously. Late work is accepted and flagged;
// the penalty applies only when the assessment allows late submission with a
// configured deduction.
func (s *Service) Submit(ctx context.Context, attemptID string) (Attempt, error) {
	unlock := s.locks.lock(attemptID)
	defer unlock()
	a, asmt, err := s.loadFresh(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if err := requireInProgress(a); err != nil {
		return Attempt{}, err
	}

	now := s.now()
	a.SubmittedAt = &now
	a.TimeSpentMinutes = int(now.Sub(a.StartedAt).Minutes())
	a.Status = StatusSubmitted
	if asmt.DueDate != nil && now.After(*asmt.DueDate) {
		a.IsLate = true
	}

	qs := append([]catalog.Question(nil), asmt.Questions...)
	catalog.SortQuestions(qs)
	byID := make(map[string]catalog.Question, len(qs))
	for _, q := range qs {
		byID[q.ID] = q
	}

	responses, err := s.store.ResponsesFor(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	for i, r := range responses {
		q, ok := byID[r.QuestionID]
		if !ok {
			// Question removed from the assessment after it was answered;
			// the response no longer counts toward anything.
			continue
		}
		res := s.grader.Grade(q, grading.Answer{
			Selected: r.SelectedOptions,
			Text:     r.TextResponse,
			Files:    r.FileUploads,
		})
		if res.NeedsManual {
			continue
		}
		pts, correct := res.Points, res.Correct
		responses[i].PointsEarned = &pts
		responses[i].IsCorrect = &correct
		if err := s.store.UpsertResponse(ctx, responses[i]); err != nil {
			return Attempt{}, err
		}
	}

	s.finalize(&a, asmt, qs, responses, false)
	if err := s.store.Update(ctx, a); err != nil {
		return Attempt{}, err
	}
	s.emit(ctx, "attempt.submitted", a.ID, map[string]interface{}{
		"assessment_id": a.AssessmentID,
		"user_id":       a.UserID,
		"is_late":       a.IsLate,
	})
	if a.Status.Final() {
		s.emitGraded(ctx, a)
	}
	return a, nil
}

// ApplyManualGrades stores grader decisions for manually-graded questions and
// reruns aggregation. Conflicting grades are last-write-wins; graded_by and
// graded_at record who decided most recently. With finalize, a submitted
// attempt advances to its terminal graded state.
func (s *Service) ApplyManualGrades(ctx context.Context, attemptID string, updates map[string]ManualGradeInput, gradedBy string, finalize bool) (Attempt, error) {
	unlock := s.locks.lock(attemptID)
	defer unlock()
	a, asmt, err := s.loadFresh(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	switch a.Status {
	case StatusSubmitted, StatusGraded, StatusLateSubmission:
	default:
		return Attempt{}, ErrInvalidState
	}

	qs := append([]catalog.Question(nil), asmt.Questions...)
	catalog.SortQuestions(qs)
	byID := make(map[string]catalog.Question, len(qs))
	for _, q := range qs {
		byID[q.ID] = q
	}
	responses, err := s.store.ResponsesFor(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	byQ := make(map[string]Response, len(responses))
	for _, r := range responses {
		byQ[r.QuestionID] = r
	}

	now := s.now()
	for qid, in := range updates {
		q, ok := byID[qid]
		if !ok {
			return Attempt{}, ErrNotFound
		}
		r, ok := byQ[qid]
		if !ok {
			r = Response{ID: uuid.NewString(), AttemptID: attemptID, QuestionID: qid}
		}
		pts := in.Points
		if pts < 0 {
			pts = 0
		}
		if pts > q.Points {
			s.log.WithFields(logrus.Fields{
				"attempt_id":  attemptID,
				"question_id": qid,
				"points":      in.Points,
				"max":         q.Points,
			}).Warn("manual grade exceeds question points; clamping")
			pts = q.Points
		}
		r.PointsEarned = &pts
		r.GradedBy = gradedBy
		r.GradedAt = &now
		r.GraderComment = in.Comment
		if err := s.store.UpsertResponse(ctx, r); err != nil {
			return Attempt{}, err
		}
		byQ[qid] = r
	}

	refreshed, err := s.store.ResponsesFor(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	s.finalize(&a, asmt, qs, refreshed, finalize)
	if err := s.store.Update(ctx, a); err != nil {
		return Attempt{}, err
	}
	if a.Status.Final() {
		s.emitGraded(ctx, a)
	}
	return a, nil
}

// AddViolation appends a proctoring violation to an in-progress attempt.
// Violations never block submission; they are advisory data for human review.
func (s *Service) AddViolation(ctx context.Context, attemptID string, typ ViolationType, description string, at *time.Time) (Violation, error) {
	unlock := s.locks.lock(attemptID)
	defer unlock()
	a, _, err := s.loadFresh(ctx, attemptID)
	if err != nil {
		return Violation{}, err
	}
	if err := requireInProgress(a); err != nil {
		return Violation{}, err
	}
	when := s.now()
	if at != nil {
		when = *at
	}
	v := Violation{
		Type:        typ,
		Description: description,
		Timestamp:   when,
		Severity:    SeverityFor(typ),
	}
	a.Violations = append(a.Violations, v)
	if err := s.store.Update(ctx, a); err != nil {
		return Violation{}, err
	}
	s.emit(ctx, "attempt.violation", a.ID, v)
	return v, nil
}

// Aggregate re-derives the attempt's totals from current questions and
// responses without mutating anything. Idempotent by construction.
func (s *Service) Aggregate(ctx context.Context, attemptID string) (Aggregate, error) {
	unlock := s.locks.lock(attemptID)
	defer unlock()
	a, asmt, err := s.loadFresh(ctx, attemptID)
	if err != nil {
		return Aggregate{}, err
	}
	responses, err := s.store.ResponsesFor(ctx, attemptID)
	if err != nil {
		return Aggregate{}, err
	}
	qs, err := s.catalog.QuestionsFor(ctx, a.AssessmentID)
	if err != nil {
		return Aggregate{}, err
	}
	return aggregate(qs, responses, asmt.PassingScore), nil
}

// List returns attempts matching the filters, most recently started first.
// Listing is an access too: overdue in-progress rows expire on the way out,
// and a row that stops matching the status filter is dropped.
func (s *Service) List(ctx context.Context, opts ListOpts) ([]Attempt, error) {
	attempts, err := s.store.List(ctx, opts)
	if err != nil {
		return nil, err
	}
	out := attempts[:0]
	for _, a := range attempts {
		if a.Status == StatusInProgress {
			fresh, err := s.Get(ctx, a.ID)
			if err != nil {
				return nil, err
			}
			a = fresh
		}
		if opts.Status != "" && a.Status != opts.Status {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// ---- internals ----

// loadFresh fetches the attempt and applies the lazy time-limit check: an
// in-progress attempt past its deadline transitions to expired before the
// caller's operation proceeds. No background timer drives expiry.
func (s *Service) loadFresh(ctx context.Context, id string) (Attempt, catalog.Assessment, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return Attempt{}, catalog.Assessment{}, err
	}
	asmt, err := s.getAssessment(ctx, a.AssessmentID)
	if err != nil {
		return Attempt{}, catalog.Assessment{}, err
	}
	if a.Status == StatusInProgress && asmt.TimeLimitMinutes != nil {
		deadline := a.StartedAt.Add(time.Duration(*asmt.TimeLimitMinutes) * time.Minute)
		if !s.now().Before(deadline) {
			a.Status = StatusExpired
			if err := s.store.Update(ctx, a); err != nil {
				return Attempt{}, catalog.Assessment{}, err
			}
			s.emit(ctx, "attempt.expired", a.ID, map[string]interface{}{
				"assessment_id": a.AssessmentID,
				"user_id":       a.UserID,
			})
		}
	}
	return a, asmt, nil
}

// finalize recomputes scoring on the attempt in place. Always derived from
// scratch: re-running it on unchanged data yields identical results.
func (s *Service) finalize(a *Attempt, asmt catalog.Assessment, qs []catalog.Question, responses []Response, finalizeRequested bool) {
	agg := aggregate(qs, responses, asmt.PassingScore)
	pct := agg.Percentage
	a.NeedsGrading = agg.NeedsGrading
	a.LatePenaltyApplied = 0
	penalized := false
	if a.IsLate && asmt.AllowLateSubmission && asmt.LatePenaltyPercent > 0 {
		pct, a.LatePenaltyApplied = applyLatePenalty(pct, asmt.LatePenaltyPercent)
		penalized = true
	}
	score, maxScore := agg.Score, agg.MaxScore
	passed := pct >= asmt.PassingScore
	letter := gradeLetter(pct)
	a.Score = &score
	a.MaxScore = &maxScore
	a.Percentage = &pct
	a.Passed = &passed
	a.Grade = &letter

	if a.Status == StatusSubmitted && (finalizeRequested || !agg.NeedsGrading) {
		if penalized {
			a.Status = StatusLateSubmission
		} else {
			a.Status = StatusGraded
		}
	}
}

func (s *Service) getAssessment(ctx context.Context, id string) (catalog.Assessment, error) {
	asmt, err := s.catalog.Get(ctx, id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return catalog.Assessment{}, ErrNotFound
		}
		return catalog.Assessment{}, err
	}
	return asmt, nil
}

func (s *Service) emit(ctx context.Context, typ, key string, payload interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Append(ctx, typ, key, payload); err != nil {
		s.log.WithError(err).WithField("event", typ).Warn("event append failed")
	}
}

func (s *Service) emitGraded(ctx context.Context, a Attempt) {
	payload := map[string]interface{}{
		"assessment_id": a.AssessmentID,
		"user_id":       a.UserID,
	}
	if a.Percentage != nil {
		payload["percentage"] = *a.Percentage
	}
	if a.Passed != nil {
		payload["passed"] = *a.Passed
	}
	s.emit(ctx, "attempt.graded", a.ID, payload)
}

func requireInProgress(a Attempt) error {
	switch a.Status {
	case StatusInProgress:
		return nil
	case StatusExpired:
		return ErrAttemptExpired
	default:
		return ErrInvalidState
	}
}

func questionInAssessment(asmt catalog.Assessment, questionID string) bool {
	for _, q := range asmt.Questions {
		if q.ID == questionID {
			return true
		}
	}
	return false
}

// keyedMutex serializes operations per key (attempt ID, or user+assessment
// for starts) without holding a global lock across store calls.
type keyedMutex struct {
	mu sync.Mutex
	m  map[string]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.m == nil {
		k.m = map[string]*keyedLock{}
	}
	l, ok := k.m[key]
	if !ok {
		l = &keyedLock{}
		k.m[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.m, key)
		}
		k.mu.Unlock()
	}
}
