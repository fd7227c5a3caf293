package attempt

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SQLStore persists attempts and responses through database/sql; works
// against sqlite (offline/dev) and postgres with the same statements.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

const attemptCols = `id,assessment_id,user_id,attempt_number,status,started_at,submitted_at,
	time_spent_minutes,score,max_score,percentage,passed,grade,needs_grading,
	is_late,late_penalty_applied,question_order_json,violations_json`

func (s *SQLStore) Create(ctx context.Context, a Attempt) error {
	oj, vj, err := marshalAux(a)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO attempts (`+attemptCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		a.ID, a.AssessmentID, a.UserID, a.AttemptNumber, string(a.Status),
		a.StartedAt.Unix(), unixOrNil(a.SubmittedAt), a.TimeSpentMinutes,
		a.Score, a.MaxScore, a.Percentage, a.Passed, a.Grade, a.NeedsGrading,
		a.IsLate, a.LatePenaltyApplied, oj, vj)
	return err
}

func (s *SQLStore) Get(ctx context.Context, id string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM attempts WHERE id=$1`, id)
	a, err := scanAttempt(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, ErrNotFound
		}
		return Attempt{}, err
	}
	return a, nil
}

func (s *SQLStore) Update(ctx context.Context, a Attempt) error {
	oj, vj, err := marshalAux(a)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE attempts SET
		status=$1, submitted_at=$2, time_spent_minutes=$3, score=$4, max_score=$5,
		percentage=$6, passed=$7, grade=$8, needs_grading=$9, is_late=$10,
		late_penalty_applied=$11, question_order_json=$12, violations_json=$13
		WHERE id=$14`,
		string(a.Status), unixOrNil(a.SubmittedAt), a.TimeSpentMinutes,
		a.Score, a.MaxScore, a.Percentage, a.Passed, a.Grade, a.NeedsGrading,
		a.IsLate, a.LatePenaltyApplied, oj, vj, a.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) CountForUser(ctx context.Context, assessmentID, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attempts WHERE assessment_id=$1 AND user_id=$2`,
		assessmentID, userID).Scan(&n)
	return n, err
}

func (s *SQLStore) List(ctx context.Context, opts ListOpts) ([]Attempt, error) {
	where := make([]string, 0, 3)
	args := make([]interface{}, 0, 3)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if opts.AssessmentID != "" {
		add("assessment_id=$%d", opts.AssessmentID)
	}
	if opts.UserID != "" {
		add("user_id=$%d", opts.UserID)
	}
	if opts.Status != "" {
		add("status=$%d", string(opts.Status))
	}
	q := `SELECT ` + attemptCols + ` FROM attempts`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY started_at DESC, id DESC"
	limit := opts.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	args = append(args, limit)
	q += fmt.Sprintf(" LIMIT $%d", len(args))
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Attempt, 0)
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpsertResponse(ctx context.Context, r Response) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	sj, err := json.Marshal(emptyIfNil(r.SelectedOptions))
	if err != nil {
		return err
	}
	fj, err := json.Marshal(emptyIfNil(r.FileUploads))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO responses
		(id,attempt_id,question_id,selected_json,text_response,files_json,
		 points_earned,is_correct,time_spent_seconds,graded_by,graded_at,grader_comment)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (attempt_id,question_id) DO UPDATE SET
		 selected_json=EXCLUDED.selected_json, text_response=EXCLUDED.text_response,
		 files_json=EXCLUDED.files_json, points_earned=EXCLUDED.points_earned,
		 is_correct=EXCLUDED.is_correct, time_spent_seconds=EXCLUDED.time_spent_seconds,
		 graded_by=EXCLUDED.graded_by, graded_at=EXCLUDED.graded_at,
		 grader_comment=EXCLUDED.grader_comment`,
		r.ID, r.AttemptID, r.QuestionID, string(sj), r.TextResponse, string(fj),
		r.PointsEarned, r.IsCorrect, r.TimeSpentSeconds, r.GradedBy, unixOrNil(r.GradedAt),
		r.GraderComment)
	return err
}

func (s *SQLStore) ResponsesFor(ctx context.Context, attemptID string) ([]Response, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,attempt_id,question_id,selected_json,
		text_response,files_json,points_earned,is_correct,time_spent_seconds,graded_by,
		graded_at,grader_comment
		FROM responses WHERE attempt_id=$1 ORDER BY question_id`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Response, 0)
	for rows.Next() {
		var r Response
		var sj, fj string
		var pts sql.NullFloat64
		var correct sql.NullBool
		var gradedAt sql.NullInt64
		if err := rows.Scan(&r.ID, &r.AttemptID, &r.QuestionID, &sj, &r.TextResponse, &fj,
			&pts, &correct, &r.TimeSpentSeconds, &r.GradedBy, &gradedAt, &r.GraderComment); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(sj), &r.SelectedOptions); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(fj), &r.FileUploads); err != nil {
			return nil, err
		}
		if pts.Valid {
			v := pts.Float64
			r.PointsEarned = &v
		}
		if correct.Valid {
			v := correct.Bool
			r.IsCorrect = &v
		}
		if gradedAt.Valid {
			t := time.Unix(gradedAt.Int64, 0).UTC()
			r.GradedAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAttempt(row rowScanner) (Attempt, error) {
	var a Attempt
	var status string
	var startedAt int64
	var submittedAt sql.NullInt64
	var score, maxScore, pct sql.NullFloat64
	var passed sql.NullBool
	var grade sql.NullString
	var oj, vj string
	if err := row.Scan(&a.ID, &a.AssessmentID, &a.UserID, &a.AttemptNumber, &status,
		&startedAt, &submittedAt, &a.TimeSpentMinutes, &score, &maxScore, &pct,
		&passed, &grade, &a.NeedsGrading, &a.IsLate, &a.LatePenaltyApplied, &oj, &vj); err != nil {
		return Attempt{}, err
	}
	a.Status = Status(status)
	a.StartedAt = time.Unix(startedAt, 0).UTC()
	if submittedAt.Valid {
		t := time.Unix(submittedAt.Int64, 0).UTC()
		a.SubmittedAt = &t
	}
	if score.Valid {
		a.Score = &score.Float64
	}
	if maxScore.Valid {
		a.MaxScore = &maxScore.Float64
	}
	if pct.Valid {
		a.Percentage = &pct.Float64
	}
	if passed.Valid {
		a.Passed = &passed.Bool
	}
	if grade.Valid && grade.String != "" {
		a.Grade = &grade.String
	}
	if err := json.Unmarshal([]byte(oj), &a.QuestionOrder); err != nil {
		return Attempt{}, err
	}
	if err := json.Unmarshal([]byte(vj), &a.Violations); err != nil {
		return Attempt{}, err
	}
	return a, nil
}

func marshalAux(a Attempt) (orderJSON, violationsJSON string, err error) {
	oj, err := json.Marshal(emptyIfNil(a.QuestionOrder))
	if err != nil {
		return "", "", err
	}
	violations := a.Violations
	if violations == nil {
		violations = []Violation{}
	}
	vj, err := json.Marshal(violations)
	if err != nil {
		return "", "", err
	}
	return string(oj), string(vj), nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func unixOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Unix()
}
