package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// SQLStore persists assessments with the question set as a JSON column,
// matching the attempt store's driver (sqlite or postgres).
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

type SQLStoreOption func(*SQLStore)

func WithClock(now func() time.Time) SQLStoreOption { return func(s *SQLStore) { s.now = now } }

func NewSQLStore(db *sql.DB, opts ...SQLStoreOption) *SQLStore {
	s := &SQLStore{db: db, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *SQLStore) Put(ctx context.Context, a Assessment) error {
	if err := a.Validate(); err != nil {
		return err
	}
	qj, err := json.Marshal(a.Questions)
	if err != nil {
		return err
	}
	if a.CreatedAt == 0 {
		a.CreatedAt = s.now().Unix()
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO assessments
		(id,title,type,is_published,time_limit_minutes,max_attempts,passing_score,
		 randomize_questions,allow_late_submission,late_penalty_percent,
		 available_from,available_until,due_date,questions_json,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (id) DO UPDATE SET
		 title=EXCLUDED.title, type=EXCLUDED.type, is_published=EXCLUDED.is_published,
		 time_limit_minutes=EXCLUDED.time_limit_minutes, max_attempts=EXCLUDED.max_attempts,
		 passing_score=EXCLUDED.passing_score, randomize_questions=EXCLUDED.randomize_questions,
		 allow_late_submission=EXCLUDED.allow_late_submission,
		 late_penalty_percent=EXCLUDED.late_penalty_percent,
		 available_from=EXCLUDED.available_from, available_until=EXCLUDED.available_until,
		 due_date=EXCLUDED.due_date, questions_json=EXCLUDED.questions_json`,
		a.ID, a.Title, string(a.Type), a.IsPublished, a.TimeLimitMinutes,
		a.MaxAttempts, a.PassingScore, a.RandomizeQuestions, a.AllowLateSubmission,
		a.LatePenaltyPercent, unixPtr(a.AvailableFrom), unixPtr(a.AvailableUntil),
		unixPtr(a.DueDate), string(qj), a.CreatedAt)
	return err
}

func (s *SQLStore) Get(ctx context.Context, id string) (Assessment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,title,type,is_published,time_limit_minutes,
		max_attempts,passing_score,randomize_questions,allow_late_submission,
		late_penalty_percent,available_from,available_until,due_date,questions_json,created_at
		FROM assessments WHERE id=$1`, id)

	var a Assessment
	var typ, qjson string
	var from, until, due sql.NullInt64
	var limit sql.NullInt64
	if err := row.Scan(&a.ID, &a.Title, &typ, &a.IsPublished, &limit,
		&a.MaxAttempts, &a.PassingScore, &a.RandomizeQuestions, &a.AllowLateSubmission,
		&a.LatePenaltyPercent, &from, &until, &due, &qjson, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Assessment{}, ErrNotFound
		}
		return Assessment{}, err
	}
	a.Type = AssessmentType(typ)
	if limit.Valid {
		v := int(limit.Int64)
		a.TimeLimitMinutes = &v
	}
	a.AvailableFrom = timePtr(from)
	a.AvailableUntil = timePtr(until)
	a.DueDate = timePtr(due)
	if err := json.Unmarshal([]byte(qjson), &a.Questions); err != nil {
		return Assessment{}, err
	}
	return a, nil
}

func (s *SQLStore) QuestionsFor(ctx context.Context, assessmentID string) ([]Question, error) {
	a, err := s.Get(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	SortQuestions(a.Questions)
	return a.Questions, nil
}

func unixPtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}
