package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:assessd.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/assessd?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	if err := ensureSchema(ctx, db, driver); err != nil {
		return nil, err
	}
	return db, nil
}

func ensureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS assessments (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  type TEXT NOT NULL,
  is_published BOOLEAN NOT NULL DEFAULT FALSE,
  time_limit_minutes INTEGER,
  max_attempts INTEGER NOT NULL DEFAULT 1,
  passing_score REAL NOT NULL DEFAULT 0,
  randomize_questions BOOLEAN NOT NULL DEFAULT FALSE,
  allow_late_submission BOOLEAN NOT NULL DEFAULT FALSE,
  late_penalty_percent REAL NOT NULL DEFAULT 0,
  available_from BIGINT,
  available_until BIGINT,
  due_date BIGINT,
  questions_json TEXT NOT NULL,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS attempts (
  id TEXT PRIMARY KEY,
  assessment_id TEXT NOT NULL REFERENCES assessments(id) ON DELETE CASCADE,
  user_id TEXT NOT NULL,
  attempt_number INTEGER NOT NULL,
  status TEXT NOT NULL,
  started_at BIGINT NOT NULL,
  submitted_at BIGINT,
  time_spent_minutes INTEGER NOT NULL DEFAULT 0,
  score REAL,
  max_score REAL,
  percentage REAL,
  passed BOOLEAN,
  grade TEXT,
  needs_grading BOOLEAN NOT NULL DEFAULT FALSE,
  is_late BOOLEAN NOT NULL DEFAULT FALSE,
  late_penalty_applied REAL NOT NULL DEFAULT 0,
  question_order_json TEXT NOT NULL DEFAULT '[]',
  violations_json TEXT NOT NULL DEFAULT '[]',
  UNIQUE (assessment_id, user_id, attempt_number)
);

CREATE TABLE IF NOT EXISTS responses (
  id TEXT PRIMARY KEY,
  attempt_id TEXT NOT NULL REFERENCES attempts(id) ON DELETE CASCADE,
  question_id TEXT NOT NULL,
  selected_json TEXT NOT NULL DEFAULT '[]',
  text_response TEXT NOT NULL DEFAULT '',
  files_json TEXT NOT NULL DEFAULT '[]',
  points_earned REAL,
  is_correct BOOLEAN,
  time_spent_seconds INTEGER NOT NULL DEFAULT 0,
  graded_by TEXT NOT NULL DEFAULT '',
  graded_at BIGINT,
  grader_comment TEXT NOT NULL DEFAULT '',
  UNIQUE (attempt_id, question_id)
);

CREATE TABLE IF NOT EXISTS event_log (
  "offset" INTEGER PRIMARY KEY AUTOINCREMENT, -- BIGSERIAL in Postgres
  typ TEXT NOT NULL,                        -- e.g. attempt.submitted
  key TEXT NOT NULL,                        -- natural key: attempt ID
  data TEXT NOT NULL,                       -- JSON payload
  created_at BIGINT NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS assessments (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  type TEXT NOT NULL,
  is_published BOOLEAN NOT NULL DEFAULT FALSE,
  time_limit_minutes INTEGER,
  max_attempts INTEGER NOT NULL DEFAULT 1,
  passing_score DOUBLE PRECISION NOT NULL DEFAULT 0,
  randomize_questions BOOLEAN NOT NULL DEFAULT FALSE,
  allow_late_submission BOOLEAN NOT NULL DEFAULT FALSE,
  late_penalty_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
  available_from BIGINT,
  available_until BIGINT,
  due_date BIGINT,
  questions_json TEXT NOT NULL,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS attempts (
  id TEXT PRIMARY KEY,
  assessment_id TEXT NOT NULL REFERENCES assessments(id) ON DELETE CASCADE,
  user_id TEXT NOT NULL,
  attempt_number INTEGER NOT NULL,
  status TEXT NOT NULL,
  started_at BIGINT NOT NULL,
  submitted_at BIGINT,
  time_spent_minutes INTEGER NOT NULL DEFAULT 0,
  score DOUBLE PRECISION,
  max_score DOUBLE PRECISION,
  percentage DOUBLE PRECISION,
  passed BOOLEAN,
  grade TEXT,
  needs_grading BOOLEAN NOT NULL DEFAULT FALSE,
  is_late BOOLEAN NOT NULL DEFAULT FALSE,
  late_penalty_applied DOUBLE PRECISION NOT NULL DEFAULT 0,
  question_order_json TEXT NOT NULL DEFAULT '[]',
  violations_json TEXT NOT NULL DEFAULT '[]',
  UNIQUE (assessment_id, user_id, attempt_number)
);

CREATE TABLE IF NOT EXISTS responses (
  id TEXT PRIMARY KEY,
  attempt_id TEXT NOT NULL REFERENCES attempts(id) ON DELETE CASCADE,
  question_id TEXT NOT NULL,
  selected_json TEXT NOT NULL DEFAULT '[]',
  text_response TEXT NOT NULL DEFAULT '',
  files_json TEXT NOT NULL DEFAULT '[]',
  points_earned DOUBLE PRECISION,
  is_correct BOOLEAN,
  time_spent_seconds INTEGER NOT NULL DEFAULT 0,
  graded_by TEXT NOT NULL DEFAULT '',
  graded_at BIGINT,
  grader_comment TEXT NOT NULL DEFAULT '',
  UNIQUE (attempt_id, question_id)
);

CREATE TABLE IF NOT EXISTS event_log (
  "offset" BIGSERIAL PRIMARY KEY,
  typ TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at BIGINT NOT NULL
);
`
