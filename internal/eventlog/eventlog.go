// Package eventlog is the engine's only outbound surface: an append-only log
// of attempt lifecycle records that external notifier, certificate and
// reporting systems consume. The engine itself sends no notifications.
package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

type Event struct {
	Offset    int64
	Type      string // e.g. attempt.submitted
	Key       string // natural key: attempt ID
	DataJSON  string
	CreatedAt int64
}

type Repo struct {
	db  *sql.DB
	now func() time.Time
}

type RepoOption func(*Repo)

func WithClock(now func() time.Time) RepoOption { return func(r *Repo) { r.now = now } }

func NewRepo(db *sql.DB, opts ...RepoOption) *Repo {
	r := &Repo{db: db, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Append serializes the payload and appends one event row.
func (r *Repo) Append(ctx context.Context, typ, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO event_log (typ, key, data, created_at) VALUES ($1,$2,$3,$4)`,
		typ, key, string(data), r.now().Unix())
	return err
}

// Since returns events after the given offset, oldest first, for pollers.
func (r *Repo) Since(ctx context.Context, offset int64, limit int) ([]Event, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT "offset", typ, key, data, created_at FROM event_log
		 WHERE "offset" > $1 ORDER BY "offset" ASC LIMIT $2`, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Event, 0, limit)
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Offset, &e.Type, &e.Key, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
