package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"careerwatch/internal/domain"
)

// fixed width so stored timestamps sort and compare as text
const tsLayout = "2006-01-02T15:04:05.000Z"

func formatTS(t time.Time) string { return t.UTC().Format(tsLayout) }

func parseTS(s string) time.Time {
	t, err := time.Parse(tsLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

// Run is one poll cycle as recorded in the history database.
type Run struct {
	ID          int64     `json:"id"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
	Source      string    `json:"source"`
	OK          bool      `json:"ok"`
	Error       string    `json:"error,omitempty"`
	NotifyError string    `json:"notifyError,omitempty"`
	Postings    int       `json:"postings"`
	Added       int       `json:"added"`
	Removed     int       `json:"removed"`
}

// PostingRecord tracks when a title was first and last seen.
type PostingRecord struct {
	Title      string     `json:"title"`
	Department string     `json:"department"`
	URL        string     `json:"url"`
	FirstSeen  time.Time  `json:"firstSeen"`
	LastSeen   time.Time  `json:"lastSeen"`
	RemovedAt  *time.Time `json:"removedAt,omitempty"`
}

func RecordRun(ctx context.Context, db *sql.DB, r Run) (int64, error) {
	ok := 0
	if r.OK {
		ok = 1
	}
	res, err := db.ExecContext(ctx, `
INSERT INTO runs (started_at, finished_at, source, ok, error, notify_error, postings, added, removed)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		formatTS(r.StartedAt), formatTS(r.FinishedAt), r.Source, ok, r.Error, r.NotifyError,
		r.Postings, r.Added, r.Removed,
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, _ := res.LastInsertId()
	return id, nil
}

// RecordSnapshot upserts every posting in snap as seen at snap.CapturedAt and
// marks open postings missing from snap as removed. A title that reappears is
// reopened and keeps its original first_seen.
func RecordSnapshot(ctx context.Context, db *sql.DB, snap domain.Snapshot) error {
	ts := formatTS(snap.CapturedAt)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO postings (title, department, url, first_seen, last_seen, removed_at)
VALUES (?, ?, ?, ?, ?, NULL)
ON CONFLICT(title) DO UPDATE SET
  department = excluded.department,
  url = excluded.url,
  last_seen = excluded.last_seen,
  removed_at = NULL;`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range snap.Postings {
		if _, err := stmt.ExecContext(ctx, p.Title, p.Department, p.URL, ts, ts); err != nil {
			return fmt.Errorf("upsert posting %q: %w", p.Title, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE postings
SET removed_at = ?
WHERE removed_at IS NULL AND last_seen <> ?;`, ts, ts); err != nil {
		return fmt.Errorf("mark removed: %w", err)
	}

	return tx.Commit()
}

func RecentRuns(ctx context.Context, db *sql.DB, limit int) ([]Run, error) {
	if limit <= 0 || limit > 1000 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx, `
SELECT id, started_at, finished_at, source, ok, error, notify_error, postings, added, removed
FROM runs
ORDER BY id DESC
LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started, finished string
		var ok int
		if err := rows.Scan(&r.ID, &started, &finished, &r.Source, &ok, &r.Error, &r.NotifyError,
			&r.Postings, &r.Added, &r.Removed); err != nil {
			return nil, err
		}
		r.StartedAt = parseTS(started)
		r.FinishedAt = parseTS(finished)
		r.OK = ok != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListPostings returns tracked postings, newest first. Removed postings are
// included only when includeRemoved is set.
func ListPostings(ctx context.Context, db *sql.DB, includeRemoved bool) ([]PostingRecord, error) {
	where := "WHERE removed_at IS NULL"
	if includeRemoved {
		where = ""
	}
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`
SELECT title, department, url, first_seen, last_seen, removed_at
FROM postings
%s
ORDER BY first_seen DESC, title ASC;`, where))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PostingRecord
	for rows.Next() {
		var p PostingRecord
		var first, last string
		var removed sql.NullString
		if err := rows.Scan(&p.Title, &p.Department, &p.URL, &first, &last, &removed); err != nil {
			return nil, err
		}
		p.FirstSeen = parseTS(first)
		p.LastSeen = parseTS(last)
		if removed.Valid {
			t := parseTS(removed.String)
			p.RemovedAt = &t
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// History binds the history queries to an open database for the poller.
type History struct {
	DB *sql.DB
}

func (h History) RecordRun(ctx context.Context, r Run) error {
	_, err := RecordRun(ctx, h.DB, r)
	return err
}

func (h History) RecordSnapshot(ctx context.Context, snap domain.Snapshot) error {
	return RecordSnapshot(ctx, h.DB, snap)
}
