package submission

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mind-engage/testgrade/internal/exam"
)

// SQLLog appends to the submissions table created by db.Open. Each append
// is a single INSERT keyed by a fresh entry id.
type SQLLog struct{ db *sql.DB }

func NewSQLLog(db *sql.DB) *SQLLog { return &SQLLog{db: db} }

func (l *SQLLog) Append(ctx context.Context, testID string, rec Record) (string, error) {
	id, err := newEntryID()
	if err != nil {
		return "", err
	}
	answers, err := json.Marshal(rec.Answers)
	if err != nil {
		return "", fmt.Errorf("encode answers: %w", err)
	}
	results, err := json.Marshal(rec.Results)
	if err != nil {
		return "", fmt.Errorf("encode results: %w", err)
	}
	_, err = l.db.ExecContext(ctx,
		`INSERT INTO submissions (entry_id, test_id, student_id, student_name, score, max_auto,
			started_at, submitted_at, answers_json, results_json)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		id, testID, rec.StudentID, rec.StudentName, rec.Score, rec.MaxAuto,
		toNanos(rec.StartedAt), toNanos(rec.SubmittedAt), string(answers), string(results))
	if err != nil {
		return "", exam.Unavailable("append submission", err)
	}
	return id, nil
}

func (l *SQLLog) ListAll(ctx context.Context, testID string) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT entry_id, test_id, student_id, student_name, score, max_auto,
			started_at, submitted_at, answers_json, results_json
		 FROM submissions WHERE test_id=$1`, testID)
	if err != nil {
		return nil, exam.Unavailable("list submissions", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var (
			e                   Entry
			started, submitted  int64
			answers, resultsRaw string
		)
		if err := rows.Scan(&e.ID, &e.TestID, &e.StudentID, &e.StudentName, &e.Score, &e.MaxAuto,
			&started, &submitted, &answers, &resultsRaw); err != nil {
			return nil, exam.Unavailable("list submissions", err)
		}
		e.StartedAt = fromNanos(started)
		e.SubmittedAt = fromNanos(submitted)
		if err := json.Unmarshal([]byte(answers), &e.Answers); err != nil {
			return nil, fmt.Errorf("decode answers of %s: %w", e.ID, err)
		}
		if err := json.Unmarshal([]byte(resultsRaw), &e.Results); err != nil {
			return nil, fmt.Errorf("decode results of %s: %w", e.ID, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, exam.Unavailable("list submissions", err)
	}
	return out, nil
}

// Timestamps are stored as Unix nanoseconds in UTC, 0 for the zero time.
func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
