package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// SQLStore keeps definitions in the tests table created by db.Open. The
// question list is stored as a JSON column so order survives round trips.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Save(ctx context.Context, d Definition) error {
	if err := Validate(d); err != nil {
		return err
	}
	d = d.Normalized()
	qj, err := json.Marshal(d.Questions)
	if err != nil {
		return &InvalidDefinitionError{TestID: d.TestID, Field: "questions", Reason: err.Error()}
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO tests (id,title,duration,questions_json,updated_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, duration=EXCLUDED.duration,
			questions_json=EXCLUDED.questions_json, updated_at=EXCLUDED.updated_at`,
		d.TestID, d.Title, d.Duration, string(qj), time.Now().UnixMilli())
	if err != nil {
		return Unavailable("save test", err)
	}
	return nil
}

func (s *SQLStore) Load(ctx context.Context, testID string) (Definition, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,title,duration,questions_json FROM tests WHERE id=$1`, testID)
	var d Definition
	var qjson string
	if err := row.Scan(&d.TestID, &d.Title, &d.Duration, &qjson); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Definition{}, false, nil
		}
		return Definition{}, false, Unavailable("load test", err)
	}
	if err := json.Unmarshal([]byte(qjson), &d.Questions); err != nil {
		return Definition{}, false, &InvalidDefinitionError{TestID: testID, Field: "questions", Reason: "must be a sequence"}
	}
	return d, true, nil
}
