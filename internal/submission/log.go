package submission

import (
	"context"

	"github.com/google/uuid"

	"github.com/mind-engage/testgrade/internal/exam"
)

// Log is an append-only collection of records per test.
type Log interface {
	// Append stores rec under a fresh entry id and returns that id. It never
	// overwrites an existing entry.
	Append(ctx context.Context, testID string, rec Record) (string, error)
	// ListAll returns every entry for testID in no particular order.
	ListAll(ctx context.Context, testID string) ([]Entry, error)
}

// newEntryID returns a time-ordered unique id.
func newEntryID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", exam.Unavailable("entry id", err)
	}
	return id.String(), nil
}
