package submission

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mind-engage/testgrade/internal/db"
	"github.com/mind-engage/testgrade/internal/exam"
)

func record(student string, score float64) Record {
	yes, no := true, false
	start := time.Date(2024, 5, 1, 9, 0, 0, 123456789, time.UTC)
	return Record{
		StudentID:   student,
		StudentName: "Student " + student,
		TestID:      "t1",
		Score:       score,
		MaxAuto:     8,
		StartedAt:   start,
		SubmittedAt: start.Add(25 * time.Minute),
		Answers:     []interface{}{"B", "paris", nil},
		Results: []GradedItem{
			{Index: 0, Type: exam.TypeMultipleChoice, Marks: 5, Response: "B", Correct: &yes, Awarded: 5},
			{Index: 1, Type: exam.TypeFillInBlank, Marks: 3, Response: "paris", Correct: &no},
			{Index: 2, Type: exam.TypeFreeText, Marks: 10},
		},
	}
}

// testLog runs the behaviour every Log must share.
func testLog(t *testing.T, l Log) {
	ctx := context.Background()

	entries, err := l.ListAll(ctx, "t1")
	if err != nil || len(entries) != 0 {
		t.Fatalf("empty list: %v %v", entries, err)
	}

	id1, err := l.Append(ctx, "t1", record("s1", 5))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	// resubmission by the same student is a new entry
	id2, err := l.Append(ctx, "t1", record("s1", 8))
	if err != nil {
		t.Fatalf("append again: %v", err)
	}
	if id1 == "" || id1 == id2 {
		t.Fatalf("ids %q and %q", id1, id2)
	}
	if _, err := l.Append(ctx, "t2", record("s2", 0)); err != nil {
		t.Fatal(err)
	}

	entries, err = l.ListAll(ctx, "t1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Score < entries[j].Score })
	e := entries[0]
	if e.ID != id1 || e.StudentID != "s1" || e.StudentName != "Student s1" || e.MaxAuto != 8 {
		t.Fatalf("entry = %+v", e)
	}
	if !e.SubmittedAt.Equal(record("s1", 0).SubmittedAt) || !e.StartedAt.Equal(record("s1", 0).StartedAt) {
		t.Errorf("timestamps = %v / %v", e.StartedAt, e.SubmittedAt)
	}
	if len(e.Answers) != 3 || e.Answers[0] != "B" || e.Answers[2] != nil {
		t.Errorf("answers = %#v", e.Answers)
	}
	if len(e.Results) != 3 || e.Results[0].Correct == nil || !*e.Results[0].Correct || e.Results[2].Correct != nil {
		t.Errorf("results = %+v", e.Results)
	}

	others, _ := l.ListAll(ctx, "t2")
	if len(others) != 1 {
		t.Fatalf("t2 entries = %d", len(others))
	}
}

func testConcurrentAppends(t *testing.T, l Log) {
	const n = 25
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := l.Append(context.Background(), "busy", record(fmt.Sprintf("s%d", i), float64(i))); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("append: %v", err)
	}
	entries, err := l.ListAll(context.Background(), "busy")
	if err != nil || len(entries) != n {
		t.Fatalf("got %d entries (%v), want %d", len(entries), err, n)
	}
}

func TestMemoryLog(t *testing.T) {
	testLog(t, NewMemoryLog())
	testConcurrentAppends(t, NewMemoryLog())
}

func TestMemoryLog_CopiesRecords(t *testing.T) {
	l := NewMemoryLog()
	rec := record("s1", 5)
	if _, err := l.Append(context.Background(), "t1", rec); err != nil {
		t.Fatal(err)
	}
	rec.Answers[0] = "changed"
	entries, _ := l.ListAll(context.Background(), "t1")
	entries[0].Results[0].Awarded = 100

	again, _ := l.ListAll(context.Background(), "t1")
	if again[0].Answers[0] != "B" || again[0].Results[0].Awarded != 5 {
		t.Fatalf("stored record mutated: %+v", again[0])
	}
}

func openSQLite(t *testing.T) *SQLLog {
	t.Helper()
	conn, err := db.Open(context.Background(), db.DriverSQLite, "file:"+filepath.Join(t.TempDir(), "subs.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewSQLLog(conn)
}

func TestSQLLog(t *testing.T) {
	testLog(t, openSQLite(t))
	testConcurrentAppends(t, openSQLite(t))
}

func TestSQLLog_TimestampPrecision(t *testing.T) {
	l := openSQLite(t)
	ctx := context.Background()
	rec := record("s1", 5)
	rec.StartedAt = time.Time{}
	if _, err := l.Append(ctx, "t1", rec); err != nil {
		t.Fatal(err)
	}
	entries, err := l.ListAll(ctx, "t1")
	if err != nil || len(entries) != 1 {
		t.Fatalf("list: %v %v", entries, err)
	}
	if !entries[0].SubmittedAt.Equal(rec.SubmittedAt) || entries[0].SubmittedAt.Nanosecond() != 123456789 {
		t.Errorf("submittedAt = %v, want %v", entries[0].SubmittedAt, rec.SubmittedAt)
	}
	if !entries[0].StartedAt.IsZero() {
		t.Errorf("zero startedAt read back as %v", entries[0].StartedAt)
	}
}

func TestRedisLog(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	testLog(t, NewRedisLog(client))
	testConcurrentAppends(t, NewRedisLog(client))
}

func TestRedisLog_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	l := NewRedisLog(client)
	mr.Close()

	if _, err := l.Append(context.Background(), "t1", record("s1", 1)); !errors.Is(err, exam.ErrStoreUnavailable) {
		t.Fatalf("append: %v", err)
	}
	if _, err := l.ListAll(context.Background(), "t1"); !errors.Is(err, exam.ErrStoreUnavailable) {
		t.Fatalf("list: %v", err)
	}
}

func TestNewEntryID_Ordered(t *testing.T) {
	prev := ""
	for i := 0; i < 100; i++ {
		id, err := newEntryID()
		if err != nil {
			t.Fatal(err)
		}
		if id <= prev {
			t.Fatalf("%q not after %q", id, prev)
		}
		prev = id
	}
}
