package exam

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mind-engage/testgrade/internal/db"
)

func sample(id string) Definition {
	return Definition{
		TestID:   id,
		Title:    "Quiz",
		Duration: 20,
		Questions: []Question{
			{Type: TypeMultipleChoice, Text: "2+2", Options: []string{"3", "4"}, Marks: 5, AnswerKey: "4"},
			{Type: TypeFillInBlank, Marks: 3, AnswerKey: "Paris"},
			{Type: TypeFreeText, Marks: 10},
		},
	}
}

// testStore runs the behaviour every Store must share.
func testStore(t *testing.T, s Store) {
	ctx := context.Background()

	if _, ok, err := s.Load(ctx, "missing"); err != nil || ok {
		t.Fatalf("load missing: ok=%v err=%v", ok, err)
	}

	if err := s.Save(ctx, sample("t1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := s.Load(ctx, "t1")
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got.Title != "Quiz" || got.Duration != 20 || len(got.Questions) != 3 {
		t.Fatalf("loaded %+v", got)
	}
	for i, q := range got.Questions {
		if q.Index != i {
			t.Errorf("question %d has index %d", i, q.Index)
		}
	}
	if got.Questions[0].AnswerKey != "4" || got.Questions[1].Type != TypeFillInBlank || got.Questions[2].Marks != 10 {
		t.Fatalf("questions not preserved in order: %+v", got.Questions)
	}

	// replace, not merge
	v2 := sample("t1")
	v2.Title = "Quiz v2"
	v2.Questions = v2.Questions[:1]
	if err := s.Save(ctx, v2); err != nil {
		t.Fatalf("save v2: %v", err)
	}
	got, _, _ = s.Load(ctx, "t1")
	if got.Title != "Quiz v2" || len(got.Questions) != 1 {
		t.Fatalf("after replace: %+v", got)
	}

	empty := sample("t-empty")
	empty.Questions = []Question{}
	if err := s.Save(ctx, empty); err != nil {
		t.Fatalf("save empty: %v", err)
	}
	got, ok, err = s.Load(ctx, "t-empty")
	if err != nil || !ok || got.Questions == nil || len(got.Questions) != 0 {
		t.Fatalf("empty questions: %+v ok=%v err=%v", got, ok, err)
	}

	bad := sample("t-bad")
	bad.Questions = nil
	if err := s.Save(ctx, bad); !errors.Is(err, ErrInvalidDefinition) {
		t.Fatalf("save without questions: %v", err)
	}
	if _, ok, _ := s.Load(ctx, "t-bad"); ok {
		t.Fatal("invalid definition was stored")
	}
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestMemoryStore_LoadReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if err := s.Save(ctx, sample("t1")); err != nil {
		t.Fatal(err)
	}
	d, _, _ := s.Load(ctx, "t1")
	d.Questions[0].Options[0] = "changed"
	d.Questions[1].Marks = 99

	again, _, _ := s.Load(ctx, "t1")
	if again.Questions[0].Options[0] != "3" || again.Questions[1].Marks != 3 {
		t.Fatalf("stored definition mutated through a loaded copy: %+v", again.Questions)
	}
}

func TestSQLStore(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(ctx, db.DriverSQLite, "file:"+filepath.Join(t.TempDir(), "tests.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	testStore(t, NewSQLStore(conn))
}

func TestSQLStore_ClosedDB(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(ctx, db.DriverSQLite, "file:"+filepath.Join(t.TempDir(), "tests.db"))
	if err != nil {
		t.Fatal(err)
	}
	conn.Close()
	s := NewSQLStore(conn)
	if err := s.Save(ctx, sample("t1")); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("save on closed db: %v", err)
	}
	if _, _, err := s.Load(ctx, "t1"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("load on closed db: %v", err)
	}
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	testStore(t, NewRedisStore(client))
}

func TestRedisStore_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	s := NewRedisStore(client)
	mr.Close()

	if err := s.Save(context.Background(), sample("t1")); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("save: %v", err)
	}
	if _, _, err := s.Load(context.Background(), "t1"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("load: %v", err)
	}
}

func TestRedisStore_CorruptValue(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	if err := mr.Set(redisTestPrefix+"t1", `{"testId":"t1","title":"x","duration":1,"questions":"oops"}`); err != nil {
		t.Fatal(err)
	}
	if _, _, err := NewRedisStore(client).Load(context.Background(), "t1"); !errors.Is(err, ErrInvalidDefinition) {
		t.Fatalf("load corrupt: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Definition)
		field  string
	}{
		{"valid", func(*Definition) {}, ""},
		{"missing id", func(d *Definition) { d.TestID = "" }, "testId"},
		{"missing title", func(d *Definition) { d.Title = "" }, "title"},
		{"zero duration", func(d *Definition) { d.Duration = 0 }, "duration"},
		{"nil questions", func(d *Definition) { d.Questions = nil }, "questions"},
		{"empty questions", func(d *Definition) { d.Questions = []Question{} }, ""},
		{"unknown type", func(d *Definition) { d.Questions[0].Type = "essay" }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := sample("t1")
			tt.mutate(&d)
			err := Validate(d)
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var inv *InvalidDefinitionError
			if !errors.As(err, &inv) {
				t.Fatalf("err = %v, want InvalidDefinitionError", err)
			}
			if inv.Field != tt.field {
				t.Errorf("field = %q, want %q", inv.Field, tt.field)
			}
			if !errors.Is(err, ErrInvalidDefinition) {
				t.Error("error does not match ErrInvalidDefinition")
			}
		})
	}
}

func TestDecode(t *testing.T) {
	d, err := Decode([]byte(`{"testId":"t1","title":"Quiz","duration":5,"questions":[
		{"type":"mcq","marks":2,"answerKey":1},
		{"type":"fill","marks":-4,"answerKey":"x"},
		{"type":"fill","marks":"ten","answerKey":"y"},
		{"type":"long"}
	]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	wantMarks := []float64{2, 0, 0, 0}
	for i, q := range d.Questions {
		if q.Weight() != wantMarks[i] {
			t.Errorf("question %d weight = %v, want %v", i, q.Weight(), wantMarks[i])
		}
	}
	if d.Questions[0].AnswerKey != float64(1) {
		t.Errorf("answer key = %#v", d.Questions[0].AnswerKey)
	}

	_, err = Decode([]byte(`{"testId":"t9","title":"x","duration":1,"questions":{"a":1}}`))
	var inv *InvalidDefinitionError
	if !errors.As(err, &inv) || inv.TestID != "t9" || inv.Field != "questions" {
		t.Fatalf("non-array questions: %v", err)
	}

	if _, err := Decode([]byte(`{not json`)); !errors.Is(err, ErrInvalidDefinition) {
		t.Fatalf("malformed: %v", err)
	}
}

func TestDecode_AnswerAlias(t *testing.T) {
	d, err := Decode([]byte(`{"testId":"t1","title":"Quiz","duration":5,"questions":[
		{"type":"mcq","marks":2,"answer":"B"},
		{"type":"fill","marks":1,"answer":"old","answerKey":"new"},
		{"type":"long","marks":3}
	]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []interface{}{"B", "new", nil}
	for i, q := range d.Questions {
		if q.AnswerKey != want[i] {
			t.Errorf("question %d key = %#v, want %#v", i, q.AnswerKey, want[i])
		}
	}
	if d.Questions[0].Weight() != 2 || d.Questions[0].Type != TypeMultipleChoice {
		t.Errorf("other fields lost: %+v", d.Questions[0])
	}
}

func TestNormalized(t *testing.T) {
	d := sample("t1")
	d.Questions[0].Index = 7
	n := d.Normalized()
	for i, q := range n.Questions {
		if q.Index != i {
			t.Errorf("index %d = %d", i, q.Index)
		}
	}
	if d.Questions[0].Index != 7 {
		t.Error("Normalized mutated its receiver")
	}
}

func TestUnavailable(t *testing.T) {
	cause := errors.New("connection refused")
	err := Unavailable("load test", cause)
	if !errors.Is(err, ErrStoreUnavailable) || !errors.Is(err, cause) {
		t.Fatalf("err = %v", err)
	}
}
