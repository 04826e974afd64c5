package db

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpenSQLite_SchemaIsIdempotent(t *testing.T) {
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "grade.db")
	for i := 0; i < 2; i++ {
		conn, err := Open(ctx, DriverSQLite, dsn)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		for _, table := range []string{"tests", "submissions"} {
			var n int
			if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
				t.Fatalf("%s: %v", table, err)
			}
		}
		conn.Close()
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	if _, err := Open(context.Background(), Driver("oracle"), ""); err == nil {
		t.Fatal("expected error")
	}
}
