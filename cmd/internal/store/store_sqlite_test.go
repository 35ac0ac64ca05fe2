package store

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSQLiteStore_Contract(t *testing.T) {
	t.Parallel()
	runContract(t, func(t *testing.T) Store {
		st, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "tasklist.db"))
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() { _ = st.Close() })
		return st
	})
}

func TestMigrateSQLite_Idempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "tasklist.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer st.Close()

	if err := MigrateSQLite(ctx, st.sqlDB); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	var n int
	if err := st.sqlDB.QueryRowContext(ctx, `SELECT count(*) FROM `+migrationTable).Scan(&n); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if n != 1 {
		t.Fatalf("applied=%d want=1", n)
	}
}

func TestExtractUp(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name, in, want string
	}{
		{name: "no markers", in: "CREATE TABLE a (x INT);", want: "CREATE TABLE a (x INT);"},
		{name: "up only", in: "-- +migrate Up\nCREATE TABLE a;", want: "\nCREATE TABLE a;"},
		{name: "up and down", in: "-- +migrate Up\nA;\n-- +migrate Down\nB;", want: "\nA;\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := extractUp(tc.in); got != tc.want {
				t.Fatalf("got=%q want=%q", got, tc.want)
			}
		})
	}
}
