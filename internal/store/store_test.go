package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := New(dbPath)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestFileCRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	f := &File{
		Name:             "two-sum",
		Language:         "python",
		Code:             "print(1)",
		ProblemStatement: "add numbers",
	}
	if err := store.CreateFile(ctx, f); err != nil {
		t.Fatalf("create file: %v", err)
	}
	if f.ID == "" || f.CreatedAt.IsZero() {
		t.Fatalf("expected id and created_at to be assigned: %+v", f)
	}

	got, err := store.GetFile(ctx, f.ID)
	if err != nil {
		t.Fatalf("get file: %v", err)
	}
	if got.Name != f.Name || got.Code != f.Code || got.ProblemStatement != f.ProblemStatement {
		t.Fatalf("unexpected file: %+v", got)
	}

	if err := store.DeleteFile(ctx, f.ID); err != nil {
		t.Fatalf("delete file: %v", err)
	}
	if _, err := store.GetFile(ctx, f.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.DeleteFile(ctx, f.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestListFilesNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"old", "mid", "new"} {
		f := &File{Name: name, Language: "c", CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := store.CreateFile(ctx, f); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}

	files, err := store.ListFiles(ctx)
	if err != nil {
		t.Fatalf("list files: %v", err)
	}
	if len(files) != 3 || files[0].Name != "new" || files[2].Name != "old" {
		t.Fatalf("unexpected order: %+v", files)
	}
}

func TestRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, passed := range []int{1, 3} {
		r := &Run{SessionID: "s1", Language: "java", Passed: passed, Failed: 3 - passed, Total: 3}
		if err := store.AddRun(ctx, r); err != nil {
			t.Fatalf("add run: %v", err)
		}
		if r.ID == 0 {
			t.Fatal("expected run id")
		}
	}
	if err := store.AddRun(ctx, &Run{SessionID: "s2", Language: "c", Total: 1, Failed: 1}); err != nil {
		t.Fatalf("add run: %v", err)
	}

	runs, err := store.ListRuns(ctx, "s1")
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].Passed != 1 || runs[1].Passed != 3 {
		t.Fatalf("unexpected runs: %+v", runs)
	}
}
