package sqlite

import (
	"context"
	"testing"

	"github.com/airlockhq/airlock/internal/storage"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:): %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	r := &storage.Run{
		ID:        "run-abc123",
		Kind:      storage.KindRun,
		Label:     "sample1.py",
		SandboxID: "ws-1",
		Status:    storage.StatusCompleted,
		ExitCode:  0,
		Source:    "print('hi')",
		Stdout:    "hi\n",
	}
	if err := s.CreateRun(ctx, r); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if r.CreatedAt.IsZero() || r.UpdatedAt.IsZero() {
		t.Error("CreateRun should set timestamps")
	}

	got, err := s.GetRun(ctx, "run-abc123")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Label != "sample1.py" || got.Stdout != "hi\n" || got.Kind != storage.KindRun {
		t.Errorf("GetRun = %+v", got)
	}
}

func TestGetRunPrefix(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"aaa111", "aab222", "bbb333"} {
		if err := s.CreateRun(ctx, &storage.Run{ID: id, Kind: storage.KindRun}); err != nil {
			t.Fatalf("CreateRun(%s): %v", id, err)
		}
	}

	got, err := s.GetRun(ctx, "bbb")
	if err != nil {
		t.Fatalf("GetRun by prefix: %v", err)
	}
	if got.ID != "bbb333" {
		t.Errorf("GetRun(bbb).ID = %q, want bbb333", got.ID)
	}

	if _, err := s.GetRun(ctx, "aa"); err == nil {
		t.Error("ambiguous prefix should return error")
	}
	if _, err := s.GetRun(ctx, "zzz"); err == nil {
		t.Error("unknown prefix should return error")
	}
}

func TestListRunsFiltered(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seed := []storage.Run{
		{ID: "r1", Kind: storage.KindRun, Status: storage.StatusCompleted},
		{ID: "r2", Kind: storage.KindComment, Status: storage.StatusCompleted},
		{ID: "r3", Kind: storage.KindRun, Status: storage.StatusFailed},
	}
	for i := range seed {
		if err := s.CreateRun(ctx, &seed[i]); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
	}

	runs, err := s.ListRuns(ctx, storage.RunListOptions{Kind: storage.KindRun})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("ListRuns(kind=run) = %d runs, want 2", len(runs))
	}

	runs, err = s.ListRuns(ctx, storage.RunListOptions{Kind: storage.KindRun, Status: storage.StatusFailed})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "r3" {
		t.Errorf("ListRuns(kind=run, status=failed) = %+v", runs)
	}
}

func TestUpdateRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	r := &storage.Run{ID: "r1", Kind: storage.KindTest, Status: storage.StatusRunning}
	if err := s.CreateRun(ctx, r); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	r.Status = storage.StatusCompleted
	r.ExitCode = 1
	r.Stderr = "AssertionError"
	if err := s.UpdateRun(ctx, r); err != nil {
		t.Fatalf("UpdateRun: %v", err)
	}

	got, err := s.GetRun(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != storage.StatusCompleted || got.ExitCode != 1 || got.Stderr != "AssertionError" {
		t.Errorf("after update: %+v", got)
	}
}

func TestDeleteRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.CreateRun(ctx, &storage.Run{ID: "gone1", Kind: storage.KindRun}); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := s.DeleteRun(ctx, "gone"); err != nil {
		t.Fatalf("DeleteRun by prefix: %v", err)
	}
	if _, err := s.GetRun(ctx, "gone1"); err == nil {
		t.Error("run should be deleted")
	}

	if err := s.DeleteRun(ctx, "never-existed"); err == nil {
		t.Error("deleting unknown run should return error")
	}
}
