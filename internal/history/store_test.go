package history

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)

	s.Record("task-1", "shell", "scheduled", "IN_CLOSE_WRITE", "/tmp/a", "", "")
	s.Record("task-1", "shell", "started", "IN_CLOSE_WRITE", "/tmp/a", "", "")
	s.Record("task-1", "shell", "finished", "IN_CLOSE_WRITE", "/tmp/a", "", "")

	rows, err := s.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 recorded rows, got %d", len(rows))
	}
	if rows[0].State != "finished" {
		t.Fatalf("expected newest-first ordering, got first state %q", rows[0].State)
	}
}

func TestRecentRespectsLimit(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 5; i++ {
		s.Record("task", "shell", "scheduled", "IN_CLOSE_WRITE", "/tmp/a", "", "")
	}

	rows, err := s.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected limit to cap results at 2, got %d", len(rows))
	}
}

func TestRecentEmptyStore(t *testing.T) {
	s := openTestStore(t)

	rows, err := s.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no rows from an empty store, got %d", len(rows))
	}
}
