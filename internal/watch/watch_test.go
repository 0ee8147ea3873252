package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"fswatchd/internal/eventmap"
	"fswatchd/internal/fsevent"
	"fswatchd/internal/scheduler"
)

func countingEventMap(counter *int32, flag string) *eventmap.EventMap {
	s := scheduler.New(func(ctx context.Context, e fsevent.Event, taskID string) error {
		atomic.AddInt32(counter, 1)
		return nil
	})
	return eventmap.New(map[string]any{flag: scheduler.Scheduler(s)}, nil, nil)
}

func TestWatchDispatchesCloseWrite(t *testing.T) {
	dir := t.TempDir()

	var runs int32
	em := countingEventMap(&runs, "IN_CLOSE_WRITE")

	w, err := New(Options{Path: dir}, em)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	f := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(f, []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&runs) == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}

	if got := atomic.LoadInt32(&runs); got == 0 {
		t.Fatal("expected at least one IN_CLOSE_WRITE dispatch after writing a file")
	}
}

func TestWatchAutoAddCoversNewSubdirectory(t *testing.T) {
	dir := t.TempDir()

	var runs int32
	em := countingEventMap(&runs, "IN_CLOSE_WRITE")

	w, err := New(Options{Path: dir, Rec: true, AutoAdd: true}, em)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	// Give auto_add time to register the new directory before writing
	// into it.
	time.Sleep(100 * time.Millisecond)

	f := filepath.Join(sub, "file.txt")
	if err := os.WriteFile(f, []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&runs) == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}

	if got := atomic.LoadInt32(&runs); got == 0 {
		t.Fatal("expected auto_add to extend the watch to the new subdirectory")
	}
}

func TestWatchStopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	em := countingEventMap(new(int32), "IN_CLOSE_WRITE")

	w, err := New(Options{Path: dir}, em)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	w.Stop()
	w.Stop() // must not panic or block
}

func TestNewRejectsEmptyPath(t *testing.T) {
	if _, err := New(Options{}, nil); err == nil {
		t.Fatal("expected an error for an empty path")
	}
}

func TestStartRejectsNoMatchingGlob(t *testing.T) {
	w, err := New(Options{Path: "/no/such/path/*.xyz"}, eventmap.New(nil, nil, nil))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err == nil {
		t.Fatal("expected Start to fail for a glob with no matches")
	}
}
