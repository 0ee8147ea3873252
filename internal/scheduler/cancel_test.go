package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"fswatchd/internal/fsevent"
)

func TestCancelForwardsAsProcessCancelEvent(t *testing.T) {
	var runs int32

	target := New(func(ctx context.Context, e fsevent.Event, taskID string) error {
		atomic.AddInt32(&runs, 1)
		return nil
	}, WithDelay(50*time.Millisecond))

	c := NewCancel(target)

	target.ProcessEvent(mkEvent("IN_MODIFY", "/tmp/a"))
	c.ProcessEvent(mkEvent("IN_DELETE", "/tmp/a"))

	time.Sleep(150 * time.Millisecond)

	if got := atomic.LoadInt32(&runs); got != 0 {
		t.Fatalf("expected Cancel to abandon the target's pending task, got %d runs", got)
	}
	if got := target.Pending(); got != 0 {
		t.Fatalf("expected target to have no pending tasks after cancel, got %d", got)
	}
}

func TestCancelIsNoOpScheduler(t *testing.T) {
	target := New(func(ctx context.Context, e fsevent.Event, taskID string) error { return nil })
	c := NewCancel(target)

	// Cancel owns no tasks: Pause/Shutdown/ProcessCancelEvent must not
	// panic and must not touch the target.
	c.Pause()
	c.Shutdown(time.Millisecond)
	c.ProcessCancelEvent(mkEvent("IN_DELETE", "/tmp/a"))

	if target.IsPaused() {
		t.Fatal("expected Cancel.Pause to not affect its target")
	}
}
