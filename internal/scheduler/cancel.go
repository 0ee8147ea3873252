package scheduler

import (
	"time"

	"fswatchd/internal/fsevent"
)

// Cancel is a Scheduler adapter that forwards every event it receives as
// a cancellation to a target Scheduler. It is typically bound to
// IN_DELETE/IN_MOVED_FROM so that a delete on a path abandons whatever
// the target scheduler had pending for that same path.
type Cancel struct {
	target Scheduler
}

// NewCancel wraps target so its ProcessEvent becomes a cancellation.
func NewCancel(target Scheduler) *Cancel {
	return &Cancel{target: target}
}

// ProcessEvent forwards e to target.ProcessCancelEvent.
func (c *Cancel) ProcessEvent(e fsevent.Event) {
	c.target.ProcessCancelEvent(e)
}

// ProcessCancelEvent is not meaningful for an adapter whose only job is
// to produce cancellations; it is a no-op.
func (c *Cancel) ProcessCancelEvent(fsevent.Event) {}

// Pause is a no-op: Cancel owns no tasks of its own to pause.
func (c *Cancel) Pause() {}

// Shutdown is a no-op for the same reason.
func (c *Cancel) Shutdown(time.Duration) {}
