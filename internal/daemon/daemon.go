// Package daemon orchestrates the set of watches built from a config
// into a single running unit with pause, graceful shutdown, and
// hot-reload semantics.
package daemon

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"fswatchd/internal/scheduler"
	"fswatchd/internal/watch"
)

// Daemon owns every watch built from one loaded configuration and
// coordinates their lifecycle as a unit.
type Daemon struct {
	watches         []*watch.Watch
	shutdownTimeout time.Duration

	mu      sync.Mutex
	running bool
}

// New builds a Daemon from an already-constructed set of watches. The
// watches are not started until Start is called.
func New(watches []*watch.Watch, shutdownTimeout time.Duration) *Daemon {
	return &Daemon{watches: watches, shutdownTimeout: shutdownTimeout}
}

// Start registers and activates every watch. Calling Start on a Daemon
// that is already running returns an error.
func (d *Daemon) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return fmt.Errorf("daemon: already running")
	}

	if len(d.watches) == 0 {
		log.Warn().Msg("daemon starting with zero configured watches")
	}

	for _, w := range d.watches {
		if err := w.Start(); err != nil {
			return fmt.Errorf("daemon: start watch %q: %w", w.Path(), err)
		}
	}

	d.running = true
	log.Info().Int("watches", len(d.watches)).Msg("daemon started")
	return nil
}

// SchedulerStatus summarizes one scheduler's introspectable state.
type SchedulerStatus struct {
	Name    string
	Paused  bool
	Pending int
}

// Status summarizes the daemon's introspectable state. Schedulers that
// don't expose Pending/IsPaused/Name (such as scheduler.Cancel) are
// left out of Schedulers.
type Status struct {
	Running    bool
	Watches    int
	Schedulers []SchedulerStatus
}

type inspectable interface {
	Name() string
	IsPaused() bool
	Pending() int
}

// Status reports the daemon's current running state, watch count, and
// per-scheduler pending-task counts.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	running := d.running
	d.mu.Unlock()

	st := Status{Running: running, Watches: len(d.watches)}
	for _, s := range d.schedulers() {
		insp, ok := s.(inspectable)
		if !ok {
			continue
		}
		st.Schedulers = append(st.Schedulers, SchedulerStatus{
			Name:    insp.Name(),
			Paused:  insp.IsPaused(),
			Pending: insp.Pending(),
		})
	}
	return st
}

// schedulers returns every distinct scheduler reachable from any of this
// daemon's watches. A scheduler bound to several flags, or shared across
// several watches, is returned exactly once.
func (d *Daemon) schedulers() []scheduler.Scheduler {
	seen := make(map[scheduler.Scheduler]struct{})
	var out []scheduler.Scheduler
	for _, w := range d.watches {
		for _, s := range w.EventMap().Schedulers() {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// Pause stops every scheduler from accepting new work; tasks already
// in flight continue to run. Used ahead of Shutdown and ahead of
// swapping in a reloaded configuration.
func (d *Daemon) Pause() {
	for _, s := range d.schedulers() {
		s.Pause()
	}
}

// Shutdown pauses every scheduler, waits up to the configured shutdown
// timeout for in-flight tasks to finish (cancelling stragglers past the
// deadline), then stops every watch. Schedulers are drained
// concurrently so one slow scheduler's timeout does not serialize
// behind another's.
func (d *Daemon) Shutdown() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	log.Info().Msg("daemon shutting down")

	d.Pause()

	var wg sync.WaitGroup
	for _, s := range d.schedulers() {
		wg.Add(1)
		go func(s scheduler.Scheduler) {
			defer wg.Done()
			s.Shutdown(d.shutdownTimeout)
		}(s)
	}
	wg.Wait()

	for _, w := range d.watches {
		w.Stop()
	}

	log.Info().Msg("daemon shut down")
}

// Reload starts next and tears the receiver down (pause, drain,
// stop watches) in the background, returning immediately so the caller
// (normally a SIGHUP handler) is never blocked by a slow drain. next
// must not have been started yet.
func (d *Daemon) Reload(next *Daemon) error {
	log.Info().Msg("daemon reloading")

	if err := next.Start(); err != nil {
		return fmt.Errorf("daemon: reload: start replacement: %w", err)
	}

	go d.Shutdown()

	log.Info().Msg("daemon reload complete, previous instance draining in background")
	return nil
}
