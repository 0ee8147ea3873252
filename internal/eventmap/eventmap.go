// Package eventmap binds inotify flag names to the schedulers that
// should react to them, and dispatches incoming filesystem events to
// every scheduler bound to that event's primary flag.
package eventmap

import (
	"context"

	"github.com/rs/zerolog/log"

	"fswatchd/internal/fsevent"
	"fswatchd/internal/scheduler"
)

// ExcludeFunc reports whether an event's pathname should be dropped
// before reaching any scheduler.
type ExcludeFunc func(pathname string) bool

// EventMap is the per-watch routing table from inotify flag name to the
// ordered list of schedulers bound to it.
type EventMap struct {
	bindings map[string][]scheduler.Scheduler
	exclude  ExcludeFunc
}

// New builds an EventMap from a set of flag bindings, an optional
// defaultScheduler, and an optional exclude filter.
//
// defaultScheduler, when non-nil, is bound to every known inotify flag
// (fsevent.Flags) before bindings is applied, so flags with no explicit
// entry in bindings fall back to it; a flag explicitly set to nil in
// bindings removes even the default binding.
//
// Each value, whether in bindings or defaultScheduler, may be:
//   - a scheduler.Scheduler or []scheduler.Scheduler, used as-is;
//   - a scheduler.Job (or a plain func matching its signature), wrapped
//     as scheduler.New(job) with default options;
//   - nil, which removes any binding for that flag.
//
// Any other value is a programming error and panics, since bindings are
// built once at config load time, not per-event.
func New(bindings map[string]any, defaultScheduler any, exclude ExcludeFunc) *EventMap {
	em := &EventMap{
		bindings: make(map[string][]scheduler.Scheduler, len(bindings)),
		exclude:  exclude,
	}

	if defaultScheduler != nil {
		ds := toSchedulers(defaultScheduler)
		for flag := range fsevent.Flags {
			em.bindings[flag] = ds
		}
	}

	for flag, v := range bindings {
		if v == nil {
			delete(em.bindings, flag)
			continue
		}
		em.bindings[flag] = toSchedulers(v)
	}

	return em
}

// toSchedulers normalizes one binding value into a []scheduler.Scheduler,
// wrapping a bare job function the way TaskScheduler(job=value) does in
// the system this package is modeled on.
func toSchedulers(v any) []scheduler.Scheduler {
	switch s := v.(type) {
	case scheduler.Scheduler:
		return []scheduler.Scheduler{s}
	case []scheduler.Scheduler:
		return append([]scheduler.Scheduler(nil), s...)
	case scheduler.Job:
		return []scheduler.Scheduler{scheduler.New(s)}
	case func(ctx context.Context, e fsevent.Event, taskID string) error:
		return []scheduler.Scheduler{scheduler.New(scheduler.Job(s))}
	default:
		panic("eventmap: binding value must be a scheduler.Scheduler, []scheduler.Scheduler, or scheduler.Job")
	}
}

// Dispatch routes e to every scheduler bound to e's primary flag. A flag
// with no binding is a silent no-op; an excluded pathname is dropped at
// debug level before any scheduler sees it. Each bound scheduler is
// invoked concurrently and independently: one scheduler's processing
// never blocks or is affected by another's.
func (em *EventMap) Dispatch(e fsevent.Event) {
	flag := e.PrimaryFlag()

	targets, ok := em.bindings[flag]
	if !ok || len(targets) == 0 {
		return
	}

	if em.exclude != nil && em.exclude(e.Pathname) {
		log.Debug().Str("maskname", e.MaskName).Str("pathname", e.Pathname).
			Msg("drop event, excluded path")
		return
	}

	for _, s := range targets {
		go s.ProcessEvent(e)
	}
}

// Schedulers returns every distinct scheduler bound anywhere in this
// map, in no defined order (bindings is a Go map). Used by the daemon to pause/shut down each
// scheduler exactly once even though it may be bound to several flags.
func (em *EventMap) Schedulers() []scheduler.Scheduler {
	seen := make(map[scheduler.Scheduler]struct{})
	var out []scheduler.Scheduler
	for _, targets := range em.bindings {
		for _, s := range targets {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
