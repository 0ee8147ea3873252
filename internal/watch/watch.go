// Package watch binds an fsnotify.Watcher to a filesystem path (or
// glob), optionally recursing into subdirectories and auto-adding new
// ones as they appear, and dispatches every converted event into an
// EventMap.
package watch

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"fswatchd/internal/eventmap"
	"fswatchd/internal/fsevent"
)

// Options configures a Watch.
type Options struct {
	// Path may be a plain path or a glob pattern (matched once at
	// Start, not re-evaluated afterwards).
	Path string

	// Rec watches every subdirectory of each path Path expands to,
	// recursively.
	Rec bool

	// AutoAdd registers newly created subdirectories as they appear,
	// so a recursive watch keeps covering the whole tree over time.
	AutoAdd bool

	// LogName identifies this watch in log output.
	LogName string
}

// Watch owns one fsnotify.Watcher and the set of directories registered
// with it, dispatching every event it sees into an EventMap.
type Watch struct {
	opts Options
	em   *eventmap.EventMap

	mu      sync.Mutex
	w       *fsnotify.Watcher
	started bool
	once    sync.Once
	done    chan struct{}
}

// New creates a Watch. It does not touch the filesystem or register any
// watcher until Start is called.
func New(opts Options, em *eventmap.EventMap) (*Watch, error) {
	if opts.Path == "" {
		return nil, errors.New("watch: path must not be empty")
	}
	if opts.LogName == "" {
		opts.LogName = "watch"
	}
	return &Watch{opts: opts, em: em, done: make(chan struct{})}, nil
}

// Path returns the configured path or glob pattern.
func (w *Watch) Path() string {
	return w.opts.Path
}

// EventMap returns the EventMap this watch dispatches events into.
func (w *Watch) EventMap() *eventmap.EventMap {
	return w.em
}

// Start expands the configured path (globbing, then optionally
// recursing into subdirectories), registers every resulting directory
// with a fresh fsnotify.Watcher, and begins dispatching events. A second
// call to Start returns an error.
func (w *Watch) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return errors.New("watch: already started")
	}

	roots, err := filepath.Glob(w.opts.Path)
	if err != nil {
		return fmt.Errorf("watch %q: invalid glob: %w", w.opts.Path, err)
	}
	if len(roots) == 0 {
		return fmt.Errorf("watch %q: no matching paths", w.opts.Path)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch %q: %w", w.opts.Path, err)
	}

	for _, root := range roots {
		if err := w.addTree(fsw, root); err != nil {
			_ = fsw.Close()
			return fmt.Errorf("watch %q: %w", w.opts.Path, err)
		}
	}

	w.w = fsw
	w.started = true

	go w.run(fsw)

	log.Info().Str("watch", w.opts.LogName).Str("path", w.opts.Path).
		Bool("rec", w.opts.Rec).Bool("auto_add", w.opts.AutoAdd).
		Msg("watch started")

	return nil
}

// addTree registers root with fsw, and, when Rec is set, every
// subdirectory beneath it.
func (w *Watch) addTree(fsw *fsnotify.Watcher, root string) error {
	if !w.opts.Rec {
		return fsw.Add(root)
	}
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return fsw.Add(p)
	})
}

func (w *Watch) run(fsw *fsnotify.Watcher) {
	defer close(w.done)

	for {
		select {
		case ne, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handle(fsw, ne)

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			log.Warn().Str("watch", w.opts.LogName).Err(err).Msg("watcher error")
		}
	}
}

func (w *Watch) handle(fsw *fsnotify.Watcher, ne fsnotify.Event) {
	ev, ok := fsevent.FromNotify(ne)
	if !ok {
		return
	}

	if w.opts.AutoAdd && ev.Dir && ev.MaskName == "IN_CREATE|IN_ISDIR" {
		if err := w.addTree(fsw, ev.Pathname); err != nil {
			log.Warn().Str("watch", w.opts.LogName).Str("pathname", ev.Pathname).
				Err(err).Msg("auto_add: failed to register new directory")
		} else {
			log.Debug().Str("watch", w.opts.LogName).Str("pathname", ev.Pathname).
				Msg("auto_add: registered new directory")
		}
	}

	w.em.Dispatch(ev)
}

// Stop closes the underlying watcher and waits for its event loop to
// exit. Safe to call more than once and safe to call even if Start was
// never called.
func (w *Watch) Stop() {
	w.once.Do(func() {
		w.mu.Lock()
		fsw := w.w
		started := w.started
		w.mu.Unlock()

		if !started {
			return
		}
		if fsw != nil {
			_ = fsw.Close()
		}
		<-w.done

		log.Info().Str("watch", w.opts.LogName).Str("path", w.opts.Path).
			Msg("watch stopped")
	})
}
