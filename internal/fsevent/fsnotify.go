package fsevent

import (
	"os"

	"github.com/fsnotify/fsnotify"
)

// opFlags maps each fsnotify.Op bit to the inotify primary flag name it
// most closely corresponds to. fsnotify collapses several distinct
// inotify events into one Op bit (e.g. Write covers both IN_MODIFY and
// IN_CLOSE_WRITE), so this mapping is necessarily approximate; daemons
// that need the full fidelity of raw inotify should bind directly to
// golang.org/x/sys/unix instead of fsnotify. This tradeoff is accepted
// here in exchange for fsnotify's portable watcher-handle management.
var opFlags = map[fsnotify.Op]string{
	fsnotify.Create: "IN_CREATE",
	fsnotify.Write:  "IN_CLOSE_WRITE",
	fsnotify.Remove: "IN_DELETE",
	fsnotify.Rename: "IN_MOVED_FROM",
	fsnotify.Chmod:  "IN_ATTRIB",
}

// FromNotify converts an fsnotify.Event into the daemon's own Event
// record. ok is false only when name has none of the Op bits this
// daemon understands (fsnotify never sends an empty Op in practice, so
// this is mostly a defensive guard against future fsnotify Op values).
func FromNotify(ne fsnotify.Event) (Event, bool) {
	name, ok := primaryName(ne.Op)
	if !ok {
		return Event{}, false
	}

	ev := Event{
		MaskName: name,
		Pathname: ne.Name,
	}

	// fsnotify does not tell us whether the path was a directory, and by
	// the time a IN_DELETE/IN_MOVED_FROM-equivalent event arrives the
	// path may no longer be stat-able. Best effort: stat if possible,
	// otherwise leave Dir false (the scheduler's files/dirs filter then
	// treats it as a file event, matching the common case).
	if info, err := os.Lstat(ne.Name); err == nil && info.IsDir() {
		ev.Dir = true
		ev.MaskName = name + "|IN_ISDIR"
	}

	return ev, true
}

func primaryName(op fsnotify.Op) (string, bool) {
	// fsnotify ORs bits together; report the first match in a stable,
	// documented precedence order rather than map-iteration order.
	order := []fsnotify.Op{
		fsnotify.Create,
		fsnotify.Remove,
		fsnotify.Rename,
		fsnotify.Write,
		fsnotify.Chmod,
	}
	for _, bit := range order {
		if op&bit != 0 {
			return opFlags[bit], true
		}
	}
	return "", false
}
