// Package fsevent defines the filesystem event record the scheduling
// engine consumes and the table of inotify flag names the rest of the
// daemon binds behavior to.
package fsevent

import "strings"

// Event is the immutable record emitted for a single filesystem
// notification. It is deliberately small and copyable: schedulers never
// mutate an Event they receive, they only read it.
type Event struct {
	// Mask is the raw inotify bitmask, when known. Zero if the event
	// source did not expose it (see watch.Watch, which is built on
	// fsnotify and reconstructs only as much of the mask as fsnotify
	// itself exposes).
	Mask uint32

	// MaskName is the human-readable name, e.g. "IN_CLOSE_WRITE" or, for
	// compound events, "IN_MOVED_TO|IN_ISDIR". The primary flag is
	// always the substring before the first '|'.
	MaskName string

	// Pathname is the absolute path the event concerns.
	Pathname string

	// SrcPathname is set for move-from/move-to pairs, empty otherwise.
	SrcPathname string

	// Dir reports whether Pathname refers to a directory.
	Dir bool

	// Wd is the opaque watch descriptor the event arrived on.
	Wd int
}

// PrimaryFlag returns the substring of MaskName before the first '|'.
func (e Event) PrimaryFlag() string {
	if i := strings.IndexByte(e.MaskName, '|'); i >= 0 {
		return e.MaskName[:i]
	}
	return e.MaskName
}

// Flags enumerates every inotify flag name this daemon understands,
// mapped to its kernel bit value. It backs EventMap validation and the
// CLI's --list output.
var Flags = map[string]uint32{
	"IN_ACCESS":        0x00000001,
	"IN_MODIFY":        0x00000002,
	"IN_ATTRIB":        0x00000004,
	"IN_CLOSE_WRITE":   0x00000008,
	"IN_CLOSE_NOWRITE": 0x00000010,
	"IN_OPEN":          0x00000020,
	"IN_MOVED_FROM":    0x00000040,
	"IN_MOVED_TO":      0x00000080,
	"IN_CREATE":        0x00000100,
	"IN_DELETE":        0x00000200,
	"IN_DELETE_SELF":   0x00000400,
	"IN_MOVE_SELF":     0x00000800,
	"IN_UNMOUNT":       0x00002000,
	"IN_Q_OVERFLOW":    0x00004000,
	"IN_IGNORED":       0x00008000,
	"IN_ISDIR":         0x40000000,

	// Derived/compound flags, kept for parity with pyinotify's table so
	// config files and --list output read the same way.
	"IN_CLOSE":      0x00000008 | 0x00000010,
	"IN_MOVE":       0x00000040 | 0x00000080,
	"IN_ALL_EVENTS": 0x00000fff,
}

// KnownFlag reports whether name is a flag this daemon recognizes.
func KnownFlag(name string) bool {
	_, ok := Flags[name]
	return ok
}
