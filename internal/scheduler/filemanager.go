package scheduler

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/rs/zerolog/log"

	"fswatchd/internal/fsevent"
)

// RuleAction names what a FileManagerRule does to a matched path.
type RuleAction string

const (
	ActionCopy   RuleAction = "copy"
	ActionMove   RuleAction = "move"
	ActionDelete RuleAction = "delete"
)

// Rule is one immutable entry of a FileManagerScheduler's rule table.
type Rule struct {
	Action RuleAction

	// SrcRe matches the event pathname. DstRe is a regexp replacement
	// template (Go's "${name}" syntax, the idiomatic equivalent of
	// Python's "\g<name>"); only used for copy/move.
	SrcRe *regexp.Regexp
	DstRe string

	AutoCreate bool
	Rec        bool

	// DirMode/FileMode are nil when unset ("skip that part" of the
	// mode+owner fixup).
	DirMode  *fs.FileMode
	FileMode *fs.FileMode

	// User/Group are empty when unset.
	User  string
	Group string
}

func (r Rule) matches(path string) bool {
	return r.SrcRe.MatchString(path)
}

func (r Rule) destination(path string) string {
	return r.SrcRe.ReplaceAllString(path, r.DstRe)
}

// FileManagerScheduler is a TaskScheduler specialized to run copy/move/
// delete rules. It overrides ProcessEvent to require a matching rule
// before handing the event to the embedded engine's debounce logic.
type FileManagerScheduler struct {
	*TaskScheduler
	fm *fileManagerJob
}

// NewFileManagerScheduler builds a FileManagerScheduler whose job
// executes the first rule in rules whose SrcRe matches the event's
// pathname. Events matching no rule are dropped at debug level and
// never reach the debounce engine.
func NewFileManagerScheduler(rules []Rule, opts ...Option) *FileManagerScheduler {
	fm := &fileManagerJob{rules: rules}
	base := New(fm.run, opts...)
	return &FileManagerScheduler{TaskScheduler: base, fm: fm}
}

// ProcessEvent implements Scheduler, overriding the embedded
// TaskScheduler's method with a rule-match pre-filter.
func (fms *FileManagerScheduler) ProcessEvent(e fsevent.Event) {
	if !fms.fm.filterByRule(e) {
		log.Debug().Str("scheduler", fms.name).Str("pathname", e.Pathname).
			Msg("drop event, no matching rule")
		return
	}
	fms.TaskScheduler.ProcessEvent(e)
}

type fileManagerJob struct {
	rules []Rule
}

func (fm *fileManagerJob) ruleFor(path string) (Rule, bool) {
	for _, r := range fm.rules {
		if r.matches(path) {
			return r, true
		}
	}
	return Rule{}, false
}

func (fm *fileManagerJob) filterByRule(e fsevent.Event) bool {
	if _, ok := fm.ruleFor(e.Pathname); !ok {
		return false
	}
	return true
}

func (fm *fileManagerJob) run(ctx context.Context, e fsevent.Event, taskID string) error {
	rule, ok := fm.ruleFor(e.Pathname)
	if !ok {
		return nil
	}

	switch rule.Action {
	case ActionCopy, ActionMove:
		return fm.runCopyOrMove(rule, e.Pathname)
	case ActionDelete:
		return fm.runDelete(rule, e.Pathname)
	default:
		return fmt.Errorf("unknown rule action %q", rule.Action)
	}
}

func (fm *fileManagerJob) runCopyOrMove(rule Rule, path string) error {
	dst := rule.destination(path)
	if dst == "" {
		return fmt.Errorf("unable to %s %q: resulting destination path is empty", rule.Action, path)
	}
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("unable to %s %q to %q: destination path exists already", rule.Action, path, dst)
	}

	dstDir := filepath.Dir(dst)
	if !isDir(dstDir) && rule.AutoCreate {
		firstMissing := shallowestMissingAncestor(dstDir)
		if err := os.MkdirAll(dstDir, 0o777); err != nil {
			return fmt.Errorf("create directory %q: %w", dstDir, err)
		}
		if err := fm.setModeAndOwner(firstMissing, rule); err != nil {
			return err
		}
	}

	switch rule.Action {
	case ActionCopy:
		if isDir(path) {
			if err := copyTree(path, dst); err != nil {
				return fmt.Errorf("copy %q to %q: %w", path, dst, err)
			}
		} else if err := copyFile(path, dst); err != nil {
			return fmt.Errorf("copy %q to %q: %w", path, dst, err)
		}
	case ActionMove:
		if err := os.Rename(path, dst); err != nil {
			return fmt.Errorf("move %q to %q: %w", path, dst, err)
		}
	}

	return fm.setModeAndOwner(dst, rule)
}

func (fm *fileManagerJob) runDelete(rule Rule, path string) error {
	if isDir(path) {
		if rule.Rec {
			if err := os.RemoveAll(path); err != nil {
				return fmt.Errorf("delete %q: %w", path, err)
			}
			return nil
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("delete %q: %w", path, err)
		}
		return nil
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete %q: %w", path, err)
	}
	return nil
}

// shallowestMissingAncestor walks up from dir until it finds a parent
// that already exists, returning the shallowest directory that will be
// freshly created by a subsequent MkdirAll(dir). Mirrors the original
// pyinotifyd auto_create walk so the mode/owner fixup only ever touches
// directories this rule actually created.
func shallowestMissingAncestor(dir string) string {
	cur := dir
	for !isDir(cur) {
		parent := filepath.Dir(cur)
		if parent == cur {
			// Reached the filesystem root without finding an existing
			// ancestor; nothing more to climb.
			return cur
		}
		if isDir(parent) {
			return cur
		}
		cur = parent
	}
	return cur
}

// setModeAndOwner chmods+chowns the root always, then, if the root is a
// directory and any of dirmode/filemode/chown is set, walks the subtree
// applying dirmode to directories and filemode to files.
func (fm *fileManagerJob) setModeAndOwner(path string, rule Rule) error {
	uid, gid, chownSet, err := resolveChown(rule)
	if err != nil {
		return err
	}

	rootMode := rule.FileMode
	if isDir(path) {
		rootMode = rule.DirMode
	}
	if err := chmodChown(path, rootMode, uid, gid, chownSet); err != nil {
		return err
	}

	if !isDir(path) {
		return nil
	}

	workOnDirs := rule.DirMode != nil || chownSet
	workOnFiles := rule.FileMode != nil || chownSet
	if !workOnDirs && !workOnFiles {
		return nil
	}

	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == path {
			return nil
		}
		if d.IsDir() {
			if workOnDirs {
				return chmodChown(p, rule.DirMode, uid, gid, chownSet)
			}
			return nil
		}
		if workOnFiles {
			return chmodChown(p, rule.FileMode, uid, gid, chownSet)
		}
		return nil
	})
}

func resolveChown(rule Rule) (uid, gid int, set bool, err error) {
	if rule.User == "" && rule.Group == "" {
		return 0, 0, false, nil
	}

	uid, gid = -1, -1
	if rule.User != "" {
		u, lookErr := user.Lookup(rule.User)
		if lookErr != nil {
			return 0, 0, false, fmt.Errorf("lookup user %q: %w", rule.User, lookErr)
		}
		uid, err = strconv.Atoi(u.Uid)
		if err != nil {
			return 0, 0, false, fmt.Errorf("parse uid for %q: %w", rule.User, err)
		}
	}
	if rule.Group != "" {
		g, lookErr := user.LookupGroup(rule.Group)
		if lookErr != nil {
			return 0, 0, false, fmt.Errorf("lookup group %q: %w", rule.Group, lookErr)
		}
		gid, err = strconv.Atoi(g.Gid)
		if err != nil {
			return 0, 0, false, fmt.Errorf("parse gid for %q: %w", rule.Group, err)
		}
	}
	return uid, gid, true, nil
}

func chmodChown(path string, mode *fs.FileMode, uid, gid int, chownSet bool) error {
	if mode != nil {
		if err := os.Chmod(path, *mode); err != nil {
			return fmt.Errorf("chmod %q: %w", path, err)
		}
	}
	if chownSet {
		if err := os.Chown(path, uid, gid); err != nil {
			return fmt.Errorf("chown %q: %w", path, err)
		}
	}
	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, info.Mode())
		}
		return copyFile(p, target)
	})
}
