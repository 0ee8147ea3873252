package config

import (
	"fmt"
	"io/fs"
	"regexp"
	"strconv"
	"time"

	"fswatchd/internal/daemon"
	"fswatchd/internal/eventmap"
	"fswatchd/internal/history"
	"fswatchd/internal/scheduler"
	"fswatchd/internal/watch"
)

// Build realizes a validated Config into a live, not-yet-started Daemon:
// one Watch (and EventMap) per WatchConfig, with a fresh scheduler
// instance per event binding. recorder is attached to every scheduler
// built this way; pass nil to disable history recording regardless of
// what the config says (used by --configtest, which never touches
// storage).
func Build(cfg *Config, recorder scheduler.Recorder) (*daemon.Daemon, error) {
	rules, err := buildRules(cfg.Rules)
	if err != nil {
		return nil, err
	}

	if recorder == nil {
		recorder = noopRecorder{}
	}

	watches := make([]*watch.Watch, 0, len(cfg.Watches))
	for i, wc := range cfg.Watches {
		w, err := buildWatch(wc, rules, recorder)
		if err != nil {
			return nil, fmt.Errorf("watches[%d]: %w", i, err)
		}
		watches = append(watches, w)
	}

	return daemon.New(watches, cfg.ShutdownTimeout), nil
}

type noopRecorder struct{}

func (noopRecorder) Record(string, string, string, string, string, string, string) {}

// OpenHistory opens the history store a Build-produced Daemon's
// schedulers should record into, or returns (nil, nil) when history is
// disabled.
func OpenHistory(cfg HistoryConfig) (*history.Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	return history.Open(cfg.Path)
}

func buildWatch(wc WatchConfig, rules []scheduler.Rule, recorder scheduler.Recorder) (*watch.Watch, error) {
	var exclude eventmap.ExcludeFunc
	if wc.Exclude != "" {
		re, err := regexp.Compile(wc.Exclude)
		if err != nil {
			return nil, fmt.Errorf("exclude: %w", err)
		}
		exclude = re.MatchString
	}

	// Pass 1: build every non-cancel scheduler so cancel bindings in
	// pass 2 have a target to wrap.
	built := make(map[string]scheduler.Scheduler, len(wc.Events))
	for flag, ev := range wc.Events {
		if ev.Scheduler == "cancel" {
			continue
		}
		s, err := buildScheduler(ev, rules, recorder)
		if err != nil {
			return nil, fmt.Errorf("events[%s]: %w", flag, err)
		}
		built[flag] = s
	}

	bindings := make(map[string]any, len(wc.Events))
	for flag, ev := range wc.Events {
		if ev.Scheduler != "cancel" {
			bindings[flag] = built[flag]
			continue
		}
		target, ok := built[ev.Target]
		if !ok {
			return nil, fmt.Errorf("events[%s]: cancel target %q has no scheduler bound", flag, ev.Target)
		}
		bindings[flag] = scheduler.NewCancel(target)
	}

	var defaultScheduler scheduler.Scheduler
	if wc.DefaultScheduler != nil {
		ds, err := buildScheduler(*wc.DefaultScheduler, rules, recorder)
		if err != nil {
			return nil, fmt.Errorf("default_scheduler: %w", err)
		}
		defaultScheduler = ds
	}

	em := eventmap.New(bindings, defaultScheduler, exclude)

	return watch.New(watch.Options{
		Path:    wc.Path,
		Rec:     wc.Rec,
		AutoAdd: wc.AutoAdd,
		LogName: wc.Path,
	}, em)
}

func buildScheduler(ev EventConfig, rules []scheduler.Rule, recorder scheduler.Recorder) (scheduler.Scheduler, error) {
	opts := []scheduler.Option{scheduler.WithRecorder(recorder)}

	if ev.Delay != "" {
		d, err := time.ParseDuration(ev.Delay)
		if err != nil {
			return nil, fmt.Errorf("delay: %w", err)
		}
		opts = append(opts, scheduler.WithDelay(d))
	}
	if ev.Files != nil || ev.Dirs != nil {
		files, dirs := true, false
		if ev.Files != nil {
			files = *ev.Files
		}
		if ev.Dirs != nil {
			dirs = *ev.Dirs
		}
		opts = append(opts, scheduler.WithFilesDirs(files, dirs))
	}

	switch ev.Scheduler {
	case "shell":
		opts = append(opts, scheduler.WithLogName("shell"))
		return scheduler.NewShell(ev.Cmd, opts...), nil
	case "filemanager":
		opts = append(opts, scheduler.WithLogName("filemanager"))
		selected := rules
		if len(ev.Rules) > 0 {
			selected = make([]scheduler.Rule, len(ev.Rules))
			for i, idx := range ev.Rules {
				selected[i] = rules[idx]
			}
		}
		return scheduler.NewFileManagerScheduler(selected, opts...), nil
	default:
		return nil, fmt.Errorf("unknown scheduler %q", ev.Scheduler)
	}
}

func buildRules(rcs []RuleConfig) ([]scheduler.Rule, error) {
	rules := make([]scheduler.Rule, len(rcs))
	for i, rc := range rcs {
		re, err := regexp.Compile(rc.Src)
		if err != nil {
			return nil, fmt.Errorf("rules[%d].src: %w", i, err)
		}

		r := scheduler.Rule{
			Action:     scheduler.RuleAction(rc.Action),
			SrcRe:      re,
			DstRe:      rc.Dst,
			AutoCreate: rc.AutoCreate,
			Rec:        rc.Rec,
			User:       rc.User,
			Group:      rc.Group,
		}

		if rc.DirMode != "" {
			m, err := parseFileMode(rc.DirMode)
			if err != nil {
				return nil, fmt.Errorf("rules[%d].dirmode: %w", i, err)
			}
			r.DirMode = &m
		}
		if rc.FileMode != "" {
			m, err := parseFileMode(rc.FileMode)
			if err != nil {
				return nil, fmt.Errorf("rules[%d].filemode: %w", i, err)
			}
			r.FileMode = &m
		}

		rules[i] = r
	}
	return rules, nil
}

func parseFileMode(s string) (fs.FileMode, error) {
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid octal mode %q: %w", s, err)
	}
	return fs.FileMode(v), nil
}
