package config

import (
	"fmt"
	"net"
	"regexp"
	"slices"
	"strconv"
	"time"

	"fswatchd/internal/fsevent"
)

var (
	validLogLevels   = []string{"debug", "info", "warn", "error", "fatal", "panic"}
	validSchedulers  = []string{"shell", "filemanager", "cancel"}
	validRuleActions = []string{"copy", "move", "delete"}
)

// validateConfig validates the configuration and returns an error if invalid.
func validateConfig(c *Config) error {
	for _, validate := range []func() error{
		func() error { return validateLogConfig(c.Log) },
		func() error { return validateHistoryConfig(c.History) },
		func() error { return validateAPIConfig(c.API) },
		func() error { return validateShutdownTimeout(c.ShutdownTimeout) },
		func() error { return validateRules(c.Rules) },
		func() error { return validateWatches(c.Watches, len(c.Rules)) },
	} {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func validateLogConfig(l LogConfig) error {
	if !slices.Contains(validLogLevels, l.Level) {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error, fatal, panic")
	}
	return nil
}

func validateHistoryConfig(h HistoryConfig) error {
	if h.Enabled && h.Path == "" {
		return fmt.Errorf("history.path cannot be empty when history.enabled is true")
	}
	return nil
}

func validateAPIConfig(a APIConfig) error {
	if !a.Enabled {
		return nil
	}
	if a.Addr == "" {
		return fmt.Errorf("api.addr cannot be empty when api.enabled is true")
	}
	host, portStr, err := net.SplitHostPort(a.Addr)
	if err != nil {
		return fmt.Errorf("api.addr invalid format: %w", err)
	}
	if port, err := strconv.Atoi(portStr); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("api.addr invalid port")
	}
	if host != "127.0.0.1" && host != "localhost" && host != "::1" {
		return fmt.Errorf("api.addr must bind to loopback (127.0.0.1, ::1, or localhost), got %q", host)
	}
	return nil
}

func validateShutdownTimeout(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("shutdown_timeout must be greater than 0")
	}
	if d > 10*time.Minute {
		return fmt.Errorf("shutdown_timeout too large (max 10m)")
	}
	return nil
}

func validateRules(rules []RuleConfig) error {
	for i, r := range rules {
		if !slices.Contains(validRuleActions, r.Action) {
			return fmt.Errorf("rules[%d].action must be one of: copy, move, delete", i)
		}
		if r.Src == "" {
			return fmt.Errorf("rules[%d].src cannot be empty", i)
		}
		if _, err := regexp.Compile(r.Src); err != nil {
			return fmt.Errorf("rules[%d].src: invalid regexp: %w", i, err)
		}
		if r.Action != "delete" && r.Dst == "" {
			return fmt.Errorf("rules[%d].dst cannot be empty for action %q", i, r.Action)
		}
		if r.DirMode != "" {
			if _, err := parseFileMode(r.DirMode); err != nil {
				return fmt.Errorf("rules[%d].dirmode: %w", i, err)
			}
		}
		if r.FileMode != "" {
			if _, err := parseFileMode(r.FileMode); err != nil {
				return fmt.Errorf("rules[%d].filemode: %w", i, err)
			}
		}
	}
	return nil
}

func validateWatches(watches []WatchConfig, numRules int) error {
	for i, w := range watches {
		if w.Path == "" {
			return fmt.Errorf("watches[%d].path cannot be empty", i)
		}
		if w.Exclude != "" {
			if _, err := regexp.Compile(w.Exclude); err != nil {
				return fmt.Errorf("watches[%d].exclude: invalid regexp: %w", i, err)
			}
		}
		if len(w.Events) == 0 && w.DefaultScheduler == nil {
			return fmt.Errorf("watches[%d] must set default_scheduler or bind at least one flag in events", i)
		}
		for flag, ev := range w.Events {
			if !fsevent.KnownFlag(flag) {
				return fmt.Errorf("watches[%d].events: unknown inotify flag %q", i, flag)
			}
			if err := validateEvent(i, flag, ev, numRules); err != nil {
				return err
			}
		}
		if w.DefaultScheduler != nil {
			if w.DefaultScheduler.Scheduler == "cancel" {
				return fmt.Errorf("watches[%d].default_scheduler cannot be scheduler \"cancel\": cancel targets a specific flag", i)
			}
			if err := validateEvent(i, "default_scheduler", *w.DefaultScheduler, numRules); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateEvent(watchIdx int, flag string, ev EventConfig, numRules int) error {
	if !slices.Contains(validSchedulers, ev.Scheduler) {
		return fmt.Errorf("watches[%d].events[%s].scheduler must be one of: shell, filemanager, cancel", watchIdx, flag)
	}

	if ev.Delay != "" {
		d, err := time.ParseDuration(ev.Delay)
		if err != nil {
			return fmt.Errorf("watches[%d].events[%s].delay: %w", watchIdx, flag, err)
		}
		if d < 0 {
			return fmt.Errorf("watches[%d].events[%s].delay cannot be negative", watchIdx, flag)
		}
	}

	switch ev.Scheduler {
	case "shell":
		if ev.Cmd == "" {
			return fmt.Errorf("watches[%d].events[%s].cmd cannot be empty for scheduler shell", watchIdx, flag)
		}
	case "filemanager":
		for _, idx := range ev.Rules {
			if idx < 0 || idx >= numRules {
				return fmt.Errorf("watches[%d].events[%s].rules: index %d out of range", watchIdx, flag, idx)
			}
		}
	case "cancel":
		if ev.Target == "" {
			return fmt.Errorf("watches[%d].events[%s].target cannot be empty for scheduler cancel", watchIdx, flag)
		}
		if !fsevent.KnownFlag(ev.Target) {
			return fmt.Errorf("watches[%d].events[%s].target: unknown inotify flag %q", watchIdx, flag, ev.Target)
		}
	}

	return nil
}
