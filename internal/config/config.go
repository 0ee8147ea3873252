// Package config loads, validates, and realizes the daemon's YAML
// configuration file: which paths to watch, which schedulers to bind to
// which inotify flags, and the ambient daemon settings (shutdown
// timeout, logging, history, API).
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the complete configuration schema for the daemon.
//
// Configuration sources (in order of precedence):
//  1. Defaults
//  2. Configuration file (optional — its absence is not an error)
//  3. Environment variables
type Config struct {
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	Log             LogConfig     `mapstructure:"log" yaml:"log"`
	History         HistoryConfig `mapstructure:"history" yaml:"history"`
	API             APIConfig     `mapstructure:"api" yaml:"api"`
	Watches         []WatchConfig `mapstructure:"watches" yaml:"watches"`
	Rules           []RuleConfig  `mapstructure:"rules" yaml:"rules"`
}

// LogConfig controls the global zerolog logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error, fatal, panic
	Pretty bool   `mapstructure:"pretty" yaml:"pretty"` // human-readable console output
}

// HistoryConfig controls the append-only audit-log SQLite store.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// APIConfig controls the loopback-bound introspection HTTP server.
type APIConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

// WatchConfig describes one watched path and the schedulers bound to
// the inotify flags seen under it.
type WatchConfig struct {
	Path    string                 `mapstructure:"path" yaml:"path"`
	Rec     bool                   `mapstructure:"rec" yaml:"rec"`
	AutoAdd bool                   `mapstructure:"auto_add" yaml:"auto_add"`
	Exclude string                 `mapstructure:"exclude" yaml:"exclude"`
	Events  map[string]EventConfig `mapstructure:"events" yaml:"events"`

	// DefaultScheduler, when set, binds every known inotify flag this
	// daemon recognizes to one scheduler before Events is applied, so
	// flags with no explicit entry in Events still do something. Events
	// entries take precedence flag-by-flag over this default.
	DefaultScheduler *EventConfig `mapstructure:"default_scheduler" yaml:"default_scheduler"`
}

// EventConfig binds one inotify flag name (a key of WatchConfig.Events)
// to a scheduler.
type EventConfig struct {
	Scheduler string `mapstructure:"scheduler" yaml:"scheduler"` // "shell", "filemanager", or "cancel"
	Delay     string `mapstructure:"delay" yaml:"delay"`
	Files     *bool  `mapstructure:"files" yaml:"files"`
	Dirs      *bool  `mapstructure:"dirs" yaml:"dirs"`

	// Cmd is used when Scheduler == "shell".
	Cmd string `mapstructure:"cmd" yaml:"cmd"`

	// Rules names a subset of the top-level rules list by index, used
	// when Scheduler == "filemanager". Empty means "all rules".
	Rules []int `mapstructure:"rules" yaml:"rules"`

	// Target names another flag in the same watch whose scheduler this
	// binding should cancel, used when Scheduler == "cancel".
	Target string `mapstructure:"target" yaml:"target"`
}

// RuleConfig is one file-manager rule.
type RuleConfig struct {
	Action     string `mapstructure:"action" yaml:"action"` // "copy", "move", "delete"
	Src        string `mapstructure:"src" yaml:"src"`
	Dst        string `mapstructure:"dst" yaml:"dst"`
	AutoCreate bool   `mapstructure:"auto_create" yaml:"auto_create"`
	Rec        bool   `mapstructure:"rec" yaml:"rec"`
	DirMode    string `mapstructure:"dirmode" yaml:"dirmode"`
	FileMode   string `mapstructure:"filemode" yaml:"filemode"`
	User       string `mapstructure:"user" yaml:"user"`
	Group      string `mapstructure:"group" yaml:"group"`
}

// Load reads configuration from defaults, the file at path (or the
// default search locations when path is empty), and FSWATCHD_-prefixed
// environment variables, then normalizes and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("FSWATCHD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AllowEmptyEnv(false)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("fswatchd")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir := getConfigDir(); dir != "" {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath("/etc/fswatchd")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !(path == "" && errors.As(err, &notFound)) {
			return nil, fmt.Errorf("config file error: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	normalizeConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// getConfigDir returns the appropriate config directory for the current OS.
func getConfigDir() string {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "fswatchd")
		}
		return ""
	}

	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".config", "fswatchd")
	}
	return ""
}
