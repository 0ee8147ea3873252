// Package main provides the entry point for fswatchd.
//
// fswatchd is a long-running daemon that watches directory trees for
// filesystem events via inotify and dispatches debounced, cancelable
// shell commands or file-manager rules per path.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"fswatchd/internal/api"
	"fswatchd/internal/config"
	"fswatchd/internal/daemon"
	"fswatchd/internal/fsevent"
	"fswatchd/internal/history"
	"fswatchd/internal/logger"
)

const version = "0.1.0"

func main() {
	var (
		configPath  string
		debug       bool
		showList    bool
		showVersion bool
		install     bool
		uninstall   bool
		configtest  bool
	)

	flag.StringVar(&configPath, "config", "", "path to config file (default: search ./fswatchd.yaml, ~/.config/fswatchd, /etc/fswatchd)")
	flag.StringVar(&configPath, "c", "", "shorthand for --config")
	flag.BoolVar(&debug, "debug", false, "log debugging messages")
	flag.BoolVar(&debug, "d", false, "shorthand for --debug")
	flag.BoolVar(&showList, "list", false, "show all usable event types and exit")
	flag.BoolVar(&showList, "l", false, "shorthand for --list")
	flag.BoolVar(&showVersion, "version", false, "show version and exit")
	flag.BoolVar(&showVersion, "v", false, "shorthand for --version")
	flag.BoolVar(&install, "install", false, "install systemd service file")
	flag.BoolVar(&install, "i", false, "shorthand for --install")
	flag.BoolVar(&uninstall, "uninstall", false, "uninstall systemd service file")
	flag.BoolVar(&uninstall, "u", false, "shorthand for --uninstall")
	flag.BoolVar(&configtest, "configtest", false, "test config and exit")
	flag.BoolVar(&configtest, "t", false, "shorthand for --configtest")
	flag.Parse()

	if showVersion {
		fmt.Printf("fswatchd (%s)\n", version)
		os.Exit(0)
	}

	if showList {
		names := make([]string, 0, len(fsevent.Flags))
		for name := range fsevent.Flags {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, n := range names {
			fmt.Println(n)
		}
		os.Exit(0)
	}

	// Service-file installation is not part of the core daemon; it
	// depends on the target init system and packaging, which is out of
	// scope here. Document the expectation instead of silently no-oping.
	if install || uninstall {
		fmt.Fprintln(os.Stderr, "fswatchd: --install/--uninstall are not implemented by this build; "+
			"install a systemd unit that runs 'fswatchd --config <path>' directly")
		os.Exit(2)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fswatchd: config: %v\n", err)
		os.Exit(1)
	}
	if debug {
		cfg.Log.Level = "debug"
	}

	if configtest {
		if _, err := config.Build(cfg, nil); err != nil {
			fmt.Fprintf(os.Stderr, "fswatchd: config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("config OK")
		os.Exit(0)
	}

	logger.Init(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})

	log.Info().Str("version", version).Str("log_level", cfg.Log.Level).Msg("starting fswatchd")

	store, err := config.OpenHistory(cfg.History)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open history store")
	}
	if store != nil {
		defer store.Close()
	}

	app := &application{configPath: configPath, store: store}

	d, err := app.build(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build daemon from config")
	}
	app.current = d

	if err := d.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start daemon")
	}

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(cfg.API.Addr, d, store, app.reload)
		go func() {
			if err := apiServer.Start(); err != nil {
				log.Error().Err(err).Msg("api server stopped unexpectedly")
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigCh {
		switch sig {
		case syscall.SIGHUP:
			log.Info().Msg("received SIGHUP, reloading")
			if err := app.reload(); err != nil {
				log.Error().Err(err).Msg("reload failed, continuing with previous configuration")
			}

		case syscall.SIGINT, syscall.SIGTERM:
			log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
			if apiServer != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				_ = apiServer.Shutdown(ctx)
				cancel()
			}
			app.current.Shutdown()
			log.Info().Msg("fswatchd stopped")
			return
		}
	}
}

// application owns the currently-active daemon instance and knows how
// to rebuild one from the same config path, so SIGHUP and POST /reload
// share exactly one reload path.
type application struct {
	configPath string
	store      *history.Store

	mu      sync.Mutex
	current *daemon.Daemon
}

func (a *application) build(cfg *config.Config) (*daemon.Daemon, error) {
	// a.store is a *history.Store; passed directly to Build when nil it
	// would produce a non-nil scheduler.Recorder wrapping a nil pointer,
	// so this path is guarded explicitly rather than relying on Build's
	// own nil check.
	if a.store == nil {
		return config.Build(cfg, nil)
	}
	return config.Build(cfg, a.store)
}

func (a *application) reload() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}

	next, err := a.build(cfg)
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}

	a.mu.Lock()
	prev := a.current
	defer a.mu.Unlock()

	if err := prev.Reload(next); err != nil {
		return err
	}
	a.current = next
	return nil
}
