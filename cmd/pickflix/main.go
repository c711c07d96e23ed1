package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/mmcdole/pickflix/internal/config"
	"github.com/mmcdole/pickflix/internal/log"
	"github.com/mmcdole/pickflix/internal/sync"
	"github.com/mmcdole/pickflix/internal/telemetry"
	"github.com/mmcdole/pickflix/internal/tui"
	"golang.org/x/term"
)

// Version is set at build time via -ldflags
var Version = "dev"

const usageText = `Usage: pickflix [flags] [command]

Commands:
  (none)                         interactive picker (one-shot pick when not a terminal)
  pick                           pick one movie and print it
  history                        print every picked movie, most recent first
  clear [--yes]                  clear the pick history
  serve [--addr] [--db]          run the shared picks server
  catalog build <listing> [out]  convert a plain-text listing into movies.json
  version                        print version

Flags:
`

func main() {
	// Handle version flag
	var showVersion bool
	var configPath string
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.StringVar(&configPath, "config", "", "path to config.yaml")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usageText)
		flag.PrintDefaults()
	}
	flag.Parse()

	if showVersion || flag.Arg(0) == "version" {
		fmt.Printf("pickflix %s\n", Version)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, configPath, flag.Args())
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfigFrom(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Setup logger
	logger, logFile, err := log.SetupLogger(cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = log.NullLogger()
	} else {
		defer logFile.Close()
	}

	clientID := uuid.NewString()
	logger = logger.With("client_id", clientID)
	slog.SetDefault(logger)

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry, Version)
	if err != nil {
		logger.Warn("telemetry disabled", "error", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	cmd, rest := "", []string(nil)
	if len(args) > 0 {
		cmd, rest = args[0], args[1:]
	}
	logger.Info("starting pickflix", "version", Version, "mode", cfg.Mode, "command", cmd)

	a := &app{cfg: cfg, clientID: clientID, logger: logger}

	switch cmd {
	case "":
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			return a.pick(ctx)
		}
		return a.interactive(ctx)
	case "pick":
		return a.pick(ctx)
	case "history":
		return a.history(ctx)
	case "clear":
		return a.clear(ctx, rest)
	case "serve":
		return a.serve(ctx, rest)
	case "catalog":
		return a.catalog(rest)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// interactive runs the TUI with the background sync controller
func (a *app) interactive(ctx context.Context) error {
	obs := tui.NewChannelObserver()
	p, closeStore, err := a.openPicker(ctx, obs)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ctrl := sync.NewController(p, a.cfg.Sync.Interval, a.logger)
	go func() {
		if err := ctrl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Warn("sync controller stopped", "error", err)
		}
	}()

	model := tui.NewModel(p, ctrl, obs, a.logger)
	prog := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	a.logger.Info("starting TUI")

	if _, err := prog.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		a.logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}

	a.logger.Info("shutting down")
	return nil
}
