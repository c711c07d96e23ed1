package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mmcdole/pickflix/internal/catalog"
	"github.com/mmcdole/pickflix/internal/config"
	"github.com/mmcdole/pickflix/internal/domain"
	"github.com/mmcdole/pickflix/internal/picker"
	"github.com/mmcdole/pickflix/internal/remote"
	"github.com/mmcdole/pickflix/internal/server"
	"github.com/mmcdole/pickflix/internal/sqlstore"
	"github.com/mmcdole/pickflix/internal/store"
	"golang.org/x/term"
)

// pingTimeout bounds the startup reachability check of a remote backend
const pingTimeout = 5 * time.Second

type app struct {
	cfg      *config.Config
	clientID string
	logger   *slog.Logger
}

// openPicker loads the catalog and the configured store. A missing catalog
// or unconfigured remote is not an error here; the picker reports both
// through its status.
func (a *app) openPicker(ctx context.Context, obs picker.Observer) (*picker.Picker, func(), error) {
	cat, err := catalog.LoadFile(a.cfg.Catalog.Path)
	if err != nil {
		if !errors.Is(err, catalog.ErrUnavailable) {
			return nil, nil, fmt.Errorf("failed to load catalog: %w", err)
		}
		a.logger.Warn("catalog unavailable", "path", a.cfg.Catalog.Path, "error", err)
	}

	st, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	p := picker.New(cat, st, picker.Options{
		MaxAttempts: a.cfg.Picker.MaxAttempts,
		Observer:    obs,
		Logger:      a.logger,
	})
	closeStore := func() {
		if err := st.Close(); err != nil {
			a.logger.Warn("closing history store", "error", err)
		}
	}
	return p, closeStore, nil
}

func (a *app) openStore(ctx context.Context) (domain.HistoryStore, error) {
	switch a.cfg.Mode {
	case config.ModeRemote:
		client := remote.NewClient(remote.Options{
			URL:      a.cfg.Remote.URL,
			APIKey:   a.cfg.Remote.APIKey,
			Timeout:  a.cfg.Remote.Timeout,
			ClientID: a.clientID,
			Logger:   a.logger,
		})
		if a.cfg.IsRemoteConfigured() {
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			defer cancel()
			if err := client.Ping(pingCtx); err != nil {
				a.logger.Warn("history backend check failed", "url", a.cfg.Remote.URL, "error", err)
			}
		} else {
			a.logger.Warn("remote mode without remote.url, history is unavailable")
		}
		return client, nil

	case config.ModeSQLite:
		st, err := sqlstore.OpenExisting(a.cfg.SQL.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite history: %w", err)
		}
		return st, nil

	default:
		st, err := store.NewLocalStore(a.cfg.Local.Dir, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open local history: %w", err)
		}
		return st, nil
	}
}

// failure turns a picker error into the message the status line would show.
func failure(p *picker.Picker, err error) error {
	if msg := p.Snapshot().Message; msg != "" {
		return errors.New(msg)
	}
	return err
}

// pick draws one movie and prints it
func (a *app) pick(ctx context.Context) error {
	p, closeStore, err := a.openPicker(ctx, nil)
	if err != nil {
		return err
	}
	defer closeStore()

	if _, err := p.Refresh(ctx, false); err != nil {
		return failure(p, err)
	}

	res, err := p.Pick(ctx)
	if err != nil {
		return failure(p, err)
	}

	state := p.Snapshot()
	switch res.Outcome {
	case picker.OutcomePicked:
		printMovie(os.Stdout, res.Movie)
		if state.Status == picker.StatusError {
			fmt.Fprintln(os.Stderr, state.Message)
		} else {
			fmt.Println(state.Message)
		}
	default:
		fmt.Println(state.Message)
	}
	return nil
}

// history prints every pick, most recent first
func (a *app) history(ctx context.Context) error {
	p, closeStore, err := a.openPicker(ctx, nil)
	if err != nil {
		return err
	}
	defer closeStore()

	if _, err := p.Refresh(ctx, false); err != nil {
		return failure(p, err)
	}

	state := p.Snapshot()
	if len(state.History) == 0 {
		fmt.Println(state.Message)
		return nil
	}
	for _, movie := range state.History {
		fmt.Printf("#%-4d %s\n      %s\n", movie.ID, movie.Title, movie.Summary())
	}
	fmt.Printf("\n%d picked, %s\n", state.HistorySize, state.Message)
	return nil
}

// clear empties the history after a y/N prompt unless --yes is given
func (a *app) clear(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("clear", flag.ContinueOnError)
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}

	p, closeStore, err := a.openPicker(ctx, nil)
	if err != nil {
		return err
	}
	defer closeStore()

	if _, err := p.Refresh(ctx, false); err != nil {
		return failure(p, err)
	}

	state := p.Peek()
	confirm := func() bool {
		if *yes {
			return true
		}
		question := fmt.Sprintf("Clear all %d picks?", state.HistorySize)
		if state.Mode == domain.ModeShared {
			question = fmt.Sprintf("Clear all %d shared picks for everyone?", state.HistorySize)
		}
		return promptYesNo(os.Stdin, os.Stdout, question)
	}

	cleared, err := p.Clear(ctx, confirm)
	if err != nil {
		return failure(p, err)
	}
	switch {
	case cleared:
		fmt.Println("History cleared.")
	case state.HistorySize == 0:
		fmt.Println("Nothing to clear.")
	default:
		fmt.Println("Cancelled.")
	}
	return nil
}

// serve runs the picks server on a local SQLite table
func (a *app) serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", a.cfg.Server.Addr, "listen address")
	dbPath := fs.String("db", a.cfg.Server.DBPath, "SQLite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := config.ExpandHome(*dbPath)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	st, err := sqlstore.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open picks database: %w", err)
	}
	defer st.Close()

	srv := server.New(st, server.Options{
		RateLimit: a.cfg.Server.RateLimit,
		Logger:    a.logger,
	})
	fmt.Fprintf(os.Stderr, "Serving picks on %s (database %s)\n", *addr, path)
	return srv.ListenAndServe(ctx, *addr)
}

// catalog handles "catalog build <listing> [out]"
func (a *app) catalog(args []string) error {
	if len(args) == 0 || args[0] != "build" {
		return errors.New("usage: pickflix catalog build <listing> [out.json]")
	}
	args = args[1:]
	if len(args) < 1 || len(args) > 2 {
		return errors.New("usage: pickflix catalog build <listing> [out.json]")
	}

	src := args[0]
	dst := a.cfg.Catalog.Path
	if len(args) == 2 {
		dst = args[1]
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create catalog directory: %w", err)
	}

	n, err := catalog.BuildFile(src, dst)
	if err != nil {
		return err
	}
	a.logger.Info("catalog built", "movies", n, "path", dst)
	fmt.Printf("Wrote %d movies to %s\n", n, dst)
	return nil
}

func printMovie(w io.Writer, m domain.Movie) {
	fmt.Fprintf(w, "%s\n%s\n%s\n", m.Title, m.Subtitle(), m.Summary())
}

// promptYesNo asks question on out and reads the answer from in. Anything
// but y/yes declines, and a non-terminal stdin declines without asking.
func promptYesNo(in *os.File, out io.Writer, question string) bool {
	if !term.IsTerminal(int(in.Fd())) {
		fmt.Fprintln(out, "Refusing to clear without --yes when stdin is not a terminal.")
		return false
	}
	fmt.Fprintf(out, "%s [y/N] ", question)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
