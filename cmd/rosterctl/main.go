// Command rosterctl is an interactive terminal for the roster list.
//
// An optional argument is the initial list location, e.g.
//
//	rosterctl 'status=0&role=1&page=2'
package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"rosterkit/internal/adapters/console"
	"rosterkit/internal/app"
	"rosterkit/internal/config"
	"rosterkit/internal/listview"
)

var exitFunc = os.Exit

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "rosterctl:", err)
		exitFunc(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	initial, err := initialQuery(args)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Close(closeCtx)
	}()

	c := console.New(a.Store, listview.NewMemoryNavigator(initial), os.Stdout,
		console.WithLogger(a.Logger),
		console.WithQuietPeriod(cfg.SearchQuiet),
		console.WithExporter(a.Exports),
	)
	rl, err := console.NewReadline(c, console.TerminalConfig{
		HistoryFile: cfg.ConsoleHistory,
		VimMode:     cfg.ConsoleVim,
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer func() { _ = rl.Close() }()
	fmt.Fprintln(rl.Stdout(), "rosterkit console, type help for commands")
	return c.Run(ctx, rl)
}

func initialQuery(args []string) (url.Values, error) {
	if len(args) == 0 {
		return url.Values{}, nil
	}
	q, err := url.ParseQuery(strings.TrimPrefix(args[0], "?"))
	if err != nil {
		return nil, fmt.Errorf("parse location %q: %w", args[0], err)
	}
	return q, nil
}
