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

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mama165/sdk-go/logs"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the node, the engine and one host together and blocks until the
// host quits, a signal arrives, or the engine fails.
func run() error {
	cfg, err := LoadConfig(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	log, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	node, err := NewNode(ctx, log, cfg)
	if err != nil {
		return fmt.Errorf("failed to start node: %w", err)
	}
	defer func() {
		if err := node.Close(); err != nil {
			log.Warn("Node close failed", "error", err)
		}
	}()

	bridge := NewBridge(cfg.QueueCapacity)
	sink := NewChannelSink(cfg.SinkBuffer)
	engine := NewEngine(log, node, bridge.Commands(), sink)
	plugin := NewPlugin(bridge)

	var chime *Chime
	if cfg.Chime {
		chime = NewChime(log)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return engine.Run(ctx)
	})
	g.Go(func() error {
		// the session ends with the host
		defer cancel()
		defer bridge.Close()
		if cfg.TUI {
			return runTUI(ctx, NewUI(ctx, cfg.Nickname, node.ID().String(), plugin, sink, chime))
		}
		cli := &lineMode{nickname: cfg.Nickname, plugin: plugin, sink: sink, chime: chime, json: cfg.JSON, out: os.Stdout}
		return cli.run(ctx, os.Stdin)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Session ended", "peer_id", node.ID().String())
	return nil
}

// newLogger keeps the terminal clean in TUI mode by logging to a file.
func newLogger(cfg Config) (*slog.Logger, func(), error) {
	if !cfg.TUI {
		return logs.GetLoggerFromString(cfg.LogLevel), func() {}, nil
	}
	f, err := tea.LogToFile(cfg.LogFile, pluginName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	log := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	return log, func() { _ = f.Close() }, nil
}
