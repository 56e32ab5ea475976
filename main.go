package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/javanhut/liminal/config"
	"github.com/javanhut/liminal/metrics"
	"github.com/javanhut/liminal/pane"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", config.DefaultPath(), "path to config.toml")
	shellPath := flag.String("shell", "", "shell to run (overrides config and $SHELL)")
	dir := flag.String("dir", "", "working directory for the shell")
	debug := flag.Bool("debug", false, "enable debug logging")
	showMetrics := flag.Bool("metrics", false, "print metrics to stderr on exit")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "err", err)
		return 1
	}
	if *shellPath != "" {
		cfg.Shell.Path = *shellPath
	}
	if *dir != "" {
		cfg.Shell.WorkingDirectory = *dir
	}

	reg := prometheus.NewRegistry()
	p, err := pane.New(cfg, pane.WithLogger(logger), pane.WithMetrics(metrics.New(reg)))
	if err != nil {
		logger.Error("failed to create pane", "err", err)
		return 1
	}
	defer p.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := p.Start(ctx, flag.Args()...); err != nil {
		logger.Error("failed to start shell", "err", err)
		return 1
	}
	logger.Debug("pane started", "session", p.SessionID())

	go forwardInput(ctx, p, os.Stdin, logger)

	if err := p.Wait(ctx); err != nil {
		logger.Warn("interrupted", "err", err)
	}
	p.Close()

	snap := p.Snapshot()
	if snap.Scrollback != "" {
		fmt.Println(snap.Scrollback)
	}
	fmt.Println(snap.Text)

	if *showMetrics {
		if err := writeMetrics(os.Stderr, reg); err != nil {
			logger.Warn("failed to write metrics", "err", err)
		}
	}

	code := p.ExitCode()
	if code < 0 {
		return 1
	}
	return code
}

// forwardInput sends each stdin line to the shell and asks it to exit
// once stdin is exhausted.
func forwardInput(ctx context.Context, p *pane.Pane, r io.Reader, logger *slog.Logger) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := p.SendCommand(ctx, scanner.Text()); err != nil {
			logger.Debug("input dropped", "err", err)
			return
		}
	}
	if err := p.SendCommand(ctx, "exit"); err != nil {
		logger.Debug("exit not sent", "err", err)
	}
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
