package pane

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/javanhut/liminal/config"
	"github.com/javanhut/liminal/metrics"
	"github.com/javanhut/liminal/shell"
	"github.com/javanhut/liminal/terminal"
)

// ErrStarted is returned by a second call to Start
var ErrStarted = errors.New("pane already started")

// Option customises a Pane
type Option func(*Pane)

// WithLogger sets the logger handed to the shell manager
func WithLogger(l *slog.Logger) Option {
	return func(p *Pane) { p.logger = l }
}

// WithMetrics sets the metrics handed to the shell manager
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pane) { p.metrics = m }
}

// Snapshot is a consistent copy of the pane's screen state
type Snapshot struct {
	Text       string
	Scrollback string
	CursorRow  int
	CursorCol  int
	Title      string
	WorkingDir string
}

// Pane couples a terminal with the shell feeding it
type Pane struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu       sync.RWMutex
	terminal *terminal.Terminal
	started  bool
	exited   bool
	exitCode int
	lastErr  error

	shell *shell.Manager
	done  chan struct{}
}

// New creates a pane sized and coloured from cfg. The shell is not
// started until Start.
func New(cfg *config.Config, opts ...Option) (*Pane, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	fg, bg, err := cfg.Terminal.Colors()
	if err != nil {
		return nil, err
	}

	p := &Pane{
		cfg:      cfg,
		logger:   slog.Default(),
		exitCode: -1,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.terminal = terminal.New(terminal.Options{
		Rows:            cfg.Terminal.Rows,
		Cols:            cfg.Terminal.Cols,
		ScrollbackLimit: cfg.Terminal.ScrollbackLimit,
		Foreground:      fg,
		Background:      bg,
	})
	p.shell = shell.NewManager(shell.Options{
		Shell:        cfg.Shell.Path,
		Dir:          cfg.Shell.WorkingDirectory,
		Env:          cfg.Shell.Env,
		Cols:         cfg.Terminal.Cols,
		Rows:         cfg.Terminal.Rows,
		InputBuffer:  cfg.Pump.InputBuffer,
		OutputBuffer: cfg.Pump.OutputBuffer,
		ChunkSize:    cfg.Pump.ChunkSize,
		Logger:       p.logger,
		Metrics:      p.metrics,
	})
	return p, nil
}

// Start launches the shell and the loop that feeds its output into the
// terminal. A pane runs one shell over its lifetime.
func (p *Pane) Start(ctx context.Context, args ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return ErrStarted
	}
	if err := p.shell.Start(ctx, shell.Command{Args: args}); err != nil {
		return err
	}
	p.started = true
	go p.readLoop(p.shell.Events())
	return nil
}

// readLoop continuously reads shell events and processes output
func (p *Pane) readLoop(events <-chan shell.Event) {
	defer close(p.done)

	for ev := range events {
		p.mu.Lock()
		switch ev.Kind {
		case shell.EventOutput:
			p.terminal.Process(ev.Data)
		case shell.EventError:
			p.lastErr = ev.Err
			p.logger.Warn("pane shell error", "err", ev.Err)
		case shell.EventExit:
			p.exitCode = ev.Code
		}
		p.mu.Unlock()
	}

	p.mu.Lock()
	p.exited = true
	p.mu.Unlock()
}

// Write sends raw input to the shell
func (p *Pane) Write(ctx context.Context, data []byte) error {
	return p.shell.SendInput(ctx, data)
}

// SendCommand sends a line of input to the shell
func (p *Pane) SendCommand(ctx context.Context, line string) error {
	return p.shell.SendCommand(ctx, line)
}

// Resize resizes the screen and tells the shell about the new size
func (p *Pane) Resize(ctx context.Context, rows, cols int) error {
	p.mu.Lock()
	p.terminal.Resize(rows, cols)
	g := p.terminal.Grid()
	rows, cols = g.Rows(), g.Cols()
	p.mu.Unlock()

	return p.shell.ResizeTerminal(ctx, cols, rows)
}

// Snapshot returns the current screen state
func (p *Pane) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	row, col := p.terminal.Cursor()
	return Snapshot{
		Text:       p.terminal.VisibleText(),
		Scrollback: p.terminal.Grid().ScrollbackText(),
		CursorRow:  row,
		CursorCol:  col,
		Title:      p.terminal.Title(),
		WorkingDir: p.terminal.WorkingDir(),
	}
}

// WorkingDir returns the directory last reported by the shell through
// OSC 7, falling back to the configured directory.
func (p *Pane) WorkingDir() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if dir := p.terminal.WorkingDir(); dir != "" {
		return dir
	}
	return p.cfg.Shell.WorkingDirectory
}

// HasExited returns true once the shell's events are fully drained
func (p *Pane) HasExited() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exited
}

// ExitCode returns the shell's exit code, -1 if unknown or not exited
func (p *Pane) ExitCode() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exitCode
}

// Err returns the last error event reported by the shell
func (p *Pane) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}

// SessionID returns the shell session's ID
func (p *Pane) SessionID() string {
	return p.shell.SessionID()
}

// Wait blocks until the shell has exited and its output is processed
func (p *Pane) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close kills the shell and waits for the read loop to finish
func (p *Pane) Close() error {
	err := p.shell.Close()
	p.mu.RLock()
	started := p.started
	p.mu.RUnlock()
	if started {
		<-p.done
	}
	return err
}
