package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/javanhut/liminal/metrics"
)

// Defaults applied by NewManager to unset Options fields
const (
	DefaultCols         = 80
	DefaultRows         = 24
	DefaultInputBuffer  = 64
	DefaultOutputBuffer = 256
	DefaultChunkSize    = 4096

	termType = "xterm-256color"
)

// EventKind identifies a shell event
type EventKind int

const (
	EventOutput EventKind = iota
	EventError
	EventExit
)

func (k EventKind) String() string {
	switch k {
	case EventOutput:
		return "output"
	case EventError:
		return "error"
	case EventExit:
		return "exit"
	}
	return "unknown"
}

// Event is one item on the output channel. Output carries Data from
// either stdout or stderr, Error carries Err, Exit carries Code and is
// always the last event of a session.
type Event struct {
	Kind EventKind
	Data []byte
	Err  error
	Code int
}

// Command describes the shell to start. Empty fields fall back to the
// manager's settings.
type Command struct {
	Path string
	Args []string
	Dir  string
	Env  map[string]string
}

// Options configures a Manager
type Options struct {
	// Shell overrides $SHELL and the platform default
	Shell string
	Dir   string
	Env   map[string]string

	// Initial COLUMNS and LINES exported to the shell
	Cols int
	Rows int

	// Channel capacities. Producers block when the output channel is
	// full, which backpressures the child through its pipes.
	InputBuffer  int
	OutputBuffer int
	ChunkSize    int

	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// LookupEnv and Environ default to the os package functions
	LookupEnv func(string) (string, bool)
	Environ   func() []string
}

// Manager runs one shell process at a time and pumps its stdin, stdout
// and stderr through channels.
type Manager struct {
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	shell   string
	dir     string
	env     map[string]string
	cols    int
	rows    int
	session *session
}

type session struct {
	id      string
	path    string
	cmd     *exec.Cmd
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *slog.Logger
	metrics *metrics.Metrics

	input      chan []byte
	output     chan Event
	writerDone chan struct{}
	writeErr   error
	exited     chan struct{}
	done       chan struct{}
}

// NewManager creates a manager with no running session
func NewManager(opts Options) *Manager {
	if opts.Cols <= 0 {
		opts.Cols = DefaultCols
	}
	if opts.Rows <= 0 {
		opts.Rows = DefaultRows
	}
	if opts.InputBuffer <= 0 {
		opts.InputBuffer = DefaultInputBuffer
	}
	if opts.OutputBuffer <= 0 {
		opts.OutputBuffer = DefaultOutputBuffer
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.LookupEnv == nil {
		opts.LookupEnv = os.LookupEnv
	}
	if opts.Environ == nil {
		opts.Environ = os.Environ
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	env := make(map[string]string, len(opts.Env))
	maps.Copy(env, opts.Env)

	return &Manager{
		opts:    opts,
		logger:  logger,
		metrics: opts.Metrics,
		shell:   opts.Shell,
		dir:     opts.Dir,
		env:     env,
		cols:    opts.Cols,
		rows:    opts.Rows,
	}
}

// Start spawns the shell and its I/O tasks. It fails while a previous
// session is still running, leaving that session untouched. The child
// is killed when ctx is done or Close is called.
func (m *Manager) Start(ctx context.Context, c Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil && m.session.running() {
		return &Error{Op: "start", Err: ErrAlreadyRunning}
	}

	path, err := m.resolveShell(c)
	if err != nil {
		m.metrics.Error("lookup")
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(runCtx, path, shellArgs(path, c.Args)...)
	cmd.Dir = c.Dir
	if cmd.Dir == "" {
		cmd.Dir = m.dir
	}
	cmd.Env = m.environment(c.Env)
	configureCommand(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return m.fail("stdin", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return m.fail("stdout", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return m.fail("stderr", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return m.fail("spawn", err)
	}

	s := &session{
		id:         uuid.NewString(),
		path:       path,
		cmd:        cmd,
		ctx:        runCtx,
		cancel:     cancel,
		metrics:    m.metrics,
		input:      make(chan []byte, m.opts.InputBuffer),
		output:     make(chan Event, m.opts.OutputBuffer),
		writerDone: make(chan struct{}),
		exited:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	s.logger = m.logger.With("session", s.id)

	var g errgroup.Group
	g.Go(func() error { return s.readLoop(stdout, "stdout", m.opts.ChunkSize) })
	g.Go(func() error { return s.readLoop(stderr, "stderr", m.opts.ChunkSize) })
	go s.writeLoop(stdin)
	go s.wait(&g)

	m.session = s
	m.metrics.SessionStarted()
	s.logger.Info("shell started", "shell", path, "pid", cmd.Process.Pid, "dir", cmd.Dir)
	return nil
}

func (m *Manager) fail(op string, err error) error {
	m.metrics.Error(op)
	return &Error{Op: op, Err: err}
}

// resolveShell picks the command override, the manager override, $SHELL,
// then the platform default, and resolves it on PATH.
func (m *Manager) resolveShell(c Command) (string, error) {
	name := c.Path
	if name == "" {
		name = m.shell
	}
	if name == "" {
		if v, ok := m.opts.LookupEnv("SHELL"); ok && v != "" {
			name = v
		}
	}
	if name == "" {
		name = defaultShell
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", &Error{Op: "lookup", Err: err}
	}
	return path, nil
}

// shellArgs adds the interactive flag for shells that need it
func shellArgs(path string, extra []string) []string {
	base := filepath.Base(path)
	// Windows paths may reach a non-Windows build through config
	if i := strings.LastIndexByte(base, '\\'); i >= 0 {
		base = base[i+1:]
	}
	base = strings.TrimSuffix(base, ".exe")
	var args []string
	if base == "bash" || base == "zsh" {
		args = append(args, "-i")
	}
	return append(args, extra...)
}

// environment merges the process environment, the manager's variables,
// the command's variables and the forced terminal variables, in that order.
func (m *Manager) environment(extra map[string]string) []string {
	env := make(map[string]string)
	for _, kv := range m.opts.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && k != "" {
			env[k] = v
		}
	}
	maps.Copy(env, m.env)
	maps.Copy(env, extra)
	env["TERM"] = termType
	env["COLUMNS"] = strconv.Itoa(m.cols)
	env["LINES"] = strconv.Itoa(m.rows)

	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	slices.Sort(out)
	return out
}

// writeLoop drains the input queue into stdin until the first error
func (s *session) writeLoop(stdin io.WriteCloser) {
	defer close(s.writerDone)
	defer stdin.Close()

	for {
		select {
		case data := <-s.input:
			// Pipes are unbuffered, so each write is flushed
			if _, err := stdin.Write(data); err != nil {
				s.writeErr = err
				s.metrics.Error("write")
				s.logger.Warn("shell stdin write failed", "err", err)
				return
			}
			s.metrics.Input(len(data))
		case <-s.ctx.Done():
			return
		}
	}
}

// readLoop forwards chunks from one output stream until end of stream
func (s *session) readLoop(r io.Reader, stream string, chunkSize int) error {
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			s.metrics.Output(n)
			if !s.emit(Event{Kind: EventOutput, Data: append([]byte(nil), buf[:n]...)}) {
				return nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			s.metrics.Error(stream)
			return &Error{Op: "read " + stream, Err: err}
		}
	}
}

// wait emits the final event once both readers are drained and the
// process has exited, then closes the output channel.
func (s *session) wait(g *errgroup.Group) {
	defer close(s.done)
	defer s.cancel()
	defer close(s.output)

	readErr := g.Wait()
	waitErr := s.cmd.Wait()
	close(s.exited)

	if readErr != nil {
		s.emitFinal(Event{Kind: EventError, Err: readErr})
	}

	state := s.cmd.ProcessState
	if state == nil {
		s.metrics.Error("wait")
		s.logger.Error("shell wait failed", "err", waitErr)
		s.emitFinal(Event{Kind: EventError, Err: &Error{Op: "wait", Err: waitErr}})
		return
	}

	code := state.ExitCode()
	s.metrics.Exited()
	s.logger.Info("shell exited", "code", code)
	s.emitFinal(Event{Kind: EventExit, Code: code})
}

// emit blocks until the consumer takes ev or the session is torn down
func (s *session) emit(ev Event) bool {
	select {
	case s.output <- ev:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// emitFinal prefers buffer space over a concurrent teardown, so the exit
// event survives Close whenever the consumer has left room for it.
func (s *session) emitFinal(ev Event) {
	select {
	case s.output <- ev:
	default:
		s.emit(ev)
	}
}

func (s *session) running() bool {
	select {
	case <-s.exited:
		return false
	default:
		return true
	}
}

func (m *Manager) current() *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// SendInput queues data for the shell's stdin. Writes reach the child in
// the order they were queued.
func (m *Manager) SendInput(ctx context.Context, data []byte) error {
	s := m.current()
	if s == nil {
		return &Error{Op: "send", Err: ErrNotRunning}
	}
	if !s.running() {
		return &Error{Op: "send", Err: ErrNotRunning}
	}

	select {
	case <-s.writerDone:
		return s.inputErr()
	default:
	}

	buf := append([]byte(nil), data...)
	select {
	case s.input <- buf:
		return nil
	case <-s.writerDone:
		return s.inputErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *session) inputErr() error {
	if s.writeErr != nil {
		return &Error{Op: "write", Err: s.writeErr}
	}
	return &Error{Op: "send", Err: ErrInputClosed}
}

// SendCommand sends line followed by a newline
func (m *Manager) SendCommand(ctx context.Context, line string) error {
	return m.SendInput(ctx, []byte(line+"\n"))
}

// Receive returns the next event, or false once the output channel is
// closed, no session was started, or ctx is done.
func (m *Manager) Receive(ctx context.Context) (Event, bool) {
	s := m.current()
	if s == nil {
		return Event{}, false
	}
	select {
	case ev, ok := <-s.output:
		return ev, ok
	case <-ctx.Done():
		return Event{}, false
	}
}

// Events returns the current session's output channel, nil if none
func (m *Manager) Events() <-chan Event {
	s := m.current()
	if s == nil {
		return nil
	}
	return s.output
}

// Done is closed when the current session has fully shut down. With no
// session it is already closed.
func (m *Manager) Done() <-chan struct{} {
	s := m.current()
	if s == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return s.done
}

// IsRunning reports whether the shell process is alive
func (m *Manager) IsRunning() bool {
	s := m.current()
	return s != nil && s.running()
}

// ResizeTerminal records the new size for future shells and, while one
// is running, exports COLUMNS and LINES into it. No signal reaches the
// child, so full-screen programs already running do not notice.
func (m *Manager) ResizeTerminal(ctx context.Context, cols, rows int) error {
	cols = max(cols, 1)
	rows = max(rows, 1)

	m.mu.Lock()
	m.cols = cols
	m.rows = rows
	m.mu.Unlock()

	if !m.IsRunning() {
		return nil
	}
	return m.SendCommand(ctx, fmt.Sprintf("export COLUMNS=%d LINES=%d", cols, rows))
}

// Size returns the tracked COLUMNS and LINES
func (m *Manager) Size() (cols, rows int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cols, m.rows
}

// Close kills a running shell and waits for its tasks to finish
func (m *Manager) Close() error {
	s := m.current()
	if s == nil {
		return nil
	}
	s.cancel()
	<-s.done
	return nil
}

// SessionID returns the current session's ID, empty if none
func (m *Manager) SessionID() string {
	if s := m.current(); s != nil {
		return s.id
	}
	return ""
}

// ShellPath returns the resolved executable of the current session
func (m *Manager) ShellPath() string {
	if s := m.current(); s != nil {
		return s.path
	}
	return ""
}

// SetShell sets the shell override used by the next Start
func (m *Manager) SetShell(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shell = path
}

// SetWorkingDir sets the directory used by the next Start
func (m *Manager) SetWorkingDir(dir string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dir = dir
}

// SetEnv sets a variable passed to the next Start
func (m *Manager) SetEnv(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.env[key] = value
}
