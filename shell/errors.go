package shell

import (
	"errors"
)

var (
	// ErrAlreadyRunning is returned by Start while a session is live
	ErrAlreadyRunning = errors.New("shell process already running")
	// ErrNotRunning is returned when no session has been started
	ErrNotRunning = errors.New("shell process not running")
	// ErrInputClosed is returned once the stdin writer has stopped
	ErrInputClosed = errors.New("shell input closed")
)

// Error is a shell pump failure. Op names the step that failed:
// lookup, spawn, stdin, stdout, stderr, send, write, read or wait.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return "shell " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}
