//go:build !windows

package shell

import (
	"os/exec"
	"syscall"
)

// defaultShell is used when neither an override nor $SHELL is set
const defaultShell = "/bin/bash"

// configureCommand puts the shell in its own session so the whole
// process group can be killed on teardown.
func configureCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
