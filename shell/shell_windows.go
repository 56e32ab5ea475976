//go:build windows

package shell

import (
	"os/exec"
)

// defaultShell is used when neither an override nor $SHELL is set
const defaultShell = "cmd.exe"

// configureCommand keeps exec's default cancel, which kills the process.
func configureCommand(cmd *exec.Cmd) {}
