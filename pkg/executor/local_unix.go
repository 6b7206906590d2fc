//go:build unix

package executor

import (
	"os/exec"
	"syscall"
)

// killProcessGroup starts the shell in its own process group and makes
// cancellation kill the whole group, so grandchildren die with the shell.
func killProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
