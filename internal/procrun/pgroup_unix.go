//go:build unix

package procrun

import (
	"os/exec"
	"syscall"
)

// configureProcessGroup places the child in a fresh process group and makes
// cancellation kill the whole group, so grandchildren (rustc, build scripts)
// do not outlive the build.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
