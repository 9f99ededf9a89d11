//go:build linux

package local

import (
	"os/exec"
	"syscall"
)

// peakMemoryMB reads the child's peak RSS from its rusage. Maxrss is in
// kilobytes on Linux.
func peakMemoryMB(cmd *exec.Cmd) int {
	if cmd.ProcessState == nil {
		return 0
	}
	ru, ok := cmd.ProcessState.SysUsage().(*syscall.Rusage)
	if !ok {
		return 0
	}
	return int(ru.Maxrss / 1024)
}
