//go:build !windows

package registry

import (
	"os"
	"syscall"
)

// pidAlive probes the process with signal 0. EPERM still means the pid
// exists, just owned by someone else.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	err = proc.Signal(syscall.Signal(0))

	return err == nil || err == syscall.EPERM
}
