//go:build windows

package registry

import "os"

// pidAlive reports whether the pid names a live process. On Windows,
// FindProcess fails for pids that no longer exist.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	defer proc.Release()

	return true
}
