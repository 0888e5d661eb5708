//go:build unix

package updater

import (
	"os"
	"syscall"
)

// processAlive reports whether pid names a running process, using the
// conventional Unix probe of sending signal 0: it performs permission and
// existence checks without actually delivering a signal.
func processAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
