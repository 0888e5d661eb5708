//go:build windows

package updater

import (
	"golang.org/x/sys/windows"
)

// processAlive reports whether pid names a running process, checking its
// exit code via the Windows API rather than relying on os.Process.Signal,
// which does not support liveness probing on this platform.
func processAlive(pid int) bool {
	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(handle)

	var exitCode uint32
	if err := windows.GetExitCodeProcess(handle, &exitCode); err != nil {
		return false
	}
	return exitCode == 259 // STILL_ACTIVE
}
