// Package updater implements the updater (C11): a small program, run as a
// separate process, that waits for its host process to exit and then
// executes the staged update manifest, per spec.md 4.11.
package updater

import (
	"context"
	"time"
)

// pollInterval is the host-process liveness poll rate, per spec.md 4.11
// step 1 ("poll the host process at 1 Hz").
const pollInterval = 1 * time.Second

// WaitForExit blocks until the process identified by pid is no longer
// running, or ctx is cancelled. Platform-specific liveness checks live in
// pidwait_unix.go and pidwait_windows.go.
func WaitForExit(ctx context.Context, pid int) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	if !processAlive(pid) {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !processAlive(pid) {
				return nil
			}
		}
	}
}
