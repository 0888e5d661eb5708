package main

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// installRootFromExecutable returns the directory containing the running
// executable (symlinks resolved), which the updater uses as the
// installation root (the server directory, `<root>/<server>/` per spec.md
// 4.1). The client does not copy the updater anywhere: it starts
// narconet-updater from its UpdaterPath (by default the client executable's
// own directory) with the working directory set to its install root, and
// this function does not look at the working directory, so the updater
// applies to the same root as the client's live-apply path only when the
// updater executable lives in that root. Manifest destinations that escape one level up
// (`../sibling/...`, permitted by spec.md 4.1 for sync paths configured
// outside the server directory) resolve correctly against this root because
// filepath.Join cleans a leading ".." the same way it does for the
// in-process apply path; the updater never needs a second, host-level root.
func installRootFromExecutable() (string, error) {
	executable, err := os.Executable()
	if err != nil {
		return "", errors.Wrap(err, "unable to determine executable path")
	}
	resolved, err := filepath.EvalSymlinks(executable)
	if err != nil {
		resolved = executable
	}
	return filepath.Dir(resolved), nil
}
