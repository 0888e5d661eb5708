// Package atomicfile provides a crash-safe write-temp-then-rename primitive
// used by every JSON store in this module (snapshot, change log,
// previous-remote, manifest), per spec.md 4.5 ("writes are atomic
// (write-temp + rename)").
package atomicfile

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/narconet/narconet/pkg/logging"
)

// temporaryNamePrefix marks intermediate files so they're easy to recognize
// (and clean up) if a process is killed mid-write.
const temporaryNamePrefix = ".narconet-atomic-write-"

// WriteFile writes data to path using an intermediate temporary file that is
// swapped into place with a rename, so readers never observe a partially
// written file.
func WriteFile(path string, data []byte, permissions os.FileMode, logger *logging.Logger) error {
	directory := filepath.Dir(path)
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return errors.Wrap(err, "unable to create parent directory")
	}

	temporary, err := os.CreateTemp(directory, temporaryNamePrefix)
	if err != nil {
		return errors.Wrap(err, "unable to create temporary file")
	}
	temporaryPath := temporary.Name()

	if _, err := temporary.Write(data); err != nil {
		closeAndRemove(temporary, temporaryPath, logger)
		return errors.Wrap(err, "unable to write temporary file")
	}
	if err := temporary.Close(); err != nil {
		removeQuietly(temporaryPath, logger)
		return errors.Wrap(err, "unable to close temporary file")
	}
	if err := os.Chmod(temporaryPath, permissions); err != nil {
		removeQuietly(temporaryPath, logger)
		return errors.Wrap(err, "unable to set temporary file permissions")
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		removeQuietly(temporaryPath, logger)
		return errors.Wrap(err, "unable to rename temporary file into place")
	}

	return nil
}

func closeAndRemove(f *os.File, path string, logger *logging.Logger) {
	if err := f.Close(); err != nil {
		logger.Warn(errors.Wrap(err, "unable to close temporary file"))
	}
	removeQuietly(path, logger)
}

func removeQuietly(path string, logger *logging.Logger) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn(errors.Wrap(err, "unable to remove temporary file"))
	}
}
