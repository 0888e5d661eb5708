package stage

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/narconet/narconet/pkg/logging"
	"github.com/narconet/narconet/pkg/pathutil"
)

// Apply executes every operation in manifest, in order, against
// installRoot, resolving CopyFile/MoveFile sources relative to
// stagingRoot, per spec.md 4.10. Every operation is idempotent on its own
// (re-running Apply with the same manifest after a crash mid-apply leaves
// the filesystem in the same state), except that MoveFile following a
// CopyFile to the same destination relies on manifest construction placing
// MoveFile after any such CopyFile — Apply itself does not reorder.
func Apply(installRoot, stagingRoot string, manifest *Manifest, logger *logging.Logger) error {
	for _, op := range manifest.Operations {
		if err := validateDestination(op.Destination); err != nil {
			return errors.Wrapf(err, "operation %+v", op)
		}

		var err error
		switch op.Type {
		case OpCreateDirectory:
			err = applyCreateDirectory(installRoot, op)
		case OpCopyFile:
			err = applyCopyFile(installRoot, stagingRoot, op)
		case OpMoveFile:
			err = applyMoveFile(installRoot, stagingRoot, op)
		case OpDeleteFile:
			err = applyDeleteFile(installRoot, op)
		default:
			err = errors.Errorf("unknown operation type %q", op.Type)
		}
		if err != nil {
			return errors.Wrapf(err, "unable to apply %s %q", op.Type, op.Destination)
		}
	}
	return nil
}

// validateDestination rejects manifest destinations that are absolute or
// escape the installation root, mirroring the path normalizer's rule
// (spec.md 4.1, reused per 4.10 step 1).
func validateDestination(destination string) error {
	return pathutil.Validate(destination)
}

func applyCreateDirectory(installRoot string, op Operation) error {
	target := filepath.Join(installRoot, filepath.FromSlash(op.Destination))
	return os.MkdirAll(target, 0o755)
}

func applyCopyFile(installRoot, stagingRoot string, op Operation) error {
	source := filepath.Join(stagingRoot, filepath.FromSlash(op.Source))
	destination := filepath.Join(installRoot, filepath.FromSlash(op.Destination))

	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return err
	}
	return copyFileBytes(source, destination)
}

func applyMoveFile(installRoot, stagingRoot string, op Operation) error {
	source := filepath.Join(stagingRoot, filepath.FromSlash(op.Source))
	destination := filepath.Join(installRoot, filepath.FromSlash(op.Destination))

	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return err
	}

	if err := copyFileBytes(source, destination); err != nil {
		if os.IsNotExist(err) {
			// Source already consumed by a prior, interrupted run: the
			// destination from that run is what survives. Idempotent no-op.
			return nil
		}
		return err
	}
	if err := os.Remove(source); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func applyDeleteFile(installRoot string, op Operation) error {
	target := filepath.Join(installRoot, filepath.FromSlash(op.Destination))
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return err
	}

	parent := filepath.Dir(target)
	removeIfEmptyWithinRoot(installRoot, parent)
	return nil
}

// removeIfEmptyWithinRoot removes dir if it is empty, stopping at
// installRoot, per spec.md 4.10 step 5 ("remove the containing directory if
// it becomes empty, not beyond the installation root").
func removeIfEmptyWithinRoot(installRoot, dir string) {
	cleanRoot := filepath.Clean(installRoot)
	for {
		cleanDir := filepath.Clean(dir)
		if cleanDir == cleanRoot || len(cleanDir) <= len(cleanRoot) {
			return
		}
		entries, err := os.ReadDir(cleanDir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(cleanDir); err != nil {
			return
		}
		dir = filepath.Dir(cleanDir)
	}
}

func copyFileBytes(source, destination string) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(destination)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Cleanup removes the manifest file and the staging directory, per
// spec.md 4.10 step 6. Errors are logged, not fatal: a leftover manifest
// or staging directory does not corrupt the installation, only wastes
// disk until the next sync overwrites it.
func Cleanup(manifestPath, stagingRoot string, logger *logging.Logger) {
	if err := os.Remove(manifestPath); err != nil && !os.IsNotExist(err) {
		logger.Warn(errors.Wrap(err, "unable to remove update manifest"))
	}
	if err := os.RemoveAll(stagingRoot); err != nil {
		logger.Warn(errors.Wrap(err, "unable to remove staging directory"))
	}
}
