package updater

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/narconet/narconet/pkg/logging"
	"github.com/narconet/narconet/pkg/pathutil"
	"github.com/narconet/narconet/pkg/stage"
)

// maxAttempts and retryBackoff implement spec.md 4.11 step 4 ("retry I/O
// errors with exponential backoff up to 3 attempts").
const maxAttempts = 3

var retryBackoff = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// Run executes the full updater contract against installRoot: it waits for
// the host process named by hostPID to exit, reads the manifest (falling
// back to a legacy whole-tree copy if absent or malformed), applies it with
// retry, and cleans up on success. It returns nil on success and a non-nil
// error otherwise; cmd/narconet-updater translates that into the process
// exit code.
func Run(ctx context.Context, installRoot string, hostPID int, logger *logging.Logger) error {
	if err := WaitForExit(ctx, hostPID); err != nil {
		return errors.Wrap(err, "unable to wait for host process to exit")
	}

	dataDir := filepath.Join(installRoot, "NarcoNet_Data")
	manifestPath := filepath.Join(dataDir, "UpdateManifest.json")
	stagingRoot := filepath.Join(dataDir, "PendingUpdates")

	manifest, err := stage.Load(manifestPath)
	if err != nil {
		logger.Warn(errors.Wrap(err, "no usable manifest, falling back to legacy whole-tree copy"))
		manifest, err = legacyManifest(stagingRoot)
		if err != nil {
			return errors.Wrap(err, "unable to build legacy fallback manifest")
		}
	}

	var applyErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryBackoff[attempt-1]):
			}
		}

		applyErr = stage.Apply(installRoot, stagingRoot, manifest, logger)
		if applyErr == nil {
			break
		}
		logger.Warn(errors.Wrapf(applyErr, "apply attempt %d/%d failed", attempt+1, maxAttempts))
	}
	if applyErr != nil {
		return errors.Wrap(applyErr, "unable to apply update manifest after retries")
	}

	stage.Cleanup(manifestPath, stagingRoot, logger)
	return nil
}

// legacyManifest builds a manifest that copies every file found under
// stagingRoot to the same relative path in the installation root, per
// spec.md 4.11 step 2's fallback for clients that never wrote a manifest.
func legacyManifest(stagingRoot string) (*stage.Manifest, error) {
	manifest := &stage.Manifest{}

	if _, err := os.Stat(stagingRoot); os.IsNotExist(err) {
		return manifest, nil
	}

	err := filepath.Walk(stagingRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		relative, err := filepath.Rel(stagingRoot, path)
		if err != nil {
			return err
		}
		relative = pathutil.ToForwardSlash(relative)
		manifest.Operations = append(manifest.Operations, stage.Operation{
			Type:        stage.OpCopyFile,
			Source:      relative,
			Destination: relative,
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to enumerate staging tree")
	}

	return manifest, nil
}
