// Package orchestrator implements the client orchestrator (C12): it
// sequences one full sync run — querying the server's descriptors,
// scanning the local tree, diffing, downloading, and applying or staging
// the result — per spec.md 4.12.
package orchestrator

import (
	"context"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/narconet/narconet/pkg/config"
	"github.com/narconet/narconet/pkg/diff"
	"github.com/narconet/narconet/pkg/download"
	"github.com/narconet/narconet/pkg/ignore"
	"github.com/narconet/narconet/pkg/logging"
	"github.com/narconet/narconet/pkg/narconet"
	"github.com/narconet/narconet/pkg/pathutil"
	"github.com/narconet/narconet/pkg/stage"
	"github.com/narconet/narconet/pkg/tree"
)

// PromptFunc presents the optional and enforced update lists (human-
// readable, one line per changed file) to the user and reports whether
// they accepted the optional updates. Enforced updates are applied
// regardless of the answer, per spec.md 4.12 step 10.
type PromptFunc func(optional, enforced []string) (acceptOptional bool)

// Orchestrator sequences one client sync run against a single server.
type Orchestrator struct {
	BaseURL     string
	InstallRoot string
	HTTPClient  *http.Client
	Logger      *logging.Logger

	// Headless indicates no interactive user is available: defaults are
	// created for missing state files and prompts are skipped, per
	// spec.md 4.12 steps 4 and 10.
	Headless bool
	// Silent suppresses prompts even in an interactive session.
	Silent bool
	// Prompt is consulted when neither Headless nor Silent is set and the
	// update count is nonzero. If nil, optional updates are accepted
	// without asking.
	Prompt PromptFunc

	// UpdaterPath is the path to the narconet-updater executable. If
	// empty, it is resolved to a sibling of the running executable.
	UpdaterPath string
}

// Summary reports the outcome of one Run.
type Summary struct {
	UpdateCount     int
	Applied         bool
	RestartRequired bool
	ServerVersion   string
}

// Run executes one full sync sequence, per spec.md 4.12 steps 1-11.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	c := newClient(o.BaseURL, o.HTTPClient)
	layout := config.NewLayout(o.InstallRoot)

	// Step 1: GET /version; log mismatch, never abort.
	serverVersion, err := c.version()
	if err != nil {
		o.Logger.Warn(errors.Wrap(err, "unable to reach server for version check"))
	} else if serverVersion != narconet.Version {
		o.Logger.Warn(errors.Errorf("server version %q differs from client version %q", serverVersion, narconet.Version))
	}

	// Step 2: GET /syncpaths; validate each, abort on any failure.
	syncPaths, err := c.syncPaths()
	if err != nil {
		return nil, errors.Wrap(err, "unable to fetch sync paths")
	}
	for _, syncPath := range syncPaths {
		if err := pathutil.Validate(syncPath.Path); err != nil {
			return nil, errors.Wrapf(err, "server sync path %q is invalid", syncPath.Path)
		}
	}

	// Step 3: legacy data migration is out of core (spec.md 1); nothing
	// to do for a fresh NarcoNet_Data layout.

	// Step 4: load previous-remote and local exclusions; create defaults
	// if headless and missing.
	previousRemoteExisted := fileExists(layout.PreviousSync())
	previousRemote := loadTreeMap(layout.PreviousSync(), o.Logger)
	exclusionsExisted := fileExists(layout.Exclusions())
	localExclusionPatterns := loadExclusions(layout.Exclusions(), o.Logger)

	if o.Headless {
		if !previousRemoteExisted {
			if err := saveTreeMap(layout.PreviousSync(), previousRemote, o.Logger); err != nil {
				o.Logger.Warn(errors.Wrap(err, "unable to create default previous-remote state"))
			}
		}
		if !exclusionsExisted {
			if err := saveExclusions(layout.Exclusions(), localExclusionPatterns, o.Logger); err != nil {
				o.Logger.Warn(errors.Wrap(err, "unable to create default exclusions state"))
			}
		}
	}

	// Step 5: GET /exclusions.
	serverExclusionPatterns, err := c.exclusions()
	if err != nil {
		return nil, errors.Wrap(err, "unable to fetch server exclusions")
	}

	// Step 6: compile both exclusion sets; run the scanner locally on
	// enabled-or-enforced paths.
	serverExclusions, err := ignore.Compile(serverExclusionPatterns)
	if err != nil {
		return nil, errors.Wrap(err, "unable to compile server exclusions")
	}
	clientExclusions, err := ignore.Compile(localExclusionPatterns)
	if err != nil {
		return nil, errors.Wrap(err, "unable to compile local exclusions")
	}

	enabledPaths := enabledOrEnforced(syncPaths)

	scanner := &tree.Scanner{
		InstallRoot:      o.InstallRoot,
		ServerExclusions: serverExclusions,
		ClientExclusions: clientExclusions,
		Logger:           o.Logger,
	}
	local, err := scanner.Scan(ctx, enabledPaths)
	if err != nil {
		return nil, errors.Wrap(err, "unable to scan local tree")
	}
	if err := saveTreeMap(layout.LocalHashes(), local, o.Logger); err != nil {
		o.Logger.Warn(errors.Wrap(err, "unable to persist local hashes debug snapshot"))
	}

	// Step 7: GET /hashes?path=… for enabled paths.
	requestedPaths := make([]string, len(enabledPaths))
	for i, syncPath := range enabledPaths {
		requestedPaths[i] = syncPath.Path
	}
	remote, err := c.hashes(requestedPaths)
	if err != nil {
		return nil, errors.Wrap(err, "unable to fetch remote hashes")
	}

	// Step 8: feed the three TreeMaps to the diff engine.
	results := diff.Compute(enabledPaths, local, remote, previousRemote, clientExclusions, o.InstallRoot)

	updateCount := 0
	for _, result := range results {
		updateCount += len(result.Added) + len(result.Updated) + len(result.Removed) + len(result.CreatedDirectories)
	}

	summary := &Summary{UpdateCount: updateCount, ServerVersion: serverVersion}

	// Step 9: nothing changed; persist current remote as previous-remote
	// and finish.
	if updateCount == 0 {
		if err := saveTreeMap(layout.PreviousSync(), remote, o.Logger); err != nil {
			return summary, errors.Wrap(err, "unable to persist previous-remote state")
		}
		o.recordSyncCompleted(layout)
		return summary, nil
	}

	// Step 10: decide whether optional updates proceed.
	acceptOptional := o.Silent || o.Headless
	if !acceptOptional {
		optionalLines, enforcedLines := describeUpdates(enabledPaths, results)
		if o.Prompt != nil {
			acceptOptional = o.Prompt(optionalLines, enforcedLines)
		} else {
			acceptOptional = true
		}
	}

	// Step 11: drive the downloader, then either stage for the updater
	// or apply in place.
	applyResults := results
	if !acceptOptional {
		applyResults = enforcedOnly(enabledPaths, results)
	}

	restartRequired, err := o.apply(ctx, layout, enabledPaths, applyResults, remote)
	if err != nil {
		return summary, err
	}

	summary.Applied = true
	summary.RestartRequired = restartRequired
	return summary, nil
}

// apply downloads every changed file and either applies non-restart-
// required sync paths in place or stages restart-required ones for the
// updater, per spec.md 4.9/4.10/4.11. It reports whether any
// restart-required operation was staged.
func (o *Orchestrator) apply(ctx context.Context, layout config.Layout, syncPaths []tree.SyncPath, results map[string]diff.Result, remote tree.TreeMap) (bool, error) {
	var combined plan
	for _, syncPath := range syncPaths {
		combined = combined.merge(buildPlan(o.InstallRoot, layout.PendingUpdates(), syncPath, results[syncPath.Key()]))
	}

	downloader := &download.Downloader{BaseURL: o.BaseURL, Logger: o.Logger}
	if len(combined.downloads) > 0 {
		if err := downloader.Download(ctx, combined.downloads, func(p download.Progress) {
			o.Logger.Debugf("downloaded %s of %s files", humanize.Comma(int64(p.Completed)), humanize.Comma(int64(p.Total)))
		}); err != nil {
			os.RemoveAll(layout.PendingUpdates())
			return false, errors.Wrap(err, "download failed")
		}
	}

	for _, relative := range combined.createDirsLive {
		if err := os.MkdirAll(filepath.Join(o.InstallRoot, filepath.FromSlash(relative)), 0o755); err != nil {
			o.Logger.Warn(errors.Wrapf(err, "unable to create directory %q", relative))
		}
	}
	var removedForLegacy []string
	for _, relative := range combined.removeLive {
		target := filepath.Join(o.InstallRoot, filepath.FromSlash(relative))
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			o.Logger.Warn(errors.Wrapf(err, "unable to remove %q", relative))
		}
		removedForLegacy = append(removedForLegacy, relative)
	}
	if err := saveRemovedFiles(layout.RemovedFiles(), removedForLegacy, o.Logger); err != nil {
		o.Logger.Warn(errors.Wrap(err, "unable to persist removed-files list"))
	}

	if combined.restartRequired && len(combined.manifestOps) > 0 {
		manifest := &stage.Manifest{RemoteSyncData: remote, Operations: combined.manifestOps}
		if err := stage.Write(layout.UpdateManifest(), manifest, o.Logger); err != nil {
			return false, errors.Wrap(err, "unable to write update manifest")
		}
		if err := o.launchUpdater(); err != nil {
			return false, errors.Wrap(err, "unable to launch updater")
		}
		// previous-remote is intentionally not updated here: the updater
		// completes the apply after this process exits, and the next
		// run's comparison against the now-applied tree will show an
		// empty diff regardless.
		return true, nil
	}

	if err := saveTreeMap(layout.PreviousSync(), remote, o.Logger); err != nil {
		return false, err
	}
	o.recordSyncCompleted(layout)
	return false, nil
}

// recordSyncCompleted updates SyncState.json's lastSyncTime, preserving
// whatever lastSequence a previous incremental-sync path may have
// recorded.
func (o *Orchestrator) recordSyncCompleted(layout config.Layout) {
	state := loadSyncState(layout.SyncState(), o.Logger)
	state.LastSyncTime = now()
	if err := saveSyncState(layout.SyncState(), state, o.Logger); err != nil {
		o.Logger.Warn(errors.Wrap(err, "unable to persist sync state"))
	}
}

// launchUpdater spawns narconet-updater as a detached process carrying
// this process's PID, per spec.md 4.11's command line contract.
func (o *Orchestrator) launchUpdater() error {
	updaterPath := o.UpdaterPath
	if updaterPath == "" {
		resolved, err := defaultUpdaterPath()
		if err != nil {
			return err
		}
		updaterPath = resolved
	}

	cmd := exec.Command(updaterPath, strconv.Itoa(os.Getpid()))
	cmd.Dir = o.InstallRoot
	return cmd.Start()
}

func defaultUpdaterPath() (string, error) {
	executable, err := os.Executable()
	if err != nil {
		return "", errors.Wrap(err, "unable to determine executable path")
	}
	name := "narconet-updater"
	if filepath.Ext(executable) == ".exe" {
		name += ".exe"
	}
	return filepath.Join(filepath.Dir(executable), name), nil
}

func enabledOrEnforced(syncPaths []tree.SyncPath) []tree.SyncPath {
	var result []tree.SyncPath
	for _, syncPath := range syncPaths {
		if syncPath.SyncsByDefault() {
			result = append(result, syncPath)
		}
	}
	return result
}

// enforcedOnly restricts each sync path's result to nothing when the path
// is not enforced (the user skipped optional updates), keeping enforced
// paths untouched.
func enforcedOnly(syncPaths []tree.SyncPath, results map[string]diff.Result) map[string]diff.Result {
	filtered := make(map[string]diff.Result, len(results))
	for _, syncPath := range syncPaths {
		if syncPath.Enforced {
			filtered[syncPath.Key()] = results[syncPath.Key()]
		} else {
			filtered[syncPath.Key()] = diff.Result{}
		}
	}
	return filtered
}

// describeUpdates renders human-readable one-line summaries of pending
// changes, split by whether their sync path is enforced, for the prompt.
func describeUpdates(syncPaths []tree.SyncPath, results map[string]diff.Result) (optional, enforced []string) {
	for _, syncPath := range syncPaths {
		result := results[syncPath.Key()]
		lines := describeResult(syncPath, result)
		if syncPath.Enforced {
			enforced = append(enforced, lines...)
		} else {
			optional = append(optional, lines...)
		}
	}
	return optional, enforced
}

func describeResult(syncPath tree.SyncPath, result diff.Result) []string {
	var lines []string
	for _, record := range result.Added {
		lines = append(lines, "add "+pathutil.Join(syncPath.Path, record.RelativePath))
	}
	for _, record := range result.Updated {
		lines = append(lines, "update "+pathutil.Join(syncPath.Path, record.RelativePath))
	}
	for _, record := range result.Removed {
		lines = append(lines, "remove "+pathutil.Join(syncPath.Path, record.RelativePath))
	}
	return lines
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// now exists so tests can stub time without reaching for Date.now()-style
// nondeterminism in higher layers.
var now = time.Now
