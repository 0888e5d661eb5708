package orchestrator

import (
	"path/filepath"

	"github.com/narconet/narconet/pkg/diff"
	"github.com/narconet/narconet/pkg/download"
	"github.com/narconet/narconet/pkg/pathutil"
	"github.com/narconet/narconet/pkg/stage"
	"github.com/narconet/narconet/pkg/tree"
)

// plan is the work one sync run must perform, split by whether it lands
// directly in the installation root or must be staged for the updater
// (spec.md 4.9's restart-required distinction).
type plan struct {
	downloads       []download.Request
	createDirsLive  []string // installRoot-relative, forward-slash
	removeLive      []string // installRoot-relative, forward-slash
	manifestOps     []stage.Operation
	restartRequired bool
}

// buildPlan turns one sync path's diff.Result into download requests and,
// for restart-required paths, manifest operations, per spec.md 4.9 and
// 4.10. Downloads for non-restart paths land directly in the installation
// root; downloads for restart-required paths land under PendingUpdates and
// are paired with a CopyFile manifest operation.
func buildPlan(installRoot, pendingUpdatesDir string, syncPath tree.SyncPath, result diff.Result) plan {
	p := plan{restartRequired: syncPath.RestartRequired}

	for _, record := range append(append([]tree.FileRecord{}, result.Added...), result.Updated...) {
		wirePath := pathutil.Join(syncPath.Path, record.RelativePath)

		if syncPath.RestartRequired {
			stagedPath, manifestDestination := download.StagingDestination(pendingUpdatesDir, wirePath)
			p.downloads = append(p.downloads, download.Request{WirePath: wirePath, Destination: stagedPath})
			p.manifestOps = append(p.manifestOps, stage.Operation{
				Type:        stage.OpCopyFile,
				Source:      relativeToPendingUpdates(stagedPath, pendingUpdatesDir),
				Destination: manifestDestination,
			})
		} else {
			destination := filepath.Join(installRoot, filepath.FromSlash(wirePath))
			p.downloads = append(p.downloads, download.Request{WirePath: wirePath, Destination: destination})
		}
	}

	for _, record := range result.CreatedDirectories {
		relative := pathutil.Join(syncPath.Path, record.RelativePath)
		if syncPath.RestartRequired {
			p.manifestOps = append(p.manifestOps, stage.Operation{Type: stage.OpCreateDirectory, Destination: relative})
		} else {
			p.createDirsLive = append(p.createDirsLive, relative)
		}
	}

	for _, record := range result.Removed {
		relative := pathutil.Join(syncPath.Path, record.RelativePath)
		if syncPath.RestartRequired {
			p.manifestOps = append(p.manifestOps, stage.Operation{Type: stage.OpDeleteFile, Destination: relative})
		} else {
			p.removeLive = append(p.removeLive, relative)
		}
	}

	return p
}

// relativeToPendingUpdates converts an absolute staged path back to a
// forward-slash path relative to pendingUpdatesDir, since the manifest
// records CopyFile sources relative to the staging root (spec.md 4.10).
func relativeToPendingUpdates(stagedPath, pendingUpdatesDir string) string {
	relative, err := filepath.Rel(pendingUpdatesDir, stagedPath)
	if err != nil {
		return pathutil.ToForwardSlash(stagedPath)
	}
	return pathutil.ToForwardSlash(relative)
}

// merge appends b's fields onto a and returns a.
func (a plan) merge(b plan) plan {
	a.downloads = append(a.downloads, b.downloads...)
	a.createDirsLive = append(a.createDirsLive, b.createDirsLive...)
	a.removeLive = append(a.removeLive, b.removeLive...)
	a.manifestOps = append(a.manifestOps, b.manifestOps...)
	if b.restartRequired {
		a.restartRequired = true
	}
	return a
}
