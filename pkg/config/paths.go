package config

import "path/filepath"

// DataDirectoryName is the on-disk directory, relative to the installation
// root, holding every client and server state file, per spec.md 6.
const DataDirectoryName = "NarcoNet_Data"

// Layout resolves the on-disk paths of every file spec.md 6 names, relative
// to a given installation root, mirroring the teacher's
// pkg/configuration/global/paths.go pattern of centralizing path
// resolution in one place rather than scattering filepath.Join calls.
type Layout struct {
	Root string
}

// NewLayout returns a Layout rooted at installRoot.
func NewLayout(installRoot string) Layout {
	return Layout{Root: installRoot}
}

func (l Layout) dataDir() string {
	return filepath.Join(l.Root, DataDirectoryName)
}

// PreviousSync is the client's last remote TreeMap.
func (l Layout) PreviousSync() string { return filepath.Join(l.dataDir(), "PreviousSync.json") }

// LocalHashes is the client's last local scan, kept as a debug aid.
func (l Layout) LocalHashes() string { return filepath.Join(l.dataDir(), "LocalHashes.json") }

// Exclusions is the client's local exclusion list.
func (l Layout) Exclusions() string { return filepath.Join(l.dataDir(), "Exclusions.json") }

// RemovedFiles is a flat list consumed by the legacy updater mode.
func (l Layout) RemovedFiles() string { return filepath.Join(l.dataDir(), "RemovedFiles.json") }

// SyncState holds {lastSequence, lastSyncTime}.
func (l Layout) SyncState() string { return filepath.Join(l.dataDir(), "SyncState.json") }

// UpdateManifest is the client-to-updater handoff manifest.
func (l Layout) UpdateManifest() string { return filepath.Join(l.dataDir(), "UpdateManifest.json") }

// PendingUpdates is the client-to-updater staged file tree.
func (l Layout) PendingUpdates() string { return filepath.Join(l.dataDir(), "PendingUpdates") }

// ChangeLog is the server's ChangeLog store.
func (l Layout) ChangeLog() string { return filepath.Join(l.dataDir(), "changelog.json") }

// Snapshot is the server's Snapshot store.
func (l Layout) Snapshot() string { return filepath.Join(l.dataDir(), "snapshot.json") }
