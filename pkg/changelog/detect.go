package changelog

import (
	"context"
	"io/fs"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/narconet/narconet/pkg/fingerprint"
	"github.com/narconet/narconet/pkg/ignore"
	"github.com/narconet/narconet/pkg/logging"
	"github.com/narconet/narconet/pkg/pathutil"
	"github.com/narconet/narconet/pkg/snapshot"
	"github.com/narconet/narconet/pkg/tree"
)

// Detector owns the server's in-memory snapshot and change log and is the
// sole process-wide singleton permitted by spec.md 9 ("process-wide state
// is permitted only for the change-log store instance"). It serializes
// every mutation behind a single gate (spec.md 5: "a single serialization
// gate protects the change log across append operations; reads may run
// concurrently with readers but not with an appending writer").
type Detector struct {
	InstallRoot      string
	ServerExclusions *ignore.Matcher
	Logger           *logging.Logger
	SnapshotStore    *snapshot.Store
	ChangeLogStore   *Store

	mu       sync.RWMutex
	snapshot *snapshot.Snapshot
	log      *ChangeLog
}

// NewDetector constructs a Detector. Call Load before serving any request.
func NewDetector(installRoot string, serverExclusions *ignore.Matcher, logger *logging.Logger, snapshotStore *snapshot.Store, changeLogStore *Store) *Detector {
	return &Detector{
		InstallRoot:      installRoot,
		ServerExclusions: serverExclusions,
		Logger:           logger,
		SnapshotStore:    snapshotStore,
		ChangeLogStore:   changeLogStore,
	}
}

// Load reads the persisted snapshot and change log into memory. It never
// fails: a missing or malformed file degrades to empty state, per
// spec.md 4.5/4.6.
func (d *Detector) Load() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.snapshot = d.SnapshotStore.Load()
	d.log = d.ChangeLogStore.Load()
}

// CurrentSequence returns the change log's current sequence number.
func (d *Detector) CurrentSequence() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.log.CurrentSequence
}

// GetChangesSince returns the current sequence and every entry with
// sequence > since, ascending, per the `/changes` endpoint contract.
func (d *Detector) GetChangesSince(since uint64) (uint64, []ChangeEntry) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	changes := d.log.GetChangesSince(since)
	if changes == nil {
		changes = []ChangeEntry{}
	}
	return d.log.CurrentSequence, changes
}

// Snapshot returns a snapshot of the current in-memory tree state,
// suitable for building /hashes responses without rescanning.
func (d *Detector) Snapshot() *snapshot.Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snapshot
}

// Prune drops change log entries older than maxAge and persists the
// result.
func (d *Detector) Prune(maxAge time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log.PruneOlderThan(maxAge, time.Now().UTC())
	return d.ChangeLogStore.Save(d.log)
}

// oldFile is one remembered entry from the prior snapshot, keyed by its
// case-normalized path but retaining the originally recorded casing so
// Delete entries can report it.
type oldFile struct {
	path  string
	entry snapshot.Entry
}

// DetectChanges rescans every sync path that syncs by default, compares
// the result against the in-memory snapshot, appends any Add/Modify/Delete
// entries to the change log, and persists both stores. It implements both
// `detectStartup` (called once at boot) and `/recheck` (called on demand),
// per spec.md 4.6.
//
// Modification detection follows spec.md 4.6: a file only has its hash
// recomputed when its size or mtime differs from the snapshot; otherwise
// the previously recorded hash is reused. This is the "possibly changed"
// optimization that avoids rehashing an untouched tree on every recheck.
func (d *Detector) DetectChanges(ctx context.Context, syncPaths []tree.SyncPath) ([]ChangeEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	oldByKey := make(map[string]oldFile, len(d.snapshot.Files))
	for path, entry := range d.snapshot.Files {
		oldByKey[tree.NormalizeKey(path)] = oldFile{path: path, entry: entry}
	}

	newFiles := make(map[string]snapshot.Entry)
	seen := make(map[string]bool)
	var changes []ChangeEntry
	now := time.Now().UTC()

	noClientExclusions, _ := ignore.Compile(nil)
	claims := tree.NewClaims()

	for _, syncPath := range syncPaths {
		if !syncPath.SyncsByDefault() {
			continue
		}

		onFile := func(relativePath, fullPath string, info fs.FileInfo) error {
			globalPath := pathutil.Join(syncPath.Path, relativePath)
			key := tree.NormalizeKey(globalPath)
			seen[key] = true

			size := info.Size()
			modTime := info.ModTime().UTC()

			old, existed := oldByKey[key]
			possiblyChanged := !existed || old.entry.IsDirectory || old.entry.Size != size || !old.entry.ModTimeUTC.Equal(modTime)

			hash := ""
			if possiblyChanged {
				computed, err := fingerprint.Compute(fullPath)
				if err != nil {
					return err
				}
				hash = computed
			} else {
				hash = old.entry.Hash
			}

			newFiles[globalPath] = snapshot.Entry{Hash: hash, Size: size, ModTimeUTC: modTime}

			switch {
			case !existed:
				changes = append(changes, ChangeEntry{Op: OpAdd, RelativePath: globalPath, Hash: hash, Size: size, ModTimeUTC: modTime, Timestamp: now})
			case possiblyChanged && old.entry.Hash != hash:
				changes = append(changes, ChangeEntry{Op: OpModify, RelativePath: globalPath, Hash: hash, Size: size, ModTimeUTC: modTime, Timestamp: now})
			}
			return nil
		}

		onEmptyDir := func(relativePath, fullPath string) error {
			globalPath := pathutil.Join(syncPath.Path, relativePath)
			key := tree.NormalizeKey(globalPath)
			seen[key] = true
			newFiles[globalPath] = snapshot.Entry{IsDirectory: true}
			if _, existed := oldByKey[key]; !existed {
				changes = append(changes, ChangeEntry{Op: OpAdd, RelativePath: globalPath, Timestamp: now})
			}
			return nil
		}

		err := tree.WalkSyncPath(
			ctx, d.InstallRoot, syncPath, d.ServerExclusions, noClientExclusions,
			d.Logger, claims, onFile, onEmptyDir,
		)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to scan sync path %q", syncPath.Path)
		}
	}

	for key, old := range oldByKey {
		if seen[key] {
			continue
		}
		changes = append(changes, ChangeEntry{Op: OpDelete, RelativePath: old.path, Timestamp: now})
	}

	sequence := d.log.CurrentSequence
	for i := range changes {
		sequence++
		changes[i].Sequence = sequence
	}

	if len(changes) > 0 {
		d.log.AppendChanges(changes, now)
		if err := d.ChangeLogStore.Save(d.log); err != nil {
			return nil, errors.Wrap(err, "unable to save change log")
		}
	}

	d.snapshot = &snapshot.Snapshot{Files: newFiles, Sequence: d.log.CurrentSequence, Timestamp: now}
	if err := d.SnapshotStore.Save(d.snapshot); err != nil {
		return nil, errors.Wrap(err, "unable to save snapshot")
	}

	if changes == nil {
		changes = []ChangeEntry{}
	}
	return changes, nil
}
