package orchestrator

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/narconet/narconet/pkg/atomicfile"
	"github.com/narconet/narconet/pkg/logging"
	"github.com/narconet/narconet/pkg/tree"
)

// SyncState is the client's {lastSequence, lastSyncTime} record, persisted
// at SyncState.json per spec.md 6.
type SyncState struct {
	LastSequence uint64    `json:"lastSequence"`
	LastSyncTime time.Time `json:"lastSyncTime"`
}

// loadTreeMap reads a tree.TreeMap from path (PreviousSync.json or
// LocalHashes.json). A missing or malformed file degrades to an empty map
// with a warning rather than aborting the run, per spec.md 7 ("change-log
// read errors degrade to no prior state").
func loadTreeMap(path string, logger *logging.Logger) tree.TreeMap {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn(errors.Wrapf(err, "unable to read %q", path))
		}
		return tree.NewTreeMap()
	}

	result := tree.NewTreeMap()
	if err := json.Unmarshal(data, &result); err != nil {
		logger.Warn(errors.Wrapf(err, "%q is malformed, treating as absent", path))
		return tree.NewTreeMap()
	}
	return result
}

// saveTreeMap writes a tree.TreeMap atomically, pretty-printed.
func saveTreeMap(path string, tm tree.TreeMap, logger *logging.Logger) error {
	data, err := json.MarshalIndent(tm, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "unable to marshal %q", path)
	}
	return atomicfile.WriteFile(path, data, 0o644, logger)
}

// loadExclusions reads the client's local exclusion list from
// Exclusions.json. A missing file yields an empty list, not an error.
func loadExclusions(path string, logger *logging.Logger) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn(errors.Wrapf(err, "unable to read %q", path))
		}
		return nil
	}

	var patterns []string
	if err := json.Unmarshal(data, &patterns); err != nil {
		logger.Warn(errors.Wrapf(err, "%q is malformed, treating as empty", path))
		return nil
	}
	return patterns
}

// saveExclusions writes the local exclusion list atomically.
func saveExclusions(path string, patterns []string, logger *logging.Logger) error {
	if patterns == nil {
		patterns = []string{}
	}
	data, err := json.MarshalIndent(patterns, "", "  ")
	if err != nil {
		return errors.Wrap(err, "unable to marshal exclusions")
	}
	return atomicfile.WriteFile(path, data, 0o644, logger)
}

// loadSyncState reads SyncState.json. A missing or malformed file yields
// the zero value, meaning "full resync from sequence 0".
func loadSyncState(path string, logger *logging.Logger) SyncState {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn(errors.Wrapf(err, "unable to read %q", path))
		}
		return SyncState{}
	}

	var state SyncState
	if err := json.Unmarshal(data, &state); err != nil {
		logger.Warn(errors.Wrapf(err, "%q is malformed, resetting sync state", path))
		return SyncState{}
	}
	return state
}

// saveSyncState writes SyncState.json atomically.
func saveSyncState(path string, state SyncState, logger *logging.Logger) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "unable to marshal sync state")
	}
	return atomicfile.WriteFile(path, data, 0o644, logger)
}

// saveRemovedFiles writes the flat list of removed-file paths consumed by
// very old updaters that predate the manifest format, per spec.md 6
// (RemovedFiles.json).
func saveRemovedFiles(path string, relativePaths []string, logger *logging.Logger) error {
	if relativePaths == nil {
		relativePaths = []string{}
	}
	data, err := json.MarshalIndent(relativePaths, "", "  ")
	if err != nil {
		return errors.Wrap(err, "unable to marshal removed files list")
	}
	return atomicfile.WriteFile(path, data, 0o644, logger)
}
