// Package snapshot implements the snapshot store (C5): a JSON-persisted,
// content-addressed map of the server's last scanned tree, used by the
// change log to detect startup changes.
package snapshot

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/narconet/narconet/pkg/atomicfile"
	"github.com/narconet/narconet/pkg/logging"
)

// Entry is a single file's state as recorded in a Snapshot, per spec.md 3.
type Entry struct {
	Hash        string    `json:"hash"`
	Size        int64     `json:"size"`
	ModTimeUTC  time.Time `json:"mtimeUtc"`
	IsDirectory bool      `json:"isDirectory"`
}

// Snapshot is the server's last full scan.
type Snapshot struct {
	Files     map[string]Entry `json:"files"`
	Sequence  uint64           `json:"sequence"`
	Timestamp time.Time        `json:"timestamp"`
}

// Empty returns a freshly initialized, empty snapshot.
func Empty() *Snapshot {
	return &Snapshot{Files: make(map[string]Entry)}
}

// Store persists a Snapshot as pretty-printed JSON at a fixed path, per
// spec.md 6 (server: snapshot.json). Only the server mutates it.
type Store struct {
	Path   string
	Logger *logging.Logger
}

// NewStore creates a snapshot store rooted at path.
func NewStore(path string, logger *logging.Logger) *Store {
	return &Store{Path: path, Logger: logger}
}

// Load loads the snapshot from disk. If the file is absent or malformed, it
// returns an empty snapshot and logs a warning; it never fails startup, per
// spec.md 4.5.
func (s *Store) Load() *Snapshot {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.Logger.Warn(errors.Wrap(err, "unable to read snapshot file"))
		}
		return Empty()
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.Logger.Warn(errors.Wrap(err, "snapshot file is malformed, starting fresh"))
		return Empty()
	}
	if snap.Files == nil {
		snap.Files = make(map[string]Entry)
	}

	return &snap
}

// Save writes the snapshot atomically (write-temp + rename).
func (s *Store) Save(snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errors.Wrap(err, "unable to marshal snapshot")
	}
	return atomicfile.WriteFile(s.Path, data, 0o644, s.Logger)
}
