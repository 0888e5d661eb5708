// Package changelog implements the server's append-only sequenced change
// log (C6): it records Add/Modify/Delete mutations observed across scans,
// answers "changes since sequence N", and prunes old entries by age.
package changelog

import (
	"encoding/json"
	"os"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/narconet/narconet/pkg/atomicfile"
	"github.com/narconet/narconet/pkg/logging"
)

// Op is the kind of mutation a ChangeEntry records.
type Op string

// The three mutation kinds named in spec.md 3.
const (
	OpAdd    Op = "Add"
	OpModify Op = "Modify"
	OpDelete Op = "Delete"
)

// ChangeEntry is one recorded mutation, per spec.md 3. Sequences are
// strictly increasing within a single log; Delete entries carry an empty
// hash.
type ChangeEntry struct {
	Sequence     uint64    `json:"sequence"`
	Op           Op        `json:"op"`
	RelativePath string    `json:"relativePath"`
	Hash         string    `json:"hash"`
	Size         int64     `json:"size"`
	ModTimeUTC   time.Time `json:"mtimeUtc"`
	Timestamp    time.Time `json:"timestamp"`
}

// ChangeLog is the full append-only record, per spec.md 3. AppendChanges
// advances CurrentSequence to the largest appended sequence. PruneOlderThan
// leaves CurrentSequence unchanged, so after pruning it can exceed the
// largest surviving sequence, and it stays nonzero once every entry has been
// pruned; sequences are never reused.
type ChangeLog struct {
	CurrentSequence uint64        `json:"currentSequence"`
	Entries         []ChangeEntry `json:"entries"`
	LastUpdated     time.Time     `json:"lastUpdated"`
}

// Empty returns a freshly initialized, empty change log.
func Empty() *ChangeLog {
	return &ChangeLog{}
}

// GetChangesSince returns the entries with sequence > since, ascending.
// Entries are already stored in ascending sequence order, so this is a
// simple filter.
func (c *ChangeLog) GetChangesSince(since uint64) []ChangeEntry {
	var result []ChangeEntry
	for _, entry := range c.Entries {
		if entry.Sequence > since {
			result = append(result, entry)
		}
	}
	return result
}

// AppendChanges merges new entries onto the log, preserving ascending
// sequence order, and advances CurrentSequence to the new maximum. Callers
// are expected to have already assigned sequences
// (CurrentSequence+1..CurrentSequence+N) to the entries being appended.
func (c *ChangeLog) AppendChanges(entries []ChangeEntry, now time.Time) {
	if len(entries) == 0 {
		return
	}
	c.Entries = append(c.Entries, entries...)
	for _, entry := range entries {
		if entry.Sequence > c.CurrentSequence {
			c.CurrentSequence = entry.Sequence
		}
	}
	c.LastUpdated = now
}

// PruneOlderThan drops entries whose timestamp is older than now-maxAge,
// without renumbering or reordering survivors, per spec.md 4.6 and the
// "pruning preserves order" testable property.
func (c *ChangeLog) PruneOlderThan(maxAge time.Duration, now time.Time) {
	cutoff := now.Add(-maxAge)
	survivors := c.Entries[:0:0]
	for _, entry := range c.Entries {
		if !entry.Timestamp.Before(cutoff) {
			survivors = append(survivors, entry)
		}
	}
	c.Entries = survivors
}

// sortBySequence is a defensive helper; entries are always appended in
// ascending order, but Store.Load tolerates a hand-edited or foreign file.
func sortBySequence(entries []ChangeEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Sequence < entries[j].Sequence
	})
}

// Store persists a ChangeLog as pretty-printed JSON at a fixed path
// (NarcoNet_Data/changelog.json). It is the one permitted process-wide
// singleton per spec.md 9: created at server startup, destroyed at
// shutdown. Store holds no lock of its own (Detector serializes access to
// it); Save writes through atomicfile, so a reader of the file never
// observes a torn write.
type Store struct {
	Path   string
	Logger *logging.Logger
}

// NewStore creates a change log store rooted at path.
func NewStore(path string, logger *logging.Logger) *Store {
	return &Store{Path: path, Logger: logger}
}

// Load loads the change log from disk. If the file is absent or malformed,
// it returns an empty log and logs a warning, matching the snapshot
// store's never-fail-startup behavior.
func (s *Store) Load() *ChangeLog {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.Logger.Warn(errors.Wrap(err, "unable to read change log file"))
		}
		return Empty()
	}

	var log ChangeLog
	if err := json.Unmarshal(data, &log); err != nil {
		s.Logger.Warn(errors.Wrap(err, "change log file is malformed, starting fresh"))
		return Empty()
	}

	sortBySequence(log.Entries)
	return &log
}

// Save writes the change log atomically (write-temp + rename).
func (s *Store) Save(log *ChangeLog) error {
	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return errors.Wrap(err, "unable to marshal change log")
	}
	return atomicfile.WriteFile(s.Path, data, 0o644, s.Logger)
}
