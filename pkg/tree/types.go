// Package tree implements the shared data model (SyncPath, FileRecord,
// TreeMap) and the tree scanner (C4): given a base directory and a list of
// configured sync paths plus a compiled exclusion set, it recursively walks
// each tree and yields file records.
package tree

import (
	"strings"

	"github.com/narconet/narconet/pkg/pathutil"
)

// SyncPath is a configured tree to mirror, per spec.md 3.
type SyncPath struct {
	// Path is the relative path segment naming the tree, forbidden to be
	// absolute or to resolve outside the installation root.
	Path string `json:"path"`
	// Name is a human label. It defaults to Path when empty.
	Name string `json:"name"`
	// Enabled indicates whether the client will sync this path when it is
	// not enforced.
	Enabled bool `json:"enabled"`
	// Enforced indicates the server mandates this sync path; the client
	// toggle is read-only and deleted files are re-installed.
	Enforced bool `json:"enforced"`
	// Silent suppresses interactive prompts for this sync path.
	Silent bool `json:"silent"`
	// RestartRequired indicates updates to this path must be staged and
	// applied by the updater rather than live-patched.
	RestartRequired bool `json:"restartRequired"`
}

// DisplayName returns Name if set, otherwise Path, per spec.md 3 ("name:
// human label (defaults to path)").
func (s SyncPath) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Path
}

// Key returns the canonical, case-insensitive lookup key for this sync
// path, used as the outer key of a TreeMap.
func (s SyncPath) Key() string {
	return normalizeKey(s.Path)
}

// SyncsByDefault reports whether this sync path is synced in the absence of
// any user override: enforced paths always sync, others sync only when
// enabled.
func (s SyncPath) SyncsByDefault() bool {
	return s.Enforced || s.Enabled
}

// FileRecord is one entry in a tree, per spec.md 3.
type FileRecord struct {
	// RelativePath is canonicalized to forward-slash form internally and
	// converted to backslash form only at the wire boundary.
	RelativePath string `json:"relativePath"`
	// Hash is the fingerprint string, empty for directory entries.
	Hash string `json:"hash"`
	// IsDirectory is true only for empty directories that must be
	// materialized on the other side.
	IsDirectory bool `json:"isDirectory"`
}

// NormalizeKey converts a path to the canonical form used for
// case-insensitive TreeMap lookups: forward slashes, lowercased. Exported so
// other packages (changelog, diff) that key their own maps by relative path
// agree with FileMap/TreeMap on what "the same path" means.
func NormalizeKey(p string) string {
	return strings.ToLower(pathutil.ToForwardSlash(p))
}

func normalizeKey(p string) string {
	return NormalizeKey(p)
}
