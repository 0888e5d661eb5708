// Package diff implements the diff engine (C8): given local, remote, and
// previous-remote TreeMaps plus the enabled SyncPath list, it produces
// four disjoint per-sync-path sets (added, updated, removed,
// createdDirectories), per spec.md 4.8.
package diff

import (
	"os"
	"path/filepath"

	"github.com/narconet/narconet/pkg/ignore"
	"github.com/narconet/narconet/pkg/tree"
)

// Result holds the four disjoint sets produced for one sync path.
type Result struct {
	Added              []tree.FileRecord
	Updated            []tree.FileRecord
	Removed            []tree.FileRecord
	CreatedDirectories []tree.FileRecord
}

// Compute produces a Result for every sync path in syncPaths. local,
// remote, and previousRemote are looked up by each sync path's key; a
// missing map is treated as empty. clientExclusions is applied (via
// MatchPrefix, per spec.md 4.2) to remote entries of non-enforced sync
// paths before any comparison, so locally excluded files never surface as
// added or updated even though the server still has them (testable
// property 9).
func Compute(syncPaths []tree.SyncPath, local, remote, previousRemote tree.TreeMap, clientExclusions *ignore.Matcher, installRoot string) map[string]Result {
	results := make(map[string]Result, len(syncPaths))

	for _, syncPath := range syncPaths {
		key := syncPath.Key()
		localMap := local.Get(key)
		remoteMap := remote.Get(key)
		previousMap := previousRemote.Get(key)

		filteredRemote := tree.NewFileMap()
		for _, record := range remoteMap.Records() {
			if !syncPath.Enforced && clientExclusions.MatchPrefix(record.RelativePath) {
				continue
			}
			filteredRemote.Set(record)
		}

		results[key] = computeOne(syncPath, localMap, filteredRemote, previousMap, installRoot)
	}

	return results
}

func computeOne(syncPath tree.SyncPath, local, remote, previousRemote *tree.FileMap, installRoot string) Result {
	var result Result

	for _, record := range remote.Records() {
		if record.IsDirectory {
			continue
		}
		if _, inLocal := local.Get(record.RelativePath); inLocal {
			continue
		}
		result.Added = append(result.Added, record)
	}

	for _, remoteRecord := range remote.Records() {
		if remoteRecord.IsDirectory {
			continue
		}
		localRecord, inLocal := local.Get(remoteRecord.RelativePath)
		if !inLocal || localRecord.IsDirectory {
			continue
		}
		if remoteRecord.Hash == localRecord.Hash {
			continue
		}

		if !syncPath.Enforced {
			if previousRecord, ok := previousRemote.Get(remoteRecord.RelativePath); ok && previousRecord.Hash == remoteRecord.Hash {
				continue
			}
		}

		result.Updated = append(result.Updated, remoteRecord)
	}

	for _, previousRecord := range previousRemote.Records() {
		if _, inLocal := local.Get(previousRecord.RelativePath); !inLocal {
			continue
		}
		if _, inRemote := remote.Get(previousRecord.RelativePath); inRemote {
			continue
		}
		result.Removed = append(result.Removed, previousRecord)
	}

	for _, record := range remote.Records() {
		if !record.IsDirectory {
			continue
		}
		if _, inLocal := local.Get(record.RelativePath); inLocal {
			continue
		}
		target := filepath.Join(installRoot, filepath.FromSlash(syncPath.Path), filepath.FromSlash(record.RelativePath))
		if _, err := os.Stat(target); err == nil {
			continue
		}
		result.CreatedDirectories = append(result.CreatedDirectories, record)
	}

	return result
}
