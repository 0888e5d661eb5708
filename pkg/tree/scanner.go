package tree

import (
	"context"
	"io/fs"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/narconet/narconet/pkg/fingerprint"
	"github.com/narconet/narconet/pkg/ignore"
	"github.com/narconet/narconet/pkg/logging"
)

// HashSemaphoreWeight is the number of concurrent file opens permitted
// during scanning, per spec.md 5 ("hashing is bounded by a semaphore of
// 1024 concurrent file opens").
const HashSemaphoreWeight = 1024

// hashSemaphore is shared by every scan in the process, matching the
// process-wide bound described in spec.md 5 rather than a per-scan limit
// that could be exceeded by concurrent scans.
var hashSemaphore = semaphore.NewWeighted(HashSemaphoreWeight)

// Scanner walks a set of configured sync paths beneath an installation
// root, applying exclusions and yielding a TreeMap. It implements the tree
// scanner (C4).
type Scanner struct {
	// InstallRoot is the absolute path to the installation root. Symlinks
	// are only followed when they resolve inside this root.
	InstallRoot string
	// ServerExclusions is applied to every sync path, enforced or not.
	ServerExclusions *ignore.Matcher
	// ClientExclusions is applied only to non-enforced sync paths.
	ClientExclusions *ignore.Matcher
	// Logger receives per-file scan/hash errors, which are non-fatal: the
	// offending file is simply omitted from the result.
	Logger *logging.Logger
}

// Scan walks every enabled-or-enforced sync path in syncPaths, in the order
// given (callers should supply them pre-sorted by descending path length,
// as the server does for /syncpaths), and returns the resulting TreeMap.
func (s *Scanner) Scan(ctx context.Context, syncPaths []SyncPath) (TreeMap, error) {
	result := NewTreeMap()
	claims := NewClaims()

	for _, syncPath := range syncPaths {
		if !syncPath.SyncsByDefault() {
			continue
		}

		fileMap := NewFileMap()
		onFile := func(relativePath, fullPath string, info fs.FileInfo) error {
			hash, err := s.hash(fullPath)
			if err != nil {
				return errors.Wrapf(err, "unable to hash %q", fullPath)
			}
			fileMap.Set(FileRecord{RelativePath: relativePath, Hash: hash})
			return nil
		}
		onEmptyDir := func(relativePath, fullPath string) error {
			fileMap.Set(FileRecord{RelativePath: relativePath, IsDirectory: true})
			return nil
		}

		err := WalkSyncPath(
			ctx, s.InstallRoot, syncPath, s.ServerExclusions, s.ClientExclusions,
			s.Logger, claims, onFile, onEmptyDir,
		)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to scan sync path %q", syncPath.Path)
		}

		result[syncPath.Key()] = fileMap
	}

	return result, nil
}

// hash computes a file's fingerprint under the shared hashing semaphore.
func (s *Scanner) hash(path string) (string, error) {
	ctx := context.Background()
	if err := hashSemaphore.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer hashSemaphore.Release(1)

	return fingerprint.Compute(path)
}
