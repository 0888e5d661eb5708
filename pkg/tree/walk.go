package tree

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/narconet/narconet/pkg/ignore"
	"github.com/narconet/narconet/pkg/logging"
	"github.com/narconet/narconet/pkg/pathutil"
)

// Claims tracks, across a group of sync paths being walked together, which
// path (the filepath.Clean form of the walked path, with symlinks not
// resolved) has already been attributed to one of them. It
// resolves the overlapping-roots open question (DESIGN.md): the first
// (presumably most specific) sync path that reaches a file claims it; later
// roots skip it silently. A fresh Claims should be created per logical scan
// (one Scanner.Scan call, one changelog detectStartup pass).
type Claims struct {
	mu      sync.Mutex
	claimed map[string]bool
}

// NewClaims creates an empty claim set.
func NewClaims() *Claims {
	return &Claims{claimed: make(map[string]bool)}
}

func (c *Claims) tryClaim(canonicalPath string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.claimed[canonicalPath] {
		return false
	}
	c.claimed[canonicalPath] = true
	return true
}

// WalkSyncPath recursively walks a single sync path's root directory,
// applying the server/client exclusion layers per spec.md 4.4 and the
// symlink-safety and cycle rules of spec.md 4.4, invoking onFile for every
// included file and onEmptyDir for every directory that is empty after
// exclusions. Errors reading or hashing individual entries are logged and
// the entry is simply omitted, matching spec.md 7 ("per-file errors during
// scan and hash are logged and the file is omitted").
func WalkSyncPath(
	ctx context.Context,
	installRoot string,
	syncPath SyncPath,
	serverExclusions, clientExclusions *ignore.Matcher,
	logger *logging.Logger,
	claims *Claims,
	onFile func(relativePath, fullPath string, info fs.FileInfo) error,
	onEmptyDir func(relativePath, fullPath string) error,
) error {
	root := filepath.Join(installRoot, filepath.FromSlash(syncPath.Path))
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil
	}

	excluded := func(relativePath string) bool {
		if serverExclusions.Match(relativePath) {
			return true
		}
		if syncPath.Enforced {
			return false
		}
		return clientExclusions.Match(relativePath)
	}

	visited := make(map[string]bool)

	var walk func(dir, relativeDir string) error
	walk = func(dir, relativeDir string) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		canonicalDir, err := resolveWithinRoot(installRoot, dir)
		if err != nil {
			logger.Warn(errors.Wrapf(err, "skipping unsafe path %q", dir))
			return nil
		}
		if visited[canonicalDir] {
			return nil
		}
		visited[canonicalDir] = true

		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			logger.Warn(errors.Wrapf(err, "unable to read directory %q", dir))
			return nil
		}

		empty := true
		for _, entry := range entries {
			name := entry.Name()
			childRelative := pathutil.Join(relativeDir, name)
			childPath := filepath.Join(dir, name)

			if excluded(childRelative) {
				continue
			}

			info, err := entry.Info()
			if err != nil {
				logger.Warn(errors.Wrapf(err, "unable to stat %q", childPath))
				continue
			}

			if isSymlink(info) {
				target, err := resolveWithinRoot(installRoot, childPath)
				if err != nil {
					logger.Warn(errors.Wrapf(err, "skipping unsafe symlink %q", childPath))
					continue
				}
				targetInfo, err := os.Stat(target)
				if err != nil {
					continue
				}
				if targetInfo.IsDir() {
					if err := walk(childPath, childRelative); err != nil {
						return err
					}
					empty = false
					continue
				}
				info = targetInfo
			}

			if info.IsDir() {
				if err := walk(childPath, childRelative); err != nil {
					return err
				}
				empty = false
				continue
			}

			empty = false
			if claims != nil && !claims.tryClaim(filepath.Clean(childPath)) {
				continue
			}
			if err := onFile(childRelative, childPath, info); err != nil {
				logger.Warn(errors.Wrapf(err, "unable to process %q", childPath))
			}
		}

		if empty && relativeDir != "" {
			if claims == nil || claims.tryClaim(filepath.Clean(dir)) {
				if err := onEmptyDir(relativeDir, dir); err != nil {
					logger.Warn(errors.Wrapf(err, "unable to process empty directory %q", dir))
				}
			}
		}

		return nil
	}

	return walk(root, "")
}

// resolveWithinRoot resolves symlinks in path and verifies the result lies
// inside root, implementing the symlink-following rule of spec.md 4.4.
func resolveWithinRoot(root, path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", err
	}
	rootResolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		rootResolved = root
	}

	rel, err := filepath.Rel(rootResolved, resolved)
	if err != nil || rel == ".." || (len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)) {
		return "", errors.Errorf("path %q escapes installation root %q", path, root)
	}

	return resolved, nil
}

func isSymlink(info fs.FileInfo) bool {
	return info.Mode()&os.ModeSymlink != 0
}
