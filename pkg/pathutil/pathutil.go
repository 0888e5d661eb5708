// Package pathutil implements the path normalizer (C1): it canonicalizes
// separators for sync-path and file-record paths and rejects paths that are
// absolute or that escape the installation root.
package pathutil

import (
	"path"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidSyncPath is returned when a configured or requested path is
// absolute, escapes the installation root by more than the one permitted
// sibling level, or is otherwise malformed.
var ErrInvalidSyncPath = errors.New("invalid sync path")

// ToForwardSlash converts a path to its canonical internal form: forward
// slashes, the form glob patterns and diff keys are matched against.
func ToForwardSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// ToBackslash converts a path to the wire form used in JSON payloads and
// query strings, per spec.md 4.1/4.7.
func ToBackslash(p string) string {
	return strings.ReplaceAll(p, "/", "\\")
}

// EqualFold reports whether two paths are equal under the case-insensitive
// comparison required everywhere in spec.md (TreeMap keys, SyncPath names).
func EqualFold(a, b string) bool {
	return strings.EqualFold(ToForwardSlash(a), ToForwardSlash(b))
}

// Validate checks a user-supplied relative sync-path segment against the
// rules of spec.md 4.1: it must not be absolute, and its cleaned form must
// not escape the installation root by more than one parent level (the
// installation root is "<root>/<server>/" and configured trees may
// reference "<root>/<sibling>/...").
func Validate(relative string) error {
	if relative == "" {
		return errors.Wrap(ErrInvalidSyncPath, "path is empty")
	}

	forward := ToForwardSlash(relative)
	if path.IsAbs(forward) {
		return errors.Wrap(ErrInvalidSyncPath, "path is absolute")
	}
	// A Windows-style drive-letter root ("C:\...") is also absolute.
	if len(forward) >= 2 && forward[1] == ':' {
		return errors.Wrap(ErrInvalidSyncPath, "path is absolute")
	}

	cleaned := path.Clean(forward)
	if cleaned == "." {
		return errors.Wrap(ErrInvalidSyncPath, "path resolves to the root itself")
	}

	depth := 0
	for _, segment := range strings.Split(cleaned, "/") {
		switch segment {
		case "..":
			depth--
			if depth < -1 {
				return errors.Wrap(ErrInvalidSyncPath, "path escapes the installation root")
			}
		case ".", "":
			// No-op.
		default:
			depth++
		}
	}

	return nil
}

// Join mirrors path.Join but always normalizes the result to forward-slash
// form, so callers building relative paths out of sync-path and file-record
// segments never have to think about separator style.
func Join(elements ...string) string {
	forwardElements := make([]string, len(elements))
	for i, e := range elements {
		forwardElements[i] = ToForwardSlash(e)
	}
	return path.Join(forwardElements...)
}
