// Package ignore implements the glob matcher (C2): it compiles exclusion
// patterns with the wildcard semantics of spec.md 4.2 and tests
// forward-slash relative paths against them, either fully anchored
// ("^pattern$") or in "prefix" mode, where a pattern additionally excludes
// everything beneath a matched prefix.
package ignore

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"

	"github.com/narconet/narconet/pkg/pathutil"
)

// Matcher tests relative paths against a compiled set of exclusion patterns.
// A Matcher is immutable once compiled and safe for concurrent use, matching
// the teacher's Ignorer contract of returning stable results for a given set
// of arguments.
type Matcher struct {
	// patterns holds each source pattern after brace expansion. A single
	// configured pattern such as "{a,b}/x" expands into multiple literal
	// doublestar patterns ("a/x", "b/x") that are OR'd together at match time.
	patterns []string
}

// Compile compiles a list of exclusion patterns. It returns an error if any
// pattern, after brace expansion, is not valid doublestar glob syntax.
func Compile(specs []string) (*Matcher, error) {
	var expanded []string
	for _, spec := range specs {
		spec = pathutil.ToForwardSlash(strings.TrimSpace(spec))
		if spec == "" {
			continue
		}
		for _, alt := range expandBraces(spec) {
			if !doublestar.ValidatePattern(alt) {
				return nil, errors.Errorf("invalid glob pattern: %s", alt)
			}
			expanded = append(expanded, alt)
		}
	}
	return &Matcher{patterns: expanded}, nil
}

// Empty reports whether the matcher has no patterns, i.e. it will never
// exclude anything.
func (m *Matcher) Empty() bool {
	return m == nil || len(m.patterns) == 0
}

// Match reports whether relativePath (forward-slash form) matches any
// pattern in the matcher, anchored at both ends ("^pattern$").
func (m *Matcher) Match(relativePath string) bool {
	if m.Empty() {
		return false
	}
	relativePath = pathutil.ToForwardSlash(relativePath)
	for _, pattern := range m.patterns {
		if ok, _ := doublestar.Match(pattern, relativePath); ok {
			return true
		}
	}
	return false
}

// MatchPrefix reports whether relativePath is excluded because some pattern
// matches it or matches one of its ancestor directories, anchored only at
// the start. This is used when filtering remote maps so that excluding a
// directory also excludes everything beneath it, per spec.md 4.2.
func (m *Matcher) MatchPrefix(relativePath string) bool {
	if m.Empty() {
		return false
	}
	relativePath = pathutil.ToForwardSlash(relativePath)
	segments := strings.Split(relativePath, "/")

	for _, pattern := range m.patterns {
		for end := 1; end <= len(segments); end++ {
			candidate := strings.Join(segments[:end], "/")
			if ok, _ := doublestar.Match(pattern, candidate); ok {
				return true
			}
		}
	}
	return false
}

// expandBraces expands a single level of "{a,b,c}" alternation in a glob
// pattern into the set of literal patterns it represents. Nested braces are
// not supported, matching the alternation grammar described in spec.md 4.2.
func expandBraces(pattern string) []string {
	open := strings.IndexByte(pattern, '{')
	if open == -1 {
		return []string{pattern}
	}
	close := strings.IndexByte(pattern[open:], '}')
	if close == -1 {
		return []string{pattern}
	}
	close += open

	prefix := pattern[:open]
	alternatives := strings.Split(pattern[open+1:close], ",")
	suffix := pattern[close+1:]

	var results []string
	for _, alt := range alternatives {
		combined := prefix + alt + suffix
		// Recurse in case the suffix contains a second alternation group.
		results = append(results, expandBraces(combined)...)
	}
	return results
}
