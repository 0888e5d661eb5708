package tree

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/narconet/narconet/pkg/ignore"
)

func mustMatcher(t *testing.T, patterns []string) *ignore.Matcher {
	t.Helper()
	m, err := ignore.Compile(patterns)
	if err != nil {
		t.Fatalf("ignore.Compile error: %v", err)
	}
	return m
}

func TestScanBasic(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "plugins", "A.dll"), "hello world")
	writeFile(t, filepath.Join(root, "plugins", "sub", "B.dll"), "goodbye world")
	if err := os.MkdirAll(filepath.Join(root, "plugins", "empty"), 0o755); err != nil {
		t.Fatal(err)
	}

	scanner := &Scanner{
		InstallRoot:      root,
		ServerExclusions: mustMatcher(t, nil),
		ClientExclusions: mustMatcher(t, nil),
	}

	syncPaths := []SyncPath{{Path: "plugins", Name: "plugins", Enabled: true}}
	result, err := scanner.Scan(context.Background(), syncPaths)
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}

	fileMap := result.Get("plugins")
	if fileMap == nil {
		t.Fatalf("expected a file map for sync path 'plugins'")
	}

	if _, ok := fileMap.Get("A.dll"); !ok {
		t.Errorf("expected A.dll to be present")
	}
	if _, ok := fileMap.Get("sub/B.dll"); !ok {
		t.Errorf("expected sub/B.dll to be present")
	}
	record, ok := fileMap.Get("empty")
	if !ok || !record.IsDirectory {
		t.Errorf("expected an empty directory record for 'empty'")
	}
}

func TestScanRespectsExclusions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "plugins", "A.dll"), "hello world")
	writeFile(t, filepath.Join(root, "plugins", "A.log"), "log content")

	scanner := &Scanner{
		InstallRoot:      root,
		ServerExclusions: mustMatcher(t, []string{"*.log"}),
		ClientExclusions: mustMatcher(t, nil),
	}

	result, err := scanner.Scan(context.Background(), []SyncPath{{Path: "plugins", Enabled: true}})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}

	fileMap := result.Get("plugins")
	if _, ok := fileMap.Get("A.log"); ok {
		t.Errorf("expected A.log to be excluded")
	}
	if _, ok := fileMap.Get("A.dll"); !ok {
		t.Errorf("expected A.dll to remain")
	}
}

func TestScanEnforcedIgnoresClientExclusions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "core", "must-have.dll"), "content")

	scanner := &Scanner{
		InstallRoot:      root,
		ServerExclusions: mustMatcher(t, nil),
		ClientExclusions: mustMatcher(t, []string{"*.dll"}),
	}

	result, err := scanner.Scan(context.Background(), []SyncPath{{Path: "core", Enabled: true, Enforced: true}})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}

	if _, ok := result.Get("core").Get("must-have.dll"); !ok {
		t.Errorf("enforced sync paths must ignore client-local exclusions")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
