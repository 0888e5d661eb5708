package changelog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/narconet/narconet/pkg/ignore"
	"github.com/narconet/narconet/pkg/logging"
	"github.com/narconet/narconet/pkg/snapshot"
	"github.com/narconet/narconet/pkg/tree"
)

func newTestDetector(t *testing.T, root string) *Detector {
	t.Helper()
	noExclusions, err := ignore.Compile(nil)
	if err != nil {
		t.Fatal(err)
	}
	dataDir := filepath.Join(root, "NarcoNet_Data")
	logger := logging.RootLogger.Sublogger("test")
	return NewDetector(
		root, noExclusions, logger,
		snapshot.NewStore(filepath.Join(dataDir, "snapshot.json"), logger),
		NewStore(filepath.Join(dataDir, "changelog.json"), logger),
	)
}

func TestDetectChangesAddModifyDelete(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "plugins", "A.dll"), "hello")
	writeTestFile(t, filepath.Join(root, "plugins", "B.dll"), "world")

	detector := newTestDetector(t, root)
	detector.Load()

	syncPaths := []tree.SyncPath{{Path: "plugins", Enabled: true}}

	changes, err := detector.DetectChanges(context.Background(), syncPaths)
	if err != nil {
		t.Fatalf("DetectChanges error: %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("expected 2 Add entries on first scan, got %d: %v", len(changes), changes)
	}
	for _, c := range changes {
		if c.Op != OpAdd {
			t.Errorf("expected Add op, got %v", c.Op)
		}
	}
	if detector.CurrentSequence() != 2 {
		t.Fatalf("expected sequence 2 after first scan, got %d", detector.CurrentSequence())
	}

	// Rescan with no changes: nothing new.
	changes, err = detector.DetectChanges(context.Background(), syncPaths)
	if err != nil {
		t.Fatalf("DetectChanges error: %v", err)
	}
	if len(changes) != 0 {
		t.Fatalf("expected no changes on stable rescan, got %v", changes)
	}

	// Modify A.dll's content and mtime.
	time.Sleep(10 * time.Millisecond)
	writeTestFile(t, filepath.Join(root, "plugins", "A.dll"), "hello again, longer")
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(filepath.Join(root, "plugins", "A.dll"), future, future); err != nil {
		t.Fatal(err)
	}

	// Delete B.dll.
	if err := os.Remove(filepath.Join(root, "plugins", "B.dll")); err != nil {
		t.Fatal(err)
	}

	changes, err = detector.DetectChanges(context.Background(), syncPaths)
	if err != nil {
		t.Fatalf("DetectChanges error: %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("expected 1 Modify + 1 Delete, got %d: %v", len(changes), changes)
	}

	var sawModify, sawDelete bool
	for _, c := range changes {
		switch c.Op {
		case OpModify:
			sawModify = true
			if c.RelativePath != "plugins/A.dll" {
				t.Errorf("unexpected modify path %q", c.RelativePath)
			}
		case OpDelete:
			sawDelete = true
			if c.Hash != "" {
				t.Errorf("delete entries must carry empty hash, got %q", c.Hash)
			}
		}
	}
	if !sawModify || !sawDelete {
		t.Fatalf("expected both Modify and Delete, got %v", changes)
	}

	if detector.CurrentSequence() != 4 {
		t.Fatalf("expected sequence 4 after second round, got %d", detector.CurrentSequence())
	}

	seq, since := detector.GetChangesSince(2)
	if seq != 4 {
		t.Fatalf("expected currentSequence 4, got %d", seq)
	}
	if len(since) != 2 {
		t.Fatalf("expected 2 changes since sequence 2, got %d", len(since))
	}
	if since[0].Sequence != 3 || since[1].Sequence != 4 {
		t.Fatalf("expected ascending sequences 3,4, got %v", since)
	}
}

func TestDetectChangesSuppressesTouchWithoutChange(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "plugins", "A.dll")
	writeTestFile(t, path, "stable content")

	detector := newTestDetector(t, root)
	detector.Load()
	syncPaths := []tree.SyncPath{{Path: "plugins", Enabled: true}}

	if _, err := detector.DetectChanges(context.Background(), syncPaths); err != nil {
		t.Fatal(err)
	}

	// Touch the file (mtime changes) without altering its content.
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	changes, err := detector.DetectChanges(context.Background(), syncPaths)
	if err != nil {
		t.Fatal(err)
	}
	if len(changes) != 0 {
		t.Fatalf("touch-without-content-change must not emit a Modify entry, got %v", changes)
	}
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
