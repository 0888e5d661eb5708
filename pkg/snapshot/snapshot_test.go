package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/narconet/narconet/pkg/logging"
)

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	store := NewStore(path, logging.RootLogger.Sublogger("test"))

	original := &Snapshot{
		Files: map[string]Entry{
			"plugins/A.dll": {Hash: "abc123", Size: 1024, ModTimeUTC: time.Now().UTC().Truncate(time.Second)},
			"plugins/empty": {IsDirectory: true},
		},
		Sequence:  5,
		Timestamp: time.Now().UTC().Truncate(time.Second),
	}

	if err := store.Save(original); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	loaded := store.Load()
	if loaded.Sequence != original.Sequence {
		t.Errorf("expected sequence %d, got %d", original.Sequence, loaded.Sequence)
	}
	if len(loaded.Files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(loaded.Files))
	}
	if loaded.Files["plugins/A.dll"].Hash != "abc123" {
		t.Errorf("unexpected hash for A.dll: %v", loaded.Files["plugins/A.dll"])
	}
}

func TestStoreLoadMissingReturnsEmpty(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "missing.json"), logging.RootLogger.Sublogger("test"))
	loaded := store.Load()
	if len(loaded.Files) != 0 {
		t.Errorf("expected empty snapshot for missing file, got %v", loaded)
	}
}

func TestStoreLoadMalformedReturnsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := NewStore(path, logging.RootLogger.Sublogger("test"))
	loaded := store.Load()
	if len(loaded.Files) != 0 {
		t.Errorf("expected empty snapshot for malformed file, got %v", loaded)
	}
}
