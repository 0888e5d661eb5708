package updater

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/narconet/narconet/pkg/logging"
	"github.com/narconet/narconet/pkg/stage"
)

// unusedPID is assumed not to correspond to any running process on the
// test host, so WaitForExit returns immediately.
const unusedPID = 999999999

func TestRunAppliesManifestAndCleansUp(t *testing.T) {
	installRoot := t.TempDir()
	dataDir := filepath.Join(installRoot, "NarcoNet_Data")
	stagingRoot := filepath.Join(dataDir, "PendingUpdates")
	manifestPath := filepath.Join(dataDir, "UpdateManifest.json")
	logger := logging.RootLogger.Sublogger("test")

	writeStageFile(t, filepath.Join(stagingRoot, "plugins", "A.dll"), "new content")

	manifest := &stage.Manifest{
		Operations: []stage.Operation{
			{Type: stage.OpCopyFile, Source: "plugins/A.dll", Destination: "plugins/A.dll"},
		},
	}
	if err := stage.Write(manifestPath, manifest, logger); err != nil {
		t.Fatalf("Write manifest error: %v", err)
	}

	if err := Run(context.Background(), installRoot, unusedPID, logger); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(installRoot, "plugins", "A.dll"))
	if err != nil || string(content) != "new content" {
		t.Fatalf("unexpected content: %q, err=%v", content, err)
	}
	if _, err := os.Stat(manifestPath); !os.IsNotExist(err) {
		t.Errorf("expected manifest to be cleaned up")
	}
	if _, err := os.Stat(stagingRoot); !os.IsNotExist(err) {
		t.Errorf("expected staging root to be cleaned up")
	}
}

func TestRunFallsBackToLegacyWholeTreeCopy(t *testing.T) {
	installRoot := t.TempDir()
	dataDir := filepath.Join(installRoot, "NarcoNet_Data")
	stagingRoot := filepath.Join(dataDir, "PendingUpdates")
	logger := logging.RootLogger.Sublogger("test")

	writeStageFile(t, filepath.Join(stagingRoot, "plugins", "A.dll"), "legacy content")
	writeStageFile(t, filepath.Join(stagingRoot, "config.json"), "{}")

	if err := Run(context.Background(), installRoot, unusedPID, logger); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(installRoot, "plugins", "A.dll"))
	if err != nil || string(content) != "legacy content" {
		t.Fatalf("unexpected content: %q, err=%v", content, err)
	}
	config, err := os.ReadFile(filepath.Join(installRoot, "config.json"))
	if err != nil || string(config) != "{}" {
		t.Fatalf("unexpected config content: %q, err=%v", config, err)
	}
}

func TestLegacyManifestEmptyWhenStagingRootMissing(t *testing.T) {
	manifest, err := legacyManifest(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("legacyManifest error: %v", err)
	}
	if len(manifest.Operations) != 0 {
		t.Errorf("expected no operations, got %d", len(manifest.Operations))
	}
}

func writeStageFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
