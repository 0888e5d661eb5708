package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingReturnsEmpty(t *testing.T) {
	configuration, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(configuration.SyncPaths) != 0 || len(configuration.Exclusions) != 0 {
		t.Errorf("expected empty configuration, got %+v", configuration)
	}
}

func TestLoadParsesBareStringAndMappingSyncPaths(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := `
syncPaths:
  - BepInEx/plugins
  - path: BepInEx/config
    enabled: true
    enforced: true
    restartRequired: true
exclusions:
  - "*.tmp"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	configuration, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(configuration.SyncPaths) != 2 {
		t.Fatalf("expected 2 sync paths, got %d", len(configuration.SyncPaths))
	}

	bare := configuration.SyncPaths[0]
	if bare.Path != "BepInEx/plugins" || !bare.Enabled {
		t.Errorf("unexpected bare-string sync path: %+v", bare)
	}

	mapping := configuration.SyncPaths[1]
	if mapping.Path != "BepInEx/config" || !mapping.Enforced || !mapping.RestartRequired {
		t.Errorf("unexpected mapping sync path: %+v", mapping)
	}

	treePaths := configuration.TreeSyncPaths()
	if len(treePaths) != 2 || treePaths[1].Path != "BepInEx/config" {
		t.Errorf("unexpected normalized sync paths: %+v", treePaths)
	}

	if len(configuration.Exclusions) != 1 || configuration.Exclusions[0] != "*.tmp" {
		t.Errorf("unexpected exclusions: %+v", configuration.Exclusions)
	}
}

func TestSaveRoundTripsThroughLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	original := &Configuration{
		SyncPaths: []SyncPathSpec{
			{Path: "BepInEx/plugins", Enabled: true},
			{Path: "BepInEx/config", Enabled: true, Enforced: true, RestartRequired: true},
		},
		Exclusions: []string{"*.tmp", "*.log"},
	}

	if err := Save(path, original, nil); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(reloaded.SyncPaths) != 2 || reloaded.SyncPaths[1].Path != "BepInEx/config" || !reloaded.SyncPaths[1].RestartRequired {
		t.Errorf("unexpected sync paths after round trip: %+v", reloaded.SyncPaths)
	}
	if len(reloaded.Exclusions) != 2 || reloaded.Exclusions[1] != "*.log" {
		t.Errorf("unexpected exclusions after round trip: %+v", reloaded.Exclusions)
	}
}

func TestLayoutResolvesPathsUnderDataDirectory(t *testing.T) {
	layout := NewLayout("/install")
	if got := layout.PreviousSync(); got != filepath.Join("/install", DataDirectoryName, "PreviousSync.json") {
		t.Errorf("unexpected PreviousSync path: %q", got)
	}
	if got := layout.PendingUpdates(); got != filepath.Join("/install", DataDirectoryName, "PendingUpdates") {
		t.Errorf("unexpected PendingUpdates path: %q", got)
	}
}
