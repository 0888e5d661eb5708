package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

func TestDownloadFetchesAllFiles(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/narconet/fetch/plugins/A.dll", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("content A"))
	})
	mux.HandleFunc("/narconet/fetch/plugins/B.dll", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("content B"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	destDir := t.TempDir()
	downloader := &Downloader{BaseURL: server.URL + "/narconet"}

	requests := []Request{
		{WirePath: "plugins/A.dll", Destination: filepath.Join(destDir, "A.dll")},
		{WirePath: "plugins/B.dll", Destination: filepath.Join(destDir, "B.dll")},
	}

	var progressCalls int32
	err := downloader.Download(context.Background(), requests, func(p Progress) {
		atomic.AddInt32(&progressCalls, 1)
	})
	if err != nil {
		t.Fatalf("Download error: %v", err)
	}
	if progressCalls != 2 {
		t.Errorf("expected 2 progress callbacks, got %d", progressCalls)
	}

	contentA, err := os.ReadFile(filepath.Join(destDir, "A.dll"))
	if err != nil || string(contentA) != "content A" {
		t.Errorf("unexpected content for A.dll: %q, err=%v", contentA, err)
	}
	contentB, err := os.ReadFile(filepath.Join(destDir, "B.dll"))
	if err != nil || string(contentB) != "content B" {
		t.Errorf("unexpected content for B.dll: %q, err=%v", contentB, err)
	}
}

func TestDownloadTerminalErrorAbortsRun(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/narconet/fetch/plugins/missing.dll", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	destDir := t.TempDir()
	downloader := &Downloader{BaseURL: server.URL + "/narconet"}

	requests := []Request{
		{WirePath: "plugins/missing.dll", Destination: filepath.Join(destDir, "missing.dll")},
	}

	err := downloader.Download(context.Background(), requests, nil)
	if err == nil {
		t.Fatal("expected an error for a 404 fetch")
	}
	if _, statErr := os.Stat(filepath.Join(destDir, "missing.dll")); !os.IsNotExist(statErr) {
		t.Errorf("expected no partial file to remain after a terminal error")
	}
}

func TestStagingDestinationKeepsParentPrefixInManifestDestination(t *testing.T) {
	staged, destination := StagingDestination("/root/NarcoNet_Data/PendingUpdates", "../SiblingMod/plugin.dll")
	// The manifest destination keeps the "../" marker so the updater, which
	// resolves every destination against the same server install root the
	// live-apply path uses, walks up to the sibling directory via
	// filepath.Join's normal ".." handling — matching how CreateDirectory and
	// DeleteFile destinations are already built in pkg/orchestrator/manifest.go.
	if destination != "../SiblingMod/plugin.dll" {
		t.Errorf("expected manifest destination to keep ../ prefix, got %q", destination)
	}
	// The staged filesystem location, unlike the manifest destination, must
	// stay flattened under PendingUpdates: nothing may write outside it.
	expected := filepath.Join("/root/NarcoNet_Data/PendingUpdates", "SiblingMod", "plugin.dll")
	if staged != expected {
		t.Errorf("expected staged path %q, got %q", expected, staged)
	}
}

func TestStagingDestinationNoPrefix(t *testing.T) {
	staged, destination := StagingDestination("/root/NarcoNet_Data/PendingUpdates", "plugins/A.dll")
	if destination != "plugins/A.dll" {
		t.Errorf("unexpected manifest destination: %q", destination)
	}
	expected := filepath.Join("/root/NarcoNet_Data/PendingUpdates", "plugins", "A.dll")
	if staged != expected {
		t.Errorf("expected staged path %q, got %q", expected, staged)
	}
}

func TestIsRetryableStatus(t *testing.T) {
	cases := map[int]bool{
		500: true,
		503: true,
		408: true,
		429: true,
		404: false,
		400: false,
		401: false,
	}
	for status, want := range cases {
		if got := isRetryableStatus(status); got != want {
			t.Errorf("isRetryableStatus(%d) = %v, want %v", status, got, want)
		}
	}
}
