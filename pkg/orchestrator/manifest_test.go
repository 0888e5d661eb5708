package orchestrator

import (
	"path/filepath"
	"testing"

	"github.com/narconet/narconet/pkg/diff"
	"github.com/narconet/narconet/pkg/stage"
	"github.com/narconet/narconet/pkg/tree"
)

// TestBuildPlanSiblingDestinationsAgreeAcrossOperations exercises a
// restart-required sync path whose configured path escapes one level above
// the server install root (spec.md 4.1's permitted single ".." level). The
// resulting CopyFile, DeleteFile, and CreateDirectory manifest operations
// must all resolve to the same sibling directory when applied against the
// server install root — the same root the non-restart live-apply path uses
// — rather than CopyFile landing one level too shallow.
func TestBuildPlanSiblingDestinationsAgreeAcrossOperations(t *testing.T) {
	syncPath := tree.SyncPath{Path: "../SiblingMod", Enabled: true, RestartRequired: true}
	result := diff.Result{
		Added:              []tree.FileRecord{{RelativePath: "plugin.dll"}},
		Removed:            []tree.FileRecord{{RelativePath: "old.dll"}},
		CreatedDirectories: []tree.FileRecord{{RelativePath: "data"}},
	}

	p := buildPlan("/install/ServerA", "/install/ServerA/NarcoNet_Data/PendingUpdates", syncPath, result)

	var copyOp, deleteOp, mkdirOp *stage.Operation
	for i := range p.manifestOps {
		op := &p.manifestOps[i]
		switch op.Type {
		case stage.OpCopyFile:
			copyOp = op
		case stage.OpDeleteFile:
			deleteOp = op
		case stage.OpCreateDirectory:
			mkdirOp = op
		}
	}
	if copyOp == nil || deleteOp == nil || mkdirOp == nil {
		t.Fatalf("expected one CopyFile, DeleteFile, and CreateDirectory op, got %+v", p.manifestOps)
	}

	if copyOp.Destination != "../SiblingMod/plugin.dll" {
		t.Errorf("CopyFile destination = %q, want %q", copyOp.Destination, "../SiblingMod/plugin.dll")
	}
	if deleteOp.Destination != "../SiblingMod/old.dll" {
		t.Errorf("DeleteFile destination = %q, want %q", deleteOp.Destination, "../SiblingMod/old.dll")
	}
	if mkdirOp.Destination != "../SiblingMod/data" {
		t.Errorf("CreateDirectory destination = %q, want %q", mkdirOp.Destination, "../SiblingMod/data")
	}

	// Resolving every destination against the server install root (exactly
	// as pkg/stage.Apply and cmd/narconet-updater's resolved install root
	// do) must land all three operations in the same sibling directory.
	installRoot := "/install/ServerA"
	copyTarget := filepath.Join(installRoot, filepath.FromSlash(copyOp.Destination))
	deleteTarget := filepath.Join(installRoot, filepath.FromSlash(deleteOp.Destination))
	mkdirTarget := filepath.Join(installRoot, filepath.FromSlash(mkdirOp.Destination))

	wantDir := filepath.Join("/install", "SiblingMod")
	if filepath.Dir(copyTarget) != wantDir {
		t.Errorf("CopyFile resolves under %q, want %q", filepath.Dir(copyTarget), wantDir)
	}
	if filepath.Dir(deleteTarget) != wantDir {
		t.Errorf("DeleteFile resolves under %q, want %q", filepath.Dir(deleteTarget), wantDir)
	}
	if mkdirTarget != filepath.Join(wantDir, "data") {
		t.Errorf("CreateDirectory resolves to %q, want %q", mkdirTarget, filepath.Join(wantDir, "data"))
	}
}
