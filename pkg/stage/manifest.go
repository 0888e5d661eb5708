// Package stage implements staging & apply (C10): it writes the JSON
// manifest the client hands off to the updater, and the updater-side logic
// that executes it against the installation root, per spec.md 4.10.
package stage

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/narconet/narconet/pkg/atomicfile"
	"github.com/narconet/narconet/pkg/logging"
	"github.com/narconet/narconet/pkg/tree"
)

// OperationType is the kind of filesystem mutation one manifest entry
// describes, per spec.md 4.10.
type OperationType string

// The four operation kinds the manifest schema supports. MoveFile is
// defined for wire compatibility but is not currently emitted by the
// client orchestrator — see DESIGN.md's Open Question decisions.
const (
	OpCreateDirectory OperationType = "CreateDirectory"
	OpCopyFile        OperationType = "CopyFile"
	OpMoveFile        OperationType = "MoveFile"
	OpDeleteFile      OperationType = "DeleteFile"
)

// Operation is one manifest entry, executed by the updater in array order.
type Operation struct {
	Type        OperationType `json:"type"`
	Source      string        `json:"source,omitempty"`
	Destination string        `json:"destination"`
}

// Manifest is the full update manifest written to
// NarcoNet_Data/UpdateManifest.json, per spec.md 4.10. RemoteSyncData is
// the remote TreeMap the operations were computed from. Nothing in this
// module reads it back: neither Apply nor updater.Run writes it to
// PreviousSync.json after the operations have been applied.
type Manifest struct {
	RemoteSyncData tree.TreeMap `json:"remoteSyncData"`
	Operations     []Operation  `json:"operations"`
}

// Write persists the manifest atomically (write-temp + rename), so the
// updater never observes a partially written manifest, per spec.md 4.10's
// crash-consistency requirement ("the manifest is written last, atomic
// rename").
func Write(path string, manifest *Manifest, logger *logging.Logger) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return errors.Wrap(err, "unable to marshal update manifest")
	}
	return atomicfile.WriteFile(path, data, 0o644, logger)
}

// Load reads a manifest from disk. A missing or malformed manifest is
// reported as an error so the updater can fall back to legacy mode
// (spec.md 4.11 step 2).
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read update manifest")
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, errors.Wrap(err, "update manifest is malformed")
	}
	return &manifest, nil
}
