package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/narconet/narconet/pkg/changelog"
	"github.com/narconet/narconet/pkg/pathutil"
	"github.com/narconet/narconet/pkg/tree"
	"github.com/narconet/narconet/pkg/wire"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(message))
}

// handleVersion implements GET /narconet/version.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.version())
}

// handleSyncPaths implements GET /narconet/syncpaths.
func (s *Server) handleSyncPaths(w http.ResponseWriter, r *http.Request) {
	if wire.IsLegacyToken(legacyToken(r)) {
		writeJSON(w, http.StatusOK, wire.LegacySyncPathsFallback())
		return
	}

	descriptors := make([]wire.SyncPathDescriptor, 0, len(s.SyncPaths))
	for _, syncPath := range s.SyncPaths {
		descriptors = append(descriptors, wire.SyncPathDescriptor{
			Name:            syncPath.DisplayName(),
			Path:            pathutil.ToBackslash(syncPath.Path),
			Enabled:         syncPath.Enabled,
			Enforced:        syncPath.Enforced,
			Silent:          syncPath.Silent,
			RestartRequired: syncPath.RestartRequired,
		})
	}
	writeJSON(w, http.StatusOK, descriptors)
}

// handleExclusions implements GET /narconet/exclusions.
func (s *Server) handleExclusions(w http.ResponseWriter, r *http.Request) {
	patterns := s.ExclusionPattern
	if patterns == nil {
		patterns = []string{}
	}
	writeJSON(w, http.StatusOK, patterns)
}

// handleHashes implements GET /narconet/hashes.
func (s *Server) handleHashes(w http.ResponseWriter, r *http.Request) {
	if wire.IsLegacyToken(legacyToken(r)) {
		writeJSON(w, http.StatusOK, wire.LegacyHashesFallback())
		return
	}

	targets := s.enabledOrEnforced()
	if requested := r.URL.Query()["path"]; len(requested) > 0 {
		wanted := make(map[string]bool, len(requested))
		for _, p := range requested {
			wanted[tree.NormalizeKey(p)] = true
		}
		var filtered []tree.SyncPath
		for _, syncPath := range targets {
			if wanted[tree.NormalizeKey(syncPath.Path)] {
				filtered = append(filtered, syncPath)
			}
		}
		targets = filtered
	}

	response := make(wire.HashesResponse, len(targets))
	for _, syncPath := range targets {
		response[syncPath.Key()] = map[string]wire.FileRecordDescriptor{}
	}

	snap := s.Detector.Snapshot()
	if snap == nil {
		writeError(w, http.StatusInternalServerError, "server snapshot not yet initialized")
		return
	}

	for globalPath, entry := range snap.Files {
		normGlobal := tree.NormalizeKey(globalPath)
		for _, syncPath := range targets {
			prefix := tree.NormalizeKey(syncPath.Path) + "/"
			if !strings.HasPrefix(normGlobal, prefix) {
				continue
			}
			relative := globalPath[len(prefix):]
			response[syncPath.Key()][pathutil.ToBackslash(relative)] = wire.FileRecordDescriptor{
				Hash:      entry.Hash,
				Directory: entry.IsDirectory,
			}
			break
		}
	}

	writeJSON(w, http.StatusOK, response)
}

// handleSequence implements GET /narconet/sequence.
func (s *Server) handleSequence(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, wire.SequenceResponse{CurrentSequence: s.Detector.CurrentSequence()})
}

// handleChanges implements GET /narconet/changes.
func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing required query parameter: since")
		return
	}
	since, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid since parameter: "+raw)
		return
	}

	currentSequence, changes := s.Detector.GetChangesSince(since)
	writeJSON(w, http.StatusOK, wire.ChangesResponse{
		CurrentSequence: currentSequence,
		Changes:         toChangeDescriptors(changes),
	})
}

// handleRecheck implements POST /narconet/recheck.
func (s *Server) handleRecheck(w http.ResponseWriter, r *http.Request) {
	ctx := requestContext(r)
	before := s.Detector.CurrentSequence()

	changes, err := s.Detector.DetectChanges(ctx, s.enabledOrEnforced())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			writeError(w, 499, "recheck cancelled by client")
			return
		}
		s.Logger.Error(errors.Wrap(err, "recheck failed"))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, wire.RecheckResponse{
		BeforeSequence: before,
		AfterSequence:  s.Detector.CurrentSequence(),
		Changes:        toChangeDescriptors(changes),
	})
}

// handleFetch implements GET /narconet/fetch/<url-escaped-path>.
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	relative := pathutil.ToForwardSlash(mux.Vars(r)["path"])

	if err := pathutil.Validate(relative); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, ok := s.findSyncPathFor(relative); !ok {
		writeError(w, http.StatusBadRequest, "path is outside any configured sync path: "+relative)
		return
	}

	fullPath := filepath.Join(s.InstallRoot, filepath.FromSlash(relative))
	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, http.StatusNotFound, "file not found: "+relative)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if info.IsDir() {
		writeError(w, http.StatusNotFound, "path is a directory: "+relative)
		return
	}

	file, err := os.Open(fullPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer file.Close()

	w.Header().Set("Accept-Ranges", "bytes")
	http.ServeContent(w, r, filepath.Base(fullPath), info.ModTime(), file)
}

// findSyncPathFor returns the configured, enabled-or-enforced sync path
// whose root contains relative, preferring the longest (most specific)
// match since s.SyncPaths is sorted by descending path length.
func (s *Server) findSyncPathFor(relative string) (tree.SyncPath, bool) {
	normRelative := tree.NormalizeKey(relative)
	for _, syncPath := range s.enabledOrEnforced() {
		prefix := tree.NormalizeKey(syncPath.Path) + "/"
		if strings.HasPrefix(normRelative, prefix) {
			return syncPath, true
		}
	}
	return tree.SyncPath{}, false
}

func toChangeDescriptors(entries []changelog.ChangeEntry) []wire.ChangeEntryDescriptor {
	descriptors := make([]wire.ChangeEntryDescriptor, len(entries))
	for i, entry := range entries {
		descriptors[i] = wire.ChangeEntryDescriptor{
			Sequence:     entry.Sequence,
			Op:           string(entry.Op),
			RelativePath: pathutil.ToBackslash(entry.RelativePath),
			Hash:         entry.Hash,
			Size:         entry.Size,
			ModTimeUTC:   entry.ModTimeUTC,
			Timestamp:    entry.Timestamp,
		}
	}
	return descriptors
}
