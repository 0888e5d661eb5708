// Package server implements the server HTTP surface (C7): it exposes
// version, sync-path, exclusion, hash, sequence, change, recheck, and fetch
// endpoints rooted at /narconet, per spec.md 4.7.
package server

import (
	"context"
	"net/http"
	"sort"

	"github.com/gorilla/mux"

	"github.com/narconet/narconet/pkg/changelog"
	"github.com/narconet/narconet/pkg/ignore"
	"github.com/narconet/narconet/pkg/logging"
	"github.com/narconet/narconet/pkg/narconet"
	"github.com/narconet/narconet/pkg/tree"
)

// Server holds the immutable, read-mostly state exposed by the HTTP
// surface: the configured sync paths and exclusions (fixed for the life of
// the process, per spec.md 3) and the Detector, the one mutable, serialized
// singleton (spec.md 9).
type Server struct {
	InstallRoot      string
	SyncPaths        []tree.SyncPath
	ServerExclusions *ignore.Matcher
	ExclusionPattern []string
	Detector         *changelog.Detector
	Logger           *logging.Logger
}

// New constructs a Server. syncPaths need not be pre-sorted; New sorts a
// copy by descending path length as required for /syncpaths responses.
func New(installRoot string, syncPaths []tree.SyncPath, exclusionPatterns []string, serverExclusions *ignore.Matcher, detector *changelog.Detector, logger *logging.Logger) *Server {
	sorted := make([]tree.SyncPath, len(syncPaths))
	copy(sorted, syncPaths)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Path) > len(sorted[j].Path)
	})

	return &Server{
		InstallRoot:      installRoot,
		SyncPaths:        sorted,
		ServerExclusions: serverExclusions,
		ExclusionPattern: exclusionPatterns,
		Detector:         detector,
		Logger:           logger,
	}
}

// Router builds the gorilla/mux router exposing the /narconet surface.
func (s *Server) Router() http.Handler {
	router := mux.NewRouter()
	api := router.PathPrefix("/narconet").Subrouter()

	api.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)
	api.HandleFunc("/syncpaths", s.handleSyncPaths).Methods(http.MethodGet)
	api.HandleFunc("/exclusions", s.handleExclusions).Methods(http.MethodGet)
	api.HandleFunc("/hashes", s.handleHashes).Methods(http.MethodGet)
	api.HandleFunc("/sequence", s.handleSequence).Methods(http.MethodGet)
	api.HandleFunc("/changes", s.handleChanges).Methods(http.MethodGet)
	api.HandleFunc("/recheck", s.handleRecheck).Methods(http.MethodPost)
	api.HandleFunc("/fetch/{path:.*}", s.handleFetch).Methods(http.MethodGet)

	return router
}

// legacyToken extracts the narconet-version request header, if any.
func legacyToken(r *http.Request) string {
	return r.Header.Get("narconet-version")
}

// enabledOrEnforced returns the subset of s.SyncPaths that sync by default.
func (s *Server) enabledOrEnforced() []tree.SyncPath {
	var result []tree.SyncPath
	for _, syncPath := range s.SyncPaths {
		if syncPath.SyncsByDefault() {
			result = append(result, syncPath)
		}
	}
	return result
}

// version is the server's reported version string.
func (s *Server) version() string {
	return narconet.Version
}

// requestContext returns the request's context, used as the cancellation
// token for /recheck per spec.md 5 ("cancellation is cooperative").
func requestContext(r *http.Request) context.Context {
	return r.Context()
}
