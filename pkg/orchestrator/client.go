package orchestrator

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/narconet/narconet/pkg/pathutil"
	"github.com/narconet/narconet/pkg/tree"
	"github.com/narconet/narconet/pkg/wire"
)

// client is the thin HTTP client the orchestrator uses to talk to a
// NarcoNet server's /narconet surface (C7), per spec.md 4.12 steps 1, 2, 5,
// 7.
type client struct {
	baseURL string
	http    *http.Client
}

func newClient(baseURL string, httpClient *http.Client) *client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *client) get(path string, query url.Values, out interface{}) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	response, err := c.http.Get(reqURL)
	if err != nil {
		return errors.Wrapf(err, "unable to reach %q", reqURL)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return errors.Errorf("unexpected status %d from %q", response.StatusCode, reqURL)
	}
	if out == nil {
		return nil
	}
	return errors.Wrapf(json.NewDecoder(response.Body).Decode(out), "unable to decode response from %q", reqURL)
}

// version implements GET /version (spec.md 4.12 step 1).
func (c *client) version() (string, error) {
	var v string
	err := c.get("/version", nil, &v)
	return v, err
}

// syncPaths implements GET /syncpaths (spec.md 4.12 step 2), converting
// each descriptor's backslash wire path to the internal forward-slash
// canonical form.
func (c *client) syncPaths() ([]tree.SyncPath, error) {
	var descriptors []wire.SyncPathDescriptor
	if err := c.get("/syncpaths", nil, &descriptors); err != nil {
		return nil, err
	}

	result := make([]tree.SyncPath, len(descriptors))
	for i, d := range descriptors {
		result[i] = tree.SyncPath{
			Name:            d.Name,
			Path:            pathutil.ToForwardSlash(d.Path),
			Enabled:         d.Enabled,
			Enforced:        d.Enforced,
			Silent:          d.Silent,
			RestartRequired: d.RestartRequired,
		}
	}
	return result, nil
}

// exclusions implements GET /exclusions (spec.md 4.12 step 5).
func (c *client) exclusions() ([]string, error) {
	var patterns []string
	err := c.get("/exclusions", nil, &patterns)
	return patterns, err
}

// hashes implements GET /hashes?path=… (spec.md 4.12 step 7), converting
// the nested wire response into a tree.TreeMap.
func (c *client) hashes(paths []string) (tree.TreeMap, error) {
	query := url.Values{}
	for _, p := range paths {
		query.Add("path", p)
	}

	var response wire.HashesResponse
	if err := c.get("/hashes", query, &response); err != nil {
		return nil, err
	}

	result := tree.NewTreeMap()
	for syncPathKey, files := range response {
		fileMap := result.Ensure(syncPathKey)
		for relativePath, descriptor := range files {
			fileMap.Set(tree.FileRecord{
				RelativePath: pathutil.ToForwardSlash(relativePath),
				Hash:         descriptor.Hash,
				IsDirectory:  descriptor.Directory,
			})
		}
	}
	return result, nil
}

// fetchBaseURL returns the base URL the download package should build
// /fetch requests against: the same root this client talks to.
func (c *client) fetchBaseURL() string {
	return c.baseURL
}
