// Package download implements the download scheduler (C9): a
// bounded-concurrency, retrying fetcher that pulls files from the server's
// /narconet/fetch endpoint, per spec.md 4.9.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/narconet/narconet/pkg/logging"
	"github.com/narconet/narconet/pkg/pathutil"
)

// DefaultConcurrency is the default number of transfers permitted in
// flight at once, per spec.md 4.9 ("bounded worker count (default 8)").
const DefaultConcurrency = 8

// backoffSchedule lists the waits between fetch attempts. fetchWithRetry
// makes len(backoffSchedule) = 5 attempts: the first starts at once and
// attempt k (k = 2..5) first waits backoffSchedule[k-2], i.e. 1s, 2s, 3s,
// 4s. The last entry (5s) is not used.
var backoffSchedule = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	3 * time.Second,
	4 * time.Second,
	5 * time.Second,
}

// Request is one file to fetch: WirePath is the root-relative,
// forward-slash path requested from the server (escaped segment-by-segment
// when built into a URL); Destination is the absolute local path the bytes
// are written to.
type Request struct {
	WirePath    string
	Destination string
}

// Downloader fetches files concurrently from a NarcoNet server's /fetch
// endpoint.
type Downloader struct {
	// BaseURL is the server's root URL, e.g. "http://host:port/narconet".
	BaseURL string
	// Client is the HTTP client used for transfers. If nil, http.DefaultClient is used.
	Client *http.Client
	// Concurrency bounds the number of transfers in flight. Zero means DefaultConcurrency.
	Concurrency int
	Logger      *logging.Logger
}

// Progress reports downloads completed out of the total enqueued.
type Progress struct {
	Completed int
	Total     int
}

// Download fetches every request concurrently, bounded by d.Concurrency,
// retrying transient failures per the backoff schedule. It returns the
// first terminal error encountered; on any error or context cancellation,
// in-flight writes are torn down and their partial files removed, and no
// further requests are started (spec.md 5: "a single cancellation token
// aborts in-flight transfers").
func (d *Downloader) Download(ctx context.Context, requests []Request, onProgress func(Progress)) error {
	if len(requests) == 0 {
		return nil
	}

	concurrency := d.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	sem := semaphore.NewWeighted(int64(concurrency))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
		firstErr  error
	)

	for _, request := range requests {
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
			break
		}

		wg.Add(1)
		go func(request Request) {
			defer wg.Done()
			defer sem.Release(1)

			err := d.fetchWithRetry(ctx, request)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
					cancel()
				}
				return
			}
			completed++
			if onProgress != nil {
				onProgress(Progress{Completed: completed, Total: len(requests)})
			}
		}(request)
	}

	wg.Wait()
	return firstErr
}

// fetchWithRetry fetches a single file, retrying transient failures with
// the backoff schedule of spec.md 4.9.
func (d *Downloader) fetchWithRetry(ctx context.Context, request Request) error {
	var lastErr error
	for attempt := 0; attempt < len(backoffSchedule); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoffSchedule[attempt-1]):
			}
		}

		err := d.fetchOnce(ctx, request)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) {
			return err
		}
		d.Logger.Debugf("retrying %q after error: %v", request.WirePath, err)
	}
	return errors.Wrapf(lastErr, "exhausted retries fetching %q", request.WirePath)
}

// fetchOnce performs a single fetch attempt, streaming the response body to
// a temporary file in the destination's directory and renaming it into
// place only on success.
func (d *Downloader) fetchOnce(ctx context.Context, request Request) error {
	reqURL, err := d.buildURL(request.WirePath)
	if err != nil {
		return errors.Wrap(err, "unable to build request URL")
	}

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return errors.Wrap(err, "unable to construct request")
	}

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}

	response, err := client.Do(httpRequest)
	if err != nil {
		return &transientError{cause: err}
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
		httpErr := errors.Errorf("unexpected status %d fetching %q: %s", response.StatusCode, request.WirePath, strings.TrimSpace(string(body)))
		if isRetryableStatus(response.StatusCode) {
			return &transientError{cause: httpErr}
		}
		return httpErr
	}

	if err := os.MkdirAll(filepath.Dir(request.Destination), 0o755); err != nil {
		return errors.Wrap(err, "unable to create destination directory")
	}

	temp, err := os.CreateTemp(filepath.Dir(request.Destination), ".narconet-download-")
	if err != nil {
		return errors.Wrap(err, "unable to create temporary download file")
	}
	tempPath := temp.Name()

	if _, err := io.Copy(temp, response.Body); err != nil {
		temp.Close()
		os.Remove(tempPath)
		return &transientError{cause: errors.Wrap(err, "unable to write downloaded content")}
	}
	if err := temp.Close(); err != nil {
		os.Remove(tempPath)
		return errors.Wrap(err, "unable to close temporary download file")
	}

	if err := os.Rename(tempPath, request.Destination); err != nil {
		os.Remove(tempPath)
		return errors.Wrap(err, "unable to move downloaded file into place")
	}

	return nil
}

// buildURL constructs the fetch URL for a root-relative, forward-slash
// wire path, escaping each path segment individually per spec.md 6.
func (d *Downloader) buildURL(wirePath string) (string, error) {
	forward := pathutil.ToForwardSlash(wirePath)
	segments := strings.Split(forward, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.TrimRight(d.BaseURL, "/") + "/fetch/" + strings.Join(segments, "/"), nil
}

// transientError marks an error as retryable per spec.md 4.9 ("IO,
// connection reset, timeout, and transient HTTP errors (5xx)").
type transientError struct {
	cause error
}

func (e *transientError) Error() string { return e.cause.Error() }
func (e *transientError) Unwrap() error { return e.cause }

func isRetryable(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}

// isRetryableStatus reports whether an HTTP status code is transient per
// spec.md 4.9: 5xx, plus 408 (timeout) and 429 (rate limit); all other 4xx
// are terminal.
func isRetryableStatus(status int) bool {
	if status >= 500 {
		return true
	}
	return status == http.StatusRequestTimeout || status == http.StatusTooManyRequests
}

// StagingDestination computes where a downloaded file lands under the
// staging tree, and the destination path that the manifest should record
// for it, per spec.md 4.9. The staged filesystem location always has any
// "../" wire-path prefix stripped, since PendingUpdates is a flat staging
// directory that nothing may write outside of. The manifest destination
// keeps the "../" prefix intact: the updater resolves every manifest
// destination against the same server install root the live-apply path
// uses (cmd/narconet-updater's executable directory), and filepath.Join
// already walks a leading ".." up to the correct sibling location there,
// exactly as it does for the non-restart-required path in
// pkg/orchestrator. Stripping the prefix here as well, while DeleteFile and
// CreateDirectory operations keep it, would point CopyFile one directory
// level too shallow.
func StagingDestination(pendingUpdatesDir, wirePath string) (stagedPath, manifestDestination string) {
	forward := pathutil.ToForwardSlash(wirePath)
	trimmed := strings.TrimPrefix(forward, "../")
	stagedPath = filepath.Join(pendingUpdatesDir, filepath.FromSlash(trimmed))
	manifestDestination = forward
	return stagedPath, manifestDestination
}

// String implements fmt.Stringer for Progress, used for human-readable
// progress lines in CLI output.
func (p Progress) String() string {
	return fmt.Sprintf("%d/%d", p.Completed, p.Total)
}
