// Package httpcache performs conditional GETs (ETag / Last-Modified) backed
// by a per-URL disk cache, falling back to the last good body when the
// upstream is unreachable or unhealthy.
package httpcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	appLog "batchcal/internal/log"
)

// ErrNotModifiedWithoutCache means the server answered 304 but nothing is cached.
var ErrNotModifiedWithoutCache = errors.New("httpcache: 304 Not Modified but no cached body available")

// Result is the outcome of one fetch.
type Result struct {
	URL       string
	Body      []byte
	FromCache bool // true if the body came from disk (304 or fallback)
}

// cacheEntry holds HTTP cache metadata for a single URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher fetches URLs with HTTP caching and a disk-backed cache.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// New creates a Fetcher. cacheDir holds one subdirectory per URL; empty
// means "./var/http-cache". A nil client gets a 15s timeout default.
func New(cacheDir string, client *http.Client) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./var/http-cache"
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Fetcher{client: client, cacheDir: cacheDir}
}

// Get fetches rawURL. header is added to the request (e.g. Authorization).
func (f *Fetcher) Get(ctx context.Context, rawURL string, header http.Header) (Result, error) {
	if rawURL == "" {
		return Result{}, errors.New("httpcache: URL is empty")
	}

	cachePath := f.cachePathForURL(rawURL)
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return Result{}, err
	}

	meta, _ := loadCacheMeta(cachePath)
	cachedBody, _ := os.ReadFile(filepath.Join(cachePath, "body"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{}, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if meta.URL == rawURL {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	cached := Result{URL: rawURL, Body: cachedBody, FromCache: true}

	resp, err := f.client.Do(req)
	if err != nil {
		if len(cachedBody) > 0 {
			appLog.Error("fetch network error, using cached body", err, "url", Redact(rawURL))
			return cached, nil
		}
		return Result{}, fmt.Errorf("httpcache: get %s: %w", Redact(rawURL), err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return Result{}, readErr
		}
		newMeta := cacheEntry{
			URL:          rawURL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := saveCache(cachePath, newMeta, body); err != nil {
			// The fresh body is still good; only the cache write failed.
			appLog.Error("cache save failed", err, "url", Redact(rawURL))
		}
		appLog.Debug("fetch success", "url", Redact(rawURL), "bytes", len(body))
		return Result{URL: rawURL, Body: body}, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return Result{}, ErrNotModifiedWithoutCache
		}
		appLog.Debug("fetch not modified; using cache", "url", Redact(rawURL))
		return cached, nil

	default:
		if len(cachedBody) > 0 {
			appLog.Error("fetch non-OK, using cached body", errors.New(resp.Status), "url", Redact(rawURL), "status", resp.StatusCode)
			return cached, nil
		}
		return Result{}, fmt.Errorf("httpcache: get %s: %s", Redact(rawURL), resp.Status)
	}
}

func (f *Fetcher) cachePathForURL(u string) string {
	sum := sha256.Sum256([]byte(u))
	// First 16 hex chars as directory name.
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body"), body, 0o600); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// Redact keeps scheme and host only, so tokens in paths or queries never reach logs.
func Redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
