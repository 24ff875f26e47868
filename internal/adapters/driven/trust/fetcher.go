package trust

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// maxMetadataSize bounds fetched metadata documents (resource exhaustion).
const maxMetadataSize = 10 << 20 // 10 MiB

// HTTPFetcher retrieves metadata documents over HTTP with a bounded timeout
// and conditional requests. A nil result with nil error means 304 Not
// Modified: the caller keeps its current document.
type HTTPFetcher struct {
	httpClient *http.Client

	mu           sync.Mutex
	etags        map[string]string
	lastModified map[string]string
}

// NewHTTPFetcher creates a fetcher with the given per-request timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPFetcher{
		httpClient:   &http.Client{Timeout: timeout},
		etags:        make(map[string]string),
		lastModified: make(map[string]string),
	}
}

// Fetch retrieves the metadata document at url.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "saml-engine/metadata")

	f.mu.Lock()
	if etag := f.etags[url]; etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lm := f.lastModified[url]; lm != "" {
		req.Header.Set("If-Modified-Since", lm)
	}
	f.mu.Unlock()

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch metadata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch metadata: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataSize+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(data) > maxMetadataSize {
		return nil, fmt.Errorf("metadata document exceeds %d bytes", maxMetadataSize)
	}

	f.mu.Lock()
	f.etags[url] = resp.Header.Get("ETag")
	f.lastModified[url] = resp.Header.Get("Last-Modified")
	f.mu.Unlock()

	return data, nil
}
