package assetcache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// FetchTimeout bounds a single server-side fallback fetch.
const FetchTimeout = 30 * time.Second

// MaxRedirects caps the redirect chain a fallback fetch will follow.
const MaxRedirects = 5

// Fetcher performs the server-side fallback fetch used when a
// recorder can't retrieve an asset itself (most commonly a
// cross-origin resource blocked by CORS in the browser, which the
// server — not bound by the same-origin policy — can still reach).
type Fetcher struct {
	client *retryablehttp.Client
	cache  *Cache
}

// NewFetcher builds a Fetcher that stores whatever it downloads
// through cache.
func NewFetcher(cache *Cache, log *slog.Logger) *Fetcher {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.HTTPClient.Timeout = FetchTimeout
	client.HTTPClient.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= MaxRedirects {
			return fmt.Errorf("assetcache: stopped after %d redirects", MaxRedirects)
		}
		return nil
	}
	if log != nil {
		client.Logger = slogAdapter{log: log}
	} else {
		client.Logger = nil
	}
	return &Fetcher{client: client, cache: cache}
}

// FetchAndCache retrieves url (forwarding userAgent if non-empty, so
// the origin server sees the recorder's browser UA rather than a Go
// HTTP client UA likely to trip bot detection), stores the result,
// and returns its content hash and random_id.
func (f *Fetcher) FetchAndCache(ctx context.Context, url, userAgent string) (contentHash, randomID string, err error) {
	ctx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	start := time.Now()
	hash, id, err := f.doFetchAndCache(ctx, url, userAgent)
	if m := f.cache.Metrics; m != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		m.ObserveFetch(outcome, time.Since(start))
	}
	return hash, id, err
}

func (f *Fetcher) doFetchAndCache(ctx context.Context, url, userAgent string) (contentHash, randomID string, err error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		f.countFetchError("request")
		return "", "", fmt.Errorf("assetcache: build fetch request: %w", err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.countFetchError("network")
		return "", "", fmt.Errorf("assetcache: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f.countFetchError("http_status")
		return "", "", fmt.Errorf("assetcache: fetch %s: http %d", url, resp.StatusCode)
	}

	mime := firstMimeToken(resp.Header.Get("Content-Type"))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		f.countFetchError("read_body")
		return "", "", fmt.Errorf("assetcache: read fetch body for %s: %w", url, err)
	}

	hash := ContentHash(data)
	id, err := f.cache.StoreOrGet(ctx, hash, data, mime)
	if err != nil {
		f.countFetchError("store")
		return "", "", fmt.Errorf("assetcache: cache fetched asset %s: %w", url, err)
	}
	return hash, id, nil
}

func (f *Fetcher) countFetchError(kind string) {
	if m := f.cache.Metrics; m != nil {
		m.FetchErrors.WithLabelValues(kind).Inc()
	}
}

// firstMimeToken strips any "; charset=..." parameter and returns the
// bare MIME type, defaulting to application/octet-stream when absent.
func firstMimeToken(contentType string) string {
	if contentType == "" {
		return "application/octet-stream"
	}
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.TrimSpace(contentType)
}

// slogAdapter lets retryablehttp log through the caller's slog.Logger
// instead of its default stdlib logger.
type slogAdapter struct{ log *slog.Logger }

func (a slogAdapter) Printf(format string, args ...any) {
	a.log.Debug(fmt.Sprintf(format, args...))
}
