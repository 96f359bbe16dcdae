// Package assetcache implements the content-addressed asset cache: a
// two-token indirection between a SHA-256 content hash (the storage
// and dedup key) and a CSPRNG random_id (the public, non-enumerable
// retrieval token), plus per-site usage tracking used to build cache
// manifests for recorders.
package assetcache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors returned by MetadataStore and FileStore
// implementations. Callers distinguish "not found" from other failures
// with errors.Is.
var (
	ErrNotFound   = errors.New("assetcache: not found")
	ErrInvalidURL = errors.New("assetcache: invalid url")
)

// HashMismatchError is returned when a caller-supplied hash does not
// match the hash computed over the bytes it claims to describe.
type HashMismatchError struct {
	Expected string
	Actual   string
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("assetcache: hash mismatch: expected %s, got %s", e.Expected, e.Actual)
}

// SiteInfo is the normalized origin derived from a recording's initial
// URL.
type SiteInfo struct {
	Origin     string
	InitialURL string
}

// ManifestEntry pairs a URL with the content hash last seen serving
// it, for inclusion in a CacheManifest frame.
type ManifestEntry struct {
	URL         string
	ContentHash string
}

// URLVersion is one content hash ever observed serving a URL, with the
// window during which it was seen.
type URLVersion struct {
	ContentHash string
	FirstSeenAt time.Time
	LastSeenAt  time.Time
}

// UsageParams describes one observed (site, url, hash) usage event.
type UsageParams struct {
	SiteOrigin  string
	URL         string
	ContentHash string
	Size        uint64
}

// AssetMetadata links a content hash to its retrieval token, size, and
// MIME type.
type AssetMetadata struct {
	ContentHash string
	RandomID    string
	Size        uint64
	MimeType    string
}

// MetadataStore tracks asset identity and per-site usage. Backed by
// sqlite (see metadata.go); the interface exists so Cache can
// be exercised against a fake in tests without a real database.
type MetadataStore interface {
	RegisterRecording(ctx context.Context, recordingID, initialURL string) (SiteInfo, error)
	GetSiteManifest(ctx context.Context, siteOrigin string, limit int) ([]ManifestEntry, error)
	ResolveHash(ctx context.Context, contentHash string) (string, bool, error)
	ResolveRandomID(ctx context.Context, randomID string) (string, bool, error)
	RegisterUsage(ctx context.Context, p UsageParams) error
	StoreAssetMetadata(ctx context.Context, m AssetMetadata) (randomID string, err error)
	GetAssetMetadata(ctx context.Context, randomID string) (mimeType string, size uint64, ok bool, err error)
	// URLHistory returns every content hash ever seen serving url,
	// newest first, for diagnosing asset churn (e.g. a CDN rotating an
	// image under a stable URL).
	URLHistory(ctx context.Context, url string) ([]URLVersion, error)
	Close() error
}

// FileStore is the physical storage backend for asset bytes, keyed by
// content hash. Implementations: localstore.go (filesystem) and
// s3store.go (S3-compatible object storage).
type FileStore interface {
	Put(ctx context.Context, hash string, data []byte, mime string) error
	Exists(ctx context.Context, hash string) (bool, error)
	Get(ctx context.Context, hash string) ([]byte, error)
	ResolveURL(ctx context.Context, hash string) (string, error)
	StorageType() string
	ConfigJSON() (string, error)
}
