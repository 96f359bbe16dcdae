package assetcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	_ "modernc.org/sqlite"
)

// schema creates the four tables a SQLiteMetadataStore needs if they
// don't already exist: assets (hash -> random_id, size, mime),
// site_assets (per-site usage counts driving manifest priority),
// url_versions (every hash ever seen under a URL, for future
// stability analysis), and recordings (recording_id -> site origin).
const schema = `
CREATE TABLE IF NOT EXISTS assets (
	content_hash TEXT PRIMARY KEY,
	random_id    TEXT NOT NULL UNIQUE,
	size         INTEGER NOT NULL,
	mime_type    TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_assets_random_id ON assets(random_id);

CREATE TABLE IF NOT EXISTS site_assets (
	site_origin  TEXT NOT NULL,
	url          TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	usage_count  INTEGER NOT NULL DEFAULT 1,
	last_seen_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (site_origin, url, content_hash)
);
CREATE INDEX IF NOT EXISTS idx_site_assets_origin ON site_assets(site_origin, usage_count DESC);

CREATE TABLE IF NOT EXISTS url_versions (
	url          TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	first_seen_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_seen_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (url, content_hash)
);
CREATE INDEX IF NOT EXISTS idx_url_versions_url ON url_versions(url, last_seen_at DESC);

CREATE TABLE IF NOT EXISTS recordings (
	recording_id TEXT PRIMARY KEY,
	site_origin  TEXT NOT NULL,
	initial_url  TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteMetadataStore is the pure-Go (modernc.org/sqlite, no cgo)
// MetadataStore implementation.
type SQLiteMetadataStore struct {
	db *sql.DB
}

// NewSQLiteMetadataStore opens (creating if needed) the database at
// path, applies the schema, and enables WAL so ingest writers and
// playback readers don't block each other.
func NewSQLiteMetadataStore(path string) (*SQLiteMetadataStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("assetcache: open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("assetcache: enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("assetcache: enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("assetcache: apply schema: %w", err)
	}
	return &SQLiteMetadataStore{db: db}, nil
}

// extractOrigin normalizes initialURL down to scheme://host[:port].
func extractOrigin(initialURL string) (string, error) {
	u, err := url.Parse(initialURL)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidURL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: no host in %q", ErrInvalidURL, initialURL)
	}
	return u.Scheme + "://" + u.Host, nil
}

// RegisterRecording records recordingID against the origin derived
// from initialURL, replacing any prior registration with the same id.
func (s *SQLiteMetadataStore) RegisterRecording(ctx context.Context, recordingID, initialURL string) (SiteInfo, error) {
	origin, err := extractOrigin(initialURL)
	if err != nil {
		return SiteInfo{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO recordings (recording_id, site_origin, initial_url) VALUES (?, ?, ?)`,
		recordingID, origin, initialURL)
	if err != nil {
		return SiteInfo{}, fmt.Errorf("assetcache: register recording: %w", err)
	}
	return SiteInfo{Origin: origin, InitialURL: initialURL}, nil
}

// GetSiteManifest returns up to limit (url, content_hash) pairs for
// siteOrigin, ordered by usage frequency then by asset size — the
// heaviest, most-reused assets get cached first.
func (s *SQLiteMetadataStore) GetSiteManifest(ctx context.Context, siteOrigin string, limit int) ([]ManifestEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sa.url, sa.content_hash
		FROM site_assets sa
		JOIN assets a ON sa.content_hash = a.content_hash
		WHERE sa.site_origin = ?
		ORDER BY sa.usage_count DESC, a.size DESC
		LIMIT ?`, siteOrigin, limit)
	if err != nil {
		return nil, fmt.Errorf("assetcache: site manifest query: %w", err)
	}
	defer rows.Close()

	var entries []ManifestEntry
	for rows.Next() {
		var e ManifestEntry
		if err := rows.Scan(&e.URL, &e.ContentHash); err != nil {
			return nil, fmt.Errorf("assetcache: scan manifest row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ResolveHash maps a content hash to its random_id.
func (s *SQLiteMetadataStore) ResolveHash(ctx context.Context, contentHash string) (string, bool, error) {
	var randomID string
	err := s.db.QueryRowContext(ctx, `SELECT random_id FROM assets WHERE content_hash = ?`, contentHash).Scan(&randomID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("assetcache: resolve hash: %w", err)
	}
	return randomID, true, nil
}

// ResolveRandomID maps a random_id back to its content hash.
func (s *SQLiteMetadataStore) ResolveRandomID(ctx context.Context, randomID string) (string, bool, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT content_hash FROM assets WHERE random_id = ?`, randomID).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("assetcache: resolve random id: %w", err)
	}
	return hash, true, nil
}

// RegisterUsage records that contentHash served url on siteOrigin
// once more, bumping usage_count (or inserting a fresh row at count 1)
// and tracking the hash against the URL's global version history.
func (s *SQLiteMetadataStore) RegisterUsage(ctx context.Context, p UsageParams) error {
	now := time.Now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("assetcache: register usage begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO site_assets (site_origin, url, content_hash, usage_count, last_seen_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(site_origin, url, content_hash) DO UPDATE SET
			usage_count = usage_count + 1,
			last_seen_at = excluded.last_seen_at
	`, p.SiteOrigin, p.URL, p.ContentHash, now); err != nil {
		return fmt.Errorf("assetcache: upsert site_assets: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO url_versions (url, content_hash, first_seen_at, last_seen_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(url, content_hash) DO UPDATE SET last_seen_at = excluded.last_seen_at
	`, p.URL, p.ContentHash, now, now); err != nil {
		return fmt.Errorf("assetcache: upsert url_versions: %w", err)
	}

	return tx.Commit()
}

// StoreAssetMetadata inserts the (content_hash, random_id, size,
// mime_type) row for an asset, or, if a row for content_hash already
// exists (two concurrent store_or_get calls for the same hash), leaves
// it untouched and returns the existing row's random_id instead of m's,
// so the metadata store keeps exactly one canonical random_id per hash
// no matter which writer lost the race.
func (s *SQLiteMetadataStore) StoreAssetMetadata(ctx context.Context, m AssetMetadata) (string, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assets (content_hash, random_id, size, mime_type, created_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(content_hash) DO NOTHING
	`, m.ContentHash, m.RandomID, m.Size, m.MimeType)
	if err != nil {
		return "", fmt.Errorf("assetcache: store asset metadata: %w", err)
	}

	var randomID string
	err = s.db.QueryRowContext(ctx, `SELECT random_id FROM assets WHERE content_hash = ?`, m.ContentHash).Scan(&randomID)
	if err != nil {
		return "", fmt.Errorf("assetcache: read back stored asset metadata: %w", err)
	}
	return randomID, nil
}

// URLHistory returns every content hash ever seen serving url, ordered
// newest-first by when it was last observed.
func (s *SQLiteMetadataStore) URLHistory(ctx context.Context, url string) ([]URLVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT content_hash, first_seen_at, last_seen_at
		FROM url_versions
		WHERE url = ?
		ORDER BY last_seen_at DESC`, url)
	if err != nil {
		return nil, fmt.Errorf("assetcache: url history query: %w", err)
	}
	defer rows.Close()

	var versions []URLVersion
	for rows.Next() {
		var v URLVersion
		if err := rows.Scan(&v.ContentHash, &v.FirstSeenAt, &v.LastSeenAt); err != nil {
			return nil, fmt.Errorf("assetcache: scan url version row: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// GetAssetMetadata looks up the MIME type and size behind randomID,
// as served by the /assets/{random_id} HTTP handler.
func (s *SQLiteMetadataStore) GetAssetMetadata(ctx context.Context, randomID string) (string, uint64, bool, error) {
	var mime string
	var size uint64
	err := s.db.QueryRowContext(ctx, `SELECT mime_type, size FROM assets WHERE random_id = ?`, randomID).Scan(&mime, &size)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, fmt.Errorf("assetcache: get asset metadata: %w", err)
	}
	return mime, size, true, nil
}

// Close releases the underlying database handle.
func (s *SQLiteMetadataStore) Close() error {
	return s.db.Close()
}
