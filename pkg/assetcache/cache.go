package assetcache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dnorman/domcorder/pkg/metrics"
)

// Cache ties a MetadataStore and a FileStore together behind the
// single entry point ingest and playback both need: "store this
// asset, or tell me the random_id of the copy we already have."
type Cache struct {
	Metadata MetadataStore
	Files    FileStore
	log      *slog.Logger

	// Metrics is optional; when set, StoreOrGet reports hits, misses,
	// and the two blob/metadata drift cases through it.
	Metrics *metrics.Metrics
}

// NewCache wires store and files together. log may be nil, in which
// case slog.Default() is used.
func NewCache(store MetadataStore, files FileStore, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	return &Cache{Metadata: store, Files: files, log: log, Metrics: metrics.Default()}
}

// StoreOrGet stores data under its content hash (computed by the
// caller and passed in as contentHash, since the ingest pipeline
// already needed the hash to build an AssetReference frame) and
// returns the asset's random_id.
//
// Four cases, distinguished by whether the blob and the metadata row
// each already exist:
//
//  1. blob exists, metadata exists    -> return the existing random_id.
//  2. blob exists, metadata missing   -> mint a random_id, insert
//     metadata, return it. (Can happen if a prior StoreAssetMetadata
//     call failed after Put succeeded.)
//  3. blob missing, metadata exists   -> the CAS and the metadata
//     table have drifted apart. Restore the blob from the bytes we
//     were given (trusting the caller's contentHash is correct) and
//     reuse the existing random_id, logging the inconsistency since it
//     should not happen in steady state.
//  4. blob missing, metadata missing  -> the common case for a
//     genuinely new asset: mint a random_id, store the blob, insert
//     metadata.
func (c *Cache) StoreOrGet(ctx context.Context, contentHash string, data []byte, mimeType string) (string, error) {
	blobExists, err := c.Files.Exists(ctx, contentHash)
	if err != nil {
		return "", fmt.Errorf("assetcache: check blob existence: %w", err)
	}

	if blobExists {
		if randomID, ok, err := c.Metadata.ResolveHash(ctx, contentHash); err != nil {
			return "", fmt.Errorf("assetcache: resolve hash: %w", err)
		} else if ok {
			c.countHit()
			return randomID, nil
		}
		c.log.Warn("asset blob exists without metadata, minting metadata",
			"content_hash", contentHash)
		c.countInconsistency("metadata_missing")
		return c.mintAndStoreMetadata(ctx, contentHash, uint64(len(data)), mimeType)
	}

	if randomID, ok, err := c.Metadata.ResolveHash(ctx, contentHash); err != nil {
		return "", fmt.Errorf("assetcache: resolve hash: %w", err)
	} else if ok {
		c.log.Error("asset metadata exists without blob, restoring blob",
			"content_hash", contentHash, "random_id", randomID)
		c.countInconsistency("blob_missing")
		if err := c.Files.Put(ctx, contentHash, data, mimeType); err != nil {
			return "", fmt.Errorf("assetcache: restore blob: %w", err)
		}
		if _, err := c.Metadata.StoreAssetMetadata(ctx, AssetMetadata{
			ContentHash: contentHash,
			RandomID:    randomID,
			Size:        uint64(len(data)),
			MimeType:    mimeType,
		}); err != nil {
			return "", fmt.Errorf("assetcache: refresh metadata after blob restore: %w", err)
		}
		return randomID, nil
	}

	if err := c.Files.Put(ctx, contentHash, data, mimeType); err != nil {
		return "", fmt.Errorf("assetcache: store blob: %w", err)
	}
	c.countMiss()
	return c.mintAndStoreMetadata(ctx, contentHash, uint64(len(data)), mimeType)
}

func (c *Cache) countHit() {
	if c.Metrics != nil {
		c.Metrics.AssetCacheHits.Inc()
	}
}

func (c *Cache) countMiss() {
	if c.Metrics != nil {
		c.Metrics.AssetCacheMisses.Inc()
	}
}

func (c *Cache) countInconsistency(kind string) {
	if c.Metrics != nil {
		c.Metrics.AssetCacheInconsistencies.WithLabelValues(kind).Inc()
	}
}

// mintAndStoreMetadata mints a candidate random_id and stores it, but
// returns whichever random_id StoreAssetMetadata reports as canonical
// for contentHash: its own mint if no one beat it to the insert, or a
// concurrent writer's if one did.
func (c *Cache) mintAndStoreMetadata(ctx context.Context, contentHash string, size uint64, mimeType string) (string, error) {
	randomID, err := GenerateRandomID()
	if err != nil {
		return "", fmt.Errorf("assetcache: generate random id: %w", err)
	}
	winningID, err := c.Metadata.StoreAssetMetadata(ctx, AssetMetadata{
		ContentHash: contentHash,
		RandomID:    randomID,
		Size:        size,
		MimeType:    mimeType,
	})
	if err != nil {
		return "", fmt.Errorf("assetcache: store metadata: %w", err)
	}
	return winningID, nil
}
