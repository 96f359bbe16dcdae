package assetcache

import (
	"context"
	"fmt"
)

// DefaultManifestLimit bounds how many entries a generated manifest
// carries when the caller doesn't specify one.
const DefaultManifestLimit = 200

// GenerateManifest builds the prioritized asset manifest a recorder
// consults before uploading: assets already cached for siteOrigin, so
// it can skip re-sending bytes the server already has. A limit <= 0
// uses DefaultManifestLimit.
func GenerateManifest(ctx context.Context, store MetadataStore, siteOrigin string, limit int) ([]ManifestEntry, error) {
	if limit <= 0 {
		limit = DefaultManifestLimit
	}
	entries, err := store.GetSiteManifest(ctx, siteOrigin, limit)
	if err != nil {
		return nil, fmt.Errorf("assetcache: generate manifest for %s: %w", siteOrigin, err)
	}
	return entries, nil
}
