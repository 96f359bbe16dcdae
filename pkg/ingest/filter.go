// Package ingest implements the per-recording ingest pipeline: the
// state machine that drives a decoded frame stream through the asset
// cache and into a quarantine-on-error session file, and the
// active-recording bookkeeping that lets a playback request tail a
// file still being written.
package ingest

import (
	"context"
	"fmt"

	"github.com/dnorman/domcorder/pkg/assetcache"
	"github.com/dnorman/domcorder/pkg/metrics"
	"github.com/dnorman/domcorder/pkg/protocol"
)

// filterContext carries what the per-frame filter needs beyond the
// frame itself: the site this recording belongs to (for usage
// tracking) and the shared asset cache.
type filterContext struct {
	cache      *assetcache.Cache
	fetcher    *assetcache.Fetcher
	siteOrigin string
	userAgent  string
	metrics    *metrics.Metrics
}

func (fc *filterContext) countDropped(reason string) {
	if fc.metrics != nil {
		fc.metrics.FramesDropped.WithLabelValues(reason).Inc()
	}
}

// filterFrame applies the ingest-time frame transform: Heartbeat is
// dropped, Asset is rewritten to AssetReference via the content
// cache, AssetReference has its content-hash swapped for the
// asset's random_id, and every other variant passes through
// unchanged. A nil, nil result means "drop this frame, write
// nothing"; a non-nil error means the recording must be quarantined.
func (fc *filterContext) filterFrame(ctx context.Context, f protocol.Frame) (protocol.Frame, error) {
	switch v := f.(type) {
	case *protocol.HeartbeatFrame:
		fc.countDropped("heartbeat")
		return nil, nil

	case *protocol.AssetFrame:
		return fc.processAssetFrame(ctx, v)

	case *protocol.AssetReferenceFrame:
		return fc.processAssetReference(ctx, v)

	default:
		return f, nil
	}
}

// processAssetFrame implements spec §4.7's process_asset_frame: an
// inline Asset carries either real bytes or a client-side fetch
// failure. A retriable failure (CORS/Network/Unknown with an empty
// buffer) is retried server-side; a non-retriable HTTP error or an
// empty buffer with no error is simply dropped — the DOM may end up
// referencing a missing asset, which is acceptable degradation.
func (fc *filterContext) processAssetFrame(ctx context.Context, a *protocol.AssetFrame) (protocol.Frame, error) {
	buf := a.Buf
	mime := ""
	if a.Mime != nil {
		mime = *a.Mime
	}

	if len(buf) == 0 {
		switch a.FetchError.Kind {
		case protocol.FetchErrorCORS, protocol.FetchErrorNetwork, protocol.FetchErrorUnknown:
			if fc.fetcher == nil {
				fc.countDropped("fetcher_unconfigured")
				return nil, nil
			}
			hash, randomID, err := fc.fetcher.FetchAndCache(ctx, a.URL, fc.userAgent)
			if err != nil {
				// A fallback fetch failing is an asset-side-effect
				// error: drop the single frame, don't quarantine.
				fc.countDropped("fallback_fetch_failed")
				return nil, nil
			}
			fc.registerUsage(ctx, a.URL, hash, 0)
			if mimeStr, _, ok, err := fc.cache.Metadata.GetAssetMetadata(ctx, randomID); err == nil && ok {
				mime = mimeStr
			}
			return assetReference(a.AssetID, a.URL, randomID, mime), nil
		case protocol.FetchErrorHttp:
			fc.countDropped("http_error")
			return nil, nil
		default:
			fc.countDropped("empty_buffer")
			return nil, nil
		}
	}

	contentHash := assetcache.ContentHash(buf)
	if mime == "" {
		mime = "application/octet-stream"
	}
	randomID, err := fc.cache.StoreOrGet(ctx, contentHash, buf, mime)
	if err != nil {
		return nil, fmt.Errorf("ingest: store asset: %w", err)
	}
	fc.registerUsage(ctx, a.URL, contentHash, uint64(len(buf)))
	return assetReference(a.AssetID, a.URL, randomID, mime), nil
}

// processAssetReference implements spec §4.7's process_asset_reference:
// the recorder sends AssetReference when it already knows the
// content hash (e.g. it fetched the asset itself and hashed it
// client-side) but has no bytes to send. If the hash is already
// known, the frame is rewritten to carry the random_id. Otherwise the
// server fetches the URL itself and verifies the fetched content
// hashes to exactly what the client claimed — a mismatch is treated
// as a hash-mismatch attack or corruption and is fatal to the
// recording.
func (fc *filterContext) processAssetReference(ctx context.Context, r *protocol.AssetReferenceFrame) (protocol.Frame, error) {
	if randomID, ok, err := fc.cache.Metadata.ResolveHash(ctx, r.Hash); err != nil {
		return nil, fmt.Errorf("ingest: resolve asset reference hash: %w", err)
	} else if ok {
		fc.registerUsage(ctx, r.URL, r.Hash, 0)
		mime := ""
		if mimeStr, _, ok, err := fc.cache.Metadata.GetAssetMetadata(ctx, randomID); err == nil && ok {
			mime = mimeStr
		}
		return assetReference(r.AssetID, r.URL, randomID, mime), nil
	}

	if fc.fetcher == nil {
		return nil, fmt.Errorf("ingest: unresolvable asset reference hash %s and no fetcher configured", r.Hash)
	}
	fetchedHash, randomID, err := fc.fetcher.FetchAndCache(ctx, r.URL, fc.userAgent)
	if err != nil {
		return nil, fmt.Errorf("ingest: fetch asset reference %s: %w", r.URL, err)
	}
	if fetchedHash != r.Hash {
		return nil, &assetcache.HashMismatchError{Expected: r.Hash, Actual: fetchedHash}
	}
	fc.registerUsage(ctx, r.URL, fetchedHash, 0)
	mime := ""
	if mimeStr, _, ok, err := fc.cache.Metadata.GetAssetMetadata(ctx, randomID); err == nil && ok {
		mime = mimeStr
	}
	return assetReference(r.AssetID, r.URL, randomID, mime), nil
}

func (fc *filterContext) registerUsage(ctx context.Context, url, contentHash string, size uint64) {
	if fc.siteOrigin == "" {
		return
	}
	_ = fc.cache.Metadata.RegisterUsage(ctx, assetcache.UsageParams{
		SiteOrigin:  fc.siteOrigin,
		URL:         url,
		ContentHash: contentHash,
		Size:        size,
	})
}

func assetReference(assetID uint64, url, hash, mime string) *protocol.AssetReferenceFrame {
	f := &protocol.AssetReferenceFrame{AssetID: assetID, URL: url, Hash: hash}
	if mime != "" {
		f.Mime = &mime
	}
	return f
}
