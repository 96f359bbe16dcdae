package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dnorman/domcorder/pkg/assetcache"
	"github.com/dnorman/domcorder/pkg/protocol"
)

func newTestCache() (*assetcache.Cache, *fakeMetadataStore, *fakeFileStore) {
	meta := newFakeMetadataStore()
	files := newFakeFileStore()
	return assetcache.NewCache(meta, files, nil), meta, files
}

func TestFilterFrame_HeartbeatDropped(t *testing.T) {
	cache, _, _ := newTestCache()
	fc := &filterContext{cache: cache}

	out, err := fc.filterFrame(context.Background(), &protocol.HeartbeatFrame{})
	if err != nil {
		t.Fatalf("filterFrame: %v", err)
	}
	if out != nil {
		t.Fatalf("expected heartbeat to be dropped, got %v", out)
	}
}

func TestFilterFrame_PassthroughUnrelatedVariant(t *testing.T) {
	cache, _, _ := newTestCache()
	fc := &filterContext{cache: cache}

	in := &protocol.MouseMovedFrame{X: 10, Y: 20}
	out, err := fc.filterFrame(context.Background(), in)
	if err != nil {
		t.Fatalf("filterFrame: %v", err)
	}
	if out != in {
		t.Fatalf("expected passthrough frame to be the exact same value, got %v", out)
	}
}

func TestProcessAssetFrame_InlineBytesStoredAndRewritten(t *testing.T) {
	cache, _, files := newTestCache()
	fc := &filterContext{cache: cache, siteOrigin: "https://example.test"}

	data := []byte("inline asset bytes")
	mime := "image/png"
	a := &protocol.AssetFrame{AssetID: 1, URL: "https://example.test/a.png", Mime: &mime, Buf: data}

	out, err := fc.filterFrame(context.Background(), a)
	if err != nil {
		t.Fatalf("filterFrame: %v", err)
	}
	ref, ok := out.(*protocol.AssetReferenceFrame)
	if !ok {
		t.Fatalf("expected AssetReferenceFrame, got %T", out)
	}
	if ref.AssetID != a.AssetID || ref.URL != a.URL {
		t.Fatalf("expected asset id/url preserved, got %+v", ref)
	}
	if ref.Hash == "" {
		t.Fatal("expected a non-empty random id in place of the content hash")
	}
	if ref.Hash == assetcache.ContentHash(data) {
		t.Fatal("expected the content hash to be swapped for a random id, not left as-is")
	}

	hash := assetcache.ContentHash(data)
	exists, err := files.Exists(context.Background(), hash)
	if err != nil || !exists {
		t.Fatalf("expected blob stored under its content hash, exists=%v err=%v", exists, err)
	}
}

func TestProcessAssetFrame_EmptyBufferNoErrorDropped(t *testing.T) {
	cache, _, _ := newTestCache()
	fc := &filterContext{cache: cache}

	a := &protocol.AssetFrame{AssetID: 2, URL: "https://example.test/missing.png"}
	out, err := fc.filterFrame(context.Background(), a)
	if err != nil {
		t.Fatalf("filterFrame: %v", err)
	}
	if out != nil {
		t.Fatalf("expected empty-buffer/no-error asset to be dropped, got %v", out)
	}
}

func TestProcessAssetFrame_HttpErrorDropped(t *testing.T) {
	cache, _, _ := newTestCache()
	fc := &filterContext{cache: cache}

	a := &protocol.AssetFrame{
		AssetID:    3,
		URL:        "https://example.test/404.png",
		FetchError: protocol.FetchError{Kind: protocol.FetchErrorHttp},
	}
	out, err := fc.filterFrame(context.Background(), a)
	if err != nil {
		t.Fatalf("filterFrame: %v", err)
	}
	if out != nil {
		t.Fatalf("expected http-error asset to be dropped, not retried, got %v", out)
	}
}

func TestProcessAssetFrame_NoFetcherConfiguredDropsCorsFailure(t *testing.T) {
	cache, _, _ := newTestCache()
	fc := &filterContext{cache: cache} // fetcher intentionally nil

	a := &protocol.AssetFrame{
		AssetID:    4,
		URL:        "https://example.test/cors.png",
		FetchError: protocol.FetchError{Kind: protocol.FetchErrorCORS},
	}
	out, err := fc.filterFrame(context.Background(), a)
	if err != nil {
		t.Fatalf("filterFrame: %v", err)
	}
	if out != nil {
		t.Fatalf("expected cors failure with no fetcher to be dropped, got %v", out)
	}
}

func TestProcessAssetFrame_CorsFallbackFetchSucceeds(t *testing.T) {
	body := []byte("fetched from origin")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
		w.Write(body)
	}))
	defer srv.Close()

	cache, _, files := newTestCache()
	fetcher := assetcache.NewFetcher(cache, nil)
	fc := &filterContext{cache: cache, fetcher: fetcher, userAgent: "test-agent"}

	a := &protocol.AssetFrame{
		AssetID:    5,
		URL:        srv.URL,
		FetchError: protocol.FetchError{Kind: protocol.FetchErrorCORS},
	}
	out, err := fc.filterFrame(context.Background(), a)
	if err != nil {
		t.Fatalf("filterFrame: %v", err)
	}
	ref, ok := out.(*protocol.AssetReferenceFrame)
	if !ok {
		t.Fatalf("expected AssetReferenceFrame after server-side fetch, got %T", out)
	}
	if ref.Mime == nil || *ref.Mime != "text/css" {
		t.Fatalf("expected mime recovered from Content-Type, got %v", ref.Mime)
	}

	hash := assetcache.ContentHash(body)
	exists, err := files.Exists(context.Background(), hash)
	if err != nil || !exists {
		t.Fatalf("expected fetched bytes cached under content hash, exists=%v err=%v", exists, err)
	}
}

func TestProcessAssetFrame_FallbackFetchFailureIsDroppedNotFatal(t *testing.T) {
	cache, _, _ := newTestCache()
	fetcher := assetcache.NewFetcher(cache, nil)
	fc := &filterContext{cache: cache, fetcher: fetcher}

	a := &protocol.AssetFrame{
		AssetID:    6,
		URL:        "http://127.0.0.1:1/unreachable", // nothing listens here
		FetchError: protocol.FetchError{Kind: protocol.FetchErrorNetwork},
	}
	out, err := fc.filterFrame(context.Background(), a)
	if err != nil {
		t.Fatalf("expected a failed fallback fetch to drop the frame, not quarantine the recording: %v", err)
	}
	if out != nil {
		t.Fatalf("expected nil output on fallback failure, got %v", out)
	}
}

func TestProcessAssetReference_KnownHashRewritten(t *testing.T) {
	cache, meta, _ := newTestCache()
	fc := &filterContext{cache: cache, siteOrigin: "https://example.test"}

	if _, err := meta.StoreAssetMetadata(context.Background(), assetcache.AssetMetadata{
		ContentHash: "deadbeef",
		RandomID:    "known-random-id",
		Size:        4,
		MimeType:    "application/octet-stream",
	}); err != nil {
		t.Fatalf("seed metadata: %v", err)
	}

	r := &protocol.AssetReferenceFrame{AssetID: 7, URL: "https://example.test/x.bin", Hash: "deadbeef"}
	out, err := fc.filterFrame(context.Background(), r)
	if err != nil {
		t.Fatalf("filterFrame: %v", err)
	}
	ref, ok := out.(*protocol.AssetReferenceFrame)
	if !ok {
		t.Fatalf("expected AssetReferenceFrame, got %T", out)
	}
	if ref.Hash != "known-random-id" {
		t.Fatalf("expected content hash swapped for random id, got %q", ref.Hash)
	}
}

func TestProcessAssetReference_UnknownHashFetchesAndVerifies(t *testing.T) {
	body := []byte("reference fetched bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	cache, _, _ := newTestCache()
	fetcher := assetcache.NewFetcher(cache, nil)
	fc := &filterContext{cache: cache, fetcher: fetcher}

	hash := assetcache.ContentHash(body)
	r := &protocol.AssetReferenceFrame{AssetID: 8, URL: srv.URL, Hash: hash}
	out, err := fc.filterFrame(context.Background(), r)
	if err != nil {
		t.Fatalf("filterFrame: %v", err)
	}
	ref, ok := out.(*protocol.AssetReferenceFrame)
	if !ok {
		t.Fatalf("expected AssetReferenceFrame, got %T", out)
	}
	if ref.Hash == hash {
		t.Fatal("expected the content hash to be replaced by a random id")
	}
}

func TestProcessAssetReference_HashMismatchIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("actual bytes"))
	}))
	defer srv.Close()

	cache, _, _ := newTestCache()
	fetcher := assetcache.NewFetcher(cache, nil)
	fc := &filterContext{cache: cache, fetcher: fetcher}

	r := &protocol.AssetReferenceFrame{AssetID: 9, URL: srv.URL, Hash: "claimed-but-wrong-hash"}
	_, err := fc.filterFrame(context.Background(), r)
	if err == nil {
		t.Fatal("expected a hash mismatch to be a fatal error")
	}
	if _, ok := err.(*assetcache.HashMismatchError); !ok {
		t.Fatalf("expected *assetcache.HashMismatchError, got %T: %v", err, err)
	}
}

func TestProcessAssetReference_NoFetcherConfiguredErrors(t *testing.T) {
	cache, _, _ := newTestCache()
	fc := &filterContext{cache: cache} // fetcher intentionally nil

	r := &protocol.AssetReferenceFrame{AssetID: 10, URL: "https://example.test/unresolved.bin", Hash: "unknown-hash"}
	_, err := fc.filterFrame(context.Background(), r)
	if err == nil {
		t.Fatal("expected an unresolvable hash with no fetcher to be an error")
	}
}
