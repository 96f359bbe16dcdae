package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dnorman/domcorder/pkg/assetcache"
	"github.com/dnorman/domcorder/pkg/protocol"
	"github.com/dnorman/domcorder/pkg/recording"
)

// fakeMetadataStore and fakeFileStore are minimal in-memory
// assetcache.MetadataStore/FileStore implementations, just enough to
// build a *assetcache.Cache for routing tests that never touch an
// asset.
type fakeMetadataStore struct{}

func (fakeMetadataStore) RegisterRecording(ctx context.Context, recordingID, initialURL string) (assetcache.SiteInfo, error) {
	return assetcache.SiteInfo{}, nil
}
func (fakeMetadataStore) GetSiteManifest(ctx context.Context, siteOrigin string, limit int) ([]assetcache.ManifestEntry, error) {
	return nil, nil
}
func (fakeMetadataStore) ResolveHash(ctx context.Context, contentHash string) (string, bool, error) {
	return "", false, nil
}
func (fakeMetadataStore) ResolveRandomID(ctx context.Context, randomID string) (string, bool, error) {
	return "", false, nil
}
func (fakeMetadataStore) RegisterUsage(ctx context.Context, p assetcache.UsageParams) error {
	return nil
}
func (fakeMetadataStore) StoreAssetMetadata(ctx context.Context, m assetcache.AssetMetadata) (string, error) {
	return m.RandomID, nil
}
func (fakeMetadataStore) GetAssetMetadata(ctx context.Context, randomID string) (string, uint64, bool, error) {
	return "", 0, false, nil
}
func (fakeMetadataStore) URLHistory(ctx context.Context, url string) ([]assetcache.URLVersion, error) {
	return nil, nil
}
func (fakeMetadataStore) Close() error { return nil }

type fakeFileStore struct{ mu sync.Mutex }

func (f *fakeFileStore) Put(ctx context.Context, hash string, data []byte, mime string) error {
	return nil
}
func (f *fakeFileStore) Exists(ctx context.Context, hash string) (bool, error) { return false, nil }
func (f *fakeFileStore) Get(ctx context.Context, hash string) ([]byte, error) {
	return nil, assetcache.ErrNotFound
}
func (f *fakeFileStore) ResolveURL(ctx context.Context, hash string) (string, error) { return "", nil }
func (f *fakeFileStore) StorageType() string                                         { return "fake" }
func (f *fakeFileStore) ConfigJSON() (string, error)                                 { return "{}", nil }

func newTestServer(t *testing.T) (*Server, *recording.SessionStore, *recording.ActiveRecordings) {
	t.Helper()
	dir := t.TempDir()
	store, err := recording.NewSessionStore(dir)
	if err != nil {
		t.Fatalf("NewSessionStore: %v", err)
	}
	active := recording.NewActiveRecordings()
	cache := assetcache.NewCache(fakeMetadataStore{}, &fakeFileStore{}, nil)

	srv := New(Deps{
		Store:     store,
		Active:    active,
		Cache:     cache,
		MaxBytes:  0,
		UserAgent: "test-agent",
	})
	return srv, store, active
}

// writeSessionFile creates filename in store with a valid header
// followed by one encoded frame, returning the frame's encoded bytes.
func writeSessionFile(t *testing.T, store *recording.SessionStore, filename string) []byte {
	t.Helper()
	f, err := store.Create(filename)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer f.Close()

	if err := protocol.WriteHeader(f, &protocol.FileHeader{Version: protocol.FileVersion, CreatedAt: 1}); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	body := protocol.EncodeWireFrame(&protocol.TimestampFrame{TimestampMs: 1})
	if _, err := f.Write(body); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	return body
}

func TestHandleListRecordings_ReportsActiveFlag(t *testing.T) {
	srv, store, active := newTestServer(t)
	writeSessionFile(t, store, "one.dcrr")
	writeSessionFile(t, store, "two.dcrr")
	active.Insert("one.dcrr")

	req := httptest.NewRequest(http.MethodGet, "/recordings", nil)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var got []struct {
		Filename string `json:"filename"`
		Active   bool   `json:"active"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 recordings, got %d", len(got))
	}
	byName := map[string]bool{}
	for _, e := range got {
		byName[e.Filename] = e.Active
	}
	if !byName["one.dcrr"] {
		t.Fatal("expected one.dcrr to be reported active")
	}
	if byName["two.dcrr"] {
		t.Fatal("expected two.dcrr to be reported inactive")
	}
}

func TestHandleStreamRecording_CommittedFileStreamsToEOF(t *testing.T) {
	srv, store, _ := newTestServer(t)
	want := writeSessionFile(t, store, "committed.dcrr")

	req := httptest.NewRequest(http.MethodGet, "/recordings/committed.dcrr/stream", nil)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	bodyReader := bytes.NewReader(rr.Body.Bytes())
	gotConfig, err := protocol.ReadWireFrame(bodyReader)
	if err != nil {
		t.Fatalf("expected a leading PlaybackConfig frame: %v", err)
	}
	cfg, ok := gotConfig.(*protocol.PlaybackConfigFrame)
	if !ok {
		t.Fatalf("expected *protocol.PlaybackConfigFrame, got %T", gotConfig)
	}
	if cfg.StorageType != "fake" || cfg.IsLive {
		t.Fatalf("unexpected playback config: %+v", cfg)
	}
	rest := make([]byte, bodyReader.Len())
	if _, err := io.ReadFull(bodyReader, rest); err != nil {
		t.Fatalf("read remaining bytes: %v", err)
	}
	if string(rest) != string(want) {
		t.Fatalf("expected streamed bytes after the playback config to match the post-header frame bytes")
	}
}

func TestHandleStreamRecording_UnknownFilenameNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/recordings/nope.dcrr/stream", nil)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestHandleStreamRecording_ActiveRecordingTailsUntilRemoved(t *testing.T) {
	srv, store, active := newTestServer(t)
	_ = writeSessionFile(t, store, "live.dcrr")
	active.Insert("live.dcrr")

	req := httptest.NewRequest(http.MethodGet, "/recordings/live.dcrr/stream", nil)
	rr := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		srv.Router().ServeHTTP(rr, req)
		close(done)
	}()

	// The handler should still be blocked tailing, not yet finished,
	// since the recording is marked active.
	select {
	case <-done:
		t.Fatal("expected the stream handler to block while the recording is active")
	case <-time.After(150 * time.Millisecond):
	}

	active.Remove("live.dcrr")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected the stream handler to finish once the recording left the active set")
	}
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}
