package ingest

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/dnorman/domcorder/pkg/assetcache"
	"github.com/dnorman/domcorder/pkg/protocol"
)

// fakeMetadataStore is a minimal in-memory assetcache.MetadataStore,
// enough to exercise the filter and pipeline without sqlite.
type fakeMetadataStore struct {
	mu       sync.Mutex
	byHash   map[string]assetcache.AssetMetadata
	byRandom map[string]string
	origin   string
}

func newFakeMetadataStore() *fakeMetadataStore {
	return &fakeMetadataStore{
		byHash:   make(map[string]assetcache.AssetMetadata),
		byRandom: make(map[string]string),
	}
}

func (f *fakeMetadataStore) RegisterRecording(ctx context.Context, recordingID, initialURL string) (assetcache.SiteInfo, error) {
	origin := f.origin
	if origin == "" {
		origin = "https://example.test"
	}
	return assetcache.SiteInfo{Origin: origin, InitialURL: initialURL}, nil
}

func (f *fakeMetadataStore) GetSiteManifest(ctx context.Context, siteOrigin string, limit int) ([]assetcache.ManifestEntry, error) {
	return nil, nil
}

func (f *fakeMetadataStore) ResolveHash(ctx context.Context, contentHash string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byHash[contentHash]
	if !ok {
		return "", false, nil
	}
	return m.RandomID, true, nil
}

func (f *fakeMetadataStore) ResolveRandomID(ctx context.Context, randomID string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.byRandom[randomID]
	return h, ok, nil
}

func (f *fakeMetadataStore) RegisterUsage(ctx context.Context, p assetcache.UsageParams) error {
	return nil
}

func (f *fakeMetadataStore) StoreAssetMetadata(ctx context.Context, m assetcache.AssetMetadata) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.byHash[m.ContentHash]; ok {
		return existing.RandomID, nil
	}
	f.byHash[m.ContentHash] = m
	f.byRandom[m.RandomID] = m.ContentHash
	return m.RandomID, nil
}

func (f *fakeMetadataStore) URLHistory(ctx context.Context, url string) ([]assetcache.URLVersion, error) {
	return nil, nil
}

func (f *fakeMetadataStore) GetAssetMetadata(ctx context.Context, randomID string) (string, uint64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hash, ok := f.byRandom[randomID]
	if !ok {
		return "", 0, false, nil
	}
	m := f.byHash[hash]
	return m.MimeType, m.Size, true, nil
}

func (f *fakeMetadataStore) Close() error { return nil }

// fakeFileStore is a minimal in-memory assetcache.FileStore.
type fakeFileStore struct {
	mu   sync.Mutex
	blob map[string][]byte
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{blob: make(map[string][]byte)}
}

func (f *fakeFileStore) Put(ctx context.Context, hash string, data []byte, mime string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blob[hash] = append([]byte(nil), data...)
	return nil
}

func (f *fakeFileStore) Exists(ctx context.Context, hash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.blob[hash]
	return ok, nil
}

func (f *fakeFileStore) Get(ctx context.Context, hash string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.blob[hash]
	if !ok {
		return nil, assetcache.ErrNotFound
	}
	return data, nil
}

func (f *fakeFileStore) ResolveURL(ctx context.Context, hash string) (string, error) {
	return "/assets/" + hash, nil
}

func (f *fakeFileStore) StorageType() string { return "fake" }

func (f *fakeFileStore) ConfigJSON() (string, error) { return "{}", nil }

// fakeSource hands back pre-recorded wire messages one at a time, then
// io.EOF, mimicking a transport that delivers one complete frame per
// read (the simplest legal chunking, not the only one the real
// FrameReader must tolerate).
type fakeSource struct {
	mu       sync.Mutex
	messages [][]byte
	pos      int
}

func newFakeSource(frames ...protocol.Frame) *fakeSource {
	s := &fakeSource{}
	for _, f := range frames {
		s.messages = append(s.messages, protocol.EncodeWireFrame(f))
	}
	return s
}

func (s *fakeSource) NextMessage(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.messages) {
		return nil, io.EOF
	}
	msg := s.messages[s.pos]
	s.pos++
	return msg, nil
}

// errSource fails its Nth NextMessage call (1-indexed) with err, after
// feeding the messages before it.
type errSource struct {
	fakeSource
	failAt int
	err    error
	calls  int
}

func newErrSource(failAt int, err error, frames ...protocol.Frame) *errSource {
	s := &errSource{failAt: failAt, err: err}
	for _, f := range frames {
		s.messages = append(s.messages, protocol.EncodeWireFrame(f))
	}
	return s
}

func (s *errSource) NextMessage(ctx context.Context) ([]byte, error) {
	s.calls++
	if s.calls == s.failAt {
		return nil, s.err
	}
	return s.fakeSource.NextMessage(ctx)
}

var errBoom = errors.New("ingest test: simulated transport failure")

// fakeSink records whatever manifest the pipeline sends.
type fakeSink struct {
	mu       sync.Mutex
	manifest protocol.Frame
}

func (s *fakeSink) SendManifest(ctx context.Context, manifest protocol.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifest = manifest
	return nil
}
