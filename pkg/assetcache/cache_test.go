package assetcache

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

// fakeMetadataStore is a minimal in-memory MetadataStore for testing
// Cache.StoreOrGet's orchestration without a real database.
type fakeMetadataStore struct {
	mu       sync.Mutex
	byHash   map[string]AssetMetadata
	byRandom map[string]string
}

func newFakeMetadataStore() *fakeMetadataStore {
	return &fakeMetadataStore{
		byHash:   make(map[string]AssetMetadata),
		byRandom: make(map[string]string),
	}
}

func (f *fakeMetadataStore) RegisterRecording(ctx context.Context, recordingID, initialURL string) (SiteInfo, error) {
	return SiteInfo{}, nil
}

func (f *fakeMetadataStore) GetSiteManifest(ctx context.Context, siteOrigin string, limit int) ([]ManifestEntry, error) {
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

func (f *fakeMetadataStore) RegisterUsage(ctx context.Context, p UsageParams) error {
	return nil
}

func (f *fakeMetadataStore) StoreAssetMetadata(ctx context.Context, m AssetMetadata) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.byHash[m.ContentHash]; ok {
		return existing.RandomID, nil
	}
	f.byHash[m.ContentHash] = m
	f.byRandom[m.RandomID] = m.ContentHash
	return m.RandomID, nil
}

func (f *fakeMetadataStore) URLHistory(ctx context.Context, url string) ([]URLVersion, error) {
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

// fakeFileStore is a minimal in-memory FileStore.
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
		return nil, ErrNotFound
	}
	return data, nil
}

func (f *fakeFileStore) ResolveURL(ctx context.Context, hash string) (string, error) {
	return "/assets/" + hash, nil
}

func (f *fakeFileStore) StorageType() string { return "fake" }

func (f *fakeFileStore) ConfigJSON() (string, error) { return "{}", nil }

func (f *fakeFileStore) delete(hash string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.blob, hash)
}

func (f *fakeMetadataStore) delete(hash string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.byHash[hash]; ok {
		delete(f.byRandom, m.RandomID)
		delete(f.byHash, hash)
	}
}

func TestStoreOrGetNewAsset(t *testing.T) {
	ctx := context.Background()
	c := NewCache(newFakeMetadataStore(), newFakeFileStore(), nil)
	data := []byte("hello world")
	hash := ContentHash(data)

	id, err := c.StoreOrGet(ctx, hash, data, "text/plain")
	if err != nil {
		t.Fatalf("StoreOrGet: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty random id")
	}

	exists, err := c.Files.Exists(ctx, hash)
	if err != nil || !exists {
		t.Fatalf("expected blob to be stored, exists=%v err=%v", exists, err)
	}
}

func TestStoreOrGetIdempotent(t *testing.T) {
	ctx := context.Background()
	c := NewCache(newFakeMetadataStore(), newFakeFileStore(), nil)
	data := []byte("idempotent")
	hash := ContentHash(data)

	id1, err := c.StoreOrGet(ctx, hash, data, "text/plain")
	if err != nil {
		t.Fatalf("first StoreOrGet: %v", err)
	}
	id2, err := c.StoreOrGet(ctx, hash, data, "text/plain")
	if err != nil {
		t.Fatalf("second StoreOrGet: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("expected same random id on repeat store, got %q and %q", id1, id2)
	}
}

func TestStoreAssetMetadata_ConcurrentInsertsConverge(t *testing.T) {
	ctx := context.Background()
	meta := newFakeMetadataStore()
	hash := "race-hash"

	const n = 20
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := meta.StoreAssetMetadata(ctx, AssetMetadata{
				ContentHash: hash,
				RandomID:    fmt.Sprintf("candidate-%d", i),
				Size:        1,
				MimeType:    "text/plain",
			})
			if err != nil {
				t.Errorf("StoreAssetMetadata: %v", err)
				return
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()

	want := ids[0]
	for i, id := range ids {
		if id != want {
			t.Fatalf("expected every concurrent writer to converge on one random id, got %q at index %d, first was %q", id, i, want)
		}
	}
}

func TestStoreOrGetBlobExistsMetadataMissing(t *testing.T) {
	ctx := context.Background()
	files := newFakeFileStore()
	meta := newFakeMetadataStore()
	c := NewCache(meta, files, nil)
	data := []byte("orphan blob")
	hash := ContentHash(data)

	if err := files.Put(ctx, hash, data, "text/plain"); err != nil {
		t.Fatalf("seed blob: %v", err)
	}

	id, err := c.StoreOrGet(ctx, hash, data, "text/plain")
	if err != nil {
		t.Fatalf("StoreOrGet: %v", err)
	}
	if id == "" {
		t.Fatal("expected minted random id")
	}
	gotHash, ok, err := meta.ResolveRandomID(ctx, id)
	if err != nil || !ok || gotHash != hash {
		t.Fatalf("expected metadata to be backfilled, ok=%v hash=%q err=%v", ok, gotHash, err)
	}
}

func TestStoreOrGetMetadataExistsBlobMissing(t *testing.T) {
	ctx := context.Background()
	files := newFakeFileStore()
	meta := newFakeMetadataStore()
	c := NewCache(meta, files, nil)
	data := []byte("inconsistent")
	hash := ContentHash(data)

	// Seed both the blob and its metadata, then delete the blob, leaving
	// metadata that points at a missing blob.
	firstID, err := c.StoreOrGet(ctx, hash, data, "text/plain")
	if err != nil {
		t.Fatalf("seed StoreOrGet: %v", err)
	}
	files.delete(hash)

	id, err := c.StoreOrGet(ctx, hash, data, "text/plain")
	if err != nil {
		t.Fatalf("StoreOrGet after blob loss: %v", err)
	}
	if id != firstID {
		t.Fatalf("expected existing random id %q to be reused, got %q", firstID, id)
	}
	exists, err := files.Exists(ctx, hash)
	if err != nil || !exists {
		t.Fatalf("expected blob to be restored, exists=%v err=%v", exists, err)
	}
}
