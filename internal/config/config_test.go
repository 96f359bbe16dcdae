package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, e := range os.Environ() {
		if len(e) > len("DOMCORDER_") && e[:len("DOMCORDER_")] == "DOMCORDER_" {
			name := e[:indexOf(e, '=')]
			os.Unsetenv(name)
			t.Cleanup(func() { os.Unsetenv(name) })
		}
	}
}

func indexOf(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func TestLoad_DefaultsWithNoFileOrEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	wd, _ := os.Getwd()
	defer os.Chdir(wd)
	os.Chdir(dir)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Fatalf("ListenAddr = %q, want :8080", cfg.Server.ListenAddr)
	}
	if cfg.Assets.Backend != "local" {
		t.Fatalf("Assets.Backend = %q, want local", cfg.Assets.Backend)
	}
	if cfg.Storage.MaxRecordingBytes != 1073741824 {
		t.Fatalf("MaxRecordingBytes = %d, want 1073741824", cfg.Storage.MaxRecordingBytes)
	}
}

func TestLoad_JSONFileIsOverriddenByEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "domcorder.json")
	data, _ := json.Marshal(map[string]any{
		"server": map[string]string{"ListenAddr": ":9999"},
	})
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	os.Setenv("DOMCORDER_LISTEN_ADDR", ":7000")
	t.Cleanup(func() { os.Unsetenv("DOMCORDER_LISTEN_ADDR") })

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.ListenAddr != ":7000" {
		t.Fatalf("ListenAddr = %q, want env override :7000", cfg.Server.ListenAddr)
	}
}

func TestLoad_JSONValueSurvivesWhenEnvUnset(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "domcorder.json")
	data, _ := json.Marshal(map[string]any{
		"storage": map[string]string{"RecordingsDir": "/custom/recordings"},
	})
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Storage.RecordingsDir != "/custom/recordings" {
		t.Fatalf("RecordingsDir = %q, want JSON value /custom/recordings to survive with no env override", cfg.Storage.RecordingsDir)
	}
	// Fields the JSON file didn't set should still fall back to the
	// built-in default.
	if cfg.Server.ListenAddr != ":8080" {
		t.Fatalf("ListenAddr = %q, want default :8080", cfg.Server.ListenAddr)
	}
}

func TestValidate_RejectsUnknownBackend(t *testing.T) {
	cfg := &Root{Assets: AssetStoreConfig{Backend: "memory"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestValidate_RejectsS3WithoutBucket(t *testing.T) {
	cfg := &Root{Assets: AssetStoreConfig{Backend: "s3"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for s3 backend without bucket")
	}
}

func TestValidate_AcceptsS3WithBucket(t *testing.T) {
	cfg := &Root{Assets: AssetStoreConfig{Backend: "s3", S3Bucket: "my-bucket"}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
