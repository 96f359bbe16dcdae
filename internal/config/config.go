// Package config loads domcorderd's runtime configuration from
// environment variables, with an optional JSON file providing
// defaults that the environment can still override.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix is the prefix used for all environment variables
	// (e.g. DOMCORDER_LISTEN_ADDR).
	EnvPrefix = "domcorder"

	// DefaultConfigFileName is the JSON config file looked for in the
	// current directory when --config is not given explicitly.
	DefaultConfigFileName = "domcorder.json"
)

// StorageConfig controls where recording session files and asset
// blobs live on disk, and how large a single recording may grow
// before it is quarantined for exceeding its size budget.
type StorageConfig struct {
	// RecordingsDir is the directory recordings are written to, as
	// flat <timestamp>_<hex>.dcrr files with no per-site subdirectory.
	RecordingsDir string `envconfig:"STORAGE_RECORDINGS_DIR"`

	// MetadataDBPath is the sqlite database file tracking asset and
	// site metadata.
	MetadataDBPath string `envconfig:"STORAGE_METADATA_DB"`

	// MaxRecordingBytes bounds a single recording's on-disk size.
	// 0 means unbounded.
	MaxRecordingBytes int64 `envconfig:"STORAGE_MAX_RECORDING_BYTES"`
}

// AssetStoreConfig selects and configures the blob backend behind the
// asset cache.
type AssetStoreConfig struct {
	// Backend is "local" or "s3".
	Backend string `envconfig:"ASSETS_BACKEND"`

	// LocalDir is the root directory for the local backend.
	LocalDir string `envconfig:"ASSETS_LOCAL_DIR"`

	// LocalBaseURL is the path prefix assets are served under when
	// using the local backend (e.g. "/assets").
	LocalBaseURL string `envconfig:"ASSETS_LOCAL_BASE_URL"`

	// S3Bucket, S3Prefix, S3Region configure the S3 backend.
	S3Bucket string `envconfig:"ASSETS_S3_BUCKET"`
	S3Prefix string `envconfig:"ASSETS_S3_PREFIX"`
	S3Region string `envconfig:"ASSETS_S3_REGION"`

	// S3CDNURL, if set, is used to build public asset URLs instead of
	// presigned S3 URLs (e.g. a CloudFront distribution).
	S3CDNURL string `envconfig:"ASSETS_S3_CDN_URL"`
}

// ServerConfig controls the HTTP/WebSocket listener.
type ServerConfig struct {
	ListenAddr string `envconfig:"LISTEN_ADDR"`

	// MetricsAddr serves /metrics on a separate listener, matching the
	// pack-wide convention of not exposing metrics on the public port.
	MetricsAddr string `envconfig:"METRICS_LISTEN_ADDR"`

	// FetchUserAgent is forwarded on server-side fallback asset
	// fetches when the client didn't supply bytes itself.
	FetchUserAgent string `envconfig:"FETCH_USER_AGENT"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `envconfig:"LOG_LEVEL"`

	// LogFormat is "text" or "json".
	LogFormat string `envconfig:"LOG_FORMAT"`
}

// Root is the complete domcorderd configuration.
type Root struct {
	Server  ServerConfig     `json:"server,omitempty"`
	Storage StorageConfig    `json:"storage,omitempty"`
	Assets  AssetStoreConfig `json:"assets,omitempty"`
}

// defaultRoot holds the built-in defaults, applied before the JSON
// file so a JSON-set value isn't visible as "absent" to envconfig and
// clobbered back to its default (envconfig.Process applies a field's
// default tag whenever its env var is unset, regardless of whether the
// field already holds a value from an earlier load stage).
func defaultRoot() Root {
	return Root{
		Server: ServerConfig{
			ListenAddr:     ":8080",
			MetricsAddr:    ":9090",
			FetchUserAgent: "domcorderd/1.0",
			LogLevel:       "info",
			LogFormat:      "text",
		},
		Storage: StorageConfig{
			RecordingsDir:     "./data/recordings",
			MetadataDBPath:    "./data/metadata.db",
			MaxRecordingBytes: 1073741824,
		},
		Assets: AssetStoreConfig{
			Backend:      "local",
			LocalDir:     "./data/assets",
			LocalBaseURL: "/assets",
			S3Region:     "us-east-1",
		},
	}
}

// Load builds a Root by applying, in increasing precedence: built-in
// defaults, the JSON file at jsonPath (if non-empty and present), and
// environment variables prefixed with DOMCORDER_.
func Load(jsonPath string) (*Root, error) {
	root := defaultRoot()
	cfg := &root

	if jsonPath != "" {
		if err := loadJSONFile(jsonPath, cfg); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat(DefaultConfigFileName); err == nil {
		if err := loadJSONFile(DefaultConfigFileName, cfg); err != nil {
			return nil, err
		}
	}

	// Each section is processed on its own: processing Root as a whole
	// would make envconfig prefix every key with the section field name
	// (DOMCORDER_SERVER_LISTEN_ADDR instead of DOMCORDER_LISTEN_ADDR).
	for _, section := range []any{&cfg.Server, &cfg.Storage, &cfg.Assets} {
		if err := envconfig.Process(EnvPrefix, section); err != nil {
			return nil, fmt.Errorf("config: process environment: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadJSONFile(path string, cfg *Root) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// Validate checks invariants envconfig's struct tags can't express.
func (c *Root) Validate() error {
	switch c.Assets.Backend {
	case "local", "s3":
	default:
		return fmt.Errorf("config: assets backend must be \"local\" or \"s3\", got %q", c.Assets.Backend)
	}
	if c.Assets.Backend == "s3" && c.Assets.S3Bucket == "" {
		return fmt.Errorf("config: assets backend is \"s3\" but no bucket configured")
	}
	if c.Storage.MaxRecordingBytes < 0 {
		return fmt.Errorf("config: storage max recording bytes must be >= 0")
	}
	return nil
}
