package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dnorman/domcorder/internal/config"
	"github.com/dnorman/domcorder/pkg/assetcache"
	"github.com/dnorman/domcorder/pkg/recording"
)

// components bundles the pieces every subcommand needs: the asset
// cache (metadata + blob store), the recording session store, and a
// configured logger.
type components struct {
	cfg     *config.Root
	cache   *assetcache.Cache
	store   *recording.SessionStore
	active  *recording.ActiveRecordings
	fetcher *assetcache.Fetcher
	log     *slog.Logger
}

func newLogger(cfg *config.Root) *slog.Logger {
	var level slog.Level
	switch cfg.Server.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Server.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func bootstrap(ctx context.Context, configPath string) (*components, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg)

	metaStore, err := assetcache.NewSQLiteMetadataStore(cfg.Storage.MetadataDBPath)
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}

	fileStore, err := newFileStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open asset store: %w", err)
	}

	cache := assetcache.NewCache(metaStore, fileStore, log)
	fetcher := assetcache.NewFetcher(cache, log)

	sessionStore, err := recording.NewSessionStore(cfg.Storage.RecordingsDir)
	if err != nil {
		return nil, fmt.Errorf("open recordings store: %w", err)
	}

	return &components{
		cfg:     cfg,
		cache:   cache,
		store:   sessionStore,
		active:  recording.NewActiveRecordings(),
		fetcher: fetcher,
		log:     log,
	}, nil
}

func newFileStore(ctx context.Context, cfg *config.Root) (assetcache.FileStore, error) {
	switch cfg.Assets.Backend {
	case "s3":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Assets.S3Region))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg)
		return assetcache.NewS3FileStore(client, cfg.Assets.S3Bucket, cfg.Assets.S3Prefix, cfg.Assets.S3CDNURL), nil
	default:
		return assetcache.NewLocalFileStore(cfg.Assets.LocalDir, cfg.Assets.LocalBaseURL)
	}
}
