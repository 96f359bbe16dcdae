package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dnorman/domcorder/internal/server"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ingest and asset-cache server",
		Long:  `serve starts the WebSocket ingest listener and the asset cache / recording playback HTTP endpoints.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			c, err := bootstrap(ctx, *configPath)
			if err != nil {
				return err
			}
			printBanner()
			info("storage: %s", c.cfg.Storage.RecordingsDir)
			info("assets:  %s backend", c.cfg.Assets.Backend)

			srv := server.New(server.Deps{
				Store:     c.store,
				Active:    c.active,
				Cache:     c.cache,
				Fetcher:   c.fetcher,
				MaxBytes:  c.cfg.Storage.MaxRecordingBytes,
				UserAgent: c.cfg.Server.FetchUserAgent,
				Log:       c.log,
			})

			success("listening on %s", c.cfg.Server.ListenAddr)
			return srv.Run(c.cfg.Server.ListenAddr)
		},
	}
}
