package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/dnorman/domcorder/pkg/assetcache"
)

func gcCmd(configPath *string) *cobra.Command {
	var minAge time.Duration

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Remove leftover temp files from the local asset store",
		Long: `gc scans the local asset store for ".tmp" files left behind by a
crashed or interrupted write and removes any older than --min-age.
It has no effect when the S3 backend is in use: S3 PutObject has no
partial-write artifacts to clean up.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			c, err := bootstrap(ctx, *configPath)
			if err != nil {
				return err
			}

			local, ok := c.cache.Files.(*assetcache.LocalFileStore)
			if !ok {
				warn("asset store backend %q has no temp files to collect", c.cfg.Assets.Backend)
				return nil
			}

			removed, err := local.GC(minAge)
			if err != nil {
				return err
			}
			success("removed %d stale temp file(s)", removed)
			return nil
		},
	}

	cmd.Flags().DurationVar(&minAge, "min-age", time.Hour, "minimum age of a temp file before it is removed")
	return cmd
}
