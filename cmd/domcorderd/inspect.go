package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func inspectCmd(configPath *string) *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List recorded sessions and their status",
		Long:  `inspect lists every recording file in the recordings directory, committed or still being written, with its size and modification time. The status column reflects only this process's own active set, which starts empty, so every listed recording is reported as committed. With --url, it instead prints the content-hash history observed for that URL.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			c, err := bootstrap(ctx, *configPath)
			if err != nil {
				return err
			}

			if url != "" {
				return inspectURLHistory(ctx, c, url)
			}

			infos, err := c.store.List()
			if err != nil {
				return fmt.Errorf("list recordings: %w", err)
			}
			if len(infos) == 0 {
				info("no recordings found in %s", c.cfg.Storage.RecordingsDir)
				return nil
			}

			for _, rec := range infos {
				status := "committed"
				if c.active.Contains(rec.Filename) {
					status = "active"
				}
				info("%-48s %10d bytes  %-9s  %s", rec.Filename, rec.Size, status, rec.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "print the content-hash history observed for this URL instead of listing recordings")

	return cmd
}

func inspectURLHistory(ctx context.Context, c *components, url string) error {
	versions, err := c.cache.Metadata.URLHistory(ctx, url)
	if err != nil {
		return fmt.Errorf("url history: %w", err)
	}
	if len(versions) == 0 {
		info("no history found for %s", url)
		return nil
	}
	for _, v := range versions {
		info("%-64s  first seen %s  last seen %s", v.ContentHash, v.FirstSeenAt.Format("2006-01-02 15:04:05"), v.LastSeenAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
