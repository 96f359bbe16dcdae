package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  domcorderd
`

func main() {
	rootCmd := &cobra.Command{
		Use:   "domcorderd",
		Short: "Session-recording and asset-cache server",
		Long: `domcorderd ingests recorded browser sessions over WebSocket,
deduplicates referenced assets through a content-addressed cache, and
serves both back out:

  • WebSocket ingest with per-frame asset rewriting
  • Content-addressed asset cache (local disk or S3)
  • Quarantine-on-error recording storage
  • Live tailing of in-progress recordings`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var configPath string
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a domcorder.json config file (default: ./domcorder.json if present)")

	rootCmd.AddCommand(
		serveCmd(&configPath),
		inspectCmd(&configPath),
		gcCmd(&configPath),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

func printBanner() {
	fmt.Print(banner)
}

func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

func warn(format string, args ...any) {
	fmt.Printf("\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}

func errorMsg(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "\033[31m✗\033[0m %s\n", fmt.Sprintf(format, args...))
}
