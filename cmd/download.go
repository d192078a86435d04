package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/byeongteuk/btmap/internal/fetcher"
	"github.com/byeongteuk/btmap/internal/registry"
)

var downloadForce bool

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download the designated-company registry spreadsheet",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		_, err := downloadRegistry(ctx, downloadForce)
		return err
	},
}

func init() {
	downloadCmd.Flags().BoolVar(&downloadForce, "force", false, "download even if the spreadsheet exists")
	rootCmd.AddCommand(downloadCmd)
}

func downloadRegistry(ctx context.Context, force bool) (bool, error) {
	return registry.Download(ctx, registryFetcher(), cfg.Registry.DownloadURL, cfg.ExcelPath(), force)
}

func registryFetcher() *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Timeout: time.Duration(cfg.Registry.TimeoutSecs) * time.Second,
	})
}
