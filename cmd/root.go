package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/byeongteuk/btmap/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "btmap",
	Short: "Alternative military service company map pipeline",
	Long: "Downloads the designated-company registry, enriches each company with " +
		"Jobplanet reviews, Wanted hiring data and coordinates, and exports the merged dataset for the map.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
