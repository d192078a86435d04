package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/byeongteuk/btmap/internal/model"
	"github.com/byeongteuk/btmap/internal/progress"
)

var progressSource string

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Inspect and reset the per-source crawl progress",
}

var progressStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show completed and failed counts per source",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		sources := crawlSources
		if progressSource != "" {
			src, err := parseSource(progressSource)
			if err != nil {
				return err
			}
			sources = []model.Source{src}
		}

		store, err := openProgress(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		trackers, err := openTrackers(ctx, store, sources...)
		if err != nil {
			return err
		}
		stats := make([]progress.Stats, 0, len(sources))
		for _, src := range sources {
			stats = append(stats, trackers[src].Stats())
		}
		formatStats(cmd.OutOrStdout(), stats)
		return nil
	},
}

var progressResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget every entry of a source so it is crawled again",
	RunE: func(cmd *cobra.Command, args []string) error {
		return resetProgress(cmd, false)
	},
}

var progressResetFailedCmd = &cobra.Command{
	Use:   "reset-failed",
	Short: "Forget the failed entries of a source so they are retried",
	RunE: func(cmd *cobra.Command, args []string) error {
		return resetProgress(cmd, true)
	},
}

func init() {
	progressCmd.PersistentFlags().StringVar(&progressSource, "source", "", "source: jobplanet, wanted or geocode")
	progressCmd.AddCommand(progressStatusCmd, progressResetCmd, progressResetFailedCmd)
	rootCmd.AddCommand(progressCmd)
}

func resetProgress(cmd *cobra.Command, failedOnly bool) error {
	ctx := cmd.Context()
	if progressSource == "" {
		return eris.New("--source is required")
	}
	src, err := parseSource(progressSource)
	if err != nil {
		return err
	}

	store, err := openProgress(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	trackers, err := openTrackers(ctx, store, src)
	if err != nil {
		return err
	}
	t := trackers[src]
	before := t.Stats()
	if failedOnly {
		err = t.ResetFailed(ctx)
	} else {
		err = t.Reset(ctx)
	}
	if err != nil {
		return eris.Wrapf(err, "reset %s progress", src)
	}

	zap.L().Info("progress reset",
		zap.String("source", string(src)),
		zap.Bool("failed_only", failedOnly),
		zap.Int("completed_before", before.Completed),
		zap.Int("failed_before", before.Failed),
	)
	return nil
}

func parseSource(s string) (model.Source, error) {
	for _, src := range crawlSources {
		if string(src) == s {
			return src, nil
		}
	}
	return "", eris.Errorf("unknown source %q (want jobplanet, wanted or geocode)", s)
}

// formatStats writes a table of tracker stats to out.
func formatStats(out io.Writer, stats []progress.Stats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SOURCE\tCOMPLETED\tFAILED\tLAST UPDATED")
	for _, s := range stats {
		updated := "-"
		if s.LastUpdated != nil {
			updated = s.LastUpdated.Local().Format("2006-01-02 15:04")
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", s.Source, s.Completed, s.Failed, updated)
	}
	_ = w.Flush()
}
