package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byeongteuk/btmap/internal/model"
	"github.com/byeongteuk/btmap/internal/progress"
)

func TestFormatStats(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.Local)
	var buf bytes.Buffer
	formatStats(&buf, []progress.Stats{
		{Source: "jobplanet", Completed: 120, Failed: 3, LastUpdated: &at},
		{Source: "geocode"},
	})

	out := buf.String()
	assert.Contains(t, out, "SOURCE")
	assert.Contains(t, out, "jobplanet")
	assert.Contains(t, out, "120")
	assert.Contains(t, out, "2026-03-01 09:30")
	assert.Contains(t, out, "geocode")
	assert.Contains(t, out, "-")
}

func withProgressSource(t *testing.T, src string) {
	t.Helper()
	prev := progressSource
	progressSource = src
	t.Cleanup(func() { progressSource = prev })
}

func TestProgressResetFailed(t *testing.T) {
	c := useTestConfig(t)
	ctx := context.Background()

	store, err := openProgress(ctx, c)
	require.NoError(t, err)
	trackers, err := openTrackers(ctx, store, model.SourceWanted)
	require.NoError(t, err)
	require.NoError(t, trackers[model.SourceWanted].MarkCompleted(ctx, "a", nil))
	require.NoError(t, trackers[model.SourceWanted].MarkFailed(ctx, "b", "timeout"))

	withProgressSource(t, "wanted")
	progressResetFailedCmd.SetContext(ctx)
	require.NoError(t, progressResetFailedCmd.RunE(progressResetFailedCmd, nil))

	reopened, err := openTrackers(ctx, store, model.SourceWanted)
	require.NoError(t, err)
	stats := reopened[model.SourceWanted].Stats()
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 0, stats.Failed)
}

func TestProgressReset(t *testing.T) {
	c := useTestConfig(t)
	ctx := context.Background()

	store, err := openProgress(ctx, c)
	require.NoError(t, err)
	trackers, err := openTrackers(ctx, store, model.SourceGeocode)
	require.NoError(t, err)
	require.NoError(t, trackers[model.SourceGeocode].MarkCompleted(ctx, "a", nil))

	withProgressSource(t, "geocode")
	progressResetCmd.SetContext(ctx)
	require.NoError(t, progressResetCmd.RunE(progressResetCmd, nil))

	reopened, err := openTrackers(ctx, store, model.SourceGeocode)
	require.NoError(t, err)
	assert.Equal(t, 0, reopened[model.SourceGeocode].Stats().Completed)
}

func TestProgressReset_RequiresSource(t *testing.T) {
	useTestConfig(t)
	withProgressSource(t, "")
	progressResetCmd.SetContext(context.Background())

	err := progressResetCmd.RunE(progressResetCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--source")
}

func TestProgressStatus(t *testing.T) {
	useTestConfig(t)
	withProgressSource(t, "")

	var buf bytes.Buffer
	progressStatusCmd.SetOut(&buf)
	progressStatusCmd.SetContext(context.Background())
	defer progressStatusCmd.SetOut(nil)

	require.NoError(t, progressStatusCmd.RunE(progressStatusCmd, nil))
	for _, src := range crawlSources {
		assert.Contains(t, buf.String(), string(src))
	}
}
