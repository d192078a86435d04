package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"download", "parse", "jobplanet", "wanted", "geocode", "merge", "all", "progress", "export", "serve"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "btmap", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestCrawlCommands_LimitFlag(t *testing.T) {
	for _, c := range []*cobra.Command{jobplanetCmd, wantedCmd, geocodeCmd, allCmd} {
		flag := c.Flags().Lookup("limit")
		require.NotNil(t, flag, "%s should have --limit", c.Name())
		assert.Equal(t, "0", flag.DefValue)
	}
}

func TestJobplanetCommand_NoHeadlessFlag(t *testing.T) {
	flag := jobplanetCmd.Flags().Lookup("no-headless")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}

func TestDownloadCommand_ForceFlag(t *testing.T) {
	flag := downloadCmd.Flags().Lookup("force")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestExportCommand_Flags(t *testing.T) {
	flag := exportCmd.Flags().Lookup("format")
	require.NotNil(t, flag)
	assert.Equal(t, "geojson", flag.DefValue)
	assert.NotNil(t, exportCmd.Flags().Lookup("out"))
}

func TestProgressCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range progressCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"status", "reset", "reset-failed"} {
		assert.True(t, names[name], "progress should have subcommand %q", name)
	}
	assert.NotNil(t, progressCmd.PersistentFlags().Lookup("source"))
}
