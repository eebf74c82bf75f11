package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"serve", "snapshot", "journal"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "dispatch-console", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestSnapshotCommand_Flags(t *testing.T) {
	format := snapshotCmd.Flags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "json", format.DefValue)

	assert.NotNil(t, snapshotCmd.Flags().Lookup("out"))
	assert.NotNil(t, snapshotCmd.Flags().Lookup("bbox"))
}

func TestJournalCommand_HasList(t *testing.T) {
	cmds := journalCmd.Commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, "list", cmds[0].Name())

	limit := journalListCmd.Flags().Lookup("limit")
	require.NotNil(t, limit)
	assert.Equal(t, "100", limit.DefValue)
	assert.NotNil(t, journalListCmd.Flags().Lookup("action"))
	assert.NotNil(t, journalListCmd.Flags().Lookup("team"))
}
