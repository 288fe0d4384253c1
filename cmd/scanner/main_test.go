package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digimosa/hawk-scan/internal/sources"
)

func TestRootCmd_ValidArgsFollowRegistry(t *testing.T) {
	cmd := rootCmd()
	assert.Equal(t, append(sources.Kinds(), "all"), cmd.ValidArgs)
	assert.Contains(t, cmd.ValidArgs, "redis")
	assert.Contains(t, cmd.Use, "|gdrive_workspace|")
}

func TestRootCmd_FlagsDoNotLeakBetweenCommands(t *testing.T) {
	first, second := rootCmd(), rootCmd()
	require.NoError(t, first.PersistentFlags().Set("workers", "97"))
	require.NoError(t, first.PersistentFlags().Set("json", "out.json"))

	assert.Equal(t, "97", first.PersistentFlags().Lookup("workers").Value.String())
	assert.NotEqual(t, "97", second.PersistentFlags().Lookup("workers").Value.String())
	assert.Empty(t, second.PersistentFlags().Lookup("json").Value.String())
}
