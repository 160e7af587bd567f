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

	for _, name := range []string{"run", "stream", "serve", "projects", "stats", "runs", "migrate", "dlq"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "project-registry", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestItemCommands_Flags(t *testing.T) {
	for _, cmd := range []string{"run", "stream"} {
		c, _, err := rootCmd.Find([]string{cmd})
		require.NoError(t, err)
		for _, name := range []string{"input", "collect", "workers"} {
			assert.NotNil(t, c.Flags().Lookup(name), "%s should have --%s flag", cmd, name)
		}
	}
	assert.NotNil(t, runCmd.Flags().Lookup("json"))
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag)
	assert.Equal(t, "0", flag.DefValue)

	every := serveCmd.Flags().Lookup("collect-every")
	require.NotNil(t, every)
	assert.Equal(t, "0s", every.DefValue)
}

func TestProjectsCommand_Flags(t *testing.T) {
	for _, name := range []string{"region", "city", "category", "contractor", "search", "status", "limit", "json"} {
		assert.NotNil(t, projectsCmd.Flags().Lookup(name), "projects should have --%s flag", name)
	}
	assert.Equal(t, "50", projectsCmd.Flags().Lookup("limit").DefValue)

	names := make(map[string]bool)
	for _, c := range projectsCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["show"])
}

func TestDLQCommand_HasReplay(t *testing.T) {
	c, _, err := rootCmd.Find([]string{"dlq", "replay"})
	require.NoError(t, err)
	assert.Equal(t, "replay", c.Name())
	assert.Equal(t, "100", c.Flags().Lookup("limit").DefValue)
	assert.NotNil(t, c.Flags().Lookup("error-type"))
}

func TestProjectFilterFromFlags(t *testing.T) {
	require.NoError(t, projectsCmd.Flags().Set("region", "Riyadh"))
	require.NoError(t, projectsCmd.Flags().Set("status", "under_construction"))
	t.Cleanup(func() {
		_ = projectsCmd.Flags().Set("region", "")
		_ = projectsCmd.Flags().Set("status", "")
	})

	filter, err := projectFilterFromFlags(projectsCmd)
	require.NoError(t, err)
	assert.Equal(t, "Riyadh", filter.Region)
	assert.Equal(t, "Under Construction", string(filter.Status))
	assert.Equal(t, 50, filter.Limit)

	require.NoError(t, projectsCmd.Flags().Set("status", "demolished"))
	_, err = projectFilterFromFlags(projectsCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown status")
}
