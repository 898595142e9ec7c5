package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "podnest", cmd.Use)
	assert.True(t, cmd.SilenceUsage)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"serve", "migrate", "rank"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err, "command %s should exist", name)
			require.NotNil(t, sub)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()
	flag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, "", flag.DefValue)
}

func TestServeCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	serve, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)

	flag := serve.Flags().Lookup("skip-migrate")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}

func TestBadConfigFailsBeforeConnecting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "podnest.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"not-a-port\"\n"), 0o600))
	t.Setenv("PORT", "")

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"migrate", "--config", path})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
}

func TestMigrateRejectsArgs(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"migrate", "extra"})
	assert.Error(t, cmd.Execute())
}
