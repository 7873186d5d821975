package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/pixkit/internal/config"
)

func TestServeCommandFlags(t *testing.T) {
	for _, name := range []string{
		"host", "port", "cors-origin", "max-upload-size", "timeout", "shutdown-timeout",
		"rate-limit-enabled", "requests-per-minute", "requests-per-hour", "max-requests-per-day", "max-data-per-day",
	} {
		assert.NotNil(t, serveCmd.Flags().Lookup(name), name)
	}
}

func TestServeCommand_InvalidPort(t *testing.T) {
	_, err := executeCommand(t, "serve", "--port", "70000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port number")
}

func TestConfigToServerConfig(t *testing.T) {
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	f := serveCmd.Flags()
	require.NoError(t, f.Set("port", "9090"))
	require.NoError(t, f.Set("rate-limit-enabled", "true"))
	require.NoError(t, f.Set("max-data-per-day", "1024"))

	cfg := config.DefaultConfig()
	configToServerConfig(&cfg, serveCmd)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Server.RateLimitEnabled)
	assert.Equal(t, int64(1024), cfg.Server.MaxDataPerDay)
	assert.Equal(t, "localhost", cfg.Server.Host)
}
