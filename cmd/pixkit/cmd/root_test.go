package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/pixkit/internal/config"
	"github.com/MeKo-Tech/pixkit/internal/version"
)

func TestRootCommand(t *testing.T) {
	assert.NotNil(t, rootCmd)
	assert.Equal(t, "pixkit", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRootCommandHelp(t *testing.T) {
	output, err := executeCommand(t, "--help")
	require.NoError(t, err)

	assert.Contains(t, output, "watermarks folders of images")
	assert.Contains(t, output, "Available Commands:")
	assert.Contains(t, output, "Usage:")
}

func TestRootCommandVersion(t *testing.T) {
	output, err := executeCommand(t, "--version")
	require.NoError(t, err)

	assert.Contains(t, output, "pixkit version "+version.Version)
	assert.Contains(t, output, "Commit: "+version.GitCommit)
}

func TestRootCommandSubcommands(t *testing.T) {
	names := make([]string, 0, len(rootCmd.Commands()))
	for _, sub := range rootCmd.Commands() {
		names = append(names, sub.Name())
	}

	for _, expected := range []string{"watermark", "webp", "image", "serve", "config"} {
		assert.Contains(t, names, expected, "Expected subcommand '%s' not found", expected)
	}
}

func TestRootCommandInvalidFlag(t *testing.T) {
	output, err := executeCommand(t, "--invalid-flag")
	require.Error(t, err)
	assert.Contains(t, output, "unknown flag")
}

func TestRootCommandNoArgs(t *testing.T) {
	output, err := executeCommand(t)
	require.NoError(t, err)
	assert.Contains(t, output, "Usage:")
}

func TestLogLevel(t *testing.T) {
	tests := []struct {
		cfg  config.Config
		want string
	}{
		{cfg: config.Config{LogLevel: "debug"}, want: "DEBUG"},
		{cfg: config.Config{LogLevel: "warn"}, want: "WARN"},
		{cfg: config.Config{LogLevel: "error"}, want: "ERROR"},
		{cfg: config.Config{LogLevel: "info"}, want: "INFO"},
		{cfg: config.Config{LogLevel: "bogus"}, want: "INFO"},
		{cfg: config.Config{LogLevel: "WARN"}, want: "WARN"},
		{cfg: config.Config{LogLevel: "error", Verbose: true}, want: "DEBUG"},
	}

	for _, tt := range tests {
		t.Run(tt.cfg.LogLevel, func(t *testing.T) {
			assert.Equal(t, tt.want, logLevel(&tt.cfg).String())
		})
	}
}
