package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	assert.NotEmpty(t, cfg.Library.Path)
	assert.NotEmpty(t, cfg.Library.Workspace)
	assert.NotEmpty(t, cfg.Output.Directory)
	assert.Equal(t, "{author}/{title}.epub", cfg.Output.Pattern)
	assert.False(t, cfg.Output.CleanupWorkspace)
	assert.False(t, cfg.Compression.Enabled)
	assert.Equal(t, 4, cfg.Compression.Workers)
	assert.Equal(t, "INFO", cfg.Logging.Level)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("SHIORI_COMPRESSION_WORKERS", "7")
	t.Setenv("SHIORI_LOGGING_LEVEL", "DEBUG")
	t.Setenv("SHIORI_OUTPUT_PATTERN", "{provider}/{id}.epub")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Compression.Workers)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "{provider}/{id}.epub", cfg.Output.Pattern)
}

func TestLoadConfig_WorkerFloor(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("SHIORI_COMPRESSION_WORKERS", "0")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Compression.Workers)
}
