// Package config loads application configuration from file and environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Library     LibraryConfig     `mapstructure:"library"`
	Output      OutputConfig      `mapstructure:"output"`
	Compression CompressionConfig `mapstructure:"compression"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// LibraryConfig locates the persistent library database and workspaces
type LibraryConfig struct {
	Path      string `mapstructure:"path"`      // BoltDB file
	Workspace string `mapstructure:"workspace"` // root dir for raw workspaces
}

// OutputConfig controls where finished EPUBs land
type OutputConfig struct {
	Directory string `mapstructure:"directory"` // library root for EPUB files
	// Pattern names the EPUB inside Directory. Placeholders: {provider},
	// {author}, {title}, {id}. Values are sanitized for the filesystem.
	Pattern string `mapstructure:"pattern"`
	// CleanupWorkspace removes the raw workspace after a successful build
	CleanupWorkspace bool `mapstructure:"cleanup_workspace"`
}

// CompressionConfig controls the external image compressors
type CompressionConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Workers   int    `mapstructure:"workers"`   // bounded pool for image resolution
	Pngquant  string `mapstructure:"pngquant"`  // binary path, default looked up on PATH
	Jpegoptim string `mapstructure:"jpegoptim"` //
	Cwebp     string `mapstructure:"cwebp"`     //
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	dataDir := defaultDataPath()
	return &Config{
		Library: LibraryConfig{
			Path:      filepath.Join(dataDir, "library.db"),
			Workspace: filepath.Join(dataDir, "workspaces"),
		},
		Output: OutputConfig{
			Directory:        filepath.Join(dataDir, "books"),
			Pattern:          "{author}/{title}.epub",
			CleanupWorkspace: false,
		},
		Compression: CompressionConfig{
			Enabled: false,
			Workers: 4,
		},
		Logging: LoggingConfig{
			File:  filepath.Join(dataDir, "shiori.log"),
			Level: "INFO",
		},
	}
}

// defaultDataPath returns the default data directory for the current OS
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "shiori")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "shiori")
	}
}

// defaultConfigPath returns the default config file directory
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "shiori")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "shiori")
	}
}

// LoadConfig loads configuration from file and environment
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(defaultConfigPath())
	viper.AddConfigPath(".")

	// Environment variable overrides. AutomaticEnv only consults the
	// environment for keys viper already knows, so every key gets its
	// default registered.
	viper.SetEnvPrefix("SHIORI")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	registerDefaults(cfg)

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if cfg.Compression.Workers < 1 {
		cfg.Compression.Workers = 1
	}
	return cfg, nil
}

// registerDefaults seeds viper with every config key so file values and
// SHIORI_* environment overrides both land during Unmarshal.
func registerDefaults(cfg *Config) {
	viper.SetDefault("library.path", cfg.Library.Path)
	viper.SetDefault("library.workspace", cfg.Library.Workspace)
	viper.SetDefault("output.directory", cfg.Output.Directory)
	viper.SetDefault("output.pattern", cfg.Output.Pattern)
	viper.SetDefault("output.cleanup_workspace", cfg.Output.CleanupWorkspace)
	viper.SetDefault("compression.enabled", cfg.Compression.Enabled)
	viper.SetDefault("compression.workers", cfg.Compression.Workers)
	viper.SetDefault("compression.pngquant", cfg.Compression.Pngquant)
	viper.SetDefault("compression.jpegoptim", cfg.Compression.Jpegoptim)
	viper.SetDefault("compression.cwebp", cfg.Compression.Cwebp)
	viper.SetDefault("logging.file", cfg.Logging.File)
	viper.SetDefault("logging.level", cfg.Logging.Level)
}
