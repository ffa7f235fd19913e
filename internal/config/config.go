// Package config loads application configuration from file, environment,
// and defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Output     string           `mapstructure:"output"`
	Sources    SourcesConfig    `mapstructure:"sources"`
	Download   DownloadConfig   `mapstructure:"download"`
	Convert    ConvertConfig    `mapstructure:"convert"`
	Transcribe TranscribeConfig `mapstructure:"transcribe"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Server     ServerConfig     `mapstructure:"server"`
}

// SourcesConfig holds search source configuration.
type SourcesConfig struct {
	// Priority is the tie-break order used by the selector; earlier
	// entries win ties.
	Priority []string `mapstructure:"priority"`

	// Base URLs are overridable so tests can point adapters at local
	// servers.
	ArchiveURL  string `mapstructure:"archive_url"`
	GutendexURL string `mapstructure:"gutendex_url"`

	SearchTimeout time.Duration `mapstructure:"search_timeout"`
	ArchiveRows   int           `mapstructure:"archive_rows"`
}

// DownloadConfig holds download manager configuration.
type DownloadConfig struct {
	Retries           int           `mapstructure:"retries"`
	BackoffInitial    time.Duration `mapstructure:"backoff_initial"`
	BackoffMax        time.Duration `mapstructure:"backoff_max"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier"`
	Timeout           time.Duration `mapstructure:"timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
}

// ConvertConfig holds EPUB to PDF conversion configuration.
type ConvertConfig struct {
	// Explicit binary paths; empty means search PATH and common
	// install locations.
	CalibrePath string `mapstructure:"calibre_path"`
	PandocPath  string `mapstructure:"pandoc_path"`

	// Timeout bounds each converter attempt.
	Timeout time.Duration `mapstructure:"timeout"`
}

// TranscribeConfig holds audio transcription configuration.
type TranscribeConfig struct {
	WhisperPath string        `mapstructure:"whisper_path"`
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ServerConfig holds web UI server configuration.
type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

// UserAgent identifies this tool to the sources it queries.
const UserAgent = "book-downloader/2.0 (zenithu-s)"

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults.
// A missing config file is not an error; a malformed one is.
func Load(configPath string) (*Config, error) {
	// A .env file in the working directory is loaded first so its
	// values are visible to viper's env lookup. Absence is fine.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "bookdl"))
		}
	}

	v.SetEnvPrefix("BOOKDL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// A missing file from the search path is fine (defaults apply);
	// an explicit --config path that cannot be read is an error.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values in viper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("output", "books")

	v.SetDefault("sources.priority", []string{"archive", "gutenberg", "standard"})
	v.SetDefault("sources.archive_url", "https://archive.org")
	v.SetDefault("sources.gutendex_url", "https://gutendex.com")
	v.SetDefault("sources.search_timeout", "30s")
	v.SetDefault("sources.archive_rows", 5)

	v.SetDefault("download.retries", 2)
	v.SetDefault("download.backoff_initial", "500ms")
	v.SetDefault("download.backoff_max", "5s")
	v.SetDefault("download.backoff_multiplier", 2.0)
	v.SetDefault("download.timeout", "120s")
	v.SetDefault("download.user_agent", UserAgent)

	v.SetDefault("convert.calibre_path", "")
	v.SetDefault("convert.pandoc_path", "")
	v.SetDefault("convert.timeout", "300s")

	v.SetDefault("transcribe.whisper_path", "")
	v.SetDefault("transcribe.model", "small")
	v.SetDefault("transcribe.timeout", "30m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.path", "")

	v.SetDefault("server.listen", "127.0.0.1:5000")
}
