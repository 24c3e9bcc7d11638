package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// Config holds tool-wide settings.
type Config struct {
	// StagingDir is the root for candidate, cache and scratch directories.
	StagingDir string `yaml:"staging_dir"`
	// LocalCache is an optional persistent artifact cache. When empty every
	// provisioning run uses a private cache removed after the run.
	LocalCache string `yaml:"local_cache"`
	// LockTimeout bounds how long an operation waits for the installation lock.
	LockTimeout time.Duration `yaml:"lock_timeout"`
	// StaleStagingAge is the age after which unowned staging directories are swept.
	StaleStagingAge time.Duration `yaml:"stale_staging_age"`
	// HTTPTimeout is the per-request timeout for remote repositories and channels.
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	// LogLevel is the default log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
}

const (
	// DefaultConfigFilename is the default location of the settings file.
	DefaultConfigFilename = "~/.channelup/channelup.yaml"

	// DefaultLockTimeout is the default wait for the installation lock.
	DefaultLockTimeout = 30 * time.Second

	// DefaultStaleStagingAge is the default age of sweepable staging directories.
	DefaultStaleStagingAge = 24 * time.Hour

	// DefaultHTTPTimeout is the default timeout for remote requests.
	DefaultHTTPTimeout = 60 * time.Second

	// DefaultLogLevel is used when no level is configured.
	DefaultLogLevel = "info"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

// errConfigIsNotSet is returned when a nil configuration is provided.
var errConfigIsNotSet = errors.New("configuration is not set")

// Default returns settings with every default applied.
func Default() *Config {
	cfg := new(Config)

	// Validate only fails on unexpandable paths, which defaults never contain.
	_ = Validate(cfg)

	return cfg
}

// Load reads configuration from the provided path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expand settings path: %w", err)
	}

	contents, err := os.ReadFile(filepath.Clean(expanded))
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to the provided path, creating parent directories.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	expanded, err := homedir.Expand(path)
	if err != nil {
		return fmt.Errorf("expand settings path: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(expanded), 0o700); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	// Restrict permissions.
	if err = os.WriteFile(filepath.Clean(expanded), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate applies defaults and expands home-relative paths.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.StagingDir == "" {
		settings.StagingDir = os.TempDir()
	}

	if settings.LockTimeout <= 0 {
		settings.LockTimeout = DefaultLockTimeout
	}

	if settings.StaleStagingAge <= 0 {
		settings.StaleStagingAge = DefaultStaleStagingAge
	}

	if settings.HTTPTimeout <= 0 {
		settings.HTTPTimeout = DefaultHTTPTimeout
	}

	if settings.LogLevel == "" {
		settings.LogLevel = DefaultLogLevel
	}

	var err error

	if settings.StagingDir, err = homedir.Expand(settings.StagingDir); err != nil {
		return fmt.Errorf("invalid staging directory: %w", err)
	}

	if settings.LocalCache != "" {
		if settings.LocalCache, err = homedir.Expand(settings.LocalCache); err != nil {
			return fmt.Errorf("invalid local cache: %w", err)
		}
	}

	return nil
}
