// internal/config/config.go
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// RepoFile is the repository config, relative to the metadata directory.
	RepoFile = "config.toml"

	globalDir  = "gitter"
	globalFile = "config.yml"
)

type Config struct {
	Core struct {
		LogLevel    string `toml:"log_level" yaml:"log_level"` // debug, info, warn, error
		Development bool   `toml:"development" yaml:"development"`
	} `toml:"core" yaml:"core"`

	Objects struct {
		CacheSize        int    `toml:"cache_size" yaml:"cache_size"`
		Compression      string `toml:"compression" yaml:"compression"` // none, zstd
		CompressionLevel int    `toml:"compression_level" yaml:"compression_level"`
		CompressMinSize  int    `toml:"compression_min_size" yaml:"compression_min_size"`
	} `toml:"objects" yaml:"objects"`

	Diff struct {
		Renderer     string `toml:"renderer" yaml:"renderer"` // builtin, external
		Command      string `toml:"command" yaml:"command"`
		ContextLines int    `toml:"context_lines" yaml:"context_lines"`
	} `toml:"diff" yaml:"diff"`

	Reflog struct {
		Enabled bool `toml:"enabled" yaml:"enabled"`
	} `toml:"reflog" yaml:"reflog"`

	UI struct {
		Color string `toml:"color" yaml:"color"` // auto, always, never
	} `toml:"ui" yaml:"ui"`
}

// Default returns the built-in configuration.
func Default() *Config {
	var c Config
	c.Core.LogLevel = "warn"
	c.Objects.CacheSize = 1024
	c.Objects.Compression = "none"
	c.Objects.CompressionLevel = 2
	c.Objects.CompressMinSize = 1024
	c.Diff.Renderer = "builtin"
	c.Diff.Command = "diff"
	c.Diff.ContextLines = 3
	c.Reflog.Enabled = true
	c.UI.Color = "auto"
	return &c
}

// GlobalPath returns the per-user config file path, honouring
// XDG_CONFIG_HOME. Empty if no home directory can be found.
func GlobalPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, globalDir, globalFile)
}

// Load layers the defaults, the global YAML file, the repository TOML file
// in metaDir and finally the environment. Missing files are skipped.
func Load(metaDir string) (*Config, error) {
	cfg := Default()

	if path := GlobalPath(); path != "" {
		if err := mergeYAML(cfg, path); err != nil {
			return nil, err
		}
	}

	if metaDir != "" {
		if err := mergeTOML(cfg, filepath.Join(metaDir, RepoFile)); err != nil {
			return nil, err
		}
	}

	// .env is optional
	_ = godotenv.Load()
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func mergeYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading global config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing global config %s: %w", path, err)
	}
	return nil
}

func mergeTOML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading repository config: %w", err)
	}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return fmt.Errorf("parsing repository config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("GITTER_LOG_LEVEL"); v != "" {
		cfg.Core.LogLevel = v
	}
	if v := os.Getenv("GITTER_DIFF_RENDERER"); v != "" {
		cfg.Diff.Renderer = v
	}
	if v := os.Getenv("GITTER_COLOR"); v != "" {
		cfg.UI.Color = v
	}
}

// Validate rejects values that would otherwise fail deep inside a command.
func (c *Config) Validate() error {
	switch c.Objects.Compression {
	case "none", "zstd":
	default:
		return fmt.Errorf("objects.compression: unknown value %q", c.Objects.Compression)
	}
	switch c.Diff.Renderer {
	case "builtin", "external":
	default:
		return fmt.Errorf("diff.renderer: unknown value %q", c.Diff.Renderer)
	}
	switch strings.ToLower(c.UI.Color) {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("ui.color: unknown value %q", c.UI.Color)
	}
	if c.Objects.CacheSize <= 0 {
		return fmt.Errorf("objects.cache_size must be positive")
	}
	return nil
}

// WriteRepo writes cfg as the repository config file in metaDir.
func WriteRepo(metaDir string, cfg *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encoding repository config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(metaDir, RepoFile), buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing repository config: %w", err)
	}
	return nil
}
