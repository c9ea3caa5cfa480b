package config

import (
	"encoding/hex"
	"fmt"
	"slices"
	"time"

	"github.com/mitchellh/go-homedir"
)

// Default locations, relative to the user's home directory.
const (
	DefaultDir      = "~/.manivault"
	DefaultFileName = "config.toml"
	DefaultEnvFile  = ".env"
	EnvPrefix       = "MANIVAULT_"
)

// Config is the complete application configuration.
type Config struct {
	Logging LoggingConfig `toml:"logging"`
	Data    DataConfig    `toml:"data"`
	Plugins PluginsConfig `toml:"plugins"`
	Server  ServerConfig  `toml:"server"`
	Project ProjectConfig `toml:"project"`
}

// LoggingConfig configures the root zap logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`

	// Format is console or json.
	Format      string `toml:"format"`
	Development bool   `toml:"development"`
}

// DataConfig configures the dataset registry and hierarchy.
type DataConfig struct {
	// RemovalPolicy is cascade or reparent.
	RemovalPolicy string `toml:"removal_policy"`
	GroupBuckets  int    `toml:"group_buckets"`

	// SessionKey is a hex encoded 32-byte key for group colors. Empty means
	// a random key per session.
	SessionKey string `toml:"session_key"`
}

// PluginsConfig configures plugin discovery.
type PluginsConfig struct {
	Paths []string `toml:"paths"`

	// ScriptTimeout bounds every scripted plugin call, as a Go duration.
	ScriptTimeout string `toml:"script_timeout"`
}

// ServerConfig configures the observer endpoints of the serve command.
type ServerConfig struct {
	Addr        string `toml:"addr"`
	FeedPath    string `toml:"feed_path"`
	MetricsPath string `toml:"metrics_path"`

	// FeedBuffer is the number of events buffered per feed client.
	FeedBuffer int `toml:"feed_buffer"`
}

// ProjectConfig configures project files.
type ProjectConfig struct {
	// Autoload is a project URL loaded at startup.
	Autoload string `toml:"autoload"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Data: DataConfig{
			RemovalPolicy: "cascade",
			GroupBuckets:  12,
		},
		Plugins: PluginsConfig{
			Paths:         []string{DefaultDir + "/plugins", ".manivault/plugins"},
			ScriptTimeout: "5s",
		},
		Server: ServerConfig{
			Addr:        "127.0.0.1:7373",
			FeedPath:    "/feed",
			MetricsPath: "/metrics",
			FeedBuffer:  256,
		},
	}
}

// DefaultPath returns the expanded path of the user configuration file.
func DefaultPath() (string, error) {
	dir, err := homedir.Expand(DefaultDir)
	if err != nil {
		return "", err
	}
	return dir + "/" + DefaultFileName, nil
}

// Validate checks every setting and returns the first invalid one as a
// *ValidationError.
func (c *Config) Validate() error {
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Logging.Level) {
		return &ValidationError{Path: "logging.level", Value: c.Logging.Level, Message: "want debug, info, warn or error"}
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return &ValidationError{Path: "logging.format", Value: c.Logging.Format, Message: "want console or json"}
	}
	if c.Data.RemovalPolicy != "cascade" && c.Data.RemovalPolicy != "reparent" {
		return &ValidationError{Path: "data.removal_policy", Value: c.Data.RemovalPolicy, Message: "want cascade or reparent"}
	}
	if c.Data.GroupBuckets <= 0 {
		return &ValidationError{Path: "data.group_buckets", Value: c.Data.GroupBuckets, Message: "must be positive"}
	}
	if _, err := c.Data.Key(); err != nil {
		return &ValidationError{Path: "data.session_key", Value: c.Data.SessionKey, Message: err.Error()}
	}
	if d, err := time.ParseDuration(c.Plugins.ScriptTimeout); err != nil || d <= 0 {
		return &ValidationError{Path: "plugins.script_timeout", Value: c.Plugins.ScriptTimeout, Message: "want a positive duration"}
	}
	if c.Server.FeedBuffer <= 0 {
		return &ValidationError{Path: "server.feed_buffer", Value: c.Server.FeedBuffer, Message: "must be positive"}
	}
	return nil
}

// Key decodes SessionKey. It returns nil for an empty key.
func (d DataConfig) Key() ([]byte, error) {
	if d.SessionKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(d.SessionKey)
	if err != nil {
		return nil, err
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("want 32 bytes, got %d", len(key))
	}
	return key, nil
}

// Timeout returns ScriptTimeout as a duration, or zero when it does not
// parse.
func (p PluginsConfig) Timeout() time.Duration {
	d, _ := time.ParseDuration(p.ScriptTimeout)
	return d
}

// ExpandedPaths returns Paths with ~ expanded.
func (p PluginsConfig) ExpandedPaths() ([]string, error) {
	out := make([]string, 0, len(p.Paths))
	for _, path := range p.Paths {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return nil, fmt.Errorf("plugin path %s: %w", path, err)
		}
		out = append(out, expanded)
	}
	return out, nil
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Plugins.Paths = slices.Clone(c.Plugins.Paths)
	return &out
}
