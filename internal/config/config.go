// Package config provides centralized configuration management using Viper.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	udiff "github.com/aymanbagabas/go-udiff"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration values for reposync.
type Config struct {
	Server         string          `mapstructure:"server" yaml:"server"`
	Namespace      string          `mapstructure:"namespace" yaml:"namespace"`
	Token          string          `mapstructure:"token" yaml:"token,omitempty"`
	PollInterval   string          `mapstructure:"poll_interval" yaml:"poll_interval"`
	RequestTimeout string          `mapstructure:"request_timeout" yaml:"request_timeout"`
	DataDir        string          `mapstructure:"data_dir" yaml:"data_dir"`
	LogLevel       string          `mapstructure:"log_level" yaml:"log_level"`
	LogFile        string          `mapstructure:"log_file" yaml:"log_file"`
	LogFormat      string          `mapstructure:"log_format" yaml:"log_format"`
	Headless       bool            `mapstructure:"headless" yaml:"headless"`
	Telemetry      TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
}

// TelemetryConfig selects the telemetry sinks.
type TelemetryConfig struct {
	NATS    bool `mapstructure:"nats" yaml:"nats"`
	Tracing bool `mapstructure:"tracing" yaml:"tracing"`
}

// envBindings maps config keys to their environment variables.
var envBindings = map[string]string{
	"server":            "REPOSYNC_SERVER",
	"namespace":         "REPOSYNC_NAMESPACE",
	"token":             "REPOSYNC_TOKEN",
	"poll_interval":     "REPOSYNC_POLL_INTERVAL",
	"request_timeout":   "REPOSYNC_REQUEST_TIMEOUT",
	"data_dir":          "REPOSYNC_DATA_DIR",
	"log_level":         "REPOSYNC_LOG_LEVEL",
	"log_file":          "REPOSYNC_LOG_FILE",
	"log_format":        "REPOSYNC_LOG_FORMAT",
	"headless":          "REPOSYNC_HEADLESS",
	"telemetry.nats":    "REPOSYNC_TELEMETRY_NATS",
	"telemetry.tracing": "REPOSYNC_TELEMETRY_TRACING",
}

// Load loads configuration with full precedence:
// CLI flags > ENV vars (.env included) > project config > XDG global config > defaults
func Load() (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigName("reposync")

	v.SetDefault("server", "http://localhost:3000")
	v.SetDefault("namespace", "default")
	v.SetDefault("token", "")
	v.SetDefault("poll_interval", "2s")
	v.SetDefault("request_timeout", "30s")
	v.SetDefault("data_dir", ".reposync")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("log_format", "text")
	v.SetDefault("headless", false)
	v.SetDefault("telemetry.nats", true)
	v.SetDefault("telemetry.tracing", false)

	v.SetEnvPrefix("REPOSYNC")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Explicit ENV bindings for better bool parsing of nested keys
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding %s env: %w", key, err)
		}
	}

	globalPath := GlobalPath()
	if fileExists(globalPath) {
		v.SetConfigFile(globalPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading global config: %w", err)
		}
	}

	projectPath := ProjectPath()
	if fileExists(projectPath) {
		// Need to set config file explicitly for merge
		v.SetConfigFile(projectPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// LoadDotEnv loads KEY=value pairs from path into the process environment.
// A missing file is not an error. Variables already set are left alone.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Validate checks that the configuration can drive a wizard run.
func (c *Config) Validate() error {
	if c.Server == "" {
		return fmt.Errorf("server is required")
	}
	u, err := url.Parse(c.Server)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("server must be an absolute URL, got %q", c.Server)
	}
	if c.Namespace == "" {
		return fmt.Errorf("namespace is required")
	}
	if _, err := c.PollEvery(); err != nil {
		return err
	}
	if _, err := c.Timeout(); err != nil {
		return err
	}
	return nil
}

// PollEvery returns the job status poll interval.
func (c *Config) PollEvery() (time.Duration, error) {
	return parsePositiveDuration("poll_interval", c.PollInterval, 2*time.Second)
}

// Timeout returns the per-request timeout for the resource API.
func (c *Config) Timeout() (time.Duration, error) {
	return parsePositiveDuration("request_timeout", c.RequestTimeout, 30*time.Second)
}

func parsePositiveDuration(key, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, value)
	}
	return d, nil
}

// Exists returns true if any config file exists (global or project).
func Exists() bool {
	return fileExists(GlobalPath()) || fileExists(ProjectPath())
}

// GlobalPath returns the XDG global config path.
// Returns ~/.config/reposync/reposync.yml or $XDG_CONFIG_HOME/reposync/reposync.yml.
func GlobalPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "reposync", "reposync.yml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "reposync", "reposync.yml")
}

// ProjectPath returns the project-local config path.
func ProjectPath() string {
	return "reposync.yml"
}

// WriteGlobal writes the config to the XDG global location.
func WriteGlobal(cfg *Config) error {
	path := GlobalPath()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	return write(path, cfg)
}

// WriteProject writes the config to the project-local location.
func WriteProject(cfg *Config) error {
	return write(ProjectPath(), cfg)
}

// Marshal renders cfg the way it is written to disk.
func Marshal(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return data, nil
}

// Diff returns a unified diff from the file at path to cfg. A missing file
// diffs against nothing; an empty result means no change.
func Diff(path string, cfg *Config) (string, error) {
	data, err := Marshal(cfg)
	if err != nil {
		return "", err
	}
	old, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("reading config file: %w", err)
	}
	return udiff.Unified(path, path+" (new)", string(old), string(data)), nil
}

func write(path string, cfg *Config) error {
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}

	// Config may carry an API token
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// fileExists checks if a file exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
