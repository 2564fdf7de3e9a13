// Package config loads the wiredns tool configuration from a YAML file.
//
// The file is optional: every field has a working default, and the
// resolver section additionally accepts WIREDNS_* environment overrides
// after the file is read. The config path itself comes from the
// -config flag or the WIREDNS_CONFIG environment variable.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ldevaal/wiredns/internal/resolver"
)

// Config is the root configuration structure.
type Config struct {
	Resolver resolver.Config `yaml:"resolver"`
	Logging  LoggingConfig   `yaml:"logging"`
	API      APIConfig       `yaml:"api"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level            string            `yaml:"level"`
	Structured       bool              `yaml:"structured"`
	StructuredFormat string            `yaml:"structured_format"`
	IncludePID       bool              `yaml:"include_pid"`
	ExtraFields      map[string]string `yaml:"extra_fields,omitempty"`
}

// APIConfig contains lookup API settings.
//
// Note: APIKey is a secret and is never echoed back by API endpoints.
type APIConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Resolver: resolver.DefaultConfig(),
		Logging:  LoggingConfig{Level: "INFO", StructuredFormat: "json"},
		API:      APIConfig{Host: "127.0.0.1", Port: 8080},
	}
}

// ResolveConfigPath picks the config file path: the explicit flag value
// wins, then the WIREDNS_CONFIG environment variable, then none.
func ResolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return os.Getenv("WIREDNS_CONFIG")
}

// Load reads and validates the configuration. An empty path yields the
// defaults; environment overrides apply in both cases.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := cfg.Resolver.FromEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate validates and normalizes the configuration.
func (cfg *Config) Validate() error {
	if err := cfg.Resolver.Validate(); err != nil {
		return err
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)
	if cfg.Logging.StructuredFormat == "" {
		cfg.Logging.StructuredFormat = "json"
	}
	if cfg.Logging.ExtraFields == nil {
		cfg.Logging.ExtraFields = map[string]string{}
	}

	if cfg.API.Host == "" {
		cfg.API.Host = "127.0.0.1"
	}
	if cfg.API.Port <= 0 || cfg.API.Port > 65535 {
		return errors.New("api.port must be 1..65535")
	}
	return nil
}
