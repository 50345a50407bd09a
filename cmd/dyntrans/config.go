package main

import (
	"fmt"
	"os"

	"github.com/ZaguanLabs/dyntrans"
	"gopkg.in/yaml.v3"
)

// Config is the YAML configuration for the dyntrans CLI.
type Config struct {
	Store struct {
		// Backend selects the store implementation: "memory", "redis", or
		// "sqlite".
		Backend string `yaml:"backend"`
		// DSN is the redis URL or sqlite path, depending on the backend.
		DSN       string `yaml:"dsn"`
		KeyPrefix string `yaml:"key_prefix"`
		TTL       int    `yaml:"ttl"`
	} `yaml:"store"`

	Provider struct {
		APIKey            string  `yaml:"api_key"`
		Model             string  `yaml:"model"`
		BaseURL           string  `yaml:"base_url"`
		Temperature       float32 `yaml:"temperature"`
		RequestsPerMinute int     `yaml:"requests_per_minute"`
		MaxRetries        int     `yaml:"max_retries"`
	} `yaml:"provider"`

	Locales struct {
		Default   string   `yaml:"default"`
		Supported []string `yaml:"supported"`
	} `yaml:"locales"`

	// Sources names the content sources to enumerate during discovery.
	Sources []string `yaml:"sources"`
}

// LoadConfig reads and validates a CLI configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 - CLI tool reads user-specified files
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "sqlite"
	}
	switch cfg.Store.Backend {
	case "memory":
	case "redis", "sqlite":
		if cfg.Store.DSN == "" {
			return nil, &dyntrans.ConfigError{Message: fmt.Sprintf("store backend %q requires a dsn", cfg.Store.Backend)}
		}
	default:
		return nil, &dyntrans.ConfigError{Message: fmt.Sprintf("unknown store backend %q", cfg.Store.Backend)}
	}

	if cfg.Locales.Default == "" {
		return nil, &dyntrans.ConfigError{Message: "locales.default is required"}
	}
	if len(cfg.Locales.Supported) == 0 {
		return nil, &dyntrans.ConfigError{Message: "locales.supported must list at least one target locale"}
	}

	return &cfg, nil
}
