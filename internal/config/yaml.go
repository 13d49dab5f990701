// Package config defines the troy.yaml configuration file and its defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// YAMLConfig represents the top-level troy configuration file.
type YAMLConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Auth    AuthConfig    `yaml:"auth"`
	Store   StoreConfig   `yaml:"store"`
	Prices  PricesConfig  `yaml:"prices"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string     `yaml:"host"`
	Port            int        `yaml:"port"`
	ShutdownTimeout string     `yaml:"shutdown_timeout"`
	RateLimit       int        `yaml:"rate_limit"` // price requests per minute per key
	CORS            CORSConfig `yaml:"cors"`
}

// CORSConfig controls cross-origin resource sharing settings.
type CORSConfig struct {
	Origins []string `yaml:"origins"`
}

// AuthConfig controls authentication settings.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	JWTExpiry string `yaml:"jwt_expiry"`
}

// StoreConfig controls the embedded account database.
type StoreConfig struct {
	DataDir string `yaml:"data_dir"`
}

// PricesConfig controls the quote source and cache behavior.
type PricesConfig struct {
	FreshnessWindow string            `yaml:"freshness_window"`
	SourceTimeout   string            `yaml:"source_timeout"`
	Commodities     map[string]string `yaml:"commodities"` // commodity -> upstream symbol
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadYAMLConfig reads and parses a YAML configuration file. Environment
// variables referenced as ${VAR_NAME} in the file are expanded before
// parsing. Omitted sections fall back to defaults.
func LoadYAMLConfig(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables: ${VAR_NAME}
	content := os.ExpandEnv(string(data))

	cfg := DefaultYAMLConfig()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if len(cfg.Prices.Commodities) == 0 {
		cfg.Prices.Commodities = DefaultCommodities()
	}
	return cfg, nil
}

// DefaultYAMLConfig returns a YAMLConfig pre-filled with sensible defaults.
func DefaultYAMLConfig() *YAMLConfig {
	return &YAMLConfig{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: "30s",
			RateLimit:       120,
			CORS: CORSConfig{
				Origins: []string{"*"},
			},
		},
		Auth: AuthConfig{
			JWTExpiry: "24h",
		},
		Store: StoreConfig{
			DataDir: "data",
		},
		Prices: PricesConfig{
			FreshnessWindow: "60s",
			SourceTimeout:   "5s",
			Commodities:     DefaultCommodities(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultCommodities is the stock symbol table: front-month COMEX/NYMEX
// futures, quoted in USD per troy ounce.
func DefaultCommodities() map[string]string {
	return map[string]string{
		"gold":      "GC=F",
		"silver":    "SI=F",
		"platinum":  "PL=F",
		"palladium": "PA=F",
	}
}

// WriteDefaultConfig writes the default configuration to a YAML file.
func WriteDefaultConfig(path string) error {
	cfg := DefaultYAMLConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Duration parses a duration field, returning fallback when the field is
// empty or malformed.
func Duration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
