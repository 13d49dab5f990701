package cli

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/troyapi/troy/internal/config"
	"github.com/troyapi/troy/internal/store"
)

// envKeyReplacer maps config keys like auth.jwt_secret to TROY_AUTH_JWT_SECRET.
var envKeyReplacer = strings.NewReplacer(".", "_")

// loadConfig reads the YAML configuration, preferring --config, then
// ./troy.yaml, then built-in defaults when no file exists.
func loadConfig() (*config.YAMLConfig, error) {
	if cfgFile != "" {
		return config.LoadYAMLConfig(cfgFile)
	}
	if _, err := os.Stat("troy.yaml"); err == nil {
		return config.LoadYAMLConfig("troy.yaml")
	}
	return config.DefaultYAMLConfig(), nil
}

// resolveDataDir returns the account store directory from the --data-dir
// flag, the TROY_DATA_DIR env var, the config file, or ~/.troy as fallback.
func resolveDataDir(cfg *config.YAMLConfig) string {
	if dataDir != "" {
		return dataDir
	}
	if envDir := os.Getenv("TROY_DATA_DIR"); envDir != "" {
		return envDir
	}
	if cfg != nil && cfg.Store.DataDir != "" {
		return cfg.Store.DataDir
	}
	home, _ := os.UserHomeDir()
	return home + "/.troy"
}

// openStore opens the SQLite account store for CLI commands.
func openStore(cfg *config.YAMLConfig) (*store.Store, error) {
	st, err := store.New(resolveDataDir(cfg))
	if err != nil {
		return nil, fmt.Errorf("open account store: %w", err)
	}
	return st, nil
}

// newLogger builds a slog logger from the logging config section.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// resolveJWTSecret returns the signing secret for session tokens. The env
// var wins over the config file. With neither set, an ephemeral secret is
// generated; sessions then die with the process.
func resolveJWTSecret(cfg *config.YAMLConfig, logger *slog.Logger) (string, error) {
	if s := viper.GetString("auth.jwt_secret"); s != "" {
		return s, nil
	}
	if cfg.Auth.JWTSecret != "" {
		return cfg.Auth.JWTSecret, nil
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate session secret: %w", err)
	}
	logger.Warn("no jwt_secret configured; generated an ephemeral secret, sessions will not survive restarts")
	return hex.EncodeToString(raw), nil
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
