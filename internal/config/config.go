// Package config loads the server configuration.
//
// Sources, lowest precedence first:
//
//  1. compiled defaults (Default)
//  2. an optional YAML file
//  3. environment variables prefixed with CONDUIT_
//
// A .env file in the working directory is copied into the process environment
// before step 3. Variables already set in the environment win over .env.
//
// Environment keys map onto YAML keys by dropping the prefix, lowercasing, and
// turning the first underscore into a dot:
//
//	CONDUIT_SERVER_PORT=9000         → server.port
//	CONDUIT_AUTH_JWT_SECRET=...      → auth.jwt_secret
//	CONDUIT_SERVER_READ_TIMEOUT=10s  → server.read_timeout
//
// Durations use Go syntax ("15s", "72h").
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "CONDUIT_"

// minSecretLength matches auth.NewTokenService.
const minSecretLength = 16

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	Log      LogConfig      `koanf:"log"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// Path is a SQLite file, or ":memory:".
	Path string `koanf:"path"`
}

type AuthConfig struct {
	// JWTSecret signs tokens. Empty means "generate one at startup", which is
	// only fine for development: tokens do not survive a restart.
	JWTSecret string        `koanf:"jwt_secret"`
	TokenTTL  time.Duration `koanf:"token_ttl"`

	// GitHub login is enabled when GitHubClientID is set.
	GitHubClientID     string `koanf:"github_client_id"`
	GitHubClientSecret string `koanf:"github_client_secret"`
	GitHubCallbackURL  string `koanf:"github_callback_url"`
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // text, json
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "data/conduit.db",
		},
		Auth: AuthConfig{
			TokenTTL: 72 * time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (skipped
// when path is empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: loading .env: %w", err)
	}

	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("config: loading environment: %w", err)
	}

	// Unmarshal only overwrites keys that were provided, so the defaults
	// survive for everything else.
	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey turns CONDUIT_AUTH_JWT_SECRET into auth.jwt_secret.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.Replace(s, "_", ".", 1)
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range", c.Server.Port)
	}

	timeouts := []struct {
		key   string
		value time.Duration
	}{
		{"server.read_timeout", c.Server.ReadTimeout},
		{"server.write_timeout", c.Server.WriteTimeout},
		{"server.idle_timeout", c.Server.IdleTimeout},
		{"server.shutdown_timeout", c.Server.ShutdownTimeout},
		{"auth.token_ttl", c.Auth.TokenTTL},
	}
	for _, t := range timeouts {
		if t.value <= 0 {
			return fmt.Errorf("config: %s must be positive, got %s", t.key, t.value)
		}
	}

	if c.Database.Path == "" {
		return errors.New("config: database.path is required")
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < minSecretLength {
		return fmt.Errorf("config: auth.jwt_secret must be at least %d characters", minSecretLength)
	}
	if c.Auth.GitHubClientID != "" && c.Auth.GitHubClientSecret == "" {
		return errors.New("config: auth.github_client_secret is required when auth.github_client_id is set")
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: log.format %q is not text or json", c.Log.Format)
	}

	return nil
}

// GitHubEnabled reports whether the OAuth routes should be mounted.
func (c *Config) GitHubEnabled() bool {
	return c.Auth.GitHubClientID != ""
}

// CallbackURL is the configured GitHub callback, or the local default.
func (c *Config) CallbackURL() string {
	if c.Auth.GitHubCallbackURL != "" {
		return c.Auth.GitHubCallbackURL
	}
	return fmt.Sprintf("http://localhost:%d/auth/github/callback", c.Server.Port)
}

// NewLogger builds the process logger described by the log section.
func NewLogger(cfg LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	switch cfg.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("config: log.format %q is not text or json", cfg.Format)
	}
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("config: log.level %q is not debug, info, warn or error", s)
	}
}
