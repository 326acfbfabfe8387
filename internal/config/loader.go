package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variables read by Load.
const (
	EnvPrefix     = "ZKP_"
	EnvConfigFile = "ZKP_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if ZKP_CONFIG is set
//  3. env (prefix ZKP_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// ZKP_SEASON0_URL -> season0_url. Keys are flat, so underscores are kept.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}
	// the file path itself is not a setting
	k.Delete("config")

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that have no usable fallback.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.Season0URL == "" || c.Season1URL == "" {
		return fmt.Errorf("%w: season0_url and season1_url must be set", ErrInvalidConfig)
	}
	switch c.CacheDriver {
	case CacheDriverSQLite:
		if c.CachePath == "" {
			return fmt.Errorf("%w: cache_path must be set for the sqlite driver", ErrInvalidConfig)
		}
	case CacheDriverMemory:
	default:
		return fmt.Errorf("%w: unknown cache_driver %q", ErrInvalidConfig, c.CacheDriver)
	}
	if c.FetchRetries < 0 {
		return fmt.Errorf("%w: fetch_retries must not be negative", ErrInvalidConfig)
	}
	return nil
}
