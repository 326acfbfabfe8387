// Package config defines service configuration and its loading.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Durations are configured in milliseconds and exposed as time.Duration
//   through accessor methods.
// - Errors returned by Load wrap this package's sentinels.
package config

import (
	"context"
	"time"
)

// Cache drivers.
const (
	CacheDriverSQLite = "sqlite"
	CacheDriverMemory = "memory"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Season0URL and Season1URL locate the two leaderboard documents. Both
	// accept http(s) URLs, file:// URLs and plain paths.
	Season0URL string `koanf:"season0_url"`
	Season1URL string `koanf:"season1_url"`

	// FetchTimeoutMS bounds each HTTP attempt; FetchRetries bounds retries.
	FetchTimeoutMS int `koanf:"fetch_timeout_ms"`
	FetchRetries   int `koanf:"fetch_retries"`

	// CacheDriver selects the result cache backend: sqlite or memory.
	CacheDriver string `koanf:"cache_driver"`

	// CachePath is the SQLite file used by the sqlite driver.
	CachePath string `koanf:"cache_path"`

	// CachePrefix namespaces cache keys.
	CachePrefix string `koanf:"cache_prefix"`

	// AvatarBaseURL prefixes the generated fallback profile image.
	AvatarBaseURL string `koanf:"avatar_base_url"`

	// AwaitDatasets makes scoring wait for dataset loading, up to
	// AwaitTimeoutMS. Off by default: early requests score against whatever
	// has loaded.
	AwaitDatasets  bool `koanf:"await_datasets"`
	AwaitTimeoutMS int  `koanf:"await_timeout_ms"`

	// MetricsEnabled turns Prometheus collection on or off; MetricsPrefix is
	// inserted between the namespace and each metric name.
	MetricsEnabled bool   `koanf:"metrics_enabled"`
	MetricsPrefix  string `koanf:"metrics_prefix"`

	// AnimationDurationMS and AnimationFrames shape the CLI loading animation.
	AnimationDurationMS int `koanf:"animation_duration_ms"`
	AnimationFrames     int `koanf:"animation_frames"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		Season0URL:          "https://union-zkpresence.vercel.app/top_2000_from_network.json",
		Season1URL:          "https://union-zkpresence.vercel.app/season1.json",
		FetchTimeoutMS:      15_000,
		FetchRetries:        3,
		CacheDriver:         CacheDriverSQLite,
		CachePath:           "./zkpresence.db",
		CachePrefix:         "zkPresence",
		AvatarBaseURL:       "https://unavatar.io/twitter/",
		AwaitDatasets:       false,
		AwaitTimeoutMS:      5_000,
		MetricsEnabled:      true,
		MetricsPrefix:       "",
		AnimationDurationMS: 3_000,
		AnimationFrames:     60,
	}
}

// FetchTimeout returns FetchTimeoutMS as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMS) * time.Millisecond
}

// AwaitTimeout returns AwaitTimeoutMS as a duration.
func (c *Config) AwaitTimeout() time.Duration {
	return time.Duration(c.AwaitTimeoutMS) * time.Millisecond
}

// AnimationDuration returns AnimationDurationMS as a duration.
func (c *Config) AnimationDuration() time.Duration {
	return time.Duration(c.AnimationDurationMS) * time.Millisecond
}
