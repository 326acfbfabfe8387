// Package cache stores presence results in a key-value backend.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/zkpresence/internal/adapters/repository"
	"github.com/okian/zkpresence/internal/domain/model"
	"github.com/okian/zkpresence/pkg/logger"
	"github.com/okian/zkpresence/pkg/metrics"
)

// DefaultPrefix namespaces cache keys.
const DefaultPrefix = "zkPresence"

// ErrNilBackend is returned when no key-value backend is supplied.
var ErrNilBackend = errors.New("cache: backend is nil")

// Option configures a ResultCache.
type Option func(*ResultCache)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(c *ResultCache) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *ResultCache) {
		if l != nil {
			c.logger = l
		}
	}
}

// ResultCache maps a normalized username to its presence result. Entries
// never expire.
type ResultCache struct {
	kv     repository.KV
	prefix string
	logger logger.Logger
}

// New wraps kv.
func New(kv repository.KV, opts ...Option) (*ResultCache, error) {
	if kv == nil {
		return nil, ErrNilBackend
	}
	c := &ResultCache{
		kv:     kv,
		prefix: DefaultPrefix,
		logger: logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Key returns the storage key for username.
func (c *ResultCache) Key(username string) string {
	return c.prefix + "-" + strings.ToLower(username)
}

// Get returns the cached result. Absent, unreadable and corrupt entries are
// all reported as a miss.
func (c *ResultCache) Get(ctx context.Context, username string) (model.PresenceResult, bool) {
	key := c.Key(username)
	raw, err := c.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			c.logger.Warn(ctx, "cache read failed", logger.String("key", key), logger.Error(err))
			metrics.RecordErrorByComponent("cache", "read")
		}
		metrics.RecordCacheMiss()
		return model.PresenceResult{}, false
	}

	var r model.PresenceResult
	if err := json.Unmarshal(raw, &r); err != nil {
		c.logger.Warn(ctx, "corrupt cache entry; recomputing", logger.String("key", key), logger.Error(err))
		metrics.RecordCacheCorrupt()
		metrics.RecordCacheMiss()
		return model.PresenceResult{}, false
	}

	metrics.RecordCacheHit()
	return r, true
}

// Put stores r. Failures are logged and counted, never returned. The size
// gauge is refreshed by the owner through Len, not on every write.
func (c *ResultCache) Put(ctx context.Context, username string, r model.PresenceResult) {
	key := c.Key(username)
	raw, err := json.Marshal(r)
	if err == nil {
		err = c.kv.Put(ctx, key, raw)
	}
	if err != nil {
		c.logger.Error(ctx, "cache write failed", logger.String("key", key), logger.Error(err))
		metrics.RecordCacheWriteError()
	}
}

// Contains reports whether a result is stored for username.
func (c *ResultCache) Contains(ctx context.Context, username string) (bool, error) {
	ok, err := c.kv.Contains(ctx, c.Key(username))
	if err != nil {
		return false, fmt.Errorf("cache contains: %w", err)
	}
	return ok, nil
}

// Len returns the number of stored results.
func (c *ResultCache) Len(ctx context.Context) (int, error) {
	n, err := c.kv.Len(ctx)
	if err != nil {
		return 0, fmt.Errorf("cache len: %w", err)
	}
	return n, nil
}
