// Package service wires the dataset store, result cache and scorer into the
// service used by the HTTP API and the CLI.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/okian/zkpresence/internal/adapters/repository"
	"github.com/okian/zkpresence/internal/adapters/source"
	"github.com/okian/zkpresence/internal/config"
	"github.com/okian/zkpresence/internal/domain/cache"
	"github.com/okian/zkpresence/internal/domain/dataset"
	"github.com/okian/zkpresence/internal/domain/model"
	"github.com/okian/zkpresence/internal/domain/scoring"
	"github.com/okian/zkpresence/pkg/logger"
	"github.com/okian/zkpresence/pkg/metrics"
)

// Service implements the API dependencies for presence scoring.
type Service struct {
	mu sync.RWMutex

	// Core components
	store  *dataset.Store
	loader *dataset.Loader
	kv     repository.KV
	ownsKV bool
	cache  *cache.ResultCache
	scorer *scoring.PresenceScorer

	// Configuration
	seasonURLs    map[model.Season]string
	fetchTimeout  time.Duration
	fetchRetries  int
	cacheDriver   string
	cachePath     string
	cachePrefix   string
	avatarBaseURL string
	awaitDatasets bool
	awaitTimeout  time.Duration

	// Injected collaborators, mostly for tests
	source   dataset.Source
	customKV repository.KV
	rng      scoring.RandomSource

	// State
	started    bool
	stopCh     chan struct{}
	cancelLoad context.CancelFunc
	bg         sync.WaitGroup

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithSeasonURLs sets where the two season documents are read from.
func WithSeasonURLs(season0, season1 string) Option {
	return func(s *Service) {
		if season0 != "" {
			s.seasonURLs[model.S0] = season0
		}
		if season1 != "" {
			s.seasonURLs[model.S1] = season1
		}
	}
}

// WithFetchPolicy sets the per-attempt timeout and retry count for HTTP
// dataset fetches.
func WithFetchPolicy(timeout time.Duration, retries int) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.fetchTimeout = timeout
		}
		if retries >= 0 {
			s.fetchRetries = retries
		}
	}
}

// WithCacheDriver selects the cache backend and, for sqlite, its file.
func WithCacheDriver(driver, path string) Option {
	return func(s *Service) {
		if driver != "" {
			s.cacheDriver = driver
		}
		if path != "" {
			s.cachePath = path
		}
	}
}

// WithCachePrefix sets the cache key prefix.
func WithCachePrefix(prefix string) Option {
	return func(s *Service) {
		if prefix != "" {
			s.cachePrefix = prefix
		}
	}
}

// WithAvatarBaseURL sets the fallback avatar prefix.
func WithAvatarBaseURL(base string) Option {
	return func(s *Service) {
		if base != "" {
			s.avatarBaseURL = base
		}
	}
}

// WithAwaitDatasets makes scoring wait up to timeout for dataset loading.
func WithAwaitDatasets(await bool, timeout time.Duration) Option {
	return func(s *Service) {
		s.awaitDatasets = await
		if timeout > 0 {
			s.awaitTimeout = timeout
		}
	}
}

// WithSource replaces the HTTP/file dataset source.
func WithSource(src dataset.Source) Option {
	return func(s *Service) {
		if src != nil {
			s.source = src
		}
	}
}

// WithKV replaces the configured cache backend. The caller keeps ownership:
// Stop leaves it open, so the service can be restarted on it.
func WithKV(kv repository.KV) Option {
	return func(s *Service) {
		if kv != nil {
			s.customKV = kv
		}
	}
}

// WithRandomSource sets the scorer's fallback random source.
func WithRandomSource(r scoring.RandomSource) Option {
	return func(s *Service) {
		if r != nil {
			s.rng = r
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// FromConfig translates a loaded Config into options.
func FromConfig(cfg *config.Config) []Option {
	return []Option{
		WithSeasonURLs(cfg.Season0URL, cfg.Season1URL),
		WithFetchPolicy(cfg.FetchTimeout(), cfg.FetchRetries),
		WithCacheDriver(cfg.CacheDriver, cfg.CachePath),
		WithCachePrefix(cfg.CachePrefix),
		WithAvatarBaseURL(cfg.AvatarBaseURL),
		WithAwaitDatasets(cfg.AwaitDatasets, cfg.AwaitTimeout()),
	}
}

// New constructs a new Service with default configuration. The cache is
// in-memory unless WithCacheDriver or FromConfig selects otherwise.
func New(opts ...Option) *Service {
	defaults := config.New(context.Background())
	s := &Service{
		seasonURLs: map[model.Season]string{
			model.S0: defaults.Season0URL,
			model.S1: defaults.Season1URL,
		},
		fetchTimeout:  defaults.FetchTimeout(),
		fetchRetries:  defaults.FetchRetries,
		cacheDriver:   config.CacheDriverMemory,
		cachePath:     defaults.CachePath,
		cachePrefix:   defaults.CachePrefix,
		avatarBaseURL: defaults.AvatarBaseURL,
		awaitTimeout:  defaults.AwaitTimeout(),
		stopCh:        make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start builds the components and launches the one-shot dataset load in the
// background. Scoring is available as soon as Start returns.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting zkpresence service...")

	kv, err := s.openKV()
	if err != nil {
		return err
	}

	resultCache, err := cache.New(kv,
		cache.WithPrefix(s.cachePrefix),
		cache.WithLogger(s.logger.Named("cache")),
	)
	if err != nil {
		s.releaseKV(kv)
		return fmt.Errorf("create cache: %w", err)
	}

	src := s.source
	if src == nil {
		src = source.NewFetcher(
			source.WithTimeout(s.fetchTimeout),
			source.WithRetries(s.fetchRetries),
			source.WithLogger(s.logger.Named("source")),
		)
	}

	store := dataset.NewStore()
	loader, err := dataset.NewLoader(store, src, s.seasonURLs,
		dataset.WithLoaderLogger(s.logger.Named("dataset")),
	)
	if err != nil {
		s.releaseKV(kv)
		return fmt.Errorf("create loader: %w", err)
	}

	scorerOpts := []scoring.Option{
		scoring.WithCache(resultCache),
		scoring.WithAvatarBaseURL(s.avatarBaseURL),
		scoring.WithLogger(s.logger.Named("scoring")),
	}
	if s.rng != nil {
		scorerOpts = append(scorerOpts, scoring.WithRandomSource(s.rng))
	}
	if s.awaitDatasets {
		scorerOpts = append(scorerOpts, scoring.WithLoadGate(store, s.awaitTimeout))
	}
	scorer, err := scoring.NewPresenceScorer(store, scorerOpts...)
	if err != nil {
		s.releaseKV(kv)
		return fmt.Errorf("create scorer: %w", err)
	}

	s.kv, s.cache, s.store, s.loader, s.scorer = kv, resultCache, store, loader, scorer
	s.ownsKV = s.customKV == nil

	// The load outlives the caller's context; Stop cancels it.
	loadCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancelLoad = cancel
	s.stopCh = make(chan struct{})

	s.bg.Add(2)
	go s.loadDatasets(loadCtx)
	go s.refreshSystemMetrics(s.stopCh)

	s.started = true
	s.logger.Info(ctx, "zkpresence service started",
		logger.String("load_id", store.LoadID()),
		logger.String("cache_driver", s.cacheDriver),
		logger.Bool("await_datasets", s.awaitDatasets),
	)

	return nil
}

func (s *Service) openKV() (repository.KV, error) {
	if s.customKV != nil {
		return s.customKV, nil
	}
	switch s.cacheDriver {
	case config.CacheDriverMemory:
		return repository.NewMemoryKV(), nil
	case config.CacheDriverSQLite:
		kv, err := repository.NewSQLiteKV(s.cachePath)
		if err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
		return kv, nil
	default:
		return nil, fmt.Errorf("%w: unknown cache_driver %q", config.ErrInvalidConfig, s.cacheDriver)
	}
}

// releaseKV closes kv when the service opened it.
func (s *Service) releaseKV(kv repository.KV) {
	if s.customKV == nil {
		_ = kv.Close()
	}
}

func (s *Service) loadDatasets(ctx context.Context) {
	defer s.bg.Done()
	if err := s.loader.Load(ctx); err != nil {
		s.logger.Warn(ctx, "dataset loading finished with failures; affected seasons score as absent",
			logger.Error(err))
		return
	}
	s.logger.Info(ctx, "all datasets loaded")
}

func (s *Service) refreshSystemMetrics(stop <-chan struct{}) {
	defer s.bg.Done()
	ticker := time.NewTicker(metrics.Global().RefreshInterval())
	defer ticker.Stop()

	var ms runtime.MemStats
	for {
		s.refreshCacheSize()

		runtime.ReadMemStats(&ms)
		metrics.UpdateSystemMemoryUsage(ms.HeapAlloc)
		metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
		metrics.RecordSystemGCPauseTime(float64(ms.PauseNs[(ms.NumGC+255)%256]) / 1e6)

		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

// refreshCacheSize samples the cache size gauge. Counting is O(n) on SQLite,
// so it runs on the metrics tick rather than per write.
func (s *Service) refreshCacheSize() {
	ctx := context.Background()
	n, err := s.cache.Len(ctx)
	if err != nil {
		s.logger.Debug(ctx, "reading cache size failed", logger.Error(err))
		return
	}
	metrics.UpdateCacheSize(n)
}

// Stop cancels any in-flight load and closes the cache backend it opened.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping zkpresence service...")

	s.cancelLoad()
	close(s.stopCh)
	s.bg.Wait()

	if s.ownsKV {
		if err := s.kv.Close(); err != nil {
			s.logger.Warn(context.Background(), "closing cache backend failed", logger.Error(err))
		}
	}

	s.started = false
	s.logger.Info(context.Background(), "zkpresence service stopped")
}

// Score sanitizes raw and returns its presence result. The only errors are
// ErrEmptyUsername and ErrNotStarted.
func (s *Service) Score(ctx context.Context, raw string) (model.PresenceResult, error) {
	display, _ := scoring.Sanitize(raw)
	if display == "" {
		return model.PresenceResult{}, ErrEmptyUsername
	}

	s.mu.RLock()
	scorer, started := s.scorer, s.started
	s.mu.RUnlock()
	if !started {
		return model.PresenceResult{}, ErrNotStarted
	}

	return scorer.Score(ctx, display), nil
}

// WaitForDatasets blocks until loading has finished or ctx ends.
func (s *Service) WaitForDatasets(ctx context.Context) error {
	s.mu.RLock()
	store, started := s.store, s.started
	s.mu.RUnlock()
	if !started {
		return ErrNotStarted
	}

	select {
	case <-store.Ready():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for datasets: %w", ctx.Err())
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":        s.started,
		"cache_driver":   s.cacheDriver,
		"await_datasets": s.awaitDatasets,
	}

	if s.started {
		stats["datasets"] = s.store.Stats()
		if n, err := s.cache.Len(ctx); err == nil {
			stats["cache_entries"] = n
			metrics.UpdateCacheSize(n)
		} else {
			s.logger.Warn(ctx, "reading cache size failed", logger.Error(err))
		}
	}

	return stats
}
