package dataset

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/zkpresence/internal/domain/model"
	"github.com/okian/zkpresence/pkg/logger"
	"github.com/okian/zkpresence/pkg/metrics"
)

// Source retrieves and parses one season document.
type Source interface {
	Load(ctx context.Context, location string) (model.Dataset, error)
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLoaderLogger sets the logger.
func WithLoaderLogger(l logger.Logger) LoaderOption {
	return func(ld *Loader) {
		if l != nil {
			ld.logger = l
		}
	}
}

// Loader fills a Store from a Source.
type Loader struct {
	store     *Store
	source    Source
	locations map[model.Season]string
	logger    logger.Logger
}

// NewLoader creates a loader that reads each season from locations.
func NewLoader(store *Store, src Source, locations map[model.Season]string, opts ...LoaderOption) (*Loader, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if src == nil {
		return nil, ErrNilSource
	}
	for _, season := range model.Seasons() {
		if locations[season] == "" {
			return nil, fmt.Errorf("%w: %s", ErrNoLocation, season)
		}
	}
	l := &Loader{
		store:     store,
		source:    src,
		locations: locations,
		logger:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Load fetches both seasons concurrently and publishes each one that
// succeeds. A failed season stays unloaded and scores as absent; the other
// season is still published. The store is marked ready when both attempts
// have finished. The returned error joins the per-season failures.
func (l *Loader) Load(ctx context.Context) error {
	defer l.store.MarkReady()

	seasons := model.Seasons()
	errs := make([]error, len(seasons))

	var wg sync.WaitGroup
	for i, season := range seasons {
		wg.Add(1)
		go func(i int, season model.Season) {
			defer wg.Done()
			errs[i] = l.loadSeason(ctx, season)
		}(i, season)
	}
	wg.Wait()

	return errors.Join(errs...)
}

func (l *Loader) loadSeason(ctx context.Context, season model.Season) error {
	location := l.locations[season]
	start := time.Now()

	l.logger.Info(ctx, "loading dataset",
		logger.String("season", string(season)),
		logger.String("location", location),
		logger.String("load_id", l.store.LoadID()),
	)

	ds, err := l.source.Load(ctx, location)
	if err != nil {
		metrics.RecordDatasetLoadError(string(season))
		metrics.RecordErrorByComponent("dataset", "load")
		l.logger.Error(ctx, "dataset unavailable",
			logger.String("season", string(season)),
			logger.Error(err),
		)
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, season, err)
	}

	l.store.Set(season, ds)
	elapsed := time.Since(start)
	metrics.RecordDatasetLoad(string(season), float64(elapsed.Milliseconds()))

	l.logger.Info(ctx, "dataset loaded",
		logger.String("season", string(season)),
		logger.Int("records", len(ds)),
		logger.Duration("took", elapsed),
	)
	return nil
}
