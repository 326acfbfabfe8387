// Package dataset holds the two season leaderboards and loads them once.
package dataset

import (
	"sync"

	"github.com/google/uuid"

	"github.com/okian/zkpresence/internal/domain/model"
	"github.com/okian/zkpresence/pkg/metrics"
)

// Store publishes each season's dataset atomically. Readers see either an
// empty dataset or the complete one.
type Store struct {
	mu      sync.RWMutex
	seasons map[model.Season]model.Dataset
	loadID  string

	ready     chan struct{}
	readyOnce sync.Once
}

// SeasonStats describes one season in Stats.
type SeasonStats struct {
	Loaded  bool `json:"loaded"`
	Records int  `json:"records"`
}

// Stats is a point-in-time view of the store.
type Stats struct {
	LoadID  string                       `json:"load_id"`
	Ready   bool                         `json:"ready"`
	Seasons map[model.Season]SeasonStats `json:"seasons"`
}

// NewStore returns an empty store with a fresh load id.
func NewStore() *Store {
	return &Store{
		seasons: make(map[model.Season]model.Dataset, len(model.Seasons())),
		loadID:  uuid.NewString(),
		ready:   make(chan struct{}),
	}
}

// Set publishes ds as the dataset for season. A nil ds is stored as empty
// but still counts as loaded.
func (s *Store) Set(season model.Season, ds model.Dataset) {
	if ds == nil {
		ds = model.Dataset{}
	}
	s.mu.Lock()
	s.seasons[season] = ds
	s.mu.Unlock()

	metrics.UpdateDatasetRecords(string(season), len(ds))
}

// Dataset returns the loaded dataset for season, or nil when it has not been
// loaded. The returned slice must not be modified.
func (s *Store) Dataset(season model.Season) model.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seasons[season]
}

// Loaded reports whether season has been published.
func (s *Store) Loaded(season model.Season) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seasons[season]
	return ok
}

// MarkReady closes the ready channel. Safe to call more than once.
func (s *Store) MarkReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

// Ready is closed once loading has finished, whether or not every season
// loaded.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// LoadID identifies this store instance in logs and stats.
func (s *Store) LoadID() string {
	return s.loadID
}

// Stats returns record counts per season.
func (s *Store) Stats() Stats {
	st := Stats{
		LoadID:  s.loadID,
		Seasons: make(map[model.Season]SeasonStats, len(model.Seasons())),
	}
	select {
	case <-s.ready:
		st.Ready = true
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, season := range model.Seasons() {
		ds, ok := s.seasons[season]
		st.Seasons[season] = SeasonStats{Loaded: ok, Records: len(ds)}
	}
	return st
}
