// Package scoring computes presence results from the two season datasets.
package scoring

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/okian/zkpresence/internal/domain/model"
	"github.com/okian/zkpresence/pkg/logger"
	"github.com/okian/zkpresence/pkg/metrics"
)

const (
	defaultAvatarBaseURL = "https://unavatar.io/twitter/"
	defaultGateTimeout   = 5 * time.Second
)

// DatasetProvider exposes the currently loaded datasets. A season that is not
// loaded must be reported as an empty dataset.
type DatasetProvider interface {
	Dataset(season model.Season) model.Dataset
}

// Gate signals that dataset loading has finished.
type Gate interface {
	Ready() <-chan struct{}
}

// ResultCache stores results by normalized username.
type ResultCache interface {
	Get(ctx context.Context, key string) (model.PresenceResult, bool)
	Put(ctx context.Context, key string, result model.PresenceResult)
}

// Option applies a configuration option to the PresenceScorer.
type Option func(*PresenceScorer)

// WithRandomSource sets the source of the missing-season fallback.
func WithRandomSource(r RandomSource) Option {
	return func(s *PresenceScorer) {
		if r != nil {
			s.rng = r
		}
	}
}

// WithCache sets the result cache consulted before and written after scoring.
func WithCache(c ResultCache) Option {
	return func(s *PresenceScorer) {
		s.cache = c
	}
}

// WithAvatarBaseURL sets the prefix of the generated fallback avatar URL.
func WithAvatarBaseURL(base string) Option {
	return func(s *PresenceScorer) {
		if base != "" {
			s.avatarBaseURL = base
		}
	}
}

// WithLoadGate makes Score wait up to timeout for g before resolving users.
// Without it, scoring runs against whatever is loaded at call time.
func WithLoadGate(g Gate, timeout time.Duration) Option {
	return func(s *PresenceScorer) {
		s.gate = g
		if timeout > 0 {
			s.gateTimeout = timeout
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *PresenceScorer) {
		if l != nil {
			s.logger = l
		}
	}
}

// PresenceScorer turns a username into a PresenceResult.
type PresenceScorer struct {
	// mu serializes cache lookup, evaluation and the cache write. It is not
	// held while waiting on the load gate.
	mu sync.Mutex

	datasets      DatasetProvider
	cache         ResultCache
	rng           RandomSource
	avatarBaseURL string
	gate          Gate
	gateTimeout   time.Duration
	logger        logger.Logger
}

// NewPresenceScorer creates a scorer reading from datasets.
func NewPresenceScorer(datasets DatasetProvider, opts ...Option) (*PresenceScorer, error) {
	if datasets == nil {
		return nil, ErrNilDatasets
	}
	s := &PresenceScorer{
		datasets:      datasets,
		rng:           newLockedRand(),
		avatarBaseURL: defaultAvatarBaseURL,
		gateTimeout:   defaultGateTimeout,
		logger:        logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Score returns the presence result for username. username must already be
// sanitized; its casing is echoed in the result while the cache key is its
// lowercase form. Score never fails: a cached record is returned verbatim,
// otherwise a new one is computed and cached, including the all-zero result
// for unknown users.
func (s *PresenceScorer) Score(ctx context.Context, username string) model.PresenceResult {
	key := strings.ToLower(username)

	if cached, ok := s.cached(ctx, key); ok {
		return cached
	}

	// the gate wait runs unlocked so cache hits are never queued behind it
	s.awaitDatasets(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	// another request may have scored key while this one waited
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, key); ok {
			return cached
		}
	}

	start := time.Now()
	result, pc := s.Evaluate(username, s.datasets.Dataset(model.S0), s.datasets.Dataset(model.S1))
	metrics.RecordScoringLatency(float64(time.Since(start).Microseconds()) / 1000)
	metrics.RecordPresenceCase(string(pc))

	s.logger.Debug(ctx, "presence scored",
		logger.String("username", key),
		logger.String("case", string(pc)),
		logger.Int("score", result.Score),
	)

	if s.cache != nil {
		s.cache.Put(ctx, key, result)
	}
	return result
}

func (s *PresenceScorer) cached(ctx context.Context, key string) (model.PresenceResult, bool) {
	if s.cache == nil {
		return model.PresenceResult{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Get(ctx, key)
}

// Evaluate computes a result from the given datasets without touching the
// cache. The fallback for a missing season is drawn from the random source.
func (s *PresenceScorer) Evaluate(username string, s0, s1 model.Dataset) (model.PresenceResult, model.PresenceCase) {
	rec0, in0 := Resolve(username, s0)
	rec1, in1 := Resolve(username, s1)
	pc := model.CaseFor(in0, in1)

	result := model.PresenceResult{Username: username}

	var consistency, effectiveness float64
	switch pc {
	case model.CaseNone:
		result.PFP = s.avatarBaseURL + username
		return result, pc
	case model.CaseS0Only:
		consistency = Percentile(ParseMindshare(rec0.Mindshare), Mindshares(s0))
		effectiveness = fallbackValue(s.rng)
		result.PFP = firstNonEmpty(rec0.PFP, rec0.Avatar, s.avatarBaseURL+username)
	case model.CaseS1Only:
		effectiveness = Percentile(ParseMindshare(rec1.Mindshare), Mindshares(s1))
		consistency = fallbackValue(s.rng)
		result.PFP = firstNonEmpty(rec1.PFP, rec1.Avatar, s.avatarBaseURL+username)
	case model.CaseBoth:
		consistency = Percentile(ParseMindshare(rec0.Mindshare), Mindshares(s0))
		effectiveness = Percentile(ParseMindshare(rec1.Mindshare), Mindshares(s1))
		result.PFP = firstNonEmpty(rec0.PFP, rec0.Avatar, rec1.PFP, rec1.Avatar, s.avatarBaseURL+username)
	}

	unionMaxi := HarmonicMean(consistency, effectiveness)
	result.Consistency = roundHalfUp(consistency)
	result.Effectiveness = roundHalfUp(effectiveness)
	// score uses the unrounded union value; it is rounded only for output
	result.Score = roundHalfUp((consistency + effectiveness + unionMaxi) / 3)
	result.UnionMaxi = roundHalfUp(unionMaxi)
	return result, pc
}

// HarmonicMean returns 2ab/(a+b), or 0 when a+b is 0.
func HarmonicMean(a, b float64) float64 {
	if a+b == 0 {
		return 0
	}
	return 2 * a * b / (a + b)
}

func (s *PresenceScorer) awaitDatasets(ctx context.Context) {
	if s.gate == nil {
		return
	}
	select {
	case <-s.gate.Ready():
		return
	default:
	}

	timer := time.NewTimer(s.gateTimeout)
	defer timer.Stop()

	select {
	case <-s.gate.Ready():
	case <-timer.C:
		s.logger.Warn(ctx, "datasets not ready; scoring against partial data",
			logger.Duration("timeout", s.gateTimeout))
	case <-ctx.Done():
		s.logger.Warn(ctx, "context done while waiting for datasets", logger.Error(ctx.Err()))
	}
}

// roundHalfUp rounds to the nearest integer with halves going up.
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
