package scoring

import (
	"math/rand"
	"sync"
	"time"
)

// Fallback range for a season the user is missing from.
const (
	fallbackMin   = 33
	fallbackRange = 18 // fallbackMin + [0,18) -> [33,50]
)

// RandomSource supplies the randomized fallback. *rand.Rand satisfies it.
type RandomSource interface {
	// Intn returns a uniform integer in [0,n).
	Intn(n int) int
}

// lockedRand makes a *rand.Rand safe for concurrent use.
type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newLockedRand() *lockedRand {
	return &lockedRand{rng: rand.New(rand.NewSource(time.Now().UnixNano()))} //nolint:gosec // gamified stat, not security sensitive
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.Intn(n)
}

// fallbackValue draws the stand-in percentile for a missing season.
func fallbackValue(r RandomSource) float64 {
	return float64(fallbackMin + r.Intn(fallbackRange))
}
