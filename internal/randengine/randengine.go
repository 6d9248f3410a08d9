// Package randengine wraps golang.org/x/exp/rand behind a seedable, lock-guarded engine
// so fallback counts and simulated metrics can be reproduced in tests.
package randengine

import (
	"sync"
	"time"

	"golang.org/x/exp/rand"
)

// Engine is a seeded random source that is safe for concurrent use
type Engine struct {
	mtx sync.Mutex
	rnd *rand.Rand
}

// New creates an engine.  A zero seed seeds from the clock.
func New(seed uint64) *Engine {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Engine{rnd: rand.New(rand.NewSource(seed))}
}

// IntRange returns an integer drawn uniformly from [lo, hi]
func (e *Engine) IntRange(lo, hi int) int {
	if hi < lo {
		lo, hi = hi, lo
	}
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return lo + e.rnd.Intn(hi-lo+1)
}

// Uniform returns a float drawn uniformly from [lo, hi)
func (e *Engine) Uniform(lo, hi float64) float64 {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return lo + e.rnd.Float64()*(hi-lo)
}
