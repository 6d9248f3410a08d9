// Package feed supplies vehicle-count snapshots for the intersection, either
// from a remote HTTP feed or from a randomized generator used when the feed
// is unavailable or not configured.  Fetch never fails; the snapshot's Origin
// tells the caller how much of it is synthetic.
package feed

import (
	"context"
	"time"

	"github.com/chrissnell/signalcontrol/internal/randengine"
	"github.com/chrissnell/signalcontrol/internal/types"
	"go.uber.org/zap"
)

const (
	DefaultTimeout     = 3 * time.Second
	DefaultFallbackMin = 5
	DefaultFallbackMax = 40
)

// Source supplies one snapshot per call
type Source interface {
	Fetch(ctx context.Context) types.Snapshot
}

// Options configures a Source
type Options struct {
	URL         string
	Timeout     time.Duration
	FallbackMin int
	FallbackMax int
}

// New returns an HTTP-backed source when a URL is configured and a purely
// random source otherwise
func New(opts Options, rng *randengine.Engine, logger *zap.SugaredLogger) Source {
	if opts.URL == "" {
		logger.Info("No vehicle count feed configured; running in offline mode")
		return NewRandomSource(opts, rng)
	}
	return NewHTTPSource(opts, rng, logger)
}

// generator draws synthetic counts from the fallback range
type generator struct {
	rng *randengine.Engine
	min int
	max int
}

func newGenerator(opts Options, rng *randengine.Engine) generator {
	g := generator{rng: rng, min: opts.FallbackMin, max: opts.FallbackMax}
	if g.min <= 0 && g.max <= 0 {
		g.min, g.max = DefaultFallbackMin, DefaultFallbackMax
	}
	// a range touching zero could produce an all-zero snapshot
	if g.min < 1 {
		g.min = 1
	}
	if g.max < g.min {
		g.max = g.min
	}
	return g
}

func (g generator) draw() int {
	return g.rng.IntRange(g.min, g.max)
}

func (g generator) offline() types.Snapshot {
	counts := make(map[types.Approach]int, len(types.Approaches))
	for _, a := range types.Approaches {
		counts[a] = g.draw()
	}
	return types.Snapshot{
		Counts:    counts,
		Timestamp: types.OfflineTimestamp,
		Origin:    types.OriginOffline,
		FetchedAt: time.Now(),
	}
}

// RandomSource always produces offline snapshots
type RandomSource struct {
	gen generator
}

// NewRandomSource creates a source that never contacts a feed
func NewRandomSource(opts Options, rng *randengine.Engine) *RandomSource {
	return &RandomSource{gen: newGenerator(opts, rng)}
}

// Fetch returns a fully synthetic snapshot
func (s *RandomSource) Fetch(ctx context.Context) types.Snapshot {
	return s.gen.offline()
}
