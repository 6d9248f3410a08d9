// Package mockfeed serves randomized vehicle counts in the same JSON shape as
// the live traffic feed, for running the controller without real sensors.
package mockfeed

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/chrissnell/signalcontrol/internal/randengine"
	"github.com/chrissnell/signalcontrol/internal/types"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// TimestampLayout is the layout of the feed's top-level timestamp field
const TimestampLayout = "2006-01-02 15:04:05"

// Range is an inclusive vehicle count range
type Range struct {
	Min int
	Max int
}

// DefaultRanges gives each approach its own typical load
var DefaultRanges = map[types.Approach]Range{
	types.North: {10, 40},
	types.South: {5, 35},
	types.East:  {8, 45},
	types.West:  {6, 30},
}

// Server generates one independent payload per request
type Server struct {
	rng    *randengine.Engine
	ranges map[types.Approach]Range
	now    func() time.Time
	logger *zap.SugaredLogger
}

// NewServer creates a mock feed.  A nil ranges map uses DefaultRanges.
func NewServer(rng *randengine.Engine, ranges map[types.Approach]Range, logger *zap.SugaredLogger) *Server {
	if ranges == nil {
		ranges = DefaultRanges
	}
	return &Server{
		rng:    rng,
		ranges: ranges,
		now:    time.Now,
		logger: logger.Named("mockfeed"),
	}
}

// Router returns the feed's routes
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/traffic", s.ServeTraffic).Methods(http.MethodGet)
	return router
}

// Payload builds one feed response body
func (s *Server) Payload() map[string]any {
	payload := make(map[string]any, len(types.Approaches)+1)
	for _, a := range types.Approaches {
		r := s.ranges[a]
		payload[string(a)] = map[string]int{"vehicles": s.rng.IntRange(r.Min, r.Max)}
	}
	payload["timestamp"] = s.now().Format(TimestampLayout)
	return payload
}

// ServeTraffic writes a freshly generated payload
func (s *Server) ServeTraffic(w http.ResponseWriter, req *http.Request) {
	payload := s.Payload()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Errorw("Failed to write traffic payload", "error", err)
		return
	}
	s.logger.Debugw("Served traffic payload", "payload", payload)
}
