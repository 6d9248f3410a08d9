package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chrissnell/signalcontrol/internal/constants"
	"github.com/chrissnell/signalcontrol/internal/randengine"
	"github.com/chrissnell/signalcontrol/internal/types"
	"go.uber.org/zap"
)

const maxPayloadBytes = 1 << 20

// approachPayload is the per-approach object in the feed response, e.g.
// {"North": {"vehicles": 23}, ..., "timestamp": "2025-11-01 10:00:00"}
type approachPayload struct {
	Vehicles *int `json:"vehicles"`
}

// HTTPSource fetches counts from the remote feed with a single bounded GET
type HTTPSource struct {
	url    string
	client *http.Client
	gen    generator
	logger *zap.SugaredLogger
}

// NewHTTPSource creates a source that polls opts.URL
func NewHTTPSource(opts Options, rng *randengine.Engine, logger *zap.SugaredLogger) *HTTPSource {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &HTTPSource{
		url: opts.URL,
		client: &http.Client{
			Timeout: timeout,
		},
		gen:    newGenerator(opts, rng),
		logger: logger.Named("feed").With("url", opts.URL),
	}
}

// Fetch retrieves one snapshot.  Any failure of the request as a whole yields
// an offline snapshot; individual bad fields are replaced one by one.
func (s *HTTPSource) Fetch(ctx context.Context) types.Snapshot {
	payload, err := s.get(ctx)
	if err != nil {
		s.logger.Warnw("Vehicle count feed unavailable, using synthetic counts", "error", err)
		return s.gen.offline()
	}

	snap := types.Snapshot{
		Counts:    make(map[types.Approach]int, len(types.Approaches)),
		Timestamp: decodeTimestamp(payload["timestamp"]),
		Origin:    types.OriginLive,
		FetchedAt: time.Now(),
	}

	var substituted []types.Approach
	for _, a := range types.Approaches {
		count, err := decodeCount(payload[string(a)])
		if err != nil {
			substituted = append(substituted, a)
			count = s.gen.draw()
		}
		snap.Counts[a] = count
	}

	if len(substituted) > 0 {
		snap.Origin = types.OriginPartial
		s.logger.Warnw("Feed response incomplete, substituted synthetic counts", "approaches", substituted)
	}

	if snap.Total() == 0 {
		s.logger.Warn("Feed reported no vehicles on any approach, using synthetic counts")
		for _, a := range types.Approaches {
			snap.Counts[a] = s.gen.draw()
		}
		snap.Origin = types.OriginPartial
	}

	s.logger.Debugw("Fetched vehicle counts", "counts", snap.Counts, "origin", snap.Origin, "timestamp", snap.Timestamp)
	return snap
}

func (s *HTTPSource) get(ctx context.Context) (map[string]json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", constants.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	var payload map[string]json.RawMessage
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxPayloadBytes)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding feed response: %w", err)
	}
	if payload == nil {
		return nil, errors.New("feed response is not a JSON object")
	}
	return payload, nil
}

func decodeCount(raw json.RawMessage) (int, error) {
	if len(raw) == 0 {
		return 0, errors.New("missing")
	}
	var p approachPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return 0, err
	}
	if p.Vehicles == nil {
		return 0, errors.New("missing vehicles field")
	}
	if *p.Vehicles < 0 {
		return 0, fmt.Errorf("negative vehicle count %d", *p.Vehicles)
	}
	if *p.Vehicles > types.MaxVehicleCount {
		return 0, fmt.Errorf("vehicle count %d exceeds %d", *p.Vehicles, types.MaxVehicleCount)
	}
	return *p.Vehicles, nil
}

func decodeTimestamp(raw json.RawMessage) string {
	var ts string
	if len(raw) == 0 || json.Unmarshal(raw, &ts) != nil || ts == "" {
		return types.UnknownTimestamp
	}
	return ts
}
