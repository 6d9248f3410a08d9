package restserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chrissnell/signalcontrol/internal/impact"
	"github.com/chrissnell/signalcontrol/internal/pipeline"
	"github.com/chrissnell/signalcontrol/internal/randengine"
	"github.com/chrissnell/signalcontrol/internal/types"
	"github.com/chrissnell/signalcontrol/pkg/config"
	"github.com/chrissnell/signalcontrol/pkg/responseformat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fixedSource struct {
	counts map[types.Approach]int
}

func (s fixedSource) Fetch(ctx context.Context) types.Snapshot {
	counts := make(map[types.Approach]int, len(s.counts))
	for a, c := range s.counts {
		counts[a] = c
	}
	return types.Snapshot{Counts: counts, Timestamp: "2025-11-01 10:00:00", Origin: types.OriginLive}
}

func newTestServer(t *testing.T, cors bool) (*pipeline.Controller, *httptest.Server) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	var wg sync.WaitGroup

	src := fixedSource{counts: map[types.Approach]int{
		types.North: 40, types.South: 5, types.East: 8, types.West: 6,
	}}
	p := pipeline.NewController(ctx, &wg, src, impact.NewEstimator(randengine.New(3), impact.DefaultModel),
		pipeline.Options{BaseSeconds: 15, BudgetSeconds: 30, RefreshInterval: time.Second}, zap.NewNop().Sugar())

	ctrl, err := NewController(ctx, &wg, p, config.RESTServerData{EnableCORS: cors}, zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", ctrl.Server.Addr)

	ts := httptest.NewServer(ctrl.Server.Handler)
	t.Cleanup(ts.Close)
	return p, ts
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestNewControllerRequiresPipeline(t *testing.T) {
	var wg sync.WaitGroup
	_, err := NewController(context.Background(), &wg, nil, config.RESTServerData{}, zap.NewNop().Sugar())
	assert.Error(t, err)
}

func TestUnavailableBeforeFirstCycle(t *testing.T) {
	_, ts := newTestServer(t, false)

	for _, path := range []string{"/api/cycle", "/api/snapshot", "/api/plan", "/api/signal", "/api/impact"} {
		t.Run(path, func(t *testing.T) {
			resp := do(t, http.MethodGet, ts.URL+path, "")
			assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
			body := decode[responseformat.ErrorBody](t, resp)
			assert.NotEmpty(t, body.Error)
		})
	}

	health := decode[HealthView](t, do(t, http.MethodGet, ts.URL+"/healthz", ""))
	assert.Equal(t, "ok", health.Status)
	assert.False(t, health.HasCycle)
}

func TestRefreshAndRead(t *testing.T) {
	_, ts := newTestServer(t, false)

	resp := do(t, http.MethodPost, ts.URL+"/api/refresh", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cycle := decode[types.Cycle](t, resp)
	assert.Equal(t, types.TimingPlan{types.North: 35, types.South: 17, types.East: 19, types.West: 18}, cycle.Plan)

	plan := decode[types.TimingPlan](t, do(t, http.MethodGet, ts.URL+"/api/plan", ""))
	assert.Equal(t, cycle.Plan, plan)

	signal := decode[types.SignalState](t, do(t, http.MethodGet, ts.URL+"/api/signal", ""))
	assert.Equal(t, types.SignalState{Active: types.North, Mode: types.ModeAI}, signal)

	snap := decode[types.Snapshot](t, do(t, http.MethodGet, ts.URL+"/api/snapshot", ""))
	assert.Equal(t, 59, snap.Total())
	assert.Equal(t, types.OriginLive, snap.Origin)

	report := decode[types.ImpactReport](t, do(t, http.MethodGet, ts.URL+"/api/impact", ""))
	assert.Equal(t, 1745, report.WaitingUnits)
	assert.True(t, report.Simulated.Simulated)
	assert.Equal(t, 89, report.Comparison.CycleSeconds)

	latest := decode[types.Cycle](t, do(t, http.MethodGet, ts.URL+"/api/cycle", ""))
	assert.Equal(t, cycle.ID, latest.ID)

	health := decode[HealthView](t, do(t, http.MethodGet, ts.URL+"/healthz", ""))
	assert.True(t, health.HasCycle)
	assert.Equal(t, cycle.ID.String(), health.LastCycle)
}

func TestOperator(t *testing.T) {
	p, ts := newTestServer(t, false)
	_, err := p.RunCycle(context.Background())
	require.NoError(t, err)

	view := decode[OperatorView](t, do(t, http.MethodGet, ts.URL+"/api/operator", ""))
	assert.Equal(t, types.ModeAI, view.Mode)
	assert.Equal(t, "AI Decision", view.Label)
	require.NotNil(t, view.Signal)
	assert.Equal(t, types.North, view.Signal.Active)

	resp := do(t, http.MethodPut, ts.URL+"/api/operator", `{"mode":"manual","manual_approach":"West"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view = decode[OperatorView](t, resp)
	assert.Equal(t, types.ModeManual, view.Mode)
	assert.Equal(t, types.West, view.ManualApproach)
	assert.Equal(t, "Manual Override", view.Label)
	require.NotNil(t, view.Signal)
	assert.Equal(t, types.SignalState{Active: types.West, Mode: types.ModeManual}, *view.Signal)

	signal := decode[types.SignalState](t, do(t, http.MethodGet, ts.URL+"/api/signal", ""))
	assert.Equal(t, types.West, signal.Active)

	// switching back keeps the manual choice for next time
	view = decode[OperatorView](t, do(t, http.MethodPut, ts.URL+"/api/operator", `{"mode":"ai"}`))
	assert.Equal(t, types.ModeAI, view.Mode)
	assert.Equal(t, types.West, view.ManualApproach)
	assert.Equal(t, types.North, view.Signal.Active)
}

func TestPutOperatorRejectsInvalid(t *testing.T) {
	p, ts := newTestServer(t, false)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"mode":`},
		{"unknown mode", `{"mode":"auto","manual_approach":"West"}`},
		{"missing mode", `{"manual_approach":"West"}`},
		{"unknown approach", `{"mode":"manual","manual_approach":"Northeast"}`},
		{"lowercase approach", `{"mode":"manual","manual_approach":"west"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, http.MethodPut, ts.URL+"/api/operator", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			body := decode[responseformat.ErrorBody](t, resp)
			assert.NotEmpty(t, body.Error)
		})
	}

	assert.Equal(t, types.ModeAI, p.Operator().Mode)
}

func TestMethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t, false)
	resp := do(t, http.MethodGet, ts.URL+"/api/refresh", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestMsgpackResponse(t *testing.T) {
	p, ts := newTestServer(t, false)
	_, err := p.RunCycle(context.Background())
	require.NoError(t, err)

	resp := do(t, http.MethodGet, ts.URL+"/api/signal?format=msgpack", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-msgpack", resp.Header.Get("Content-Type"))

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)

	dec := msgpack.NewDecoder(&buf)
	dec.SetCustomStructTag("json")
	var signal types.SignalState
	require.NoError(t, dec.Decode(&signal))
	assert.Equal(t, types.North, signal.Active)
}

func TestCORS(t *testing.T) {
	for _, enabled := range []bool{false, true} {
		_, ts := newTestServer(t, enabled)

		req, err := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", "http://dashboard.example")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		if enabled {
			assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
		} else {
			assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
		}
	}
}

func TestStartControllerShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	p := pipeline.NewController(ctx, &wg, fixedSource{counts: map[types.Approach]int{
		types.North: 1, types.South: 1, types.East: 1, types.West: 1,
	}},
		impact.NewEstimator(randengine.New(1), impact.DefaultModel),
		pipeline.Options{BaseSeconds: 15, BudgetSeconds: 30, RefreshInterval: time.Second}, zap.NewNop().Sugar())

	ctrl, err := NewController(ctx, &wg, p, config.RESTServerData{ListenAddr: "127.0.0.1", Port: 1}, zap.NewNop().Sugar())
	require.NoError(t, err)
	ctrl.Server.Addr = "127.0.0.1:0"

	require.NoError(t, ctrl.StartController())
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("REST server did not shut down")
	}
}

func TestStartControllerLogsShutdownTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup

	p := pipeline.NewController(ctx, &wg, fixedSource{counts: map[types.Approach]int{
		types.North: 1, types.South: 1, types.East: 1, types.West: 1,
	}},
		impact.NewEstimator(randengine.New(1), impact.DefaultModel),
		pipeline.Options{BaseSeconds: 15, BudgetSeconds: 30, RefreshInterval: time.Second}, zap.NewNop().Sugar())

	core, logs := observer.New(zapcore.WarnLevel)
	ctrl, err := NewController(ctx, &wg, p, config.RESTServerData{ListenAddr: "127.0.0.1", Port: 1}, zap.New(core).Sugar())
	require.NoError(t, err)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	ctrl.Server.Addr = addr
	ctrl.shutdownTimeout = 50 * time.Millisecond

	var once sync.Once
	entered := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	ctrl.Server.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() { close(entered) })
		<-release
	})

	require.NoError(t, ctrl.StartController())

	go func() {
		for i := 0; i < 50; i++ {
			resp, err := http.Get("http://" + addr + "/api/cycle")
			if err == nil {
				resp.Body.Close()
				return
			}
			if ctx.Err() != nil {
				return
			}
			time.Sleep(20 * time.Millisecond)
		}
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("request never reached the server")
	}
	cancel()

	assert.Eventually(t, func() bool {
		return logs.FilterMessageSnippet("REST server shutdown error").Len() == 1
	}, 5*time.Second, 10*time.Millisecond)
}
