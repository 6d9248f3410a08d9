package restserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/chrissnell/signalcontrol/internal/types"
	"github.com/chrissnell/signalcontrol/pkg/responseformat"
)

const maxOperatorBody = 4 << 10

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

// OperatorView is the operator state as shown to dashboards
type OperatorView struct {
	Mode           types.Mode         `json:"mode"`
	ManualApproach types.Approach     `json:"manual_approach"`
	Label          string             `json:"label"`
	Signal         *types.SignalState `json:"signal,omitempty"`
}

// OperatorRequest is the body accepted by PUT /api/operator
type OperatorRequest struct {
	Mode           string `json:"mode"`
	ManualApproach string `json:"manual_approach"`
}

// HealthView reports whether a cycle has been computed yet
type HealthView struct {
	Status    string `json:"status"`
	HasCycle  bool   `json:"has_cycle"`
	LastCycle string `json:"last_cycle,omitempty"`
}

// latest writes a 503 and returns false if no cycle is available yet
func (h *Handlers) latest(w http.ResponseWriter, req *http.Request) (*types.Cycle, bool) {
	cycle, ok := h.controller.pipeline.Latest()
	if !ok {
		h.writeError(w, req, http.StatusServiceUnavailable, "no cycle has been computed yet")
		return nil, false
	}
	return cycle, true
}

func (h *Handlers) write(w http.ResponseWriter, req *http.Request, data any) {
	if err := h.formatter.WriteResponse(w, req, data); err != nil {
		h.controller.logger.Errorw("Failed to write response", "path", req.URL.Path, "error", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, req *http.Request, status int, msg string) {
	if err := h.formatter.WriteError(w, req, status, msg); err != nil {
		h.controller.logger.Errorw("Failed to write error response", "path", req.URL.Path, "error", err)
	}
}

// GetCycle returns the latest full cycle
func (h *Handlers) GetCycle(w http.ResponseWriter, req *http.Request) {
	if cycle, ok := h.latest(w, req); ok {
		h.write(w, req, cycle)
	}
}

// GetSnapshot returns the counts the latest cycle was computed from
func (h *Handlers) GetSnapshot(w http.ResponseWriter, req *http.Request) {
	if cycle, ok := h.latest(w, req); ok {
		h.write(w, req, cycle.Snapshot)
	}
}

// GetPlan returns the latest green time allocation
func (h *Handlers) GetPlan(w http.ResponseWriter, req *http.Request) {
	if cycle, ok := h.latest(w, req); ok {
		h.write(w, req, cycle.Plan)
	}
}

// GetSignal returns the approach currently holding green
func (h *Handlers) GetSignal(w http.ResponseWriter, req *http.Request) {
	if cycle, ok := h.latest(w, req); ok {
		h.write(w, req, cycle.Signal)
	}
}

// GetImpact returns the latest impact report
func (h *Handlers) GetImpact(w http.ResponseWriter, req *http.Request) {
	if cycle, ok := h.latest(w, req); ok {
		h.write(w, req, cycle.Impact)
	}
}

// PostRefresh runs a cycle immediately and returns it
func (h *Handlers) PostRefresh(w http.ResponseWriter, req *http.Request) {
	cycle, err := h.controller.pipeline.RunCycle(req.Context())
	if err != nil {
		h.controller.logger.Errorw("On-demand refresh failed", "error", err)
		h.writeError(w, req, http.StatusInternalServerError, "refresh failed")
		return
	}
	h.write(w, req, cycle)
}

// GetOperator returns the operator's current mode and manual choice
func (h *Handlers) GetOperator(w http.ResponseWriter, req *http.Request) {
	h.write(w, req, h.operatorView())
}

// PutOperator switches between AI and manual mode.  An omitted
// manual_approach keeps the current one.
func (h *Handlers) PutOperator(w http.ResponseWriter, req *http.Request) {
	body, err := io.ReadAll(io.LimitReader(req.Body, maxOperatorBody))
	if err != nil {
		h.writeError(w, req, http.StatusBadRequest, "could not read request body")
		return
	}

	var r OperatorRequest
	if err := json.Unmarshal(body, &r); err != nil {
		h.writeError(w, req, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	op, err := h.resolveOperator(r)
	if err != nil {
		h.writeError(w, req, http.StatusBadRequest, err.Error())
		return
	}

	h.controller.pipeline.SetOperator(op)
	h.write(w, req, h.operatorView())
}

// resolveOperator validates a request against the current operator state
func (h *Handlers) resolveOperator(r OperatorRequest) (types.OperatorState, error) {
	op := h.controller.pipeline.Operator()

	mode := types.Mode(r.Mode)
	if !mode.Valid() {
		return op, fmt.Errorf("unknown mode %q: expected ai or manual", r.Mode)
	}
	op.Mode = mode

	if r.ManualApproach != "" {
		approach := types.Approach(r.ManualApproach)
		if !approach.Valid() {
			return op, fmt.Errorf("unknown approach %q: expected North, South, East or West", r.ManualApproach)
		}
		op.ManualApproach = approach
	}

	if op.Mode == types.ModeManual && !op.ManualApproach.Valid() {
		return op, fmt.Errorf("manual mode requires manual_approach")
	}

	return op, nil
}

func (h *Handlers) operatorView() OperatorView {
	op := h.controller.pipeline.Operator()
	view := OperatorView{
		Mode:           op.Mode,
		ManualApproach: op.ManualApproach,
		Label:          op.Mode.Label(),
	}
	if cycle, ok := h.controller.pipeline.Latest(); ok {
		signal := cycle.Signal
		view.Signal = &signal
	}
	return view
}

// GetHealth reports liveness and whether a cycle is available
func (h *Handlers) GetHealth(w http.ResponseWriter, req *http.Request) {
	view := HealthView{Status: "ok"}
	if cycle, ok := h.controller.pipeline.Latest(); ok {
		view.HasCycle = true
		view.LastCycle = cycle.ID.String()
	}
	h.write(w, req, view)
}
