package types

import (
	"time"

	"github.com/google/uuid"
)

// Approach identifies one of the four directional flows entering the intersection
type Approach string

const (
	North Approach = "North"
	South Approach = "South"
	East  Approach = "East"
	West  Approach = "West"
)

// Approaches is the canonical ordering used for display and for breaking ties
var Approaches = []Approach{North, South, East, West}

// Valid reports whether a is one of the four known approaches
func (a Approach) Valid() bool {
	for _, known := range Approaches {
		if a == known {
			return true
		}
	}
	return false
}

func (a Approach) String() string {
	return string(a)
}

// Timestamp sentinels carried on snapshots that did not come (entirely) from the feed
// MaxVehicleCount is the largest per-approach count accepted from a feed.
const MaxVehicleCount = 1<<31 - 1

const (
	OfflineTimestamp = "Offline Mode"
	UnknownTimestamp = "Unknown"
)

// Origin tells consumers how much of a snapshot came from the live feed
type Origin string

const (
	OriginLive    Origin = "live"    // every count came from the feed
	OriginPartial Origin = "partial" // the feed answered but some counts were substituted
	OriginOffline Origin = "offline" // the feed failed, all counts are synthetic
)

// Snapshot is one set of per-approach vehicle counts.  Every approach is
// present and the total is always greater than zero.
type Snapshot struct {
	Counts    map[Approach]int `json:"counts"`
	Timestamp string           `json:"timestamp"`
	Origin    Origin           `json:"origin"`
	FetchedAt time.Time        `json:"fetched_at"`
}

// Total returns the sum of all counts in the snapshot
func (s Snapshot) Total() int {
	total := 0
	for _, c := range s.Counts {
		total += c
	}
	return total
}

// Synthetic is true when any count in the snapshot was generated locally
func (s Snapshot) Synthetic() bool {
	return s.Origin != OriginLive
}

// TimingPlan maps each approach to its green duration in whole seconds
type TimingPlan map[Approach]int

// CycleSeconds returns the sum of all green durations in the plan
func (p TimingPlan) CycleSeconds() int {
	total := 0
	for _, d := range p {
		total += d
	}
	return total
}

// Mode selects how the active approach is chosen
type Mode string

const (
	ModeAI     Mode = "ai"
	ModeManual Mode = "manual"
)

// Valid reports whether m is a known mode
func (m Mode) Valid() bool {
	return m == ModeAI || m == ModeManual
}

// Label returns the operator-facing name of the mode
func (m Mode) Label() string {
	switch m {
	case ModeManual:
		return "Manual Override"
	default:
		return "AI Decision"
	}
}

// OperatorState is the operator's persistent choice, carried across refreshes
type OperatorState struct {
	Mode           Mode     `json:"mode"`
	ManualApproach Approach `json:"manual_approach"`
}

// SignalState is the approach currently holding the green light
type SignalState struct {
	Active Approach `json:"active"`
	Mode   Mode     `json:"mode"`
}

// SimulatedImpact is the illustrative before/after model.  Its figures are
// drawn at random and are not derived from any timing plan.
type SimulatedImpact struct {
	Simulated     bool    `json:"simulated"`
	WaitingBefore float64 `json:"waiting_before_s"`
	WaitingAfter  float64 `json:"waiting_after_s"`
	WaitingSaved  float64 `json:"waiting_saved_s"`
	CO2Before     float64 `json:"co2_before_g"`
	CO2After      float64 `json:"co2_after_g"`
	CO2Saved      float64 `json:"co2_saved_g"`
	FuelBefore    float64 `json:"fuel_before_l"`
	FuelAfter     float64 `json:"fuel_after_l"`
	FuelSaved     float64 `json:"fuel_saved_l"`
}

// PlanComparison compares the red-time exposure of an adaptive plan against a
// fixed plan that splits the same cycle evenly.
type PlanComparison struct {
	CycleSeconds  int     `json:"cycle_s"`
	FixedGreen    float64 `json:"fixed_green_s"`
	BaselineDelay float64 `json:"baseline_delay_vs"`
	AdaptiveDelay float64 `json:"adaptive_delay_vs"`
	DelaySaved    float64 `json:"delay_saved_vs"`
	ReductionPct  float64 `json:"reduction_pct"`
}

// ImpactReport bundles the derived metrics for one snapshot
type ImpactReport struct {
	WaitingUnits int             `json:"waiting_units"`
	Simulated    SimulatedImpact `json:"simulated"`
	Comparison   PlanComparison  `json:"comparison"`
}

// Cycle is everything one refresh produces
type Cycle struct {
	ID         uuid.UUID    `json:"id"`
	ComputedAt time.Time    `json:"computed_at"`
	Snapshot   Snapshot     `json:"snapshot"`
	Plan       TimingPlan   `json:"plan"`
	Signal     SignalState  `json:"signal"`
	Impact     ImpactReport `json:"impact"`
}
