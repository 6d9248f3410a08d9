// Package impact derives secondary metrics from a snapshot and its timing plan.
//
// Two independent views are produced.  The simulated before/after figures come
// from a randomized illustrative model and do not depend on the plan at all.
// The plan comparison is computed from the actual allocation, measuring how
// much red-time exposure the adaptive plan removes compared with an even split
// of the same cycle.
package impact

import (
	"github.com/chrissnell/signalcontrol/internal/randengine"
	"github.com/chrissnell/signalcontrol/internal/types"
	"gonum.org/v1/gonum/floats"
)

// Range is a closed-open uniform interval
type Range struct {
	Min float64
	Max float64
}

// Model holds the ranges the simulated before/after figures are drawn from
type Model struct {
	WaitingBefore    Range // seconds
	WaitingReduction Range
	CO2Before        Range // grams per cycle
	CO2Reduction     Range
	FuelBefore       Range // litres per cycle
	FuelReduction    Range
}

// DefaultModel holds the ranges shown on the impact dashboard
var DefaultModel = Model{
	WaitingBefore:    Range{90, 150},
	WaitingReduction: Range{0.45, 0.7},
	CO2Before:        Range{300, 500},
	CO2Reduction:     Range{0.5, 0.8},
	FuelBefore:       Range{0.6, 1.0},
	FuelReduction:    Range{0.5, 0.8},
}

// Estimator produces impact reports.  It is safe for concurrent use.
type Estimator struct {
	rng   *randengine.Engine
	model Model
}

// NewEstimator creates an estimator drawing from rng with the given model
func NewEstimator(rng *randengine.Engine, model Model) *Estimator {
	return &Estimator{rng: rng, model: model}
}

// EstimateLoad returns the total waiting units: the sum over approaches of
// vehicle count times green duration.  It is a relative indicator only.
func EstimateLoad(snapshot types.Snapshot, plan types.TimingPlan) int {
	load := 0
	for _, a := range types.Approaches {
		load += snapshot.Counts[a] * plan[a]
	}
	return load
}

// EstimateBeforeAfter draws a baseline for each metric and applies an
// independently drawn reduction factor to get the "after" value.
func (e *Estimator) EstimateBeforeAfter() types.SimulatedImpact {
	waitBefore := e.draw(e.model.WaitingBefore)
	waitAfter := waitBefore * e.draw(e.model.WaitingReduction)
	co2Before := e.draw(e.model.CO2Before)
	co2After := co2Before * e.draw(e.model.CO2Reduction)
	fuelBefore := e.draw(e.model.FuelBefore)
	fuelAfter := fuelBefore * e.draw(e.model.FuelReduction)

	return types.SimulatedImpact{
		Simulated:     true,
		WaitingBefore: waitBefore,
		WaitingAfter:  waitAfter,
		WaitingSaved:  waitBefore - waitAfter,
		CO2Before:     co2Before,
		CO2After:      co2After,
		CO2Saved:      co2Before - co2After,
		FuelBefore:    fuelBefore,
		FuelAfter:     fuelAfter,
		FuelSaved:     fuelBefore - fuelAfter,
	}
}

func (e *Estimator) draw(r Range) float64 {
	return e.rng.Uniform(r.Min, r.Max)
}

// ComparePlans measures vehicle red-time exposure, the sum of count times
// (cycle - green), for the adaptive plan and for a fixed plan that splits the
// same cycle evenly between the approaches.
func ComparePlans(snapshot types.Snapshot, plan types.TimingPlan) types.PlanComparison {
	n := len(types.Approaches)
	cycle := float64(plan.CycleSeconds())
	fixedGreen := cycle / float64(n)

	counts := make([]float64, n)
	adaptiveRed := make([]float64, n)
	for i, a := range types.Approaches {
		counts[i] = float64(snapshot.Counts[a])
		adaptiveRed[i] = cycle - float64(plan[a])
	}

	baseline := floats.Sum(counts) * (cycle - fixedGreen)
	adaptive := floats.Dot(counts, adaptiveRed)

	cmp := types.PlanComparison{
		CycleSeconds:  int(cycle),
		FixedGreen:    fixedGreen,
		BaselineDelay: baseline,
		AdaptiveDelay: adaptive,
		DelaySaved:    baseline - adaptive,
	}
	if baseline > 0 {
		cmp.ReductionPct = cmp.DelaySaved / baseline * 100
	}
	return cmp
}

// Estimate bundles the waiting units, the simulated model and the plan comparison
func (e *Estimator) Estimate(snapshot types.Snapshot, plan types.TimingPlan) types.ImpactReport {
	return types.ImpactReport{
		WaitingUnits: EstimateLoad(snapshot, plan),
		Simulated:    e.EstimateBeforeAfter(),
		Comparison:   ComparePlans(snapshot, plan),
	}
}
