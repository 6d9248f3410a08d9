package timing

import (
	"github.com/chrissnell/signalcontrol/internal/types"
	"github.com/samber/lo"
)

// Select returns the approach that gets the green light.  In AI mode that is
// the approach with the longest green duration, ties going to the earliest
// approach in canonical order.  In manual mode the operator's choice is
// returned as-is.
func Select(plan types.TimingPlan, mode types.Mode, manual types.Approach) types.Approach {
	if mode == types.ModeManual {
		return manual
	}
	// MaxBy only replaces the current best on a strictly greater value
	return lo.MaxBy(types.Approaches, func(a, best types.Approach) bool {
		return plan[a] > plan[best]
	})
}

// SelectState is Select wrapped into a SignalState
func SelectState(plan types.TimingPlan, op types.OperatorState) types.SignalState {
	return types.SignalState{
		Active: Select(plan, op.Mode, op.ManualApproach),
		Mode:   op.Mode,
	}
}
