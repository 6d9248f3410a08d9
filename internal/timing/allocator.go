// Package timing turns a vehicle-count snapshot into green durations and picks
// the approach that currently holds the green light.
package timing

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/chrissnell/signalcontrol/internal/types"
)

var (
	ErrEmptySnapshot   = errors.New("timing: snapshot has no vehicles")
	ErrNegativeCount   = errors.New("timing: negative vehicle count")
	ErrMissingApproach = errors.New("timing: approach missing from snapshot")
	ErrCountTooLarge   = errors.New("timing: vehicle count too large")
	ErrNegativeBudget  = errors.New("timing: negative budget")
)

// Allocate gives every approach base seconds plus its share of budget in
// proportion to its share of the total vehicle count, truncated to whole
// seconds.  A snapshot with a missing, negative, oversized or all-zero count
// is rejected.
func Allocate(snapshot types.Snapshot, base, budget int) (types.TimingPlan, error) {
	if budget < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeBudget, budget)
	}

	total := 0
	for _, a := range types.Approaches {
		count, ok := snapshot.Counts[a]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingApproach, a)
		}
		if count < 0 {
			return nil, fmt.Errorf("%w: %s=%d", ErrNegativeCount, a, count)
		}
		if count > types.MaxVehicleCount {
			return nil, fmt.Errorf("%w: %s=%d", ErrCountTooLarge, a, count)
		}
		total += count
	}
	if total <= 0 {
		return nil, ErrEmptySnapshot
	}

	plan := make(types.TimingPlan, len(types.Approaches))
	for _, a := range types.Approaches {
		plan[a] = base + share(snapshot.Counts[a], budget, total)
	}
	return plan, nil
}

// share is floor(count*budget/total) computed in 128 bits.  count <= total
// keeps the quotient at or below budget.
func share(count, budget, total int) int {
	hi, lo := bits.Mul64(uint64(count), uint64(budget))
	q, _ := bits.Div64(hi, lo, uint64(total))
	return int(q)
}
