package opt

import (
	"fieldroute/internal/geo"
	"fieldroute/internal/model"
)

// improveOrderTwoOpt applies a bounded 2-opt pass to the greedy order,
// reversing segments whenever that shortens the tour. The anchor stop and
// final stop stay fixed. Distances use the raw great-circle tour length;
// the caller reschedules arrival times afterwards.
func improveOrderTwoOpt(jobs []model.Job, order []int, iterations int) []int {
	if iterations <= 0 {
		iterations = 1
	}
	est := geo.RoadEstimator{RoadFactor: 1} // relative comparison only
	best := append([]int(nil), order...)
	bestDist := tourMiles(&est, jobs, best)
	n := len(order)
	for it := 0; it < iterations; it++ {
		improved := false
		for i := 1; i < n-2; i++ {
			for k := i + 1; k < n-1; k++ {
				cand := twoOptSwap(best, i, k)
				if d := tourMiles(&est, jobs, cand); d+1e-3 < bestDist {
					best = cand
					bestDist = d
					improved = true
				}
			}
		}
		if !improved {
			break
		}
	}
	return best
}

func twoOptSwap(ord []int, i, k int) []int {
	out := make([]int, len(ord))
	copy(out, ord[:i])
	pos := i
	for j := k; j >= i; j-- {
		out[pos] = ord[j]
		pos++
	}
	copy(out[pos:], ord[k+1:])
	return out
}

func tourMiles(est geo.Estimator, jobs []model.Job, order []int) float64 {
	total := 0.0
	for i := 0; i < len(order)-1; i++ {
		a := jobs[order[i]].Location
		b := jobs[order[i+1]].Location
		total += est.Estimate(a, b).Miles
	}
	return total
}
