// Package ranking implements the cross-study ranking engine (§4.5): per-study
// metrics, pairwise Mann-Whitney-U solver comparison across a metric
// precedence list, and Borda/Firsts aggregation across problems.
package ranking

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/integrate"

	"github.com/kurobako-go/kurobako/pkg/record"
)

// BestValue returns the minimum single-objective value observed across a
// study's finalized trials, or, for a multi-objective study, the negated
// hypervolume of the Pareto front of every finalized trial's final values
// (§C.1) — both lower-is-better, so callers never need to branch on a
// study's objective count.
func BestValue(s record.StudyRecord) (float64, bool) {
	best := math.Inf(1)
	found := false
	var frontier [][]float64
	for _, t := range s.Trials {
		if t.Unevaluable || len(t.Evaluations) == 0 {
			continue
		}
		last := t.Evaluations[len(t.Evaluations)-1]
		if last.Values.Len() != 1 {
			frontier = append(frontier, last.Values.Slice())
			continue
		}
		if v := last.Values.At(0); v < best {
			best = v
			found = true
		}
	}
	if len(frontier) > 0 {
		return HypervolumeScore(frontier)
	}
	return best, found
}

// BestSoFarCurve returns the running minimum of a study's best observed
// value, sampled at every integer step from startStep to maxStep inclusive
// (+Inf at steps before the first reported value) — the curve AUC integrates
// over (§4.5). For a
// multi-objective study, "best observed value" is the hypervolume score
// (§C.1) of the Pareto front accumulated so far.
func BestSoFarCurve(s record.StudyRecord, startStep, maxStep uint64) (steps []float64, values []float64) {
	type point struct {
		step        uint64
		value       float64
		multi       []float64
		isMultiDims bool
	}
	var points []point
	for _, t := range s.Trials {
		for _, e := range t.Evaluations {
			if e.Values.Len() != 1 {
				points = append(points, point{step: e.EndStep, multi: e.Values.Slice(), isMultiDims: true})
				continue
			}
			points = append(points, point{step: e.EndStep, value: e.Values.At(0)})
		}
	}
	sort.Slice(points, func(i, j int) bool { return points[i].step < points[j].step })

	best := math.Inf(1)
	var frontier [][]float64
	idx := 0
	for step := startStep; step <= maxStep; step++ {
		advanced := false
		for idx < len(points) && points[idx].step <= step {
			if points[idx].isMultiDims {
				frontier = append(frontier, points[idx].multi)
			} else if points[idx].value < best {
				best = points[idx].value
			}
			idx++
			advanced = true
		}
		if advanced && len(frontier) > 0 {
			if score, ok := HypervolumeScore(frontier); ok {
				best = score
			}
		}
		steps = append(steps, float64(step))
		values = append(values, best)
	}
	return steps, values
}

// AUC computes the trapezoidal area under the best-so-far curve from
// startStep to maxStep (§4.5). startStep is the caller's
// responsibility to compute as the latest first-trial start-step across all
// competitors, so every competitor has a defined value at every integration
// point.
func AUC(s record.StudyRecord, startStep, maxStep uint64) float64 {
	steps, values := BestSoFarCurve(s, startStep, maxStep)
	if len(steps) < 2 {
		return 0
	}
	return integrate.Trapezoidal(steps, values)
}

// ElapsedTime returns a study's total wall-clock duration in seconds.
func ElapsedTime(s record.StudyRecord) float64 {
	return s.EndTime.Sub(s.StartTime).Seconds()
}

// FirstTrialStartStep returns the start_step of a study's first recorded
// evaluation, used to derive a common AUC integration start across
// competitors.
func FirstTrialStartStep(s record.StudyRecord) uint64 {
	for _, t := range s.Trials {
		if len(t.Evaluations) > 0 {
			return t.Evaluations[0].StartStep
		}
	}
	return 0
}
