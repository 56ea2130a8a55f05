package ranking

import (
	"github.com/aclements/go-moremath/stats"
)

// Alpha is the significance level for the Mann-Whitney-U comparisons (§4.5).
const Alpha = 0.05

// Metric names a per-study sample function in the precedence list.
type Metric string

const (
	MetricBestValue Metric = "best-value"
	MetricAUC       Metric = "auc"
	MetricElapsed   Metric = "elapsed-time"
)

// Winner is the outcome of comparing two solvers on one metric or problem.
type Winner int

const (
	Tie Winner = iota
	WinnerA
	WinnerB
)

// CompareSamples runs a one-sided Mann-Whitney-U test in each direction at
// Alpha significance (p at or below Alpha) and reports which sample is
// stochastically smaller (better, since every metric here is
// lower-is-better) — or Tie if neither direction is significant (§4.5 "if
// inconclusive, fall through").
func CompareSamples(a, b []float64) Winner {
	if len(a) == 0 || len(b) == 0 {
		return Tie
	}

	// The exact U distribution's smallest one-sided p for three samples
	// against three is 1/20, Alpha itself, and its floating-point evaluation
	// can come out a rounding error above that.
	const tolerance = 1e-12
	aLessB, err := stats.MannWhitneyUTest(a, b, stats.LocationLess)
	if err == nil && aLessB.P <= Alpha+tolerance {
		return WinnerA
	}
	bLessA, err := stats.MannWhitneyUTest(b, a, stats.LocationLess)
	if err == nil && bLessA.P <= Alpha+tolerance {
		return WinnerB
	}
	return Tie
}

// CompareOnMetric extracts each solver's per-study sample for metric and
// compares them.
func CompareOnMetric(metric Metric, a, b []StudySample) Winner {
	return CompareSamples(sampleFor(metric, a), sampleFor(metric, b))
}

// StudySample is one repeat-study's set of computed metrics for a
// (problem, solver) pair.
type StudySample struct {
	BestValue float64
	AUC       float64
	Elapsed   float64
}

func sampleFor(metric Metric, samples []StudySample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		switch metric {
		case MetricBestValue:
			out[i] = s.BestValue
		case MetricAUC:
			out[i] = s.AUC
		case MetricElapsed:
			out[i] = s.Elapsed
		}
	}
	return out
}

// Compete runs the §4.5 "per-problem competition": walk precedence in order,
// stopping at the first metric that yields a non-tie result.
func Compete(precedence []Metric, a, b []StudySample) Winner {
	for _, metric := range precedence {
		if w := CompareOnMetric(metric, a, b); w != Tie {
			return w
		}
	}
	return Tie
}
