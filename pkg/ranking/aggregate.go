package ranking

import (
	"sort"

	"github.com/kurobako-go/kurobako/pkg/record"
)

// ProblemId and SolverId identify entrants in a benchmark. The ranking
// engine treats them as opaque comparable keys — the benchmark driver
// assigns them from recipe canonicalization.
type (
	ProblemId string
	SolverId  string
)

// Input is the full set of repeat-study results for one benchmark, grouped
// by (problem, solver) as §4.5 requires.
type Input struct {
	Precedence []Metric
	Studies    map[ProblemId]map[SolverId][]record.StudyRecord
}

// Result is the ranking engine's output: per-problem head-to-head outcomes
// plus the aggregate Borda/Firsts scores.
type Result struct {
	Borda  map[SolverId]int
	Firsts map[SolverId]int
	// ExcludedProblems lists problems where not every solver participated
	// (§4.5 "excluded from aggregate scores and listed separately").
	ExcludedProblems []ProblemId
}

// Rank computes samples for every (problem, solver), runs the pairwise
// competition, and aggregates Borda/Firsts scores across the problems where
// every solver participated.
func Rank(in Input) Result {
	allSolvers := allSolverIds(in.Studies)

	result := Result{
		Borda:  map[SolverId]int{},
		Firsts: map[SolverId]int{},
	}
	for _, s := range allSolvers {
		result.Borda[s] = 0
		result.Firsts[s] = 0
	}

	problems := sortedProblemIds(in.Studies)
	for _, problem := range problems {
		bySolver := in.Studies[problem]
		if !everyParticipates(allSolvers, bySolver) {
			result.ExcludedProblems = append(result.ExcludedProblems, problem)
			continue
		}

		samples := map[SolverId][]StudySample{}
		startStep, maxStep := commonAUCWindow(bySolver)
		for solver, studies := range bySolver {
			samples[solver] = samplesFor(studies, startStep, maxStep)
		}

		wins := map[SolverId]int{}     // solvers this one beats, for Borda
		beatenBy := map[SolverId]int{} // solvers that beat this one, for Firsts
		for i, a := range allSolvers {
			for _, b := range allSolvers[i+1:] {
				switch Compete(in.Precedence, samples[a], samples[b]) {
				case WinnerA:
					wins[a]++
					beatenBy[b]++
				case WinnerB:
					wins[b]++
					beatenBy[a]++
				}
			}
		}
		for _, s := range allSolvers {
			result.Borda[s] += wins[s]
			if beatenBy[s] == 0 {
				result.Firsts[s]++
			}
		}
	}

	return result
}

func samplesFor(studies []record.StudyRecord, startStep, maxStep uint64) []StudySample {
	out := make([]StudySample, len(studies))
	for i, s := range studies {
		best, _ := BestValue(s)
		out[i] = StudySample{
			BestValue: best,
			AUC:       AUC(s, startStep, maxStep),
			Elapsed:   ElapsedTime(s),
		}
	}
	return out
}

// commonAUCWindow returns the AUC integration bounds shared by every
// solver's studies on one problem: the latest first-trial start step (so
// every competitor has a defined value there) and the smallest, across all
// studies, of the largest step any of that study's trials reached. The end
// of the window is taken from the recorded trials only; the problem spec's
// own max step is not read.
func commonAUCWindow(bySolver map[SolverId][]record.StudyRecord) (startStep, maxStep uint64) {
	first := true
	for _, studies := range bySolver {
		for _, s := range studies {
			start := FirstTrialStartStep(s)
			if start > startStep {
				startStep = start
			}
			end := studyMaxStep(s)
			if first || end < maxStep {
				maxStep = end
				first = false
			}
		}
	}
	return startStep, maxStep
}

func studyMaxStep(s record.StudyRecord) uint64 {
	var max uint64
	for _, t := range s.Trials {
		if step := t.FinalStep(); step > max {
			max = step
		}
	}
	return max
}

func allSolverIds(studies map[ProblemId]map[SolverId][]record.StudyRecord) []SolverId {
	set := map[SolverId]struct{}{}
	for _, bySolver := range studies {
		for s := range bySolver {
			set[s] = struct{}{}
		}
	}
	out := make([]SolverId, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedProblemIds(studies map[ProblemId]map[SolverId][]record.StudyRecord) []ProblemId {
	out := make([]ProblemId, 0, len(studies))
	for p := range studies {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func everyParticipates(all []SolverId, bySolver map[SolverId][]record.StudyRecord) bool {
	for _, s := range all {
		if len(bySolver[s]) == 0 {
			return false
		}
	}
	return true
}
