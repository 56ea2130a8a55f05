package ranking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kurobako-go/kurobako/pkg/domain"
	"github.com/kurobako-go/kurobako/pkg/record"
)

func studyWithBest(value float64) record.StudyRecord {
	return record.StudyRecord{
		StartTime: time.Unix(0, 0),
		EndTime:   time.Unix(1, 0),
		Trials: []record.TrialRecord{
			{
				Evaluations: []record.EvaluationRecord{
					{Values: domain.NewValues(value), StartStep: 0, EndStep: 1},
				},
			},
		},
	}
}

// TestCompareSamples_ScenarioSix reproduces §8 scenario 6: A's best-value
// samples are better (lower) than B's, clearly enough for Mann-Whitney-U at
// α=0.05 to declare A the winner.
func TestCompareSamples_ScenarioSix(t *testing.T) {
	a := []float64{0.1, 0.12, 0.11}
	b := []float64{0.3, 0.28, 0.31}

	assert.Equal(t, WinnerA, CompareSamples(a, b))
}

func TestCompareSamples_Tie(t *testing.T) {
	a := []float64{0.1, 0.2, 0.3}
	b := []float64{0.15, 0.25, 0.28}

	assert.Equal(t, Tie, CompareSamples(a, b))
}

func TestRank_ScenarioSix(t *testing.T) {
	in := Input{
		Precedence: []Metric{MetricBestValue, MetricAUC, MetricElapsed},
		Studies: map[ProblemId]map[SolverId][]record.StudyRecord{
			"p": {
				"A": {studyWithBest(0.1), studyWithBest(0.12), studyWithBest(0.11)},
				"B": {studyWithBest(0.3), studyWithBest(0.28), studyWithBest(0.31)},
			},
		},
	}

	result := Rank(in)

	assert.Equal(t, 1, result.Borda["A"])
	assert.Equal(t, 0, result.Borda["B"])
	assert.Equal(t, 1, result.Firsts["A"])
	assert.Equal(t, 0, result.Firsts["B"])
	assert.Empty(t, result.ExcludedProblems)
}

func TestRank_ExcludesProblemsWithMissingParticipants(t *testing.T) {
	in := Input{
		Precedence: []Metric{MetricBestValue},
		Studies: map[ProblemId]map[SolverId][]record.StudyRecord{
			"p1": {
				"A": {studyWithBest(0.1)},
				"B": {studyWithBest(0.2)},
			},
			"p2": {
				"A": {studyWithBest(0.1)},
				// B never ran on p2.
			},
		},
	}

	result := Rank(in)

	assert.Equal(t, []ProblemId{"p2"}, result.ExcludedProblems)
	// One study per solver on p1: the one-sided Mann-Whitney-U p-value for
	// one sample against one is 0.5, so p1 is a tie and A earns no Borda point.
	assert.Equal(t, 0, result.Borda["A"])
}
