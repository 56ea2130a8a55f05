package benchmark

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurobako-go/kurobako/pkg/config"
	_ "github.com/kurobako-go/kurobako/pkg/problems"
	"github.com/kurobako-go/kurobako/pkg/record"
	"github.com/kurobako-go/kurobako/pkg/registry"
	_ "github.com/kurobako-go/kurobako/pkg/solvers"
)

// memorySink collects every record it's given and is safe for concurrent
// use.
type memorySink struct {
	mu      sync.Mutex
	records []record.StudyRecord
}

func (s *memorySink) Write(rec record.StudyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func sphereProblem(dim int) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"type":"sphere","dimension":%d}`, dim))
}

func randomSolver() json.RawMessage {
	return json.RawMessage(`{"type":"random"}`)
}

func hillClimbSolver() json.RawMessage {
	return json.RawMessage(`{"type":"hill-climb"}`)
}

func TestRunner_RunsRepeatsAndWritesRecords(t *testing.T) {
	reg := registry.New()
	sink := &memorySink{}
	runner := NewRunner(reg, sink)

	cfg := &config.Config{Studies: []config.ResolvedStudy{
		{
			Name:               "sphere-random",
			Solver:             randomSolver(),
			Problem:            sphereProblem(2),
			Repeat:             3,
			Budget:             20,
			Concurrency:        1,
			UnevaluableCeiling: 1000,
			MetricPrecedence:   []string{"best-value", "auc", "elapsed-time"},
		},
	}}

	report, err := runner.Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotEmpty(t, report.RunId)
	assert.Len(t, sink.records, 3)
	assert.Len(t, report.Studies, 1)

	for _, bySolver := range report.Studies {
		for _, studies := range bySolver {
			assert.Len(t, studies, 3)
			for _, s := range studies {
				assert.Equal(t, uint64(20), s.Budget)
			}
		}
	}
}

func TestRunner_DedupesFactoriesAcrossStudies(t *testing.T) {
	reg := registry.New()
	runner := NewRunner(reg, nil)

	cfg := &config.Config{Studies: []config.ResolvedStudy{
		{
			Name: "a", Solver: randomSolver(), Problem: sphereProblem(2),
			Repeat: 1, Budget: 10, Concurrency: 1, UnevaluableCeiling: 1000,
			MetricPrecedence: []string{"best-value"},
		},
		{
			Name: "b", Solver: json.RawMessage(`{ "type" : "random" }`), Problem: sphereProblem(2),
			Repeat: 1, Budget: 10, Concurrency: 1, UnevaluableCeiling: 1000,
			MetricPrecedence: []string{"best-value"},
		},
	}}

	_, err := runner.Run(context.Background(), cfg)
	require.NoError(t, err)

	problems, solvers := reg.Stats()
	assert.Equal(t, 1, problems)
	assert.Equal(t, 1, solvers)
}

func TestRunner_RanksAcrossSolversOnSharedProblem(t *testing.T) {
	reg := registry.New()
	runner := NewRunner(reg, nil)

	cfg := &config.Config{Studies: []config.ResolvedStudy{
		{
			Name: "sphere-random", Solver: randomSolver(), Problem: sphereProblem(1),
			Repeat: 4, Budget: 10, Concurrency: 1, UnevaluableCeiling: 1000,
			MetricPrecedence: []string{"best-value", "auc", "elapsed-time"},
		},
		{
			Name: "sphere-hillclimb", Solver: hillClimbSolver(), Problem: sphereProblem(1),
			Repeat: 4, Budget: 10, Concurrency: 1, UnevaluableCeiling: 1000,
			MetricPrecedence: []string{"best-value", "auc", "elapsed-time"},
		},
	}}

	report, err := runner.Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Empty(t, report.Ranking.ExcludedProblems)
	assert.Len(t, report.Ranking.Borda, 2)
	assert.Len(t, report.Ranking.Firsts, 2)
}

func TestRunner_RejectsIncapableSolverProblemPairing(t *testing.T) {
	reg := registry.New()
	runner := NewRunner(reg, nil)

	cfg := &config.Config{Studies: []config.ResolvedStudy{
		{
			// hill-climb never declares CapConcurrent, so asking for 2
			// logical slots must fail the runner's pre-flight check.
			Name: "bad", Solver: hillClimbSolver(), Problem: sphereProblem(2),
			Repeat: 1, Budget: 10, Concurrency: 2, UnevaluableCeiling: 1000,
			MetricPrecedence: []string{"best-value"},
		},
	}}

	_, err := runner.Run(context.Background(), cfg)
	require.Error(t, err)
}
