package study

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurobako-go/kurobako/pkg/core"
	"github.com/kurobako-go/kurobako/pkg/domain"
	"github.com/kurobako-go/kurobako/pkg/kerrors"
)

// randomSolver asks for the fixed point (1, 2) under a fresh id each time and
// never resumes a trial — the shape of scenario 1 in §8 ("trivial study").
type randomSolver struct{ asked int }

func (s *randomSolver) Ask(ctx context.Context, idHint domain.TrialId) (domain.NextTrial, error) {
	s.asked++
	return domain.NextTrial{Id: idHint, Params: domain.NewParams(1, 2)}, nil
}
func (s *randomSolver) Tell(ctx context.Context, result domain.EvaluatedTrial) error { return nil }
func (s *randomSolver) Close() error                                                 { return nil }

// sphereProblem is a trivial single-fidelity problem: max step 1, value is
// the sum of squares of params.
type sphereProblem struct{}

func (sphereProblem) CreateEvaluator(ctx context.Context, params domain.Params) (core.Evaluator, error) {
	return &sphereEvaluator{params: params}, nil
}
func (sphereProblem) Close() error { return nil }

type sphereEvaluator struct {
	params domain.Params
	step   uint64
}

func (e *sphereEvaluator) Evaluate(ctx context.Context, maxStep uint64) (uint64, domain.Values, error) {
	sum := 0.0
	for i := 0; i < e.params.Len(); i++ {
		v := e.params.At(i)
		sum += v * v
	}
	e.step = maxStep
	return e.step, domain.NewValues(sum), nil
}
func (e *sphereEvaluator) Close() error { return nil }

func problemSpec(maxStep uint64) domain.ProblemSpec {
	steps, err := domain.NewStepSet(maxStep)
	if err != nil {
		panic(err)
	}
	params, _ := domain.NewDomain(
		domain.Variable{Name: "x", Range: domain.ContinuousRange(-5, 5)},
		domain.Variable{Name: "y", Range: domain.ContinuousRange(-5, 5)},
	)
	values, _ := domain.NewDomain(domain.Variable{Name: "objective", Range: domain.ContinuousRange(math.Inf(-1), math.Inf(1))})
	return domain.ProblemSpec{Name: "sphere", Params: params, Values: values, Steps: steps}
}

func TestRunner_TrivialStudy(t *testing.T) {
	solver := &randomSolver{}
	runner, err := NewRunner(solver, domain.SolverSpec{Name: "random", Capabilities: domain.NewCapabilities(domain.CapUniformContinuous)}, sphereProblem{}, problemSpec(1), Options{
		Budget:      10,
		Concurrency: 1,
	})
	require.NoError(t, err)

	rec, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, rec.Trials, 10)
	assert.EqualValues(t, 10, rec.Consumed())
	for _, tr := range rec.Trials {
		assert.False(t, tr.Unevaluable)
		assert.False(t, tr.Unfinished)
		require.Len(t, tr.Evaluations, 1)
		assert.EqualValues(t, 1, tr.Evaluations[0].EndStep)
		assert.GreaterOrEqual(t, tr.Evaluations[0].Values.At(0), 0.0)
	}
}

// unevaluableProblem refuses every other CreateEvaluator call.
type unevaluableProblem struct{ n int }

func (p *unevaluableProblem) CreateEvaluator(ctx context.Context, params domain.Params) (core.Evaluator, error) {
	p.n++
	if p.n%2 == 0 {
		return nil, kerrors.New(kerrors.UnevaluableParams, "refused")
	}
	return &sphereEvaluator{params: params}, nil
}
func (p *unevaluableProblem) Close() error { return nil }

func TestRunner_UnevaluableParamsAccounting(t *testing.T) {
	solver := &randomSolver{}
	problem := &unevaluableProblem{}
	runner, err := NewRunner(solver, domain.SolverSpec{Name: "random", Capabilities: domain.NewCapabilities(domain.CapUniformContinuous)}, problem, problemSpec(1), Options{
		Budget:      5,
		Concurrency: 1,
	})
	require.NoError(t, err)

	rec, err := runner.Run(context.Background())
	require.NoError(t, err)

	var unevaluable, finalized int
	for _, tr := range rec.Trials {
		if tr.Unevaluable {
			unevaluable++
		} else {
			finalized++
		}
	}
	// Problem refuses every even-numbered create_evaluator call; the study
	// stops as soon as the budget of 5 finalized steps is reached, which
	// happens right after the 5th (odd-numbered, successful) call — so only
	// 4 of the preceding even-numbered calls were ever attempted.
	assert.Equal(t, 5, finalized)
	assert.Equal(t, 4, unevaluable)
	assert.EqualValues(t, 5, rec.Consumed())
}

// multiFidelitySolver asks for the same trial id at increasing next_step
// boundaries, exercising the resume path (§8 scenario 3).
type multiFidelitySolver struct {
	steps   []uint64
	idx     int
	tellCnt int
}

func (s *multiFidelitySolver) Ask(ctx context.Context, idHint domain.TrialId) (domain.NextTrial, error) {
	if s.idx >= len(s.steps) {
		return domain.NextTrial{Id: 0, Params: domain.NewParams(1)}, nil
	}
	step := s.steps[s.idx]
	s.idx++
	return domain.NextTrial{Id: 0, Params: domain.NewParams(1), NextStep: &step}, nil
}
func (s *multiFidelitySolver) Tell(ctx context.Context, result domain.EvaluatedTrial) error {
	s.tellCnt++
	return nil
}
func (s *multiFidelitySolver) Close() error { return nil }

// idHintSolver records every id hint it was asked with, and on its first
// ask claims to have internally allocated ids past the one it actually
// used — simulating an external solver's ASK_REPLY.next_trial_id bump
// (§4.3).
type idHintSolver struct {
	hints []domain.TrialId
}

func (s *idHintSolver) Ask(ctx context.Context, idHint domain.TrialId) (domain.NextTrial, error) {
	s.hints = append(s.hints, idHint)
	nt := domain.NextTrial{Id: idHint, Params: domain.NewParams(1)}
	if len(s.hints) == 1 {
		nt.IdAllocatedUpTo = uint64(idHint) + 5
	}
	return nt, nil
}
func (s *idHintSolver) Tell(ctx context.Context, result domain.EvaluatedTrial) error { return nil }
func (s *idHintSolver) Close() error                                                { return nil }

func TestRunner_HonorsExternalSolverIdAllocationHint(t *testing.T) {
	solver := &idHintSolver{}
	runner, err := NewRunner(solver, domain.SolverSpec{Name: "id-hint", Capabilities: domain.NewCapabilities(domain.CapUniformContinuous)}, sphereProblem{}, problemSpec(1), Options{
		Budget:      3,
		Concurrency: 1,
	})
	require.NoError(t, err)

	_, err = runner.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, solver.hints, 3)
	assert.EqualValues(t, 1, solver.hints[0])
	// the first reply claimed ids below 6 were already allocated internally,
	// so the generator must skip past them rather than re-offering 2.
	assert.EqualValues(t, 6, solver.hints[1])
	assert.EqualValues(t, 7, solver.hints[2])
}

func TestRunner_MultiFidelityResume(t *testing.T) {
	solver := &multiFidelitySolver{steps: []uint64{25, 50, 100}}
	runner, err := NewRunner(solver, domain.SolverSpec{Name: "multi-fidelity", Capabilities: domain.NewCapabilities(domain.CapUniformContinuous)}, sphereProblem{}, problemSpec(100), Options{
		Budget:      100,
		Concurrency: 1,
	})
	require.NoError(t, err)

	rec, err := runner.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, rec.Trials, 1)
	tr := rec.Trials[0]
	require.Len(t, tr.Evaluations, 3)
	assert.EqualValues(t, 25, tr.Evaluations[0].EndStep)
	assert.EqualValues(t, 50, tr.Evaluations[1].EndStep)
	assert.EqualValues(t, 100, tr.Evaluations[2].EndStep)
	assert.Equal(t, 3, solver.tellCnt)
}
