// Package core defines the Problem/Solver/Evaluator interfaces every
// concrete problem or solver implementation (in-process or external-program
// backed) satisfies, plus the shared factory handles the registry hands out
// (released by a runtime cleanup once no longer reachable).
package core

import (
	"context"

	"github.com/kurobako-go/kurobako/pkg/domain"
)

// Solver proposes trials and learns from their evaluated results. One Solver
// instance is scoped to a single study.
type Solver interface {
	// Ask returns the next trial the solver wants evaluated. idHint is the
	// runner's next-free TrialId; implementations that allocate ids
	// internally (as an external-program child may) can return a different
	// id. The runner resumes the suspended trial with the returned id if it
	// holds one; otherwise it starts a new trial under that id.
	Ask(ctx context.Context, idHint domain.TrialId) (domain.NextTrial, error)

	// Tell reports a trial's evaluated result back to the solver.
	Tell(ctx context.Context, result domain.EvaluatedTrial) error

	// Close releases the solver instance.
	Close() error
}

// Evaluator advances one trial's evaluation up to a step.
type Evaluator interface {
	// Evaluate runs (or resumes) the evaluation up to maxStep, returning the
	// step actually reached and the values observed there. current_step is
	// monotonically non-decreasing across calls on the same Evaluator.
	Evaluate(ctx context.Context, maxStep uint64) (currentStep uint64, values domain.Values, err error)

	// Close releases the evaluator. Safe to call without a prior Evaluate.
	Close() error
}

// Problem creates Evaluators for specific parameter points. One Problem
// instance is scoped to a single study.
type Problem interface {
	// CreateEvaluator builds an Evaluator for params. Returns an
	// *kerrors.Error with Kind UnevaluableParams if the problem refuses
	// this point.
	CreateEvaluator(ctx context.Context, params domain.Params) (Evaluator, error)

	// Close releases the problem instance.
	Close() error
}

// SolverFactory creates Solver instances sharing whatever backing resource
// (in-process state, a subprocess) the recipe it was built from describes.
type SolverFactory interface {
	Specification() domain.SolverSpec
	CreateSolver(ctx context.Context, randomSeed uint64, problem domain.ProblemSpec) (Solver, error)
	Close() error
}

// ProblemFactory creates Problem instances sharing whatever backing
// resource the recipe it was built from describes.
type ProblemFactory interface {
	Specification() domain.ProblemSpec
	CreateProblem(ctx context.Context, randomSeed uint64) (Problem, error)
	Close() error
}
