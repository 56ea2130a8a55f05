// Package problems implements the in-process reference Problem
// implementations used by the end-to-end scenarios (§8) and as building
// blocks for quick experimentation without spawning a subprocess.
package problems

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/kurobako-go/kurobako/pkg/core"
	"github.com/kurobako-go/kurobako/pkg/domain"
	"github.com/kurobako-go/kurobako/pkg/kerrors"
	"github.com/kurobako-go/kurobako/pkg/recipe"
)

// sphereRecipe builds an n-dimensional sphere function problem: f(x) =
// sum(x_i^2), one continuous variable per dimension over [-bound, bound),
// single-fidelity (one step).
type sphereRecipe struct {
	Type      string  `json:"type"`
	Dimension int     `json:"dimension"`
	Bound     float64 `json:"bound,omitempty"`
}

func init() {
	recipe.RegisterProblem("sphere", func(data json.RawMessage) (recipe.ProblemRecipe, error) {
		r := sphereRecipe{Bound: 5}
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, err
		}
		if r.Dimension <= 0 {
			return nil, kerrors.New(kerrors.InvalidRecipe, "sphere recipe requires a positive dimension")
		}
		return r, nil
	})
}

func (r sphereRecipe) CreateFactory(_ recipe.Resolver) (core.ProblemFactory, error) {
	vars := make([]domain.Variable, r.Dimension)
	for i := range vars {
		vars[i] = domain.Variable{
			Name:  fmt.Sprintf("x%d", i),
			Range: domain.ContinuousRange(-r.Bound, r.Bound),
		}
	}
	params, err := domain.NewDomain(vars...)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.InvalidRecipe, "sphere params domain", err)
	}
	values, err := domain.NewDomain(domain.Variable{Name: "value", Range: domain.ContinuousRange(0, math.Inf(1))})
	if err != nil {
		return nil, kerrors.Wrap(kerrors.InvalidRecipe, "sphere values domain", err)
	}
	steps, err := domain.NewStepSet(1)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.Bug, "sphere step set", err)
	}

	return &sphereFactory{
		spec: domain.ProblemSpec{
			Name:   "sphere",
			Attrs:  map[string]string{"dimension": fmt.Sprintf("%d", r.Dimension)},
			Params: params,
			Values: values,
			Steps:  steps,
		},
	}, nil
}

type sphereFactory struct {
	spec domain.ProblemSpec
}

func (f *sphereFactory) Specification() domain.ProblemSpec { return f.spec }

func (f *sphereFactory) CreateProblem(ctx context.Context, randomSeed uint64) (core.Problem, error) {
	return &sphereProblem{spec: f.spec}, nil
}

func (f *sphereFactory) Close() error { return nil }

type sphereProblem struct {
	spec domain.ProblemSpec
}

func (p *sphereProblem) CreateEvaluator(ctx context.Context, params domain.Params) (core.Evaluator, error) {
	if err := domain.CheckHonesty(p.spec.Params, params); err != nil {
		return nil, kerrors.Wrap(kerrors.UnevaluableParams, "dishonest params", err)
	}
	return &sphereEvaluator{params: params}, nil
}

func (p *sphereProblem) Close() error { return nil }

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
