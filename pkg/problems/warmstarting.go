package problems

import (
	"context"
	"encoding/json"
	"reflect"

	"github.com/kurobako-go/kurobako/pkg/core"
	"github.com/kurobako-go/kurobako/pkg/domain"
	"github.com/kurobako-go/kurobako/pkg/kerrors"
	"github.com/kurobako-go/kurobako/pkg/recipe"
)

// warmStartingRecipe wraps two problem recipes sharing a params/values
// domain: source is a cheaper or previously-run problem whose converged
// read informs the first evaluation of target (§4.1's "recipes that wrap
// sub-recipes", e.g. warm-starting).
type warmStartingRecipe struct {
	Type   string          `json:"type"`
	Source json.RawMessage `json:"source"`
	Target json.RawMessage `json:"target"`
}

func init() {
	recipe.RegisterProblem("warm-starting", func(data json.RawMessage) (recipe.ProblemRecipe, error) {
		var r warmStartingRecipe
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, err
		}
		if len(r.Source) == 0 || len(r.Target) == 0 {
			return nil, kerrors.New(kerrors.InvalidRecipe, "warm-starting recipe requires source and target sub-recipes")
		}
		return r, nil
	})
}

// CreateFactory resolves both sub-recipes through resolver — the registry
// passed down from the top-level GetOrCreateProblem call — so an identical
// source or target recipe elsewhere in the same run shares its factory
// rather than spawning a second one (§4.1).
func (r warmStartingRecipe) CreateFactory(resolver recipe.Resolver) (core.ProblemFactory, error) {
	sourceFactory, err := resolver.ResolveProblem(r.Source)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.InvalidRecipe, "resolve warm-starting source", err)
	}
	targetFactory, err := resolver.ResolveProblem(r.Target)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.InvalidRecipe, "resolve warm-starting target", err)
	}

	sourceSpec := sourceFactory.Specification()
	targetSpec := targetFactory.Specification()
	if !reflect.DeepEqual(sourceSpec.Params, targetSpec.Params) {
		return nil, kerrors.New(kerrors.InvalidRecipe, "warm-starting source and target must share a params domain")
	}
	if !reflect.DeepEqual(sourceSpec.Values, targetSpec.Values) {
		return nil, kerrors.New(kerrors.InvalidRecipe, "warm-starting source and target must share a values domain")
	}

	return &warmStartingFactory{
		source: sourceFactory,
		target: targetFactory,
		spec: domain.ProblemSpec{
			Name:   targetSpec.Name + " (warm-started)",
			Attrs:  targetSpec.Attrs,
			Params: targetSpec.Params,
			Values: targetSpec.Values,
			Steps:  targetSpec.Steps,
		},
	}, nil
}

type warmStartingFactory struct {
	source *core.SharedProblemFactory
	target *core.SharedProblemFactory
	spec   domain.ProblemSpec
}

func (f *warmStartingFactory) Specification() domain.ProblemSpec { return f.spec }

func (f *warmStartingFactory) CreateProblem(ctx context.Context, randomSeed uint64) (core.Problem, error) {
	sourceProblem, err := f.source.CreateProblem(ctx, randomSeed)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.CreationFailed, "warm-starting create source problem", err)
	}
	targetProblem, err := f.target.CreateProblem(ctx, randomSeed)
	if err != nil {
		_ = sourceProblem.Close()
		return nil, kerrors.Wrap(kerrors.CreationFailed, "warm-starting create target problem", err)
	}
	return &warmStartingProblem{
		source:        sourceProblem,
		target:        targetProblem,
		sourceMaxStep: f.source.Specification().MaxStep(),
	}, nil
}

func (f *warmStartingFactory) Close() error {
	sourceErr := f.source.Close()
	targetErr := f.target.Close()
	if sourceErr != nil {
		return sourceErr
	}
	return targetErr
}

type warmStartingProblem struct {
	source        core.Problem
	target        core.Problem
	sourceMaxStep uint64
}

func (p *warmStartingProblem) CreateEvaluator(ctx context.Context, params domain.Params) (core.Evaluator, error) {
	sourceEvaluator, err := p.source.CreateEvaluator(ctx, params)
	if err != nil {
		return nil, err
	}
	targetEvaluator, err := p.target.CreateEvaluator(ctx, params)
	if err != nil {
		_ = sourceEvaluator.Close()
		return nil, err
	}
	return &warmStartingEvaluator{
		source:        sourceEvaluator,
		target:        targetEvaluator,
		sourceMaxStep: p.sourceMaxStep,
	}, nil
}

func (p *warmStartingProblem) Close() error {
	sourceErr := p.source.Close()
	targetErr := p.target.Close()
	if sourceErr != nil {
		return sourceErr
	}
	return targetErr
}

// warmStartingEvaluator blends source's converged read into target's first
// evaluation only; every later call reads the target alone.
type warmStartingEvaluator struct {
	source        core.Evaluator
	target        core.Evaluator
	sourceMaxStep uint64
	warmed        bool
}

func (e *warmStartingEvaluator) Evaluate(ctx context.Context, maxStep uint64) (uint64, domain.Values, error) {
	currentStep, values, err := e.target.Evaluate(ctx, maxStep)
	if err != nil {
		return 0, domain.Values{}, err
	}
	if !e.warmed {
		e.warmed = true
		if _, sourceValues, sourceErr := e.source.Evaluate(ctx, e.sourceMaxStep); sourceErr == nil {
			values = blend(sourceValues, values)
		}
	}
	return currentStep, values, nil
}

func (e *warmStartingEvaluator) Close() error {
	sourceErr := e.source.Close()
	targetErr := e.target.Close()
	if sourceErr != nil {
		return sourceErr
	}
	return targetErr
}

// blend averages a and b element-wise — the warm-start problem's only
// blending rule, applied once per trial.
func blend(a, b domain.Values) domain.Values {
	n := a.Len()
	if b.Len() < n {
		n = b.Len()
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = (a.At(i) + b.At(i)) / 2
	}
	return domain.NewValues(out...)
}
