// Package solvers implements the in-process reference Solver
// implementations: a uniform-random sampler usable against any domain, and a
// single-objective hill climber for continuous-only problems.
package solvers

import (
	"context"
	"encoding/json"
	"math"
	"math/rand/v2"

	"github.com/kurobako-go/kurobako/pkg/core"
	"github.com/kurobako-go/kurobako/pkg/domain"
	"github.com/kurobako-go/kurobako/pkg/recipe"
)

type randomRecipe struct {
	Type string `json:"type"`
}

func init() {
	recipe.RegisterSolver("random", func(data json.RawMessage) (recipe.SolverRecipe, error) {
		return randomRecipe{}, nil
	})
}

func (randomRecipe) CreateFactory(_ recipe.Resolver) (core.SolverFactory, error) {
	return &randomFactory{}, nil
}

type randomFactory struct{}

func (f *randomFactory) Specification() domain.SolverSpec {
	return domain.SolverSpec{
		Name: "random",
		Capabilities: domain.NewCapabilities(
			domain.CapUniformContinuous,
			domain.CapUniformDiscrete,
			domain.CapLogUniformContinuous,
			domain.CapLogUniformDiscrete,
			domain.CapCategorical,
			domain.CapConditional,
			domain.CapMultiObjective,
			domain.CapConcurrent,
		),
	}
}

func (f *randomFactory) CreateSolver(ctx context.Context, randomSeed uint64, problem domain.ProblemSpec) (core.Solver, error) {
	return &randomSolver{
		problem: problem,
		rng:     rand.New(rand.NewPCG(randomSeed, randomSeed^0x9e3779b97f4a7c15)),
	}, nil
}

func (f *randomFactory) Close() error { return nil }

// randomSolver samples every active parameter uniformly within its range on
// every ask, respecting conditional activation and the problem's
// distribution hints (log-uniform sampled in log-space).
type randomSolver struct {
	problem domain.ProblemSpec
	rng     *rand.Rand
}

func (s *randomSolver) Ask(ctx context.Context, idHint domain.TrialId) (domain.NextTrial, error) {
	d := s.problem.Params
	values := make([]float64, len(d.Variables))
	labels := make([]string, len(d.Variables))
	active := make([]bool, len(d.Variables))

	for i, v := range d.Variables {
		shouldBeActive := true
		for _, cond := range v.Conditions {
			refIdx := indexOf(d, cond.Variable)
			if refIdx < 0 || !active[refIdx] || !contains(cond.Values, labels[refIdx]) {
				shouldBeActive = false
				break
			}
		}
		if !shouldBeActive {
			values[i] = math.NaN()
			continue
		}
		active[i] = true
		values[i] = s.sample(v)
		if v.Range.Kind == domain.RangeCategorical {
			labels[i] = v.Range.Choices[int(values[i])]
		}
	}

	return domain.NextTrial{Id: idHint, Params: domain.NewParams(values...)}, nil
}

func (s *randomSolver) sample(v domain.Variable) float64 {
	switch v.Range.Kind {
	case domain.RangeCategorical:
		return float64(s.rng.IntN(len(v.Range.Choices)))
	case domain.RangeDiscrete:
		lo, hi := int64(v.Range.Low), int64(v.Range.High)
		if v.Distribution == domain.LogUniform {
			return math.Floor(s.sampleLogUniform(v.Range.Low, v.Range.High))
		}
		return float64(lo + s.rng.Int64N(hi-lo))
	default: // continuous
		if v.Distribution == domain.LogUniform {
			return s.sampleLogUniform(v.Range.Low, v.Range.High)
		}
		return v.Range.Low + s.rng.Float64()*(v.Range.High-v.Range.Low)
	}
}

func (s *randomSolver) sampleLogUniform(low, high float64) float64 {
	logLow, logHigh := math.Log(low), math.Log(high)
	return math.Exp(logLow + s.rng.Float64()*(logHigh-logLow))
}

func (s *randomSolver) Tell(ctx context.Context, result domain.EvaluatedTrial) error { return nil }

func (s *randomSolver) Close() error { return nil }

func indexOf(d domain.Domain, name string) int {
	for i, v := range d.Variables {
		if v.Name == name {
			return i
		}
	}
	return -1
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
