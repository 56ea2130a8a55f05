package solvers

import (
	"context"
	"encoding/json"
	"math"
	"math/rand/v2"

	"github.com/kurobako-go/kurobako/pkg/core"
	"github.com/kurobako-go/kurobako/pkg/domain"
	"github.com/kurobako-go/kurobako/pkg/kerrors"
	"github.com/kurobako-go/kurobako/pkg/recipe"
)

// hillClimbRecipe configures a single-objective, continuous-only local
// search solver: perturb the current best point by a uniform step of at
// most StepScale times each variable's span (the scale stays fixed), keep
// the perturbation if it improves on the incumbent.
type hillClimbRecipe struct {
	Type      string  `json:"type"`
	StepScale float64 `json:"step_scale,omitempty"`
}

func init() {
	recipe.RegisterSolver("hill-climb", func(data json.RawMessage) (recipe.SolverRecipe, error) {
		r := hillClimbRecipe{StepScale: 0.1}
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, err
		}
		return r, nil
	})
}

func (r hillClimbRecipe) CreateFactory(_ recipe.Resolver) (core.SolverFactory, error) {
	return &hillClimbFactory{stepScale: r.StepScale}, nil
}

type hillClimbFactory struct {
	stepScale float64
}

func (f *hillClimbFactory) Specification() domain.SolverSpec {
	return domain.SolverSpec{
		Name: "hill-climb",
		Capabilities: domain.NewCapabilities(
			domain.CapUniformContinuous,
			domain.CapLogUniformContinuous,
		),
	}
}

func (f *hillClimbFactory) CreateSolver(ctx context.Context, randomSeed uint64, problem domain.ProblemSpec) (core.Solver, error) {
	if problem.IsMultiObjective() {
		return nil, kerrors.New(kerrors.InvalidRecipe, "hill-climb solver requires a single-objective problem")
	}
	for _, v := range problem.Params.Variables {
		if v.Range.Kind != domain.RangeContinuous {
			return nil, kerrors.New(kerrors.InvalidRecipe, "hill-climb solver only supports continuous parameters")
		}
	}
	return &hillClimbSolver{
		problem:   problem,
		stepScale: f.stepScale,
		rng:       rand.New(rand.NewPCG(randomSeed, randomSeed^0xd1b54a32d192ed03)),
		best:      math.Inf(1),
	}, nil
}

func (f *hillClimbFactory) Close() error { return nil }

type hillClimbSolver struct {
	problem   domain.ProblemSpec
	stepScale float64
	rng       *rand.Rand

	incumbent domain.Params
	best      float64
	have      bool

	inFlight map[domain.TrialId]domain.Params
}

func (s *hillClimbSolver) Ask(ctx context.Context, idHint domain.TrialId) (domain.NextTrial, error) {
	if s.inFlight == nil {
		s.inFlight = map[domain.TrialId]domain.Params{}
	}

	var candidate []float64
	if !s.have {
		candidate = make([]float64, len(s.problem.Params.Variables))
		for i, v := range s.problem.Params.Variables {
			candidate[i] = v.Range.Low + s.rng.Float64()*(v.Range.High-v.Range.Low)
		}
	} else {
		candidate = s.incumbent.Slice()
		for i, v := range s.problem.Params.Variables {
			span := v.Range.High - v.Range.Low
			candidate[i] += (s.rng.Float64()*2 - 1) * span * s.stepScale
			if candidate[i] < v.Range.Low {
				candidate[i] = v.Range.Low
			}
			if candidate[i] >= v.Range.High {
				candidate[i] = math.Nextafter(v.Range.High, v.Range.Low)
			}
		}
	}

	params := domain.NewParams(candidate...)
	s.inFlight[idHint] = params
	return domain.NextTrial{Id: idHint, Params: params}, nil
}

func (s *hillClimbSolver) Tell(ctx context.Context, result domain.EvaluatedTrial) error {
	params, ok := s.inFlight[result.Id]
	if !ok {
		return nil
	}
	delete(s.inFlight, result.Id)

	if result.Values.Len() != 1 {
		return kerrors.New(kerrors.Bug, "hill-climb solver received a multi-objective result")
	}
	v := result.Values.At(0)
	if !s.have || v < s.best {
		s.best = v
		s.incumbent = params
		s.have = true
	}
	return nil
}

func (s *hillClimbSolver) Close() error { return nil }
