// Package benchmark orchestrates a whole benchmark run: for every study a
// config.Config resolves, it obtains (or reuses, via the registry) the
// solver and problem factories, runs each study's repeat count, persists
// every resulting record.StudyRecord through a Sink, and feeds the
// collected records into the ranking engine grouped by (problem, solver)
// identity (§4.1, §4.4, §4.5).
package benchmark

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/kurobako-go/kurobako/pkg/config"
	"github.com/kurobako-go/kurobako/pkg/core"
	"github.com/kurobako-go/kurobako/pkg/domain"
	"github.com/kurobako-go/kurobako/pkg/kerrors"
	"github.com/kurobako-go/kurobako/pkg/ranking"
	"github.com/kurobako-go/kurobako/pkg/record"
	"github.com/kurobako-go/kurobako/pkg/recipe"
	"github.com/kurobako-go/kurobako/pkg/registry"
	"github.com/kurobako-go/kurobako/pkg/study"
)

// Sink receives every StudyRecord. Repeats of the same study run
// concurrently, but Runner writes their records one at a time from its own
// goroutine once all repeats of that study have finished, so a Sink sees no
// concurrent calls from it. record.Writer has no locking of its own.
type Sink interface {
	Write(rec record.StudyRecord) error
}

var _ Sink = (*record.Writer)(nil)

// Runner drives every study a config.Config names against a shared
// registry, so identical solver/problem recipes across studies collapse to
// one factory per §4.1's deduplication rule.
type Runner struct {
	registry *registry.Registry
	sink     Sink
	logger   *slog.Logger
}

// NewRunner builds a Runner. sink may be nil to discard records, e.g. when
// only the ranking report is wanted.
func NewRunner(reg *registry.Registry, sink Sink) *Runner {
	return &Runner{registry: reg, sink: sink, logger: slog.Default()}
}

// WithLogger overrides the default logger and returns r for chaining.
func (r *Runner) WithLogger(logger *slog.Logger) *Runner {
	r.logger = logger
	return r
}

// Report is the final output of a benchmark run: every study's results
// grouped the way the ranking engine requires, plus the computed result.
type Report struct {
	RunId   string
	Studies map[ranking.ProblemId]map[ranking.SolverId][]record.StudyRecord
	Ranking ranking.Result
}

// Run executes every study cfg names, writing each StudyRecord to the sink
// once all repeats of its study have completed, then ranks every (problem,
// solver) pairing it collected.
func (r *Runner) Run(ctx context.Context, cfg *config.Config) (Report, error) {
	runId := uuid.NewString()
	log := r.logger.With("run_id", runId, "config_path", cfg.Path())
	log.Info("benchmark run starting", "studies", len(cfg.Studies))

	studies := map[ranking.ProblemId]map[ranking.SolverId][]record.StudyRecord{}

	for _, entry := range cfg.Studies {
		problemId, solverId, err := identities(entry)
		if err != nil {
			return Report{}, fmt.Errorf("study %q: %w", entry.Name, err)
		}

		recs, err := r.runStudy(ctx, log, entry)
		if err != nil {
			return Report{}, fmt.Errorf("study %q: %w", entry.Name, err)
		}

		bySolver, ok := studies[problemId]
		if !ok {
			bySolver = map[ranking.SolverId][]record.StudyRecord{}
			studies[problemId] = bySolver
		}
		bySolver[solverId] = append(bySolver[solverId], recs...)
	}

	result := ranking.Rank(ranking.Input{Precedence: metricPrecedence(cfg.Studies), Studies: studies})
	log.Info("benchmark run complete", "solvers_ranked", len(result.Borda), "excluded_problems", len(result.ExcludedProblems))

	return Report{RunId: runId, Studies: studies, Ranking: result}, nil
}

// runStudy resolves entry's factories and runs its repeat count
// concurrently, each repeat seeded distinctly for reproducibility across
// runs of the same recipe (§C.5).
func (r *Runner) runStudy(ctx context.Context, log *slog.Logger, entry config.ResolvedStudy) ([]record.StudyRecord, error) {
	problemFactory, err := r.registry.GetOrCreateProblem(entry.Problem)
	if err != nil {
		return nil, fmt.Errorf("resolve problem: %w", err)
	}
	solverFactory, err := r.registry.GetOrCreateSolver(entry.Solver)
	if err != nil {
		return nil, fmt.Errorf("resolve solver: %w", err)
	}

	var checkpoints *domain.StepSet
	if len(entry.Checkpoints) > 0 {
		cp, err := domain.NewStepSet(entry.Checkpoints...)
		if err != nil {
			return nil, fmt.Errorf("checkpoints: %w", err)
		}
		checkpoints = &cp
	}

	records := make([]record.StudyRecord, entry.Repeat)
	errs := make([]error, entry.Repeat)

	var wg sync.WaitGroup
	for i := range entry.Repeat {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			seed := uint64(i) + 1
			records[i], errs[i] = r.runOnce(ctx, entry, problemFactory, solverFactory, checkpoints, seed)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	for _, rec := range records {
		if r.sink == nil {
			continue
		}
		if err := r.sink.Write(rec); err != nil {
			return nil, fmt.Errorf("write record: %w", err)
		}
	}

	name := entry.Name
	if name == "" {
		name = "(unnamed)"
	}
	log.Info("study complete", "study", name, "repeats", entry.Repeat)
	return records, nil
}

// runOnce creates one solver and one problem instance from their shared
// factories and drives a single study.Runner to completion.
func (r *Runner) runOnce(ctx context.Context, entry config.ResolvedStudy, problemFactory *core.SharedProblemFactory, solverFactory *core.SharedSolverFactory, checkpoints *domain.StepSet, seed uint64) (record.StudyRecord, error) {
	problem, err := problemFactory.CreateProblem(ctx, seed)
	if err != nil {
		return record.StudyRecord{}, fmt.Errorf("create problem: %w", err)
	}
	defer problem.Close()

	solver, err := solverFactory.CreateSolver(ctx, seed, problemFactory.Specification())
	if err != nil {
		return record.StudyRecord{}, fmt.Errorf("create solver: %w", err)
	}
	defer solver.Close()

	runner, err := study.NewRunner(solver, solverFactory.Specification(), problem, problemFactory.Specification(), study.Options{
		Budget:             entry.Budget,
		Concurrency:        entry.Concurrency,
		Checkpoints:        checkpoints,
		UnevaluableCeiling: entry.UnevaluableCeiling,
		SolverRecipe:       entry.Solver,
		ProblemRecipe:      entry.Problem,
	})
	if err != nil {
		return record.StudyRecord{}, kerrors.Wrap(kerrors.InvalidRecipe, "build study runner", err)
	}

	return runner.Run(ctx)
}

// identities derives the ranking engine's (problem, solver) grouping keys
// from each recipe's canonical JSON — the same key the registry dedupes
// factories on, so two studies naming the identical recipe always land in
// the same ranking bucket regardless of key order or whitespace.
func identities(entry config.ResolvedStudy) (ranking.ProblemId, ranking.SolverId, error) {
	problemKey, err := recipe.Canonicalize(entry.Problem)
	if err != nil {
		return "", "", fmt.Errorf("canonicalize problem recipe: %w", err)
	}
	solverKey, err := recipe.Canonicalize(entry.Solver)
	if err != nil {
		return "", "", fmt.Errorf("canonicalize solver recipe: %w", err)
	}
	return ranking.ProblemId(problemKey), ranking.SolverId(solverKey), nil
}

// metricPrecedence takes the first study entry's precedence as the
// benchmark-wide ranking precedence — config validation already requires
// every entry to name at least one known metric, and in practice a
// benchmark's entries share the same defaults-derived precedence.
func metricPrecedence(entries []config.ResolvedStudy) []ranking.Metric {
	if len(entries) == 0 {
		return nil
	}
	raw := entries[0].MetricPrecedence
	out := make([]ranking.Metric, len(raw))
	for i, m := range raw {
		out[i] = ranking.Metric(m)
	}
	return out
}
