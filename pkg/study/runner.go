// Package study implements the study runner (§4.4): the ask-evaluate-tell
// scheduler that drives one solver against one problem under a step budget
// and logical concurrency, emitting a record.StudyRecord.
package study

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kurobako-go/kurobako/pkg/core"
	"github.com/kurobako-go/kurobako/pkg/domain"
	"github.com/kurobako-go/kurobako/pkg/kerrors"
	"github.com/kurobako-go/kurobako/pkg/record"
)

// DefaultUnevaluableCeiling is the per-study cap on UnevaluableParams
// responses; once it is reached the runner stops asking and returns the
// record collected so far, without an error (§4.4, §9).
const DefaultUnevaluableCeiling = 10_000

// Options configures one study run.
type Options struct {
	Budget uint64
	// Concurrency is the logical slot count C (§4.4).
	Concurrency int
	// Checkpoints overrides the problem's own step set for clamping
	// evaluate calls. Nil means "use the problem's declared steps".
	Checkpoints *domain.StepSet
	// UnevaluableCeiling caps UnevaluableParams responses; at the cap the
	// study stops asking and ends normally. Zero means
	// DefaultUnevaluableCeiling.
	UnevaluableCeiling int
	// SolverRecipe and ProblemRecipe are embedded verbatim into the
	// resulting StudyRecord so it is self-describing (§6).
	SolverRecipe  json.RawMessage
	ProblemRecipe json.RawMessage
}

// slot is one logical worker (§4.4 "threads"): at most one in-flight trial.
type slot struct {
	occupied         bool
	id               domain.TrialId
	params           domain.Params
	evaluator        core.Evaluator
	currentStep      uint64
	consumedForTrial uint64
	nextStepHint     *uint64
	askElapsed       float64
	evaluations      []record.EvaluationRecord
}

// Runner drives one study to completion.
type Runner struct {
	solver  core.Solver
	problem core.Problem

	solverSpec  domain.SolverSpec
	problemSpec domain.ProblemSpec

	opts Options

	idGen          *domain.IdGenerator
	globalConsumed uint64
	slots          []slot
	// parked holds evaluators for trials the solver may resume on a later
	// ask — the "pending_by_id" state of §4.4.
	parked map[domain.TrialId]*slot

	unevaluableCount int
	finalized        []record.TrialRecord
	unevaluable      []record.TrialRecord
}

// NewRunner builds a Runner. It pre-flight-checks the solver's capabilities
// against the problem's domains and requested concurrency (§4.4 pre-flight),
// returning InvalidRecipe if the pairing cannot work.
func NewRunner(solver core.Solver, solverSpec domain.SolverSpec, problem core.Problem, problemSpec domain.ProblemSpec, opts Options) (*Runner, error) {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.UnevaluableCeiling == 0 {
		opts.UnevaluableCeiling = DefaultUnevaluableCeiling
	}
	if !solverSpec.Usable(problemSpec.Params, problemSpec.Values, opts.Concurrency) {
		return nil, kerrors.New(kerrors.InvalidRecipe, "solver does not declare the capabilities this problem/concurrency require")
	}

	return &Runner{
		solver:      solver,
		problem:     problem,
		solverSpec:  solverSpec,
		problemSpec: problemSpec,
		opts:        opts,
		idGen:       domain.NewIdGenerator(),
		slots:       make([]slot, opts.Concurrency),
		parked:      map[domain.TrialId]*slot{},
	}, nil
}

// checkpoints returns the step set clamping evaluate calls — the user's
// override if given, else the problem's own declared steps.
func (r *Runner) checkpoints() domain.StepSet {
	if r.opts.Checkpoints != nil {
		return *r.opts.Checkpoints
	}
	return r.problemSpec.Steps
}

// Run executes the main loop (§4.4) and returns the completed StudyRecord.
func (r *Runner) Run(ctx context.Context) (record.StudyRecord, error) {
	start := time.Now()

	for r.globalConsumed < r.opts.Budget && r.unevaluableCount < r.opts.UnevaluableCeiling {
		if err := r.fillIdleSlots(ctx); err != nil {
			return record.StudyRecord{}, err
		}

		idx, ok := r.pickLeastWorkSlot()
		if !ok {
			// Every idle slot came back UnevaluableParams this round with
			// nothing left occupied; retry asking until something sticks,
			// the budget runs out, or the ceiling trips the loop guard.
			continue
		}

		if err := r.step(ctx, idx); err != nil {
			return record.StudyRecord{}, err
		}
	}

	r.drainPending(ctx)

	end := time.Now()
	trials := append(append([]record.TrialRecord(nil), r.finalized...), r.unevaluable...)

	return record.StudyRecord{
		Solver:      record.ActorRecord{Recipe: r.opts.SolverRecipe, Spec: mustMarshal(r.solverSpec)},
		Problem:     record.ActorRecord{Recipe: r.opts.ProblemRecipe, Spec: mustMarshal(r.problemSpec)},
		StartTime:   start,
		EndTime:     end,
		Budget:      r.opts.Budget,
		Concurrency: r.opts.Concurrency,
		Trials:      trials,
	}, nil
}

// fillIdleSlots implements §4.4 step (a): ask the solver for a trial for
// every idle slot, resuming a parked evaluator if the returned id matches
// one, otherwise creating a fresh evaluator.
func (r *Runner) fillIdleSlots(ctx context.Context) error {
	for i := range r.slots {
		if r.slots[i].occupied {
			continue
		}
		if r.globalConsumed >= r.opts.Budget {
			return nil
		}
		if r.unevaluableCount >= r.opts.UnevaluableCeiling {
			return nil
		}

		askStart := time.Now()
		next, err := r.solver.Ask(ctx, domain.TrialId(r.idGen.Peek()))
		elapsed := time.Since(askStart).Seconds()
		if err != nil {
			return err
		}
		r.idGen.Bump(uint64(next.Id) + 1)
		if next.IdAllocatedUpTo > 0 {
			r.idGen.Bump(next.IdAllocatedUpTo)
		}

		if parked, ok := r.parked[next.Id]; ok {
			delete(r.parked, next.Id)
			r.slots[i] = *parked
			r.slots[i].occupied = true
			r.slots[i].nextStepHint = next.NextStep
			r.slots[i].askElapsed += elapsed
			continue
		}

		evaluator, err := r.problem.CreateEvaluator(ctx, next.Params)
		if err != nil {
			if kerrors.Is(err, kerrors.UnevaluableParams) {
				r.unevaluableCount++
				r.unevaluable = append(r.unevaluable, record.TrialRecord{
					Id:          next.Id,
					Ask:         record.AskRecord{Params: next.Params, ElapsedSeconds: elapsed},
					Unevaluable: true,
				})
				continue
			}
			return err
		}

		r.slots[i] = slot{
			occupied:     true,
			id:           next.Id,
			params:       next.Params,
			evaluator:    evaluator,
			nextStepHint: next.NextStep,
			askElapsed:   elapsed,
		}
	}
	return nil
}

// pickLeastWorkSlot implements §4.4 step (b): the occupied slot with the
// smallest consumed_for_this_trial + planned_next_step, tie-broken by
// lowest slot index.
func (r *Runner) pickLeastWorkSlot() (int, bool) {
	best := -1
	var bestScore uint64
	for i := range r.slots {
		if !r.slots[i].occupied {
			continue
		}
		score := r.slots[i].consumedForTrial + r.plannedNextStep(i)
		if best == -1 || score < bestScore {
			best = i
			bestScore = score
		}
	}
	return best, best != -1
}

// plannedNextStep computes the step slot i would evaluate to next: the
// nearest configured checkpoint above its current step (the problem's max
// step once the trial is past every checkpoint), clamped further by any
// bound the solver attached to its last ask (§4.4 step c).
func (r *Runner) plannedNextStep(i int) uint64 {
	s := &r.slots[i]
	next := r.checkpoints().NextAfter(s.currentStep)
	if next <= s.currentStep {
		next = r.problemSpec.MaxStep()
	}
	if s.nextStepHint != nil && *s.nextStepHint > s.currentStep && *s.nextStepHint < next {
		next = *s.nextStepHint
	}
	return next
}

// step implements §4.4 steps (c)-(f) for the chosen slot.
func (r *Runner) step(ctx context.Context, i int) error {
	s := &r.slots[i]
	nextStep := r.plannedNextStep(i)

	// Never evaluate past the remaining global budget wall.
	remaining := r.opts.Budget - r.globalConsumed
	if delta := nextStep - s.currentStep; delta > remaining {
		nextStep = s.currentStep + remaining
	}

	evalStart := time.Now()
	currentStep, values, err := s.evaluator.Evaluate(ctx, nextStep)
	elapsed := time.Since(evalStart).Seconds()
	if err != nil {
		if kerrors.Is(err, kerrors.EvaluationFailed) || kerrors.Is(err, kerrors.IoError) || kerrors.Is(err, kerrors.ProtocolError) {
			return err
		}
		return kerrors.Wrap(kerrors.EvaluationFailed, "evaluate failed", err)
	}

	delta := currentStep - s.currentStep
	s.consumedForTrial += delta
	r.globalConsumed += delta
	s.evaluations = append(s.evaluations, record.EvaluationRecord{
		Values:         values,
		StartStep:      s.currentStep,
		EndStep:        currentStep,
		ElapsedSeconds: elapsed,
	})
	s.currentStep = currentStep

	tellStart := time.Now()
	if err := r.solver.Tell(ctx, domain.EvaluatedTrial{Id: s.id, Values: values, CurrentStep: currentStep}); err != nil {
		return err
	}
	tellElapsed := time.Since(tellStart).Seconds()

	if currentStep >= r.problemSpec.MaxStep() {
		r.finalized = append(r.finalized, record.TrialRecord{
			Id:          s.id,
			Ask:         record.AskRecord{Params: s.params, ElapsedSeconds: s.askElapsed},
			Evaluations: s.evaluations,
			Tell:        &record.TellRecord{ElapsedSeconds: tellElapsed},
		})
		_ = s.evaluator.Close()
		r.slots[i] = slot{}
		return nil
	}

	if r.globalConsumed >= r.opts.Budget {
		r.finalized = append(r.finalized, record.TrialRecord{
			Id:          s.id,
			Ask:         record.AskRecord{Params: s.params, ElapsedSeconds: s.askElapsed},
			Evaluations: s.evaluations,
			Unfinished:  true,
		})
		_ = s.evaluator.Close()
		r.slots[i] = slot{}
		return nil
	}

	parked := *s
	parked.occupied = false
	r.parked[s.id] = &parked
	r.slots[i] = slot{}
	return nil
}

// drainPending implements §4.4 step 2's teardown: once the budget is
// exhausted, every still-parked evaluator is dropped and its trial recorded
// as unfinished.
func (r *Runner) drainPending(ctx context.Context) {
	for id, s := range r.parked {
		r.finalized = append(r.finalized, record.TrialRecord{
			Id:          id,
			Ask:         record.AskRecord{Params: s.params, ElapsedSeconds: s.askElapsed},
			Evaluations: s.evaluations,
			Unfinished:  true,
		})
		_ = s.evaluator.Close()
	}
	r.parked = map[domain.TrialId]*slot{}

	for i := range r.slots {
		if r.slots[i].occupied {
			s := &r.slots[i]
			r.finalized = append(r.finalized, record.TrialRecord{
				Id:          s.id,
				Ask:         record.AskRecord{Params: s.params, ElapsedSeconds: s.askElapsed},
				Evaluations: s.evaluations,
				Unfinished:  true,
			})
			_ = s.evaluator.Close()
			r.slots[i] = slot{}
		}
	}
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return data
}
