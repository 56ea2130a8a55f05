package domain

import "sync/atomic"

// TrialId is a monotonically increasing identifier allocated by the study
// runner.
type TrialId uint64

// IdGenerator allocates monotonically increasing TrialIds and is safe for
// concurrent use. The study runner bumps it past each id an ask returns and
// past any id-allocation hint an external solver's reply carries.
type IdGenerator struct {
	next atomic.Uint64
}

// NewIdGenerator creates a generator that starts allocating at 1.
func NewIdGenerator() *IdGenerator {
	g := &IdGenerator{}
	g.next.Store(1)
	return g
}

// Next allocates and returns the next TrialId.
func (g *IdGenerator) Next() TrialId {
	return TrialId(g.next.Add(1) - 1)
}

// Bump advances the generator so the next allocated id is at least hint,
// honoring a child process's own internal allocations (§4.3: "the child's
// ASK_REPLY may bump it if the child allocated further ids internally").
func (g *IdGenerator) Bump(hint uint64) {
	for {
		cur := g.next.Load()
		if hint <= cur {
			return
		}
		if g.next.CompareAndSwap(cur, hint) {
			return
		}
	}
}

// Peek returns the next id that would be allocated, without allocating it.
func (g *IdGenerator) Peek() uint64 {
	return g.next.Load()
}

// Budget is a trial's evaluation budget bookkeeping.
type Budget struct {
	// Amount is the next step at which evaluation is requested.
	Amount uint64 `json:"amount"`
	// Consumption is the cumulative step count actually executed.
	Consumption uint64 `json:"consumption"`
}

// Trial is one solver-proposed point together with its accumulated result.
type Trial struct {
	Id     TrialId `json:"id"`
	Params Params  `json:"params"`
	Values Values  `json:"values"`
	Budget Budget  `json:"budget"`
}

// NextTrial is what a solver produces from an ask: a trial id, its
// parameters, and (optionally) the step at which it wants to pause.
type NextTrial struct {
	Id       TrialId `json:"id"`
	Params   Params  `json:"params"`
	NextStep *uint64 `json:"next_step,omitempty"`

	// IdAllocatedUpTo is an external solver's own account of how far it has
	// allocated trial ids internally, which may run ahead of Id (§4.3: the
	// child's ASK_REPLY may bump next_trial_id beyond the id it actually
	// returned). Zero means no hint was given. The in-process solvers in
	// this module leave it zero and use the id hint the runner passes to Ask.
	IdAllocatedUpTo uint64
}

// EvaluatedTrial is what the runner returns to the solver on tell: the
// trial id, the values observed, and the step reached.
type EvaluatedTrial struct {
	Id          TrialId `json:"id"`
	Values      Values  `json:"values"`
	CurrentStep uint64  `json:"current_step"`
}
