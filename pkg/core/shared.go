package core

import "runtime"

// SharedProblemFactory is the strong handle the registry hands out for a
// ProblemFactory. Callers pass this pointer around freely; the registry
// itself only ever stores a weak.Pointer to it (see pkg/registry), so once
// every caller drops its reference and the handle is collected, the
// underlying factory's Close is invoked automatically via runtime.AddCleanup
// — for an external-program-backed factory that kills the child process,
// preventing zombies per §4.3 without requiring explicit scope-based
// teardown from every caller.
type SharedProblemFactory struct {
	ProblemFactory
}

// NewSharedProblemFactory wraps factory and arranges for its Close to run
// when the returned handle becomes unreachable.
func NewSharedProblemFactory(factory ProblemFactory) *SharedProblemFactory {
	h := &SharedProblemFactory{ProblemFactory: factory}
	runtime.AddCleanup(h, func(f ProblemFactory) { _ = f.Close() }, factory)
	return h
}

// SharedSolverFactory is the SolverFactory analogue of SharedProblemFactory.
type SharedSolverFactory struct {
	SolverFactory
}

// NewSharedSolverFactory wraps factory and arranges for its Close to run
// when the returned handle becomes unreachable.
func NewSharedSolverFactory(factory SolverFactory) *SharedSolverFactory {
	h := &SharedSolverFactory{SolverFactory: factory}
	runtime.AddCleanup(h, func(f SolverFactory) { _ = f.Close() }, factory)
	return h
}
