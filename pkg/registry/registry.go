// Package registry implements the factory registry (§4.1): a deduplicating
// cache from canonicalized recipe JSON to a shared factory, so that
// identical recipes share one (possibly subprocess-backed) factory across a
// benchmark.
package registry

import (
	"sync"
	"weak"

	"github.com/kurobako-go/kurobako/pkg/core"
	"github.com/kurobako-go/kurobako/pkg/kerrors"
	"github.com/kurobako-go/kurobako/pkg/recipe"
)

// Registry holds two independent sub-registries — one for problems, one for
// solvers — each protected by its own lock per §4.1/§5. It implements
// recipe.Resolver so recipes that wrap sub-recipes (such as warm-starting)
// can recurse back through the same cache.
type Registry struct {
	problems subRegistry[core.SharedProblemFactory]
	solvers  subRegistry[core.SharedSolverFactory]
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		problems: subRegistry[core.SharedProblemFactory]{entries: map[string]weak.Pointer[core.SharedProblemFactory]{}},
		solvers:  subRegistry[core.SharedSolverFactory]{entries: map[string]weak.Pointer[core.SharedSolverFactory]{}},
	}
}

// subRegistry is the generic dedup cache: canonical key -> weak reference to
// a live shared handle. A single mutex protects the map (§4.2/§5); the
// caller-supplied create function runs with the lock released so a
// subprocess spawn never blocks unrelated lookups.
type subRegistry[T any] struct {
	mu      sync.Mutex
	entries map[string]weak.Pointer[T]
}

// getOrCreate looks up key under the lock, upgrading a live weak reference
// if found; otherwise it releases the lock, invokes create, and publishes
// the result. If two goroutines race to create the same key, both creations
// may run, but only the first to re-acquire the lock is published — the
// loser's factory is discarded (closed via its own Shared* cleanup once
// unreachable) per §4.1's stated collision policy.
func getOrCreate[T any](r *subRegistry[T], key string, create func() (*T, error)) (*T, error) {
	r.mu.Lock()
	if wp, ok := r.entries[key]; ok {
		if v := wp.Value(); v != nil {
			r.mu.Unlock()
			return v, nil
		}
	}
	r.mu.Unlock()

	created, err := create()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if wp, ok := r.entries[key]; ok {
		if v := wp.Value(); v != nil {
			return v, nil
		}
	}
	r.entries[key] = weak.Make(created)
	return created, nil
}

// GetOrCreateProblem canonicalizes recipeJSON and returns the shared
// ProblemFactory for it, creating one if none is currently live.
func (r *Registry) GetOrCreateProblem(recipeJSON []byte) (*core.SharedProblemFactory, error) {
	key, err := recipe.Canonicalize(recipeJSON)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.InvalidRecipe, "canonicalize problem recipe", err)
	}

	rec, err := recipe.DecodeProblem([]byte(key))
	if err != nil {
		return nil, kerrors.Wrap(kerrors.InvalidRecipe, "decode problem recipe", err)
	}

	return getOrCreate(&r.problems, key, func() (*core.SharedProblemFactory, error) {
		factory, err := rec.CreateFactory(r)
		if err != nil {
			return nil, kerrors.Wrap(kerrors.CreationFailed, "create problem factory", err)
		}
		return core.NewSharedProblemFactory(factory), nil
	})
}

// GetOrCreateSolver canonicalizes recipeJSON and returns the shared
// SolverFactory for it, creating one if none is currently live.
func (r *Registry) GetOrCreateSolver(recipeJSON []byte) (*core.SharedSolverFactory, error) {
	key, err := recipe.Canonicalize(recipeJSON)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.InvalidRecipe, "canonicalize solver recipe", err)
	}

	rec, err := recipe.DecodeSolver([]byte(key))
	if err != nil {
		return nil, kerrors.Wrap(kerrors.InvalidRecipe, "decode solver recipe", err)
	}

	return getOrCreate(&r.solvers, key, func() (*core.SharedSolverFactory, error) {
		factory, err := rec.CreateFactory(r)
		if err != nil {
			return nil, kerrors.Wrap(kerrors.CreationFailed, "create solver factory", err)
		}
		return core.NewSharedSolverFactory(factory), nil
	})
}

// ResolveProblem implements recipe.Resolver.
func (r *Registry) ResolveProblem(recipeJSON []byte) (*core.SharedProblemFactory, error) {
	return r.GetOrCreateProblem(recipeJSON)
}

// ResolveSolver implements recipe.Resolver.
func (r *Registry) ResolveSolver(recipeJSON []byte) (*core.SharedSolverFactory, error) {
	return r.GetOrCreateSolver(recipeJSON)
}

// Stats reports the number of currently-live entries in each sub-registry,
// for diagnostics/tests.
func (r *Registry) Stats() (problems, solvers int) {
	r.problems.mu.Lock()
	for _, wp := range r.problems.entries {
		if wp.Value() != nil {
			problems++
		}
	}
	r.problems.mu.Unlock()

	r.solvers.mu.Lock()
	for _, wp := range r.solvers.entries {
		if wp.Value() != nil {
			solvers++
		}
	}
	r.solvers.mu.Unlock()

	return problems, solvers
}

var _ recipe.Resolver = (*Registry)(nil)
