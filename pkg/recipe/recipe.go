// Package recipe implements the tagged-union recipe JSON described in §4.1
// and §6: a serializable description of how to construct a Problem or
// Solver, resolved through the factory registry so that identical recipes
// share one factory.
package recipe

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/kurobako-go/kurobako/pkg/core"
)

// Resolver recursively resolves nested recipes through the registry — the
// capability §4.1 calls out for recipes like averaging or warm-starting that
// wrap sub-recipes. Implemented by *registry.Registry; declared here (not
// imported from there) so this package never depends on the registry.
type Resolver interface {
	ResolveProblem(recipeJSON []byte) (*core.SharedProblemFactory, error)
	ResolveSolver(recipeJSON []byte) (*core.SharedSolverFactory, error)
}

// ProblemRecipe is a decoded problem recipe, ready to build a factory.
type ProblemRecipe interface {
	// CreateFactory builds the concrete ProblemFactory this recipe
	// describes. resolver lets recipes that wrap other recipes (such as
	// warm-starting) resolve their sub-recipes without this package
	// depending on the registry.
	CreateFactory(resolver Resolver) (core.ProblemFactory, error)
}

// SolverRecipe is a decoded solver recipe, ready to build a factory.
type SolverRecipe interface {
	CreateFactory(resolver Resolver) (core.SolverFactory, error)
}

// envelope peeks at a recipe's type discriminant without committing to a
// concrete shape.
type envelope struct {
	Type string `json:"type"`
}

type (
	problemDecoder func(json.RawMessage) (ProblemRecipe, error)
	solverDecoder  func(json.RawMessage) (SolverRecipe, error)
)

var (
	mu              sync.RWMutex
	problemDecoders = map[string]problemDecoder{}
	solverDecoders  = map[string]solverDecoder{}
)

// RegisterProblem registers a decoder for a problem recipe's kebab-case type
// discriminant. Called from init() in the package that implements the
// recipe variant (e.g. pkg/problems, pkg/epi), so this package never needs
// to import them — the mirror of image.RegisterFormat.
func RegisterProblem(typeName string, decode problemDecoder) {
	mu.Lock()
	defer mu.Unlock()
	problemDecoders[typeName] = decode
}

// RegisterSolver registers a decoder for a solver recipe's type
// discriminant.
func RegisterSolver(typeName string, decode solverDecoder) {
	mu.Lock()
	defer mu.Unlock()
	solverDecoders[typeName] = decode
}

// DecodeProblem parses recipeJSON's type discriminant and dispatches to the
// registered decoder.
func DecodeProblem(recipeJSON []byte) (ProblemRecipe, error) {
	var env envelope
	if err := json.Unmarshal(recipeJSON, &env); err != nil {
		return nil, fmt.Errorf("decode recipe envelope: %w", err)
	}
	mu.RLock()
	decode, ok := problemDecoders[env.Type]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown problem recipe type %q", env.Type)
	}
	return decode(recipeJSON)
}

// DecodeSolver parses recipeJSON's type discriminant and dispatches to the
// registered decoder.
func DecodeSolver(recipeJSON []byte) (SolverRecipe, error) {
	var env envelope
	if err := json.Unmarshal(recipeJSON, &env); err != nil {
		return nil, fmt.Errorf("decode recipe envelope: %w", err)
	}
	mu.RLock()
	decode, ok := solverDecoders[env.Type]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown solver recipe type %q", env.Type)
	}
	return decode(recipeJSON)
}

// Canonicalize reduces recipeJSON to a deterministic string: re-marshaling
// through a generic `any` round-trip sorts object keys (encoding/json
// always emits map keys in sorted order) and drops insignificant
// whitespace, giving identical recipes the same cache key regardless of how
// they were originally formatted (§4.1, §8 "Deduplication").
func Canonicalize(recipeJSON []byte) (string, error) {
	var v any
	if err := json.Unmarshal(recipeJSON, &v); err != nil {
		return "", fmt.Errorf("canonicalize recipe: %w", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("canonicalize recipe: %w", err)
	}
	return string(out), nil
}
