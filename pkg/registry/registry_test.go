package registry

import (
	"context"
	"encoding/json"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurobako-go/kurobako/pkg/core"
	"github.com/kurobako-go/kurobako/pkg/domain"
	_ "github.com/kurobako-go/kurobako/pkg/problems"
	"github.com/kurobako-go/kurobako/pkg/recipe"
)

// countingProblemRecipe is a test-only recipe that counts how many times
// CreateFactory actually runs, so deduplication can be asserted directly.
type countingRecipe struct {
	Type  string `json:"type"`
	Label string `json:"label"`
}

var createCount atomic.Int32

type stubProblemFactory struct{ spec domain.ProblemSpec }

func (f *stubProblemFactory) Specification() domain.ProblemSpec { return f.spec }
func (f *stubProblemFactory) CreateProblem(ctx context.Context, seed uint64) (core.Problem, error) {
	return nil, nil
}
func (f *stubProblemFactory) Close() error { return nil }

func init() {
	recipe.RegisterProblem("counting-test", func(data json.RawMessage) (recipe.ProblemRecipe, error) {
		var r countingRecipe
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, err
		}
		return countingProblemRecipe{r}, nil
	})
}

type countingProblemRecipe struct{ countingRecipe }

func (r countingProblemRecipe) CreateFactory(_ recipe.Resolver) (core.ProblemFactory, error) {
	createCount.Add(1)
	return &stubProblemFactory{spec: domain.ProblemSpec{Name: r.Label}}, nil
}

func TestRegistry_DeduplicatesIdenticalRecipes(t *testing.T) {
	createCount.Store(0)
	reg := New()

	recipeA := []byte(`{"type":"counting-test","label":"x"}`)
	recipeAWhitespace := []byte(`{ "label" : "x", "type": "counting-test" }`)

	f1, err := reg.GetOrCreateProblem(recipeA)
	require.NoError(t, err)
	f2, err := reg.GetOrCreateProblem(recipeAWhitespace)
	require.NoError(t, err)

	assert.Same(t, f1, f2)
	assert.Equal(t, int32(1), createCount.Load())

	runtime.KeepAlive(f1)
	runtime.KeepAlive(f2)
}

func TestRegistry_DistinctRecipesGetDistinctFactories(t *testing.T) {
	createCount.Store(0)
	reg := New()

	f1, err := reg.GetOrCreateProblem([]byte(`{"type":"counting-test","label":"a"}`))
	require.NoError(t, err)
	f2, err := reg.GetOrCreateProblem([]byte(`{"type":"counting-test","label":"b"}`))
	require.NoError(t, err)

	assert.NotSame(t, f1, f2)
	assert.Equal(t, int32(2), createCount.Load())
	runtime.KeepAlive(f1)
	runtime.KeepAlive(f2)
}

func TestRegistry_InvalidRecipeJSON(t *testing.T) {
	reg := New()
	_, err := reg.GetOrCreateProblem([]byte(`not json`))
	require.Error(t, err)
}

func TestRegistry_UnknownRecipeType(t *testing.T) {
	reg := New()
	_, err := reg.GetOrCreateProblem([]byte(`{"type":"does-not-exist"}`))
	require.Error(t, err)
}

func TestRegistry_WarmStartingRecipeResolvesSubRecipesRecursively(t *testing.T) {
	reg := New()

	// source and target are byte-for-byte identical sphere recipes, so the
	// resolver must dedupe them into a single shared sub-factory: one live
	// factory for the warm-starting wrapper plus one for the shared sphere.
	recipeJSON := []byte(`{
		"type": "warm-starting",
		"source": {"type": "sphere", "dimension": 2},
		"target": {"type": "sphere", "dimension": 2}
	}`)

	factory, err := reg.GetOrCreateProblem(recipeJSON)
	require.NoError(t, err)
	assert.Equal(t, "sphere (warm-started)", factory.Specification().Name)

	problems, _ := reg.Stats()
	assert.Equal(t, 2, problems)

	runtime.KeepAlive(factory)
}

func TestRegistry_WarmStartingRecipeRejectsMismatchedDomains(t *testing.T) {
	reg := New()

	recipeJSON := []byte(`{
		"type": "warm-starting",
		"source": {"type": "sphere", "dimension": 2},
		"target": {"type": "sphere", "dimension": 3}
	}`)

	_, err := reg.GetOrCreateProblem(recipeJSON)
	require.Error(t, err)
}

func TestRegistry_ConcurrentCreateCollapsesToOneWinner(t *testing.T) {
	createCount.Store(0)
	reg := New()

	const n = 32
	var wg sync.WaitGroup
	results := make([]*core.SharedProblemFactory, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f, err := reg.GetOrCreateProblem([]byte(`{"type":"counting-test","label":"concurrent"}`))
			require.NoError(t, err)
			results[i] = f
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Same(t, results[0], results[i])
	}
	for _, r := range results {
		runtime.KeepAlive(r)
	}
}
