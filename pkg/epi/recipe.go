package epi

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/kurobako-go/kurobako/pkg/core"
	"github.com/kurobako-go/kurobako/pkg/kerrors"
	"github.com/kurobako-go/kurobako/pkg/recipe"
)

// commandRecipe is the "command" transport recipe variant (§6): an external
// program invoked directly by path/name with arguments and environment
// overrides.
type commandRecipe struct {
	Type string            `json:"type"`
	Path string            `json:"path"`
	Args []string          `json:"args,omitempty"`
	Env  map[string]string `json:"env,omitempty"`
}

// scriptRecipe is the "embedded-script" transport recipe variant (§6): the
// program's source is carried inline in the recipe itself, materialized to
// a temp file and executed like a command recipe. Useful for shipping a
// whole study recipe (including toy solvers/problems) as one self-contained
// JSON document.
type scriptRecipe struct {
	Type        string            `json:"type"`
	Interpreter string            `json:"interpreter,omitempty"`
	Script      string            `json:"script"`
	Args        []string          `json:"args,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
}

func init() {
	recipe.RegisterProblem("command", func(data json.RawMessage) (recipe.ProblemRecipe, error) {
		var r commandRecipe
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, err
		}
		return problemCommandRecipe{r}, nil
	})
	recipe.RegisterSolver("command", func(data json.RawMessage) (recipe.SolverRecipe, error) {
		var r commandRecipe
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, err
		}
		return solverCommandRecipe{r}, nil
	})
	recipe.RegisterProblem("embedded-script", func(data json.RawMessage) (recipe.ProblemRecipe, error) {
		var r scriptRecipe
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, err
		}
		return problemScriptRecipe{r}, nil
	})
	recipe.RegisterSolver("embedded-script", func(data json.RawMessage) (recipe.SolverRecipe, error) {
		var r scriptRecipe
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, err
		}
		return solverScriptRecipe{r}, nil
	})
}

type problemCommandRecipe struct{ commandRecipe }

func (r problemCommandRecipe) CreateFactory(_ recipe.Resolver) (core.ProblemFactory, error) {
	if r.Path == "" {
		return nil, kerrors.New(kerrors.InvalidRecipe, "command problem recipe requires path")
	}
	return NewProblemFactory(context.Background(), r.Path, r.Args, r.Env, defaultLogger())
}

type solverCommandRecipe struct{ commandRecipe }

func (r solverCommandRecipe) CreateFactory(_ recipe.Resolver) (core.SolverFactory, error) {
	if r.Path == "" {
		return nil, kerrors.New(kerrors.InvalidRecipe, "command solver recipe requires path")
	}
	return NewSolverFactory(context.Background(), r.Path, r.Args, r.Env, defaultLogger())
}

type problemScriptRecipe struct{ scriptRecipe }

func (r problemScriptRecipe) CreateFactory(_ recipe.Resolver) (core.ProblemFactory, error) {
	if r.Script == "" {
		return nil, kerrors.New(kerrors.InvalidRecipe, "embedded-script problem recipe requires script")
	}
	command, args, cleanup, err := embeddedScript(r.Interpreter, r.Script)
	if err != nil {
		return nil, err
	}
	factory, err := NewProblemFactory(context.Background(), command, append(args, r.Args...), r.Env, defaultLogger())
	if err != nil {
		cleanup()
		return nil, err
	}
	return &cleanupProblemFactory{ProblemFactory: factory, cleanup: cleanup}, nil
}

type solverScriptRecipe struct{ scriptRecipe }

func (r solverScriptRecipe) CreateFactory(_ recipe.Resolver) (core.SolverFactory, error) {
	if r.Script == "" {
		return nil, kerrors.New(kerrors.InvalidRecipe, "embedded-script solver recipe requires script")
	}
	command, args, cleanup, err := embeddedScript(r.Interpreter, r.Script)
	if err != nil {
		return nil, err
	}
	factory, err := NewSolverFactory(context.Background(), command, append(args, r.Args...), r.Env, defaultLogger())
	if err != nil {
		cleanup()
		return nil, err
	}
	return &cleanupSolverFactory{SolverFactory: factory, cleanup: cleanup}, nil
}

// cleanupProblemFactory removes the temp script directory once the
// underlying factory is closed (itself triggered by the registry's
// weak-reference cleanup on SharedProblemFactory).
type cleanupProblemFactory struct {
	*ProblemFactory
	cleanup func()
}

func (f *cleanupProblemFactory) Close() error {
	err := f.ProblemFactory.Close()
	f.cleanup()
	return err
}

type cleanupSolverFactory struct {
	*SolverFactory
	cleanup func()
}

func (f *cleanupSolverFactory) Close() error {
	err := f.SolverFactory.Close()
	f.cleanup()
	return err
}

func defaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}
