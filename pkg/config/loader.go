package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"dario.cat/mergo"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Initialize loads, validates, and returns ready-to-use benchmark
// configuration. This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Read the YAML file at path
//  2. Expand environment variables
//  3. Parse YAML into BenchmarkYAMLConfig
//  4. Struct-tag validate every raw study entry
//  5. Merge the top-level defaults into each entry's unset fields
//  6. Cross-field validate (recipe JSON decodes, metric names known, etc.)
//  7. Return Config ready for use
func Initialize(ctx context.Context, path string) (*Config, error) {
	log := slog.With("config_path", path)
	log.Info("loading benchmark configuration")

	cfg, err := load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	stats := cfg.Stats()
	log.Info("benchmark configuration loaded", "studies", stats.Studies, "total_repeats", stats.TotalRepeats)
	return cfg, nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewLoadError(path, fmt.Errorf("%w: %s", ErrConfigNotFound, path))
		}
		return nil, NewLoadError(path, err)
	}

	data = ExpandEnv(data)

	var raw BenchmarkYAMLConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}

	if len(raw.Studies) == 0 {
		return nil, NewLoadError(path, ErrNoStudies)
	}

	v := validator.New()
	for i, entry := range raw.Studies {
		if err := v.Struct(entry); err != nil {
			name := entry.Name
			if name == "" {
				name = fmt.Sprintf("#%d", i)
			}
			return nil, NewLoadError(path, NewValidationError(name, "", err))
		}
	}

	defaults := raw.Defaults
	if defaults == nil {
		defaults = &Defaults{}
	}
	if defaults.Budget == 0 {
		defaults.Budget = 1000
	}
	if defaults.Concurrency == 0 {
		defaults.Concurrency = 1
	}
	if defaults.UnevaluableCeiling == 0 {
		defaults.UnevaluableCeiling = 10_000
	}
	if defaults.Repeat == 0 {
		defaults.Repeat = 1
	}

	resolved := make([]ResolvedStudy, len(raw.Studies))
	for i, entry := range raw.Studies {
		r, err := resolveStudy(entry, defaults)
		if err != nil {
			name := entry.Name
			if name == "" {
				name = fmt.Sprintf("#%d", i)
			}
			return nil, NewLoadError(path, fmt.Errorf("study %q: %w", name, err))
		}
		resolved[i] = r
	}

	return &Config{path: path, Studies: resolved}, nil
}

// resolveStudy merges defaults into entry's unset fields (plain mergo.Merge
// with no override option, so a value the entry already set survives and
// only zero-valued fields are filled from defaults).
func resolveStudy(entry StudyEntry, defaults *Defaults) (ResolvedStudy, error) {
	merged := Defaults{
		Budget:             entry.Budget,
		Concurrency:        entry.Concurrency,
		Checkpoints:        entry.Checkpoints,
		UnevaluableCeiling: entry.UnevaluableCeiling,
		MetricPrecedence:   entry.MetricPrecedence,
		Repeat:             entry.Repeat,
	}
	if err := mergo.Merge(&merged, *defaults); err != nil {
		return ResolvedStudy{}, fmt.Errorf("merge defaults: %w", err)
	}

	precedence := merged.MetricPrecedence
	if len(precedence) == 0 {
		precedence = []string{"best-value", "auc", "elapsed-time"}
	}

	return ResolvedStudy{
		Name:               entry.Name,
		Solver:             entry.Solver.JSON(),
		Problem:            entry.Problem.JSON(),
		Repeat:             merged.Repeat,
		Budget:             merged.Budget,
		Concurrency:        merged.Concurrency,
		Checkpoints:        merged.Checkpoints,
		UnevaluableCeiling: merged.UnevaluableCeiling,
		MetricPrecedence:   precedence,
	}, nil
}

// validate runs the cross-field checks struct tags can't express (recipe
// JSON decodability, checkpoint monotonicity, known metric names) — the
// teacher's validator.go sequencing pattern, with only one section since a
// benchmark config has no agent/chain/MCP-server cross-references.
func validate(cfg *Config) error {
	return NewValidator(cfg).ValidateAll()
}
