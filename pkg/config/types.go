package config

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// RawRecipe carries a recipe's tagged-union JSON through a YAML document: a
// benchmark file writes `solver: {type: random}` as a native YAML mapping,
// and UnmarshalYAML re-serializes whatever value it decoded to as JSON so
// recipe.DecodeSolver/DecodeProblem see the same shape an external caller
// posting raw JSON would.
type RawRecipe json.RawMessage

func (r *RawRecipe) UnmarshalYAML(node *yaml.Node) error {
	var v any
	if err := node.Decode(&v); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	*r = RawRecipe(data)
	return nil
}

// JSON returns the recipe as json.RawMessage, ready for
// recipe.DecodeSolver/DecodeProblem or registry.GetOrCreate*.
func (r RawRecipe) JSON() json.RawMessage { return json.RawMessage(r) }

// BenchmarkYAMLConfig is the top-level shape of a benchmark YAML file: a
// defaults block plus the list of (solver, problem) pairs to study.
type BenchmarkYAMLConfig struct {
	Defaults *Defaults    `yaml:"defaults"`
	Studies  []StudyEntry `yaml:"studies"`
}

// Defaults holds the values a StudyEntry inherits when it doesn't set its
// own (mirrors the teacher's top-level `defaults:` block in
// pkg/config/loader.go's TarsyYAMLConfig.Defaults, merged onto every entry
// with mergo).
type Defaults struct {
	Budget             uint64   `yaml:"budget,omitempty" validate:"omitempty,gt=0"`
	Concurrency        int      `yaml:"concurrency,omitempty" validate:"omitempty,gt=0"`
	Checkpoints        []uint64 `yaml:"checkpoints,omitempty"`
	UnevaluableCeiling int      `yaml:"unevaluable_ceiling,omitempty" validate:"omitempty,gt=0"`
	MetricPrecedence   []string `yaml:"metric_precedence,omitempty"`
	Repeat             int      `yaml:"repeat,omitempty" validate:"omitempty,gt=0"`
}

// StudyEntry names one solver-recipe/problem-recipe pair to benchmark, plus
// any per-entry overrides of the defaults. Solver and Problem are written as
// native YAML mappings (`solver: {type: random}`) and captured via RawRecipe
// so they reach recipe.Decode{Solver,Problem} as the same tagged-union JSON
// an external caller would post.
type StudyEntry struct {
	Name    string    `yaml:"name,omitempty"`
	Solver  RawRecipe `yaml:"solver" validate:"required"`
	Problem RawRecipe `yaml:"problem" validate:"required"`

	Repeat             int      `yaml:"repeat,omitempty" validate:"omitempty,gt=0"`
	Budget             uint64   `yaml:"budget,omitempty"`
	Concurrency        int      `yaml:"concurrency,omitempty"`
	Checkpoints        []uint64 `yaml:"checkpoints,omitempty"`
	UnevaluableCeiling int      `yaml:"unevaluable_ceiling,omitempty"`
	MetricPrecedence   []string `yaml:"metric_precedence,omitempty"`
}

// ResolvedStudy is a StudyEntry with every default applied: what the
// benchmark driver actually needs to run Repeat studies of one entry.
type ResolvedStudy struct {
	Name               string
	Solver             json.RawMessage
	Problem            json.RawMessage
	Repeat             int
	Budget             uint64
	Concurrency        int
	Checkpoints        []uint64
	UnevaluableCeiling int
	MetricPrecedence   []string
}
