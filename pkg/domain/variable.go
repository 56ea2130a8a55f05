// Package domain defines the parameter/value space model shared by problems
// and solvers: variables, domains, distributions, params and values vectors,
// and the trial/budget types exchanged between the study runner and the
// solver/problem protocol layers.
package domain

import "fmt"

// Distribution is the sampling distribution a solver should assume for a
// continuous or discrete variable.
type Distribution string

const (
	Uniform    Distribution = "uniform"
	LogUniform Distribution = "log-uniform"
)

// RangeKind tags which concrete range a Variable carries.
type RangeKind string

const (
	RangeContinuous  RangeKind = "continuous"
	RangeDiscrete    RangeKind = "discrete"
	RangeCategorical RangeKind = "categorical"
)

// Range is the value range of a Variable. Exactly one of the three shapes
// is populated, selected by Kind.
type Range struct {
	Kind RangeKind `json:"kind" validate:"required,oneof=continuous discrete categorical"`

	// Continuous / Discrete: half-open [Low, High), Low < High.
	Low  float64 `json:"low,omitempty"`
	High float64 `json:"high,omitempty"`

	// Categorical: non-empty ordered list of labels.
	Choices []string `json:"choices,omitempty"`
}

// ContinuousRange builds a half-open continuous range [low, high).
func ContinuousRange(low, high float64) Range {
	return Range{Kind: RangeContinuous, Low: low, High: high}
}

// DiscreteRange builds an integer range [low, high).
func DiscreteRange(low, high float64) Range {
	return Range{Kind: RangeDiscrete, Low: low, High: high}
}

// CategoricalRange builds a categorical range over the given choices.
func CategoricalRange(choices ...string) Range {
	return Range{Kind: RangeCategorical, Choices: choices}
}

// Validate checks the range invariants from the domain model: low < high for
// continuous/discrete, a non-empty choice list for categorical.
func (r Range) Validate() error {
	switch r.Kind {
	case RangeContinuous, RangeDiscrete:
		if !(r.Low < r.High) {
			return fmt.Errorf("range %s requires low < high, got [%v, %v)", r.Kind, r.Low, r.High)
		}
	case RangeCategorical:
		if len(r.Choices) == 0 {
			return fmt.Errorf("categorical range requires at least one choice")
		}
	default:
		return fmt.Errorf("unknown range kind %q", r.Kind)
	}
	return nil
}

// Contains reports whether v lies within the range. For categorical ranges
// v is interpreted as a 0-based index into Choices.
func (r Range) Contains(v float64) bool {
	switch r.Kind {
	case RangeContinuous:
		return v >= r.Low && v < r.High
	case RangeDiscrete:
		return v >= r.Low && v < r.High && v == float64(int64(v))
	case RangeCategorical:
		return v >= 0 && int(v) < len(r.Choices) && v == float64(int(v))
	default:
		return false
	}
}

// Condition is a predicate over an earlier categorical variable: "<Variable>
// must equal one of <Values>" for this variable to be active.
type Condition struct {
	Variable string   `json:"variable" validate:"required"`
	Values   []string `json:"values" validate:"required,min=1"`
}

// Variable is one dimension of a search or value space.
type Variable struct {
	Name         string       `json:"name" validate:"required"`
	Range        Range        `json:"range" validate:"required"`
	Distribution Distribution `json:"distribution,omitempty"`
	Conditions   []Condition  `json:"conditions,omitempty"`
}

// Validate checks the Variable's own invariants (not the cross-variable ones
// that Domain.Validate enforces): a valid range, and LogUniform requiring a
// strictly positive lower bound on continuous/discrete ranges.
func (v Variable) Validate() error {
	if v.Name == "" {
		return fmt.Errorf("variable must have a name")
	}
	if err := v.Range.Validate(); err != nil {
		return fmt.Errorf("variable %q: %w", v.Name, err)
	}
	if v.Distribution == LogUniform {
		switch v.Range.Kind {
		case RangeContinuous, RangeDiscrete:
			if v.Range.Low <= 0 {
				return fmt.Errorf("variable %q: log-uniform distribution requires a strictly positive low bound", v.Name)
			}
		default:
			return fmt.Errorf("variable %q: log-uniform distribution is not defined for categorical ranges", v.Name)
		}
	}
	return nil
}
