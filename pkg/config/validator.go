package config

import (
	"fmt"
	"sort"

	"github.com/kurobako-go/kurobako/pkg/ranking"
	"github.com/kurobako-go/kurobako/pkg/recipe"
)

// Validator validates benchmark configuration comprehensively with clear
// error messages, mirroring the teacher's pkg/config/validator.go shape
// (one method per concern, ValidateAll sequencing them fail-fast).
type Validator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

var knownMetrics = map[string]struct{}{
	string(ranking.MetricBestValue): {},
	string(ranking.MetricAUC):       {},
	string(ranking.MetricElapsed):   {},
}

// ValidateAll performs comprehensive validation (fail-fast, stops at the
// first error) across every study entry.
func (v *Validator) ValidateAll() error {
	for i, s := range v.cfg.Studies {
		name := s.Name
		if name == "" {
			name = fmt.Sprintf("#%d", i)
		}

		if err := v.validateRecipes(s); err != nil {
			return NewValidationError(name, "", err)
		}
		if err := v.validateCheckpoints(s); err != nil {
			return NewValidationError(name, "checkpoints", err)
		}
		if err := v.validateMetricPrecedence(s); err != nil {
			return NewValidationError(name, "metric_precedence", err)
		}
		if s.Concurrency < 1 {
			return NewValidationError(name, "concurrency", fmt.Errorf("must be at least 1, got %d", s.Concurrency))
		}
		if s.Budget == 0 {
			return NewValidationError(name, "budget", fmt.Errorf("must be positive"))
		}
	}
	return nil
}

// validateRecipes decodes the study's solver and problem recipes to catch
// unknown recipe types or malformed recipe JSON at load time, rather than
// at study-run time.
func (v *Validator) validateRecipes(s ResolvedStudy) error {
	if _, err := recipe.DecodeSolver(s.Solver); err != nil {
		return fmt.Errorf("solver recipe: %w", err)
	}
	if _, err := recipe.DecodeProblem(s.Problem); err != nil {
		return fmt.Errorf("problem recipe: %w", err)
	}
	return nil
}

// validateCheckpoints ensures a configured checkpoint override is strictly
// increasing, matching domain.StepSet's own invariant (§3) so a bad config
// fails here instead of inside the study runner.
func (v *Validator) validateCheckpoints(s ResolvedStudy) error {
	if len(s.Checkpoints) == 0 {
		return nil
	}
	if !sort.SliceIsSorted(s.Checkpoints, func(i, j int) bool { return s.Checkpoints[i] < s.Checkpoints[j] }) {
		return fmt.Errorf("checkpoints must be strictly increasing, got %v", s.Checkpoints)
	}
	for i := 1; i < len(s.Checkpoints); i++ {
		if s.Checkpoints[i] == s.Checkpoints[i-1] {
			return fmt.Errorf("checkpoints must be strictly increasing, got duplicate %d", s.Checkpoints[i])
		}
	}
	if s.Checkpoints[0] == 0 {
		return fmt.Errorf("checkpoints must be positive, got 0")
	}
	return nil
}

// validateMetricPrecedence checks every configured metric name is one the
// ranking engine recognizes (§4.5).
func (v *Validator) validateMetricPrecedence(s ResolvedStudy) error {
	if len(s.MetricPrecedence) == 0 {
		return fmt.Errorf("must list at least one metric")
	}
	for _, m := range s.MetricPrecedence {
		if _, ok := knownMetrics[m]; !ok {
			return fmt.Errorf("unknown metric %q", m)
		}
	}
	return nil
}
