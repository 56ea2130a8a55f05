package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/kurobako-go/kurobako/pkg/problems"
	_ "github.com/kurobako-go/kurobako/pkg/solvers"
)

func validStudy() ResolvedStudy {
	return ResolvedStudy{
		Name:               "s",
		Solver:             json.RawMessage(`{"type":"random"}`),
		Problem:            json.RawMessage(`{"type":"sphere","dimension":2}`),
		Repeat:             1,
		Budget:             10,
		Concurrency:        1,
		UnevaluableCeiling: 10_000,
		MetricPrecedence:   []string{"best-value"},
	}
}

func TestValidator_AcceptsValidStudy(t *testing.T) {
	cfg := &Config{Studies: []ResolvedStudy{validStudy()}}
	require.NoError(t, NewValidator(cfg).ValidateAll())
}

func TestValidator_RejectsZeroConcurrency(t *testing.T) {
	s := validStudy()
	s.Concurrency = 0
	cfg := &Config{Studies: []ResolvedStudy{s}}
	assert.Error(t, NewValidator(cfg).ValidateAll())
}

func TestValidator_RejectsZeroBudget(t *testing.T) {
	s := validStudy()
	s.Budget = 0
	cfg := &Config{Studies: []ResolvedStudy{s}}
	assert.Error(t, NewValidator(cfg).ValidateAll())
}

func TestValidator_RejectsUnknownMetric(t *testing.T) {
	s := validStudy()
	s.MetricPrecedence = []string{"not-a-metric"}
	cfg := &Config{Studies: []ResolvedStudy{s}}
	assert.Error(t, NewValidator(cfg).ValidateAll())
}

func TestValidator_RejectsEmptyMetricPrecedence(t *testing.T) {
	s := validStudy()
	s.MetricPrecedence = nil
	cfg := &Config{Studies: []ResolvedStudy{s}}
	assert.Error(t, NewValidator(cfg).ValidateAll())
}

func TestValidator_RejectsZeroCheckpoint(t *testing.T) {
	s := validStudy()
	s.Checkpoints = []uint64{0, 10}
	cfg := &Config{Studies: []ResolvedStudy{s}}
	assert.Error(t, NewValidator(cfg).ValidateAll())
}

func TestValidator_RejectsDuplicateCheckpoint(t *testing.T) {
	s := validStudy()
	s.Checkpoints = []uint64{10, 10}
	cfg := &Config{Studies: []ResolvedStudy{s}}
	assert.Error(t, NewValidator(cfg).ValidateAll())
}

func TestValidator_AcceptsIncreasingCheckpoints(t *testing.T) {
	s := validStudy()
	s.Checkpoints = []uint64{10, 20, 30}
	cfg := &Config{Studies: []ResolvedStudy{s}}
	assert.NoError(t, NewValidator(cfg).ValidateAll())
}
