package domain

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainValidate_DuplicateName(t *testing.T) {
	_, err := NewDomain(
		Variable{Name: "x", Range: ContinuousRange(0, 1)},
		Variable{Name: "x", Range: ContinuousRange(0, 1)},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate variable name")
}

func TestDomainValidate_ConditionOnLaterVariable(t *testing.T) {
	_, err := NewDomain(
		Variable{
			Name:       "a",
			Range:      ContinuousRange(0, 1),
			Conditions: []Condition{{Variable: "b", Values: []string{"x"}}},
		},
		Variable{Name: "b", Range: CategoricalRange("x", "y")},
	)
	require.Error(t, err)
}

func TestDomainValidate_ConditionOnNonCategorical(t *testing.T) {
	_, err := NewDomain(
		Variable{Name: "b", Range: ContinuousRange(0, 1)},
		Variable{
			Name:       "a",
			Range:      ContinuousRange(0, 1),
			Conditions: []Condition{{Variable: "b", Values: []string{"x"}}},
		},
	)
	require.Error(t, err)
}

func TestDomainValidate_ConditionValueNotAChoice(t *testing.T) {
	_, err := NewDomain(
		Variable{Name: "b", Range: CategoricalRange("x", "y")},
		Variable{
			Name:       "a",
			Range:      ContinuousRange(0, 1),
			Conditions: []Condition{{Variable: "b", Values: []string{"z"}}},
		},
	)
	require.Error(t, err)
}

func TestDomainValidate_Valid(t *testing.T) {
	d, err := NewDomain(
		Variable{Name: "b", Range: CategoricalRange("x", "y")},
		Variable{
			Name:       "a",
			Range:      ContinuousRange(0, 1),
			Conditions: []Condition{{Variable: "b", Values: []string{"x"}}},
		},
	)
	require.NoError(t, err)
	assert.Len(t, d.Variables, 2)
}

func TestVariableValidate_LogUniformRequiresPositiveLow(t *testing.T) {
	v := Variable{Name: "x", Range: ContinuousRange(-1, 1), Distribution: LogUniform}
	require.Error(t, v.Validate())

	v2 := Variable{Name: "x", Range: ContinuousRange(0.01, 1), Distribution: LogUniform}
	require.NoError(t, v2.Validate())
}

func TestRangeContains(t *testing.T) {
	c := ContinuousRange(0, 1)
	assert.True(t, c.Contains(0))
	assert.False(t, c.Contains(1))
	assert.False(t, c.Contains(1.5))

	d := DiscreteRange(0, 3)
	assert.True(t, d.Contains(2))
	assert.False(t, d.Contains(2.5))
	assert.False(t, d.Contains(3))

	cat := CategoricalRange("a", "b")
	assert.True(t, cat.Contains(0))
	assert.True(t, cat.Contains(1))
	assert.False(t, cat.Contains(2))
}

func TestCapabilitiesIncludes(t *testing.T) {
	have := NewCapabilities(CapUniformContinuous, CapCategorical)
	require1 := NewCapabilities(CapUniformContinuous)
	require2 := NewCapabilities(CapUniformContinuous, CapConditional)

	assert.True(t, have.Includes(require1))
	assert.False(t, have.Includes(require2))
}

func TestParamsEqualityTreatsNaNAsEqual(t *testing.T) {
	p1 := NewParams(1, math.NaN(), 3)
	p2 := NewParams(1, math.NaN(), 3)
	assert.True(t, p1.Equal(p2))
	assert.Equal(t, p1.Hash(), p2.Hash())
}

func TestParamsJSONRoundTrip(t *testing.T) {
	p := NewParams(1.5, math.NaN(), -2.25)
	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Equal(t, `[1.5,null,-2.25]`, string(data))

	var out Params
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, p.Equal(out))
}

func TestStepSetNextAfter(t *testing.T) {
	s, err := NewStepSet(10, 25, 50, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(25), s.NextAfter(10))
	assert.Equal(t, uint64(100), s.NextAfter(99))
	assert.Equal(t, uint64(100), s.NextAfter(100))
	assert.Equal(t, uint64(100), s.Max())
}

func TestStepSetValidate_MustBeIncreasing(t *testing.T) {
	_, err := NewStepSet(10, 10)
	require.Error(t, err)

	_, err = NewStepSet(10, 5)
	require.Error(t, err)

	_, err = NewStepSet(0, 5)
	require.Error(t, err)
}

func TestCheckHonesty(t *testing.T) {
	d, err := NewDomain(
		Variable{Name: "kind", Range: CategoricalRange("a", "b")},
		Variable{
			Name:       "a_only",
			Range:      ContinuousRange(0, 1),
			Conditions: []Condition{{Variable: "kind", Values: []string{"a"}}},
		},
	)
	require.NoError(t, err)

	// kind=a (index 0), a_only active and in range: honest.
	require.NoError(t, CheckHonesty(d, NewParams(0, 0.5)))

	// kind=b (index 1), a_only must be NaN: honest.
	require.NoError(t, CheckHonesty(d, NewParams(1, math.NaN())))

	// kind=b but a_only has a value: dishonest.
	require.Error(t, CheckHonesty(d, NewParams(1, 0.5)))

	// kind=a but a_only is NaN: dishonest.
	require.Error(t, CheckHonesty(d, NewParams(0, math.NaN())))

	// out of range while active: dishonest.
	require.Error(t, CheckHonesty(d, NewParams(0, 5)))
}

func TestSolverSpecUsable(t *testing.T) {
	paramsDomain, err := NewDomain(Variable{Name: "x", Range: ContinuousRange(0, 1)})
	require.NoError(t, err)
	valuesDomain, err := NewDomain(Variable{Name: "y", Range: ContinuousRange(0, 1)})
	require.NoError(t, err)

	weak := SolverSpec{Name: "weak", Capabilities: NewCapabilities()}
	assert.False(t, weak.Usable(paramsDomain, valuesDomain, 1))

	strong := SolverSpec{Name: "strong", Capabilities: NewCapabilities(CapUniformContinuous)}
	assert.True(t, strong.Usable(paramsDomain, valuesDomain, 1))
	assert.False(t, strong.Usable(paramsDomain, valuesDomain, 2))

	concurrent := SolverSpec{Name: "concurrent", Capabilities: NewCapabilities(CapUniformContinuous, CapConcurrent)}
	assert.True(t, concurrent.Usable(paramsDomain, valuesDomain, 2))
}
