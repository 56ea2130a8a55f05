package domain

import "fmt"

// Capability names a feature a solver supports. Problems require a subset of
// these from any solver they are paired with (see Domain.RequiredCapabilities
// and SolverSpec.Usable).
type Capability string

const (
	CapUniformContinuous    Capability = "UniformContinuous"
	CapUniformDiscrete      Capability = "UniformDiscrete"
	CapLogUniformContinuous Capability = "LogUniformContinuous"
	CapLogUniformDiscrete   Capability = "LogUniformDiscrete"
	CapCategorical          Capability = "Categorical"
	CapConditional          Capability = "Conditional"
	CapMultiObjective       Capability = "MultiObjective"
	CapConcurrent           Capability = "Concurrent"
)

// Capabilities is an unordered set of Capability values.
type Capabilities map[Capability]struct{}

// NewCapabilities builds a set from the given values.
func NewCapabilities(caps ...Capability) Capabilities {
	c := make(Capabilities, len(caps))
	for _, cap := range caps {
		c[cap] = struct{}{}
	}
	return c
}

// Has reports whether c contains cap.
func (c Capabilities) Has(cap Capability) bool {
	_, ok := c[cap]
	return ok
}

// Includes reports whether c is a superset of other — every capability in
// other is also present in c.
func (c Capabilities) Includes(other Capabilities) bool {
	for cap := range other {
		if !c.Has(cap) {
			return false
		}
	}
	return true
}

// Domain is an ordered list of Variables with pairwise-unique names.
type Domain struct {
	Variables []Variable `json:"variables"`
}

// NewDomain builds a Domain and validates it immediately, mirroring the
// teacher's fail-fast config validation style.
func NewDomain(vars ...Variable) (Domain, error) {
	d := Domain{Variables: vars}
	if err := d.Validate(); err != nil {
		return Domain{}, err
	}
	return d, nil
}

// indexByName returns the position of name in d.Variables, or -1.
func (d Domain) indexByName(name string) int {
	for i, v := range d.Variables {
		if v.Name == name {
			return i
		}
	}
	return -1
}

// Validate enforces: unique names, per-variable invariants, and that every
// condition references an earlier categorical variable whose choices include
// every value named in the condition.
func (d Domain) Validate() error {
	seen := make(map[string]int, len(d.Variables))
	for i, v := range d.Variables {
		if err := v.Validate(); err != nil {
			return err
		}
		if prior, ok := seen[v.Name]; ok {
			return fmt.Errorf("duplicate variable name %q at positions %d and %d", v.Name, prior, i)
		}
		seen[v.Name] = i

		for _, cond := range v.Conditions {
			refIdx, ok := seen[cond.Variable]
			if !ok {
				return fmt.Errorf("variable %q: condition references unknown or later variable %q", v.Name, cond.Variable)
			}
			ref := d.Variables[refIdx]
			if ref.Range.Kind != RangeCategorical {
				return fmt.Errorf("variable %q: condition references non-categorical variable %q", v.Name, cond.Variable)
			}
			for _, val := range cond.Values {
				if !containsChoice(ref.Range.Choices, val) {
					return fmt.Errorf("variable %q: condition value %q is not among %q's choices", v.Name, val, cond.Variable)
				}
			}
		}
	}
	return nil
}

func containsChoice(choices []string, val string) bool {
	for _, c := range choices {
		if c == val {
			return true
		}
	}
	return false
}

// ByName returns the variable with the given name.
func (d Domain) ByName(name string) (Variable, bool) {
	idx := d.indexByName(name)
	if idx < 0 {
		return Variable{}, false
	}
	return d.Variables[idx], true
}

// RequiredCapabilities returns the minimal Capabilities a solver needs to
// handle every variable in d, recovered from kurobako_core's
// solver/capability.rs: each variable's range kind and distribution map to
// one capability, and any conditional variable adds Conditional. It never
// adds MultiObjective, even for a multi-variable values domain; that check is
// made by SolverSpec.Usable.
func (d Domain) RequiredCapabilities() Capabilities {
	req := make(Capabilities)
	hasConditions := false
	for _, v := range d.Variables {
		if len(v.Conditions) > 0 {
			hasConditions = true
		}
		switch v.Range.Kind {
		case RangeContinuous:
			if v.Distribution == LogUniform {
				req[CapLogUniformContinuous] = struct{}{}
			} else {
				req[CapUniformContinuous] = struct{}{}
			}
		case RangeDiscrete:
			if v.Distribution == LogUniform {
				req[CapLogUniformDiscrete] = struct{}{}
			} else {
				req[CapUniformDiscrete] = struct{}{}
			}
		case RangeCategorical:
			req[CapCategorical] = struct{}{}
		}
	}
	if hasConditions {
		req[CapConditional] = struct{}{}
	}
	return req
}
