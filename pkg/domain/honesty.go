package domain

import "fmt"

// conditionSatisfied reports whether cond holds given the already-decoded
// category label of its referenced variable (empty string / inactive means
// the referenced variable itself was inactive, so the condition cannot be
// satisfied).
func conditionSatisfied(cond Condition, refLabel string, refActive bool) bool {
	if !refActive {
		return false
	}
	for _, want := range cond.Values {
		if want == refLabel {
			return true
		}
	}
	return false
}

// CheckHonesty verifies the "domain honesty" invariant (§8): every element
// of params either is NaN because its variable's conditions are unsatisfied,
// or lies within the variable's range. It returns a descriptive error on the
// first violation.
func CheckHonesty(d Domain, params Params) error {
	if params.Len() != len(d.Variables) {
		return fmt.Errorf("params has %d entries, domain has %d variables", params.Len(), len(d.Variables))
	}

	labels := make([]string, len(d.Variables))
	active := make([]bool, len(d.Variables))

	for i, v := range d.Variables {
		shouldBeActive := true
		for _, cond := range v.Conditions {
			refIdx := d.indexByName(cond.Variable)
			if !conditionSatisfied(cond, labels[refIdx], active[refIdx]) {
				shouldBeActive = false
				break
			}
		}

		isActive := params.IsActive(i)
		if shouldBeActive != isActive {
			if shouldBeActive {
				return fmt.Errorf("variable %q: condition satisfied but value is NaN", v.Name)
			}
			return fmt.Errorf("variable %q: condition unsatisfied but value is not NaN", v.Name)
		}

		active[i] = isActive
		if !isActive {
			continue
		}

		val := params.At(i)
		if !v.Range.Contains(val) {
			return fmt.Errorf("variable %q: value %v is out of range", v.Name, val)
		}
		if v.Range.Kind == RangeCategorical {
			labels[i] = v.Range.Choices[int(val)]
		}
	}
	return nil
}
