package domain

import (
	"encoding/json"
	"sort"
)

// MarshalJSON renders Capabilities as a sorted JSON array of strings, the
// wire shape used by SOLVER_SPEC_CAST and recipe JSON (§6).
func (c Capabilities) MarshalJSON() ([]byte, error) {
	names := make([]string, 0, len(c))
	for cap := range c {
		names = append(names, string(cap))
	}
	sort.Strings(names)
	return json.Marshal(names)
}

// UnmarshalJSON parses a JSON array of capability strings.
func (c *Capabilities) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	set := make(Capabilities, len(names))
	for _, n := range names {
		set[Capability(n)] = struct{}{}
	}
	*c = set
	return nil
}
