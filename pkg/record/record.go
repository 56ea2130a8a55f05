// Package record defines the durable output of a study: the StudyRecord
// tree and its NDJSON file format (§6), plus the content-hash identifiers
// that make a record's id independent of serialization key order (§8).
package record

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/kurobako-go/kurobako/pkg/domain"
	"github.com/kurobako-go/kurobako/pkg/recipe"
)

// AskRecord captures one ask() call: the params it returned (NaN-encoded as
// null per §6) and how long the call took.
type AskRecord struct {
	Params         domain.Params `json:"params"`
	ElapsedSeconds float64       `json:"elapsed_seconds"`
}

// EvaluationRecord captures one evaluate() call.
type EvaluationRecord struct {
	Values         domain.Values `json:"values"`
	StartStep      uint64        `json:"start_step"`
	EndStep        uint64        `json:"end_step"`
	ElapsedSeconds float64       `json:"elapsed_seconds"`
}

// TellRecord captures one tell() call's latency.
type TellRecord struct {
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// TrialRecord is one ask-evaluate-tell cycle's full history.
type TrialRecord struct {
	Id          domain.TrialId     `json:"id"`
	Ask         AskRecord          `json:"ask"`
	Evaluations []EvaluationRecord `json:"evaluations"`
	Tell        *TellRecord        `json:"tell,omitempty"`

	// Unevaluable marks a trial whose create_evaluator call was refused
	// with UnevaluableParams (§4.4): no evaluations, no tell, counted
	// separately from finalized trials.
	Unevaluable bool `json:"unevaluable,omitempty"`

	// Unfinished marks a trial whose last evaluation did not reach the
	// problem's max step because the study budget ran out mid-trial
	// (§4.4 "failure semantics for partial trials").
	Unfinished bool `json:"unfinished,omitempty"`
}

// FinalStep returns the step reached by the trial's last evaluation, or 0
// if it has none.
func (t TrialRecord) FinalStep() uint64 {
	if len(t.Evaluations) == 0 {
		return 0
	}
	return t.Evaluations[len(t.Evaluations)-1].EndStep
}

// StepsConsumed returns the sum of (end_step - start_step) across every
// evaluation — the budget this trial charged to the study (§8 "budget
// conservation").
func (t TrialRecord) StepsConsumed() uint64 {
	var total uint64
	for _, e := range t.Evaluations {
		total += e.EndStep - e.StartStep
	}
	return total
}

// ActorRecord names a solver or problem alongside the recipe that built it
// and the spec it reported, so a StudyRecord is self-describing.
type ActorRecord struct {
	Recipe json.RawMessage `json:"recipe"`
	Spec   json.RawMessage `json:"spec"`
}

// StudyRecord is the full output of one study: the (solver, problem,
// budget, concurrency) tuple it ran plus every trial it produced (§6).
type StudyRecord struct {
	Solver      ActorRecord   `json:"solver"`
	Problem     ActorRecord   `json:"problem"`
	StartTime   time.Time     `json:"start_time"`
	EndTime     time.Time     `json:"end_time"`
	Budget      uint64        `json:"budget"`
	Concurrency int           `json:"concurrency"`
	Trials      []TrialRecord `json:"trials"`
}

// Consumed returns the total steps charged across every trial in the
// record, finalized or not.
func (s StudyRecord) Consumed() uint64 {
	var total uint64
	for _, t := range s.Trials {
		total += t.StepsConsumed()
	}
	return total
}

// Id computes the record's stable identifier: SHA-256 over the record's
// canonical JSON form, hex encoded. Struct fields marshal in declaration
// order, and the embedded recipe and spec JSON is first canonicalized
// (sorted keys, no insignificant whitespace), so two StudyRecords hash
// identically regardless of the key order their embedded JSON arrived in
// (§8 "record IDs are stable").
func (s StudyRecord) Id() (string, error) {
	for _, raw := range []*json.RawMessage{&s.Solver.Recipe, &s.Solver.Spec, &s.Problem.Recipe, &s.Problem.Spec} {
		if len(*raw) == 0 {
			continue
		}
		canon, err := recipe.Canonicalize(*raw)
		if err != nil {
			return "", err
		}
		*raw = json.RawMessage(canon)
	}
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
