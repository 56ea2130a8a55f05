// Package epi implements the external-program protocol (§4.2, §4.3): a
// length-implicit, newline-delimited JSON channel over a child process's
// stdin/stdout, and the host that multiplexes solver/problem/evaluator
// handles over it.
package epi

import (
	"github.com/kurobako-go/kurobako/pkg/domain"
)

// marker is the sentinel line-start prefix that distinguishes protocol
// messages from a child's own log output sharing the same stdout stream
// (§4.2). The design note in §9 resolves the teacher implementation's
// inconsistency across generations by requiring it in both directions.
const marker = "kurobako:"

// MessageType is the SCREAMING_SNAKE_CASE message discriminant (§4.3, §6).
type MessageType string

const (
	SolverSpecCast       MessageType = "SOLVER_SPEC_CAST"
	ProblemSpecCast      MessageType = "PROBLEM_SPEC_CAST"
	CreateSolverCast     MessageType = "CREATE_SOLVER_CAST"
	DropSolverCast       MessageType = "DROP_SOLVER_CAST"
	AskCall              MessageType = "ASK_CALL"
	AskReply             MessageType = "ASK_REPLY"
	TellCall             MessageType = "TELL_CALL"
	TellReply            MessageType = "TELL_REPLY"
	CreateProblemCast    MessageType = "CREATE_PROBLEM_CAST"
	DropProblemCast      MessageType = "DROP_PROBLEM_CAST"
	CreateEvaluatorCall  MessageType = "CREATE_EVALUATOR_CALL"
	CreateEvaluatorReply MessageType = "CREATE_EVALUATOR_REPLY"
	DropEvaluatorCast    MessageType = "DROP_EVALUATOR_CAST"
	EvaluateCall         MessageType = "EVALUATE_CALL"
	EvaluateReply        MessageType = "EVALUATE_REPLY"
	ErrorReply           MessageType = "ERROR_REPLY"
)

// Handshake payloads.

type solverSpecCast struct {
	Type MessageType      `json:"type"`
	Spec domain.SolverSpec `json:"spec"`
}

type problemSpecCast struct {
	Type MessageType       `json:"type"`
	Spec domain.ProblemSpec `json:"spec"`
}

// Solver protocol payloads.

type createSolverCast struct {
	Type       MessageType        `json:"type"`
	SolverId   uint64             `json:"solver_id"`
	RandomSeed uint64             `json:"random_seed"`
	Problem    domain.ProblemSpec `json:"problem"`
}

type dropSolverCast struct {
	Type     MessageType `json:"type"`
	SolverId uint64      `json:"solver_id"`
}

type askCall struct {
	Type        MessageType `json:"type"`
	SolverId    uint64      `json:"solver_id"`
	NextTrialId uint64      `json:"next_trial_id"`
}

type askReply struct {
	Type        MessageType   `json:"type"`
	TrialId     domain.TrialId `json:"trial_id"`
	NextStep    *uint64       `json:"next_step,omitempty"`
	Params      domain.Params `json:"params"`
	NextTrialId uint64        `json:"next_trial_id"`
}

type tellCall struct {
	Type        MessageType   `json:"type"`
	SolverId    uint64        `json:"solver_id"`
	TrialId     domain.TrialId `json:"trial_id"`
	CurrentStep uint64        `json:"current_step"`
	Values      domain.Values `json:"values"`
}

type tellReply struct {
	Type MessageType `json:"type"`
}

// Problem protocol payloads.

type createProblemCast struct {
	Type       MessageType `json:"type"`
	ProblemId  uint64      `json:"problem_id"`
	RandomSeed uint64      `json:"random_seed"`
}

type dropProblemCast struct {
	Type      MessageType `json:"type"`
	ProblemId uint64      `json:"problem_id"`
}

type createEvaluatorCall struct {
	Type        MessageType   `json:"type"`
	ProblemId   uint64        `json:"problem_id"`
	EvaluatorId uint64        `json:"evaluator_id"`
	Params      domain.Params `json:"params"`
}

type createEvaluatorReply struct {
	Type MessageType `json:"type"`
}

type dropEvaluatorCast struct {
	Type        MessageType `json:"type"`
	ProblemId   uint64      `json:"problem_id"`
	EvaluatorId uint64      `json:"evaluator_id"`
}

type evaluateCall struct {
	Type        MessageType `json:"type"`
	ProblemId   uint64      `json:"problem_id"`
	EvaluatorId uint64      `json:"evaluator_id"`
	MaxStep     uint64      `json:"max_step"`
}

type evaluateReply struct {
	Type        MessageType   `json:"type"`
	CurrentStep uint64        `json:"current_step"`
	Values      domain.Values `json:"values"`
}

// errorReply is sent by the child when a call fails. kind mirrors
// kerrors.Kind as a string so child implementations in any language can
// populate it without depending on this module.
type errorReply struct {
	Type    MessageType `json:"type"`
	Kind    string      `json:"kind"`
	Message string      `json:"message,omitempty"`
}
