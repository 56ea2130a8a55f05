package epi

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/kurobako-go/kurobako/pkg/core"
	"github.com/kurobako-go/kurobako/pkg/domain"
	"github.com/kurobako-go/kurobako/pkg/kerrors"
)

// ProblemFactory is an external-program-backed core.ProblemFactory,
// mirroring SolverFactory's handshake-then-multiplex structure (§4.3).
type ProblemFactory struct {
	proc *process
	spec domain.ProblemSpec

	mu     sync.Mutex
	nextId atomic.Uint64
}

// NewProblemFactory spawns command, performs the handshake expecting
// exactly one PROBLEM_SPEC_CAST, and returns a ready factory.
func NewProblemFactory(ctx context.Context, command string, args []string, env map[string]string, log *slog.Logger) (*ProblemFactory, error) {
	proc, err := spawn(ctx, command, args, env, log)
	if err != nil {
		return nil, err
	}

	raw, err := proc.channel.recv()
	if err != nil {
		_ = proc.close()
		return nil, err
	}
	mt, err := typeOf(raw)
	if err != nil {
		_ = proc.close()
		return nil, err
	}
	if mt != ProblemSpecCast {
		_ = proc.close()
		return nil, kerrors.Wrapf(kerrors.ProtocolError, nil, "handshake: expected %s, got %s", ProblemSpecCast, mt)
	}
	var cast problemSpecCast
	if err := decode(raw, &cast); err != nil {
		_ = proc.close()
		return nil, err
	}

	return &ProblemFactory{proc: proc, spec: cast.Spec}, nil
}

func (f *ProblemFactory) Specification() domain.ProblemSpec { return f.spec }

// CreateProblem casts CREATE_PROBLEM_CAST with a freshly allocated problem
// id and returns a handle multiplexed over the shared process.
func (f *ProblemFactory) CreateProblem(ctx context.Context, randomSeed uint64) (core.Problem, error) {
	id := f.nextId.Add(1)

	f.mu.Lock()
	err := f.proc.channel.send(createProblemCast{
		Type:       CreateProblemCast,
		ProblemId:  id,
		RandomSeed: randomSeed,
	})
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	return &externalProblem{factory: f, id: id}, nil
}

func (f *ProblemFactory) Close() error {
	return f.proc.close()
}

// call performs one synchronous call/reply round trip, serialized with
// every other call on the shared process (§4.3, §5: single in-flight call).
func (f *ProblemFactory) call(req any, wantReply MessageType, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.proc.channel.send(req); err != nil {
		return err
	}
	raw, err := f.proc.channel.recv()
	if err != nil {
		return err
	}
	mt, err := typeOf(raw)
	if err != nil {
		return err
	}
	if mt == ErrorReply {
		var e errorReply
		if err := decode(raw, &e); err != nil {
			return err
		}
		return kerrors.New(kerrors.Kind(e.Kind), e.Message)
	}
	if mt != wantReply {
		return kerrors.Wrapf(kerrors.ProtocolError, nil, "expected %s, got %s", wantReply, mt)
	}
	return decode(raw, out)
}

// externalProblem is one CREATE_PROBLEM_CAST-allocated handle.
type externalProblem struct {
	factory *ProblemFactory
	id      uint64

	nextEval atomic.Uint64
}

// CreateEvaluator casts CREATE_EVALUATOR_CALL synchronously — unlike
// solver/problem creation, it is a call (§4.3): the child may reject params
// as UnevaluableParams, and the runner needs that answer before proceeding.
func (p *externalProblem) CreateEvaluator(ctx context.Context, params domain.Params) (core.Evaluator, error) {
	id := p.nextEval.Add(1)

	var reply createEvaluatorReply
	err := p.factory.call(createEvaluatorCall{
		Type:        CreateEvaluatorCall,
		ProblemId:   p.id,
		EvaluatorId: id,
		Params:      params,
	}, CreateEvaluatorReply, &reply)
	if err != nil {
		return nil, err
	}

	return &externalEvaluator{factory: p.factory, problemId: p.id, evaluatorId: id}, nil
}

// Close casts DROP_PROBLEM_CAST.
func (p *externalProblem) Close() error {
	p.factory.mu.Lock()
	defer p.factory.mu.Unlock()
	_ = p.factory.proc.channel.send(dropProblemCast{Type: DropProblemCast, ProblemId: p.id})
	return nil
}

// externalEvaluator multiplexes EVALUATE_CALL/DROP_EVALUATOR_CAST for one
// evaluator id over its parent problem's shared process.
type externalEvaluator struct {
	factory     *ProblemFactory
	problemId   uint64
	evaluatorId uint64
}

func (e *externalEvaluator) Evaluate(ctx context.Context, maxStep uint64) (uint64, domain.Values, error) {
	var reply evaluateReply
	err := e.factory.call(evaluateCall{
		Type:        EvaluateCall,
		ProblemId:   e.problemId,
		EvaluatorId: e.evaluatorId,
		MaxStep:     maxStep,
	}, EvaluateReply, &reply)
	if err != nil {
		return 0, domain.Values{}, err
	}
	return reply.CurrentStep, reply.Values, nil
}

func (e *externalEvaluator) Close() error {
	e.factory.mu.Lock()
	defer e.factory.mu.Unlock()
	_ = e.factory.proc.channel.send(dropEvaluatorCast{
		Type:        DropEvaluatorCast,
		ProblemId:   e.problemId,
		EvaluatorId: e.evaluatorId,
	})
	return nil
}
