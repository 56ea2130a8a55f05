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

// SolverFactory is an external-program-backed core.SolverFactory: one
// process, handshaken once for its SolverSpec, then multiplexing any number
// of CreateSolver-spawned solver handles over the same channel (§4.3).
type SolverFactory struct {
	proc *process
	spec domain.SolverSpec

	mu     sync.Mutex // guards one in-flight call at a time, across all solver ids sharing this process (§5)
	nextId atomic.Uint64
}

// NewSolverFactory spawns command, performs the handshake expecting exactly
// one SOLVER_SPEC_CAST, and returns a ready factory.
func NewSolverFactory(ctx context.Context, command string, args []string, env map[string]string, log *slog.Logger) (*SolverFactory, error) {
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
	if mt != SolverSpecCast {
		_ = proc.close()
		return nil, kerrors.Wrapf(kerrors.ProtocolError, nil, "handshake: expected %s, got %s", SolverSpecCast, mt)
	}
	var cast solverSpecCast
	if err := decode(raw, &cast); err != nil {
		_ = proc.close()
		return nil, err
	}

	return &SolverFactory{
		proc: proc,
		spec: cast.Spec,
	}, nil
}

func (f *SolverFactory) Specification() domain.SolverSpec { return f.spec }

// CreateSolver casts CREATE_SOLVER_CAST with a freshly allocated solver id
// and returns a handle multiplexed over the shared process.
func (f *SolverFactory) CreateSolver(ctx context.Context, randomSeed uint64, problem domain.ProblemSpec) (core.Solver, error) {
	id := f.nextId.Add(1)

	f.mu.Lock()
	err := f.proc.channel.send(createSolverCast{
		Type:       CreateSolverCast,
		SolverId:   id,
		RandomSeed: randomSeed,
		Problem:    problem,
	})
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	return &externalSolver{factory: f, id: id}, nil
}

func (f *SolverFactory) Close() error {
	return f.proc.close()
}

// call performs one synchronous call/reply round trip: send req, then read
// exactly one reply, which must be wantReply or an ERROR_REPLY; any other
// message type is a ProtocolError. Only one
// call may be in flight on the shared process at a time (§4.3, §5), so the
// whole round trip runs under f.mu.
func (f *SolverFactory) call(req any, wantReply MessageType, out any) error {
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

// externalSolver is one CREATE_SOLVER_CAST-allocated handle on a shared
// SolverFactory process.
type externalSolver struct {
	factory *SolverFactory
	id      uint64
}

func (s *externalSolver) Ask(ctx context.Context, idHint domain.TrialId) (domain.NextTrial, error) {
	var reply askReply
	err := s.factory.call(askCall{
		Type:        AskCall,
		SolverId:    s.id,
		NextTrialId: uint64(idHint),
	}, AskReply, &reply)
	if err != nil {
		return domain.NextTrial{}, err
	}
	return domain.NextTrial{
		Id:              reply.TrialId,
		Params:          reply.Params,
		NextStep:        reply.NextStep,
		IdAllocatedUpTo: reply.NextTrialId,
	}, nil
}

func (s *externalSolver) Tell(ctx context.Context, result domain.EvaluatedTrial) error {
	var reply tellReply
	return s.factory.call(tellCall{
		Type:        TellCall,
		SolverId:    s.id,
		TrialId:     result.Id,
		CurrentStep: result.CurrentStep,
		Values:      result.Values,
	}, TellReply, &reply)
}

// Close casts DROP_SOLVER_CAST. Per §4.3, a cast is fire-and-forget: a write
// failure here (the child already exited) is not an error worth surfacing.
func (s *externalSolver) Close() error {
	s.factory.mu.Lock()
	defer s.factory.mu.Unlock()
	_ = s.factory.proc.channel.send(dropSolverCast{Type: DropSolverCast, SolverId: s.id})
	return nil
}
