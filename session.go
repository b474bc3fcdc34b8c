package gobmc

import (
	"context"
	"fmt"
	"time"

	"github.com/aclements/go-z3/z3"
)

// Session checks a model bound by bound on a single solver, keeping
// the path formula asserted across bounds and scoping each bad
// disjunction behind a push/pop pair. Terms are hash-consed, so
// re-unrolling at a larger bound reuses every term of the smaller one
// and only the new conjuncts reach the solver.
//
// A Session assumes its own history: Advance at bound k is only
// meaningful if every smaller bound answered unsat. Not safe for
// concurrent use.
type Session struct {
	model   *Model
	tb      *TermBuilder
	ctx     *z3.Context
	cfg     *z3.Config
	solver  *z3.Solver
	conv    *z3conv
	timeout time.Duration

	bound    int
	asserted map[*Term]bool
	unrolled *Unrolling
	last     *Assignment
}

func NewSession(m *Model) *Session {
	cfg := z3.NewContextConfig()
	ctx := z3.NewContext(cfg)
	return &Session{
		model:    m,
		tb:       NewTermBuilder(),
		ctx:      ctx,
		cfg:      cfg,
		solver:   z3.NewSolver(ctx),
		conv:     newZ3Conv(ctx),
		asserted: make(map[*Term]bool),
	}
}

// SetTimeout bounds each Advance call. Zero means no deadline beyond
// the caller's context.
func (s *Session) SetTimeout(d time.Duration) {
	s.timeout = d
}

// Bound is the bound the next Advance will check.
func (s *Session) Bound() int {
	return s.bound
}

// Builder exposes the session's term builder, for evaluating terms of
// the current unrolling against the assignment.
func (s *Session) Builder() *TermBuilder {
	return s.tb
}

// Unrolling is the instantiation of the last Advance, nil before the
// first call.
func (s *Session) Unrolling() *Unrolling {
	return s.unrolled
}

// Assignment is the model of the last sat Advance, nil otherwise.
func (s *Session) Assignment() *Assignment {
	return s.last
}

func (s *Session) assertNew(conjuncts []*Term) error {
	for _, c := range conjuncts {
		if s.asserted[c] {
			continue
		}
		if err := s.conv.assertAll(s.solver, c); err != nil {
			return err
		}
		s.asserted[c] = true
	}
	return nil
}

// Advance unrolls one more step and asks whether any bad predicate
// holds at the current bound. On unsat the bound increases; on sat the
// solver keeps the model and the session stops advancing.
func (s *Session) Advance(ctx context.Context) (int, error) {
	k := s.bound
	u, err := Unroll(s.model, k, s.tb)
	if err != nil {
		return VERDICT_ERROR, err
	}
	s.unrolled = u
	s.last = nil

	if err := s.assertNew(u.Inits); err != nil {
		return VERDICT_ERROR, err
	}
	for t := 0; t < k; t++ {
		if err := s.assertNew(u.Transitions[t]); err != nil {
			return VERDICT_ERROR, err
		}
	}
	for t := 0; t <= k; t++ {
		if err := s.assertNew(u.StepConstraints[t]); err != nil {
			return VERDICT_ERROR, err
		}
	}

	// earlier bounds were unsat, so only the newest step can fire
	bad := s.tb.BoolVal(false)
	for _, b := range u.Bads[k] {
		bad, err = s.tb.BoolOr(bad, b)
		if err != nil {
			return VERDICT_ERROR, err
		}
	}
	badZ3, err := s.conv.boolean(bad)
	if err != nil {
		return VERDICT_ERROR, err
	}

	s.solver.Push()
	s.solver.Assert(badZ3)

	cctx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	verdict, err := checkInterruptible(cctx, s.ctx, s.solver)
	if err == context.DeadlineExceeded && ctx.Err() == nil {
		s.solver.Pop()
		return VERDICT_UNKNOWN, nil
	}
	if err != nil {
		s.solver.Pop()
		return verdict, err
	}

	switch verdict {
	case VERDICT_SAT:
		m := s.solver.Model()
		if m == nil {
			s.solver.Pop()
			return VERDICT_ERROR, fmt.Errorf("sat verdict without a model")
		}
		a, err := s.conv.extractAssignment(m)
		if err != nil {
			s.solver.Pop()
			return VERDICT_ERROR, err
		}
		s.last = a
	case VERDICT_UNSAT:
		s.solver.Pop()
		s.bound++
	default:
		s.solver.Pop()
	}
	return verdict, nil
}
