package gobmc

import "fmt"

// Unrolling is one time-indexed instantiation of a Model for a fixed
// bound: a symbolic term for every node at every step in [0, Bound],
// plus the constraint conjuncts and the per-(bad, step) reachability
// literals. It is created fresh per bound, owned by whoever built it,
// and never mutated afterwards.
type Unrolling struct {
	Model *Model
	Bound int

	terms []map[NodeID]*Term

	// Inits holds the step-0 initial constraints, one per state with a
	// declared init. States without one are left unconstrained.
	Inits []*Term
	// Transitions[t] links step t to step t+1, one equality per state
	// with a declared next.
	Transitions [][]*Term
	// StepConstraints[t] holds every `constraint` predicate at step t.
	StepConstraints [][]*Term
	// Bads[t][i] is "bad predicate i holds at step t", kept separate
	// per predicate and step so a witness can name what fired where.
	Bads [][]*Term
}

// symName is the canonical solver-facing name of a node instance at a
// time step.
func symName(n *Node, t int) string {
	return fmt.Sprintf("n%d@%d", n.Nid, t)
}

// Unroll instantiates the model for the given bound using tb to build
// terms. Sort violations, which the parser should have rejected
// already, surface as ModelError.
func Unroll(m *Model, bound int, tb *TermBuilder) (*Unrolling, error) {
	if bound < 0 {
		return nil, fmt.Errorf("negative bound %d", bound)
	}

	u := &Unrolling{
		Model:           m,
		Bound:           bound,
		terms:           make([]map[NodeID]*Term, bound+1),
		Transitions:     make([][]*Term, bound),
		StepConstraints: make([][]*Term, bound+1),
		Bads:            make([][]*Term, bound+1),
	}

	// the parser only admits sort-correct operations; re-check here so
	// a hand-built Model cannot produce a malformed query
	for i := 0; i < m.NumNodes(); i++ {
		n := m.Node(i2id(i))
		if n.Kind != ND_OP {
			continue
		}
		if err := m.checkOperation(n); err != nil {
			return nil, &ModelError{Nid: n.Nid, Step: 0, Reason: err.Error()}
		}
	}

	for t := 0; t <= bound; t++ {
		u.terms[t] = make(map[NodeID]*Term)
		for i := 0; i < m.NumNodes(); i++ {
			id := i2id(i)
			term, err := u.lower(tb, id, t)
			if err != nil {
				return nil, &ModelError{Nid: m.Node(id).Nid, Step: t, Reason: err.Error()}
			}
			u.terms[t][id] = term
		}
	}

	if err := u.buildInits(tb); err != nil {
		return nil, err
	}
	if err := u.buildTransitions(tb); err != nil {
		return nil, err
	}
	if err := u.buildPredicates(tb); err != nil {
		return nil, err
	}
	return u, nil
}

func i2id(i int) NodeID {
	return NodeID(i)
}

// TermAt returns the symbolic term of a node at a step.
func (u *Unrolling) TermAt(id NodeID, t int) *Term {
	return u.terms[t][id]
}

func (u *Unrolling) freshSym(tb *TermBuilder, n *Node, t int) *Term {
	srt := u.Model.sorts.get(n.Sort)
	if srt.IsArray() {
		return tb.ArrayS(symName(n, t),
			u.Model.sorts.get(srt.Index).Width,
			u.Model.sorts.get(srt.Elem).Width)
	}
	return tb.BVS(symName(n, t), srt.Width)
}

func (u *Unrolling) lower(tb *TermBuilder, id NodeID, t int) (*Term, error) {
	n := u.Model.Node(id)
	switch n.Kind {
	case ND_CONST:
		return tb.BVC(n.Val), nil
	case ND_INPUT, ND_STATE:
		// states get a fresh symbol per step too; the transition
		// equalities tie consecutive steps together
		return u.freshSym(tb, n, t), nil
	case ND_BAD, ND_CONSTRAINT:
		return u.terms[t][n.Args[0]], nil
	case ND_OP:
		return u.lowerOp(tb, n, t)
	}
	return nil, fmt.Errorf("unknown node kind %d", n.Kind)
}

func (u *Unrolling) lowerOp(tb *TermBuilder, n *Node, t int) (*Term, error) {
	arg := func(i int) *Term {
		return u.terms[t][n.Args[i]]
	}

	// comparisons are boolean in the term language but bitvec 1 in
	// BTOR2; lower them back through a 0/1 mux
	asBV := func(cond *Term, err error) (*Term, error) {
		if err != nil {
			return nil, err
		}
		return tb.BoolToBV(cond)
	}

	switch n.Op {
	case OP_ADD:
		return tb.Add(arg(0), arg(1))
	case OP_SUB:
		return tb.Sub(arg(0), arg(1))
	case OP_MUL:
		return tb.Mul(arg(0), arg(1))
	case OP_UDIV:
		return tb.UDiv(arg(0), arg(1))
	case OP_SDIV:
		return tb.SDiv(arg(0), arg(1))
	case OP_UREM:
		return tb.URem(arg(0), arg(1))
	case OP_SREM:
		return tb.SRem(arg(0), arg(1))
	case OP_SLL:
		return tb.Shl(arg(0), arg(1))
	case OP_SRL:
		return tb.LShr(arg(0), arg(1))
	case OP_SRA:
		return tb.AShr(arg(0), arg(1))
	case OP_AND:
		return tb.And(arg(0), arg(1))
	case OP_OR:
		return tb.Or(arg(0), arg(1))
	case OP_XOR:
		return tb.Xor(arg(0), arg(1))
	case OP_NOT:
		return tb.Not(arg(0))
	case OP_NEG:
		return tb.Neg(arg(0))
	case OP_EQ:
		return asBV(tb.Eq(arg(0), arg(1)))
	case OP_NEQ:
		return asBV(tb.Ne(arg(0), arg(1)))
	case OP_ULT:
		return asBV(tb.ULt(arg(0), arg(1)))
	case OP_ULTE:
		return asBV(tb.ULe(arg(0), arg(1)))
	case OP_UGT:
		return asBV(tb.UGt(arg(0), arg(1)))
	case OP_UGTE:
		return asBV(tb.UGe(arg(0), arg(1)))
	case OP_SLT:
		return asBV(tb.SLt(arg(0), arg(1)))
	case OP_SLTE:
		return asBV(tb.SLe(arg(0), arg(1)))
	case OP_SGT:
		return asBV(tb.SGt(arg(0), arg(1)))
	case OP_SGTE:
		return asBV(tb.SGe(arg(0), arg(1)))
	case OP_CONCAT:
		return tb.Concat(arg(0), arg(1))
	case OP_SLICE:
		return tb.Extract(arg(0), n.Hi, n.Lo)
	case OP_UEXT:
		return tb.ZExt(arg(0), n.Ext)
	case OP_SEXT:
		return tb.SExt(arg(0), n.Ext)
	case OP_ITE:
		cond, err := tb.NeZero(arg(0))
		if err != nil {
			return nil, err
		}
		return tb.Ite(cond, arg(1), arg(2))
	case OP_READ:
		return tb.Select(arg(0), arg(1))
	case OP_WRITE:
		return tb.Store(arg(0), arg(1), arg(2))
	}
	return nil, fmt.Errorf("unknown opcode %d", n.Op)
}

func (u *Unrolling) buildInits(tb *TermBuilder) error {
	for _, sid := range u.Model.States() {
		n := u.Model.Node(sid)
		if n.Init == noNode {
			continue
		}

		stateTerm := u.terms[0][sid]
		initTerm := u.terms[0][n.Init]

		if stateTerm.IsArray() && !initTerm.IsArray() {
			// element-sorted init: every cell holds the value
			c, err := initTerm.GetConst()
			if err != nil {
				return &ModelError{Nid: n.Nid, Step: 0,
					Reason: "array state initialized with a non-constant element"}
			}
			initTerm = tb.ConstArray(stateTerm.IndexWidth(), c)
		}

		eq, err := tb.Eq(stateTerm, initTerm)
		if err != nil {
			return &ModelError{Nid: n.Nid, Step: 0, Reason: err.Error()}
		}
		u.Inits = append(u.Inits, eq)
	}
	return nil
}

func (u *Unrolling) buildTransitions(tb *TermBuilder) error {
	for t := 0; t < u.Bound; t++ {
		for _, sid := range u.Model.States() {
			n := u.Model.Node(sid)
			if n.Next == noNode {
				// a state without next is unconstrained at every step
				continue
			}
			eq, err := tb.Eq(u.terms[t+1][sid], u.terms[t][n.Next])
			if err != nil {
				return &ModelError{Nid: n.Nid, Step: t, Reason: err.Error()}
			}
			u.Transitions[t] = append(u.Transitions[t], eq)
		}
	}
	return nil
}

func (u *Unrolling) buildPredicates(tb *TermBuilder) error {
	for t := 0; t <= u.Bound; t++ {
		for _, cid := range u.Model.Constraints {
			n := u.Model.Node(cid)
			c, err := tb.NeZero(u.terms[t][n.Args[0]])
			if err != nil {
				return &ModelError{Nid: n.Nid, Step: t, Reason: err.Error()}
			}
			u.StepConstraints[t] = append(u.StepConstraints[t], c)
		}
		for _, bid := range u.Model.Bads {
			n := u.Model.Node(bid)
			b, err := tb.NeZero(u.terms[t][n.Args[0]])
			if err != nil {
				return &ModelError{Nid: n.Nid, Step: t, Reason: err.Error()}
			}
			u.Bads[t] = append(u.Bads[t], b)
		}
	}
	return nil
}

// pathFormula conjoins inits, transitions and constraints: everything
// of the query except the bad disjunction.
func (u *Unrolling) pathFormula(tb *TermBuilder) (*Term, error) {
	res := tb.BoolVal(true)
	var err error
	conj := func(t *Term) {
		if err == nil {
			res, err = tb.BoolAnd(res, t)
		}
	}
	for _, c := range u.Inits {
		conj(c)
	}
	for t := 0; t < u.Bound; t++ {
		for _, c := range u.Transitions[t] {
			conj(c)
		}
	}
	for t := 0; t <= u.Bound; t++ {
		for _, c := range u.StepConstraints[t] {
			conj(c)
		}
	}
	return res, err
}

// badFormula disjoins every (bad, step) literal with step <= upto.
func (u *Unrolling) badFormula(tb *TermBuilder, upto int) (*Term, error) {
	res := tb.BoolVal(false)
	var err error
	for t := 0; t <= upto; t++ {
		for _, b := range u.Bads[t] {
			if err == nil {
				res, err = tb.BoolOr(res, b)
			}
		}
	}
	return res, err
}

// Query is the complete satisfiability query for this bound: path
// formula and at least one bad predicate at some step.
func (u *Unrolling) Query(tb *TermBuilder) (*Term, error) {
	path, err := u.pathFormula(tb)
	if err != nil {
		return nil, err
	}
	bad, err := u.badFormula(tb, u.Bound)
	if err != nil {
		return nil, err
	}
	return tb.BoolAnd(path, bad)
}
